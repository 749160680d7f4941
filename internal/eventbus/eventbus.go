// Package eventbus adapts a FIFO queue provider into the Survey Event
// Publisher's and Email Worker's publish/consume contracts (spec §4.4, §4.5).
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/voicesurvey/platform/internal/pkg/logger"
)

// ErrPublishExhausted is returned when all retry attempts to publish a
// message have failed. Callers log it; the committed event row is left as
// it is and is not marked for any later reconciliation.
var ErrPublishExhausted = errors.New("eventbus: publish retries exhausted")

// PublishBackoff controls the exponential-backoff-with-cap retry schedule
// for Publish (§4.4: base 1s, cap 60s, max 5 attempts).
type PublishBackoff struct {
	Base       time.Duration
	Cap        time.Duration
	MaxAttempts int
}

// DefaultPublishBackoff matches §4.4's stated defaults.
var DefaultPublishBackoff = PublishBackoff{Base: time.Second, Cap: 60 * time.Second, MaxAttempts: 5}

func (b PublishBackoff) delay(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if d > float64(b.Cap) {
		d = float64(b.Cap)
	}
	return time.Duration(d)
}

// Message is a bus message: a FIFO-ordered, deduplicated publish or a
// received-for-processing consume result.
type Message struct {
	ID            string // our event_id
	Body          string
	GroupID       string
	DedupID       string
	Attributes    map[string]string
	ReceiptHandle string // set only on consume
}

// Bus is the capability interface publishers and consumers depend on.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// SQSBus implements Bus against an Amazon SQS FIFO queue.
type SQSBus struct {
	client   *sqs.Client
	queueURL string
	backoff  PublishBackoff
}

// NewSQSBus builds an SQSBus with the default publish backoff.
func NewSQSBus(client *sqs.Client, queueURL string) *SQSBus {
	return &SQSBus{client: client, queueURL: queueURL, backoff: DefaultPublishBackoff}
}

// Publish sends msg to the FIFO queue with MessageGroupId/MessageDeduplicationId
// set from msg.GroupID/msg.DedupID, retrying with exponential backoff on
// failure (§4.4).
func (b *SQSBus) Publish(ctx context.Context, msg Message) error {
	attrs := make(map[string]types.MessageAttributeValue, len(msg.Attributes))
	for k, v := range msg.Attributes {
		attrs[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:               aws.String(b.queueURL),
		MessageBody:            aws.String(msg.Body),
		MessageGroupId:         aws.String(msg.GroupID),
		MessageDeduplicationId: aws.String(msg.DedupID),
		MessageAttributes:      attrs,
	}

	var lastErr error
	for attempt := 0; attempt < b.backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.backoff.delay(attempt - 1)):
			}
		}
		_, err := b.client.SendMessage(ctx, input)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("eventbus publish failed, retrying", "attempt", attempt+1, "error", err.Error())
	}
	return fmt.Errorf("%w: %v", ErrPublishExhausted, lastErr)
}

// Receive long-polls the queue for up to maxMessages messages (§4.5: wait
// ≤20s, batch ≤10).
func (b *SQSBus) Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]Message, error) {
	if maxMessages > 10 {
		maxMessages = 10
	}
	if waitTime > 20*time.Second {
		waitTime = 20 * time.Second
	}

	out, err := b.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(b.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitTime.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus: receive: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return messages, nil
}

// Delete acknowledges a received message, removing it from the queue.
func (b *SQSBus) Delete(ctx context.Context, receiptHandle string) error {
	_, err := b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(b.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("eventbus: delete: %w", err)
	}
	return nil
}
