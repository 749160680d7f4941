package mailing

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/voicesurvey/platform/internal/pkg/logger"
)

// Message is a single rendered notification ready to send (§4.5 step 5).
type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
	Text    string
}

// Sender is the Email Worker's provider adapter (§4.3's wording generalized
// to email: `send(to, subject, html_body, text_body?) -> provider_message_id`).
type Sender interface {
	Send(ctx context.Context, msg Message) (providerMessageID string, err error)
}

// SESSender sends notification emails via AWS SES v2's SendEmail API.
type SESSender struct {
	client *sesv2.Client
}

// NewSESSender builds a Sender around an already-configured SES v2 client
// (credentials and region resolved once at startup via
// github.com/aws/aws-sdk-go-v2/config, shared with the bedrockruntime and
// sqs clients per SPEC_FULL.md's domain-stack wiring).
func NewSESSender(client *sesv2.Client) *SESSender {
	return &SESSender{client: client}
}

// Send delivers msg through SES, returning the provider message id the
// Email Worker stores on EmailNotification.provider_message_id.
func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.Text != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		logger.Warn("ses send failed", "to", msg.To, "error", err.Error())
		return "", fmt.Errorf("ses send: %w", err)
	}

	return aws.ToString(out.MessageId), nil
}
