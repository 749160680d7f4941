package emailworker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/eventbus"
	"github.com/voicesurvey/platform/internal/mailing"
	"github.com/voicesurvey/platform/internal/pkg/logger"
)

// DefaultMaxRetries is the default retry ceiling before a notification is
// marked failed (§4.5 step 5, §6 EMAIL_MAX_RETRIES).
const DefaultMaxRetries = 3

// Worker long-polls the event bus and drives §4.5's consume algorithm:
// parse -> resolve template -> idempotent notification row -> render ->
// send -> retry/dead-letter.
type Worker struct {
	bus       eventbus.Bus
	repo      Repository
	templates mailing.TemplateStore
	renderer  *mailing.TemplateService
	sender    mailing.Sender
	fromAddr  string
	maxRetries int
	pollWait  time.Duration
	batchSize int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds an Email Worker (§4.5).
func New(bus eventbus.Bus, repo Repository, templates mailing.TemplateStore, renderer *mailing.TemplateService, sender mailing.Sender, fromAddr string, maxRetries int, pollWait time.Duration, batchSize int) *Worker {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Worker{
		bus: bus, repo: repo, templates: templates, renderer: renderer, sender: sender,
		fromAddr: fromAddr, maxRetries: maxRetries, pollWait: pollWait, batchSize: batchSize,
		stopCh: make(chan struct{}),
	}
}

// Start runs the long-poll consume loop until ctx is cancelled or Stop is
// called.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the consume loop to exit and waits for it to return.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		messages, err := w.bus.Receive(ctx, w.batchSize, w.pollWait)
		if err != nil {
			logger.Error("emailworker: receive failed", "error", err.Error())
			continue
		}
		for _, msg := range messages {
			w.handle(ctx, msg)
		}
	}
}

// handle runs one message through §4.5 steps 1-5 and acknowledges
// (deletes) it unless the message should be redelivered for another retry.
func (w *Worker) handle(ctx context.Context, msg eventbus.Message) {
	ack, err := w.process(ctx, msg)
	if err != nil {
		logger.Error("emailworker: process failed", "error", err.Error())
	}
	if !ack {
		return
	}
	if err := w.bus.Delete(ctx, msg.ReceiptHandle); err != nil {
		logger.Error("emailworker: ack (delete) failed", "error", err.Error())
	}
}

// process implements §4.5. It returns ack=true when the message should be
// deleted from the queue (terminal outcome or unparseable payload,
// dead-lettered by acknowledging it off the live queue) and ack=false when
// it should be left for redelivery after the visibility timeout.
func (w *Worker) process(ctx context.Context, msg eventbus.Message) (ack bool, err error) {
	var payload domain.EventPayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		logger.Error("emailworker: dead-lettering unparseable message", "error", err.Error())
		return true, nil
	}

	campaign, err := w.repo.GetCampaign(ctx, payload.CampaignID)
	if err != nil {
		return false, fmt.Errorf("load campaign %s: %w", payload.CampaignID, err)
	}

	templateID, ok := mailing.TemplateIDFor(campaign, payload.EventType)
	if !ok {
		return true, nil // step 2: no template configured, acknowledge and no-op
	}

	existing, err := w.repo.GetNotificationByEventID(ctx, payload.EventID)
	if err != nil {
		return false, fmt.Errorf("load notification for event %s: %w", payload.EventID, err)
	}
	if existing != nil && existing.Status == domain.EmailSent {
		return true, nil // step 4: already sent, acknowledge
	}

	notification := existing
	if notification == nil {
		notification = &domain.EmailNotification{
			ID:         uuid.NewString(),
			EventID:    payload.EventID,
			ContactID:  payload.ContactID,
			CampaignID: payload.CampaignID,
			TemplateID: templateID,
			ToEmail:    payload.Email,
			Status:     domain.EmailPending,
		}
		if err := w.repo.CreateNotification(ctx, *notification); err != nil {
			return false, fmt.Errorf("create notification for event %s: %w", payload.EventID, err)
		}
	}

	tpl, err := w.templates.Get(ctx, templateID)
	if err != nil {
		return false, fmt.Errorf("load template %s: %w", templateID, err)
	}

	rendered, err := w.renderer.Render(tpl, mailing.PayloadVars(payload))
	if err != nil {
		return false, fmt.Errorf("render template %s: %w", templateID, err)
	}

	providerMessageID, sendErr := w.sender.Send(ctx, mailing.Message{
		To:      notification.ToEmail,
		From:    w.fromAddr,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
	if sendErr == nil {
		if err := w.repo.MarkSent(ctx, notification.ID, providerMessageID); err != nil {
			return false, fmt.Errorf("mark sent for event %s: %w", payload.EventID, err)
		}
		return true, nil
	}

	retryCount, markErr := w.repo.MarkRetry(ctx, notification.ID, sendErr.Error())
	if markErr != nil {
		return false, fmt.Errorf("mark retry for event %s: %w", payload.EventID, markErr)
	}
	if retryCount < w.maxRetries {
		return false, sendErr // leave un-acked; redelivered after visibility timeout
	}
	if err := w.repo.MarkFailed(ctx, notification.ID, sendErr.Error()); err != nil {
		return false, fmt.Errorf("mark failed for event %s: %w", payload.EventID, err)
	}
	return true, sendErr
}
