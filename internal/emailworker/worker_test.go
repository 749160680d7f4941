package emailworker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/eventbus"
	"github.com/voicesurvey/platform/internal/mailing"
)

func marshalPayload(p domain.EventPayload) (string, error) {
	b, err := json.Marshal(p)
	return string(b), err
}

type memRepo struct {
	campaigns     map[string]domain.Campaign
	notifications map[string]*domain.EmailNotification
}

func newMemRepo() *memRepo {
	return &memRepo{campaigns: map[string]domain.Campaign{}, notifications: map[string]*domain.EmailNotification{}}
}

func (r *memRepo) GetCampaign(ctx context.Context, campaignID string) (domain.Campaign, error) {
	c, ok := r.campaigns[campaignID]
	if !ok {
		return domain.Campaign{}, errors.New("campaign not found")
	}
	return c, nil
}

func (r *memRepo) GetNotificationByEventID(ctx context.Context, eventID string) (*domain.EmailNotification, error) {
	return r.notifications[eventID], nil
}

func (r *memRepo) CreateNotification(ctx context.Context, n domain.EmailNotification) error {
	cp := n
	r.notifications[n.EventID] = &cp
	return nil
}

func (r *memRepo) MarkSent(ctx context.Context, id, providerMessageID string) error {
	for _, n := range r.notifications {
		if n.ID == id {
			n.Status = domain.EmailSent
			n.ProviderMessageID = &providerMessageID
		}
	}
	return nil
}

func (r *memRepo) MarkRetry(ctx context.Context, id string, errMsg string) (int, error) {
	for _, n := range r.notifications {
		if n.ID == id {
			n.RetryCount++
			n.ErrorMessage = &errMsg
			return n.RetryCount, nil
		}
	}
	return 0, errors.New("not found")
}

func (r *memRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	for _, n := range r.notifications {
		if n.ID == id {
			n.Status = domain.EmailFailed
			n.ErrorMessage = &errMsg
		}
	}
	return nil
}

type memTemplateStore struct{ tpl mailing.Template }

func (s memTemplateStore) Get(ctx context.Context, templateID string) (mailing.Template, error) {
	return s.tpl, nil
}

type stubSender struct {
	err error
	id  string
	sent []mailing.Message
}

func (s *stubSender) Send(ctx context.Context, msg mailing.Message) (string, error) {
	s.sent = append(s.sent, msg)
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

type memBus struct {
	deleted []string
}

func (b *memBus) Publish(ctx context.Context, msg eventbus.Message) error { return nil }
func (b *memBus) Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]eventbus.Message, error) {
	return nil, nil
}
func (b *memBus) Delete(ctx context.Context, receiptHandle string) error {
	b.deleted = append(b.deleted, receiptHandle)
	return nil
}

func testCampaign() domain.Campaign {
	completed := "tmpl-completed"
	return domain.Campaign{ID: "camp-1", CompletedEmailTmplID: &completed}
}

func testPayload() domain.EventPayload {
	return domain.EventPayload{
		EventID: "event-1", EventType: domain.EventSurveyCompleted,
		CampaignID: "camp-1", ContactID: "contact-1", Email: "k@example.com",
	}
}

func newTestWorker(repo *memRepo, sender *stubSender, bus *memBus) *Worker {
	templates := memTemplateStore{tpl: mailing.Template{ID: "tmpl-completed", Subject: "Thanks", HTML: "<p>ok</p>", Text: "ok"}}
	return New(bus, repo, templates, mailing.NewTemplateService(), sender, "surveys@example.com", 3, 20*time.Second, 10)
}

func TestProcessSendsAndAcksOnSuccess(t *testing.T) {
	repo := newMemRepo()
	repo.campaigns["camp-1"] = testCampaign()
	sender := &stubSender{id: "ses-msg-1"}
	bus := &memBus{}
	w := newTestWorker(repo, sender, bus)

	body, _ := marshalPayload(testPayload())
	ack, err := w.process(context.Background(), eventbus.Message{Body: body, ReceiptHandle: "rh-1"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !ack {
		t.Fatal("expected ack=true on successful send")
	}
	n := repo.notifications["event-1"]
	if n == nil || n.Status != domain.EmailSent {
		t.Fatalf("expected notification marked sent, got %+v", n)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(sender.sent))
	}
}

func TestProcessNoOpsWhenNoTemplateConfigured(t *testing.T) {
	repo := newMemRepo()
	repo.campaigns["camp-1"] = domain.Campaign{ID: "camp-1"} // no template ids set
	sender := &stubSender{id: "ses-msg-1"}
	w := newTestWorker(repo, sender, &memBus{})

	body, _ := marshalPayload(testPayload())
	ack, err := w.process(context.Background(), eventbus.Message{Body: body})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !ack {
		t.Fatal("expected ack=true when no template is configured")
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no send attempt")
	}
}

func TestProcessLeavesUnackedBelowMaxRetries(t *testing.T) {
	repo := newMemRepo()
	repo.campaigns["camp-1"] = testCampaign()
	sender := &stubSender{err: errors.New("ses unavailable")}
	w := newTestWorker(repo, sender, &memBus{})

	body, _ := marshalPayload(testPayload())
	ack, err := w.process(context.Background(), eventbus.Message{Body: body})
	if err == nil {
		t.Fatal("expected error from failed send")
	}
	if ack {
		t.Fatal("expected ack=false to allow redelivery below max retries")
	}
	n := repo.notifications["event-1"]
	if n.Status != domain.EmailPending || n.RetryCount != 1 {
		t.Fatalf("expected pending notification with retry_count=1, got %+v", n)
	}
}

func TestProcessMarksFailedAtMaxRetries(t *testing.T) {
	repo := newMemRepo()
	repo.campaigns["camp-1"] = testCampaign()
	sender := &stubSender{err: errors.New("ses unavailable")}
	w := newTestWorker(repo, sender, &memBus{})
	w.maxRetries = 1

	body, _ := marshalPayload(testPayload())
	ack, err := w.process(context.Background(), eventbus.Message{Body: body})
	if err == nil {
		t.Fatal("expected error from failed send")
	}
	if !ack {
		t.Fatal("expected ack=true once retries are exhausted")
	}
	n := repo.notifications["event-1"]
	if n.Status != domain.EmailFailed {
		t.Fatalf("expected notification marked failed, got %+v", n)
	}
}

func TestProcessAcksAlreadySentNotification(t *testing.T) {
	repo := newMemRepo()
	repo.campaigns["camp-1"] = testCampaign()
	repo.notifications["event-1"] = &domain.EmailNotification{ID: "n1", EventID: "event-1", Status: domain.EmailSent}
	sender := &stubSender{id: "ses-msg-1"}
	w := newTestWorker(repo, sender, &memBus{})

	body, _ := marshalPayload(testPayload())
	ack, err := w.process(context.Background(), eventbus.Message{Body: body})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !ack {
		t.Fatal("expected ack=true for an already-sent notification")
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no resend for an already-sent notification")
	}
}
