package webhookingestor

import (
	"context"
	"testing"
	"time"

	"github.com/voicesurvey/platform/internal/dialogue"
	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/eventbus"
	"github.com/voicesurvey/platform/internal/llm"
	"github.com/voicesurvey/platform/internal/telephony"
)

type scriptedLLMClient struct{ reply string }

func (c *scriptedLLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.reply, nil
}

type memTx struct {
	attempts    map[string]*domain.CallAttempt
	contacts    map[string]*domain.Contact
	events      map[string]domain.Event
	maxAttempts int
	responses   []domain.SurveyResponse
}

func (t *memTx) GetCallAttemptForUpdate(ctx context.Context, callID string) (*domain.CallAttempt, error) {
	a, ok := t.attempts[callID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (t *memTx) UpdateCallAttemptState(ctx context.Context, id string, state domain.CallState) error {
	for _, a := range t.attempts {
		if a.ID == id {
			a.State = state
		}
	}
	return nil
}

func (t *memTx) UpdateDialogueSnapshot(ctx context.Context, id string, metadata domain.CallAttemptMetadata) error {
	for _, a := range t.attempts {
		if a.ID == id {
			a.Metadata = metadata
		}
	}
	return nil
}

func (t *memTx) CloseCallAttempt(ctx context.Context, id string, outcome domain.CallOutcome, errorCode *string, endedAt time.Time, metadata domain.CallAttemptMetadata) error {
	for _, a := range t.attempts {
		if a.ID == id {
			a.Outcome = &outcome
			a.EndedAt = &endedAt
			a.ErrorCode = errorCode
			a.Metadata = metadata
		}
	}
	return nil
}

func (t *memTx) GetCampaignMaxAttempts(ctx context.Context, campaignID string) (int, error) {
	return t.maxAttempts, nil
}

func (t *memTx) GetCampaignForDialogue(ctx context.Context, campaignID string) (domain.Campaign, error) {
	return domain.Campaign{ID: campaignID}, nil
}

func (t *memTx) UpdateContactState(ctx context.Context, id string, state domain.ContactState, lastOutcome string, now time.Time) error {
	c, ok := t.contacts[id]
	if !ok {
		return nil
	}
	c.State = state
	c.LastOutcome = &lastOutcome
	return nil
}

func (t *memTx) GetContactNotificationInfo(ctx context.Context, id string) (string, string, error) {
	c, ok := t.contacts[id]
	if !ok {
		return "", "", nil
	}
	email := ""
	if c.Email != nil {
		email = *c.Email
	}
	return email, string(c.PreferredLanguage), nil
}

func (t *memTx) InsertSurveyResponse(ctx context.Context, resp domain.SurveyResponse) error {
	t.responses = append(t.responses, resp)
	return nil
}

func (t *memTx) InsertEventIfNotExists(ctx context.Context, ev domain.Event) (bool, error) {
	key := string(ev.Type) + ":" + ev.ContactID
	if ev.CallAttemptID != nil {
		key += ":" + *ev.CallAttemptID
	}
	if _, exists := t.events[key]; exists {
		return false, nil
	}
	t.events[key] = ev
	return true, nil
}

type memRepo struct{ tx *memTx }

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return fn(ctx, r.tx)
}

type fakeBus struct{ published []eventbus.Message }

func (f *fakeBus) Publish(ctx context.Context, msg eventbus.Message) error {
	f.published = append(f.published, msg)
	return nil
}
func (f *fakeBus) Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]eventbus.Message, error) {
	return nil, nil
}
func (f *fakeBus) Delete(ctx context.Context, receiptHandle string) error { return nil }

func newTestIngestor(tx *memTx) (*Ingestor, *fakeBus) {
	bus := &fakeBus{}
	return New(&memRepo{tx: tx}, eventbus.NewPublisher(bus), nil), bus
}

func TestHandleUnknownCallID(t *testing.T) {
	tx := &memTx{attempts: map[string]*domain.CallAttempt{}, contacts: map[string]*domain.Contact{}, events: map[string]domain.Event{}}
	ing, _ := newTestIngestor(tx)

	result, err := ing.Handle(context.Background(), telephony.WebhookEvent{CallID: "nope", EventType: telephony.EventCompleted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ack != AckAcceptedNoOp {
		t.Fatalf("ack = %v, want AckAcceptedNoOp", result.Ack)
	}
}

func TestHandleHappyPathCompleted(t *testing.T) {
	tx := &memTx{
		attempts: map[string]*domain.CallAttempt{
			"call-1": {
				ID: "attempt-1", ContactID: "contact-1", CampaignID: "camp-1",
				CallID: "call-1", AttemptNumber: 1, State: domain.CallAnswered,
				Metadata: domain.CallAttemptMetadata{
					Dialogue: &domain.DialogueSession{
						Phase:            domain.PhaseDone,
						CollectedAnswers: [3]string{"8", "yes", "sometimes"},
						Confidences:      [3]float64{0.9, 0.95, 0.8},
					},
				},
			},
		},
		contacts:    map[string]*domain.Contact{"contact-1": {ID: "contact-1", State: domain.ContactInProgress}},
		events:      map[string]domain.Event{},
		maxAttempts: 3,
	}
	ing, bus := newTestIngestor(tx)

	result, err := ing.Handle(context.Background(), telephony.WebhookEvent{
		CallID: "call-1", EventType: telephony.EventCompleted, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ack != AckOK {
		t.Fatalf("ack = %v, want AckOK", result.Ack)
	}
	if tx.contacts["contact-1"].State != domain.ContactCompleted {
		t.Fatalf("contact state = %v, want completed", tx.contacts["contact-1"].State)
	}
	if len(tx.responses) != 1 {
		t.Fatalf("expected 1 survey response, got %d", len(tx.responses))
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(bus.published))
	}
}

func TestHandleReplayIsNoOp(t *testing.T) {
	outcome := domain.OutcomeCompleted
	tx := &memTx{
		attempts: map[string]*domain.CallAttempt{
			"call-1": {ID: "attempt-1", ContactID: "contact-1", CampaignID: "camp-1", CallID: "call-1", Outcome: &outcome},
		},
		contacts: map[string]*domain.Contact{"contact-1": {ID: "contact-1", State: domain.ContactCompleted}},
		events:   map[string]domain.Event{},
	}
	ing, bus := newTestIngestor(tx)

	result, err := ing.Handle(context.Background(), telephony.WebhookEvent{CallID: "call-1", EventType: telephony.EventCompleted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ack != AckAcceptedNoOp {
		t.Fatalf("ack = %v, want AckAcceptedNoOp for replay", result.Ack)
	}
	if len(bus.published) != 0 {
		t.Fatalf("expected no publish on replay, got %d", len(bus.published))
	}
}

func TestHandleRetryThenGiveUp(t *testing.T) {
	tx := &memTx{
		attempts: map[string]*domain.CallAttempt{
			"call-2": {ID: "attempt-2", ContactID: "contact-1", CampaignID: "camp-1", CallID: "call-2", AttemptNumber: 2, State: domain.CallInitiated},
		},
		contacts:    map[string]*domain.Contact{"contact-1": {ID: "contact-1", State: domain.ContactInProgress}},
		events:      map[string]domain.Event{},
		maxAttempts: 2,
	}
	ing, bus := newTestIngestor(tx)

	_, err := ing.Handle(context.Background(), telephony.WebhookEvent{CallID: "call-2", EventType: telephony.EventNoAnswer, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.contacts["contact-1"].State != domain.ContactNotReached {
		t.Fatalf("state = %v, want not_reached (attempts exhausted)", tx.contacts["contact-1"].State)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected survey.not_reached to publish, got %d", len(bus.published))
	}
}

func TestHandleMonotonicStateIgnoresRegression(t *testing.T) {
	tx := &memTx{
		attempts: map[string]*domain.CallAttempt{
			"call-3": {ID: "attempt-3", ContactID: "contact-1", CampaignID: "camp-1", CallID: "call-3", State: domain.CallAnswered},
		},
		contacts: map[string]*domain.Contact{"contact-1": {ID: "contact-1"}},
		events:   map[string]domain.Event{},
	}
	ing, _ := newTestIngestor(tx)

	_, err := ing.Handle(context.Background(), telephony.WebhookEvent{CallID: "call-3", EventType: telephony.EventRinging})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.attempts["call-3"].State != domain.CallAnswered {
		t.Fatalf("state regressed to %v", tx.attempts["call-3"].State)
	}
}

func TestHandleTurnWithoutOrchestratorConfiguredErrors(t *testing.T) {
	tx := &memTx{attempts: map[string]*domain.CallAttempt{}, contacts: map[string]*domain.Contact{}, events: map[string]domain.Event{}}
	ing, _ := newTestIngestor(tx)

	_, err := ing.HandleTurn(context.Background(), "call-1", domain.LanguageEnglish, "yes")
	if err == nil {
		t.Fatal("expected an error when no dialogue orchestrator is configured")
	}
}

func TestHandleTurnAdvancesPhaseAndPersistsSnapshot(t *testing.T) {
	tx := &memTx{
		attempts: map[string]*domain.CallAttempt{
			"call-4": {ID: "attempt-4", ContactID: "contact-1", CampaignID: "camp-1", CallID: "call-4", AttemptNumber: 1, State: domain.CallAnswered},
		},
		contacts:    map[string]*domain.Contact{"contact-1": {ID: "contact-1", State: domain.ContactInProgress}},
		events:      map[string]domain.Event{},
		maxAttempts: 3,
	}
	orch := dialogue.New(llm.NewConsentDetector(&scriptedLLMClient{reply: `{"intent":"POSITIVE"}`}), llm.NewQAOrchestrator(&scriptedLLMClient{}))
	ing := New(&memRepo{tx: tx}, eventbus.NewPublisher(&fakeBus{}), orch)

	turn, err := ing.HandleTurn(context.Background(), "call-4", domain.LanguageEnglish, "sure")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.EndCall {
		t.Fatalf("consent turn should not end the call, got %+v", turn)
	}
	snapshot := tx.attempts["call-4"].Metadata.Dialogue
	if snapshot == nil || snapshot.Phase != domain.PhaseQ1 {
		t.Fatalf("expected snapshot advanced to q1, got %+v", snapshot)
	}
}

func TestHandleTurnRefusalClosesAttemptAndPublishes(t *testing.T) {
	tx := &memTx{
		attempts: map[string]*domain.CallAttempt{
			"call-5": {ID: "attempt-5", ContactID: "contact-1", CampaignID: "camp-1", CallID: "call-5", AttemptNumber: 1, State: domain.CallAnswered},
		},
		contacts:    map[string]*domain.Contact{"contact-1": {ID: "contact-1", State: domain.ContactInProgress}},
		events:      map[string]domain.Event{},
		maxAttempts: 3,
	}
	orch := dialogue.New(llm.NewConsentDetector(&scriptedLLMClient{reply: `{"intent":"NEGATIVE"}`}), llm.NewQAOrchestrator(&scriptedLLMClient{}))
	bus := &fakeBus{}
	ing := New(&memRepo{tx: tx}, eventbus.NewPublisher(bus), orch)

	turn, err := ing.HandleTurn(context.Background(), "call-5", domain.LanguageEnglish, "no thanks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !turn.EndCall {
		t.Fatal("expected refusal to end the call")
	}
	if tx.contacts["contact-1"].State != domain.ContactRefused {
		t.Fatalf("contact state = %v, want refused", tx.contacts["contact-1"].State)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(bus.published))
	}
}
