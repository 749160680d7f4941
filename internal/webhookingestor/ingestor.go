// Package webhookingestor translates provider telephony webhooks into
// authoritative CallAttempt/Contact transitions, idempotently and
// out-of-order tolerant (spec §4.2).
package webhookingestor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voicesurvey/platform/internal/dialogue"
	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/eventbus"
	"github.com/voicesurvey/platform/internal/pkg/logger"
	"github.com/voicesurvey/platform/internal/telephony"
)

// Ack describes how the HTTP layer should respond to the provider, per §4.2
// and §7's taxonomy.
type Ack int

const (
	// AckOK is a 200: the event was applied.
	AckOK Ack = iota
	// AckAcceptedNoOp is a 202: accepted but deliberately a no-op (unknown
	// call_id, or a monotonic/terminal replay) — never retried by us.
	AckAcceptedNoOp
	// AckRetryable is a 5xx: a transient store error, the provider should retry.
	AckRetryable
)

// Result is the outcome of handling one webhook delivery.
type Result struct {
	Ack    Ack
	Reason string
}

var statusToCallState = map[telephony.WebhookEventType]domain.CallState{
	telephony.EventInitiated: domain.CallInitiated,
	telephony.EventRinging:   domain.CallRinging,
	telephony.EventAnswered:  domain.CallAnswered,
}

var statusToOutcome = map[telephony.WebhookEventType]domain.CallOutcome{
	telephony.EventCompleted: domain.OutcomeCompleted,
	telephony.EventFailed:    domain.OutcomeFailed,
	telephony.EventNoAnswer:  domain.OutcomeNoAnswer,
	telephony.EventBusy:      domain.OutcomeBusy,
}

// providerDeclineErrorCode is the error_code a provider uses to signal an
// explicit decline distinct from a generic failure (§9 open question i).
const providerDeclineErrorCode = "declined"

// Ingestor is the webhook ingestor and call-attempt state machine.
type Ingestor struct {
	repo      Repository
	publisher *eventbus.Publisher
	dialogue  *dialogue.Orchestrator
}

// New builds an Ingestor. orchestrator may be nil for tests that only
// exercise call-progress webhooks and never drive a live turn.
func New(repo Repository, publisher *eventbus.Publisher, orchestrator *dialogue.Orchestrator) *Ingestor {
	return &Ingestor{repo: repo, publisher: publisher, dialogue: orchestrator}
}

// Handle applies one parsed webhook event to the matching CallAttempt.
func (g *Ingestor) Handle(ctx context.Context, ev telephony.WebhookEvent) (Result, error) {
	var toPublish *domain.Event

	err := g.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		attempt, err := tx.GetCallAttemptForUpdate(ctx, ev.CallID)
		if err != nil {
			return fmt.Errorf("ingestor: load call attempt: %w", err)
		}
		if attempt == nil {
			logger.Warn("webhook for unknown call_id", "call_id", ev.CallID, "event_type", string(ev.EventType))
			return errUnknownCallID
		}
		if attempt.IsTerminal() {
			// Monotonic: a terminal attempt never regresses (P5).
			return errAlreadyTerminal
		}

		if !ev.EventType.IsTerminal() {
			return g.applyIntermediate(ctx, tx, attempt, ev)
		}

		published, err := g.applyTerminal(ctx, tx, attempt, ev)
		if err != nil {
			return err
		}
		toPublish = published
		return nil
	})

	switch {
	case err == nil:
		if toPublish != nil {
			if pubErr := g.publisher.Publish(ctx, *toPublish); pubErr != nil {
				logger.Error("event publish failed after commit", "event_id", toPublish.ID, "error", pubErr.Error())
			}
		}
		return Result{Ack: AckOK}, nil
	case errors.Is(err, errUnknownCallID):
		return Result{Ack: AckAcceptedNoOp, Reason: "unknown call_id"}, nil
	case errors.Is(err, errAlreadyTerminal):
		return Result{Ack: AckAcceptedNoOp, Reason: "call attempt already terminal"}, nil
	default:
		return Result{Ack: AckRetryable}, err
	}
}

var errUnknownCallID = errors.New("webhookingestor: unknown call_id")
var errAlreadyTerminal = errors.New("webhookingestor: call attempt already terminal")

// TurnResult is what the live call leg should do next: speak Prompt, or hang
// up because the dialogue (and the call attempt) has ended.
type TurnResult struct {
	Result  Result
	Prompt  string
	EndCall bool
}

// HandleTurn advances one per-call dialogue turn (the provider's
// speech-result callback, §4.3) and, on a terminal transition, runs the
// same contact-resolution and event-emission path a closing webhook would.
func (g *Ingestor) HandleTurn(ctx context.Context, callID string, language domain.Language, utterance string) (TurnResult, error) {
	if g.dialogue == nil {
		return TurnResult{}, fmt.Errorf("ingestor: HandleTurn called without a dialogue orchestrator configured")
	}

	var turn TurnResult
	var toPublish *domain.Event
	now := time.Now()

	err := g.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		attempt, err := tx.GetCallAttemptForUpdate(ctx, callID)
		if err != nil {
			return fmt.Errorf("ingestor: load call attempt: %w", err)
		}
		if attempt == nil {
			return errUnknownCallID
		}
		if attempt.IsTerminal() {
			return errAlreadyTerminal
		}

		session := attempt.Metadata.Dialogue
		if session == nil {
			fresh := dialogue.NewSession(now)
			session = &fresh
		}

		campaign, err := tx.GetCampaignForDialogue(ctx, attempt.CampaignID)
		if err != nil {
			return fmt.Errorf("ingestor: load campaign for dialogue: %w", err)
		}

		step, err := g.dialogue.Step(ctx, *session, campaign, language, utterance)
		if err != nil {
			return fmt.Errorf("ingestor: dialogue step: %w", err)
		}

		metadata := attempt.Metadata
		metadata.Dialogue = &step.Session
		if err := tx.UpdateDialogueSnapshot(ctx, attempt.ID, metadata); err != nil {
			return fmt.Errorf("ingestor: persist dialogue snapshot: %w", err)
		}

		turn = TurnResult{Prompt: step.Prompt, EndCall: step.EndCall}
		if !step.EndCall {
			return nil
		}

		if err := tx.CloseCallAttempt(ctx, attempt.ID, step.Outcome, nil, now, metadata); err != nil {
			return fmt.Errorf("ingestor: close call attempt after dialogue end: %w", err)
		}
		published, err := g.finalizeOutcome(ctx, tx, attempt, step.Outcome, metadata, now)
		if err != nil {
			return err
		}
		toPublish = published
		return nil
	})

	switch {
	case err == nil:
		if toPublish != nil {
			if pubErr := g.publisher.Publish(ctx, *toPublish); pubErr != nil {
				logger.Error("event publish failed after dialogue-end commit", "event_id", toPublish.ID, "error", pubErr.Error())
			}
		}
		turn.Result = Result{Ack: AckOK}
		return turn, nil
	case errors.Is(err, errUnknownCallID):
		return TurnResult{Result: Result{Ack: AckAcceptedNoOp, Reason: "unknown call_id"}}, nil
	case errors.Is(err, errAlreadyTerminal):
		return TurnResult{Result: Result{Ack: AckAcceptedNoOp, Reason: "call attempt already terminal"}}, nil
	default:
		return TurnResult{Result: Result{Ack: AckRetryable}}, err
	}
}

// applyIntermediate advances a non-terminal CallState only if the new event
// ranks strictly forward of the attempt's current state (§4.2's
// out-of-order reconciliation).
func (g *Ingestor) applyIntermediate(ctx context.Context, tx Tx, attempt *domain.CallAttempt, ev telephony.WebhookEvent) error {
	next, ok := statusToCallState[ev.EventType]
	if !ok {
		return nil
	}
	if next.Rank() <= attempt.State.Rank() {
		return nil
	}
	return tx.UpdateCallAttemptState(ctx, attempt.ID, next)
}

// applyTerminal closes the call attempt, resolves the contact, and writes
// the idempotent survey event (§4.2 "On terminal event").
func (g *Ingestor) applyTerminal(ctx context.Context, tx Tx, attempt *domain.CallAttempt, ev telephony.WebhookEvent) (*domain.Event, error) {
	metadata := attempt.Metadata
	metadata.RawStatus = ev.RawStatus
	metadata.AnsweredBy = ev.AnsweredBy

	outcome := resolveOutcome(ev, metadata)
	if outcome == domain.OutcomeRefused && metadata.Dialogue == nil {
		metadata.Dialogue = &domain.DialogueSession{Phase: domain.PhaseRefused, RefusalSource: domain.RefusalProvider}
	}

	var errorCode *string
	if ev.ErrorCode != "" {
		ec := ev.ErrorCode
		errorCode = &ec
	}

	if err := tx.CloseCallAttempt(ctx, attempt.ID, outcome, errorCode, ev.Timestamp, metadata); err != nil {
		return nil, fmt.Errorf("ingestor: close call attempt: %w", err)
	}

	return g.finalizeOutcome(ctx, tx, attempt, outcome, metadata, ev.Timestamp)
}

// finalizeOutcome runs the contact-resolution and event-emission steps
// shared by a closing webhook (applyTerminal) and a dialogue turn that ends
// the call itself (HandleTurn): resolve the contact's next state, persist
// the survey response on completion, and emit the idempotent survey event.
func (g *Ingestor) finalizeOutcome(ctx context.Context, tx Tx, attempt *domain.CallAttempt, outcome domain.CallOutcome, metadata domain.CallAttemptMetadata, now time.Time) (*domain.Event, error) {
	maxAttempts, err := tx.GetCampaignMaxAttempts(ctx, attempt.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("ingestor: load campaign: %w", err)
	}

	eventType, shouldEmit := domain.EventFor(outcome, attempt.AttemptNumber, maxAttempts)

	var nextState domain.ContactState
	var lastOutcome string
	switch outcome {
	case domain.OutcomeCompleted:
		nextState = domain.ContactCompleted
		lastOutcome = string(domain.OutcomeCompleted)
	case domain.OutcomeRefused:
		nextState = domain.ContactRefused
		lastOutcome = string(domain.OutcomeRefused)
	default:
		if shouldEmit {
			nextState = domain.ContactNotReached
		} else {
			nextState = domain.ContactPending
		}
		lastOutcome = string(outcome)
	}

	if err := tx.UpdateContactState(ctx, attempt.ContactID, nextState, lastOutcome, now); err != nil {
		return nil, fmt.Errorf("ingestor: update contact: %w", err)
	}

	if outcome == domain.OutcomeCompleted && metadata.Dialogue != nil {
		resp := domain.SurveyResponse{
			ContactID:     attempt.ContactID,
			CampaignID:    attempt.CampaignID,
			CallAttemptID: attempt.ID,
			CompletedAt:   now,
		}
		for i := 0; i < 3; i++ {
			resp.Answers[i] = domain.QuestionAnswer{
				Text:       metadata.Dialogue.CollectedAnswers[i],
				Confidence: metadata.Dialogue.Confidences[i],
			}
		}
		if err := tx.InsertSurveyResponse(ctx, resp); err != nil {
			return nil, fmt.Errorf("ingestor: insert survey response: %w", err)
		}
	}

	if !shouldEmit {
		return nil, nil
	}

	email, locale, err := tx.GetContactNotificationInfo(ctx, attempt.ContactID)
	if err != nil {
		return nil, fmt.Errorf("ingestor: load contact notification info: %w", err)
	}

	payload := domain.EventPayload{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		CampaignID:    attempt.CampaignID,
		ContactID:     attempt.ContactID,
		CallAttemptID: attempt.ID,
		Timestamp:     now,
		AttemptsCount: attempt.AttemptNumber,
		Outcome:       string(outcome),
		Email:         email,
		Locale:        locale,
		PayloadVersion: "1.0",
	}
	if metadata.Dialogue != nil {
		payload.Answers = metadata.Dialogue.CollectedAnswers[:]
	}

	attemptID := attempt.ID
	domainEvent := domain.Event{
		ID:            payload.EventID,
		Type:          eventType,
		CampaignID:    attempt.CampaignID,
		ContactID:     attempt.ContactID,
		CallAttemptID: &attemptID,
		Payload:       payload,
		CreatedAt:     now,
	}

	inserted, err := tx.InsertEventIfNotExists(ctx, domainEvent)
	if err != nil {
		return nil, fmt.Errorf("ingestor: insert event: %w", err)
	}
	if !inserted {
		return nil, nil
	}
	return &domainEvent, nil
}

// resolveOutcome maps a terminal webhook event, informed by the dialogue
// snapshot, to a CallOutcome (§9 open question i).
//
// A "completed" webhook whose dialogue snapshot shows a consent refusal
// yields OutcomeRefused with RefusalSource=dialogue. A provider-reported
// decline (error_code="declined", no dialogue session ever started) also
// yields OutcomeRefused; applyTerminal then records RefusalSource=provider
// in a refused dialogue snapshot. A "completed" webhook
// whose dialogue never reached `done` (caller dropped mid-survey) is
// recorded as OutcomeFailed rather than a false completion.
func resolveOutcome(ev telephony.WebhookEvent, metadata domain.CallAttemptMetadata) domain.CallOutcome {
	if ev.EventType != telephony.EventCompleted {
		if outcome, ok := statusToOutcome[ev.EventType]; ok {
			return outcome
		}
		return domain.OutcomeFailed
	}

	if metadata.Dialogue == nil {
		if ev.ErrorCode == providerDeclineErrorCode {
			return domain.OutcomeRefused
		}
		return domain.OutcomeFailed
	}

	switch metadata.Dialogue.Phase {
	case domain.PhaseDone:
		return domain.OutcomeCompleted
	case domain.PhaseRefused:
		if metadata.Dialogue.RefusalSource == "" {
			metadata.Dialogue.RefusalSource = domain.RefusalDialogue
		}
		return domain.OutcomeRefused
	default:
		return domain.OutcomeFailed
	}
}
