package webhookingestor

import (
	"context"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
)

// Repository runs the ingestor's per-webhook unit of work inside a single
// database transaction (§4.2: "all steps run in one transaction").
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of row-locked operations available within one webhook's
// transaction.
type Tx interface {
	// GetCallAttemptForUpdate locks and returns the call attempt for callID,
	// or nil if no such attempt exists (unknown call_id, §4.2 precondition).
	GetCallAttemptForUpdate(ctx context.Context, callID string) (*domain.CallAttempt, error)
	// UpdateCallAttemptState advances a non-terminal CallAttempt.State.
	UpdateCallAttemptState(ctx context.Context, id string, state domain.CallState) error
	// UpdateDialogueSnapshot persists the latest session snapshot (§12).
	UpdateDialogueSnapshot(ctx context.Context, id string, metadata domain.CallAttemptMetadata) error
	// CloseCallAttempt sets the terminal outcome and closes the attempt.
	CloseCallAttempt(ctx context.Context, id string, outcome domain.CallOutcome, errorCode *string, endedAt time.Time, metadata domain.CallAttemptMetadata) error
	// GetCampaignMaxAttempts returns a campaign's configured max_attempts.
	GetCampaignMaxAttempts(ctx context.Context, campaignID string) (int, error)
	// GetCampaignForDialogue loads the campaign fields the Dialogue
	// Orchestrator needs to drive a turn (questions, intro script).
	GetCampaignForDialogue(ctx context.Context, campaignID string) (domain.Campaign, error)
	// UpdateContactState transitions the contact and records the outcome.
	UpdateContactState(ctx context.Context, id string, state domain.ContactState, lastOutcome string, now time.Time) error
	// GetContactNotificationInfo loads the fields the Survey Event Publisher
	// needs to populate EventPayload.Email/Locale (§4.4).
	GetContactNotificationInfo(ctx context.Context, id string) (email, locale string, err error)
	// InsertSurveyResponse writes the captured answers exactly once (I4, I5).
	InsertSurveyResponse(ctx context.Context, resp domain.SurveyResponse) error
	// InsertEventIfNotExists inserts ev, returning false if an equivalent
	// event already exists for (event_type, contact_id, call_attempt_id) —
	// the idempotency backbone of P6.
	InsertEventIfNotExists(ctx context.Context, ev domain.Event) (bool, error)
}
