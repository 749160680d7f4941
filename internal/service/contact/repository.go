package contact

import (
	"context"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
)

// Repository is the persistence capability this service needs.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.Contact, error)
	// UpdateState moves the contact to state, recording lastOutcome and
	// stamping updated_at with now; last_attempt_at is left unchanged.
	UpdateState(ctx context.Context, id string, state domain.ContactState, lastOutcome string, now time.Time) error
}
