package contact

import (
	"context"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
)

// Service provides contact lookups and state transitions.
type Service struct {
	repo Repository
}

// New builds a Service over the given Repository.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the contact by id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// Resolve transitions the contact to its post-call state, recording the
// outcome that drove the transition (§4.2 step 3/4).
func (s *Service) Resolve(ctx context.Context, id string, state domain.ContactState, outcome string, now time.Time) error {
	return s.repo.UpdateState(ctx, id, state, outcome, now)
}
