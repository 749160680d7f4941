package campaign

import (
	"context"
	"fmt"

	"github.com/voicesurvey/platform/internal/domain"
)

// Service provides campaign lookups and status-transition validation.
type Service struct {
	repo Repository
}

// New builds a Service over the given Repository.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the campaign by id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// ListRunning returns every campaign eligible for scheduling consideration.
func (s *Service) ListRunning(ctx context.Context) ([]domain.Campaign, error) {
	return s.repo.ListRunning(ctx)
}

// Transition moves the campaign to `to`, validating against the allowed
// transition table (§3) before writing.
func (s *Service) Transition(ctx context.Context, id string, to domain.CampaignStatus) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(c.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}
	return s.repo.UpdateStatus(ctx, id, to)
}
