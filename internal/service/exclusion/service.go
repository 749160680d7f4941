package exclusion

import (
	"context"

	"github.com/voicesurvey/platform/internal/domain"
)

// Service checks and maintains the do-not-call exclusion list.
type Service struct {
	repo Repository
}

// New builds a Service over the given Repository.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// IsExcluded reports whether phone is on the exclusion list (exact match,
// §12).
func (s *Service) IsExcluded(ctx context.Context, phone string) (bool, error) {
	return s.repo.IsExcluded(ctx, phone)
}

// Add appends a new exclusion entry. The unique index on phone makes this
// safe to call repeatedly for the same number.
func (s *Service) Add(ctx context.Context, entry domain.ExclusionListEntry) error {
	return s.repo.Add(ctx, entry)
}
