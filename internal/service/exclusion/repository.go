package exclusion

import (
	"context"

	"github.com/voicesurvey/platform/internal/domain"
)

// Repository is the persistence capability this service needs.
type Repository interface {
	IsExcluded(ctx context.Context, phone string) (bool, error)
	Add(ctx context.Context, entry domain.ExclusionListEntry) error
}
