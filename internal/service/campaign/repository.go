package campaign

import (
	"context"

	"github.com/voicesurvey/platform/internal/domain"
)

// Repository is the persistence capability this service needs.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error
	ListRunning(ctx context.Context) ([]domain.Campaign, error)
}
