// Package emailworker consumes survey lifecycle events and sends the
// templated notification emails they trigger (§4.5).
package emailworker

import (
	"context"

	"github.com/voicesurvey/platform/internal/domain"
)

// Repository is the persistence surface the Email Worker needs: looking up
// the campaign a payload belongs to (to resolve its template ids) and the
// idempotent EmailNotification lifecycle keyed on event_id.
type Repository interface {
	// GetCampaign loads the campaign's per-outcome email template ids
	// (§4.5 step 2: "resolve campaign -> template by event_type").
	GetCampaign(ctx context.Context, campaignID string) (domain.Campaign, error)
	// GetNotificationByEventID returns the existing notification for
	// eventID, or nil if none exists yet (§4.5 step 4).
	GetNotificationByEventID(ctx context.Context, eventID string) (*domain.EmailNotification, error)
	// CreateNotification inserts a new pending EmailNotification.
	CreateNotification(ctx context.Context, n domain.EmailNotification) error
	// MarkSent records a successful send.
	MarkSent(ctx context.Context, id, providerMessageID string) error
	// MarkRetry increments the retry counter on a failed send.
	MarkRetry(ctx context.Context, id string, errMsg string) (retryCount int, err error)
	// MarkFailed marks a notification permanently failed after exhausting
	// retries.
	MarkFailed(ctx context.Context, id string, errMsg string) error
}
