package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/emailworker"
)

// EmailWorkerRepo implements emailworker.Repository against PostgreSQL.
type EmailWorkerRepo struct{ db *sql.DB }

// NewEmailWorkerRepo creates a Postgres-backed email worker repository.
func NewEmailWorkerRepo(db *sql.DB) *EmailWorkerRepo { return &EmailWorkerRepo{db: db} }

func (r *EmailWorkerRepo) GetCampaign(ctx context.Context, campaignID string) (domain.Campaign, error) {
	c := domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, completed_email_template_id, refused_email_template_id, not_reached_email_template_id
		FROM campaigns WHERE id = $1
	`, campaignID).Scan(&c.ID, &c.CompletedEmailTmplID, &c.RefusedEmailTmplID, &c.NotReachedEmailTmplID)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("get campaign for email worker: %w", err)
	}
	return c, nil
}

func (r *EmailWorkerRepo) GetNotificationByEventID(ctx context.Context, eventID string) (*domain.EmailNotification, error) {
	n := &domain.EmailNotification{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, contact_id, campaign_id, template_id, to_email, status,
		       retry_count, provider_message_id, error_message
		FROM email_notifications WHERE event_id = $1
	`, eventID).Scan(
		&n.ID, &n.EventID, &n.ContactID, &n.CampaignID, &n.TemplateID, &n.ToEmail, &n.Status,
		&n.RetryCount, &n.ProviderMessageID, &n.ErrorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification by event id: %w", err)
	}
	return n, nil
}

func (r *EmailWorkerRepo) CreateNotification(ctx context.Context, n domain.EmailNotification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_notifications (id, event_id, contact_id, campaign_id, template_id, to_email, status, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		ON CONFLICT (event_id) DO NOTHING
	`, n.ID, n.EventID, n.ContactID, n.CampaignID, n.TemplateID, n.ToEmail, n.Status)
	if err != nil {
		return fmt.Errorf("create email notification: %w", err)
	}
	return nil
}

func (r *EmailWorkerRepo) MarkSent(ctx context.Context, id, providerMessageID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_notifications SET status = $1, provider_message_id = $2 WHERE id = $3
	`, domain.EmailSent, providerMessageID, id)
	if err != nil {
		return fmt.Errorf("mark email notification sent: %w", err)
	}
	return nil
}

func (r *EmailWorkerRepo) MarkRetry(ctx context.Context, id string, errMsg string) (int, error) {
	var retryCount int
	err := r.db.QueryRowContext(ctx, `
		UPDATE email_notifications SET retry_count = retry_count + 1, error_message = $1
		WHERE id = $2
		RETURNING retry_count
	`, errMsg, id).Scan(&retryCount)
	if err != nil {
		return 0, fmt.Errorf("mark email notification retry: %w", err)
	}
	return retryCount, nil
}

func (r *EmailWorkerRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_notifications SET status = $1, error_message = $2 WHERE id = $3
	`, domain.EmailFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("mark email notification failed: %w", err)
	}
	return nil
}

var _ emailworker.Repository = (*EmailWorkerRepo)(nil)
