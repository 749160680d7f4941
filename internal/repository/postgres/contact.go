package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

func (r *ContactRepo) Get(ctx context.Context, id string) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, phone, email, preferred_language, has_prior_consent,
		       do_not_call, state, attempts_count, last_attempt_at, last_outcome,
		       created_at, updated_at
		FROM contacts WHERE id = $1
	`, id).Scan(
		&c.ID, &c.CampaignID, &c.Phone, &c.Email, &c.PreferredLanguage, &c.HasPriorConsent,
		&c.DoNotCall, &c.State, &c.AttemptsCount, &c.LastAttemptAt, &c.LastOutcome,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) UpdateState(ctx context.Context, id string, state domain.ContactState, lastOutcome string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET state = $1, last_outcome = $2, updated_at = $3 WHERE id = $4
	`, state, lastOutcome, now, id)
	if err != nil {
		return fmt.Errorf("update contact state: %w", err)
	}
	return nil
}
