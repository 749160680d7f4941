package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, language, timezone, intro_script, max_attempts,
		       retry_interval_minutes, retry_template_id, completed_email_template_id,
		       refused_email_template_id, not_reached_email_template_id,
		       created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Status, &c.Language, &c.Timezone, &c.IntroScript, &c.MaxAttempts,
		&c.RetryIntervalMinutes, &c.RetryTemplateID, &c.CompletedEmailTmplID,
		&c.RefusedEmailTmplID, &c.NotReachedEmailTmplID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if err := r.loadQuestions(ctx, c); err != nil {
		return nil, err
	}
	if err := r.loadCallWindow(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) loadQuestions(ctx context.Context, c *domain.Campaign) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, text, answer_type FROM campaign_questions
		WHERE campaign_id = $1 ORDER BY position ASC
	`, c.ID)
	if err != nil {
		return fmt.Errorf("load campaign questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.Position, &q.Text, &q.Type); err != nil {
			return fmt.Errorf("scan campaign question: %w", err)
		}
		if q.Position >= 1 && q.Position <= 3 {
			c.Questions[q.Position-1] = q
		}
	}
	return nil
}

func (r *CampaignRepo) loadCallWindow(ctx context.Context, c *domain.Campaign) error {
	var startSecs, endSecs int64
	err := r.db.QueryRowContext(ctx, `
		SELECT call_window_start_secs, call_window_end_secs FROM campaigns WHERE id = $1
	`, c.ID).Scan(&startSecs, &endSecs)
	if err != nil {
		return fmt.Errorf("load call window: %w", err)
	}
	c.CallWindow = domain.CallWindow{
		Start: secondsToDuration(startSecs),
		End:   secondsToDuration(endSecs),
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) ListRunning(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, language, timezone, intro_script, max_attempts,
		       retry_interval_minutes, created_at, updated_at
		FROM campaigns WHERE status = $1
	`, domain.CampaignRunning)
	if err != nil {
		return nil, fmt.Errorf("list running campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.Status, &c.Language, &c.Timezone, &c.IntroScript,
			&c.MaxAttempts, &c.RetryIntervalMinutes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}
