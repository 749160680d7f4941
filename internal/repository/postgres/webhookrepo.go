package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/webhookingestor"
)

// WebhookRepo implements webhookingestor.Repository against PostgreSQL,
// running every call through one serializable-enough transaction scoped by
// SELECT ... FOR UPDATE on the call attempt row (§4.2).
type WebhookRepo struct{ db *sql.DB }

// NewWebhookRepo creates a Postgres-backed webhook ingestor repository.
func NewWebhookRepo(db *sql.DB) *WebhookRepo { return &WebhookRepo{db: db} }

func (r *WebhookRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx webhookingestor.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin webhook tx: %w", err)
	}

	if err := fn(ctx, &webhookTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit webhook tx: %w", err)
	}
	return nil
}

type webhookTx struct{ tx *sql.Tx }

func (t *webhookTx) GetCallAttemptForUpdate(ctx context.Context, callID string) (*domain.CallAttempt, error) {
	a := &domain.CallAttempt{}
	var metadataRaw []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, contact_id, campaign_id, attempt_number, call_id, provider_call_id,
		       state, started_at, answered_at, ended_at, outcome, error_code, metadata
		FROM call_attempts WHERE call_id = $1
		FOR UPDATE
	`, callID).Scan(
		&a.ID, &a.ContactID, &a.CampaignID, &a.AttemptNumber, &a.CallID, &a.ProviderCallID,
		&a.State, &a.StartedAt, &a.AnsweredAt, &a.EndedAt, &a.Outcome, &a.ErrorCode, &metadataRaw,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get call attempt for update: %w", err)
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal call attempt metadata: %w", err)
		}
	}
	return a, nil
}

func (t *webhookTx) UpdateCallAttemptState(ctx context.Context, id string, state domain.CallState) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE call_attempts SET state = $1 WHERE id = $2`, state, id)
	if err != nil {
		return fmt.Errorf("update call attempt state: %w", err)
	}
	return nil
}

func (t *webhookTx) UpdateDialogueSnapshot(ctx context.Context, id string, metadata domain.CallAttemptMetadata) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal dialogue snapshot: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `UPDATE call_attempts SET metadata = $1 WHERE id = $2`, raw, id); err != nil {
		return fmt.Errorf("update dialogue snapshot: %w", err)
	}
	return nil
}

func (t *webhookTx) CloseCallAttempt(ctx context.Context, id string, outcome domain.CallOutcome, errorCode *string, endedAt time.Time, metadata domain.CallAttemptMetadata) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal call attempt metadata: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		UPDATE call_attempts
		SET outcome = $1, error_code = $2, ended_at = $3, metadata = $4
		WHERE id = $5
	`, outcome, errorCode, endedAt, raw, id)
	if err != nil {
		return fmt.Errorf("close call attempt: %w", err)
	}
	return nil
}

func (t *webhookTx) GetCampaignMaxAttempts(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT max_attempts FROM campaigns WHERE id = $1`, campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("get campaign max attempts: %w", err)
	}
	return n, nil
}

func (t *webhookTx) GetCampaignForDialogue(ctx context.Context, campaignID string) (domain.Campaign, error) {
	c := domain.Campaign{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, language, timezone, intro_script FROM campaigns WHERE id = $1
	`, campaignID).Scan(&c.ID, &c.Language, &c.Timezone, &c.IntroScript)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("get campaign for dialogue: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT position, text, answer_type FROM campaign_questions
		WHERE campaign_id = $1 ORDER BY position ASC
	`, campaignID)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("load campaign questions for dialogue: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.Position, &q.Text, &q.Type); err != nil {
			return domain.Campaign{}, fmt.Errorf("scan campaign question: %w", err)
		}
		if q.Position >= 1 && q.Position <= 3 {
			c.Questions[q.Position-1] = q
		}
	}
	return c, nil
}

func (t *webhookTx) UpdateContactState(ctx context.Context, id string, state domain.ContactState, lastOutcome string, now time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE contacts SET state = $1, last_outcome = $2, updated_at = $3 WHERE id = $4
	`, state, lastOutcome, now, id)
	if err != nil {
		return fmt.Errorf("update contact state: %w", err)
	}
	return nil
}

func (t *webhookTx) GetContactNotificationInfo(ctx context.Context, id string) (string, string, error) {
	var email *string
	var locale string
	err := t.tx.QueryRowContext(ctx, `
		SELECT email, preferred_language FROM contacts WHERE id = $1
	`, id).Scan(&email, &locale)
	if err != nil {
		return "", "", fmt.Errorf("get contact notification info: %w", err)
	}
	if email == nil {
		return "", locale, nil
	}
	return *email, locale, nil
}

func (t *webhookTx) InsertSurveyResponse(ctx context.Context, resp domain.SurveyResponse) error {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return fmt.Errorf("marshal survey answers: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO survey_responses (contact_id, campaign_id, call_attempt_id, answers, completed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, resp.ContactID, resp.CampaignID, resp.CallAttemptID, answers, resp.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert survey response: %w", err)
	}
	return nil
}

func (t *webhookTx) InsertEventIfNotExists(ctx context.Context, ev domain.Event) (bool, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return false, fmt.Errorf("marshal event payload: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO events (id, type, campaign_id, contact_id, call_attempt_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (type, contact_id, call_attempt_id) DO NOTHING
	`, ev.ID, ev.Type, ev.CampaignID, ev.ContactID, ev.CallAttemptID, payload, ev.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected after event insert: %w", err)
	}
	return n > 0, nil
}

var _ webhookingestor.Tx = (*webhookTx)(nil)
var _ webhookingestor.Repository = (*WebhookRepo)(nil)
