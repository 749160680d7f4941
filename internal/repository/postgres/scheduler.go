package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voicesurvey/platform/internal/domain"
	"github.com/voicesurvey/platform/internal/scheduler"
)

// SchedulerRepo implements scheduler.Repository against PostgreSQL. It is a
// single wide repository — unlike the narrow per-entity repos above — for
// the same reason the teacher's send_worker.go keeps its claim-batch CTE in
// one function: the claim is one atomic, multi-table operation.
type SchedulerRepo struct {
	db *sql.DB
}

// NewSchedulerRepo creates a Postgres-backed scheduler repository.
func NewSchedulerRepo(db *sql.DB) *SchedulerRepo { return &SchedulerRepo{db: db} }

func (r *SchedulerRepo) CountInFlight(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM call_attempts WHERE outcome IS NULL
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count in-flight call attempts: %w", err)
	}
	return n, nil
}

// FetchCandidates selects up to limit eligible contacts (§4.1 step 3,
// conditions 1-7): campaign running, contact pending, not excluded, not
// do_not_call, within the campaign's call window (converted to the
// campaign's timezone), attempts_count < max_attempts, and either never
// attempted or past the retry interval since the last attempt.
func (r *SchedulerRepo) FetchCandidates(ctx context.Context, now time.Time, limit int) ([]scheduler.Candidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			c.id, c.campaign_id, c.phone, c.email, c.preferred_language, c.has_prior_consent,
			c.do_not_call, c.state, c.attempts_count, c.last_attempt_at, c.last_outcome,
			c.created_at, c.updated_at,
			camp.id, camp.status, camp.language, camp.timezone, camp.intro_script,
			camp.max_attempts, camp.retry_interval_minutes,
			camp.call_window_start_secs, camp.call_window_end_secs
		FROM contacts c
		JOIN campaigns camp ON camp.id = c.campaign_id
		WHERE camp.status = 'running'
		  AND c.state = 'pending'
		  AND c.do_not_call = false
		  AND c.attempts_count < camp.max_attempts
		  AND NOT EXISTS (SELECT 1 FROM exclusion_list_entries e WHERE e.phone = c.phone)
		  AND NOT EXISTS (
		      SELECT 1 FROM call_attempts a
		      WHERE a.contact_id = c.id AND a.outcome IS NULL
		  )
		  AND (
		      c.last_attempt_at IS NULL
		      OR c.last_attempt_at <= $1 - (camp.retry_interval_minutes || ' minutes')::interval
		  )
		  AND EXTRACT(EPOCH FROM ($1::timestamptz AT TIME ZONE camp.timezone)::time)
		        >= camp.call_window_start_secs
		  AND EXTRACT(EPOCH FROM ($1::timestamptz AT TIME ZONE camp.timezone)::time)
		        < camp.call_window_end_secs
		ORDER BY c.attempts_count ASC, c.last_attempt_at ASC NULLS FIRST, c.id ASC
		LIMIT $2
		FOR UPDATE OF c SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	defer rows.Close()

	var out []scheduler.Candidate
	for rows.Next() {
		var cand scheduler.Candidate
		var startSecs, endSecs int64
		if err := rows.Scan(
			&cand.Contact.ID, &cand.Contact.CampaignID, &cand.Contact.Phone, &cand.Contact.Email,
			&cand.Contact.PreferredLanguage, &cand.Contact.HasPriorConsent, &cand.Contact.DoNotCall,
			&cand.Contact.State, &cand.Contact.AttemptsCount, &cand.Contact.LastAttemptAt,
			&cand.Contact.LastOutcome, &cand.Contact.CreatedAt, &cand.Contact.UpdatedAt,
			&cand.Campaign.ID, &cand.Campaign.Status, &cand.Campaign.Language, &cand.Campaign.Timezone,
			&cand.Campaign.IntroScript, &cand.Campaign.MaxAttempts, &cand.Campaign.RetryIntervalMinutes,
			&startSecs, &endSecs,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		cand.Campaign.CallWindow = domain.CallWindow{Start: secondsToDuration(startSecs), End: secondsToDuration(endSecs)}
		out = append(out, cand)
	}

	if err := r.attachQuestions(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SchedulerRepo) attachQuestions(ctx context.Context, candidates []scheduler.Candidate) error {
	seen := map[string]bool{}
	for i := range candidates {
		campaignID := candidates[i].Campaign.ID
		if seen[campaignID] {
			continue
		}
		seen[campaignID] = true

		rows, err := r.db.QueryContext(ctx, `
			SELECT position, text, answer_type FROM campaign_questions
			WHERE campaign_id = $1 ORDER BY position ASC
		`, campaignID)
		if err != nil {
			return fmt.Errorf("load questions for %s: %w", campaignID, err)
		}
		var questions [3]domain.Question
		for rows.Next() {
			var q domain.Question
			if err := rows.Scan(&q.Position, &q.Text, &q.Type); err != nil {
				rows.Close()
				return fmt.Errorf("scan question: %w", err)
			}
			if q.Position >= 1 && q.Position <= 3 {
				questions[q.Position-1] = q
			}
		}
		rows.Close()

		for j := range candidates {
			if candidates[j].Campaign.ID == campaignID {
				candidates[j].Campaign.Questions = questions
			}
		}
	}
	return nil
}

// ClaimCandidate re-checks condition 8 (no non-terminal attempt exists for
// the contact) and, if still eligible, inserts the CallAttempt and advances
// the contact in one transaction (§4.1 step 4).
func (r *SchedulerRepo) ClaimCandidate(ctx context.Context, c scheduler.Candidate, now time.Time) (scheduler.ClaimResult, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return scheduler.ClaimResult{}, false, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	var inFlight bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM call_attempts WHERE contact_id = $1 AND outcome IS NULL)
	`, c.Contact.ID).Scan(&inFlight)
	if err != nil {
		return scheduler.ClaimResult{}, false, fmt.Errorf("recheck in-flight attempt: %w", err)
	}
	if inFlight {
		return scheduler.ClaimResult{}, false, nil
	}

	attempt := domain.CallAttempt{
		ID:            uuid.NewString(),
		ContactID:     c.Contact.ID,
		CampaignID:    c.Campaign.ID,
		AttemptNumber: c.Contact.AttemptsCount + 1,
		CallID:        scheduler.NewCallID(),
		State:         domain.CallQueued,
		StartedAt:     now,
	}
	metadata, err := json.Marshal(attempt.Metadata)
	if err != nil {
		return scheduler.ClaimResult{}, false, fmt.Errorf("marshal fresh attempt metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO call_attempts (id, contact_id, campaign_id, attempt_number, call_id, state, started_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, attempt.ID, attempt.ContactID, attempt.CampaignID, attempt.AttemptNumber, attempt.CallID, attempt.State, attempt.StartedAt, metadata)
	if err != nil {
		return scheduler.ClaimResult{}, false, fmt.Errorf("insert call attempt: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE contacts
		SET state = 'in_progress', attempts_count = attempts_count + 1, last_attempt_at = $1, updated_at = $1
		WHERE id = $2
	`, now, c.Contact.ID)
	if err != nil {
		return scheduler.ClaimResult{}, false, fmt.Errorf("update contact on claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return scheduler.ClaimResult{}, false, fmt.Errorf("commit claim tx: %w", err)
	}

	c.Contact.State = domain.ContactInProgress
	c.Contact.AttemptsCount++
	return scheduler.ClaimResult{Attempt: attempt, Contact: c.Contact, Campaign: c.Campaign}, true, nil
}

var _ scheduler.Repository = (*SchedulerRepo)(nil)
