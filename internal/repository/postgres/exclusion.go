package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/voicesurvey/platform/internal/domain"
)

// ExclusionRepo implements exclusion.Repository against PostgreSQL.
type ExclusionRepo struct{ db *sql.DB }

// NewExclusionRepo creates a Postgres-backed exclusion-list repository.
func NewExclusionRepo(db *sql.DB) *ExclusionRepo { return &ExclusionRepo{db: db} }

func (r *ExclusionRepo) IsExcluded(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM exclusion_list_entries WHERE phone = $1)`,
		phone,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check exclusion: %w", err)
	}
	return exists, nil
}

func (r *ExclusionRepo) Add(ctx context.Context, entry domain.ExclusionListEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exclusion_list_entries (phone, reason, source, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (phone) DO UPDATE SET reason = $2, source = $3
	`, entry.Phone, entry.Reason, entry.Source)
	if err != nil {
		return fmt.Errorf("add exclusion entry: %w", err)
	}
	return nil
}
