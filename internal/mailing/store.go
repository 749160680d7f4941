package mailing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrTemplateNotFound is returned by TemplateStore.Get when no row matches.
var ErrTemplateNotFound = errors.New("mailing: template not found")

// TemplateStore resolves a campaign's per-event-type template row (§4.5
// step 2: "resolve campaign -> template by event_type; if no template,
// acknowledge and no-op").
type TemplateStore interface {
	Get(ctx context.Context, templateID string) (Template, error)
}

// PostgresTemplateStore implements TemplateStore against the
// email_templates table (subject/html/text Liquid sources, §4.5 step 3).
type PostgresTemplateStore struct {
	db *sql.DB
}

// NewPostgresTemplateStore builds a Postgres-backed TemplateStore.
func NewPostgresTemplateStore(db *sql.DB) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: db}
}

func (s *PostgresTemplateStore) Get(ctx context.Context, templateID string) (Template, error) {
	var tpl Template
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, html_body, text_body FROM email_templates WHERE id = $1
	`, templateID).Scan(&tpl.ID, &tpl.Subject, &tpl.HTML, &tpl.Text)
	if err == sql.ErrNoRows {
		return Template{}, ErrTemplateNotFound
	}
	if err != nil {
		return Template{}, fmt.Errorf("load template %s: %w", templateID, err)
	}
	return tpl, nil
}
