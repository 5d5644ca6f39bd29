package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/kidpech/authbridge/internal/domain/login"
)

// AttemptRepository implements login.Repository using sqlx.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository constructs the repo.
func NewAttemptRepository(db *sqlx.DB) login.Repository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Save(ctx context.Context, a *login.Attempt) error {
	query := `INSERT INTO login_attempts (id, trigger_id, provider, locale, state, error_kind, diagnostic, username, started_at, finished_at)
		VALUES (:id, :trigger_id, :provider, :locale, :state, :error_kind, :diagnostic, :username, :started_at, :finished_at)`
	_, err := r.db.NamedExecContext(ctx, query, a)
	return err
}

func (r *AttemptRepository) ListBySubject(ctx context.Context, username string, limit int) ([]login.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.Rebind(`SELECT id, trigger_id, provider, locale, state, error_kind, diagnostic, username, started_at, finished_at
		FROM login_attempts WHERE username = ? ORDER BY started_at DESC LIMIT ?`)
	out := []login.Attempt{}
	if err := r.db.SelectContext(ctx, &out, query, username, limit); err != nil {
		return nil, err
	}
	return out, nil
}
