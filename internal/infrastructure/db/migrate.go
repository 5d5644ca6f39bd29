package db

import (
	"context"
	"fmt"
)

var loginAttemptsDDL = map[string]string{
	"postgres": `CREATE TABLE IF NOT EXISTS login_attempts (
		id VARCHAR(64) PRIMARY KEY,
		trigger_id VARCHAR(255) NOT NULL,
		provider VARCHAR(64) NOT NULL,
		locale VARCHAR(35) NOT NULL DEFAULT '',
		state VARCHAR(64) NOT NULL,
		error_kind VARCHAR(64) NOT NULL DEFAULT '',
		diagnostic TEXT NOT NULL DEFAULT '',
		username VARCHAR(255) NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NULL
	)`,
	"mysql": `CREATE TABLE IF NOT EXISTS login_attempts (
		id VARCHAR(64) PRIMARY KEY,
		trigger_id VARCHAR(255) NOT NULL,
		provider VARCHAR(64) NOT NULL,
		locale VARCHAR(35) NOT NULL DEFAULT '',
		state VARCHAR(64) NOT NULL,
		error_kind VARCHAR(64) NOT NULL DEFAULT '',
		diagnostic TEXT NOT NULL,
		username VARCHAR(255) NOT NULL DEFAULT '',
		started_at DATETIME(6) NOT NULL,
		finished_at DATETIME(6) NULL
	)`,
	"sqlite": `CREATE TABLE IF NOT EXISTS login_attempts (
		id TEXT PRIMARY KEY,
		trigger_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		locale TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		diagnostic TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NULL
	)`,
}

const loginAttemptsIndex = `CREATE INDEX idx_login_attempts_username ON login_attempts (username, started_at)`

// Migrate creates the audit schema when missing.
func (m *Manager) Migrate(ctx context.Context) error {
	ddl, ok := loginAttemptsDDL[m.Driver]
	if !ok {
		return fmt.Errorf("unsupported db driver %s", m.Driver)
	}
	if _, err := m.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate login_attempts: %w", err)
	}
	var exists int
	probe := m.DB.Rebind(indexProbe(m.Driver))
	if err := m.DB.GetContext(ctx, &exists, probe, "idx_login_attempts_username"); err != nil {
		return fmt.Errorf("probe index: %w", err)
	}
	if exists == 0 {
		if _, err := m.DB.ExecContext(ctx, loginAttemptsIndex); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func indexProbe(driver string) string {
	switch driver {
	case "postgres":
		return `SELECT COUNT(*) FROM pg_indexes WHERE indexname = ?`
	case "mysql":
		return `SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND index_name = ?`
	default:
		return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`
	}
}
