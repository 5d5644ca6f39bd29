package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kidpech/authbridge/internal/config"
)

// Manager owns the audit database handle.
type Manager struct {
	DB     *sqlx.DB
	Driver string
}

// Connect establishes the sqlx connection based on configuration.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	driverName := driverFor(cfg.Driver)

	conn, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == "sqlite" {
		// modernc sqlite serialises writers; one connection keeps :memory: databases shared.
		maxOpen = 1
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	mgr := &Manager{DB: conn, Driver: cfg.Driver}
	if cfg.AutoMigrate {
		if err := mgr.Migrate(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if logger != nil {
			logger.Info("database migrated", zap.String("driver", cfg.Driver))
		}
	}
	return mgr, nil
}

// Ping reports reachability for health checks.
func (m *Manager) Ping(ctx context.Context) error {
	return m.DB.PingContext(ctx)
}

// Close closes the DB handle.
func (m *Manager) Close() error {
	if m == nil || m.DB == nil {
		return nil
	}
	return m.DB.Close()
}

// driverFor maps config names onto registered database/sql drivers.
func driverFor(name string) string {
	switch name {
	case "postgres":
		return "pgx"
	default:
		return name
	}
}
