package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/config"
	"github.com/kidpech/authbridge/internal/domain/login"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := Connect(context.Background(), config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxIdleConns: 1,
		AutoMigrate:  true,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestAttemptRepositorySaveAndList(t *testing.T) {
	mgr := newTestManager(t)
	repo := NewAttemptRepository(mgr.DB)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := base.Add(2 * time.Second)

	require.NoError(t, repo.Save(ctx, &login.Attempt{
		ID: "a1", TriggerID: "btn", Provider: "google", Locale: "en",
		State: login.StateExchangeSucceeded, Username: "alice",
		StartedAt: base, FinishedAt: &finished,
	}))
	require.NoError(t, repo.Save(ctx, &login.Attempt{
		ID: "a2", TriggerID: "btn", Provider: "github", Locale: "fr",
		State: login.StateExchangeSucceeded, Username: "alice",
		StartedAt: base.Add(time.Minute), FinishedAt: &finished,
	}))
	require.NoError(t, repo.Save(ctx, &login.Attempt{
		ID: "a3", TriggerID: "btn", Provider: "google",
		State: login.StateExchangeSucceeded, Username: "bob", StartedAt: base.Add(2 * time.Minute),
	}))
	require.NoError(t, repo.Save(ctx, &login.Attempt{
		ID: "a4", TriggerID: "btn", Provider: "google",
		State: login.StateExchangeFailed, ErrorKind: "backend_rejected", Diagnostic: "bad token",
		StartedAt: base.Add(3 * time.Minute),
	}))

	got, err := repo.ListBySubject(ctx, "alice", 10)

	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a2", got[0].ID)
	require.Equal(t, "github", got[0].Provider)
	require.Equal(t, "a1", got[1].ID)
	require.Equal(t, login.StateExchangeSucceeded, got[1].State)
	require.NotNil(t, got[1].FinishedAt)
	require.WithinDuration(t, finished, *got[1].FinishedAt, time.Second)

	limited, err := repo.ListBySubject(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	bob, err := repo.ListBySubject(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, bob, 1)
	require.Equal(t, "a3", bob[0].ID)
	require.Nil(t, bob[0].FinishedAt)

	none, err := repo.ListBySubject(ctx, "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMigrateIsIdempotent(t *testing.T) {
	mgr := newTestManager(t)

	require.NoError(t, mgr.Migrate(context.Background()))
	require.NoError(t, mgr.Ping(context.Background()))
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"}, zap.NewNop())
	require.Error(t, err)
}
