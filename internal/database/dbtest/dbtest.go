//go:build integration

// Package dbtest starts a throwaway PostgreSQL container for integration tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/Tomlord1122/todo-pics/internal/config"
	"github.com/Tomlord1122/todo-pics/internal/database"
)

// Start runs postgres in a container, applies migrations and returns a
// connected database service. Everything is torn down with the test.
func Start(t *testing.T) database.Service {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("todo_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("skipping integration test: could not start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DBConfig{
		Host:         host,
		Port:         port.Port(),
		Database:     "todo_test",
		Username:     "postgres",
		Password:     "postgres",
		Schema:       "public",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		MaxLifetime:  time.Minute,
		StoreTimeout: 5 * time.Second,
	}
	require.NoError(t, database.Migrate(cfg.DSN()))

	db, err := database.New(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
