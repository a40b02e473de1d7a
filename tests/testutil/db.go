package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/common/config"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/db"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/migrations"
	"github.com/Alexander-D-Karpov/huddle/internal/retry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	once           sync.Once
	sharedDB       *db.DB
	dbErr          error
	migrationsDone bool
	mu             sync.Mutex
)

// Stable advisory lock so only one package resets/runs migrations at a time.
const advisoryLockID int64 = 0x68_75_64_64_6C_65

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:            envOr("DB_HOST", "localhost"),
		Port:            envIntOr("DB_PORT", 5432),
		User:            envOr("DB_USER", "postgres"),
		Password:        envOr("DB_PASSWORD", "postgres"),
		Database:        envOr("DB_NAME", "huddle_test"),
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

// GetDB returns a migrated database with empty tables, skipping the test when
// postgres is not reachable.
func GetDB(t *testing.T) *db.DB {
	t.Helper()

	mu.Lock()
	defer mu.Unlock()

	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		opts := db.DefaultOptions()
		opts.Retry = retry.Config{MaxAttempts: 1}
		sharedDB, dbErr = db.New(ctx, getConfig(), zap.NewNop(), opts)
	})
	if dbErr != nil {
		t.Skipf("testutil: postgres not available (%v)", dbErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Serialize schema reset + migrations across packages.
	conn, err := sharedDB.Pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	_, err = conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID)
	require.NoError(t, err)
	defer func() { _, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID) }()

	if !migrationsDone {
		resetPublicSchema(t, ctx, sharedDB)

		err = migrations.Run(ctx, sharedDB.Pool, zap.NewNop())
		require.NoError(t, err, "Failed to run migrations")
		migrationsDone = true
	}

	truncateAll(t, sharedDB)

	return sharedDB
}

func resetPublicSchema(t *testing.T, ctx context.Context, database *db.DB) {
	t.Helper()

	_, err := database.Pool.Exec(ctx, `DROP SCHEMA IF EXISTS public CASCADE`)
	require.NoError(t, err)

	_, err = database.Pool.Exec(ctx, `CREATE SCHEMA public`)
	require.NoError(t, err)

	_, _ = database.Pool.Exec(ctx, `GRANT ALL ON SCHEMA public TO postgres`)
	_, _ = database.Pool.Exec(ctx, `GRANT ALL ON SCHEMA public TO public`)
}

func truncateAll(t *testing.T, database *db.DB) {
	t.Helper()
	ctx := context.Background()

	for _, table := range []string{"messages", "bans"} {
		q := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if _, err := database.Pool.Exec(ctx, q); err != nil {
			t.Logf("Warning: failed to truncate table %s: %v", table, err)
		}
	}
}

func Teardown() {
	CacheTeardown()
	if sharedDB != nil {
		sharedDB.Close()
		sharedDB = nil
	}
}
