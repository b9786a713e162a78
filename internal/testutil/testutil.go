package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/itemdesk/itemdesk/internal/migrate"
	"github.com/itemdesk/itemdesk/internal/model"
	"github.com/itemdesk/itemdesk/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every table created by the embedded migrations and
// re-applies them from scratch.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	migs, err := migrate.Load(migrations.FS)
	if err != nil {
		return err
	}

	for i := len(migs) - 1; i >= 0; i-- {
		if _, err := pool.Exec(ctx, migs[i].Down); err != nil {
			return fmt.Errorf("apply %d_%s down migration: %w", migs[i].Version, migs[i].Name, err)
		}
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}

	for _, m := range migs {
		if _, err := pool.Exec(ctx, m.Up); err != nil {
			return fmt.Errorf("apply %d_%s up migration: %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates an unsaved user with a unique username.
// The password hash is a fixed placeholder; tests that log in hash their own.
func NewTestUser(t testing.TB, prefix string) *model.User {
	t.Helper()
	return &model.User{
		Username:     UniqueUsername(prefix),
		PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$c29tZXNhbHQ$aGFzaA",
	}
}

// NewTestItem creates an unsaved item owned by userID.
func NewTestItem(t testing.TB, userID int64, name string) *model.Item {
	t.Helper()
	return &model.Item{
		UserID:      &userID,
		Name:        name,
		Description: "A " + name,
		Price:       "10.50",
	}
}

// UniqueUsername generates a unique username for tests.
func UniqueUsername(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
