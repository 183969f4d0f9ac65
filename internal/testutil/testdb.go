package testutil

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/zhejian/shortlink/internal/infra"
)

// TestDB is a migrated Postgres container with a connection pool
type TestDB struct {
	Pool       *pgxpool.Pool
	ConnString string
	container  *postgres.PostgresContainer
}

// SetupTestDB starts a Postgres container and applies the embedded migrations
func SetupTestDB(ctx context.Context) (*TestDB, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, abort(ctx, container, err)
	}
	if err := infra.RunMigrations(connString); err != nil {
		return nil, abort(ctx, container, err)
	}

	pool, err := infra.NewPostgresPool(ctx, connString)
	if err != nil {
		return nil, abort(ctx, container, err)
	}

	return &TestDB{Pool: pool, ConnString: connString, container: container}, nil
}

// Cleanup truncates all tables, including the issued code history
func (t *TestDB) Cleanup(ctx context.Context) {
	if t == nil || t.Pool == nil {
		return
	}
	_, _ = t.Pool.Exec(ctx, "TRUNCATE TABLE urls, short_codes, users RESTART IDENTITY CASCADE")
}

// Teardown closes connections and terminates container
func (t *TestDB) Teardown(ctx context.Context) {
	if t.Pool != nil {
		t.Pool.Close()
	}
	if t.container != nil {
		_ = t.container.Terminate(ctx)
	}
}
