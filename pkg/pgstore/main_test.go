package pgstore_test

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/notifykit/pkg/pg"
)

const (
	testUser     = "notifykit"
	testPassword = "notifykit"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// startPostgres starts one container per test binary. Each test gets its
// own database on it.
func startPostgres(t *testing.T) string {
	t.Helper()

	containerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:17-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_USER":     testUser,
					"POSTGRES_PASSWORD": testPassword,
					"POSTGRES_DB":       "postgres",
				},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
			},
			Started: true,
		})
		if err != nil {
			containerErr = err
			return
		}

		host, err := c.Host(ctx)
		if err != nil {
			containerErr = err
			return
		}
		port, err := c.MappedPort(ctx, "5432/tcp")
		if err != nil {
			containerErr = err
			return
		}
		containerDSN = fmt.Sprintf("postgres://%s:%s@%s:%s", testUser, testPassword, host, port.Port())
	})

	require.NoError(t, containerErr, "start postgres container")
	return containerDSN
}

// newDB returns a pool on a fresh, migrated database.
func newDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	base := startPostgres(t)
	name := "nk_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgxpool.New(ctx, base+"/postgres?sslmode=disable")
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE DATABASE "+name)
	admin.Close()
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString: base + "/" + name + "?sslmode=disable",
		MaxOpenConns:     8,
		RetryAttempts:    3,
		RetryInterval:    500 * time.Millisecond,
		MigrationsTable:  "notifykit_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, cfg, slog.Default()))
	return pool
}

// ts returns a fixed instant with microsecond precision, which Postgres
// timestamps preserve.
func ts(offset time.Duration) time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC).Add(offset)
}
