// Package testutil provides test helpers, including PostgreSQL container
// management for repository integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sevenleaf/ascendant/internal/config"
	"github.com/sevenleaf/ascendant/internal/storage/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	return pc
}

// ApplyMigrations runs the schema creation SQL directly for tests.
// This avoids requiring the migrate tool in the test environment; keep the
// statements in sync with the files under migrations/.
//
// Precondition: Pool must be connected.
// Postcondition: The accounts, actors, and actor_effects tables exist.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id            BIGSERIAL    PRIMARY KEY,
			username      VARCHAR(64)  NOT NULL UNIQUE,
			password_hash TEXT         NOT NULL,
			role          VARCHAR(16)  NOT NULL DEFAULT 'player',
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_username ON accounts (username);

		CREATE TABLE IF NOT EXISTS actors (
			id                  UUID             PRIMARY KEY,
			name                VARCHAR(128)     NOT NULL,
			kind                VARCHAR(16)      NOT NULL,
			disposition         VARCHAR(16)      NOT NULL,
			owner_id            TEXT             NOT NULL DEFAULT '',
			hidden              BOOLEAN          NOT NULL DEFAULT FALSE,
			pos_x               DOUBLE PRECISION NOT NULL DEFAULT 0,
			pos_y               DOUBLE PRECISION NOT NULL DEFAULT 0,
			bases               JSONB            NOT NULL DEFAULT '{}',
			free_points         INT              NOT NULL DEFAULT 0,
			race_level          INT              NOT NULL DEFAULT 0,
			race_template       TEXT             NOT NULL DEFAULT '',
			class_level         INT              NOT NULL DEFAULT 0,
			class_template      TEXT             NOT NULL DEFAULT '',
			profession_level    INT              NOT NULL DEFAULT 0,
			profession_template TEXT             NOT NULL DEFAULT '',
			health_current      INT              NOT NULL DEFAULT 0,
			health_min          INT              NOT NULL DEFAULT 0,
			health_max          INT              NOT NULL DEFAULT 0,
			stamina_current     INT              NOT NULL DEFAULT 0,
			stamina_min         INT              NOT NULL DEFAULT 0,
			stamina_max         INT              NOT NULL DEFAULT 0,
			mana_current        INT              NOT NULL DEFAULT 0,
			mana_min            INT              NOT NULL DEFAULT 0,
			mana_max            INT              NOT NULL DEFAULT 0,
			items               JSONB            NOT NULL DEFAULT '[]',
			version             BIGINT           NOT NULL DEFAULT 1,
			created_at          TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_actors_owner ON actors (owner_id);

		CREATE TABLE IF NOT EXISTS actor_effects (
			id          UUID         PRIMARY KEY,
			actor_id    UUID         NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
			name        VARCHAR(128) NOT NULL,
			origin      TEXT         NOT NULL,
			category    VARCHAR(32)  NOT NULL,
			changes     JSONB        NOT NULL DEFAULT '[]',
			duration    INT          NOT NULL DEFAULT 0,
			start_round INT          NOT NULL DEFAULT 0,
			disabled    BOOLEAN      NOT NULL DEFAULT FALSE,
			stackable   BOOLEAN      NOT NULL DEFAULT FALSE,
			dot         JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_actor_effects_actor ON actor_effects (actor_id);
	`

	_, err := pc.RawPool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// NewPool starts a disposable container, applies the schema, and returns the
// raw pool. Convenience for repository tests.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return pc.RawPool
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.Config.User, pc.Config.Password,
		pc.Config.Host, pc.Config.Port,
		pc.Config.Name, pc.Config.SSLMode,
	)
}
