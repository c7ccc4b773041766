// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bizplan-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// schemaStatements create the plan tables when they do not exist yet.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS business_plans (
		id               UUID PRIMARY KEY,
		project_id       TEXT NOT NULL DEFAULT '',
		title            TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		business_idea    TEXT NOT NULL DEFAULT '',
		answers          JSONB NOT NULL DEFAULT '[]',
		sections         JSONB,
		generation_error JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS plan_suggestions (
		id         UUID PRIMARY KEY,
		plan_id    UUID NOT NULL REFERENCES business_plans(id) ON DELETE CASCADE,
		type       TEXT NOT NULL,
		content    TEXT NOT NULL,
		priority   TEXT NOT NULL DEFAULT 'medium',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_plan_suggestions_plan_id ON plan_suggestions(plan_id)`,
}

// EnsureSchema creates the plan tables inside one transaction.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit()
}
