// internal/db/db.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Schema is the campaign history table. The live snapshot is never stored.
const Schema = `
CREATE TABLE IF NOT EXISTS campaign_runs (
    id            SERIAL PRIMARY KEY,
    campaign_name TEXT        NOT NULL,
    status        TEXT        NOT NULL,
    total         INTEGER     NOT NULL DEFAULT 0,
    sent          INTEGER     NOT NULL DEFAULT 0,
    succeeded     INTEGER     NOT NULL DEFAULT 0,
    failed        INTEGER     NOT NULL DEFAULT 0,
    not_sent      INTEGER     NOT NULL DEFAULT 0,
    pending       INTEGER     NOT NULL DEFAULT 0,
    archived_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS campaign_runs_archived_at_idx ON campaign_runs (archived_at DESC);
`

// Open connects to postgres and checks the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return conn, nil
}

// Migrate applies Schema. It is idempotent.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
