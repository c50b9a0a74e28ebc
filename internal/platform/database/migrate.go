package database

import (
	"context"
	"fmt"
)

// Schema holds the statements that create the progress tables. Every
// statement is idempotent so Migrate can run on each start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS watch_progress (
		user_id          TEXT NOT NULL,
		content_id       TEXT NOT NULL,
		watched_duration DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (watched_duration >= 0),
		total_duration   DOUBLE PRECISION NOT NULL CHECK (total_duration > 0),
		is_completed     BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, content_id)
	)`,
	`CREATE TABLE IF NOT EXISTS challenge_attempts (
		id             UUID PRIMARY KEY,
		user_id        TEXT NOT NULL,
		content_id     TEXT NOT NULL,
		attempt_number INT NOT NULL CHECK (attempt_number >= 1),
		is_successful  BOOLEAN NOT NULL,
		submitted_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, content_id, attempt_number)
	)`,
	`CREATE INDEX IF NOT EXISTS challenge_attempts_content_idx
		ON challenge_attempts (content_id)`,
	`CREATE TABLE IF NOT EXISTS progression_events (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL,
		content_id TEXT,
		event_type TEXT NOT NULL,
		data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS progression_events_user_idx
		ON progression_events (user_id, created_at)`,
}

// Migrate applies Schema in order.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range Schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
