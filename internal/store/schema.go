package store

import (
	"context"
	"fmt"
)

// Schema statements are executed in order on startup. Everything is
// IF NOT EXISTS so repeated boots are harmless.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT PRIMARY KEY,
		type          TEXT NOT NULL,
		payload       JSONB NOT NULL DEFAULT '{}',
		status        TEXT NOT NULL DEFAULT 'queued',
		attempts      INT NOT NULL DEFAULT 0,
		max_attempts  INT NOT NULL DEFAULT 3,
		scheduled_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		locked_at     TIMESTAMPTZ,
		locked_by     TEXT,
		started_at    TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ,
		last_error    TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_claim
		ON jobs (status, scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS generated_content (
		id            TEXT PRIMARY KEY,
		lesson_id     TEXT NOT NULL,
		language      TEXT NOT NULL,
		content_type  TEXT NOT NULL,
		content_hash  TEXT NOT NULL,
		body          JSONB,
		status        TEXT NOT NULL DEFAULT 'queued',
		error         TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (lesson_id, language, content_type, content_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS audio_assets (
		id            TEXT PRIMARY KEY,
		lesson_id     TEXT NOT NULL,
		language      TEXT NOT NULL,
		content_hash  TEXT NOT NULL,
		url           TEXT,
		duration_sec  DOUBLE PRECISION,
		status        TEXT NOT NULL DEFAULT 'queued',
		error         TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (lesson_id, language, content_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS token_ledger (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		course_id      TEXT NOT NULL,
		amount         DOUBLE PRECISION NOT NULL,
		token_symbol   TEXT NOT NULL,
		wallet_address TEXT,
		tx_hash        TEXT,
		status         TEXT NOT NULL DEFAULT 'pending',
		error          TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, course_id)
	)`,
}

// RunMigrations applies the embedded schema statements in order.
func (s *Postgres) RunMigrations(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration %d: %w", i, err)
		}
	}
	return nil
}
