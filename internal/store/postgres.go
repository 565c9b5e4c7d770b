package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"coursejobs/internal/models"
)

// Postgres implements JobStore on a pgx pool. Claim relies on
// FOR UPDATE SKIP LOCKED so workers that lose the race move on immediately
// instead of blocking on each other's rows.
type Postgres struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string, lockTimeout time.Duration) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Postgres{pool: pool, lockTimeout: lockTimeout}, nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying pool so the result-record repositories can
// share the same connection set.
func (s *Postgres) Pool() *pgxpool.Pool { return s.pool }

func (s *Postgres) Enqueue(ctx context.Context, typ models.JobType, payload any, opts EnqueueOptions) (models.Job, error) {
	if !typ.Valid() {
		return models.Job{}, fmt.Errorf("%w: %q", ErrUnknownJobType, typ)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.ScheduledAt.IsZero() {
		opts.ScheduledAt = time.Now().UTC()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return models.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, type, payload, status, attempts, max_attempts, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $7)
	`, id, string(typ), body, models.StatusQueued, opts.MaxAttempts, opts.ScheduledAt, now)
	if err != nil {
		return models.Job{}, fmt.Errorf("insert job: %w", err)
	}

	return models.Job{
		ID:          id,
		Type:        typ,
		Payload:     body,
		Status:      models.StatusQueued,
		MaxAttempts: opts.MaxAttempts,
		ScheduledAt: opts.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// claimSQL locks and takes exactly one eligible job. Eligibility covers both
// queued-and-due rows and processing rows whose lock has expired. The latter
// is how work abandoned by a crashed worker re-enters circulation. Ordering
// is FIFO by scheduled_at, i.e. by eligibility rather than insertion.
const claimSQL = `
WITH candidate AS (
	SELECT id FROM jobs
	WHERE (status = 'queued' AND scheduled_at <= now())
	   OR (status = 'processing' AND locked_at < now() - make_interval(secs => $2))
	ORDER BY scheduled_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
UPDATE jobs
SET status       = 'processing',
    attempts     = attempts + 1,
    locked_at    = now(),
    locked_by    = $1,
    started_at   = now(),
    updated_at   = now()
FROM candidate
WHERE jobs.id = candidate.id
RETURNING jobs.id`

func (s *Postgres) Claim(ctx context.Context, workerID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, claimSQL, workerID, s.lockTimeout.Seconds()).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("claim job: %w", err)
	}
	return id, nil
}

func (s *Postgres) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, type, payload, status, attempts, max_attempts, scheduled_at,
		       locked_at, locked_by, started_at, completed_at, last_error,
		       created_at, updated_at
		FROM jobs WHERE id = $1
	`, id)

	var (
		job      models.Job
		typ      string
		payload  []byte
		lockedAt pgtype.Timestamptz
		lockedBy pgtype.Text
		started  pgtype.Timestamptz
		finished pgtype.Timestamptz
		lastErr  pgtype.Text
	)
	err := row.Scan(&job.ID, &typ, &payload, &job.Status, &job.Attempts, &job.MaxAttempts,
		&job.ScheduledAt, &lockedAt, &lockedBy, &started, &finished, &lastErr,
		&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, fmt.Errorf("job %s not found: %w", id, err)
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}

	job.Type = models.JobType(typ)
	job.Payload = payload
	job.LockedAt = tsPtr(lockedAt)
	job.LockedBy = textPtr(lockedBy)
	job.StartedAt = tsPtr(started)
	job.CompletedAt = tsPtr(finished)
	job.LastError = textPtr(lastErr)
	return job, nil
}

func (s *Postgres) Complete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, completed_at = now(), locked_at = NULL, locked_by = NULL, updated_at = now()
		WHERE id = $1
	`, id, models.StatusCompleted)
	return err
}

// Fail re-queues with backoff or dead-letters in a single statement, so the
// decision reads the same attempts value it acts on.
func (s *Postgres) Fail(ctx context.Context, id string, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = CASE WHEN attempts >= max_attempts THEN 'dead' ELSE 'queued' END,
		    scheduled_at = CASE WHEN attempts >= max_attempts THEN scheduled_at
		                        ELSE now() + make_interval(secs => 30 * power(2, attempts)) END,
		    last_error = $2,
		    locked_at  = NULL,
		    locked_by  = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id, errMsg)
	return err
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := zeroCounts()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) CleanOld(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'dead')
		  AND updated_at < now() - make_interval(secs => $1)
	`, retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("clean old jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func zeroCounts() map[string]int {
	return map[string]int{
		models.StatusQueued:     0,
		models.StatusProcessing: 0,
		models.StatusCompleted:  0,
		models.StatusFailed:     0,
		models.StatusDead:       0,
	}
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

func tsPtr(t pgtype.Timestamptz) *time.Time {
	if t.Valid {
		v := t.Time
		return &v
	}
	return nil
}
