package store

import (
	"context"
	"errors"
	"time"

	"coursejobs/internal/models"
)

// ErrUnknownJobType is returned by Enqueue for a type outside the closed set.
var ErrUnknownJobType = errors.New("unknown job type")

// DefaultLockTimeout is how long a processing job may hold its lock before
// another worker is allowed to reclaim it. This is the only recovery path for
// a worker that crashed mid-job, and it is why every handler must tolerate
// at-least-once execution.
const DefaultLockTimeout = 10 * time.Minute

// EnqueueOptions tunes a single enqueue. Zero values mean: 3 attempts,
// eligible immediately.
type EnqueueOptions struct {
	MaxAttempts int
	ScheduledAt time.Time
}

// JobStore is the durable queue. Claim is the single cross-process
// synchronization point: it must hand each eligible job to exactly one
// caller. Everything else is plain row bookkeeping.
type JobStore interface {
	// Enqueue inserts a queued job. The payload is JSON-marshaled as-is;
	// deduplication is the caller's concern (idempotent payloads, not the
	// queue, make duplicate jobs safe).
	Enqueue(ctx context.Context, typ models.JobType, payload any, opts EnqueueOptions) (models.Job, error)

	// Claim atomically selects one eligible job (queued and due, or
	// processing with an expired lock), marks it processing under workerID
	// and increments its attempt counter. Returns "" when nothing is
	// eligible. Two concurrent callers can never receive the same job.
	Claim(ctx context.Context, workerID string) (string, error)

	// GetJob fetches a job by id.
	GetJob(ctx context.Context, id string) (models.Job, error)

	// Complete marks the job completed and releases its lock.
	Complete(ctx context.Context, id string) error

	// Fail records the error and either re-queues the job with exponential
	// backoff or, once attempts have reached max_attempts, dead-letters it.
	// Call exactly once per claim.
	Fail(ctx context.Context, id string, errMsg string) error

	// CountByStatus reports how many jobs sit in each lifecycle state,
	// including zero counts.
	CountByStatus(ctx context.Context) (map[string]int, error)

	// CleanOld deletes completed and dead jobs older than the retention
	// window and returns how many rows went away. Result records are never
	// touched here.
	CleanOld(ctx context.Context, retention time.Duration) (int64, error)
}
