package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"coursejobs/internal/models"
	"coursejobs/internal/notify"
	"coursejobs/internal/store"
	"coursejobs/internal/telemetry"
)

// Ports onto the external collaborators the handlers call. Everything here is
// a black box from the queue's point of view: it either returns a result or
// an error, and the error decides retry vs. complete.

// LessonSource resolves the source text a generation job works from.
type LessonSource interface {
	LessonText(ctx context.Context, lessonID, language string) (string, error)
}

// Generator produces structured AI content (quiz, flashcards, summary) from
// lesson text.
type Generator interface {
	Generate(ctx context.Context, contentType, language, text string) (json.RawMessage, error)
}

// Synthesizer turns lesson text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, language, text string) (audio []byte, durationSec float64, err error)
}

// Uploader stores a blob and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// ChainTransferor executes an on-chain token transfer.
type ChainTransferor interface {
	Transfer(ctx context.Context, walletAddress string, amount float64, tokenSymbol string) (txHash string, err error)
}

// CertificateIssuer issues a completion certificate. Implementations must be
// idempotent on (user, course); re-running is safe.
type CertificateIssuer interface {
	Issue(ctx context.Context, userID, courseID string, quizScore float64) error
}

// Maintenance sweeps expired ephemeral state (sessions, OTPs, rate-limit
// windows). Optional; its failures are logged, never escalated.
type Maintenance interface {
	Sweep(ctx context.Context) error
}

// ContentStore, AudioStore and LedgerStore are the result-record
// repositories. Their find-or-create / uniqueness semantics carry the
// idempotency contract the handlers lean on.
type ContentStore interface {
	FindOrCreate(ctx context.Context, lessonID, language, contentType, contentHash string) (models.GeneratedContent, error)
	MarkGenerating(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id string, body json.RawMessage) error
	MarkFailed(ctx context.Context, id string, msg string) error
}

type AudioStore interface {
	FindOrCreate(ctx context.Context, lessonID, language, contentHash string) (models.AudioAsset, error)
	MarkGenerating(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id, url string, durationSec float64) error
	MarkFailed(ctx context.Context, id string, msg string) error
}

type LedgerStore interface {
	Get(ctx context.Context, id string) (models.TokenLedgerEntry, error)
	MarkPendingWallet(ctx context.Context, id string) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, txHash string) error
	MarkFailed(ctx context.Context, id string, msg string) error
}

// Deps bundles everything the handlers need. Notify and Maintenance may be
// nil; the rest must be set for the corresponding job types to succeed.
type Deps struct {
	Content      ContentStore
	Audio        AudioStore
	Ledger       LedgerStore
	Lessons      LessonSource
	Generator    Generator
	Speech       Synthesizer
	Media        Uploader
	Chain        ChainTransferor
	Certificates CertificateIssuer
	Maintenance  Maintenance
	Notify       notify.Notifier
	JobRetention time.Duration
}

// Worker drives the claim → execute → resolve loop for one worker identity.
// There is no concurrency inside a worker: one job at a time, and horizontal
// scale comes from running more workers, coordinated by Claim's atomicity.
type Worker struct {
	id           string
	store        store.JobStore
	deps         Deps
	pollInterval time.Duration
	logger       *slog.Logger
}

func New(id string, st store.JobStore, deps Deps, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.JobRetention <= 0 {
		deps.JobRetention = 30 * 24 * time.Hour
	}
	return &Worker{
		id:           id,
		store:        st,
		deps:         deps,
		pollInterval: pollInterval,
		logger:       logger.With("worker_id", id),
	}
}

// Run loops until ctx is canceled. The loop drains back-to-back while work
// exists and only sleeps when the queue comes up empty.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "poll_interval", w.pollInterval)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("process job", "err", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessNext claims and resolves at most one job. It returns false when the
// queue had nothing eligible. A store error is reported but treated like an
// empty queue so a flaky database never kills the loop.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	jobID, err := w.store.Claim(ctx, w.id)
	if err != nil {
		return false, err
	}
	if jobID == "" {
		return false, nil
	}

	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		// The claim stands but we cannot see the row; the lock timeout will
		// put the job back into circulation.
		return false, err
	}

	log := w.logger.With("job_id", job.ID, "type", job.Type, "attempt", job.Attempts)
	log.Info("job started")

	if err := w.route(ctx, job); err != nil {
		log.Warn("job failed", "err", err)
		telemetry.JobsFailed.Inc()
		if ferr := w.store.Fail(ctx, job.ID, err.Error()); ferr != nil {
			return true, ferr
		}
		return true, nil
	}

	if err := w.store.Complete(ctx, job.ID); err != nil {
		return true, err
	}
	telemetry.JobsCompleted.Inc()
	log.Info("job completed")
	return true, nil
}

// BatchResult reports one ProcessBatch invocation.
type BatchResult struct {
	Processed int  `json:"processed"`
	Remaining bool `json:"remaining"`
}

// ProcessBatch resolves up to maxJobs jobs and reports whether queued work is
// left, so an external trigger can schedule another invocation. The remaining
// check is a pure status count; it never claims a job just to peek.
func (w *Worker) ProcessBatch(ctx context.Context, maxJobs int) (BatchResult, error) {
	var res BatchResult
	for i := 0; i < maxJobs; i++ {
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("process job", "err", err)
		}
		if !processed {
			break
		}
		res.Processed++
	}

	counts, err := w.store.CountByStatus(ctx)
	if err != nil {
		return res, err
	}
	res.Remaining = counts[models.StatusQueued] > 0
	return res, nil
}

// notifyEvent forwards to the notification port and swallows any error: a
// broken notifier must never change a job's outcome.
func (w *Worker) notifyEvent(ctx context.Context, ev notify.Event) {
	if w.deps.Notify == nil {
		return
	}
	if err := w.deps.Notify.Notify(ctx, ev); err != nil {
		w.logger.Warn("notify", "event", ev.Kind, "err", err)
	}
}
