package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coursejobs/internal/config"
	"coursejobs/internal/models"
	"coursejobs/internal/ratelimit"
	"coursejobs/internal/store"
	"coursejobs/internal/telemetry"
	"coursejobs/internal/worker"
)

// secretHeader carries the shared secret for the internal trigger endpoint.
const secretHeader = "X-Internal-Secret"

// BatchRunner is the slice of the worker the trigger endpoint drives.
type BatchRunner interface {
	ProcessBatch(ctx context.Context, maxJobs int) (worker.BatchResult, error)
}

// Server exposes the operational surface of the queue: the batch trigger for
// environments without a long-lived worker, and status for the operator view.
type Server struct {
	cfg     config.Config
	store   store.JobStore
	runner  BatchRunner
	limiter *ratelimit.TokenBucket
}

func New(cfg config.Config, st store.JobStore, runner BatchRunner, limiter *ratelimit.TokenBucket) *Server {
	return &Server{cfg: cfg, store: st, runner: runner, limiter: limiter}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/internal/jobs/run", s.handleRunBatch)
	r.Get("/internal/jobs/status", s.handleStatus)
	return r
}

// handleRunBatch processes up to max_jobs jobs synchronously and reports how
// many it did and whether queued work remains. The secret check happens
// before anything touches the queue.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		telemetry.TriggerRejects.Inc()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(r.Context(), "trigger:run")
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.TriggerRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	maxJobs := s.cfg.TriggerMaxJobs
	if v := r.URL.Query().Get("max_jobs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "max_jobs must be a positive integer", http.StatusBadRequest)
			return
		}
		maxJobs = n
	}

	telemetry.BatchInvocations.Inc()
	res, err := s.runner.ProcessBatch(r.Context(), maxJobs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStatus reports job counts per lifecycle state and refreshes the
// queue gauges as a side effect.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		telemetry.TriggerRejects.Inc()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	telemetry.QueueDepth.Set(float64(counts[models.StatusQueued]))
	telemetry.DeadJobs.Set(float64(counts[models.StatusDead]))
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.TriggerSecret == "" {
		return false
	}
	got := r.Header.Get(secretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.TriggerSecret)) == 1
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
