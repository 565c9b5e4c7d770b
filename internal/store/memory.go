package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"coursejobs/internal/models"
)

// Memory implements JobStore on a mutex-guarded map. It preserves the same
// claim exclusivity contract as the Postgres store and backs tests plus
// single-process deployments that do not want a database.
type Memory struct {
	mu          sync.Mutex
	jobs        map[string]*models.Job
	lockTimeout time.Duration
	now         func() time.Time
}

// NewMemory builds an empty in-memory store.
func NewMemory(lockTimeout time.Duration) *Memory {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Memory{
		jobs:        make(map[string]*models.Job),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// SetClock replaces the store's notion of now. Tests use it to exercise
// backoff and lock-reclaim behavior without sleeping.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Enqueue(_ context.Context, typ models.JobType, payload any, opts EnqueueOptions) (models.Job, error) {
	if !typ.Valid() {
		return models.Job{}, fmt.Errorf("%w: %q", ErrUnknownJobType, typ)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.ScheduledAt.IsZero() {
		opts.ScheduledAt = now
	}
	job := &models.Job{
		ID:          uuid.New().String(),
		Type:        typ,
		Payload:     body,
		Status:      models.StatusQueued,
		MaxAttempts: opts.MaxAttempts,
		ScheduledAt: opts.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.jobs[job.ID] = job
	return *job, nil
}

func (m *Memory) Claim(_ context.Context, workerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	var pick *models.Job
	for _, j := range m.jobs {
		if !m.eligible(j, now) {
			continue
		}
		if pick == nil || j.ScheduledAt.Before(pick.ScheduledAt) {
			pick = j
		}
	}
	if pick == nil {
		return "", nil
	}

	pick.Status = models.StatusProcessing
	pick.Attempts++
	pick.LockedAt = &now
	pick.LockedBy = &workerID
	pick.StartedAt = &now
	pick.UpdatedAt = now
	return pick.ID, nil
}

func (m *Memory) eligible(j *models.Job, now time.Time) bool {
	switch j.Status {
	case models.StatusQueued:
		return !j.ScheduledAt.After(now)
	case models.StatusProcessing:
		return j.LockedAt != nil && j.LockedAt.Before(now.Add(-m.lockTimeout))
	}
	return false
}

func (m *Memory) GetJob(_ context.Context, id string) (models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("job %s not found", id)
	}
	return *j, nil
}

func (m *Memory) Complete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	now := m.now().UTC()
	j.Status = models.StatusCompleted
	j.CompletedAt = &now
	j.LockedAt = nil
	j.LockedBy = nil
	j.UpdatedAt = now
	return nil
}

func (m *Memory) Fail(_ context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	now := m.now().UTC()
	j.LastError = &errMsg
	j.LockedAt = nil
	j.LockedBy = nil
	j.UpdatedAt = now
	if j.Attempts >= j.MaxAttempts {
		j.Status = models.StatusDead
		return nil
	}
	j.Status = models.StatusQueued
	j.ScheduledAt = now.Add(models.RetryDelay(j.Attempts))
	return nil
}

func (m *Memory) CountByStatus(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := zeroCounts()
	for _, j := range m.jobs {
		counts[j.Status]++
	}
	return counts, nil
}

func (m *Memory) CleanOld(_ context.Context, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().UTC().Add(-retention)
	var removed int64
	for id, j := range m.jobs {
		if (j.Status == models.StatusCompleted || j.Status == models.StatusDead) && j.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed, nil
}
