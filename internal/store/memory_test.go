package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"coursejobs/internal/models"
)

func testClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestEnqueueRejectsUnknownType(t *testing.T) {
	m := NewMemory(0)
	if _, err := m.Enqueue(context.Background(), models.JobType("mine_bitcoin"), nil, EnqueueOptions{}); err == nil {
		t.Fatal("expected enqueue of unknown type to fail")
	}
}

func TestEnqueueDefaults(t *testing.T) {
	m := NewMemory(0)
	job, err := m.Enqueue(context.Background(), models.TypeCleanup, struct{}{}, EnqueueOptions{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", job.MaxAttempts)
	}
	if job.Status != models.StatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
}

func TestClaimMutualExclusion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	const jobs = 20
	const claimers = 8
	for i := 0; i < jobs; i++ {
		if _, err := m.Enqueue(ctx, models.TypeGenerateQuiz, models.GeneratePayload{LessonID: "L1"}, EnqueueOptions{}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]string) // job id -> worker that claimed it
	var wg sync.WaitGroup
	for k := 0; k < claimers; k++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			for {
				id, err := m.Claim(ctx, worker)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if id == "" {
					return
				}
				mu.Lock()
				if prev, dup := seen[id]; dup {
					t.Errorf("job %s claimed by both %s and %s", id, prev, worker)
				}
				seen[id] = worker
				mu.Unlock()
			}
		}("w" + string(rune('A'+k)))
	}
	wg.Wait()

	if len(seen) != jobs {
		t.Fatalf("expected %d distinct claims, got %d", jobs, len(seen))
	}
}

func TestClaimOrdersByScheduledAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, clock := testClock(base)
	m.SetClock(clock)

	late, _ := m.Enqueue(ctx, models.TypeGenerateQuiz, nil, EnqueueOptions{ScheduledAt: base.Add(-time.Minute)})
	early, _ := m.Enqueue(ctx, models.TypeGenerateQuiz, nil, EnqueueOptions{ScheduledAt: base.Add(-time.Hour)})

	id, err := m.Claim(ctx, "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if id != early.ID {
		t.Fatalf("expected earliest-scheduled job %s first, got %s", early.ID, id)
	}
	id, _ = m.Claim(ctx, "w1")
	if id != late.ID {
		t.Fatalf("expected %s second, got %s", late.ID, id)
	}
}

func TestClaimSkipsFutureJobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, clock := testClock(base)
	m.SetClock(clock)

	if _, err := m.Enqueue(ctx, models.TypeGenerateQuiz, nil, EnqueueOptions{ScheduledAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	id, err := m.Claim(ctx, "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if id != "" {
		t.Fatalf("expected no eligible job, got %s", id)
	}
}

func TestFailAppliesExponentialBackoff(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now, clock := testClock(base)
	m.SetClock(clock)

	job, _ := m.Enqueue(ctx, models.TypeGenerateQuiz, nil, EnqueueOptions{MaxAttempts: 5})

	// After the i-th failure the job is due at now + 30s * 2^i.
	for i := 1; i <= 3; i++ {
		id, err := m.Claim(ctx, "w1")
		if err != nil || id != job.ID {
			t.Fatalf("claim %d: id=%q err=%v", i, id, err)
		}
		if err := m.Fail(ctx, id, "provider exploded"); err != nil {
			t.Fatalf("fail: %v", err)
		}

		got, _ := m.GetJob(ctx, id)
		want := *now // clock is frozen, so scheduled = claimed-at + delay
		want = want.Add(models.RetryDelay(i))
		if !got.ScheduledAt.Equal(want) {
			t.Fatalf("after failure %d: scheduled_at = %s, want %s", i, got.ScheduledAt, want)
		}
		if got.Status != models.StatusQueued {
			t.Fatalf("after failure %d: status = %s, want queued", i, got.Status)
		}
		if got.LastError == nil || *got.LastError != "provider exploded" {
			t.Fatalf("last error not recorded: %v", got.LastError)
		}

		*now = got.ScheduledAt // jump to the retry time for the next round
	}
}

func TestDeadLetterAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now, clock := testClock(base)
	m.SetClock(clock)

	job, _ := m.Enqueue(ctx, models.TypeTransferTokens, nil, EnqueueOptions{MaxAttempts: 2})

	for i := 0; i < 2; i++ {
		id, err := m.Claim(ctx, "w1")
		if err != nil || id != job.ID {
			t.Fatalf("claim %d: id=%q err=%v", i, id, err)
		}
		if err := m.Fail(ctx, id, "rpc timeout"); err != nil {
			t.Fatalf("fail: %v", err)
		}
		*now = now.Add(time.Hour)
	}

	got, _ := m.GetJob(ctx, job.ID)
	if got.Status != models.StatusDead {
		t.Fatalf("expected dead after exhausting attempts, got %s", got.Status)
	}
	if got.LastError == nil || *got.LastError != "rpc timeout" {
		t.Fatalf("last error not recorded: %v", got.LastError)
	}

	id, err := m.Claim(ctx, "w2")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if id != "" {
		t.Fatalf("dead job must never be claimable again, got %s", id)
	}
}

func TestLockReclaimAfterTimeout(t *testing.T) {
	ctx := context.Background()
	lockTimeout := 10 * time.Minute
	m := NewMemory(lockTimeout)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now, clock := testClock(base)
	m.SetClock(clock)

	job, _ := m.Enqueue(ctx, models.TypeGenerateAudio, nil, EnqueueOptions{})

	id, err := m.Claim(ctx, "workerA")
	if err != nil || id != job.ID {
		t.Fatalf("claim: id=%q err=%v", id, err)
	}

	// Worker A dies. Just before the timeout the lock still holds.
	*now = base.Add(lockTimeout)
	if id, _ := m.Claim(ctx, "workerB"); id != "" {
		t.Fatalf("job reclaimed before lock timeout elapsed")
	}

	// Past the timeout the orphan becomes claimable again.
	*now = base.Add(lockTimeout + time.Second)
	id, err = m.Claim(ctx, "workerB")
	if err != nil || id != job.ID {
		t.Fatalf("reclaim: id=%q err=%v", id, err)
	}

	got, _ := m.GetJob(ctx, job.ID)
	if got.Attempts != 2 {
		t.Fatalf("reclaim must count as a new attempt, got %d", got.Attempts)
	}
	if got.LockedBy == nil || *got.LockedBy != "workerB" {
		t.Fatalf("lock not transferred: %v", got.LockedBy)
	}
}

func TestCountByStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	a, _ := m.Enqueue(ctx, models.TypeGenerateQuiz, nil, EnqueueOptions{})
	if _, err := m.Enqueue(ctx, models.TypeGenerateSummary, nil, EnqueueOptions{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := m.Claim(ctx, "w1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := m.Complete(ctx, a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	counts, err := m.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[models.StatusCompleted] != 1 || counts[models.StatusQueued] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if _, ok := counts[models.StatusDead]; !ok {
		t.Fatal("counts must include zero-valued statuses")
	}
}

func TestCleanOldRemovesOnlyTerminalRows(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now, clock := testClock(base)
	m.SetClock(clock)

	done, _ := m.Enqueue(ctx, models.TypeCleanup, nil, EnqueueOptions{})
	if _, err := m.Claim(ctx, "w1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := m.Complete(ctx, done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	queued, _ := m.Enqueue(ctx, models.TypeGenerateQuiz, nil, EnqueueOptions{})

	*now = base.Add(40 * 24 * time.Hour)
	removed, err := m.CleanOld(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row removed, got %d", removed)
	}
	if _, err := m.GetJob(ctx, done.ID); err == nil {
		t.Fatal("completed row should be gone")
	}
	if _, err := m.GetJob(ctx, queued.ID); err != nil {
		t.Fatalf("queued row must survive cleanup: %v", err)
	}
}
