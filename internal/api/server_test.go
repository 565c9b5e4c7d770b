package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coursejobs/internal/config"
	"coursejobs/internal/models"
	"coursejobs/internal/store"
	"coursejobs/internal/worker"
)

type countingRunner struct {
	calls  int
	result worker.BatchResult
}

func (c *countingRunner) ProcessBatch(_ context.Context, maxJobs int) (worker.BatchResult, error) {
	c.calls++
	res := c.result
	if res.Processed > maxJobs {
		res.Processed = maxJobs
	}
	return res, nil
}

func newTestServer(secret string, runner BatchRunner, st store.JobStore) *Server {
	cfg := config.Config{TriggerSecret: secret, TriggerMaxJobs: 25}
	if st == nil {
		st = store.NewMemory(0)
	}
	return New(cfg, st, runner, nil)
}

func TestRunBatchRejectsMissingSecret(t *testing.T) {
	runner := &countingRunner{}
	srv := newTestServer("s3cret", runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/run", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if runner.calls != 0 {
		t.Fatal("unauthorized request must never reach the queue")
	}
}

func TestRunBatchRejectsWrongSecret(t *testing.T) {
	runner := &countingRunner{}
	srv := newTestServer("s3cret", runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/run", nil)
	req.Header.Set(secretHeader, "guess")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if runner.calls != 0 {
		t.Fatal("unauthorized request must never reach the queue")
	}
}

func TestRunBatchRejectsAllWhenSecretUnset(t *testing.T) {
	runner := &countingRunner{}
	srv := newTestServer("", runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/run", nil)
	req.Header.Set(secretHeader, "")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unset secret must disable the endpoint, status = %d", rec.Code)
	}
}

func TestRunBatchReturnsResult(t *testing.T) {
	runner := &countingRunner{result: worker.BatchResult{Processed: 3, Remaining: true}}
	srv := newTestServer("s3cret", runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/run", nil)
	req.Header.Set(secretHeader, "s3cret")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var res worker.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Processed != 3 || !res.Remaining {
		t.Fatalf("res = %+v", res)
	}
}

func TestRunBatchValidatesMaxJobs(t *testing.T) {
	runner := &countingRunner{}
	srv := newTestServer("s3cret", runner, nil)

	for _, v := range []string{"0", "-2", "lots"} {
		req := httptest.NewRequest(http.MethodPost, "/internal/jobs/run?max_jobs="+v, nil)
		req.Header.Set(secretHeader, "s3cret")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("max_jobs=%s: status = %d, want 400", v, rec.Code)
		}
	}
	if runner.calls != 0 {
		t.Fatal("invalid max_jobs must not trigger a batch")
	}
}

func TestRunBatchEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(0)
	for i := 0; i < 2; i++ {
		if _, err := st.Enqueue(ctx, models.TypeGenerateCertificate, models.CertificatePayload{
			UserID: "U1", CourseID: "C1",
		}, store.EnqueueOptions{}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	w := worker.New("api-test", st, worker.Deps{Certificates: okIssuer{}}, time.Millisecond, nil)
	srv := newTestServer("s3cret", w, st)

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/run?max_jobs=5", nil)
	req.Header.Set(secretHeader, "s3cret")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var res worker.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Processed != 2 || res.Remaining {
		t.Fatalf("res = %+v, want processed 2 remaining false", res)
	}
}

type okIssuer struct{}

func (okIssuer) Issue(context.Context, string, string, float64) error { return nil }

func TestStatusReportsCounts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(0)
	if _, err := st.Enqueue(ctx, models.TypeGenerateQuiz, models.GeneratePayload{}, store.EnqueueOptions{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	srv := newTestServer("s3cret", &countingRunner{}, st)

	req := httptest.NewRequest(http.MethodGet, "/internal/jobs/status", nil)
	req.Header.Set(secretHeader, "s3cret")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Counts map[string]int `json:"counts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Counts[models.StatusQueued] != 1 {
		t.Fatalf("counts = %v", body.Counts)
	}

	// Status is internal too.
	req = httptest.NewRequest(http.MethodGet, "/internal/jobs/status", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}
}
