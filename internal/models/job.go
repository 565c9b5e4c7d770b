package models

import (
	"encoding/json"
	"time"
)

// Job lifecycle states persisted in the job store.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusDead       = "dead"
)

// JobType tags one unit of asynchronous work. The set is closed: the router
// switches over these values and treats anything else as a programming error.
type JobType string

const (
	TypeGenerateQuiz        JobType = "generate_quiz"
	TypeGenerateFlashcards  JobType = "generate_flashcards"
	TypeGenerateSummary     JobType = "generate_summary"
	TypeGenerateAudio       JobType = "generate_audio"
	TypeTransferTokens      JobType = "transfer_tokens"
	TypeGenerateCertificate JobType = "generate_certificate"
	TypeCleanup             JobType = "cleanup"
)

// Valid reports whether t is one of the known job types. Enqueue rejects
// anything else so the worker never sees an unroutable job.
func (t JobType) Valid() bool {
	switch t {
	case TypeGenerateQuiz, TypeGenerateFlashcards, TypeGenerateSummary,
		TypeGenerateAudio, TypeTransferTokens, TypeGenerateCertificate, TypeCleanup:
		return true
	}
	return false
}

// Job represents one retryable unit of background work.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LockedAt    *time.Time      `json:"locked_at,omitempty"`
	LockedBy    *string         `json:"locked_by,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	LastError   *string         `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RetryDelay returns the backoff applied after the given failure count:
// 30s * 2^attempts. No jitter; retries are spaced far enough apart that a
// thundering herd is not a concern at this volume.
func RetryDelay(attempts int) time.Duration {
	d := 30 * time.Second
	for i := 0; i < attempts; i++ {
		d *= 2
	}
	return d
}

// GeneratePayload is carried by the quiz/flashcards/summary/audio jobs.
// ContentHash fingerprints the source lesson text and doubles as the
// idempotency key for the result record.
type GeneratePayload struct {
	CourseID    string `json:"course_id"`
	LessonID    string `json:"lesson_id"`
	Language    string `json:"language"`
	ContentHash string `json:"content_hash"`
}

// TransferTokensPayload is carried by transfer_tokens jobs. WalletAddress may
// be empty: the handler parks the ledger entry in pending_wallet instead of
// failing.
type TransferTokensPayload struct {
	LedgerEntryID string  `json:"ledger_entry_id"`
	UserID        string  `json:"user_id"`
	CourseID      string  `json:"course_id"`
	Amount        float64 `json:"amount"`
	TokenSymbol   string  `json:"token_symbol"`
	WalletAddress string  `json:"wallet_address,omitempty"`
}

// CertificatePayload is carried by generate_certificate jobs.
type CertificatePayload struct {
	UserID    string  `json:"user_id"`
	CourseID  string  `json:"course_id"`
	QuizScore float64 `json:"quiz_score"`
}
