package models

import (
	"encoding/json"
	"time"
)

// Generated-artifact lifecycle. A record stuck in "generating" is not an
// error by itself: the owning job's retry will pick it back up.
const (
	ArtifactQueued     = "queued"
	ArtifactGenerating = "generating"
	ArtifactReady      = "ready"
	ArtifactFailed     = "failed"
)

// Content kinds stored in generated_content. These mirror the
// generation job types minus audio, which has its own table.
const (
	ContentQuiz       = "quiz"
	ContentFlashcards = "flashcards"
	ContentSummary    = "summary"
)

// GeneratedContent is one AI output for a (lesson, language, type) combination,
// versioned by the content hash of the source text. Editing a lesson changes
// the hash and therefore produces a new row instead of overwriting history.
// Unique on (lesson_id, language, content_type, content_hash).
type GeneratedContent struct {
	ID          string          `json:"id"`
	LessonID    string          `json:"lesson_id"`
	Language    string          `json:"language"`
	ContentType string          `json:"content_type"`
	ContentHash string          `json:"content_hash"`
	Body        json.RawMessage `json:"body,omitempty"`
	Status      string          `json:"status"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AudioAsset is the synthesized-speech analogue of GeneratedContent.
// Unique on (lesson_id, language, content_hash).
type AudioAsset struct {
	ID          string     `json:"id"`
	LessonID    string     `json:"lesson_id"`
	Language    string     `json:"language"`
	ContentHash string     `json:"content_hash"`
	URL         string     `json:"url,omitempty"`
	DurationSec float64    `json:"duration_sec,omitempty"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Token ledger entry states. pending_wallet is a terminal business state, not
// a failure: the user simply has not connected a wallet yet.
const (
	LedgerPending       = "pending"
	LedgerPendingWallet = "pending_wallet"
	LedgerProcessing    = "processing"
	LedgerCompleted     = "completed"
	LedgerFailed        = "failed"
)

// TokenLedgerEntry is one reward claim per (user, course). The uniqueness of
// that pair is what makes claiming idempotent: retried transfer jobs update
// this same row, they never create a second transfer.
type TokenLedgerEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CourseID      string    `json:"course_id"`
	Amount        float64   `json:"amount"`
	TokenSymbol   string    `json:"token_symbol"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	TxHash        *string   `json:"tx_hash,omitempty"`
	Status        string    `json:"status"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
