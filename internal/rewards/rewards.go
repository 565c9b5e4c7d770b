// Package rewards is the direct-enqueue collaborator for course completion:
// it creates the token ledger entry and queues the transfer and certificate
// jobs. The ledger's (user, course) uniqueness makes the whole claim
// idempotent: the second call for the same pair observes alreadyClaimed and
// enqueues nothing.
package rewards

import (
	"context"
	"fmt"
	"log/slog"

	"coursejobs/internal/models"
	"coursejobs/internal/store"
	"coursejobs/internal/telemetry"
)

// Ledger is the subset of the ledger repository the claim path needs.
type Ledger interface {
	FindOrCreate(ctx context.Context, userID, courseID string, amount float64, symbol string, wallet *string) (models.TokenLedgerEntry, bool, error)
}

// Claim describes one reward claim request.
type Claim struct {
	UserID        string
	CourseID      string
	Amount        float64
	TokenSymbol   string
	WalletAddress string
	QuizScore     float64
}

// Result reports what the claim did.
type Result struct {
	Entry          models.TokenLedgerEntry
	AlreadyClaimed bool
}

type Service struct {
	ledger Ledger
	store  store.JobStore
	logger *slog.Logger
}

func NewService(ledger Ledger, st store.JobStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, store: st, logger: logger}
}

// ClaimReward creates the ledger entry and enqueues the transfer and
// certificate jobs. A repeat claim for the same (user, course) returns the
// existing entry with AlreadyClaimed set and performs no new enqueues.
func (s *Service) ClaimReward(ctx context.Context, c Claim) (Result, error) {
	var wallet *string
	if c.WalletAddress != "" {
		wallet = &c.WalletAddress
	}

	entry, existed, err := s.ledger.FindOrCreate(ctx, c.UserID, c.CourseID, c.Amount, c.TokenSymbol, wallet)
	if err != nil {
		return Result{}, fmt.Errorf("create ledger entry: %w", err)
	}
	if existed {
		return Result{Entry: entry, AlreadyClaimed: true}, nil
	}

	transfer := models.TransferTokensPayload{
		LedgerEntryID: entry.ID,
		UserID:        c.UserID,
		CourseID:      c.CourseID,
		Amount:        c.Amount,
		TokenSymbol:   c.TokenSymbol,
		WalletAddress: c.WalletAddress,
	}
	if _, err := s.store.Enqueue(ctx, models.TypeTransferTokens, transfer, store.EnqueueOptions{}); err != nil {
		return Result{Entry: entry}, fmt.Errorf("enqueue token transfer: %w", err)
	}
	telemetry.JobsEnqueued.Inc()

	cert := models.CertificatePayload{
		UserID:    c.UserID,
		CourseID:  c.CourseID,
		QuizScore: c.QuizScore,
	}
	if _, err := s.store.Enqueue(ctx, models.TypeGenerateCertificate, cert, store.EnqueueOptions{}); err != nil {
		return Result{Entry: entry}, fmt.Errorf("enqueue certificate: %w", err)
	}
	telemetry.JobsEnqueued.Inc()

	s.logger.Info("reward claimed", "user_id", c.UserID, "course_id", c.CourseID, "ledger_id", entry.ID)
	return Result{Entry: entry}, nil
}
