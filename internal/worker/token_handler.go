package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"coursejobs/internal/models"
	"coursejobs/internal/notify"
)

// handleTransferTokens moves a reward to the learner's wallet. The ledger row
// already exists (the reward-claim path created it) and is unique per
// (user, course); retries update that same row, never mint a second transfer.
//
// A missing wallet address is a terminal business state, not a failure: the
// entry parks in pending_wallet and the job completes.
func (w *Worker) handleTransferTokens(ctx context.Context, job models.Job) error {
	var p models.TransferTokensPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	entry, err := w.deps.Ledger.Get(ctx, p.LedgerEntryID)
	if err != nil {
		return fmt.Errorf("fetch ledger entry: %w", err)
	}
	if entry.Status == models.LedgerCompleted {
		return nil
	}

	if p.WalletAddress == "" {
		if err := w.deps.Ledger.MarkPendingWallet(ctx, entry.ID); err != nil {
			return fmt.Errorf("mark pending wallet: %w", err)
		}
		return nil
	}

	if err := w.deps.Ledger.MarkProcessing(ctx, entry.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	txHash, err := w.deps.Chain.Transfer(ctx, p.WalletAddress, p.Amount, p.TokenSymbol)
	if err != nil {
		if merr := w.deps.Ledger.MarkFailed(ctx, entry.ID, err.Error()); merr != nil {
			w.logger.Warn("mark ledger failed", "id", entry.ID, "err", merr)
		}
		return fmt.Errorf("chain transfer: %w", err)
	}

	if err := w.deps.Ledger.MarkCompleted(ctx, entry.ID, txHash); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	w.notifyEvent(ctx, notify.Event{
		Kind:     notify.KindTokensSent,
		CourseID: p.CourseID,
		UserID:   p.UserID,
		Detail:   txHash,
	})
	return nil
}
