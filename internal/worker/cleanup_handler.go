package worker

import (
	"context"

	"coursejobs/internal/models"
)

// handleCleanup is the maintenance sweep: old job rows, expired sessions and
// OTP codes. Everything here is best effort: a partial sweep is logged and
// the job still completes, so cleanup never clogs the retry path.
func (w *Worker) handleCleanup(ctx context.Context, _ models.Job) error {
	removed, err := w.store.CleanOld(ctx, w.deps.JobRetention)
	if err != nil {
		w.logger.Warn("clean old jobs", "err", err)
	} else if removed > 0 {
		w.logger.Info("cleaned old jobs", "removed", removed)
	}

	if w.deps.Maintenance != nil {
		if err := w.deps.Maintenance.Sweep(ctx); err != nil {
			w.logger.Warn("maintenance sweep", "err", err)
		}
	}
	return nil
}
