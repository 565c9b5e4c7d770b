package worker

import (
	"context"
	"fmt"

	"coursejobs/internal/models"
)

// route dispatches a claimed job to its handler. The switch is exhaustive
// over the closed JobType set; hitting default means a job was persisted with
// a type Enqueue should have rejected.
func (w *Worker) route(ctx context.Context, job models.Job) error {
	switch job.Type {
	case models.TypeGenerateQuiz:
		return w.handleGenerateContent(ctx, job, models.ContentQuiz)
	case models.TypeGenerateFlashcards:
		return w.handleGenerateContent(ctx, job, models.ContentFlashcards)
	case models.TypeGenerateSummary:
		return w.handleGenerateContent(ctx, job, models.ContentSummary)
	case models.TypeGenerateAudio:
		return w.handleGenerateAudio(ctx, job)
	case models.TypeTransferTokens:
		return w.handleTransferTokens(ctx, job)
	case models.TypeGenerateCertificate:
		return w.handleGenerateCertificate(ctx, job)
	case models.TypeCleanup:
		return w.handleCleanup(ctx, job)
	default:
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
}
