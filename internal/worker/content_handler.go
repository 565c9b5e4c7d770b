package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"coursejobs/internal/models"
	"coursejobs/internal/notify"
)

// handleGenerateContent serves the quiz, flashcards, and summary job types.
// Idempotency lives in the result record: a record already ready for this
// fingerprint means a duplicate or retried job, and we return without calling
// the provider at all.
func (w *Worker) handleGenerateContent(ctx context.Context, job models.Job, contentType string) error {
	var p models.GeneratePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	rec, err := w.deps.Content.FindOrCreate(ctx, p.LessonID, p.Language, contentType, p.ContentHash)
	if err != nil {
		return fmt.Errorf("find or create content record: %w", err)
	}
	if rec.Status == models.ArtifactReady {
		return nil
	}

	if err := w.deps.Content.MarkGenerating(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark generating: %w", err)
	}

	text, err := w.deps.Lessons.LessonText(ctx, p.LessonID, p.Language)
	if err != nil {
		return fmt.Errorf("fetch lesson text: %w", err)
	}

	body, err := w.deps.Generator.Generate(ctx, contentType, p.Language, text)
	if err != nil {
		// Best-effort status note; the job-level Fail is the real record of
		// this failure and drives the retry.
		if merr := w.deps.Content.MarkFailed(ctx, rec.ID, err.Error()); merr != nil {
			w.logger.Warn("mark content failed", "id", rec.ID, "err", merr)
		}
		return fmt.Errorf("generate %s: %w", contentType, err)
	}

	if err := w.deps.Content.MarkReady(ctx, rec.ID, body); err != nil {
		return fmt.Errorf("persist %s: %w", contentType, err)
	}

	w.notifyEvent(ctx, notify.Event{
		Kind:     notify.KindContentReady,
		CourseID: p.CourseID,
		LessonID: p.LessonID,
		Detail:   contentType + "/" + p.Language,
	})
	return nil
}
