package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"coursejobs/internal/models"
	"coursejobs/internal/notify"
)

// handleGenerateAudio synthesizes speech for a lesson translation and uploads
// it. Same idempotency shape as content generation, with the object key
// derived from the fingerprint so a retried upload lands on the same object.
func (w *Worker) handleGenerateAudio(ctx context.Context, job models.Job) error {
	var p models.GeneratePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	rec, err := w.deps.Audio.FindOrCreate(ctx, p.LessonID, p.Language, p.ContentHash)
	if err != nil {
		return fmt.Errorf("find or create audio record: %w", err)
	}
	if rec.Status == models.ArtifactReady {
		return nil
	}

	if err := w.deps.Audio.MarkGenerating(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark generating: %w", err)
	}

	text, err := w.deps.Lessons.LessonText(ctx, p.LessonID, p.Language)
	if err != nil {
		return fmt.Errorf("fetch lesson text: %w", err)
	}

	audio, duration, err := w.deps.Speech.Synthesize(ctx, p.Language, text)
	if err != nil {
		if merr := w.deps.Audio.MarkFailed(ctx, rec.ID, err.Error()); merr != nil {
			w.logger.Warn("mark audio failed", "id", rec.ID, "err", merr)
		}
		return fmt.Errorf("synthesize audio: %w", err)
	}

	key := fmt.Sprintf("audio/%s/%s/%s.mp3", p.LessonID, p.Language, p.ContentHash)
	url, err := w.deps.Media.Upload(ctx, key, audio, "audio/mpeg")
	if err != nil {
		if merr := w.deps.Audio.MarkFailed(ctx, rec.ID, err.Error()); merr != nil {
			w.logger.Warn("mark audio failed", "id", rec.ID, "err", merr)
		}
		return fmt.Errorf("upload audio: %w", err)
	}

	if err := w.deps.Audio.MarkReady(ctx, rec.ID, url, duration); err != nil {
		return fmt.Errorf("persist audio asset: %w", err)
	}

	w.notifyEvent(ctx, notify.Event{
		Kind:     notify.KindAudioReady,
		CourseID: p.CourseID,
		LessonID: p.LessonID,
		Detail:   p.Language,
	})
	return nil
}
