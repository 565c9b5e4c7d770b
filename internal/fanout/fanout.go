// Package fanout turns one course-approval event into the burst of generation
// jobs that back it: quiz, flashcards, summary, and audio per lesson
// translation. The walk is non-transactional. Dying halfway is
// fine because re-running it only produces jobs whose fingerprints collapse
// to no-ops in the handlers.
package fanout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"coursejobs/internal/models"
	"coursejobs/internal/store"
	"coursejobs/internal/telemetry"
)

// LessonTranslation is one (lesson, language) leaf of the course tree with
// its source text.
type LessonTranslation struct {
	LessonID string
	Language string
	Text     string
}

// Catalog exposes the course/lesson tree. Course CRUD lives elsewhere; the
// fan-out only needs the flattened translation list.
type Catalog interface {
	LessonTranslations(ctx context.Context, courseID string) ([]LessonTranslation, error)
}

var generationTypes = []models.JobType{
	models.TypeGenerateQuiz,
	models.TypeGenerateFlashcards,
	models.TypeGenerateSummary,
	models.TypeGenerateAudio,
}

// Fanout enqueues generation work for approved courses.
type Fanout struct {
	store   store.JobStore
	catalog Catalog
	logger  *slog.Logger
}

func New(st store.JobStore, catalog Catalog, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{store: st, catalog: catalog, logger: logger}
}

// CoursePublished walks every lesson translation of the course and enqueues
// four jobs per translation. Returns how many jobs were enqueued.
func (f *Fanout) CoursePublished(ctx context.Context, courseID string) (int, error) {
	translations, err := f.catalog.LessonTranslations(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("list lesson translations: %w", err)
	}

	enqueued := 0
	for _, tr := range translations {
		payload := models.GeneratePayload{
			CourseID:    courseID,
			LessonID:    tr.LessonID,
			Language:    tr.Language,
			ContentHash: ContentHash(tr.Text),
		}
		for _, typ := range generationTypes {
			if _, err := f.store.Enqueue(ctx, typ, payload, store.EnqueueOptions{}); err != nil {
				return enqueued, fmt.Errorf("enqueue %s for lesson %s/%s: %w", typ, tr.LessonID, tr.Language, err)
			}
			telemetry.JobsEnqueued.Inc()
			enqueued++
		}
	}

	f.logger.Info("course fan-out complete",
		"course_id", courseID,
		"translations", len(translations),
		"jobs", enqueued)
	return enqueued, nil
}

// ContentHash fingerprints lesson source text. An edited lesson hashes
// differently and so gets fresh artifacts instead of overwriting history.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
