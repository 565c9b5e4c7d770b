package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"coursejobs/internal/models"
)

// ContentRepo persists GeneratedContent rows. The unique key on
// (lesson, language, type, hash) plus INSERT ... ON CONFLICT DO NOTHING gives
// handlers their find-or-create idempotency primitive.
type ContentRepo struct {
	pool *pgxpool.Pool
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo { return &ContentRepo{pool: pool} }

// FindOrCreate returns the record for the fingerprint, inserting a queued row
// when none exists yet. Concurrent callers race harmlessly: the conflict
// clause makes the insert a no-op and both end up reading the same row.
func (r *ContentRepo) FindOrCreate(ctx context.Context, lessonID, language, contentType, contentHash string) (models.GeneratedContent, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO generated_content (id, lesson_id, language, content_type, content_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lesson_id, language, content_type, content_hash) DO NOTHING
	`, uuid.New().String(), lessonID, language, contentType, contentHash, models.ArtifactQueued)
	if err != nil {
		return models.GeneratedContent{}, fmt.Errorf("insert generated content: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id, lesson_id, language, content_type, content_hash, body, status, error, created_at, updated_at
		FROM generated_content
		WHERE lesson_id = $1 AND language = $2 AND content_type = $3 AND content_hash = $4
	`, lessonID, language, contentType, contentHash)

	var (
		c      models.GeneratedContent
		body   []byte
		recErr pgtype.Text
	)
	if err := row.Scan(&c.ID, &c.LessonID, &c.Language, &c.ContentType, &c.ContentHash,
		&body, &c.Status, &recErr, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return models.GeneratedContent{}, fmt.Errorf("scan generated content: %w", err)
	}
	c.Body = body
	c.Error = textPtr(recErr)
	return c, nil
}

func (r *ContentRepo) MarkGenerating(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE generated_content SET status = $2, error = NULL, updated_at = now() WHERE id = $1
	`, id, models.ArtifactGenerating)
	return err
}

func (r *ContentRepo) MarkReady(ctx context.Context, id string, body json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE generated_content SET status = $2, body = $3, error = NULL, updated_at = now() WHERE id = $1
	`, id, models.ArtifactReady, []byte(body))
	return err
}

func (r *ContentRepo) MarkFailed(ctx context.Context, id string, msg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE generated_content SET status = $2, error = $3, updated_at = now() WHERE id = $1
	`, id, models.ArtifactFailed, msg)
	return err
}

// AudioRepo persists AudioAsset rows with the same fingerprint-based
// find-or-create shape as ContentRepo.
type AudioRepo struct {
	pool *pgxpool.Pool
}

func NewAudioRepo(pool *pgxpool.Pool) *AudioRepo { return &AudioRepo{pool: pool} }

func (r *AudioRepo) FindOrCreate(ctx context.Context, lessonID, language, contentHash string) (models.AudioAsset, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audio_assets (id, lesson_id, language, content_hash, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lesson_id, language, content_hash) DO NOTHING
	`, uuid.New().String(), lessonID, language, contentHash, models.ArtifactQueued)
	if err != nil {
		return models.AudioAsset{}, fmt.Errorf("insert audio asset: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id, lesson_id, language, content_hash, url, duration_sec, status, error, created_at, updated_at
		FROM audio_assets
		WHERE lesson_id = $1 AND language = $2 AND content_hash = $3
	`, lessonID, language, contentHash)

	var (
		a        models.AudioAsset
		url      pgtype.Text
		duration pgtype.Float8
		recErr   pgtype.Text
	)
	if err := row.Scan(&a.ID, &a.LessonID, &a.Language, &a.ContentHash,
		&url, &duration, &a.Status, &recErr, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return models.AudioAsset{}, fmt.Errorf("scan audio asset: %w", err)
	}
	if url.Valid {
		a.URL = url.String
	}
	if duration.Valid {
		a.DurationSec = duration.Float64
	}
	a.Error = textPtr(recErr)
	return a, nil
}

func (r *AudioRepo) MarkGenerating(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE audio_assets SET status = $2, error = NULL, updated_at = now() WHERE id = $1
	`, id, models.ArtifactGenerating)
	return err
}

func (r *AudioRepo) MarkReady(ctx context.Context, id, url string, durationSec float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE audio_assets SET status = $2, url = $3, duration_sec = $4, error = NULL, updated_at = now() WHERE id = $1
	`, id, models.ArtifactReady, url, durationSec)
	return err
}

func (r *AudioRepo) MarkFailed(ctx context.Context, id string, msg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE audio_assets SET status = $2, error = $3, updated_at = now() WHERE id = $1
	`, id, models.ArtifactFailed, msg)
	return err
}

// LedgerRepo persists TokenLedgerEntry rows. Uniqueness on (user, course) is
// the idempotency guarantee for reward claims: one row per completion, ever.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo { return &LedgerRepo{pool: pool} }

// FindOrCreate inserts a pending entry for (user, course) or returns the
// existing one. The second return value reports whether the entry already
// existed, which callers surface as alreadyClaimed.
func (r *LedgerRepo) FindOrCreate(ctx context.Context, userID, courseID string, amount float64, symbol string, wallet *string) (models.TokenLedgerEntry, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO token_ledger (id, user_id, course_id, amount, token_symbol, wallet_address, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, course_id) DO NOTHING
	`, uuid.New().String(), userID, courseID, amount, symbol, wallet, models.LedgerPending)
	if err != nil {
		return models.TokenLedgerEntry{}, false, fmt.Errorf("insert ledger entry: %w", err)
	}
	existed := tag.RowsAffected() == 0

	entry, err := r.getByUserCourse(ctx, userID, courseID)
	if err != nil {
		return models.TokenLedgerEntry{}, false, err
	}
	return entry, existed, nil
}

func (r *LedgerRepo) Get(ctx context.Context, id string) (models.TokenLedgerEntry, error) {
	row := r.pool.QueryRow(ctx, ledgerSelect+` WHERE id = $1`, id)
	return scanLedger(row)
}

func (r *LedgerRepo) getByUserCourse(ctx context.Context, userID, courseID string) (models.TokenLedgerEntry, error) {
	row := r.pool.QueryRow(ctx, ledgerSelect+` WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	return scanLedger(row)
}

const ledgerSelect = `
	SELECT id, user_id, course_id, amount, token_symbol, wallet_address, tx_hash, status, error, created_at, updated_at
	FROM token_ledger`

func scanLedger(row pgx.Row) (models.TokenLedgerEntry, error) {
	var (
		e      models.TokenLedgerEntry
		wallet pgtype.Text
		tx     pgtype.Text
		recErr pgtype.Text
	)
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Amount, &e.TokenSymbol,
		&wallet, &tx, &e.Status, &recErr, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TokenLedgerEntry{}, fmt.Errorf("ledger entry not found: %w", err)
	}
	if err != nil {
		return models.TokenLedgerEntry{}, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.WalletAddress = textPtr(wallet)
	e.TxHash = textPtr(tx)
	e.Error = textPtr(recErr)
	return e, nil
}

func (r *LedgerRepo) MarkPendingWallet(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, models.LedgerPendingWallet)
}

func (r *LedgerRepo) MarkProcessing(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, models.LedgerProcessing)
}

func (r *LedgerRepo) MarkCompleted(ctx context.Context, id, txHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE token_ledger SET status = $2, tx_hash = $3, error = NULL, updated_at = now() WHERE id = $1
	`, id, models.LedgerCompleted, txHash)
	return err
}

func (r *LedgerRepo) MarkFailed(ctx context.Context, id string, msg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE token_ledger SET status = $2, error = $3, updated_at = now() WHERE id = $1
	`, id, models.LedgerFailed, msg)
	return err
}

func (r *LedgerRepo) setStatus(ctx context.Context, id, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE token_ledger SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}
