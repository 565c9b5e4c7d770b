// Package certificate is the default implementation of the certificate
// service port: it renders a completion certificate PNG and stores it under a
// deterministic key, which is what makes issuing idempotent per
// (user, course).
package certificate

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"coursejobs/internal/storage"
)

const (
	certWidth  = 1200
	certHeight = 850
)

// Issuer renders and stores certificates.
type Issuer struct {
	store    storage.Store
	template string // optional background template path
	logger   *slog.Logger
}

func NewIssuer(store storage.Store, templatePath string, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{store: store, template: templatePath, logger: logger}
}

// Issue renders the certificate for (user, course) unless one already exists
// under its deterministic key. Re-running for the same pair is a no-op.
func (i *Issuer) Issue(ctx context.Context, userID, courseID string, quizScore float64) error {
	key := fmt.Sprintf("certificates/%s/%s.png", courseID, userID)

	exists, err := i.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("probe certificate: %w", err)
	}
	if exists {
		return nil
	}

	img, err := i.render(userID, courseID, quizScore)
	if err != nil {
		return fmt.Errorf("render certificate: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode certificate: %w", err)
	}

	url, err := i.store.Upload(ctx, key, buf.Bytes(), "image/png")
	if err != nil {
		return fmt.Errorf("upload certificate: %w", err)
	}

	i.logger.Info("certificate issued", "user_id", userID, "course_id", courseID, "url", url)
	return nil
}

func (i *Issuer) render(userID, courseID string, quizScore float64) (image.Image, error) {
	canvas := i.background()

	lines := []string{
		"CERTIFICATE OF COMPLETION",
		"",
		"Awarded to " + userID,
		"for completing course " + courseID,
		fmt.Sprintf("with a quiz score of %.0f%%", quizScore),
		"",
		time.Now().UTC().Format("January 2, 2006"),
	}
	drawCentered(canvas, lines)
	return canvas, nil
}

// background loads the configured template, scaled to the canvas, or falls
// back to a plain parchment fill.
func (i *Issuer) background() *image.NRGBA {
	if i.template != "" {
		if tpl, err := imaging.Open(i.template); err == nil {
			return imaging.Resize(tpl, certWidth, certHeight, imaging.Lanczos)
		}
		i.logger.Warn("certificate template unreadable, using fallback", "path", i.template)
	}
	return imaging.New(certWidth, certHeight, color.NRGBA{R: 0xFA, G: 0xF5, B: 0xE6, A: 0xFF})
}

func drawCentered(dst *image.NRGBA, lines []string) {
	face := basicfont.Face7x13
	lineHeight := face.Height + 10
	startY := certHeight/2 - len(lines)*lineHeight/2

	for n, line := range lines {
		if line == "" {
			continue
		}
		width := font.MeasureString(face, line).Ceil()
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.NRGBA{R: 0x33, G: 0x2B, B: 0x1F, A: 0xFF}),
			Face: face,
			Dot: fixed.P(
				(certWidth-width)/2,
				startY+n*lineHeight,
			),
		}
		d.DrawString(line)
	}
}
