package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"coursejobs/internal/models"
)

// handleGenerateCertificate delegates to the certificate issuer, which is
// itself idempotent on (user, course).
func (w *Worker) handleGenerateCertificate(ctx context.Context, job models.Job) error {
	var p models.CertificatePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := w.deps.Certificates.Issue(ctx, p.UserID, p.CourseID, p.QuizScore); err != nil {
		return fmt.Errorf("issue certificate: %w", err)
	}
	return nil
}
