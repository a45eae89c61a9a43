package interfaces

import (
	"context"

	"github.com/ternarybob/petitor/internal/models"
)

// JobSource yields raw job postings for ingestion. Implementations exist
// for apify (actor dataset API), gmail (IMAP job-alert inbox) and manual
// (caller-provided list).
type JobSource interface {
	// Name returns the source identifier recorded on each job
	Name() string

	// Ingest fetches up to limit raw jobs; limit <= 0 means no cap
	Ingest(ctx context.Context, limit int) ([]models.RawJob, error)
}
