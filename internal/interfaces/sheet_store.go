package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/petitor/internal/models"
)

// ErrRecordNotFound is returned when no sheet row matches the requested job ID
var ErrRecordNotFound = errors.New("record not found")

// SheetStore persists job records to an external column-addressed tabular
// store. The header row is the source of truth for column order and
// presence; record fields absent from the headers are silently dropped.
// Cell writes are last-writer-wins with no cross-process locking.
type SheetStore interface {
	// UpdateOne upserts a single record keyed by job_id. Reads the header
	// row to discover column positions, updates the matching row or appends
	// a new one. Idempotent: calling twice with the same record leaves the
	// sheet unchanged after the first call.
	UpdateOne(ctx context.Context, record *models.JobRecord) error

	// UpdateMany upserts a batch of records. Issues O(1) reads plus one
	// batched update and one batched append regardless of batch size,
	// never more than five external requests per call.
	UpdateMany(ctx context.Context, records []*models.JobRecord) error

	// GetByID returns the record stored in the row whose key column equals
	// jobID, or ErrRecordNotFound.
	GetByID(ctx context.Context, jobID string) (*models.JobRecord, error)
}
