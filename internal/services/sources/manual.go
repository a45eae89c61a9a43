package sources

import (
	"context"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

// ManualSource yields a caller-provided list of jobs, used by the HTTP
// run trigger and by one-shot CLI invocations.
type ManualSource struct {
	jobs []models.RawJob
}

// Compile-time assertion
var _ interfaces.JobSource = (*ManualSource)(nil)

// NewManualSource creates a source over a fixed job list
func NewManualSource(jobs []models.RawJob) *ManualSource {
	return &ManualSource{jobs: jobs}
}

// Name returns the source identifier recorded on each job
func (s *ManualSource) Name() string {
	return models.SourceManual
}

// Ingest returns the provided jobs, capped at limit
func (s *ManualSource) Ingest(ctx context.Context, limit int) ([]models.RawJob, error) {
	if limit > 0 && len(s.jobs) > limit {
		return s.jobs[:limit], nil
	}
	return s.jobs, nil
}
