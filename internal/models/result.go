package models

import (
	"fmt"
	"sync"
	"time"
)

// PipelineResult accumulates statistics for one run. Counter mutation is
// mutex-guarded because stage workers report completions concurrently.
type PipelineResult struct {
	mu sync.Mutex

	RunID       string `json:"run_id"`
	Source      string `json:"source"`
	MinScore    int    `json:"min_score"`
	WorkerCount int    `json:"worker_count"`
	Mock        bool   `json:"mock"`

	Ingested       int `json:"ingested"`
	AfterDedup     int `json:"after_dedup"`
	AfterPrefilter int `json:"after_prefilter"`
	FilteredOut    int `json:"filtered_out"`
	Processed      int `json:"processed"`
	SentToApproval int `json:"sent_to_approval"`
	WithErrors     int `json:"with_errors"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Errors  []string     `json:"errors,omitempty"`
	Records []*JobRecord `json:"records,omitempty"`
}

// NewPipelineResult starts the statistics for a run
func NewPipelineResult(runID, source string, minScore, workers int, mock bool) *PipelineResult {
	return &PipelineResult{
		RunID:       runID,
		Source:      source,
		MinScore:    minScore,
		WorkerCount: workers,
		Mock:        mock,
		StartedAt:   time.Now().UTC(),
	}
}

// AddError records a run-level error string
func (p *PipelineResult) AddError(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

// Finish stamps the end time and derives the per-record error count
func (p *PipelineResult) Finish(records []*JobRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.FinishedAt = time.Now().UTC()
	p.Records = records
	p.WithErrors = 0
	for _, r := range records {
		if r.HasErrors() {
			p.WithErrors++
		}
	}
}

// Duration returns the wall-clock span of the run
func (p *PipelineResult) Duration() time.Duration {
	if p.FinishedAt.IsZero() {
		return time.Since(p.StartedAt)
	}
	return p.FinishedAt.Sub(p.StartedAt)
}

// Summary renders the one-line run outcome used in logs
func (p *PipelineResult) Summary() string {
	return fmt.Sprintf("ingested=%d after_dedup=%d after_prefilter=%d filtered_out=%d processed=%d sent_to_approval=%d with_errors=%d",
		p.Ingested, p.AfterDedup, p.AfterPrefilter, p.FilteredOut, p.Processed, p.SentToApproval, p.WithErrors)
}
