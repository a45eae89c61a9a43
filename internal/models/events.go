package models

import "time"

// SubmissionTrigger is the payload of the trigger_submission event. The
// submission subsystem consumes it; the engine's responsibility ends here.
type SubmissionTrigger struct {
	JobID      string    `json:"job_id"`
	ApprovedBy string    `json:"approved_by,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}

// StageEvent is the payload of pipeline_stage events broadcast while a
// run progresses, consumed by the live status stream.
type StageEvent struct {
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	Stage     string `json:"stage"`
	Remaining int    `json:"remaining"`
}

// RunEvent is the payload of pipeline_started and pipeline_completed
type RunEvent struct {
	RunID   string `json:"run_id"`
	Source  string `json:"source"`
	Summary string `json:"summary,omitempty"`
}
