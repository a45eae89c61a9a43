package models

import (
	"fmt"
	"time"
)

// MaxAttachmentContent caps the concatenated attachment text carried on a
// job record. Longer extractions are truncated, not rejected.
const MaxAttachmentContent = 5000

// ClientInfo is the extracted client sub-record of a job posting
type ClientInfo struct {
	Country         string   `json:"country,omitempty"`
	TotalSpent      *float64 `json:"total_spent,omitempty"`
	TotalSpentRaw   string   `json:"total_spent_raw,omitempty"`
	Hires           *int     `json:"hires,omitempty"`
	PaymentVerified *bool    `json:"payment_verified,omitempty"`
}

// Attachment is one file attached to a job posting. ExtractedText is
// filled by the deep extractor for PDF attachments.
type Attachment struct {
	Filename      string `json:"filename"`
	URL           string `json:"url,omitempty"`
	LocalPath     string `json:"local_path,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

// JobRecord is the single entity that threads the pipeline. It is created
// at ingest, mutated in place by each stage, persisted to the sheet at
// every stage boundary, and dropped from memory at run end. Exactly one
// goroutine owns a record at any time.
type JobRecord struct {
	// Identity. JobID is never mutated after creation.
	JobID  string `json:"job_id"`
	URL    string `json:"url"`
	Source string `json:"source"`

	Status Status `json:"status"`

	// Ingested fields
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills,omitempty"`

	// Scoring fields. A nil FitScore means the scorer never produced a
	// value; the prefilter treats that as a pass (fail-open).
	FitScore     *int   `json:"fit_score,omitempty"`
	FitReasoning string `json:"fit_reasoning,omitempty"`

	// Extracted fields
	BudgetType        BudgetType   `json:"budget_type,omitempty"`
	BudgetMin         *float64     `json:"budget_min,omitempty"`
	BudgetMax         *float64     `json:"budget_max,omitempty"`
	Client            ClientInfo   `json:"client,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	AttachmentContent string       `json:"attachment_content,omitempty"`

	// Deliverable fields
	ProposalDocURL string `json:"proposal_doc_url,omitempty"`
	ProposalText   string `json:"proposal_text,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
	PDFURL         string `json:"pdf_url,omitempty"`
	CoverLetter    string `json:"cover_letter,omitempty"`

	// Boost fields
	BoostDecision   *bool    `json:"boost_decision,omitempty"`
	BoostReasoning  string   `json:"boost_reasoning,omitempty"`
	PricingProposed *float64 `json:"pricing_proposed,omitempty"`

	// Discovery fields
	ContactName       string            `json:"contact_name,omitempty"`
	ContactConfidence ContactConfidence `json:"contact_confidence,omitempty"`

	// Approval fields. Timestamps are ISO8601 UTC strings because the
	// sheet is the durable copy and holds them as text.
	SlackMessageTS string `json:"slack_message_ts,omitempty"`
	ApprovedAt     string `json:"approved_at,omitempty"`
	SubmittedAt    string `json:"submitted_at,omitempty"`

	// Errors is the ordered failure log accumulated across stages
	Errors []string `json:"errors,omitempty"`
}

// NewJobRecord builds a record from a raw source job with status new.
// Returns an error when no job ID can be resolved or derived.
func NewJobRecord(source string, raw RawJob) (*JobRecord, error) {
	id := raw.ResolveJobID()
	if id == "" {
		return nil, fmt.Errorf("raw job from %s has no id and none derivable from url %q", source, raw.URL)
	}
	return &JobRecord{
		JobID:       id,
		URL:         raw.URL,
		Source:      source,
		Status:      StatusNew,
		Title:       raw.Title,
		Description: raw.Description,
		Skills:      raw.Skills,
	}, nil
}

// Advance moves the record to the next status, enforcing the lifecycle
// graph. Stage code treats a refusal as a programming error.
func (r *JobRecord) Advance(next Status) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("illegal status transition %s -> %s for job %s", r.Status, next, r.JobID)
	}
	r.Status = next
	return nil
}

// Fail marks the record with the absorbing error status and logs the cause
func (r *JobRecord) Fail(stage string, err error) {
	r.AppendError(stage, err)
	if r.Status.CanTransition(StatusError) {
		r.Status = StatusError
	}
}

// AppendError adds a diagnostic line to the record's failure log
func (r *JobRecord) AppendError(stage string, err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", stage, err))
}

// HasErrors reports whether any stage logged a failure for this record
func (r *JobRecord) HasErrors() bool {
	return len(r.Errors) > 0
}

// MarkApproved moves the record to approved and stamps the approval
// fields. Only a job awaiting review may be approved; anything else is
// refused so a misdirected or replayed callback cannot regress a status.
func (r *JobRecord) MarkApproved(messageTS string, at time.Time) error {
	if err := r.Advance(StatusApproved); err != nil {
		return err
	}
	r.ApprovedAt = at.UTC().Format(time.RFC3339)
	r.SlackMessageTS = messageTS
	return nil
}

// PassesFilter reports whether the record survives the prefilter at the
// given threshold. A nil score passes: scorer unavailability must not
// silently drop jobs.
func (r *JobRecord) PassesFilter(minScore int) bool {
	if r.FitScore == nil {
		return true
	}
	return *r.FitScore >= minScore
}
