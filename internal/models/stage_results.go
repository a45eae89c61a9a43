package models

import "unicode/utf8"

// Stage results are what the pipeline drivers hand back to the
// orchestrator. Each carries an Apply that folds the outcome into the
// job record; drivers never mutate records directly, so a failed driver
// leaves its record exactly as the previous stage persisted it.

// ScoreResult is the scorer's verdict on a job
type ScoreResult struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Apply writes the score onto the record
func (s *ScoreResult) Apply(job *JobRecord) {
	score := s.Score
	job.FitScore = &score
	job.FitReasoning = s.Reasoning
}

// ExtractResult is the deep extractor's view of a posting page. Fields
// the page did not yield stay zero-valued.
type ExtractResult struct {
	Title             string
	Description       string
	BudgetText        string
	Budget            Budget
	Client            ClientInfo
	Attachments       []Attachment
	AttachmentContent string
}

// Apply merges extracted detail into the record. Ingested title and
// description survive unless the page yielded richer ones; everything
// else overwrites, since the rendered page is the fuller source.
func (e *ExtractResult) Apply(job *JobRecord) {
	if e.Title != "" {
		job.Title = e.Title
	}
	if e.Description != "" {
		job.Description = e.Description
	}

	job.BudgetType = e.Budget.Type
	job.BudgetMin = e.Budget.Min
	job.BudgetMax = e.Budget.Max
	job.Client = e.Client

	if len(e.Attachments) > 0 {
		job.Attachments = e.Attachments
	}
	job.AttachmentContent = truncateContent(e.AttachmentContent, MaxAttachmentContent)
}

// truncateContent caps s at max bytes without splitting a rune
func truncateContent(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// DeliverableResult is the generated application bundle. Optional
// artifacts (doc, PDF, video) are empty strings when their collaborator
// was absent or failed.
type DeliverableResult struct {
	ProposalText string
	CoverLetter  string
	DocURL       string
	PDFURL       string
	VideoURL     string
}

// Apply writes the bundle onto the record
func (d *DeliverableResult) Apply(job *JobRecord) {
	job.ProposalText = d.ProposalText
	job.CoverLetter = d.CoverLetter
	job.ProposalDocURL = d.DocURL
	job.PDFURL = d.PDFURL
	job.VideoURL = d.VideoURL
}

// BoostResult is the boost decider's verdict
type BoostResult struct {
	Boost      bool   `json:"boost"`
	Reasoning  string `json:"reasoning"`
	Confidence string `json:"confidence,omitempty"`
}

// Apply writes the verdict and derives the proposed price from the
// budget bounds already on the record.
func (b *BoostResult) Apply(job *JobRecord) {
	boost := b.Boost
	job.BoostDecision = &boost
	job.BoostReasoning = b.Reasoning
	job.PricingProposed = ProposePricing(job.BudgetMin, job.BudgetMax)
}
