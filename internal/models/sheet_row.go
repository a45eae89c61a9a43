package models

import (
	"encoding/json"
	"strconv"
)

// KeyColumn is the sheet column that keys every row
const KeyColumn = "job_id"

// SheetColumns is the full header row a fresh sheet carries. The store
// treats the live header row as authoritative; this list seeds in-memory
// backends for mock runs and tests.
var SheetColumns = []string{
	KeyColumn, "url", "source", "status", "title", "description",
	"skills", "fit_score", "fit_reasoning",
	"budget_type", "budget_min", "budget_max",
	"client_country", "client_total_spent", "client_total_spent_raw",
	"client_hires", "client_payment_verified",
	"attachments", "attachment_content",
	"proposal_doc_url", "proposal_text", "video_url", "pdf_url",
	"cover_letter", "boost_decision", "boost_reasoning",
	"pricing_proposed", "contact_name", "contact_confidence",
	"slack_message_ts", "approved_at", "submitted_at", "errors",
}

// ToRow projects the record onto column-named cells. Only non-empty
// fields appear: the sheet store writes a cell per present column and
// leaves the rest untouched. Sequences are JSON-encoded, booleans
// lowercased, timestamps already ISO8601 strings on the record.
func (r *JobRecord) ToRow() map[string]string {
	row := map[string]string{
		KeyColumn: r.JobID,
		"status":  string(r.Status),
	}
	putString(row, "url", r.URL)
	putString(row, "source", r.Source)
	putString(row, "title", r.Title)
	putString(row, "description", r.Description)
	putJSON(row, "skills", r.Skills)
	if r.FitScore != nil {
		row["fit_score"] = strconv.Itoa(*r.FitScore)
	}
	putString(row, "fit_reasoning", r.FitReasoning)
	if r.BudgetType != "" {
		row["budget_type"] = string(r.BudgetType)
	}
	putFloat(row, "budget_min", r.BudgetMin)
	putFloat(row, "budget_max", r.BudgetMax)
	putString(row, "client_country", r.Client.Country)
	putFloat(row, "client_total_spent", r.Client.TotalSpent)
	putString(row, "client_total_spent_raw", r.Client.TotalSpentRaw)
	if r.Client.Hires != nil {
		row["client_hires"] = strconv.Itoa(*r.Client.Hires)
	}
	putBool(row, "client_payment_verified", r.Client.PaymentVerified)
	if len(r.Attachments) > 0 {
		putJSON(row, "attachments", r.Attachments)
	}
	putString(row, "attachment_content", r.AttachmentContent)
	putString(row, "proposal_doc_url", r.ProposalDocURL)
	putString(row, "proposal_text", r.ProposalText)
	putString(row, "video_url", r.VideoURL)
	putString(row, "pdf_url", r.PDFURL)
	putString(row, "cover_letter", r.CoverLetter)
	putBool(row, "boost_decision", r.BoostDecision)
	putString(row, "boost_reasoning", r.BoostReasoning)
	putFloat(row, "pricing_proposed", r.PricingProposed)
	putString(row, "contact_name", r.ContactName)
	if r.ContactConfidence != "" {
		row["contact_confidence"] = string(r.ContactConfidence)
	}
	putString(row, "slack_message_ts", r.SlackMessageTS)
	putString(row, "approved_at", r.ApprovedAt)
	putString(row, "submitted_at", r.SubmittedAt)
	putJSON(row, "errors", r.Errors)
	return row
}

// RecordFromRow rebuilds a record from sheet cells. Unknown columns are
// ignored; malformed numerics parse as absent rather than failing the
// whole read.
func RecordFromRow(row map[string]string) *JobRecord {
	r := &JobRecord{
		JobID:       row[KeyColumn],
		URL:         row["url"],
		Source:      row["source"],
		Title:       row["title"],
		Description: row["description"],
	}
	if s, ok := ParseStatus(row["status"]); ok {
		r.Status = s
	}
	getJSON(row, "skills", &r.Skills)
	if v, err := strconv.Atoi(row["fit_score"]); err == nil && row["fit_score"] != "" {
		r.FitScore = &v
	}
	r.FitReasoning = row["fit_reasoning"]
	if t := row["budget_type"]; t != "" {
		r.BudgetType = BudgetType(t)
	}
	r.BudgetMin = getFloat(row, "budget_min")
	r.BudgetMax = getFloat(row, "budget_max")
	r.Client.Country = row["client_country"]
	r.Client.TotalSpent = getFloat(row, "client_total_spent")
	r.Client.TotalSpentRaw = row["client_total_spent_raw"]
	if v, err := strconv.Atoi(row["client_hires"]); err == nil && row["client_hires"] != "" {
		r.Client.Hires = &v
	}
	if v, err := strconv.ParseBool(row["client_payment_verified"]); err == nil && row["client_payment_verified"] != "" {
		r.Client.PaymentVerified = &v
	}
	getJSON(row, "attachments", &r.Attachments)
	r.AttachmentContent = row["attachment_content"]
	r.ProposalDocURL = row["proposal_doc_url"]
	r.ProposalText = row["proposal_text"]
	r.VideoURL = row["video_url"]
	r.PDFURL = row["pdf_url"]
	r.CoverLetter = row["cover_letter"]
	if v, err := strconv.ParseBool(row["boost_decision"]); err == nil && row["boost_decision"] != "" {
		r.BoostDecision = &v
	}
	r.BoostReasoning = row["boost_reasoning"]
	r.PricingProposed = getFloat(row, "pricing_proposed")
	r.ContactName = row["contact_name"]
	if c := row["contact_confidence"]; c != "" {
		r.ContactConfidence = ContactConfidence(c)
	}
	r.SlackMessageTS = row["slack_message_ts"]
	r.ApprovedAt = row["approved_at"]
	r.SubmittedAt = row["submitted_at"]
	getJSON(row, "errors", &r.Errors)
	return r
}

func putString(row map[string]string, col, v string) {
	if v != "" {
		row[col] = v
	}
}

func putFloat(row map[string]string, col string, v *float64) {
	if v != nil {
		row[col] = strconv.FormatFloat(*v, 'f', -1, 64)
	}
}

func putBool(row map[string]string, col string, v *bool) {
	if v != nil {
		row[col] = strconv.FormatBool(*v)
	}
}

func putJSON(row map[string]string, col string, v interface{}) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return
		}
	case []Attachment:
		if len(t) == 0 {
			return
		}
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return
	}
	row[col] = string(encoded)
}

func getJSON(row map[string]string, col string, target interface{}) {
	if raw := row[col]; raw != "" {
		_ = json.Unmarshal([]byte(raw), target)
	}
}

func getFloat(row map[string]string, col string) *float64 {
	raw := row[col]
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
