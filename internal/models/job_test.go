package models

import (
	"errors"
	"testing"
	"time"
)

func TestNewJobRecord(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawJob
		wantID  string
		wantErr bool
	}{
		{
			name:   "explicit job_id",
			raw:    RawJob{JobID: "~abc1", URL: "https://jobs.example.com/~abc1"},
			wantID: "~abc1",
		},
		{
			name:   "id field",
			raw:    RawJob{ID: "item-7", URL: "https://jobs.example.com/x"},
			wantID: "item-7",
		},
		{
			name:   "uid field",
			raw:    RawJob{UID: "u-42"},
			wantID: "u-42",
		},
		{
			name:   "derived from url token",
			raw:    RawJob{URL: "https://jobs.example.com/apply/~021fe9c44d1a"},
			wantID: "~021fe9c44d1a",
		},
		{
			name:    "no identity at all",
			raw:     RawJob{URL: "https://jobs.example.com/apply/listing"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewJobRecord("apify", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.JobID != tt.wantID {
				t.Errorf("JobID = %q, want %q", rec.JobID, tt.wantID)
			}
			if rec.Status != StatusNew {
				t.Errorf("Status = %s, want %s", rec.Status, StatusNew)
			}
			if rec.Source != "apify" {
				t.Errorf("Source = %q", rec.Source)
			}
		})
	}
}

func TestDeriveJobID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://jobs.example.com/apply/~abc1", "~abc1"},
		{"https://jobs.example.com/~0123456789", "~0123456789"},
		{"https://jobs.example.com/apply/~deadBEEF42?src=rss", "~deadBEEF42"},
		{"https://jobs.example.com/apply/plain", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DeriveJobID(tt.url); got != tt.want {
			t.Errorf("DeriveJobID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestPassesFilter(t *testing.T) {
	score := func(v int) *JobRecord {
		return &JobRecord{JobID: "j", FitScore: &v}
	}

	if !score(70).PassesFilter(70) {
		t.Error("score equal to threshold must pass")
	}
	if score(69).PassesFilter(70) {
		t.Error("score below threshold must not pass")
	}
	if !score(100).PassesFilter(70) {
		t.Error("score above threshold must pass")
	}

	// Nil score passes: scorer unavailability never drops a job.
	nilScore := &JobRecord{JobID: "j"}
	if !nilScore.PassesFilter(70) {
		t.Error("nil score must pass the filter")
	}
}

func TestAdvanceEnforcesGraph(t *testing.T) {
	rec := &JobRecord{JobID: "~a", Status: StatusNew}
	if err := rec.Advance(StatusScoring); err != nil {
		t.Fatalf("new -> scoring: %v", err)
	}
	if err := rec.Advance(StatusPendingApproval); err == nil {
		t.Fatal("scoring -> pending_approval should be refused")
	}
	if rec.Status != StatusScoring {
		t.Errorf("refused transition mutated status to %s", rec.Status)
	}
}

func TestAppendErrorAndFail(t *testing.T) {
	rec := &JobRecord{JobID: "~a", Status: StatusExtracting}
	rec.AppendError("extract", errors.New("navigation timed out"))
	rec.AppendError("extract", nil)
	if len(rec.Errors) != 1 {
		t.Fatalf("expected one logged error, got %d", len(rec.Errors))
	}
	if rec.Errors[0] != "extract: navigation timed out" {
		t.Errorf("unexpected failure log entry: %q", rec.Errors[0])
	}
	if !rec.HasErrors() {
		t.Error("HasErrors should be true")
	}

	rec.Fail("extract", errors.New("browser crashed"))
	if rec.Status != StatusError {
		t.Errorf("Fail left status %s, want %s", rec.Status, StatusError)
	}
	if len(rec.Errors) != 2 {
		t.Errorf("Fail should also log, got %d entries", len(rec.Errors))
	}
}

func TestMarkApproved(t *testing.T) {
	rec := &JobRecord{JobID: "~a", Status: StatusPendingApproval}
	at := time.Date(2025, 11, 20, 9, 30, 0, 0, time.UTC)
	if err := rec.MarkApproved("1732093800.000100", at); err != nil {
		t.Fatalf("MarkApproved: %v", err)
	}

	if rec.Status != StatusApproved {
		t.Errorf("status = %s", rec.Status)
	}
	if rec.ApprovedAt != "2025-11-20T09:30:00Z" {
		t.Errorf("approved_at = %q", rec.ApprovedAt)
	}
	if rec.SlackMessageTS != "1732093800.000100" {
		t.Errorf("slack_message_ts = %q", rec.SlackMessageTS)
	}
}

func TestMarkApprovedRefusesNonPendingJobs(t *testing.T) {
	at := time.Date(2025, 11, 20, 9, 30, 0, 0, time.UTC)
	for _, status := range []Status{StatusSubmitted, StatusRejected, StatusFilteredOut, StatusScoring} {
		rec := &JobRecord{JobID: "~a", Status: status}
		if err := rec.MarkApproved("1732093800.000100", at); err == nil {
			t.Errorf("MarkApproved from %s: expected refusal", status)
		}
		if rec.Status != status {
			t.Errorf("status mutated %s -> %s", status, rec.Status)
		}
		if rec.ApprovedAt != "" {
			t.Errorf("approved_at stamped on %s job", status)
		}
	}
}

func TestSheetRowRoundTrip(t *testing.T) {
	score := 85
	verified := true
	boost := true
	rec := &JobRecord{
		JobID:             "~abc1",
		URL:               "https://jobs.example.com/~abc1",
		Source:            "manual",
		Status:            StatusPendingApproval,
		Title:             "AI pipeline",
		Description:       "Build an ingestion pipeline",
		Skills:            []string{"go", "llm"},
		FitScore:          &score,
		FitReasoning:      "strong overlap",
		BudgetType:        BudgetFixed,
		BudgetMin:         f(1000),
		BudgetMax:         f(2000),
		Client:            ClientInfo{Country: "US", TotalSpent: f(15000), TotalSpentRaw: "$15K", PaymentVerified: &verified},
		Attachments:       []Attachment{{Filename: "brief.pdf", URL: "https://cdn.example.com/brief.pdf"}},
		AttachmentContent: "project brief text",
		ProposalDocURL:    "https://docs.example.com/d/1",
		ProposalText:      "Hey Sarah ...",
		PDFURL:            "file:///tmp/~abc1.pdf",
		CoverLetter:       "Short version",
		BoostDecision:     &boost,
		BoostReasoning:    "verified client with spend",
		PricingProposed:   f(1500),
		ContactName:       "Sarah",
		ContactConfidence: ConfidenceHigh,
		SlackMessageTS:    "t0",
		Errors:            []string{"extract: one attachment skipped"},
	}

	row := rec.ToRow()
	if row[KeyColumn] != "~abc1" {
		t.Fatalf("key column = %q", row[KeyColumn])
	}
	if row["boost_decision"] != "true" {
		t.Errorf("booleans must serialize lowercased, got %q", row["boost_decision"])
	}
	if row["fit_score"] != "85" {
		t.Errorf("fit_score cell = %q", row["fit_score"])
	}

	back := RecordFromRow(row)
	if back.JobID != rec.JobID || back.Status != rec.Status || back.Title != rec.Title {
		t.Errorf("identity fields did not survive: %+v", back)
	}
	if back.FitScore == nil || *back.FitScore != 85 {
		t.Errorf("fit_score did not survive: %v", back.FitScore)
	}
	if back.BudgetMin == nil || *back.BudgetMin != 1000 || back.BudgetMax == nil || *back.BudgetMax != 2000 {
		t.Errorf("budget bounds did not survive: %v %v", back.BudgetMin, back.BudgetMax)
	}
	if back.Client.PaymentVerified == nil || !*back.Client.PaymentVerified {
		t.Error("client.payment_verified did not survive")
	}
	if len(back.Skills) != 2 || back.Skills[1] != "llm" {
		t.Errorf("skills did not survive: %v", back.Skills)
	}
	if len(back.Attachments) != 1 || back.Attachments[0].Filename != "brief.pdf" {
		t.Errorf("attachments did not survive: %v", back.Attachments)
	}
	if back.PricingProposed == nil || *back.PricingProposed != 1500 {
		t.Errorf("pricing_proposed did not survive: %v", back.PricingProposed)
	}
	if len(back.Errors) != 1 {
		t.Errorf("failure log did not survive: %v", back.Errors)
	}
}

func TestToRowSkipsAbsentFields(t *testing.T) {
	rec := &JobRecord{JobID: "~x", Status: StatusNew, Source: "apify"}
	row := rec.ToRow()

	for _, col := range []string{"fit_score", "budget_min", "boost_decision", "approved_at", "attachments", "errors"} {
		if _, present := row[col]; present {
			t.Errorf("absent field %q must not produce a cell", col)
		}
	}
}
