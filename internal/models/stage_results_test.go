package models

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractResultApplyOverridesOnlyRicherFields(t *testing.T) {
	min, max := 500.0, 900.0
	job := &JobRecord{JobID: "~a", Title: "alert title", Description: "alert body"}
	result := &ExtractResult{
		Title:  "Full posting title",
		Budget: Budget{Type: BudgetFixed, Min: &min, Max: &max},
	}
	result.Apply(job)

	if job.Title != "Full posting title" {
		t.Errorf("title = %q", job.Title)
	}
	if job.Description != "alert body" {
		t.Errorf("empty extracted description must not clear the ingested one, got %q", job.Description)
	}
	if job.BudgetType != BudgetFixed || *job.BudgetMin != 500 {
		t.Errorf("budget not applied: %s %v", job.BudgetType, job.BudgetMin)
	}
}

func TestExtractResultApplyTruncatesAttachmentContent(t *testing.T) {
	// The euro sign is 3 bytes; position the cap mid-rune
	content := strings.Repeat("a", MaxAttachmentContent-1) + "€€"
	job := &JobRecord{JobID: "~a"}
	result := &ExtractResult{AttachmentContent: content}
	result.Apply(job)

	if len(job.AttachmentContent) > MaxAttachmentContent {
		t.Errorf("content length = %d, cap is %d", len(job.AttachmentContent), MaxAttachmentContent)
	}
	if !utf8.ValidString(job.AttachmentContent) {
		t.Error("truncation split a rune")
	}
	if job.AttachmentContent != strings.Repeat("a", MaxAttachmentContent-1) {
		t.Errorf("unexpected cut point, tail = %q", job.AttachmentContent[len(job.AttachmentContent)-4:])
	}
}

func TestBoostResultApplyWithoutBudgetLeavesPricingNil(t *testing.T) {
	job := &JobRecord{JobID: "~a"}
	result := &BoostResult{Boost: true, Reasoning: "ok"}
	result.Apply(job)

	if job.PricingProposed != nil {
		t.Errorf("pricing = %v, want nil without budget bounds", *job.PricingProposed)
	}
}
