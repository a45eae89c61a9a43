package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/petitor/internal/models"
)

// formatStatus renders the daemon state and run history as markdown
func formatStatus(status *statusResponse, results []*models.PipelineResult) string {
	var b strings.Builder

	if status.Running {
		b.WriteString("# Pipeline: RUNNING\n\n")
	} else {
		b.WriteString("# Pipeline: idle\n\n")
	}

	if status.LastResult != nil {
		b.WriteString("**Last run:** ")
		b.WriteString(status.LastResult.Summary())
		b.WriteString("\n\n")
	}

	if len(results) > 0 {
		b.WriteString("## Recent runs\n\n")
		for _, result := range results {
			fmt.Fprintf(&b, "- `%s` (%s): ingested %d, sent to approval %d, errors %d\n",
				result.RunID, result.Source, result.Ingested, result.SentToApproval, len(result.Errors))
		}
	}

	return b.String()
}

// formatJob renders one job record as markdown
func formatJob(job *models.JobRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", orDefault(job.Title, job.JobID))
	fmt.Fprintf(&b, "- **Job ID:** %s\n", job.JobID)
	fmt.Fprintf(&b, "- **Status:** %s\n", job.Status)
	fmt.Fprintf(&b, "- **Source:** %s\n", job.Source)
	if job.URL != "" {
		fmt.Fprintf(&b, "- **URL:** %s\n", job.URL)
	}
	if job.FitScore != nil {
		fmt.Fprintf(&b, "- **Fit score:** %d/100\n", *job.FitScore)
	}
	if job.BudgetType != "" {
		fmt.Fprintf(&b, "- **Budget:** %s", job.BudgetType)
		if job.BudgetMin != nil && job.BudgetMax != nil {
			fmt.Fprintf(&b, " ($%.0f-$%.0f)", *job.BudgetMin, *job.BudgetMax)
		}
		b.WriteString("\n")
	}
	if job.PricingProposed != nil {
		fmt.Fprintf(&b, "- **Proposed price:** $%.0f\n", *job.PricingProposed)
	}
	if job.BoostDecision != nil {
		fmt.Fprintf(&b, "- **Boost:** %v\n", *job.BoostDecision)
	}
	if job.ProposalDocURL != "" {
		fmt.Fprintf(&b, "- **Proposal doc:** %s\n", job.ProposalDocURL)
	}

	if job.FitReasoning != "" {
		fmt.Fprintf(&b, "\n## Fit reasoning\n\n%s\n", job.FitReasoning)
	}
	if job.ProposalText != "" {
		fmt.Fprintf(&b, "\n## Proposal\n\n%s\n", truncate(job.ProposalText, 2000))
	}
	if len(job.Errors) > 0 {
		b.WriteString("\n## Failure log\n\n")
		for _, e := range job.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	return b.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
