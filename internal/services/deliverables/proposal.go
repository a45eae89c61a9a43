package deliverables

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/retry"
	"github.com/ternarybob/petitor/internal/services/llm"
)

const writeTimeout = 2 * time.Minute

const proposalSystemPrompt = `You write freelance job proposals. The proposal is markdown,
opens with the greeting line given in the prompt, speaks to the posting's concrete
requirements, and never pads with generic credentials. The cover letter is three
sentences of plain text for the application form.
Reply with a single JSON object:
{"proposal": "<markdown>", "cover_letter": "<plain text>"}.`

type proposalResponse struct {
	Proposal    string `json:"proposal" validate:"required"`
	CoverLetter string `json:"cover_letter" validate:"required"`
}

// ProposalWriter drafts the proposal and cover letter with an LLM
// provider under the shared retry policy.
type ProposalWriter struct {
	provider llm.Provider
	policy   *retry.Policy
	validate *validator.Validate
	model    string
	logger   arbor.ILogger
}

// NewProposalWriter creates a proposal writer over an LLM provider
func NewProposalWriter(provider llm.Provider, model string, logger arbor.ILogger) *ProposalWriter {
	return &ProposalWriter{
		provider: provider,
		policy:   retry.NewPolicy(),
		validate: validator.New(),
		model:    model,
		logger:   logger,
	}
}

// Write drafts the proposal for one job. The greeting is derived from
// contact discovery over the description and handed to the model verbatim
// so addressing never depends on model behaviour.
func (w *ProposalWriter) Write(ctx context.Context, job *models.JobRecord) (proposal, coverLetter string, err error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	contact := models.DiscoverContact(job.Description)
	if contact.Name != "" {
		job.ContactName = contact.Name
		job.ContactConfidence = contact.Confidence
	}

	request := &llm.ContentRequest{
		Model:             w.model,
		SystemInstruction: proposalSystemPrompt,
		Messages: []interfaces.Message{
			{Role: "user", Content: buildProposalPrompt(job, contact)},
		},
		OutputSchema: map[string]interface{}{
			"type":     "object",
			"required": []string{"proposal", "cover_letter"},
			"properties": map[string]interface{}{
				"proposal":     map[string]interface{}{"type": "string"},
				"cover_letter": map[string]interface{}{"type": "string"},
			},
		},
	}

	var response *llm.ContentResponse
	err = w.policy.Execute(ctx, w.logger, "write_proposal", func() error {
		var callErr error
		response, callErr = w.provider.GenerateContent(ctx, request)
		return callErr
	})
	if err != nil {
		return "", "", err
	}

	var parsed proposalResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response.Text)), &parsed); err != nil {
		return "", "", &interfaces.ValidationError{
			Source: "proposal",
			Reason: fmt.Sprintf("malformed proposal JSON: %v", err),
		}
	}
	if err := w.validate.Struct(&parsed); err != nil {
		return "", "", &interfaces.ValidationError{
			Source: "proposal",
			Reason: fmt.Sprintf("proposal missing required fields: %v", err),
		}
	}

	w.logger.Debug().
		Str("job_id", job.JobID).
		Int("proposal_len", len(parsed.Proposal)).
		Str("contact", contact.Name).
		Msg("Drafted proposal")

	return parsed.Proposal, parsed.CoverLetter, nil
}

func buildProposalPrompt(job *models.JobRecord, contact models.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Open the proposal with exactly this greeting line: %q\n\n", models.Greeting(contact))
	fmt.Fprintf(&b, "Job title: %s\n\n", job.Title)
	fmt.Fprintf(&b, "Job description:\n%s\n", job.Description)
	if budget := models.RenderBudget(models.Budget{Type: job.BudgetType, Min: job.BudgetMin, Max: job.BudgetMax}); budget != "" {
		fmt.Fprintf(&b, "\nBudget: %s\n", budget)
	}
	if len(job.Skills) > 0 {
		fmt.Fprintf(&b, "\nSkills: %s\n", strings.Join(job.Skills, ", "))
	}
	if job.FitReasoning != "" {
		fmt.Fprintf(&b, "\nFit assessment:\n%s\n", job.FitReasoning)
	}
	if job.AttachmentContent != "" {
		fmt.Fprintf(&b, "\nAttachment content:\n%s\n", job.AttachmentContent)
	}
	return b.String()
}
