package boost

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

const decideTimeout = 60 * time.Second

const systemPrompt = `You decide whether a freelance application merits paid boosting.
Boosting is a bet on CLIENT quality, not on job fit: verified payment, real spend
history and repeat hiring justify the extra credits; an unverified client with no
history does not.
Reply with a single JSON object:
{"boost": <true|false>, "reasoning": "<one paragraph>", "confidence": "<high|medium|low>"}.`

type decideResponse struct {
	Boost      *bool  `json:"boost" validate:"required"`
	Reasoning  string `json:"reasoning" validate:"required"`
	Confidence string `json:"confidence" validate:"omitempty,oneof=high medium low"`
}

// Decider makes the boost call with an LLM provider under the shared
// retry policy. Pricing is derived locally from the budget bounds, not
// by the model.
type Decider struct {
	provider llm.Provider
	policy   *retry.Policy
	validate *validator.Validate
	model    string
	logger   arbor.ILogger
}

// Compile-time assertion
var _ interfaces.BoostDecider = (*Decider)(nil)

// NewDecider creates a boost decider over an LLM provider
func NewDecider(provider llm.Provider, model string, logger arbor.ILogger) *Decider {
	return &Decider{
		provider: provider,
		policy:   retry.NewPolicy(),
		validate: validator.New(),
		model:    model,
		logger:   logger,
	}
}

// Decide returns the boost verdict for one job
func (d *Decider) Decide(ctx context.Context, job *models.JobRecord) (*models.BoostResult, error) {
	ctx, cancel := context.WithTimeout(ctx, decideTimeout)
	defer cancel()

	request := &llm.ContentRequest{
		Model:             d.model,
		SystemInstruction: systemPrompt,
		Messages: []interfaces.Message{
			{Role: "user", Content: buildPrompt(job)},
		},
		OutputSchema: map[string]interface{}{
			"type":     "object",
			"required": []string{"boost", "reasoning"},
			"properties": map[string]interface{}{
				"boost":      map[string]interface{}{"type": "boolean"},
				"reasoning":  map[string]interface{}{"type": "string"},
				"confidence": map[string]interface{}{"type": "string", "enum": []string{"high", "medium", "low"}},
			},
		},
	}

	var response *llm.ContentResponse
	err := d.policy.Execute(ctx, d.logger, "decide_boost", func() error {
		var callErr error
		response, callErr = d.provider.GenerateContent(ctx, request)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var parsed decideResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response.Text)), &parsed); err != nil {
		return nil, &interfaces.ValidationError{
			Source: "boost",
			Reason: fmt.Sprintf("malformed boost JSON: %v", err),
		}
	}
	if err := d.validate.Struct(&parsed); err != nil {
		return nil, &interfaces.ValidationError{
			Source: "boost",
			Reason: fmt.Sprintf("boost verdict out of contract: %v", err),
		}
	}

	d.logger.Debug().
		Str("job_id", job.JobID).
		Bool("boost", *parsed.Boost).
		Str("confidence", parsed.Confidence).
		Msg("Boost decision made")

	return &models.BoostResult{
		Boost:      *parsed.Boost,
		Reasoning:  parsed.Reasoning,
		Confidence: parsed.Confidence,
	}, nil
}

func buildPrompt(job *models.JobRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\n", job.Title)
	if budget := models.RenderBudget(models.Budget{Type: job.BudgetType, Min: job.BudgetMin, Max: job.BudgetMax}); budget != "" {
		fmt.Fprintf(&b, "Budget: %s\n", budget)
	}

	b.WriteString("\nClient:\n")
	if job.Client.Country != "" {
		fmt.Fprintf(&b, "- country: %s\n", job.Client.Country)
	}
	if job.Client.TotalSpentRaw != "" {
		fmt.Fprintf(&b, "- total spent: %s\n", job.Client.TotalSpentRaw)
	} else if job.Client.TotalSpent != nil {
		fmt.Fprintf(&b, "- total spent: $%.0f\n", *job.Client.TotalSpent)
	}
	if job.Client.Hires != nil {
		fmt.Fprintf(&b, "- hires: %d\n", *job.Client.Hires)
	}
	if job.Client.PaymentVerified != nil {
		fmt.Fprintf(&b, "- payment verified: %t\n", *job.Client.PaymentVerified)
	}
	return b.String()
}
