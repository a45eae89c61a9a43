package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/retry"
	"github.com/ternarybob/petitor/internal/services/llm"
)

// scoreTimeout caps one scoring call including all of its retries' work;
// each attempt also runs under the provider's own per-call deadline.
const scoreTimeout = 60 * time.Second

const systemPrompt = `You rate freelance job postings for fit against the operator profile.
Reply with a single JSON object: {"score": <integer 0-100>, "reasoning": "<one paragraph>"}.
Score 0 means no fit at all, 100 means an ideal match.`

// scoreResponse is the JSON shape the model must return. Validation
// failures are never retried: a malformed reply is a per-record error,
// not a transient one.
type scoreResponse struct {
	Score     int    `json:"score" validate:"min=0,max=100"`
	Reasoning string `json:"reasoning" validate:"required"`
}

// Scorer rates jobs with an LLM provider under the shared retry policy
type Scorer struct {
	provider llm.Provider
	policy   *retry.Policy
	validate *validator.Validate
	model    string
	logger   arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Scorer = (*Scorer)(nil)

// NewScorer creates a scorer over an LLM provider
func NewScorer(provider llm.Provider, model string, logger arbor.ILogger) *Scorer {
	return &Scorer{
		provider: provider,
		policy:   retry.NewPolicy(),
		validate: validator.New(),
		model:    model,
		logger:   logger,
	}
}

// Score rates one job's fit. Transport failures are retried with
// backoff; a reply that is not valid JSON in range surfaces as a
// validation error the orchestrator logs onto the record.
func (s *Scorer) Score(ctx context.Context, job *models.JobRecord) (*models.ScoreResult, error) {
	ctx, cancel := context.WithTimeout(ctx, scoreTimeout)
	defer cancel()

	request := &llm.ContentRequest{
		Model:             s.model,
		SystemInstruction: systemPrompt,
		Messages: []interfaces.Message{
			{Role: "user", Content: buildPrompt(job)},
		},
		OutputSchema: map[string]interface{}{
			"type":     "object",
			"required": []string{"score", "reasoning"},
			"properties": map[string]interface{}{
				"score":     map[string]interface{}{"type": "integer", "minimum": float64(0), "maximum": float64(100)},
				"reasoning": map[string]interface{}{"type": "string"},
			},
		},
	}

	var response *llm.ContentResponse
	err := s.policy.Execute(ctx, s.logger, "score_job", func() error {
		var callErr error
		response, callErr = s.provider.GenerateContent(ctx, request)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response.Text)), &parsed); err != nil {
		return nil, &interfaces.ValidationError{
			Source: "scorer",
			Reason: fmt.Sprintf("malformed score JSON: %v", err),
		}
	}
	if err := s.validate.Struct(&parsed); err != nil {
		return nil, &interfaces.ValidationError{
			Source: "scorer",
			Reason: fmt.Sprintf("score out of contract: %v", err),
		}
	}

	s.logger.Debug().
		Str("job_id", job.JobID).
		Int("score", parsed.Score).
		Msg("Scored job")

	return &models.ScoreResult{
		Score:     parsed.Score,
		Reasoning: parsed.Reasoning,
	}, nil
}

func buildPrompt(job *models.JobRecord) string {
	prompt := fmt.Sprintf("Title: %s\n\nDescription:\n%s", job.Title, job.Description)
	if len(job.Skills) > 0 {
		prompt += "\n\nSkills: "
		for i, skill := range job.Skills {
			if i > 0 {
				prompt += ", "
			}
			prompt += skill
		}
	}
	return prompt
}
