package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/retry"
)

// Notifier posts review requests to the approval channel's chat API and
// updates them after a reviewer acts. The chat API rate-limits per bot,
// so every request waits on the shared limiter first.
type Notifier struct {
	endpoint   string
	token      string
	channelID  string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     *retry.Policy
	logger     arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ApprovalNotifier = (*Notifier)(nil)

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	TS      string `json:"ts,omitempty"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error,omitempty"`
}

// NotifierOption configures the Notifier
type NotifierOption func(*Notifier)

// WithNotifierHTTPClient sets a custom HTTP client
func WithNotifierHTTPClient(httpClient *http.Client) NotifierOption {
	return func(n *Notifier) {
		n.httpClient = httpClient
	}
}

// WithNotifierRateLimit sets the chat API request budget per second
func WithNotifierRateLimit(requestsPerSecond int) NotifierOption {
	return func(n *Notifier) {
		if requestsPerSecond > 0 {
			n.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// NewNotifier creates an approval-channel notifier
func NewNotifier(endpoint, token, channelID string, logger arbor.ILogger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		channelID:  channelID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		policy:     retry.NewPolicy(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts the approval request and returns the message timestamp
// that later UpdateMessage calls address.
func (n *Notifier) Notify(ctx context.Context, job *models.JobRecord) (string, error) {
	var ts string
	err := n.policy.Execute(ctx, n.logger, "post_approval_message", func() error {
		var callErr error
		ts, callErr = n.post(ctx, "chat.postMessage", postMessageRequest{
			Channel: n.channelID,
			Text:    renderReviewMessage(job),
		})
		return callErr
	})
	if err != nil {
		return "", err
	}

	n.logger.Info().
		Str("job_id", job.JobID).
		Str("message_ts", ts).
		Msg("Posted approval request")
	return ts, nil
}

// UpdateMessage rewrites the review message in place with the verdict
func (n *Notifier) UpdateMessage(ctx context.Context, ts string, job *models.JobRecord, verdict string) error {
	return n.policy.Execute(ctx, n.logger, "update_approval_message", func() error {
		_, err := n.post(ctx, "chat.update", postMessageRequest{
			Channel: n.channelID,
			TS:      ts,
			Text:    fmt.Sprintf("%s\n\n*%s* — %s", renderReviewMessage(job), strings.ToUpper(verdict), time.Now().UTC().Format(time.RFC3339)),
		})
		return err
	})
}

func (n *Notifier) post(ctx context.Context, method string, payload postMessageRequest) (string, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint+"/"+method, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &interfaces.AuthError{Service: "approval"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &interfaces.StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	var parsed postMessageResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &interfaces.ValidationError{
			Source: "approval",
			Reason: fmt.Sprintf("malformed chat response: %v", err),
		}
	}
	if !parsed.OK {
		// The chat API signals auth trouble in-band with a 200
		if parsed.Error == "invalid_auth" || parsed.Error == "token_revoked" {
			return "", &interfaces.AuthError{Service: "approval"}
		}
		return "", &interfaces.ValidationError{Source: "approval", Reason: parsed.Error}
	}
	return parsed.TS, nil
}

// renderReviewMessage formats the structured review request. Reviewers
// act on it from the channel, so everything they need is inline.
func renderReviewMessage(job *models.JobRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s\n", job.Title, job.URL)
	if job.FitScore != nil {
		fmt.Fprintf(&b, "Fit: %d/100\n", *job.FitScore)
	}
	if budget := models.RenderBudget(models.Budget{Type: job.BudgetType, Min: job.BudgetMin, Max: job.BudgetMax}); budget != "" {
		fmt.Fprintf(&b, "Budget: %s\n", budget)
	}
	if job.PricingProposed != nil {
		fmt.Fprintf(&b, "Proposed price: $%.0f\n", *job.PricingProposed)
	}
	if job.BoostDecision != nil {
		fmt.Fprintf(&b, "Boost: %t\n", *job.BoostDecision)
	}
	if job.ProposalDocURL != "" {
		fmt.Fprintf(&b, "Proposal doc: %s\n", job.ProposalDocURL)
	}
	if job.VideoURL != "" {
		fmt.Fprintf(&b, "Video: %s\n", job.VideoURL)
	}
	if job.ProposalText != "" {
		fmt.Fprintf(&b, "\n%s\n", truncateForChannel(job.ProposalText, 2500))
	}
	return b.String()
}

func truncateForChannel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n… (truncated)"
}
