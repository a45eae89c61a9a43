package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

const (
	// DefaultApifyBaseURL is the base URL for the Apify API
	DefaultApifyBaseURL = "https://api.apify.com/v2"

	// DefaultApifyTimeout is the default HTTP timeout
	DefaultApifyTimeout = 30 * time.Second

	// DefaultApifyRateLimit is the default rate limit (requests per second)
	DefaultApifyRateLimit = 5
)

// ApifySource ingests scraped job postings from an Apify actor dataset
type ApifySource struct {
	baseURL    string
	token      string
	datasetID  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// Compile-time assertion
var _ interfaces.JobSource = (*ApifySource)(nil)

// ApifyOption configures the ApifySource
type ApifyOption func(*ApifySource)

// WithApifyBaseURL sets a custom base URL
func WithApifyBaseURL(baseURL string) ApifyOption {
	return func(s *ApifySource) {
		if baseURL != "" {
			s.baseURL = baseURL
		}
	}
}

// WithApifyHTTPClient sets a custom HTTP client
func WithApifyHTTPClient(httpClient *http.Client) ApifyOption {
	return func(s *ApifySource) {
		s.httpClient = httpClient
	}
}

// WithApifyRateLimit sets a custom rate limit
func WithApifyRateLimit(requestsPerSecond int) ApifyOption {
	return func(s *ApifySource) {
		if requestsPerSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithApifyTimeout sets the HTTP timeout
func WithApifyTimeout(timeout time.Duration) ApifyOption {
	return func(s *ApifySource) {
		if timeout > 0 {
			s.httpClient.Timeout = timeout
		}
	}
}

// NewApifySource creates an Apify dataset source
func NewApifySource(token, datasetID string, logger arbor.ILogger, opts ...ApifyOption) *ApifySource {
	s := &ApifySource{
		baseURL:   DefaultApifyBaseURL,
		token:     token,
		datasetID: datasetID,
		httpClient: &http.Client{
			Timeout: DefaultApifyTimeout,
		},
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(DefaultApifyRateLimit), DefaultApifyRateLimit),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the source identifier recorded on each job
func (s *ApifySource) Name() string {
	return models.SourceApify
}

// Ingest fetches up to limit raw jobs from the dataset items endpoint.
// Items missing a job id fall back to the ~token derived from their URL
// during record construction.
func (s *ApifySource) Ingest(ctx context.Context, limit int) ([]models.RawJob, error) {
	if s.token == "" {
		return nil, &interfaces.ConfigError{Field: "sources.apify.token", Reason: "required"}
	}
	if s.datasetID == "" {
		return nil, &interfaces.ConfigError{Field: "sources.apify.dataset_id", Reason: "required"}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("token", s.token)
	params.Set("clean", "true")
	params.Set("format", "json")
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	reqURL := fmt.Sprintf("%s/datasets/%s/items?%s", s.baseURL, s.datasetID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Debug().
		Str("dataset_id", s.datasetID).
		Int("limit", limit).
		Msg("Fetching Apify dataset items")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &interfaces.AuthError{Service: "apify"}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &interfaces.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var items []models.RawJob
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &interfaces.ValidationError{Source: "apify", Reason: fmt.Sprintf("undecodable dataset items: %v", err)}
	}

	s.logger.Info().
		Int("count", len(items)).
		Str("dataset_id", s.datasetID).
		Msg("Ingested Apify dataset items")
	return items, nil
}
