package deliverables

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
)

// DocsClient creates proposal documents on the external docs service.
//
// The upstream cannot handle parallel TLS handshakes from one process;
// callers must hold the serialization gate across CreateDocument
// including any retries.
type DocsClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     arbor.ILogger
}

type createDocRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Format  string `json:"format"`
}

type createDocResponse struct {
	URL string `json:"url"`
	ID  string `json:"id,omitempty"`
}

// NewDocsClient creates a docs-service client
func NewDocsClient(endpoint, token string, timeout time.Duration, logger arbor.ILogger) *DocsClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DocsClient{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CreateDocument uploads the proposal markdown as a shared document and
// returns its URL. One attempt, no internal retry; the caller owns
// backoff so the gate stays held across it.
func (c *DocsClient) CreateDocument(ctx context.Context, title, markdown string) (string, error) {
	payload, err := json.Marshal(createDocRequest{
		Title:   title,
		Content: markdown,
		Format:  "markdown",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode document request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/documents", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build document request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("document creation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &interfaces.AuthError{Service: "docs"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", &interfaces.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var parsed createDocResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &interfaces.ValidationError{
			Source: "docs",
			Reason: fmt.Sprintf("malformed document response: %v", err),
		}
	}
	if parsed.URL == "" {
		return "", &interfaces.ValidationError{Source: "docs", Reason: "document response has no url"}
	}

	c.logger.Debug().Str("title", title).Str("url", parsed.URL).Msg("Created proposal document")
	return parsed.URL, nil
}
