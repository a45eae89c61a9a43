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

const (
	defaultPollInterval = 10 * time.Second
	defaultPollDeadline = 5 * time.Minute
)

// VideoClient renders the spoken-avatar video of a cover letter. Renders
// are asynchronous: submit returns an id, completion is observed by
// polling until the deadline.
type VideoClient struct {
	endpoint     string
	token        string
	pollInterval time.Duration
	pollDeadline time.Duration
	httpClient   *http.Client
	logger       arbor.ILogger
}

type renderRequest struct {
	Script string `json:"script"`
}

type renderStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"` // queued, processing, done, failed
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewVideoClient creates a render-service client
func NewVideoClient(endpoint, token string, pollInterval, pollDeadline time.Duration, logger arbor.ILogger) *VideoClient {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if pollDeadline <= 0 {
		pollDeadline = defaultPollDeadline
	}
	return &VideoClient{
		endpoint:     endpoint,
		token:        token,
		pollInterval: pollInterval,
		pollDeadline: pollDeadline,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// Render submits the script and polls until the video is ready or the
// deadline passes. The video is the one optional deliverable: callers
// log a failure and move on.
func (c *VideoClient) Render(ctx context.Context, script string) (string, error) {
	id, err := c.submit(ctx, script)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.pollDeadline)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("video render %s did not finish before deadline: %w", id, ctx.Err())
		case <-ticker.C:
		}

		status, err := c.poll(ctx, id)
		if err != nil {
			return "", err
		}
		switch status.Status {
		case "done":
			c.logger.Debug().Str("render_id", id).Str("url", status.URL).Msg("Video render finished")
			return status.URL, nil
		case "failed":
			return "", fmt.Errorf("video render %s failed: %s", id, status.Error)
		}
	}
}

func (c *VideoClient) submit(ctx context.Context, script string) (string, error) {
	payload, err := json.Marshal(renderRequest{Script: script})
	if err != nil {
		return "", fmt.Errorf("failed to encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/renders", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("render submission failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &interfaces.AuthError{Service: "video"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &interfaces.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var status renderStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return "", &interfaces.ValidationError{
			Source: "video",
			Reason: fmt.Sprintf("malformed render response: %v", err),
		}
	}
	if status.ID == "" {
		return "", &interfaces.ValidationError{Source: "video", Reason: "render response has no id"}
	}
	return status.ID, nil
}

func (c *VideoClient) poll(ctx context.Context, id string) (*renderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/renders/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render poll failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &interfaces.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var status renderStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &interfaces.ValidationError{
			Source: "video",
			Reason: fmt.Sprintf("malformed render status: %v", err),
		}
	}
	return &status, nil
}
