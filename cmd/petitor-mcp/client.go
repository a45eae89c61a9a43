package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/petitor/internal/models"
)

// apiClient is a thin HTTP client over the running daemon's API
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// runRequest mirrors the body of POST /api/pipeline/run
type runRequest struct {
	Source   string          `json:"source,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	MinScore *int            `json:"min_score,omitempty"`
	Mock     bool            `json:"mock,omitempty"`
	Jobs     []models.RawJob `json:"jobs,omitempty"`
}

type statusResponse struct {
	Running    bool                   `json:"running"`
	LastResult *models.PipelineResult `json:"last_result"`
}

// RunPipeline triggers a run. The daemon executes it in the background.
func (c *apiClient) RunPipeline(ctx context.Context, req runRequest) (string, error) {
	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := c.post(ctx, "/api/pipeline/run", req, &reply); err != nil {
		return "", err
	}
	if reply.Status == "error" {
		return "", fmt.Errorf("%s", reply.Error)
	}
	return reply.Message, nil
}

// Status fetches the current run state and last result
func (c *apiClient) Status(ctx context.Context) (*statusResponse, error) {
	var status statusResponse
	if err := c.get(ctx, "/api/pipeline/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Results fetches stored run statistics, newest first
func (c *apiClient) Results(ctx context.Context, limit int) ([]*models.PipelineResult, error) {
	var reply struct {
		Results []*models.PipelineResult `json:"results"`
	}
	path := "/api/pipeline/results?limit=" + strconv.Itoa(limit)
	if err := c.get(ctx, path, &reply); err != nil {
		return nil, err
	}
	return reply.Results, nil
}

// GetJob fetches one job record by ID
func (c *apiClient) GetJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	var job models.JobRecord
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *apiClient) get(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *apiClient) post(ctx context.Context, path string, body, target interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *apiClient) do(req *http.Request, target interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Path)
	}
	return json.Unmarshal(data, target)
}
