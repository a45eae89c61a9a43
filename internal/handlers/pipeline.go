package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/pipeline"
)

// ResultReader serves stored run statistics. Satisfied by the KV service.
type ResultReader interface {
	RecentResults(ctx context.Context, limit int) ([]*models.PipelineResult, error)
}

// runRequest is the body of POST /api/pipeline/run
type runRequest struct {
	Source   string          `json:"source,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	MinScore *int            `json:"min_score,omitempty"`
	Mock     bool            `json:"mock,omitempty"`
	Jobs     []models.RawJob `json:"jobs,omitempty"` // Inline jobs for the manual source
}

// PipelineHandler triggers runs and reports their outcomes
type PipelineHandler struct {
	service  *pipeline.Service
	results  ResultReader
	defaults pipeline.Options
	logger   arbor.ILogger

	mu   sync.RWMutex
	last *models.PipelineResult
}

// NewPipelineHandler creates the pipeline API handler. defaults supplies
// the configured source, threshold and worker count for fields the
// request leaves unset.
func NewPipelineHandler(service *pipeline.Service, results ResultReader, defaults pipeline.Options, logger arbor.ILogger) *PipelineHandler {
	return &PipelineHandler{
		service:  service,
		results:  results,
		defaults: defaults,
		logger:   logger,
	}
}

// HandleRun is POST /api/pipeline/run. The run executes in the
// background; progress streams over the WebSocket and the outcome lands
// in /api/pipeline/status.
func (h *PipelineHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req runRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			WriteError(w, http.StatusBadRequest, "malformed run request")
			return
		}
	}

	opts := h.defaults
	if req.Source != "" {
		opts.Source = req.Source
	}
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.MinScore != nil {
		opts.MinScore = *req.MinScore
	}
	if req.Mock {
		opts.Mock = true
	}
	opts.ManualJobs = req.Jobs

	if !models.ValidSource(opts.Source) {
		WriteError(w, http.StatusBadRequest, "unknown source "+opts.Source)
		return
	}
	if h.service.Running() {
		WriteError(w, http.StatusConflict, "pipeline run already in progress")
		return
	}

	go func() {
		result, err := h.service.Run(context.Background(), opts)
		if err != nil {
			h.logger.Error().Err(err).Str("source", opts.Source).Msg("Pipeline run failed")
			return
		}
		h.mu.Lock()
		h.last = result
		h.mu.Unlock()
	}()

	WriteStarted(w, "pipeline run started for source "+opts.Source)
}

// HandleStatus is GET /api/pipeline/status
func (h *PipelineHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	h.mu.RLock()
	last := h.last
	h.mu.RUnlock()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running":     h.service.Running(),
		"last_result": last,
	})
}

// HandleResults is GET /api/pipeline/results?limit=N
func (h *PipelineHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	results, err := h.results.RecentResults(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load results: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
