package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/petitor/internal/common"
)

// StatusHandler serves the health and version endpoints
type StatusHandler struct {
	started time.Time
}

// NewStatusHandler creates the status handler
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{started: time.Now()}
}

// HandleHealth is GET /api/health
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"version": common.GetVersion(),
	})
}

// HandleVersion is GET /api/version
func (h *StatusHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}
