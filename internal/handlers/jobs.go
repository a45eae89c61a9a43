package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
)

// JobsHandler serves job records from the sheet
type JobsHandler struct {
	store  interfaces.SheetStore
	logger arbor.ILogger
}

// NewJobsHandler creates the jobs API handler
func NewJobsHandler(store interfaces.SheetStore, logger arbor.ILogger) *JobsHandler {
	return &JobsHandler{store: store, logger: logger}
}

// HandleGet is GET /api/jobs/{id}
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "job id required")
		return
	}

	job, err := h.store.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			WriteError(w, http.StatusNotFound, "no such job")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Sheet lookup failed")
		WriteError(w, http.StatusInternalServerError, "sheet lookup failed")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}
