package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (live pipeline status and log stream)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Approval channel webhook
	mux.HandleFunc("/api/approval/callback", s.app.ApprovalHandler.HandleCallback)

	// API routes - Pipeline
	mux.HandleFunc("/api/pipeline/run", s.app.PipelineHandler.HandleRun)
	mux.HandleFunc("/api/pipeline/status", s.app.PipelineHandler.HandleStatus)
	mux.HandleFunc("/api/pipeline/results", s.app.PipelineHandler.HandleResults)

	// API routes - Jobs
	mux.HandleFunc("/api/jobs/", s.app.JobsHandler.HandleGet) // GET /api/jobs/{id}

	// API routes - System
	mux.HandleFunc("/api/health", s.app.StatusHandler.HandleHealth)
	mux.HandleFunc("/api/version", s.app.StatusHandler.HandleVersion)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not found", http.StatusNotFound)
}
