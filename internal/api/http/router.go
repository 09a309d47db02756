package http

import (
	"net/http"
	"strings"

	"github.com/flowmesh/replayd/internal/api/http/handlers"
	"github.com/flowmesh/replayd/internal/api/http/middleware"
	"github.com/flowmesh/replayd/internal/logger"
)

// Router manages HTTP routes and middleware
type Router struct {
	mux         *http.ServeMux
	service     handlers.JobService
	jobHandlers *handlers.JobHandlers
}

// NewRouter creates a new router
func NewRouter(service handlers.JobService, readiness ...handlers.Readiness) *Router {
	r := &Router{
		mux:         http.NewServeMux(),
		service:     service,
		jobHandlers: handlers.NewJobHandlers(service),
	}

	r.setupRoutes(readiness...)

	return r
}

// setupRoutes sets up all HTTP routes
func (r *Router) setupRoutes(readiness ...handlers.Readiness) {
	chain := middleware.Chain(
		middleware.Recovery(logger.WithComponent("http.middleware")),
		middleware.Tracing(),
		middleware.Logging(logger.WithComponent("http.middleware")),
	)

	// Health check endpoints
	r.mux.Handle("/health", chain(http.HandlerFunc(handlers.HealthCheck)))
	r.mux.Handle("/ready", chain(http.HandlerFunc(handlers.ReadinessCheck(readiness...))))

	// Replay job API endpoints
	r.mux.Handle("/api/v1/jobs", chain(http.HandlerFunc(r.handleJobCollection)))
	r.mux.Handle("/api/v1/jobs/", chain(http.HandlerFunc(r.handleJobRoutes)))

	// Default API v1 route (for unmatched paths)
	r.mux.Handle("/api/v1/", chain(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})))
}

// handleJobCollection routes collection-level requests
func (r *Router) handleJobCollection(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.jobHandlers.SubmitJob(w, req)
	case http.MethodGet:
		r.jobHandlers.ListJobs(w, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes job-level requests to the appropriate handlers
func (r *Router) handleJobRoutes(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path

	// POST /api/v1/jobs/{job_id}/cancel
	if req.Method == http.MethodPost && strings.HasSuffix(path, "/cancel") {
		r.jobHandlers.CancelJob(w, req)
		return
	}

	// POST /api/v1/jobs/{job_id}/retry
	if req.Method == http.MethodPost && strings.HasSuffix(path, "/retry") {
		r.jobHandlers.RetryJob(w, req)
		return
	}

	// GET /api/v1/jobs/{job_id}/history
	if req.Method == http.MethodGet && strings.HasSuffix(path, "/history") {
		r.jobHandlers.GetJobHistory(w, req)
		return
	}

	// GET /api/v1/jobs/{job_id}
	if req.Method == http.MethodGet {
		r.jobHandlers.GetJob(w, req)
		return
	}

	// DELETE /api/v1/jobs/{job_id}
	if req.Method == http.MethodDelete {
		r.jobHandlers.DeleteJob(w, req)
		return
	}

	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
