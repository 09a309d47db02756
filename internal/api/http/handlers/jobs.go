package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flowmesh/replayd/internal/replay"
	"github.com/flowmesh/replayd/internal/store"
)

// JobService is the replay job lifecycle surface the handlers expose
type JobService interface {
	Submit(ctx context.Context, req replay.Request) (*replay.Job, error)
	GetJob(ctx context.Context, jobID string) (*replay.Job, error)
	ListJobs(ctx context.Context, q store.Query) ([]*replay.Job, error)
	Cancel(ctx context.Context, jobID string) error
	Retry(ctx context.Context, jobID string) error
	Delete(ctx context.Context, jobID string) error
	GetHistory(ctx context.Context, jobID string, page store.HistoryPage) ([]*replay.HistoryEntry, error)
	Ready() bool
}

// JobHandlers provides HTTP handlers for replay job operations
type JobHandlers struct {
	service JobService
}

// NewJobHandlers creates new job handlers
func NewJobHandlers(service JobService) *JobHandlers {
	return &JobHandlers{service: service}
}

// SubmitJob handles POST /api/v1/jobs
func (h *JobHandlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req replay.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	//nolint:errcheck // Status code already written
	json.NewEncoder(w).Encode(job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	q, err := parseJobQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobs, err := h.service.ListJobs(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*replay.Job{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Status code already written
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"jobs":   jobs,
	})
}

// GetJob handles GET /api/v1/jobs/{job_id}
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := extractJobIDFromPath(r.URL.Path)
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Status code already written
	json.NewEncoder(w).Encode(job)
}

// CancelJob handles POST /api/v1/jobs/{job_id}/cancel
func (h *JobHandlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := extractJobIDFromPath(r.URL.Path)
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		h.writeError(w, err)
		return
	}

	writeMessage(w, "job cancelled successfully")
}

// RetryJob handles POST /api/v1/jobs/{job_id}/retry
func (h *JobHandlers) RetryJob(w http.ResponseWriter, r *http.Request) {
	jobID := extractJobIDFromPath(r.URL.Path)
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Retry(r.Context(), jobID); err != nil {
		h.writeError(w, err)
		return
	}

	writeMessage(w, "job re-queued successfully")
}

// DeleteJob handles DELETE /api/v1/jobs/{job_id}
func (h *JobHandlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := extractJobIDFromPath(r.URL.Path)
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), jobID); err != nil {
		h.writeError(w, err)
		return
	}

	writeMessage(w, "job deleted successfully")
}

// GetJobHistory handles GET /api/v1/jobs/{job_id}/history
func (h *JobHandlers) GetJobHistory(w http.ResponseWriter, r *http.Request) {
	jobID := extractJobIDFromPath(r.URL.Path)
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	page := store.HistoryPage{}
	var err error
	if page.Offset, err = parseIntParam(r, "offset", 0); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if page.Limit, err = parseIntParam(r, "limit", 100); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.service.GetHistory(r.Context(), jobID, page)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*replay.HistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Status code already written
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "success",
		"job_id":  jobID,
		"entries": entries,
	})
}

// Helper functions

func parseJobQuery(r *http.Request) (store.Query, error) {
	q := store.Query{
		Cluster:   r.URL.Query().Get("cluster"),
		Status:    replay.Status(r.URL.Query().Get("status")),
		Topic:     r.URL.Query().Get("topic"),
		CreatedBy: r.URL.Query().Get("created_by"),
	}

	var err error
	if q.Offset, err = parseIntParam(r, "offset", 0); err != nil {
		return q, err
	}
	if q.Limit, err = parseIntParam(r, "limit", 100); err != nil {
		return q, err
	}
	if q.From, err = parseTimeParam(r, "from"); err != nil {
		return q, err
	}
	if q.To, err = parseTimeParam(r, "to"); err != nil {
		return q, err
	}
	return q, nil
}

func parseIntParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &paramError{name: name, reason: "must be a non-negative integer"}
	}
	return v, nil
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &paramError{name: name, reason: "must be an RFC 3339 timestamp"}
	}
	return &t, nil
}

type paramError struct {
	name   string
	reason string
}

func (e *paramError) Error() string {
	return e.name + " " + e.reason
}

func writeMessage(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Status code already written
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "success",
		"message": msg,
	})
}

func extractJobIDFromPath(path string) string {
	// Path format: /api/v1/jobs/{job_id} or /api/v1/jobs/{job_id}/cancel, etc.
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "jobs" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func (h *JobHandlers) writeError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case replay.JobNotFoundError:
		http.Error(w, e.Error(), http.StatusNotFound)
	case replay.ValidationError:
		http.Error(w, e.Error(), http.StatusBadRequest)
	case replay.InvalidStateTransitionError:
		http.Error(w, e.Error(), http.StatusConflict)
	case replay.JobRunningError:
		http.Error(w, e.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
