package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Readiness reports whether a component is ready to serve
type Readiness interface {
	Ready() bool
}

// HealthCheck handles health check requests
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status: "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ReadinessCheck returns a handler that checks component readiness
func ReadinessCheck(components ...Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := len(components) > 0
		for _, c := range components {
			if c == nil || !c.Ready() {
				ready = false
				break
			}
		}

		response := HealthResponse{
			Status: "ready",
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			response.Status = "not ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(response)
	}
}
