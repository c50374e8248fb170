package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is any store that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status      string           `json:"status"`
	Connections int              `json:"connections"`
	Checks      map[string]Check `json:"checks"`
	Timestamp   string           `json:"timestamp"`
}

type HealthHandlers struct {
	store     Pinger
	storeName string
	online    func() int
}

// NewHealthHandlers reports on store, labelled storeName, and the live
// connection count returned by online.
func NewHealthHandlers(store Pinger, storeName string, online func() int) *HealthHandlers {
	return &HealthHandlers{store: store, storeName: storeName, online: online}
}

func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	healthy := true

	start := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		checks[h.storeName] = Check{Status: "fail", Message: "connection failed"}
		healthy = false
	} else {
		checks[h.storeName] = Check{Status: "pass", Latency: time.Since(start).String()}
	}

	resp := HealthResponse{
		Status:      "healthy",
		Connections: h.online(),
		Checks:      checks,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
