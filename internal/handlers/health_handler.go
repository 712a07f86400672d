package handlers

import (
	"net/http"
	"time"
)

// HealthHandler reports liveness and process uptime
type HealthHandler struct {
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a health handler whose uptime counts from started
func NewHealthHandler(started time.Time) *HealthHandler {
	return &HealthHandler{started: started, now: time.Now}
}

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Message   string  `json:"message"`
}

// Check answers liveness probes
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	respondWithData(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Uptime:    now.Sub(h.started).Seconds(),
		Message:   MsgHealthy,
	})
}
