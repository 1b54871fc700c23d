package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-lite/internal/converter"
	"media-lite/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusStarting  = "starting"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Ready     bool             `json:"ready"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Database  string           `json:"database"`
	Tools     string           `json:"tools"`
	Converter converter.Status `json:"converter"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports catalog, tool and converter state. A missing ffmpeg
// reports degraded with 200; an unreachable catalog or a converter that is
// not running yet reports 503.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Database:     "ok",
		Tools:        "ok",
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	dbErr := h.pingDatabase(r)
	if dbErr != nil {
		response.Database = dbErr.Error()
	}
	if h.db == nil {
		response.Database = "disabled"
	}
	toolErr := h.tools.Available()
	if toolErr != nil {
		response.Tools = toolErr.Error()
	}
	response.Converter = h.converter.Status()
	response.Ready = dbErr == nil && response.Converter.Running

	code := http.StatusOK
	switch {
	case dbErr != nil:
		response.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	case !response.Converter.Running:
		response.Status = statusStarting
		code = http.StatusServiceUnavailable
	case toolErr != nil:
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once the converter loop is running and the
// catalog answers.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.converter.Status().Running && h.pingDatabase(r) == nil {
		writeJSONStatus(w, http.StatusOK, "ready")
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
}

func (h *Handlers) pingDatabase(r *http.Request) error {
	if h.db == nil {
		return nil
	}
	return h.db.Ping(r.Context())
}
