package core

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthStatus represents the health state of the service
type HealthStatus struct {
	Status        string `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64  `json:"uptime_seconds"`
	SessionState  string `json:"session_state"`
	MQTTConnected bool   `json:"mqtt_connected"`
}

// HealthCheck returns the current health status of the service
func (s *Scandesk) HealthCheck() HealthStatus {
	s.mu.RLock()
	running := s.isRunning
	started := s.started
	s.mu.RUnlock()

	status := HealthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(started).Seconds()),
		SessionState:  s.session.StateNow().String(),
	}

	if s.emitter != nil && s.emitter.Client != nil && s.emitter.Client.IsConnected() {
		status.MQTTConnected = true
	}

	if !running {
		status.Status = "unhealthy"
	} else if !status.MQTTConnected {
		status.Status = "degraded"
	}

	return status
}

// LivenessHandler handles /health endpoint (simple liveness check)
func (s *Scandesk) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ReadinessHandler handles /readiness endpoint (detailed readiness check)
func (s *Scandesk) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := s.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// StartHealthServer starts the HTTP health check server on the given port.
// This runs in a separate goroutine and does not block.
func (s *Scandesk) StartHealthServer(port string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server",
		"port", port,
		"endpoints", []string{"/health", "/readiness"},
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}
