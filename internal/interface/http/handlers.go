package http

import (
	"net/http"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot answers keep-alive pings from the hosting platform.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "TheVuntgram bot",
		"status":  "alive",
		"version": s.deps.Health.Version(),
	})
}

// handleHealth is the liveness probe: the process is up and serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "healthy",
		"uptime":    s.deps.Health.Uptime().Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	}
	if s.deps.Stats != nil {
		body["bot"] = s.deps.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleReady is the readiness probe: the session store and the ledger answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
