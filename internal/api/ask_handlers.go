// Package api provides knowledge base and health handlers for loan intake endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/crestline/loanintake/internal/models"
)

// askHandler handles POST /ask and answers applicant questions from the
// knowledge base.
func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.askHandler: processing question", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.askHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if s.kb == nil {
		slog.Warn("Server.askHandler: knowledge base not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Knowledge base not configured"))
		return
	}

	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.askHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.askHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	answer, err := s.kb.Answer(ctx, req.Query)
	if err != nil {
		slog.Error("Server.askHandler: knowledge base answer failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to answer question"))
		return
	}

	slog.Info("Server.askHandler: question answered", "query_length", len(req.Query))
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"answer": answer}))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// Use the application listing as a storage liveness probe
	if apps, err := s.st.ListApplications(); err != nil {
		slog.Warn("Server.healthHandler: storage probe failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to reach application storage"
	} else {
		healthData["completed_applications"] = len(apps)
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, healthData)
}
