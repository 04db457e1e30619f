// Package api provides application export handlers for loan intake endpoints.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/crestline/loanintake/internal/export"
	"github.com/crestline/loanintake/internal/models"
)

// listApplicationsHandler handles GET /applications.
func (s *Server) listApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listApplicationsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.listApplicationsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	apps, err := s.st.ListApplications()
	if err != nil {
		slog.Error("Server.listApplicationsHandler: store listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch applications"))
		return
	}

	slog.Debug("Server.listApplicationsHandler: applications fetched", "count", len(apps))
	writeJSONResponse(w, http.StatusOK, models.Success(apps))
}

// applicationSubtreeHandler routes /applications/{id} and /applications/{id}/download.
func (s *Server) applicationSubtreeHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/applications/")
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Missing application ID"))
		return
	}
	sessionID := segments[0]

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	switch {
	case len(segments) == 1:
		s.getApplicationHandler(w, r, sessionID)
	case len(segments) == 2 && segments[1] == "download":
		s.downloadApplicationHandler(w, r, sessionID)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown application endpoint"))
	}
}

// getApplicationHandler handles GET /applications/{id}.
func (s *Server) getApplicationHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	slog.Debug("Server.getApplicationHandler: fetching application", "session_id", sessionID)

	rec, err := s.st.GetApplication(sessionID)
	if err != nil {
		slog.Error("Server.getApplicationHandler: store lookup failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch application"))
		return
	}
	if rec == nil {
		slog.Warn("Server.getApplicationHandler: application not found", "session_id", sessionID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Application not found"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(rec))
}

// downloadApplicationHandler handles GET /applications/{id}/download and
// returns the single application rendered as CSV.
func (s *Server) downloadApplicationHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	slog.Debug("Server.downloadApplicationHandler: rendering application", "session_id", sessionID)

	rec, err := s.st.GetApplication(sessionID)
	if err != nil {
		slog.Error("Server.downloadApplicationHandler: store lookup failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch application"))
		return
	}
	if rec == nil {
		slog.Warn("Server.downloadApplicationHandler: application not found", "session_id", sessionID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Application not found"))
		return
	}

	payload, err := export.Render(*rec)
	if err != nil {
		slog.Error("Server.downloadApplicationHandler: render failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to render application"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="application_`+sessionID+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		slog.Error("Server.downloadApplicationHandler: failed to write payload", "error", err, "session_id", sessionID)
	}
}
