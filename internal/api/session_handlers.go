// Package api provides session lifecycle handlers for loan intake endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crestline/loanintake/internal/models"
	"github.com/crestline/loanintake/internal/util"
)

// MaxDocumentUploadBytes caps multipart document uploads.
const MaxDocumentUploadBytes = 32 << 20

// sessionsHandler handles POST /sessions.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.sessionsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state := models.NewSessionState(util.GenerateSessionID())
	greeting := s.eng.Greeting()
	state.Append(models.SpeakerBot, greeting)

	if err := s.st.SaveSession(*state); err != nil {
		slog.Error("Server.sessionsHandler: failed to save session", "error", err, "session_id", state.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}

	slog.Info("Server.sessionsHandler: session created", "session_id", state.ID)
	writeTurnResponse(w, http.StatusCreated, state, greeting)
}

// sessionSubtreeHandler routes /sessions/{id} and its sub-resources.
func (s *Server) sessionSubtreeHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Missing session ID"))
		return
	}
	sessionID := segments[0]

	if len(segments) == 1 {
		// /sessions/{id}
		switch r.Method {
		case http.MethodGet:
			s.getSessionHandler(w, r, sessionID)
		default:
			w.Header().Set("Allow", http.MethodGet)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	if len(segments) == 2 {
		switch segments[1] {
		case "turns":
			// /sessions/{id}/turns
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
				return
			}
			s.turnHandler(w, r, sessionID)
			return
		case "documents":
			// /sessions/{id}/documents
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
				return
			}
			s.documentHandler(w, r, sessionID)
			return
		}
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session endpoint"))
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	slog.Debug("Server.getSessionHandler: fetching session", "session_id", sessionID)

	state, err := s.st.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.getSessionHandler: store lookup failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch session"))
		return
	}
	if state == nil {
		slog.Warn("Server.getSessionHandler: session not found", "session_id", sessionID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// turnHandler handles POST /sessions/{id}/turns.
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.turnHandler: processing turn", "session_id", sessionID)

	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.turnHandler: validation failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	state, err := s.st.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.turnHandler: store lookup failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch session"))
		return
	}
	if state == nil {
		slog.Warn("Server.turnHandler: session not found", "session_id", sessionID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	reply, err := s.eng.Advance(ctx, state, req.Utterance)
	if err != nil {
		slog.Error("Server.turnHandler: engine turn failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process turn"))
		return
	}

	if err := s.st.SaveSession(*state); err != nil {
		slog.Error("Server.turnHandler: failed to save session", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save session"))
		return
	}

	slog.Info("Server.turnHandler: turn processed", "session_id", sessionID, "status", state.Status, "pending", state.Pending)
	writeTurnResponse(w, http.StatusOK, state, reply)
}

// documentHandler handles POST /sessions/{id}/documents (multipart form with
// a "document" file part).
func (s *Server) documentHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.documentHandler: processing upload", "session_id", sessionID)

	state, err := s.st.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.documentHandler: store lookup failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch session"))
		return
	}
	if state == nil {
		slog.Warn("Server.documentHandler: session not found", "session_id", sessionID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	if state.Complete() {
		writeJSONResponse(w, http.StatusConflict, models.Error("Session is already complete"))
		return
	}
	if !s.eng.PendingUpload(state) {
		slog.Warn("Server.documentHandler: no upload field pending", "session_id", sessionID, "pending", state.Pending)
		writeJSONResponse(w, http.StatusConflict, models.Error("No document upload is currently pending"))
		return
	}

	if err := r.ParseMultipartForm(MaxDocumentUploadBytes); err != nil {
		slog.Warn("Server.documentHandler: invalid multipart form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		slog.Warn("Server.documentHandler: missing document part", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required file field: document"))
		return
	}
	defer file.Close()

	// The extension check depends on which upload field is pending: identity
	// documents may be images, supporting documents must be PDF.
	if !s.uploads.Allowed(state.Pending, header.Filename) {
		slog.Warn("Server.documentHandler: unrecognized document extension", "field", state.Pending, "filename", header.Filename)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unsupported document type: "+header.Filename))
		return
	}
	stored, err := s.uploads.StoreContent(state.Pending, header.Filename, file)
	if err != nil {
		slog.Error("Server.documentHandler: failed to store document", "error", err, "filename", header.Filename)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store document"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	reply, err := s.eng.SupplyDocument(ctx, state, stored)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSessionComplete):
			writeJSONResponse(w, http.StatusConflict, models.Error("Session is already complete"))
		case errors.Is(err, models.ErrNoPendingUpload):
			writeJSONResponse(w, http.StatusConflict, models.Error("No document upload is currently pending"))
		default:
			slog.Error("Server.documentHandler: engine rejected document", "error", err, "session_id", sessionID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process document"))
		}
		return
	}

	if err := s.st.SaveSession(*state); err != nil {
		slog.Error("Server.documentHandler: failed to save session", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save session"))
		return
	}

	slog.Info("Server.documentHandler: document accepted", "session_id", sessionID, "stored", stored, "status", state.Status)
	writeTurnResponse(w, http.StatusOK, state, reply)
}
