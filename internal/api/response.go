// Package api provides HTTP response envelopes for the loan intake service.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/crestline/loanintake/internal/models"
)

// TurnResponse is the payload returned whenever a session is created,
// advanced by an utterance, or advanced by a document upload.
type TurnResponse struct {
	SessionID string               `json:"session_id"`
	Reply     string               `json:"reply"`
	Status    models.SessionStatus `json:"status"`
	Pending   models.FieldID       `json:"pending,omitempty"`
}

// fallbackErrorResponse is marshaled once at startup so a marshal failure at
// request time still produces a well-formed error body.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse marshals the response before touching the writer so an
// encoding failure can still be reported with clean headers.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeTurnResponse writes the conversation-turn envelope for a session.
func writeTurnResponse(w http.ResponseWriter, statusCode int, state *models.SessionState, reply string) {
	writeJSONResponse(w, statusCode, models.Success(TurnResponse{
		SessionID: state.ID,
		Reply:     reply,
		Status:    state.Status,
		Pending:   state.Pending,
	}))
}
