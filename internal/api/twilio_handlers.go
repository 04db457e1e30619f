// Package api provides the Twilio SMS webhook for loan intake endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crestline/loanintake/internal/models"
	"github.com/crestline/loanintake/internal/util"
)

// emptyTwiML acknowledges the webhook without instructing Twilio to reply;
// responses are sent through the REST API instead so they share one code path
// with every other outbound message.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// twilioWebhookHandler handles POST /webhooks/twilio. Each inbound SMS is
// mapped to an intake session keyed by the sender's phone number; the first
// message from a number opens a session and gets the greeting, subsequent
// messages advance the conversation.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.twilioWebhookHandler: processing inbound message", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.twilioWebhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioWebhookHandler: invalid form payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	from := strings.TrimSpace(r.FormValue("From"))
	body := strings.TrimSpace(r.FormValue("Body"))
	if from == "" {
		slog.Warn("Server.twilioWebhookHandler: missing From parameter")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	reply, err := s.inboundMessage(ctx, from, body)
	if err != nil {
		slog.Error("Server.twilioWebhookHandler: failed to process inbound message", "error", err, "from", from)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if s.sender != nil && reply != "" {
		if err := s.sender.SendMessage(ctx, from, reply); err != nil {
			slog.Error("Server.twilioWebhookHandler: failed to send reply", "error", err, "to", from)
		}
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(emptyTwiML)); err != nil {
		slog.Error("Server.twilioWebhookHandler: failed to write TwiML", "error", err)
	}
}

// inboundMessage resolves the session bound to a phone number and runs one
// conversational turn, creating and binding a fresh session on first contact.
func (s *Server) inboundMessage(ctx context.Context, from, body string) (string, error) {
	sessionID, err := s.st.GetChannelSession(from)
	if err != nil {
		return "", err
	}

	if sessionID == "" {
		state := models.NewSessionState(util.GenerateSessionID())
		greeting := s.eng.Greeting()
		state.Append(models.SpeakerBot, greeting)
		if err := s.st.SaveSession(*state); err != nil {
			return "", err
		}
		if err := s.st.BindChannel(from, state.ID); err != nil {
			return "", err
		}
		slog.Info("Server.inboundMessage: session opened for channel", "from", from, "session_id", state.ID)
		return greeting, nil
	}

	state, err := s.st.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	if state == nil {
		// Stale binding; drop it and start over on the next message.
		slog.Warn("Server.inboundMessage: bound session missing, clearing binding", "from", from, "session_id", sessionID)
		if err := s.st.BindChannel(from, ""); err != nil {
			return "", err
		}
		return s.inboundMessage(ctx, from, body)
	}

	reply, err := s.eng.Advance(ctx, state, body)
	if err != nil {
		return "", err
	}
	if err := s.st.SaveSession(*state); err != nil {
		return "", err
	}
	slog.Info("Server.inboundMessage: turn processed", "from", from, "session_id", state.ID, "status", state.Status)
	return reply, nil
}
