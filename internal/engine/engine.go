// Package engine implements the conversation state machine for loan intake.
//
// The engine is a state transition function over a caller-owned SessionState:
// it consumes one utterance per turn, decides whether to accept or reject it
// for the pending field, and produces the next prompt. The hosting surface
// (HTTP API, SMS webhook, or terminal chat) stores the state between turns.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crestline/loanintake/internal/extract"
	"github.com/crestline/loanintake/internal/models"
	"github.com/crestline/loanintake/internal/registry"
)

// Conversation messages. The closing message doubles as the terminal-state
// reply for any utterance received after completion.
const (
	GreetingMessage = "Welcome to the loan application process! Please provide your initial details."
	ClosingMessage  = "All required details are collected! Your application is complete."
)

// CompletionHandler receives the finished session exactly once, when the
// engine transitions into the terminal state. Implementations must be
// idempotent against re-invocation with the same session.
type CompletionHandler interface {
	HandleCompletion(ctx context.Context, state *models.SessionState) error
}

// DocumentStore validates and stores an uploaded document for a specific
// upload field, returning the stored filename.
type DocumentStore interface {
	Store(field models.FieldID, path string) (string, error)
}

// Engine drives intake conversations. It holds only immutable configuration
// and injected collaborators; all per-session data lives in SessionState.
type Engine struct {
	registry   *registry.Registry
	documents  DocumentStore
	completion CompletionHandler
}

// New creates an engine over the given field registry. Documents and
// completion are optional; a nil DocumentStore rejects every upload-field
// utterance and a nil CompletionHandler makes completion a pure state change.
func New(reg *registry.Registry, documents DocumentStore, completion CompletionHandler) *Engine {
	slog.Debug("Engine.New: creating engine", "fields", len(reg.Fields()), "hasDocuments", documents != nil, "hasCompletion", completion != nil)
	return &Engine{registry: reg, documents: documents, completion: completion}
}

// Greeting returns the opening message for a new session.
func (e *Engine) Greeting() string {
	return GreetingMessage
}

// Advance processes one user utterance and mutates state accordingly,
// returning the engine's reply. Exactly two transcript entries are appended
// per call: the utterance and the reply.
func (e *Engine) Advance(ctx context.Context, state *models.SessionState, utterance string) (string, error) {
	slog.Debug("Engine.Advance: processing turn", "sessionID", state.ID, "status", state.Status, "pending", state.Pending)

	var reply string
	var err error
	switch state.Status {
	case models.StatusComplete:
		// Post-completion utterances are no-ops that re-emit the closing message.
		reply = ClosingMessage
	case models.StatusAwaitingFirstInput:
		reply, err = e.firstInput(ctx, state, utterance)
	default:
		reply, err = e.fieldInput(ctx, state, utterance)
	}
	if err != nil {
		return "", err
	}

	state.Append(models.SpeakerUser, utterance)
	state.Append(models.SpeakerBot, reply)
	return reply, nil
}

// firstInput handles the free-form opening turn: every extraction pattern is
// applied and all matches are pre-filled before the first question is asked.
// When nothing extractable appears in the utterance and the first unfilled
// field takes verbatim answers, the utterance is that field's answer.
func (e *Engine) firstInput(ctx context.Context, state *models.SessionState, utterance string) (string, error) {
	found := extract.Extract(utterance)
	for id, value := range found {
		state.Answers[id] = value
	}
	slog.Info("Engine.firstInput: prefilled fields from opening turn", "sessionID", state.ID, "prefilled", len(found))

	if len(found) == 0 {
		if trimmed := strings.TrimSpace(utterance); trimmed != "" {
			if next, ok := e.registry.NextUnfilled(state.Answers); ok && e.verbatimField(next) {
				state.Answers[next] = utterance
			}
		}
	}
	return e.advancePointer(ctx, state)
}

// verbatimField reports whether id accepts any non-empty utterance as-is.
func (e *Engine) verbatimField(id models.FieldID) bool {
	return id != models.FieldPromoCode && !e.registry.IsUploadField(id) && !extract.HasPattern(id)
}

// fieldInput applies the strict validate-and-repeat policy for the pending
// field.
func (e *Engine) fieldInput(ctx context.Context, state *models.SessionState, utterance string) (string, error) {
	pending := state.Pending
	if pending == "" {
		// Pending pointer lost (e.g. state created by an older build); rescan.
		return e.advancePointer(ctx, state)
	}

	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return e.rejectReply(pending), nil
	}

	switch {
	case pending == models.FieldPromoCode:
		// An unknown code is recorded as the Invalid sentinel; the flow
		// still proceeds.
		if models.IsValidPromoCode(trimmed) {
			state.Answers[pending] = trimmed
		} else {
			slog.Info("Engine.fieldInput: promotion code not on allow-list", "sessionID", state.ID)
			state.Answers[pending] = models.PromoInvalid
		}
	case e.registry.IsUploadField(pending):
		if e.documents == nil {
			slog.Warn("Engine.fieldInput: upload field pending but no document store configured", "sessionID", state.ID, "field", pending)
			return e.rejectReply(pending), nil
		}
		stored, err := e.documents.Store(pending, trimmed)
		if err != nil {
			slog.Debug("Engine.fieldInput: document rejected", "sessionID", state.ID, "field", pending, "error", err)
			return e.rejectReply(pending), nil
		}
		state.Answers[pending] = stored
	case extract.HasPattern(pending):
		value, ok := extract.ExtractField(pending, utterance)
		if !ok {
			slog.Debug("Engine.fieldInput: extraction miss", "sessionID", state.ID, "field", pending)
			return e.rejectReply(pending), nil
		}
		state.Answers[pending] = value
	default:
		// Verbatim field: any non-empty utterance is the value.
		state.Answers[pending] = utterance
	}

	return e.advancePointer(ctx, state)
}

// PendingUpload reports whether the session is currently waiting on a
// document upload.
func (e *Engine) PendingUpload(state *models.SessionState) bool {
	return !state.Complete() && state.Pending != "" && e.registry.IsUploadField(state.Pending)
}

// SupplyDocument fills the pending upload field with an already-stored
// filename. Used by hosting surfaces that receive file content directly
// rather than a path utterance.
func (e *Engine) SupplyDocument(ctx context.Context, state *models.SessionState, storedName string) (string, error) {
	if state.Complete() {
		return "", models.ErrSessionComplete
	}
	if state.Pending == "" || !e.registry.IsUploadField(state.Pending) {
		return "", models.ErrNoPendingUpload
	}
	state.Answers[state.Pending] = storedName
	reply, err := e.advancePointer(ctx, state)
	if err != nil {
		return "", err
	}
	state.Append(models.SpeakerUser, fmt.Sprintf("[uploaded %s]", storedName))
	state.Append(models.SpeakerBot, reply)
	return reply, nil
}

// advancePointer moves to the next unfilled field, or into the terminal
// state when none remain.
func (e *Engine) advancePointer(ctx context.Context, state *models.SessionState) (string, error) {
	next, ok := e.registry.NextUnfilled(state.Answers)
	if !ok {
		return e.complete(ctx, state)
	}
	state.Pending = next
	state.Status = models.StatusAwaitingField
	return e.registry.PromptFor(next), nil
}

// complete transitions into the terminal state and fires the completion
// handler exactly once.
func (e *Engine) complete(ctx context.Context, state *models.SessionState) (string, error) {
	state.Pending = ""
	state.Status = models.StatusComplete
	slog.Info("Engine.complete: session reached terminal state", "sessionID", state.ID, "answers", len(state.Answers))

	if e.completion != nil && !state.Persisted {
		if err := e.completion.HandleCompletion(ctx, state); err != nil {
			// Persistence failure is not fatal to the conversation; the
			// record can be re-exported while the session stays complete.
			slog.Error("Engine.complete: completion handler failed", "sessionID", state.ID, "error", err)
		} else {
			state.Persisted = true
		}
	}
	return ClosingMessage, nil
}

// rejectReply builds the invalid-input re-prompt for a field.
func (e *Engine) rejectReply(id models.FieldID) string {
	return fmt.Sprintf("Invalid input for %s. %s", id, e.registry.PromptFor(id))
}
