// Package models defines session state structures for intake conversations.
package models

import "time"

// SessionStatus represents the conversation engine state for a session.
type SessionStatus string

const (
	// StatusAwaitingFirstInput is the initial state before any user turn.
	StatusAwaitingFirstInput SessionStatus = "AWAITING_FIRST_INPUT"
	// StatusAwaitingField means the engine is waiting on the pending field.
	StatusAwaitingField SessionStatus = "AWAITING_FIELD"
	// StatusComplete is terminal: every required field has a value.
	StatusComplete SessionStatus = "COMPLETE"
)

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	// SpeakerUser marks turns typed by the applicant.
	SpeakerUser Speaker = "user"
	// SpeakerBot marks turns produced by the intake engine.
	SpeakerBot Speaker = "bot"
)

// Turn is a single transcript entry.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionState holds everything the engine needs between turns. The hosting
// surface owns the value and re-supplies it on each turn; the engine itself
// keeps no per-session state.
type SessionState struct {
	ID         string        `json:"id"`
	Status     SessionStatus `json:"status"`
	Pending    FieldID       `json:"pending,omitempty"` // field currently being asked, empty when unset
	Answers    AnswerMap     `json:"answers"`
	Transcript []Turn        `json:"transcript"`
	Persisted  bool          `json:"persisted"` // completion handler already ran for this session
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NewSessionState creates an empty session in the initial state.
func NewSessionState(id string) *SessionState {
	now := time.Now()
	return &SessionState{
		ID:        id,
		Status:    StatusAwaitingFirstInput,
		Answers:   make(AnswerMap),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete reports whether the session has reached the terminal state.
func (s *SessionState) Complete() bool {
	return s.Status == StatusComplete
}

// Append adds a transcript turn and bumps the update time.
func (s *SessionState) Append(speaker Speaker, text string) {
	now := time.Now()
	s.Transcript = append(s.Transcript, Turn{Speaker: speaker, Text: text, Timestamp: now})
	s.UpdatedAt = now
}

// ApplicationRecord is the persisted result of one completed session.
type ApplicationRecord struct {
	SessionID   string    `json:"session_id"`
	Answers     AnswerMap `json:"answers"`
	FirstName   string    `json:"first_name"`
	MiddleName  string    `json:"middle_name"`
	LastName    string    `json:"last_name"`
	CompletedAt time.Time `json:"completed_at"`
}
