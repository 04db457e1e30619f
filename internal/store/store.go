// Package store provides storage backends for the loan intake service.
//
// It includes an in-memory store for tests and single-process use, plus
// SQLite and PostgreSQL backed implementations behind a common interface.
package store

import (
	"sync"

	"github.com/crestline/loanintake/internal/models"
)

// Store is the persistence interface shared by all backends. Sessions hold
// in-flight conversation state; applications are the completed records used
// for export idempotence and download.
type Store interface {
	SaveSession(state models.SessionState) error
	GetSession(id string) (*models.SessionState, error)
	DeleteSession(id string) error

	SaveApplication(rec models.ApplicationRecord) error
	GetApplication(sessionID string) (*models.ApplicationRecord, error)
	ListApplications() ([]models.ApplicationRecord, error)

	// Channel bindings map an external conversation key (e.g. an SMS
	// from-number) to a session ID.
	BindChannel(channel, sessionID string) error
	GetChannelSession(channel string) (string, error)
	ListChannelSessions() (map[string]string, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string (a file path for SQLite).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore is a simple map-backed store.
type InMemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]models.SessionState
	applications map[string]models.ApplicationRecord
	channels     map[string]string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:     make(map[string]models.SessionState),
		applications: make(map[string]models.ApplicationRecord),
		channels:     make(map[string]string),
	}
}

// SaveSession stores or replaces a session state. The answer map and
// transcript are copied so later caller mutations do not leak in.
func (s *InMemoryStore) SaveSession(state models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Answers = state.Answers.Clone()
	state.Transcript = append([]models.Turn(nil), state.Transcript...)
	s.sessions[state.ID] = state
	return nil
}

// GetSession returns the session with the given ID, or nil when absent.
func (s *InMemoryStore) GetSession(id string) (*models.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	state.Answers = state.Answers.Clone()
	state.Transcript = append([]models.Turn(nil), state.Transcript...)
	return &state, nil
}

// DeleteSession removes a session.
func (s *InMemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// SaveApplication records a completed application, replacing any existing
// record for the same session.
func (s *InMemoryStore) SaveApplication(rec models.ApplicationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[rec.SessionID] = rec
	return nil
}

// GetApplication returns the application for a session, or nil when absent.
func (s *InMemoryStore) GetApplication(sessionID string) (*models.ApplicationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.applications[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListApplications returns all recorded applications.
func (s *InMemoryStore) ListApplications() ([]models.ApplicationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ApplicationRecord, 0, len(s.applications))
	for _, rec := range s.applications {
		out = append(out, rec)
	}
	return out, nil
}

// BindChannel maps an external conversation key to a session ID.
func (s *InMemoryStore) BindChannel(channel, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channel] = sessionID
	return nil
}

// GetChannelSession returns the session bound to a channel key, or "".
func (s *InMemoryStore) GetChannelSession(channel string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[channel], nil
}

// ListChannelSessions returns every channel binding.
func (s *InMemoryStore) ListChannelSessions() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.channels))
	for channel, sessionID := range s.channels {
		out[channel] = sessionID
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
