// Package store provides storage backends for the loan intake service.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/crestline/loanintake/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions and applications in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given options. The DSN
// is a file path; its directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore ready", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// SaveSession stores or replaces a session state.
func (s *SQLiteStore) SaveSession(state models.SessionState) error {
	answers, transcript, err := marshalSession(&state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions (id, status, pending, answers, transcript, persisted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, pending=excluded.pending,
			answers=excluded.answers, transcript=excluded.transcript,
			persisted=excluded.persisted, updated_at=excluded.updated_at`,
		state.ID, string(state.Status), string(state.Pending), answers, transcript, state.Persisted, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", state.ID)
		return fmt.Errorf("failed to save session %s: %w", state.ID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", state.ID, "status", state.Status)
	return nil
}

// GetSession returns the session with the given ID, or nil when absent.
func (s *SQLiteStore) GetSession(id string) (*models.SessionState, error) {
	row := s.db.QueryRow(`SELECT id, status, pending, answers, transcript, persisted, created_at, updated_at FROM sessions WHERE id = ?`, id)
	state, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return state, nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "sessionID", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// SaveApplication records a completed application.
func (s *SQLiteStore) SaveApplication(rec models.ApplicationRecord) error {
	answers, err := marshalAnswers(rec.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO applications (session_id, answers, first_name, middle_name, last_name, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET answers=excluded.answers, first_name=excluded.first_name,
			middle_name=excluded.middle_name, last_name=excluded.last_name, completed_at=excluded.completed_at`,
		rec.SessionID, answers, rec.FirstName, rec.MiddleName, rec.LastName, rec.CompletedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveApplication failed", "error", err, "sessionID", rec.SessionID)
		return fmt.Errorf("failed to save application %s: %w", rec.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveApplication succeeded", "sessionID", rec.SessionID)
	return nil
}

// GetApplication returns the application for a session, or nil when absent.
func (s *SQLiteStore) GetApplication(sessionID string) (*models.ApplicationRecord, error) {
	row := s.db.QueryRow(`SELECT session_id, answers, first_name, middle_name, last_name, completed_at FROM applications WHERE session_id = ?`, sessionID)
	rec, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetApplication failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get application %s: %w", sessionID, err)
	}
	return rec, nil
}

// ListApplications returns all recorded applications.
func (s *SQLiteStore) ListApplications() ([]models.ApplicationRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, answers, first_name, middle_name, last_name, completed_at FROM applications ORDER BY completed_at`)
	if err != nil {
		slog.Error("SQLiteStore ListApplications query failed", "error", err)
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

// BindChannel maps an external conversation key to a session ID.
func (s *SQLiteStore) BindChannel(channel, sessionID string) error {
	_, err := s.db.Exec(`INSERT INTO channel_sessions (channel, session_id) VALUES (?, ?)
		ON CONFLICT(channel) DO UPDATE SET session_id=excluded.session_id`, channel, sessionID)
	if err != nil {
		slog.Error("SQLiteStore BindChannel failed", "error", err, "channel", channel)
		return fmt.Errorf("failed to bind channel: %w", err)
	}
	return nil
}

// GetChannelSession returns the session bound to a channel key, or "".
func (s *SQLiteStore) GetChannelSession(channel string) (string, error) {
	var sessionID string
	err := s.db.QueryRow(`SELECT session_id FROM channel_sessions WHERE channel = ?`, channel).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetChannelSession failed", "error", err, "channel", channel)
		return "", fmt.Errorf("failed to get channel session: %w", err)
	}
	return sessionID, nil
}

// ListChannelSessions returns every channel binding.
func (s *SQLiteStore) ListChannelSessions() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT channel, session_id FROM channel_sessions`)
	if err != nil {
		slog.Error("SQLiteStore ListChannelSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query channel sessions: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var channel, sessionID string
		if err := rows.Scan(&channel, &sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan channel session: %w", err)
		}
		out[channel] = sessionID
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
