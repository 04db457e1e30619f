// Package store provides storage backends for the loan intake service.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/crestline/loanintake/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions and applications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore ready")

	return &PostgresStore{db: db}, nil
}

// SaveSession stores or replaces a session state.
func (s *PostgresStore) SaveSession(state models.SessionState) error {
	answers, transcript, err := marshalSession(&state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions (id, status, pending, answers, transcript, persisted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, pending=EXCLUDED.pending,
			answers=EXCLUDED.answers, transcript=EXCLUDED.transcript,
			persisted=EXCLUDED.persisted, updated_at=EXCLUDED.updated_at`,
		state.ID, string(state.Status), string(state.Pending), answers, transcript, state.Persisted, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", state.ID)
		return fmt.Errorf("failed to save session %s: %w", state.ID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", state.ID, "status", state.Status)
	return nil
}

// GetSession returns the session with the given ID, or nil when absent.
func (s *PostgresStore) GetSession(id string) (*models.SessionState, error) {
	row := s.db.QueryRow(`SELECT id, status, pending, answers, transcript, persisted, created_at, updated_at FROM sessions WHERE id = $1`, id)
	state, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return state, nil
}

// DeleteSession removes a session.
func (s *PostgresStore) DeleteSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// SaveApplication records a completed application.
func (s *PostgresStore) SaveApplication(rec models.ApplicationRecord) error {
	answers, err := marshalAnswers(rec.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO applications (session_id, answers, first_name, middle_name, last_name, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET answers=EXCLUDED.answers, first_name=EXCLUDED.first_name,
			middle_name=EXCLUDED.middle_name, last_name=EXCLUDED.last_name, completed_at=EXCLUDED.completed_at`,
		rec.SessionID, answers, rec.FirstName, rec.MiddleName, rec.LastName, rec.CompletedAt)
	if err != nil {
		slog.Error("PostgresStore SaveApplication failed", "error", err, "sessionID", rec.SessionID)
		return fmt.Errorf("failed to save application %s: %w", rec.SessionID, err)
	}
	return nil
}

// GetApplication returns the application for a session, or nil when absent.
func (s *PostgresStore) GetApplication(sessionID string) (*models.ApplicationRecord, error) {
	row := s.db.QueryRow(`SELECT session_id, answers, first_name, middle_name, last_name, completed_at FROM applications WHERE session_id = $1`, sessionID)
	rec, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetApplication failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get application %s: %w", sessionID, err)
	}
	return rec, nil
}

// ListApplications returns all recorded applications.
func (s *PostgresStore) ListApplications() ([]models.ApplicationRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, answers, first_name, middle_name, last_name, completed_at FROM applications ORDER BY completed_at`)
	if err != nil {
		slog.Error("PostgresStore ListApplications query failed", "error", err)
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

// BindChannel maps an external conversation key to a session ID.
func (s *PostgresStore) BindChannel(channel, sessionID string) error {
	_, err := s.db.Exec(`INSERT INTO channel_sessions (channel, session_id) VALUES ($1, $2)
		ON CONFLICT (channel) DO UPDATE SET session_id=EXCLUDED.session_id`, channel, sessionID)
	if err != nil {
		slog.Error("PostgresStore BindChannel failed", "error", err, "channel", channel)
		return fmt.Errorf("failed to bind channel: %w", err)
	}
	return nil
}

// GetChannelSession returns the session bound to a channel key, or "".
func (s *PostgresStore) GetChannelSession(channel string) (string, error) {
	var sessionID string
	err := s.db.QueryRow(`SELECT session_id FROM channel_sessions WHERE channel = $1`, channel).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("PostgresStore GetChannelSession failed", "error", err, "channel", channel)
		return "", fmt.Errorf("failed to get channel session: %w", err)
	}
	return sessionID, nil
}

// ListChannelSessions returns every channel binding.
func (s *PostgresStore) ListChannelSessions() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT channel, session_id FROM channel_sessions`)
	if err != nil {
		slog.Error("PostgresStore ListChannelSessions query failed", "error", err)
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
