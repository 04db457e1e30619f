// Package export persists completed loan applications as flat tabular
// records and renders the per-application download payload.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crestline/loanintake/internal/models"
	"github.com/crestline/loanintake/internal/store"
)

// DefaultFileName is the flat file one row is appended to per completed
// session.
const DefaultFileName = "loan_applications.csv"

// derivedColumns are appended after the registry fields in the record
// layout.
var derivedColumns = []string{"first_name", "middle_name", "last_name", "session_id", "completed_at"}

// Handler implements the engine's CompletionHandler: it records the
// application in the store and appends one CSV row to the flat file. The
// store record doubles as the idempotence guard, so re-invocation with an
// already-persisted session writes nothing.
type Handler struct {
	st   store.Store
	path string
}

// NewHandler creates a completion handler writing to dir/DefaultFileName.
func NewHandler(st store.Store, dir string) *Handler {
	return &Handler{st: st, path: filepath.Join(dir, DefaultFileName)}
}

// Path returns the flat file location.
func (h *Handler) Path() string {
	return h.path
}

// HandleCompletion persists the finished session. Idempotent per session.
func (h *Handler) HandleCompletion(ctx context.Context, state *models.SessionState) error {
	existing, err := h.st.GetApplication(state.ID)
	if err != nil {
		return fmt.Errorf("failed to check existing application: %w", err)
	}
	if existing != nil {
		slog.Debug("Handler.HandleCompletion: application already recorded, skipping", "sessionID", state.ID)
		return nil
	}

	rec := BuildRecord(state)
	if err := h.st.SaveApplication(rec); err != nil {
		return fmt.Errorf("failed to save application record: %w", err)
	}
	if err := h.appendRow(rec); err != nil {
		return fmt.Errorf("failed to append CSV row: %w", err)
	}
	slog.Info("Handler.HandleCompletion: application persisted", "sessionID", state.ID, "path", h.path)
	return nil
}

// BuildRecord derives the application record (including name parts) from a
// completed session.
func BuildRecord(state *models.SessionState) models.ApplicationRecord {
	first, middle, last := SplitName(state.Answers[models.FieldName])
	return models.ApplicationRecord{
		SessionID:   state.ID,
		Answers:     state.Answers.Clone(),
		FirstName:   first,
		MiddleName:  middle,
		LastName:    last,
		CompletedAt: time.Now(),
	}
}

// SplitName breaks a full name into first, middle, and last parts. A single
// token is both first and last name, matching the record layout's
// expectation that both columns are populated when possible.
func SplitName(full string) (first, middle, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", "", ""
	case 1:
		return parts[0], "", parts[0]
	case 2:
		return parts[0], "", parts[1]
	default:
		return parts[0], strings.Join(parts[1:len(parts)-1], " "), parts[len(parts)-1]
	}
}

// Header returns the flat file column layout: registry fields in order plus
// derived columns.
func Header() []string {
	cols := make([]string, 0, len(models.RegistryOrder)+len(derivedColumns))
	for _, id := range models.RegistryOrder {
		cols = append(cols, string(id))
	}
	return append(cols, derivedColumns...)
}

// row flattens a record into the Header layout. Values are raw strings with
// no coercion beyond what extraction already produced.
func row(rec models.ApplicationRecord) []string {
	out := make([]string, 0, len(models.RegistryOrder)+len(derivedColumns))
	for _, id := range models.RegistryOrder {
		out = append(out, rec.Answers[id])
	}
	return append(out,
		rec.FirstName, rec.MiddleName, rec.LastName,
		rec.SessionID, rec.CompletedAt.Format(time.RFC3339))
}

// appendRow appends one record to the flat file, writing the header first
// when the file is new or empty.
func (h *Handler) appendRow(rec models.ApplicationRecord) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	info, err := os.Stat(h.path)
	writeHeader := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", h.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(Header()); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	if err := w.Write(row(rec)); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Render returns the single-application CSV payload (header plus one row)
// offered for download.
func Render(rec models.ApplicationRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header()); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := w.Write(row(rec)); err != nil {
		return nil, fmt.Errorf("failed to write CSV row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
