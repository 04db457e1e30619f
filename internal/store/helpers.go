package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/crestline/loanintake/internal/models"
)

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// marshalSession encodes the JSON columns of a session row.
func marshalSession(state *models.SessionState) (answers, transcript []byte, err error) {
	answers, err = marshalAnswers(state.Answers)
	if err != nil {
		return nil, nil, err
	}
	turns := state.Transcript
	if turns == nil {
		turns = []models.Turn{}
	}
	transcript, err = json.Marshal(turns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return answers, transcript, nil
}

// marshalAnswers encodes an answer map, never as JSON null.
func marshalAnswers(m models.AnswerMap) ([]byte, error) {
	if m == nil {
		m = models.AnswerMap{}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answers: %w", err)
	}
	return out, nil
}

// scanSession decodes one session row.
func scanSession(row rowScanner) (*models.SessionState, error) {
	var state models.SessionState
	var status, pending string
	var answers, transcript []byte
	err := row.Scan(&state.ID, &status, &pending, &answers, &transcript, &state.Persisted, &state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		return nil, err
	}
	state.Status = models.SessionStatus(status)
	state.Pending = models.FieldID(pending)
	if err := json.Unmarshal(answers, &state.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	if err := json.Unmarshal(transcript, &state.Transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return &state, nil
}

// scanApplication decodes one application row.
func scanApplication(row rowScanner) (*models.ApplicationRecord, error) {
	var rec models.ApplicationRecord
	var answers []byte
	err := row.Scan(&rec.SessionID, &answers, &rec.FirstName, &rec.MiddleName, &rec.LastName, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &rec.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	return &rec, nil
}

// collectApplications drains rows into a slice.
func collectApplications(rows *sql.Rows) ([]models.ApplicationRecord, error) {
	var out []models.ApplicationRecord
	for rows.Next() {
		rec, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate application rows: %w", err)
	}
	return out, nil
}
