package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crestline/loanintake/internal/models"
	"github.com/crestline/loanintake/internal/store"
)

func completedSession(id string) *models.SessionState {
	s := models.NewSessionState(id)
	s.Status = models.StatusComplete
	s.Answers[models.FieldName] = "John Allen Smith"
	s.Answers[models.FieldPhone] = "9876543210"
	s.Answers[models.FieldEmail] = "john@example.com"
	return s
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		in                  string
		first, middle, last string
	}{
		{"John Smith", "John", "", "Smith"},
		{"John Allen Smith", "John", "Allen", "Smith"},
		{"John Allen van der Smith", "John", "Allen van der", "Smith"},
		{"Cher", "Cher", "", "Cher"},
		{"", "", "", ""},
	}
	for _, c := range cases {
		first, middle, last := SplitName(c.in)
		if first != c.first || middle != c.middle || last != c.last {
			t.Errorf("SplitName(%q) = %q/%q/%q, want %q/%q/%q", c.in, first, middle, last, c.first, c.middle, c.last)
		}
	}
}

func TestHandleCompletionWritesOneRow(t *testing.T) {
	dir := t.TempDir()
	st := store.NewInMemoryStore()
	h := NewHandler(st, dir)

	if err := h.HandleCompletion(context.Background(), completedSession("s_1")); err != nil {
		t.Fatalf("HandleCompletion: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatalf("open export file: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "name" {
		t.Errorf("header should start with field names, got %q", rows[0][0])
	}

	byCol := make(map[string]string)
	for i, col := range rows[0] {
		byCol[col] = rows[1][i]
	}
	if byCol["name"] != "John Allen Smith" {
		t.Errorf("name column = %q", byCol["name"])
	}
	if byCol["first_name"] != "John" || byCol["middle_name"] != "Allen" || byCol["last_name"] != "Smith" {
		t.Errorf("derived name parts wrong: %q %q %q", byCol["first_name"], byCol["middle_name"], byCol["last_name"])
	}
	if byCol["session_id"] != "s_1" {
		t.Errorf("session_id column = %q", byCol["session_id"])
	}
}

func TestHandleCompletionIdempotent(t *testing.T) {
	dir := t.TempDir()
	st := store.NewInMemoryStore()
	h := NewHandler(st, dir)
	sess := completedSession("s_1")

	if err := h.HandleCompletion(context.Background(), sess); err != nil {
		t.Fatalf("first HandleCompletion: %v", err)
	}
	if err := h.HandleCompletion(context.Background(), sess); err != nil {
		t.Fatalf("second HandleCompletion: %v", err)
	}

	f, _ := os.Open(h.Path())
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected one persisted record, got %d data rows", len(rows)-1)
	}
}

func TestHandleCompletionAppendsWithoutRepeatingHeader(t *testing.T) {
	dir := t.TempDir()
	st := store.NewInMemoryStore()
	h := NewHandler(st, dir)

	if err := h.HandleCompletion(context.Background(), completedSession("s_1")); err != nil {
		t.Fatalf("HandleCompletion s_1: %v", err)
	}
	if err := h.HandleCompletion(context.Background(), completedSession("s_2")); err != nil {
		t.Fatalf("HandleCompletion s_2: %v", err)
	}

	data, err := os.ReadFile(h.Path())
	if err != nil {
		t.Fatalf("read export file: %v", err)
	}
	if got := strings.Count(string(data), "first_name"); got != 1 {
		t.Errorf("header should appear once, found %d times", got)
	}
}

func TestRender(t *testing.T) {
	rec := BuildRecord(completedSession("s_9"))
	payload, err := Render(rec)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(payload))).ReadAll()
	if err != nil {
		t.Fatalf("parse rendered CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if len(rows[0]) != len(rows[1]) {
		t.Error("header and row column counts differ")
	}
}
