// Package upload validates and stores applicant documents.
//
// A document is accepted only when it is a readable regular file with an
// extension recognized for the field being filled; anything else is rejected
// so the conversation can re-prompt for the upload. Identity documents may be
// scans or photos, while supporting loan documents must be PDF.
package upload

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/crestline/loanintake/internal/models"
)

// Accepted extensions per upload field.
var (
	// IDExtensions are accepted for identity document uploads.
	IDExtensions = []string{".pdf", ".png", ".jpg", ".jpeg"}
	// DocumentExtensions are accepted for supporting loan documents.
	DocumentExtensions = []string{".pdf"}
)

// Validator checks and stores uploaded documents under a fixed directory,
// applying a per-field extension allow-list.
type Validator struct {
	dir     string
	allowed map[models.FieldID]map[string]bool
}

// NewValidator creates a validator storing documents under dir.
func NewValidator(dir string) *Validator {
	return &Validator{
		dir: dir,
		allowed: map[models.FieldID]map[string]bool{
			models.FieldUploadedIDs:  extensionSet(IDExtensions),
			models.FieldUploadedDocs: extensionSet(DocumentExtensions),
		},
	}
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return set
}

// Dir returns the storage directory.
func (v *Validator) Dir() string {
	return v.dir
}

// Allowed reports whether the file name carries an extension recognized for
// the given upload field. Unknown fields accept nothing.
func (v *Validator) Allowed(field models.FieldID, name string) bool {
	set, ok := v.allowed[field]
	return ok && set[strings.ToLower(filepath.Ext(name))]
}

// Store validates the file at path for the given field and copies it into
// the storage directory, returning the stored filename.
func (v *Validator) Store(field models.FieldID, path string) (string, error) {
	if !v.Allowed(field, path) {
		slog.Debug("Validator.Store: unrecognized extension", "field", field, "path", path)
		return "", fmt.Errorf("unrecognized document extension %q for %s", filepath.Ext(path), field)
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("Validator.Store: file not readable", "path", path, "error", err)
		return "", fmt.Errorf("file not readable: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("file not readable: %w", err)
	}
	defer src.Close()

	return v.StoreContent(field, filepath.Base(path), src)
}

// StoreContent stores already-opened document content under name, after the
// same per-field extension check. Used by the HTTP surface for multipart
// uploads.
func (v *Validator) StoreContent(field models.FieldID, name string, r io.Reader) (string, error) {
	if !v.Allowed(field, name) {
		return "", fmt.Errorf("unrecognized document extension %q for %s", filepath.Ext(name), field)
	}

	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	stored := filepath.Base(name)
	dst, err := os.Create(filepath.Join(v.dir, stored))
	if err != nil {
		return "", fmt.Errorf("failed to create stored document: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("failed to write stored document: %w", err)
	}
	slog.Info("Validator.StoreContent: document stored", "name", stored, "field", field, "dir", v.dir)
	return stored, nil
}
