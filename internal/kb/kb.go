// Package kb provides the document question-answering subsystem: a small
// fixed knowledge base with keyword-scored retrieval, optionally rewritten
// into a conversational answer by a GenAI client.
//
// Answers are informational only and never drive the conversation state
// machine.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/crestline/loanintake/internal/genai"
	"github.com/openai/openai-go"
)

// builtinDocuments is the fixed loan application knowledge base.
var builtinDocuments = []string{
	"Loan applications require basic personal details, financial details, and reference information.",
	"Ensure that all fields such as loan purpose, income, and references are filled.",
	"Membership details and promotional codes can also be included in the loan application.",
	"Provide accurate and verified contact information, including WhatsApp opt-in preferences.",
	"References should have a valid relationship, address, and contact details.",
	"Valid promotional codes are PROMO123, SAVE200, and OFFER500.",
}

// FallbackAnswer is returned when no document scores above zero.
const FallbackAnswer = "I'm sorry, I don't have information about that. Let's continue with your application."

// extraExtensions are the file types loaded from an external knowledge
// directory.
var extraExtensions = map[string]bool{".txt": true, ".md": true}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// KnowledgeBase answers free-text questions against the builtin snippets
// plus any documents loaded from a directory.
type KnowledgeBase struct {
	mu    sync.RWMutex
	extra map[string]string // path -> content
	gen   genai.ClientInterface
}

// New creates a knowledge base. The GenAI client is optional; when nil the
// best-scoring snippet is returned verbatim.
func New(gen genai.ClientInterface) *KnowledgeBase {
	return &KnowledgeBase{
		extra: make(map[string]string),
		gen:   gen,
	}
}

// LoadDir loads every recognized document under dir into the knowledge
// base. Missing directories are not an error; the builtin snippets always
// remain available.
func (k *KnowledgeBase) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		slog.Debug("KnowledgeBase.LoadDir: directory absent, using builtin documents only", "dir", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read knowledge directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := k.loadFile(path); err != nil {
			slog.Warn("KnowledgeBase.LoadDir: skipping unreadable document", "path", path, "error", err)
		}
	}
	slog.Info("KnowledgeBase.LoadDir: documents loaded", "dir", dir, "extra", k.Size()-len(builtinDocuments))
	return nil
}

// loadFile loads or replaces a single document.
func (k *KnowledgeBase) loadFile(path string) error {
	if !extraExtensions[strings.ToLower(filepath.Ext(path))] {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.extra[path] = string(data)
	k.mu.Unlock()
	return nil
}

// removeFile drops a document from the knowledge base.
func (k *KnowledgeBase) removeFile(path string) {
	k.mu.Lock()
	delete(k.extra, path)
	k.mu.Unlock()
}

// Size returns the number of documents currently searchable.
func (k *KnowledgeBase) Size() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(builtinDocuments) + len(k.extra)
}

// Retrieve returns the best-scoring document for the query, with its score.
// A zero score means no token of the query appears in any document.
func (k *KnowledgeBase) Retrieve(query string) (string, int) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return "", 0
	}

	best := ""
	bestScore := 0
	score := func(doc string) {
		s := overlap(queryTokens, tokenize(doc))
		if s > bestScore {
			best, bestScore = doc, s
		}
	}

	for _, doc := range builtinDocuments {
		score(doc)
	}
	k.mu.RLock()
	for _, doc := range k.extra {
		score(doc)
	}
	k.mu.RUnlock()

	return best, bestScore
}

// Answer retrieves the best document for the query and, when a GenAI client
// is configured, rewrites it into a conversational answer. Any generation
// failure falls back to the raw snippet.
func (k *KnowledgeBase) Answer(ctx context.Context, query string) (string, error) {
	doc, score := k.Retrieve(query)
	if score == 0 {
		slog.Debug("KnowledgeBase.Answer: no matching document", "query", query)
		return FallbackAnswer, nil
	}

	if k.gen == nil {
		return doc, nil
	}

	answer, err := k.gen.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are a loan application assistant. Answer the user's question using only the provided context. Keep the answer to one or two sentences.\n\nContext: " + doc),
		openai.UserMessage(query),
	})
	if err != nil {
		slog.Warn("KnowledgeBase.Answer: generation failed, returning raw snippet", "error", err)
		return doc, nil
	}
	return answer, nil
}

// tokenize lowercases and splits text into alphanumeric tokens.
func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// overlap counts how many distinct query tokens appear in the document.
func overlap(queryTokens, docTokens []string) int {
	docSet := make(map[string]bool, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = true
	}
	seen := make(map[string]bool, len(queryTokens))
	count := 0
	for _, t := range queryTokens {
		if docSet[t] && !seen[t] {
			count++
			seen[t] = true
		}
	}
	return count
}
