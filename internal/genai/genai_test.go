package genai

import (
	"os"
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	old, had := os.LookupEnv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer func() {
		if had {
			os.Setenv("OPENAI_API_KEY", old)
		}
	}()

	if _, err := NewClient(); err == nil {
		t.Error("expected error when OPENAI_API_KEY not set")
	}
}

func TestNewClientWithAPIKey(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.model == "" {
		t.Error("expected default model to be configured")
	}
}
