package cli

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/rxwizard/internal/catalog"
	"github.com/ppiankov/rxwizard/internal/model"
	"github.com/ppiankov/rxwizard/internal/pipeline"
)

func TestReadTranscript_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	data := `[{"role":"assistant","content":"What product?"},{"role":"user","content":"Zentrova"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	messages, err := readTranscript(path, nil)
	if err != nil {
		t.Fatalf("readTranscript failed: %v", err)
	}
	if len(messages) != 2 || messages[1].Content != "Zentrova" {
		t.Errorf("Unexpected messages: %+v", messages)
	}
}

func TestReadTranscript_FromStdin(t *testing.T) {
	messages, err := readTranscript("-", strings.NewReader(`[{"role":"user","content":"hi"}]`))
	if err != nil {
		t.Fatalf("readTranscript failed: %v", err)
	}
	if model.CountUserMessages(messages) != 1 {
		t.Errorf("Expected 1 user message, got %+v", messages)
	}
}

func TestReadTranscript_RejectsUnknownRole(t *testing.T) {
	_, err := readTranscript("-", strings.NewReader(`[{"role":"system","content":"x"}]`))
	if err == nil {
		t.Error("Expected error for unknown role")
	}
}

func TestReadTranscript_InvalidJSON(t *testing.T) {
	if _, err := readTranscript("-", strings.NewReader(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/campaign/email.html", "example.com_campaign_email"},
		{"drafts/q3 launch.html", "drafts_q3-launch"},
		{"http://", "document"},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}

	long := sanitizeFilename(strings.Repeat("a", 300))
	if len(long) != 100 {
		t.Errorf("Expected filename capped at 100 chars, got %d", len(long))
	}
}

func TestFormatNumbers(t *testing.T) {
	if got := formatNumbers(nil); got != "none" {
		t.Errorf("Expected none, got %q", got)
	}
	if got := formatNumbers([]int{1, 2, 5}); got != "1, 2, 5" {
		t.Errorf("Expected '1, 2, 5', got %q", got)
	}
}

func TestChatSession_RunsToCompletion(t *testing.T) {
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false

	var out bytes.Buffer
	s := &chatSession{
		domain:   model.DomainSocialMedia,
		pipeline: pipeline.NewPipeline(cfg, c, nil),
		in:       bufio.NewScanner(strings.NewReader("Zentrova\nfacebook\npatients\nClear skin is possible\n")),
		out:      &out,
	}

	doc, err := s.run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if doc != nil {
		t.Error("Expected no document without a provider")
	}

	if model.CountUserMessages(s.messages) != 4 {
		t.Errorf("Expected 4 user messages, got %d", model.CountUserMessages(s.messages))
	}
	last := s.messages[len(s.messages)-1]
	if last.Role != model.RoleAssistant || !strings.Contains(last.Content, "Generating") {
		t.Errorf("Expected final generating message, got %+v", last)
	}
	if !strings.Contains(out.String(), "> ") {
		t.Error("Expected prompts to be written")
	}
}

func TestChatSession_EndOfInput(t *testing.T) {
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false

	s := &chatSession{
		domain:   model.DomainHCPEmail,
		pipeline: pipeline.NewPipeline(cfg, c, nil),
		in:       bufio.NewScanner(strings.NewReader("Zentrova\n")),
		out:      &bytes.Buffer{},
	}

	doc, err := s.run(context.Background())
	if err != nil || doc != nil {
		t.Errorf("Expected clean stop on end of input, got doc=%v err=%v", doc, err)
	}
	if model.CountUserMessages(s.messages) != 1 {
		t.Errorf("Expected 1 user message, got %d", model.CountUserMessages(s.messages))
	}
}
