package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/rxwizard/internal/cache"
	"github.com/ppiankov/rxwizard/internal/catalog"
	"github.com/ppiankov/rxwizard/internal/compliance"
	"github.com/ppiankov/rxwizard/internal/llm"
	"github.com/ppiankov/rxwizard/internal/model"
)

type stubProvider struct {
	content string
	err     error
	calls   int
	lastReq llm.GenerateRequest
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) IsAvailable(ctx context.Context) bool { return true }

func (s *stubProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.GenerateResponse{Content: s.content, Model: "stub-1", TokensUsed: 42}, nil
}

func testPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}

	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 0
	return NewPipeline(cfg, c, nil, opts...)
}

func socialTranscript(answers ...string) []model.Message {
	var msgs []model.Message
	for _, a := range answers {
		msgs = append(msgs, model.UserMessage(a))
	}
	return msgs
}

func TestTurn_AsksNextQuestion(t *testing.T) {
	provider := &stubProvider{content: "<p>unused</p>"}
	p := testPipeline(t, WithProvider(provider))

	result, err := p.Turn(context.Background(), model.DomainSocialMedia, socialTranscript("Zentrova"))
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if result.Reply.ShouldGenerate {
		t.Error("Expected no generation after first answer")
	}
	if result.Document != nil {
		t.Error("Expected no document")
	}
	if provider.calls != 0 {
		t.Errorf("Expected provider not to be called, got %d calls", provider.calls)
	}
}

func TestTurn_GeneratesAndCorrectsOnce(t *testing.T) {
	provider := &stubProvider{
		content: "```html\n<html><body><p>Clearer skin in 16 weeks<sup>2</sup>.</p>\n<p>References</p>\n<p>1. Old PI</p>\n</body></html>\n```",
	}
	p := testPipeline(t, WithProvider(provider))

	result, err := p.Turn(context.Background(), model.DomainSocialMedia,
		socialTranscript("Zentrova", "facebook", "patients", "Clear skin is possible"))
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if !result.Reply.ShouldGenerate {
		t.Fatal("Expected generation on the final step")
	}
	if provider.calls != 1 {
		t.Errorf("Expected 1 provider call, got %d", provider.calls)
	}
	if !strings.Contains(provider.lastReq.Prompt, "a facebook post") {
		t.Errorf("Expected prompt built from wizard answers, got:\n%s", provider.lastReq.Prompt)
	}

	doc := result.Document
	if doc == nil {
		t.Fatal("Expected a document")
	}
	if !doc.Corrected {
		t.Error("Expected references block to be rebuilt")
	}
	if !doc.Validation.Valid {
		t.Errorf("Expected valid document, got %+v", doc.Validation)
	}
	if len(doc.References) != 1 || doc.References[0] != 2 {
		t.Errorf("Expected references [2], got %v", doc.References)
	}
	if strings.Contains(doc.HTML, "Old PI") {
		t.Error("Expected stale reference entry to be removed")
	}
	if doc.Model != "stub-1" || doc.TokensUsed != 42 {
		t.Errorf("Unexpected model metadata: %s %d", doc.Model, doc.TokensUsed)
	}
}

func TestTurn_WithoutProviderOnlyReplies(t *testing.T) {
	p := testPipeline(t)

	result, err := p.Turn(context.Background(), model.DomainSocialMedia,
		socialTranscript("Zentrova", "facebook", "patients", "Clear skin is possible"))
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if !result.Reply.ShouldGenerate || result.Document != nil {
		t.Errorf("Expected shouldGenerate without document, got %+v", result)
	}
}

func TestTurn_UnknownReferenceIsSurfaced(t *testing.T) {
	provider := &stubProvider{content: "<p>Claim<sup>99</sup></p>"}
	p := testPipeline(t, WithProvider(provider))

	_, err := p.Turn(context.Background(), model.DomainSocialMedia,
		socialTranscript("Zentrova", "2", "3", "msg"))
	if !errors.Is(err, compliance.ErrUnknownReference) {
		t.Fatalf("Expected ErrUnknownReference, got %v", err)
	}
	if !IsFatal(err) {
		t.Error("Expected unknown reference to be fatal")
	}
}

func TestTurn_ProviderErrorKeepsReply(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream down")}
	p := testPipeline(t, WithProvider(provider))

	result, err := p.Turn(context.Background(), model.DomainSocialMedia,
		socialTranscript("Zentrova", "2", "3", "msg"))
	if err == nil {
		t.Fatal("Expected provider error")
	}
	if result == nil || !result.Reply.ShouldGenerate {
		t.Error("Expected reply to be returned alongside the error")
	}
}

func TestTurn_UnknownDomain(t *testing.T) {
	p := testPipeline(t)

	_, err := p.Turn(context.Background(), model.Domain("podcast"), socialTranscript("x"))
	if !errors.Is(err, model.ErrUnknownDomain) {
		t.Fatalf("Expected ErrUnknownDomain, got %v", err)
	}
}

func TestCheck_FileAndCache(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	p := testPipeline(t, WithCache(mem))

	path := filepath.Join(t.TempDir(), "email.html")
	html := "<p>Selectively blocks IL-23<sup>5</sup>.</p>"
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	report, err := p.Check(context.Background(), path)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Before.Valid {
		t.Error("Expected missing references block to be invalid")
	}
	if report.After == nil || !report.After.Valid {
		t.Errorf("Expected corrected document to be valid, got %+v", report.After)
	}
	if !report.Fixed.WasModified || report.Source != path {
		t.Errorf("Unexpected report: %+v", report)
	}
	if report.Cached {
		t.Error("Expected first check not to be cached")
	}

	again, err := p.Check(context.Background(), path)
	if err != nil {
		t.Fatalf("Second check failed: %v", err)
	}
	if !again.Cached {
		t.Error("Expected second check to hit the cache")
	}
	if again.Fixed.HTML != report.Fixed.HTML {
		t.Error("Expected cached result to match")
	}

	stats, ok := p.CacheStats()
	if !ok || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %+v (%v)", stats, ok)
	}
}

func TestCheck_UnknownReferenceReturnsReport(t *testing.T) {
	p := testPipeline(t)

	report, err := p.CheckHTML("<p>Claim<sup>1,77</sup></p>")
	if !errors.Is(err, compliance.ErrUnknownReference) {
		t.Fatalf("Expected ErrUnknownReference, got %v", err)
	}
	if report == nil {
		t.Fatal("Expected a report alongside the error")
	}
	if len(report.Before.Unknown) != 1 || report.Before.Unknown[0] != 77 {
		t.Errorf("Expected before-state with unknown 77, got %+v", report.Before)
	}
	if report.After != nil {
		t.Error("Expected no after-state for an uncorrectable document")
	}
}

func TestCheck_MissingFile(t *testing.T) {
	p := testPipeline(t)

	if _, err := p.Check(context.Background(), filepath.Join(t.TempDir(), "nope.html")); err == nil {
		t.Error("Expected error for missing file")
	}
}
