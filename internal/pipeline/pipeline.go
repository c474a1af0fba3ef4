package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/rxwizard/internal/cache"
	"github.com/ppiankov/rxwizard/internal/catalog"
	"github.com/ppiankov/rxwizard/internal/compliance"
	"github.com/ppiankov/rxwizard/internal/llm"
	"github.com/ppiankov/rxwizard/internal/model"
	"github.com/ppiankov/rxwizard/internal/wizard"
	"github.com/ppiankov/rxwizard/internal/worker"
	"go.uber.org/zap"
)

// Pipeline ties the wizard, content generation and the compliance engine together
type Pipeline struct {
	catalog  *catalog.Catalog
	engine   *compliance.Engine
	fetcher  *Fetcher
	cache    cache.Cache  // nil when caching is disabled
	provider llm.Provider // nil when generation is disabled
	limiter  *worker.Limiter
	llmHost  string // Limiter key for model calls
	config   *model.Config
	logger   *zap.Logger
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithProvider overrides the configured model provider
func WithProvider(p llm.Provider) Option {
	return func(pl *Pipeline) { pl.provider = p }
}

// WithCache overrides the configured cache
func WithCache(c cache.Cache) Option {
	return func(pl *Pipeline) { pl.cache = c }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, c *catalog.Catalog, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		catalog: c,
		engine:  compliance.NewEngine(c, logger.Named("compliance")),
		fetcher: NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
			cfg.HTTP.RespectRobots, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
		limiter: worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		llmHost: providerKey(cfg.LLM),
		config:  cfg,
		logger:  logger,
	}

	p.fetcher.limiter = p.limiter

	if cfg.Cache.Enabled {
		p.cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	if cfg.LLM.Provider != "" {
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg))
		if err != nil {
			logger.Warn("LLM provider disabled", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
		} else {
			p.provider = provider
		}
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Engine returns the compliance engine
func (p *Pipeline) Engine() *compliance.Engine {
	return p.engine
}

// Catalog returns the reference catalog
func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.catalog
}

// Fetcher returns the document fetcher
func (p *Pipeline) Fetcher() *Fetcher {
	return p.fetcher
}

// CacheStats reports cache effectiveness when the configured cache counts lookups
func (p *Pipeline) CacheStats() (cache.Stats, bool) {
	if r, ok := p.cache.(cache.StatsReporter); ok {
		return r.Stats(), true
	}
	return cache.Stats{}, false
}

// CanGenerate reports whether a model provider is configured
func (p *Pipeline) CanGenerate() bool {
	return p.provider != nil
}

// TurnResult is the outcome of one wizard turn
type TurnResult struct {
	State    model.ConversationState `json:"state"`
	Reply    model.StepReply         `json:"reply"`
	Document *Document               `json:"document,omitempty"`
}

// Document is generated content after citation correction
type Document struct {
	HTML       string                 `json:"html"`
	References []int                  `json:"references"`
	Corrected  bool                   `json:"corrected"` // References block was rebuilt
	Validation model.ValidationResult `json:"validation"`
	Audit      model.AuditResult      `json:"audit"`
	Model      string                 `json:"model,omitempty"`
	TokensUsed int                    `json:"tokens_used,omitempty"`
}

// Turn advances the wizard by the transcript's latest user message. When that answer
// completes the script and a provider is configured, the document is generated and its
// references block corrected once before it is returned.
func (p *Pipeline) Turn(ctx context.Context, domain model.Domain, messages []model.Message) (*TurnResult, error) {
	if _, ok := wizard.Lookup(domain); !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownDomain, domain)
	}

	state, reply := wizard.Advance(domain, messages)
	result := &TurnResult{State: state, Reply: reply}

	p.logger.Debug("wizard turn",
		zap.String("domain", domain.String()),
		zap.Int("step", state.Step),
		zap.Int("answered", state.Answered),
		zap.Bool("should_generate", reply.ShouldGenerate),
	)

	if !reply.ShouldGenerate || p.provider == nil {
		return result, nil
	}

	doc, err := p.Generate(ctx, domain, state.Data)
	if err != nil {
		return result, err
	}
	result.Document = doc
	return result, nil
}

// Generate produces a document from collected wizard answers and corrects its references
func (p *Pipeline) Generate(ctx context.Context, domain model.Domain, data map[string]string) (*Document, error) {
	if p.provider == nil {
		return nil, fmt.Errorf("generate: no LLM provider configured")
	}

	if err := p.limiter.Wait(ctx, p.llmHost); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	resp, err := p.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:      llm.BuildPrompt(domain, data, p.catalog),
		AllowedURLs: llm.AllowedURLs(p.catalog),
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	p.logger.Info("document generated",
		zap.String("provider", p.provider.Name()),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.TokensUsed),
		zap.Duration("elapsed", time.Since(start)),
	)

	fixed, err := p.engine.PostProcess(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("post-process: %w", err)
	}

	return &Document{
		HTML:       fixed.HTML,
		References: fixed.References,
		Corrected:  fixed.WasModified,
		Validation: p.engine.Validate(fixed.HTML),
		Audit:      p.engine.Audit(fixed.HTML),
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
	}, nil
}

// Check loads a document from a file or URL, validates its citations and corrects them.
// On ErrUnknownReference the returned report still carries the before-state and audit.
func (p *Pipeline) Check(ctx context.Context, source string) (*model.CheckReport, error) {
	doc, err := p.fetcher.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	if doc.Truncated {
		p.logger.Warn("document truncated", zap.String("source", source), zap.Int64("max_bytes", p.config.HTTP.MaxBodyBytes))
	}

	report, err := p.CheckHTML(doc.HTML)
	if report != nil {
		report.Source = doc.Source
		report.Truncated = doc.Truncated
	}
	return report, err
}

// CheckHTML validates and corrects an HTML document. Results are cached by catalog version and content.
func (p *Pipeline) CheckHTML(htmlContent string) (*model.CheckReport, error) {
	key := cache.Key(p.catalog.Version(), htmlContent)

	if p.cache != nil {
		var cached model.CheckReport
		if cache.GetJSON(p.cache, key, &cached) {
			cached.Cached = true
			return &cached, nil
		}
	}

	report := &model.CheckReport{
		CatalogVersion: p.catalog.Version(),
		Before:         p.engine.Validate(htmlContent),
		Audit:          p.engine.Audit(htmlContent),
		CheckedAt:      time.Now().UTC(),
	}

	fixed, err := p.engine.PostProcess(htmlContent)
	report.Fixed = fixed
	if err != nil {
		return report, err
	}
	after := p.engine.Validate(fixed.HTML)
	report.After = &after

	if p.cache != nil {
		if err := cache.SetJSON(p.cache, key, report, 0); err != nil {
			p.logger.Debug("cache write failed", zap.Error(err))
		}
	}

	return report, nil
}

// IsFatal reports whether a Check error means the catalog cannot back the document
func IsFatal(err error) bool {
	return errors.Is(err, compliance.ErrUnknownReference) || errors.Is(err, compliance.ErrNotConverged)
}

// providerKey names the model endpoint as a URL so the per-host limiter can key on it
func providerKey(cfg model.LLMConfig) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	if cfg.Provider == "" {
		return "llm://disabled"
	}
	return "llm://" + cfg.Provider
}
