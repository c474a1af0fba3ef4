// Package validate checks that the sources behind the reference catalog are still reachable.
package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/rxwizard/internal/catalog"
	"github.com/ppiankov/rxwizard/internal/model"
	"github.com/ppiankov/rxwizard/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const validateMaxRetries = 3

// validateSleepFunc is the sleep function used between retries (injectable for tests)
var validateSleepFunc = time.Sleep

// Validator HEAD-checks reference source URLs concurrently
type Validator struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	logger     *zap.Logger
}

// NewValidator creates a new validator
func NewValidator(timeout time.Duration, maxWorkers int, userAgent string, httpProxy, httpsProxy, noProxy string, logger *zap.Logger) *Validator {
	if maxWorkers <= 0 {
		maxWorkers = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := util.NewHTTPClient(timeout, httpProxy, httpsProxy, noProxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	return &Validator{
		httpClient: client,
		maxWorkers: maxWorkers,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// CheckCatalog checks every reference that carries a source URL.
// Results follow catalog order; references without a URL (data on file) are skipped.
func (v *Validator) CheckCatalog(ctx context.Context, c *catalog.Catalog) ([]model.LinkCheck, error) {
	var targets []model.LinkCheck
	for _, ref := range c.References() {
		if ref.URL == "" {
			continue
		}
		targets = append(targets, model.LinkCheck{Reference: ref.Number, URL: ref.URL})
	}
	return v.Validate(ctx, targets)
}

// Validate checks all links concurrently, at most maxWorkers at a time
func (v *Validator) Validate(ctx context.Context, links []model.LinkCheck) ([]model.LinkCheck, error) {
	if len(links) == 0 {
		return []model.LinkCheck{}, nil
	}

	results := make([]model.LinkCheck, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.maxWorkers)

	for i, link := range links {
		i, link := i, link
		if gctx.Err() != nil {
			results[i] = link
			results[i].Error = "context cancelled"
			continue
		}
		g.Go(func() error {
			results[i] = v.validateSingleWithRetry(gctx, link)
			return nil
		})
	}

	// Link failures are results, not errors
	_ = g.Wait()

	dead := 0
	for _, r := range results {
		if !r.IsAccessible {
			dead++
		}
	}
	v.logger.Debug("link check finished", zap.Int("checked", len(results)), zap.Int("inaccessible", dead))

	return results, nil
}

// validateSingle checks a single link
func (v *Validator) validateSingle(ctx context.Context, link model.LinkCheck) model.LinkCheck {
	result := model.LinkCheck{
		Reference: link.Reference,
		URL:       link.URL,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link.URL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		result.IsDead = true
		return result
	}

	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.IsDead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.IsAccessible = true
	} else if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		result.IsDead = true
	}

	if resp.Request.URL.String() != link.URL {
		result.RedirectURL = resp.Request.URL.String()
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := http.ParseTime(lastModified); err == nil {
			result.LastModified = &t

			ageDays := int(time.Since(t).Hours() / 24)
			result.Age = &ageDays

			if ageDays > 365 {
				result.IsStale = true
			}
			if ageDays > 365*3 {
				result.IsVeryStale = true
			}
		}
	}

	return result
}

// validateSingleWithRetry retries transient failures with exponential backoff
func (v *Validator) validateSingleWithRetry(ctx context.Context, link model.LinkCheck) model.LinkCheck {
	var result model.LinkCheck
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		result = v.validateSingle(ctx, link)
		if !isRetryableLinkCheck(result) || ctx.Err() != nil {
			return result
		}
		if attempt < validateMaxRetries-1 {
			validateSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return result
}

// isRetryableLinkCheck returns true for results that indicate transient failures
func isRetryableLinkCheck(result model.LinkCheck) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.Error != "" {
		return isRetryableNetworkError(result.Error)
	}
	return false
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
