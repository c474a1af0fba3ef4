package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsTTL is how long a host's robots.txt is trusted before it is fetched again
const RobotsTTL = time.Hour

// RobotsChecker answers whether a document URL may be fetched under its host's robots.txt.
// Each host's file is fetched once per RobotsTTL, even when many workers ask at the same time.
type RobotsChecker struct {
	rules      *gocache.Cache // host -> *robotstxt.RobotsData
	inflight   singleflight.Group
	httpClient *http.Client
	userAgent  string
	agent      string // Product token matched against robots.txt groups
}

// NewRobotsChecker creates a checker sharing the fetcher's HTTP client
func NewRobotsChecker(userAgent string, client *http.Client) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		rules:      gocache.New(RobotsTTL, 2*RobotsTTL),
		httpClient: client,
		userAgent:  userAgent,
		agent:      NormalizeUserAgent(userAgent),
	}
}

// CanFetch reports whether rawURL is allowed for this agent, and the crawl delay its group asks for.
// A robots.txt that cannot be retrieved allows everything.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return false, 0, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}

	rules, err := r.rulesFor(ctx, target)
	if err != nil {
		return true, 0, nil
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}

	var delay time.Duration
	if group := rules.FindGroup(r.agent); group != nil {
		delay = group.CrawlDelay
	}
	return rules.TestAgent(path, r.agent), delay, nil
}

func (r *RobotsChecker) rulesFor(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := target.Scheme + "://" + target.Host
	if cached, ok := r.rules.Get(host); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	v, err, _ := r.inflight.Do(host, func() (any, error) {
		rules, err := r.fetch(ctx, host+"/robots.txt")
		if err != nil {
			return nil, err
		}
		r.rules.SetDefault(host, rules)
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 4xx allows all, 5xx disallows all
	rules, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return rules, nil
}

// Clear forgets every cached robots.txt
func (r *RobotsChecker) Clear() {
	r.rules.Flush()
}

// NormalizeUserAgent reduces a user agent string to its product token for robots.txt matching
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	token, _, _ := strings.Cut(parts[0], "/")
	return token
}
