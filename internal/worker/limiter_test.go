package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1) // 100 rps, burst 1
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/emails/a.html"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different host should also work
	if err := limiter.Wait(ctx, "https://api.openai.com/v1"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	if err := limiter.Wait(ctx, "emails/a.html"); err == nil {
		t.Error("expected error for a path without host")
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	url := "http://slow.example.com"

	if !limiter.Allow(url) {
		t.Fatal("first request should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, url); err == nil {
		t.Error("expected wait to fail when the next token is beyond the deadline")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	// 1 rps, burst 1
	limiter := NewLimiter(1, 1)
	ctx := context.Background()
	url := "http://example.com"

	if err := limiter.Wait(ctx, url); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst 1 means the token is consumed
	if limiter.Allow(url) {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Different host should be allowed
	if !limiter.Allow("http://other.com") {
		t.Errorf("expected allow for other host")
	}
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("http://example.com") {
			t.Fatalf("expected unlimited allowance, denied at request %d", i)
		}
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10) // fast default
	host := "slow.com"

	limiter.SetHostRate(host, 0.1, 1) // very slow

	if !limiter.Allow("http://" + host) {
		t.Errorf("first request should pass")
	}

	if limiter.Allow("http://" + host) {
		t.Errorf("second request should fail")
	}

	if !limiter.Allow("http://fast.com") {
		t.Errorf("other host should pass")
	}
}

func TestExtractHost(t *testing.T) {
	host, err := extractHost("http://example.com:8080/foo")
	if err != nil {
		t.Fatalf("extractHost failed: %v", err)
	}
	if host != "example.com:8080" {
		t.Errorf("expected example.com:8080, got %s", host)
	}

	if _, err = extractHost("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
}

func TestLimiter_ThrottleHost(t *testing.T) {
	limiter := NewLimiter(0, 1) // unlimited by default
	slow := "https://slow.example.com/doc.html"

	if err := limiter.ThrottleHost(slow, time.Hour); err != nil {
		t.Fatalf("ThrottleHost failed: %v", err)
	}
	if !limiter.Allow(slow) {
		t.Error("Expected first request to be allowed")
	}
	if limiter.Allow(slow) {
		t.Error("Expected second request within the crawl delay to be blocked")
	}

	// A shorter delay does not loosen an existing, slower limit
	if err := limiter.ThrottleHost(slow, time.Second); err != nil {
		t.Fatalf("ThrottleHost failed: %v", err)
	}
	if limiter.Allow(slow) {
		t.Error("Expected the slower limit to be kept")
	}

	if !limiter.Allow("https://other.example.com/") || !limiter.Allow("https://other.example.com/") {
		t.Error("Expected other hosts to stay unlimited")
	}

	if err := limiter.ThrottleHost(slow, 0); err != nil {
		t.Errorf("Expected zero delay to be a no-op, got %v", err)
	}
	if err := limiter.ThrottleHost("not a url", time.Second); err == nil {
		t.Error("Expected error for URL without host")
	}
}
