package llm

import (
	"fmt"
	"sync"
	"time"

	"legalis/internal/config"
)

// window is a single fixed counter bound to a rolling period. It resets
// only when the period has fully elapsed, never mid-window.
type window struct {
	start time.Time
	count int
}

func (w *window) expire(now time.Time, period time.Duration) {
	if w.start.IsZero() || now.Sub(w.start) >= period {
		w.start = now
		w.count = 0
	}
}

// resetIn returns how long until the window resets.
func (w *window) resetIn(now time.Time, period time.Duration) time.Duration {
	d := period - now.Sub(w.start)
	if d < 0 {
		d = 0
	}
	return d
}

// providerWindows tracks request and token counters for one provider.
type providerWindows struct {
	reqMinute window
	reqHour   window
	tokMinute window
	tokHour   window
}

// RateUsage is a point-in-time snapshot of a provider's consumption.
type RateUsage struct {
	RequestsThisMinute int
	RequestsThisHour   int
	TokensThisMinute   int
	TokensThisHour     int
}

// RateLimiter gate-keeps LLM execution per provider. All checks and
// increments happen under one mutex so two concurrent callers can never
// both pass a check that together would exceed a limit.
type RateLimiter struct {
	mu        sync.Mutex
	cfg       config.RateLimitConfig
	providers map[string]*providerWindows
	now       func() time.Time
}

// NewRateLimiter creates a RateLimiter from config. Zero-valued limits
// are treated as unlimited.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:       cfg,
		providers: make(map[string]*providerWindows),
		now:       time.Now,
	}
}

// CheckAndConsume expires stale windows, then either consumes one request
// plus estimatedTokens from every window and returns nil, or leaves all
// counters untouched and returns a *RateLimitError telling the caller when
// the earliest offending window resets.
func (r *RateLimiter) CheckAndConsume(provider string, estimatedTokens int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	pw, ok := r.providers[provider]
	if !ok {
		pw = &providerWindows{}
		r.providers[provider] = pw
	}

	pw.reqMinute.expire(now, time.Minute)
	pw.reqHour.expire(now, time.Hour)
	pw.tokMinute.expire(now, time.Minute)
	pw.tokHour.expire(now, time.Hour)

	var wait time.Duration
	exceeded := func(w *window, period time.Duration, add, limit int) bool {
		if limit <= 0 || w.count+add <= limit {
			return false
		}
		if d := w.resetIn(now, period); wait == 0 || d < wait {
			wait = d
		}
		return true
	}

	over := false
	if exceeded(&pw.reqMinute, time.Minute, 1, r.cfg.RequestsPerMinute) {
		over = true
	}
	if exceeded(&pw.reqHour, time.Hour, 1, r.cfg.RequestsPerHour) {
		over = true
	}
	if exceeded(&pw.tokMinute, time.Minute, estimatedTokens, r.cfg.TokensPerMinute) {
		over = true
	}
	if exceeded(&pw.tokHour, time.Hour, estimatedTokens, r.cfg.TokensPerHour) {
		over = true
	}
	if over {
		secs := int(wait/time.Second) + 1
		return NewRateLimitError(provider,
			fmt.Errorf("local rate limit would be exceeded (%d tokens requested)", estimatedTokens), secs)
	}

	pw.reqMinute.count++
	pw.reqHour.count++
	pw.tokMinute.count += estimatedTokens
	pw.tokHour.count += estimatedTokens
	return nil
}

// Usage returns a snapshot of the provider's current window counters.
func (r *RateLimiter) Usage(provider string) RateUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	pw, ok := r.providers[provider]
	if !ok {
		return RateUsage{}
	}
	now := r.now()
	pw.reqMinute.expire(now, time.Minute)
	pw.reqHour.expire(now, time.Hour)
	pw.tokMinute.expire(now, time.Minute)
	pw.tokHour.expire(now, time.Hour)
	return RateUsage{
		RequestsThisMinute: pw.reqMinute.count,
		RequestsThisHour:   pw.reqHour.count,
		TokensThisMinute:   pw.tokMinute.count,
		TokensThisHour:     pw.tokHour.count,
	}
}
