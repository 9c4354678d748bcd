package llm

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalis/internal/config"
)

// fixedClock lets tests move the limiter's notion of time manually.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(cfg config.RateLimitConfig) (*RateLimiter, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRateLimiter(cfg)
	r.now = clock.now
	return r, clock
}

func TestRateLimiterRequestsPerMinute(t *testing.T) {
	r, clock := newTestLimiter(config.RateLimitConfig{RequestsPerMinute: 2})

	require.NoError(t, r.CheckAndConsume("anthropic", 10))
	require.NoError(t, r.CheckAndConsume("anthropic", 10))

	err := r.CheckAndConsume("anthropic", 10)
	require.Error(t, err)
	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "anthropic", rlErr.Provider)
	assert.LessOrEqual(t, rlErr.RetryAfter, 61*time.Second)
	assert.Greater(t, rlErr.RetryAfter, time.Duration(0))

	// A full minute later the window has reset.
	clock.advance(61 * time.Second)
	assert.NoError(t, r.CheckAndConsume("anthropic", 10))
}

func TestRateLimiterTokensPerHour(t *testing.T) {
	r, clock := newTestLimiter(config.RateLimitConfig{TokensPerHour: 1000})

	require.NoError(t, r.CheckAndConsume("anthropic", 600))
	require.NoError(t, r.CheckAndConsume("anthropic", 400))

	err := r.CheckAndConsume("anthropic", 1)
	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))

	// The minute window resetting does not free the hour budget.
	clock.advance(2 * time.Minute)
	require.Error(t, r.CheckAndConsume("anthropic", 1))

	clock.advance(time.Hour)
	assert.NoError(t, r.CheckAndConsume("anthropic", 1000))
}

func TestRateLimiterZeroLimitsAreUnlimited(t *testing.T) {
	r, _ := newTestLimiter(config.RateLimitConfig{})
	for i := 0; i < 500; i++ {
		require.NoError(t, r.CheckAndConsume("anthropic", 100_000))
	}
}

func TestRateLimiterDenialConsumesNothing(t *testing.T) {
	r, _ := newTestLimiter(config.RateLimitConfig{TokensPerMinute: 10})

	// Too big to ever fit; must not dent the budget.
	require.Error(t, r.CheckAndConsume("anthropic", 20))

	require.NoError(t, r.CheckAndConsume("anthropic", 5))
	require.NoError(t, r.CheckAndConsume("anthropic", 5))

	usage := r.Usage("anthropic")
	assert.Equal(t, 10, usage.TokensThisMinute)
	assert.Equal(t, 2, usage.RequestsThisMinute)
}

func TestRateLimiterProvidersAreIndependent(t *testing.T) {
	r, _ := newTestLimiter(config.RateLimitConfig{RequestsPerMinute: 1})

	require.NoError(t, r.CheckAndConsume("anthropic", 1))
	require.Error(t, r.CheckAndConsume("anthropic", 1))
	assert.NoError(t, r.CheckAndConsume("openai", 1))
}

func TestRateLimiterConcurrentConsumersNeverOvershoot(t *testing.T) {
	const limit = 50
	r, _ := newTestLimiter(config.RateLimitConfig{RequestsPerMinute: limit})

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.CheckAndConsume("anthropic", 1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, granted)
	assert.Equal(t, limit, r.Usage("anthropic").RequestsThisMinute)
}

func TestRateLimiterUsageUnknownProvider(t *testing.T) {
	r, _ := newTestLimiter(config.RateLimitConfig{})
	assert.Equal(t, RateUsage{}, r.Usage("nobody"))
}
