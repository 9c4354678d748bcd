package llm

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"legalis/internal/config"
	"legalis/internal/domain"
)

// RetryPolicy controls retry-with-backoff behavior.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	// Retryable classifies errors; defaults to IsRetryable.
	Retryable func(error) bool
}

// PolicyFromConfig builds a RetryPolicy from config values.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       cfg.MaxAttempts,
		BaseDelay:         cfg.BaseDelay(),
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxDelay:          cfg.MaxDelay(),
	}
}

// Operation is a single retryable unit of work.
type Operation func() (*domain.LLMResponse, error)

// RetryHandler executes operations with bounded retries and exponential
// backoff. It holds no per-call state, so one handler may be shared by
// any number of concurrent call sites.
type RetryHandler struct {
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// NewRetryHandler creates a RetryHandler with the given policy.
func NewRetryHandler(policy RetryPolicy) *RetryHandler {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BackoffMultiplier <= 0 {
		policy.BackoffMultiplier = 2.0
	}
	if policy.Retryable == nil {
		policy.Retryable = IsRetryable
	}
	return &RetryHandler{
		policy: policy,
		sleep:  sleepCtx,
		jitter: randomJitter,
	}
}

// Execute runs op until it succeeds, fails fatally, or attempts run out.
//
// A non-retryable error returns immediately, wrapped into the LLM error
// taxonomy if it is not already part of it. A retryable error sleeps for
// min(maxDelay, base*multiplier^(attempt-1)) plus jitter; a provider
// retry-after hint wins over the computed backoff (clamped to maxDelay).
// After the last attempt the last error is returned unchanged, so callers
// can still distinguish a rate limit from a connection failure.
//
// Cancellation of ctx stops further attempts between tries; it never
// interrupts an attempt already in flight.
func (h *RetryHandler) Execute(ctx context.Context, opName string, op Operation) (*domain.LLMResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= h.policy.MaxAttempts; attempt++ {
		resp, err := op()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !h.policy.Retryable(err) {
			if inTaxonomy(err) {
				return nil, err
			}
			return nil, NewError(fmt.Sprintf("%s failed after %d attempt(s)", opName, attempt), err)
		}

		if attempt == h.policy.MaxAttempts {
			break
		}

		delay := h.delayFor(attempt, err)
		log.Printf("llm.RetryHandler: %s attempt %d/%d failed, retrying in %s: %v",
			opName, attempt, h.policy.MaxAttempts, delay, err)
		if sleepErr := h.sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}

	// Exhausted: surface the last concrete error, not a generic wrapper.
	if !inTaxonomy(lastErr) {
		return nil, NewError(fmt.Sprintf("%s failed after %d attempt(s)", opName, h.policy.MaxAttempts), lastErr)
	}
	return nil, lastErr
}

// delayFor computes the sleep before the next attempt. attempt is 1-based.
func (h *RetryHandler) delayFor(attempt int, err error) time.Duration {
	if hint := retryAfterHint(err); hint > 0 {
		if h.policy.MaxDelay > 0 && hint > h.policy.MaxDelay {
			return h.policy.MaxDelay
		}
		return hint
	}

	backoff := float64(h.policy.BaseDelay) * math.Pow(h.policy.BackoffMultiplier, float64(attempt-1))
	delay := time.Duration(backoff)
	if h.policy.MaxDelay > 0 && delay > h.policy.MaxDelay {
		delay = h.policy.MaxDelay
	}
	return delay + h.jitter(delay/4)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
