package translate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedTranslator wraps a Translator with rate limiting and retry capabilities.
// Fatal service errors are returned at once, everything else is retried.
type RateLimitedTranslator struct {
	translator  Translator
	rateLimiter *rate.Limiter
	maxRetries  int
	backoffMin  time.Duration
	backoffMax  time.Duration
}

// RateLimitConfig holds configuration for rate limiting and retries
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	// If 0 or negative, no rate limiting is applied
	RequestsPerMinute float64

	// MaxRetries is the maximum number of retry attempts
	// Defaults to 3 if 0, negative disables retries
	MaxRetries int

	// BackoffMaxWait is the maximum wait time between retries
	// Defaults to 30 seconds if not specified
	BackoffMaxWait time.Duration
}

// NewRateLimitedTranslator creates a new rate-limited translator
func NewRateLimitedTranslator(translator Translator, config RateLimitConfig) *RateLimitedTranslator {
	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		// Convert requests per minute to requests per second
		rps := rate.Limit(config.RequestsPerMinute / 60.0)
		limiter = rate.NewLimiter(rps, 1) // Burst size of 1
	}

	maxRetries := config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	backoffMax := config.BackoffMaxWait
	if backoffMax <= 0 {
		backoffMax = 30 * time.Second
	}

	return &RateLimitedTranslator{
		translator:  translator,
		rateLimiter: limiter,
		maxRetries:  maxRetries,
		backoffMin:  1 * time.Second,
		backoffMax:  backoffMax,
	}
}

// Translate implements Translator with rate limiting and retries
func (r *RateLimitedTranslator) Translate(ctx context.Context, sourceLang, targetLang string, texts []string) ([]string, error) {
	if r.rateLimiter != nil {
		if err := r.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var lastErr error
	attempt := 0

	for {
		translations, err := r.translator.Translate(ctx, sourceLang, targetLang, texts)
		if err == nil {
			return translations, nil
		}
		if IsFatal(err) {
			return nil, err
		}

		if attempt >= r.maxRetries {
			if lastErr != nil {
				return nil, fmt.Errorf("all retry attempts failed, last error: %w", err)
			}
			return nil, err
		}

		// Calculate exponential backoff with jitter
		backoff := r.backoffMin * time.Duration(1<<uint(attempt))
		if backoff > r.backoffMax {
			backoff = r.backoffMax
		}
		// Add jitter by randomly adjusting +/- 20%
		jitter := time.Duration(float64(backoff) * (0.8 + 0.4*rand.Float64()))

		log.WithError(err).WithField("attempt", attempt+1).Warn("Translation failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitter):
			attempt++
			lastErr = err
		}
	}
}

// Available forwards the health check when the backend supports one.
func (r *RateLimitedTranslator) Available(ctx context.Context) error {
	if c, ok := r.translator.(interface{ Available(context.Context) error }); ok {
		return c.Available(ctx)
	}
	return nil
}
