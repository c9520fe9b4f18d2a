package model

import (
	"context"
	"math"
	"sync"
	"time"

	"iacsift/internal/config"
	"iacsift/internal/logging"
)

// RateLimiter is a token bucket with exponential backoff after failures.
// Remote model endpoints share one limiter per endpoint.
type RateLimiter struct {
	tokens       chan struct{}
	interval     time.Duration
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	mu           sync.RWMutex
	failureCount int
	lastFailure  time.Time
	done         chan struct{}
	stopOnce     sync.Once
}

// NewRateLimiter creates a limiter from cfg, or from DefaultRateLimitConfig when cfg is nil
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	if cfg == nil {
		cfg = &config.DefaultRateLimitConfig
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = config.DefaultRateLimitConfig.RequestsPerSecond
	}

	tokenCount := int(math.Ceil(rps))
	rl := &RateLimiter{
		tokens:     make(chan struct{}, tokenCount),
		interval:   time.Duration(float64(time.Second) / rps),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		done:       make(chan struct{}),
	}

	for i := 0; i < tokenCount; i++ {
		rl.tokens <- struct{}{}
	}

	go rl.replenish()

	return rl
}

// replenish adds a token every interval until Stop is called
func (rl *RateLimiter) replenish() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default:
				// bucket is full
			}
		}
	}
}

// Stop ends token replenishment
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// MaxRetries is the number of retries a caller should attempt after a failure
func (rl *RateLimiter) MaxRetries() int {
	return rl.maxRetries
}

// currentBackoff is zero after five quiet minutes, otherwise it doubles per
// recorded failure up to maxDelay
func (rl *RateLimiter) currentBackoff() time.Duration {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if rl.failureCount == 0 || time.Since(rl.lastFailure) > time.Minute*5 {
		return 0
	}

	backoff := float64(rl.baseDelay) * math.Pow(2, float64(rl.failureCount-1))
	if backoff > float64(rl.maxDelay) {
		backoff = float64(rl.maxDelay)
	}
	return time.Duration(backoff)
}

// Wait blocks for the current backoff and then for a token
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if backoff := rl.currentBackoff(); backoff > 0 {
		logging.Debug("Rate limiter applying backoff", map[string]interface{}{
			"backoff_ms":    backoff.Milliseconds(),
			"base_delay_ms": rl.baseDelay.Milliseconds(),
			"max_delay_ms":  rl.maxDelay.Milliseconds(),
		})
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.tokens:
		return nil
	}
}

// OnSuccess resets the backoff
func (rl *RateLimiter) OnSuccess() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.failureCount > 0 {
		logging.Debug("Rate limiter resetting backoff after success", map[string]interface{}{
			"previous_failure_count": rl.failureCount,
			"last_failure":           rl.lastFailure.Format(time.RFC3339),
		})
		rl.failureCount = 0
		rl.lastFailure = time.Time{}
	}
}

// OnFailure records a failed call and grows the backoff
func (rl *RateLimiter) OnFailure() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.failureCount++
	rl.lastFailure = time.Now()

	logging.Debug("Rate limiter recorded failure", map[string]interface{}{
		"failure_count":   rl.failureCount,
		"next_backoff_ms": float64(rl.baseDelay.Milliseconds()) * math.Pow(2, float64(rl.failureCount-1)),
	})
}

// limiterRegistry hands out one limiter per endpoint
type limiterRegistry struct {
	limiters sync.Map
}

var limiters = &limiterRegistry{}

func (r *limiterRegistry) get(key string, cfg *config.RateLimitConfig) *RateLimiter {
	if limiter, ok := r.limiters.Load(key); ok {
		return limiter.(*RateLimiter)
	}

	limiter := NewRateLimiter(cfg)
	actual, loaded := r.limiters.LoadOrStore(key, limiter)
	if loaded {
		limiter.Stop()
	}
	return actual.(*RateLimiter)
}
