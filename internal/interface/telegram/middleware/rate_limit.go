// Package middleware contains the per-update guards of the Telegram transport:
// rate limiting, panic recovery, admin detection and metrics.
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// Token bucket per user. Repeated violations lead to a temporary ban.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the refill rate of a user's bucket.
	RequestsPerMinute int

	// BurstSize is the bucket capacity.
	BurstSize int

	// CleanupInterval is how often idle buckets and expired bans are dropped.
	CleanupInterval time.Duration

	// BanDuration is how long a user stays banned after BanThreshold violations.
	BanDuration time.Duration

	// BanThreshold is the number of violations within five minutes before a ban.
	BanThreshold int

	// Whitelist is exempt from limiting (admins).
	Whitelist []int64

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
		BurstSize:         8,
		CleanupInterval:   5 * time.Minute,
		BanDuration:       10 * time.Minute,
		BanThreshold:      5,
	}
}

// RateLimiter implements per-user rate limiting.
type RateLimiter struct {
	config    RateLimitConfig
	whitelist map[int64]bool
	now       func() time.Time

	buckets sync.Map // map[int64]*tokenBucket
	bans    sync.Map // map[int64]time.Time (expiry)
}

type tokenBucket struct {
	mu           sync.Mutex
	tokens       float64
	lastRefill   time.Time
	refillRate   float64 // tokens per second
	maxTokens    float64
	violations   int
	lastViolated time.Time
}

// NewRateLimiter creates a rate limiter. Call Run to enable periodic cleanup.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 30
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	wl := make(map[int64]bool, len(config.Whitelist))
	for _, id := range config.Whitelist {
		wl[id] = true
	}

	return &RateLimiter{config: config, whitelist: wl, now: config.Now}
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	IsBanned   bool
}

// Message is the text shown to a limited user.
func (r RateLimitResult) Message() string {
	seconds := int(r.RetryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if seconds < 60 {
		return fmt.Sprintf("⏳ Слишком много запросов! Подожди %d сек. и попробуй снова.", seconds)
	}
	return fmt.Sprintf("⏳ Слишком много запросов! Подожди %d мин. и попробуй снова.", seconds/60)
}

// Check consumes one token of the user's bucket.
func (rl *RateLimiter) Check(telegramID int64) RateLimitResult {
	if rl.whitelist[telegramID] {
		return RateLimitResult{Allowed: true}
	}

	now := rl.now()
	if until, banned := rl.banExpiry(telegramID, now); banned {
		return RateLimitResult{IsBanned: true, RetryAfter: until.Sub(now)}
	}

	bucket := rl.getBucket(telegramID, now)
	allowed, retryAfter, violations := bucket.consume(now)
	if allowed {
		return RateLimitResult{Allowed: true}
	}

	if rl.config.BanThreshold > 0 && violations >= rl.config.BanThreshold {
		until := now.Add(rl.config.BanDuration)
		rl.bans.Store(telegramID, until)
		return RateLimitResult{IsBanned: true, RetryAfter: rl.config.BanDuration}
	}
	return RateLimitResult{RetryAfter: retryAfter}
}

// Reset clears the user's bucket and ban.
func (rl *RateLimiter) Reset(telegramID int64) {
	rl.buckets.Delete(telegramID)
	rl.bans.Delete(telegramID)
}

// Run drops idle buckets and expired bans until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(rl.now())
		}
	}
}

func (rl *RateLimiter) getBucket(telegramID int64, now time.Time) *tokenBucket {
	if val, ok := rl.buckets.Load(telegramID); ok {
		return val.(*tokenBucket)
	}

	bucket := &tokenBucket{
		tokens:     float64(rl.config.BurstSize),
		lastRefill: now,
		refillRate: float64(rl.config.RequestsPerMinute) / 60.0,
		maxTokens:  float64(rl.config.BurstSize),
	}
	actual, _ := rl.buckets.LoadOrStore(telegramID, bucket)
	return actual.(*tokenBucket)
}

func (rl *RateLimiter) banExpiry(telegramID int64, now time.Time) (time.Time, bool) {
	val, ok := rl.bans.Load(telegramID)
	if !ok {
		return time.Time{}, false
	}
	until := val.(time.Time)
	if !now.Before(until) {
		rl.bans.Delete(telegramID)
		rl.buckets.Delete(telegramID)
		return time.Time{}, false
	}
	return until, true
}

// consume returns whether a token was taken, the wait for the next one and
// the violation count.
func (b *tokenBucket) consume(now time.Time) (bool, time.Duration, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0, b.violations
	}

	if now.Sub(b.lastViolated) > 5*time.Minute {
		b.violations = 0
	}
	b.violations++
	b.lastViolated = now

	deficit := 1.0 - b.tokens
	retryAfter := time.Duration(deficit / b.refillRate * float64(time.Second))
	return false, retryAfter, b.violations
}

func (rl *RateLimiter) cleanup(now time.Time) {
	const idle = 10 * time.Minute

	rl.buckets.Range(func(key, value any) bool {
		bucket := value.(*tokenBucket)
		bucket.mu.Lock()
		inactive := now.Sub(bucket.lastRefill) > idle
		bucket.mu.Unlock()
		if inactive {
			rl.buckets.Delete(key)
		}
		return true
	})

	rl.bans.Range(func(key, value any) bool {
		if !now.Before(value.(time.Time)) {
			rl.bans.Delete(key)
		}
		return true
	})
}
