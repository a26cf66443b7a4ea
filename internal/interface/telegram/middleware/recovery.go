package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in update handling and turns them into a short apology to
// the user. The stack goes to the log.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// UserErrorMessage is sent to the user after a panic.
	UserErrorMessage string

	// MaxPanicsPerMinute caps how many panics are logged with a stack.
	MaxPanicsPerMinute int

	// OnPanic is called for every recovered panic (metrics hook).
	OnPanic func(info PanicInfo)

	Logger *slog.Logger
}

// DefaultRecoveryConfig returns sensible defaults for recovery middleware.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		UserErrorMessage:   "😔 Что-то пошло не так. Попробуй ещё раз через минуту или отправь /start.",
		MaxPanicsPerMinute: 60,
	}
}

// PanicInfo describes a recovered panic.
type PanicInfo struct {
	Value      any
	Stack      string
	TelegramID int64
	Operation  string
	At         time.Time
}

// Error formats the panic value.
func (p PanicInfo) Error() string {
	return fmt.Sprintf("panic in %s: %v", p.Operation, p.Value)
}

// RecoveryResult is returned by Recover.
type RecoveryResult struct {
	// Recovered is true when the handler panicked.
	Recovered bool

	// UserMessage is set when Recovered.
	UserMessage string

	// Err is the handler error or the panic converted to an error.
	Err error
}

// RecoveryMiddleware recovers from panics in handlers.
type RecoveryMiddleware struct {
	config  RecoveryConfig
	limiter *panicRateLimiter
	logger  *slog.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.UserErrorMessage == "" {
		config.UserErrorMessage = DefaultRecoveryConfig().UserErrorMessage
	}
	return &RecoveryMiddleware{
		config:  config,
		limiter: newPanicRateLimiter(config.MaxPanicsPerMinute),
		logger:  logger.Component(config.Logger, "recovery"),
	}
}

// Recover runs handler and converts a panic into a RecoveryResult.
func (m *RecoveryMiddleware) Recover(ctx context.Context, telegramID int64, operation string, handler func(context.Context) error) (res RecoveryResult) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		info := PanicInfo{
			Value:      r,
			TelegramID: telegramID,
			Operation:  operation,
			At:         time.Now(),
		}
		if m.limiter.allow() {
			info.Stack = string(debug.Stack())
			m.logger.Error("panic recovered",
				logger.TelegramID(telegramID),
				slog.String("operation", operation),
				slog.Any("panic", r),
				slog.String("stack", info.Stack),
			)
		}
		if m.config.OnPanic != nil {
			m.config.OnPanic(info)
		}
		res = RecoveryResult{Recovered: true, UserMessage: m.config.UserErrorMessage, Err: info}
	}()

	return RecoveryResult{Err: handler(ctx)}
}

// panicRateLimiter is a fixed one-minute window counter.
type panicRateLimiter struct {
	mu          sync.Mutex
	max         int
	count       int
	windowStart time.Time
}

func newPanicRateLimiter(maxPerMin int) *panicRateLimiter {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	return &panicRateLimiter{max: maxPerMin, windowStart: time.Now()}
}

func (p *panicRateLimiter) allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.windowStart) > time.Minute {
		p.count = 0
		p.windowStart = time.Now()
	}
	p.count++
	return p.count <= p.max
}
