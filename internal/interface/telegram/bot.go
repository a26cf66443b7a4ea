// Package telegram is the chat transport of the bot: it receives updates by
// long polling or webhook, keeps each user's updates in arrival order and
// hands them to the router.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
	"github.com/thevuntgram/vuntgram-bot/internal/interface/telegram/middleware"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Update intake modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// Mode is the update receiving mode: "polling" or "webhook".
	Mode string

	// WebhookURL is the public URL Telegram posts updates to (webhook mode).
	WebhookURL string

	// WebhookSecret is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string

	// Workers is the number of ordered update queues. Updates of one user
	// always land in the same queue.
	Workers int

	// QueueSize is the buffer of each queue.
	QueueSize int

	// UpdateTimeout bounds the handling of one update.
	UpdateTimeout time.Duration

	// GracefulShutdownTimeout is how long Stop waits for queued updates.
	GracefulShutdownTimeout time.Duration

	Logger *slog.Logger
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Mode:                    ModePolling,
		Workers:                 16,
		QueueSize:               64,
		UpdateTimeout:           60 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// BotDependencies contains the collaborators of the bot.
type BotDependencies struct {
	Client   *telegram.Client
	Router   *Router
	Admins   *middleware.AdminAuth
	Limiter  *middleware.RateLimiter
	Recovery *middleware.RecoveryMiddleware
	Metrics  *middleware.MetricsMiddleware
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the Telegram bot controller.
type Bot struct {
	config BotConfig
	client *telegram.Client
	router *Router
	admins *middleware.AdminAuth
	logger *slog.Logger

	limiter  *middleware.RateLimiter
	recovery *middleware.RecoveryMiddleware
	metrics  *middleware.MetricsMiddleware

	queues []chan *telegram.Update

	runningMu sync.RWMutex
	running   bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	stats *BotStats
}

// BotStats holds runtime statistics.
type BotStats struct {
	mu              sync.RWMutex
	StartedAt       time.Time
	UpdatesReceived int64
	UpdatesHandled  int64
	ErrorsCount     int64
}

// NewBot creates a new Telegram bot.
func NewBot(config BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.Client == nil || deps.Router == nil {
		return nil, errors.New("telegram client and router are required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	defaults := DefaultBotConfig()
	if config.Mode == "" {
		config.Mode = defaults.Mode
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.UpdateTimeout <= 0 {
		config.UpdateTimeout = defaults.UpdateTimeout
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = defaults.GracefulShutdownTimeout
	}
	if config.Mode == ModeWebhook && config.WebhookURL == "" {
		return nil, errors.New("webhook URL is required for webhook mode")
	}
	if deps.Admins == nil {
		deps.Admins = middleware.NewAdminAuth(nil)
	}
	if deps.Recovery == nil {
		deps.Recovery = middleware.NewRecoveryMiddleware(middleware.DefaultRecoveryConfig())
	}

	b := &Bot{
		config:   config,
		client:   deps.Client,
		router:   deps.Router,
		admins:   deps.Admins,
		logger:   logger.Component(config.Logger, "bot"),
		limiter:  deps.Limiter,
		recovery: deps.Recovery,
		metrics:  deps.Metrics,
		queues:   make([]chan *telegram.Update, config.Workers),
		stopCh:   make(chan struct{}),
		stats:    &BotStats{},
	}
	for i := range b.queues {
		b.queues[i] = make(chan *telegram.Update, config.QueueSize)
	}
	return b, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token, starts the workers and receives updates until
// ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	b.stats.mu.Lock()
	b.stats.StartedAt = time.Now()
	b.stats.mu.Unlock()

	b.logger.Info("starting telegram bot", slog.String("mode", b.config.Mode), slog.Int("workers", len(b.queues)))

	if err := b.verifyToken(ctx); err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}

	base := context.WithoutCancel(ctx)
	for i, q := range b.queues {
		b.wg.Add(1)
		go b.worker(base, i, q)
	}

	switch b.config.Mode {
	case ModePolling:
		return b.startPolling(ctx)
	case ModeWebhook:
		return b.startWebhook(ctx)
	default:
		return fmt.Errorf("unknown bot mode: %s", b.config.Mode)
	}
}

// Stop stops the workers after the queued updates are handled or the
// graceful timeout elapses.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	b.runningMu.Unlock()

	b.logger.Info("stopping telegram bot")
	b.stopOnce.Do(func() { close(b.stopCh) })

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all queued updates handled")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the bot is currently running.
func (b *Bot) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

func (b *Bot) verifyToken(ctx context.Context) error {
	me, err := b.client.GetMe(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("bot verified", slog.Int64("id", me.ID), slog.String("username", me.Username))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE INTAKE
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) startPolling(ctx context.Context) error {
	if err := b.client.DeleteWebhook(ctx, false); err != nil {
		b.logger.Warn("failed to delete webhook before polling", logger.Err(err))
	}
	return b.client.StartPolling(ctx, b.Enqueue)
}

// startWebhook registers the webhook and waits; updates arrive through the
// HTTP server calling Enqueue.
func (b *Bot) startWebhook(ctx context.Context) error {
	if err := b.client.SetWebhook(ctx, b.config.WebhookURL, b.config.WebhookSecret); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	b.logger.Info("webhook registered", slog.String("url", b.config.WebhookURL))
	<-ctx.Done()
	return nil
}

// WebhookSecret returns the secret the HTTP webhook handler must check.
func (b *Bot) WebhookSecret() string {
	return b.config.WebhookSecret
}

// Enqueue puts an update on its user's queue. It blocks while the queue is
// full and fails once the bot is stopping.
func (b *Bot) Enqueue(ctx context.Context, update *telegram.Update) error {
	if update == nil {
		return nil
	}
	b.stats.mu.Lock()
	b.stats.UpdatesReceived++
	b.stats.mu.Unlock()

	q := b.queues[b.shard(senderID(update))]
	select {
	case q <- update:
		return nil
	case <-b.stopCh:
		return errors.New("bot is stopping")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) shard(userID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int(h.Sum32() % uint32(len(b.queues)))
}

func (b *Bot) worker(ctx context.Context, id int, q <-chan *telegram.Update) {
	defer b.wg.Done()
	for {
		select {
		case u := <-q:
			b.handleUpdate(ctx, u)
		case <-b.stopCh:
			for {
				select {
				case u := <-q:
					b.handleUpdate(ctx, u)
				default:
					b.logger.Debug("worker stopped", slog.Int("worker", id))
					return
				}
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// handleUpdate runs one update through rate limiting, recovery and the router.
func (b *Bot) handleUpdate(ctx context.Context, update *telegram.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.config.UpdateTimeout)
	defer cancel()

	userID := senderID(update)
	kind := updateKind(update)
	ctx = b.admins.Authorize(ctx, userID)
	ctx = middleware.ContextWithStartTime(ctx, time.Now())

	if update.CallbackQuery != nil {
		defer func() {
			if err := b.client.AnswerCallbackQuery(ctx, update.CallbackQuery.ID, "", false); err != nil {
				b.logger.Debug("answer callback query", logger.Err(err))
			}
		}()
	}

	if b.limiter != nil {
		if res := b.limiter.Check(userID); !res.Allowed {
			if b.metrics != nil {
				b.metrics.RecordRateLimited()
			}
			b.rejectRateLimited(ctx, update, res)
			return
		}
	}

	var track *middleware.RequestContext
	if b.metrics != nil {
		track = b.metrics.Start(kind, userID)
	}

	res := b.recovery.Recover(ctx, userID, kind, func(ctx context.Context) error {
		return b.router.Route(ctx, update)
	})

	if track != nil {
		track.End(res.Err)
	}
	if res.Recovered {
		if b.metrics != nil {
			b.metrics.RecordPanic()
		}
		if chatID := chatOf(update); chatID != 0 {
			if _, err := b.client.SendText(ctx, chatID, res.UserMessage); err != nil {
				b.logger.Warn("send panic apology", logger.Err(err))
			}
		}
	}

	b.stats.mu.Lock()
	b.stats.UpdatesHandled++
	if res.Err != nil && !shared.IsRecoverable(res.Err) {
		b.stats.ErrorsCount++
	}
	b.stats.mu.Unlock()

	switch {
	case res.Err == nil:
	case shared.IsRecoverable(res.Err):
		b.logger.Debug("transition rejected", logger.TelegramID(userID), slog.String("outcome", shared.Kind(res.Err)))
	case telegram.IsUserBlocked(res.Err):
		b.logger.Info("user blocked the bot", logger.TelegramID(userID))
	default:
		b.logger.Error("failed to handle update",
			slog.Int64("update_id", update.UpdateID),
			logger.TelegramID(userID),
			logger.Err(res.Err),
		)
	}
}

func (b *Bot) rejectRateLimited(ctx context.Context, update *telegram.Update, res middleware.RateLimitResult) {
	if update.CallbackQuery != nil {
		_ = b.client.AnswerCallbackQuery(ctx, update.CallbackQuery.ID, res.Message(), true)
		return
	}
	// Banned users get no reply.
	if res.IsBanned {
		return
	}
	if chatID := chatOf(update); chatID != 0 {
		if _, err := b.client.SendText(ctx, chatID, res.Message()); err != nil {
			b.logger.Debug("send rate limit notice", logger.Err(err))
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// Stats returns current bot statistics.
func (b *Bot) Stats() map[string]any {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	uptime := time.Duration(0)
	if !b.stats.StartedAt.IsZero() {
		uptime = time.Since(b.stats.StartedAt).Round(time.Second)
	}
	return map[string]any{
		"running":          b.IsRunning(),
		"mode":             b.config.Mode,
		"started_at":       b.stats.StartedAt,
		"uptime":           uptime.String(),
		"updates_received": b.stats.UpdatesReceived,
		"updates_handled":  b.stats.UpdatesHandled,
		"errors_count":     b.stats.ErrorsCount,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func senderID(update *telegram.Update) int64 {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		return update.CallbackQuery.From.ID
	}
	return 0
}

func chatOf(update *telegram.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

func updateKind(update *telegram.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message != nil && telegram.ExtractCommand(update.Message) != "":
		return "command"
	default:
		return "message"
	}
}
