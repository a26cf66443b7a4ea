// Package main - точка входа Telegram-бота TheVuntgram.
//
// Бот регистрирует школьников и учителей: ведёт диалог по шагам, сохраняет
// состояние каждого пользователя после каждого сообщения, синхронизирует
// анкету с хранилищем профилей и пересылает обращения в поддержку
// администраторам.
//
// Слои:
// - Domain: сессии, анкеты, валидация, справочник школ
// - Application: диалоговый движок, синхронизация, поддержка, обработчики событий
// - Infrastructure: хранилища сессий, клиенты Telegram и хранилища профилей
// - Interface: Telegram-роутер, HTTP-пробы и вебхук
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/thevuntgram/vuntgram-bot/config"

	// Application layer
	"github.com/thevuntgram/vuntgram-bot/internal/application/command"
	"github.com/thevuntgram/vuntgram-bot/internal/application/conversation"
	"github.com/thevuntgram/vuntgram-bot/internal/application/eventhandler"
	"github.com/thevuntgram/vuntgram-bot/internal/application/support"

	// Domain layer
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	supportdomain "github.com/thevuntgram/vuntgram-bot/internal/domain/support"

	// Infrastructure layer
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/profilestore"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/messaging"
	badgerstore "github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/badger"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/memory"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/postgres"
	redisstore "github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/redis"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/sealed"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/reference"

	// Interface layer
	httpserver "github.com/thevuntgram/vuntgram-bot/internal/interface/http"
	"github.com/thevuntgram/vuntgram-bot/internal/interface/http/handlers"
	tgbot "github.com/thevuntgram/vuntgram-bot/internal/interface/telegram"
	"github.com/thevuntgram/vuntgram-bot/internal/interface/telegram/middleware"
	"github.com/thevuntgram/vuntgram-bot/internal/interface/telegram/presenter"

	// Packages
	"github.com/thevuntgram/vuntgram-bot/pkg/circuitbreaker"
	"github.com/thevuntgram/vuntgram-bot/pkg/keylock"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
	"github.com/thevuntgram/vuntgram-bot/pkg/retry"
	"github.com/thevuntgram/vuntgram-bot/pkg/timeutil"
)

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Config{
		Level:   cfg.Observability.LogLevel,
		Format:  logger.Format(cfg.Observability.LogFormat),
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
	slog.SetDefault(log)
	timeutil.SetLocation(cfg.App.Location)

	log.Info("starting TheVuntgram bot",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("timezone", cfg.App.Timezone),
		slog.String("session_driver", cfg.Session.Driver),
		slog.String("telegram_mode", cfg.Telegram.Mode),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. СПРАВОЧНИКИ (школы, запрещённые слова)
	// ─────────────────────────────────────────────────────────────────────────
	ref, err := reference.Load(cfg.Reference.File)
	if err != nil {
		return fmt.Errorf("failed to load reference data: %w", err)
	}
	log.Info("reference data loaded", slog.Int("banned_words", ref.BannedWords))

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ХРАНИЛИЩЕ СЕССИЙ
	// ─────────────────────────────────────────────────────────────────────────
	var codec session.Codec = session.JSONCodec{}
	if cfg.Session.Secret != "" {
		codec, err = sealed.NewCodec(cfg.Session.Secret, session.JSONCodec{})
		if err != nil {
			return fmt.Errorf("failed to create session codec: %w", err)
		}
	}

	sessions, closeSessions, err := openSessionStore(ctx, cfg, codec, health, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing session store...")
		if err := closeSessions(); err != nil {
			log.Error("failed to close session store", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ЖУРНАЛ ОБРАЩЕНИЙ (PostgreSQL, опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var ledger supportdomain.Repository
	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		var dbConn *postgres.Connection
		err := retry.StartupRetrier().Do(ctx, func(ctx context.Context) error {
			var err error
			dbConn, err = postgres.Open(ctx, cfg.Database.URL)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		ledger = postgres.NewSupportRepository(dbConn)
		health.AddCheck("ledger", handlers.PingCheck(dbConn))
		log.Info("support ledger enabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS И МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		if err := bus.Close(); err != nil {
			log.Error("failed to close event bus", logger.Err(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		messaging.NewCollector(bus.Metrics()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. TELEGRAM CLIENT И ПОДДЕРЖКА
	// ─────────────────────────────────────────────────────────────────────────
	tgConfig := telegram.DefaultClientConfig(cfg.Telegram.Token)
	tgConfig.PollTimeout = int(cfg.Telegram.PollingTimeout / time.Second)
	tgConfig.Timeout = cfg.Telegram.PollingTimeout + 15*time.Second
	tgConfig.Logger = log
	tgClient := telegram.NewClient(tgConfig)
	messenger := tgbot.NewMessenger(tgClient)

	locks := keylock.New()
	rings := support.NewRingBook(sessions, locks)
	desk := support.NewDesk(support.DeskConfig{
		Messenger: messenger,
		Rings:     rings,
		Ledger:    ledger,
		Logger:    log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	notifier := eventhandler.NewAdminNotifier(eventhandler.AdminNotifierConfig{
		Messenger:           messenger,
		Rings:               rings,
		AdminIDs:            cfg.Telegram.AdminIDs,
		NotifyRegistrations: cfg.Telegram.NotifyRegistrations,
		Timeout:             15 * time.Second,
		Logger:              log,
	})
	if err := notifier.Register(bus); err != nil {
		return fmt.Errorf("failed to register admin notifier: %w", err)
	}
	if ledger != nil {
		if err := eventhandler.NewLedgerWriter(ledger, log).Register(bus); err != nil {
			return fmt.Errorf("failed to register ledger writer: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ХРАНИЛИЩЕ ПРОФИЛЕЙ И ДИАЛОГОВЫЙ ДВИЖОК
	// ─────────────────────────────────────────────────────────────────────────
	storeConfig := profilestore.DefaultClientConfig(cfg.ProfileStore.URL)
	storeConfig.APIKey = cfg.ProfileStore.APIKey
	storeConfig.Timeout = cfg.ProfileStore.Timeout
	storeConfig.RateLimiterConfig.RequestsPerSecond = float64(cfg.ProfileStore.RateLimit)
	storeConfig.Logger = log
	storeConfig.Breaker = circuitbreaker.ProfileStoreBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	profileSync := command.NewProfileSync(profilestore.NewClient(storeConfig), nil, log)

	engine := conversation.New(conversation.Config{
		Directory: ref.Directory,
		Screen:    ref.Screen,
		Sync:      profileSync,
		Publisher: bus,
		Features:  cfg.Features,
		Stickers: conversation.Stickers{
			Welcome: cfg.Stickers.Welcome,
			Sent:    cfg.Stickers.Sent,
			Error:   cfg.Stickers.Error,
			Success: cfg.Stickers.Success,
		},
		EmailRelayDomain: cfg.App.EmailRelayDomain,
		Logger:           log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 10. TELEGRAM ROUTER И MIDDLEWARE
	// ─────────────────────────────────────────────────────────────────────────
	admins := middleware.NewAdminAuth(cfg.Telegram.AdminIDs)
	router := tgbot.NewRouter(tgbot.RouterConfig{
		Engine:    engine,
		Sessions:  sessions,
		Locks:     locks,
		Presenter: presenter.New(tgClient, log),
		Desk:      desk,
		Admins:    admins,
		Logger:    log,
	})

	limitConfig := middleware.DefaultRateLimitConfig()
	limitConfig.RequestsPerMinute = cfg.Telegram.UserRateLimit
	limitConfig.BurstSize = cfg.Telegram.UserBurst
	limitConfig.BanThreshold = cfg.Telegram.UserBanAfter
	limitConfig.BanDuration = cfg.Telegram.UserBan
	limitConfig.Whitelist = admins.IDs()
	limiter := middleware.NewRateLimiter(limitConfig)
	go limiter.Run(ctx)

	metricsConfig := middleware.DefaultMetricsConfig()
	metricsConfig.Registerer = registry
	metricsConfig.OnSlowRequest = func(kind string, telegramID int64, d time.Duration) {
		log.Warn("slow update",
			slog.String("kind", kind),
			logger.TelegramID(telegramID),
			slog.Int64("duration_ms", d.Milliseconds()),
		)
	}
	metrics, err := middleware.NewMetricsMiddleware(metricsConfig)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	recoveryConfig := middleware.DefaultRecoveryConfig()
	recoveryConfig.Logger = log
	recoveryConfig.OnPanic = func(middleware.PanicInfo) { metrics.RecordPanic() }
	recovery := middleware.NewRecoveryMiddleware(recoveryConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. TELEGRAM BOT
	// ─────────────────────────────────────────────────────────────────────────
	botConfig := tgbot.DefaultBotConfig()
	botConfig.Mode = cfg.Telegram.Mode
	botConfig.WebhookURL = cfg.Telegram.WebhookURL
	botConfig.WebhookSecret = cfg.Telegram.WebhookSecret
	if botConfig.Mode == tgbot.ModeWebhook && botConfig.WebhookSecret == "" {
		botConfig.WebhookSecret = uuid.NewString()
		log.Warn("TELEGRAM_WEBHOOK_SECRET is empty, using a random secret for this run")
	}
	botConfig.Workers = cfg.Telegram.Workers
	botConfig.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botConfig.Logger = log

	bot, err := tgbot.NewBot(botConfig, tgbot.BotDependencies{
		Client:   tgClient,
		Router:   router,
		Admins:   admins,
		Limiter:  limiter,
		Recovery: recovery,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.WebhookPath = cfg.Telegram.WebhookPath

	httpDeps := httpserver.Dependencies{
		Logger:   log,
		Health:   health,
		Gatherer: registry,
		Stats:    bot.Stats,
	}
	if botConfig.Mode == tgbot.ModeWebhook {
		httpDeps.Webhook = handlers.NewWebhook(bot, bot.WebhookSecret(), log)
	}
	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 13. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 2)

	httpErrCh := httpServer.StartAsync()
	go func() {
		if err := <-httpErrCh; err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	go func() {
		if err := bot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("telegram bot error: %w", err)
		}
	}()

	log.Info("TheVuntgram bot is running",
		slog.String("http_address", httpConfig.Address()),
		slog.String("telegram_mode", botConfig.Mode),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 14. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-errCh:
		log.Error("service error", logger.Err(runErr))
	}

	log.Info("starting graceful shutdown...", slog.String("timeout", cfg.App.ShutdownTimeout.String()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	// Сначала перестаём принимать апдейты, затем дожидаемся очередей
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
	}
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot gracefully", logger.Err(err))
	}

	log.Info("shutdown complete")
	return runErr
}

// openSessionStore opens the configured checkpoint store and registers its
// readiness check when the backend can be pinged.
func openSessionStore(ctx context.Context, cfg *config.Config, codec session.Codec, health *handlers.CompositeHealthChecker, log *slog.Logger) (session.Repository, func() error, error) {
	switch cfg.Session.Driver {
	case config.SessionDriverRedis:
		redisConfig := redisstore.DefaultConfig()
		redisConfig.Host = cfg.Redis.Host
		redisConfig.Port = cfg.Redis.Port
		redisConfig.Password = cfg.Redis.Password
		redisConfig.DB = cfg.Redis.DB
		redisConfig.PoolSize = cfg.Redis.PoolSize
		redisConfig.KeyPrefix = cfg.Redis.KeyPrefix

		client, err := redisstore.NewClient(ctx, redisConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := redisstore.NewSessionStore(client, redisstore.SessionStoreConfig{
			Codec:     codec,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Session.TTL,
		})
		health.AddCheck("sessions", handlers.PingCheck(store))
		log.Info("session store: redis", slog.String("addr", redisConfig.Addr()))
		return store, store.Close, nil

	case config.SessionDriverBadger:
		store, err := badgerstore.Open(badgerstore.Config{
			Path:   cfg.Session.BadgerPath,
			Codec:  codec,
			TTL:    cfg.Session.TTL,
			Logger: log,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger: %w", err)
		}
		go store.RunGC(ctx, cfg.Session.BadgerGCInterval)
		log.Info("session store: badger", slog.String("path", cfg.Session.BadgerPath))
		return store, store.Close, nil

	default:
		store := memory.NewSessionStore(cfg.Session.TTL)
		log.Warn("session store: memory, checkpoints are lost on restart")
		return store, store.Close, nil
	}
}
