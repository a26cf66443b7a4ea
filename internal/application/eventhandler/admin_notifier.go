// Package eventhandler содержит подписчиков доменных событий: уведомления
// администраторам и запись в журнал поддержки.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thevuntgram/vuntgram-bot/internal/application/support"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
	"github.com/thevuntgram/vuntgram-bot/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ADMIN NOTIFIER
// Пересылает обращения, запросы на удаление и регистрации во все чаты
// администраторов. Канал fire-and-forget: ошибки только логируются.
// ═══════════════════════════════════════════════════════════════════════════

// AdminNotifierConfig содержит зависимости уведомителя.
type AdminNotifierConfig struct {
	Messenger support.Messenger

	// Rings получает пересланные обращения для /reply_admin.
	Rings *support.RingBook

	AdminIDs []int64

	// NotifyRegistrations включает уведомления о новых регистрациях.
	NotifyRegistrations bool

	// Timeout ограничивает одну рассылку.
	Timeout time.Duration

	Logger *slog.Logger
}

// AdminNotifier рассылает уведомления администраторам.
type AdminNotifier struct {
	messenger     support.Messenger
	rings         *support.RingBook
	adminIDs      []int64
	registrations bool
	timeout       time.Duration
	logger        *slog.Logger
}

// NewAdminNotifier создаёт уведомитель.
func NewAdminNotifier(cfg AdminNotifierConfig) *AdminNotifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &AdminNotifier{
		messenger:     cfg.Messenger,
		rings:         cfg.Rings,
		adminIDs:      append([]int64(nil), cfg.AdminIDs...),
		registrations: cfg.NotifyRegistrations,
		timeout:       cfg.Timeout,
		logger:        logger.Component(cfg.Logger, "admin_notifier"),
	}
}

// Register подписывает уведомитель на нужные события.
func (n *AdminNotifier) Register(bus shared.EventSubscriber) error {
	subs := map[shared.EventType]shared.EventHandler{
		shared.EventSupportMessageReceived:   n.Handle,
		shared.EventAccountDeletionRequested: n.Handle,
	}
	if n.registrations {
		subs[shared.EventProfileRegistered] = n.Handle
	}
	for t, h := range subs {
		if err := bus.Subscribe(t, h); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle реализует shared.EventHandler.
func (n *AdminNotifier) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	switch e := event.(type) {
	case shared.SupportMessageReceivedEvent:
		return n.forwardSupportMessage(ctx, e)
	case shared.AccountDeletionRequestedEvent:
		return n.broadcast(ctx, e, formatDeletion(e))
	case shared.ProfileRegisteredEvent:
		return n.broadcast(ctx, e, formatRegistration(e))
	default:
		n.logger.Debug("ignored event", slog.String("event_type", string(event.EventType())))
		return nil
	}
}

// forwardSupportMessage пересылает обращение и запоминает копию в кольце
// каждого администратора.
func (n *AdminNotifier) forwardSupportMessage(ctx context.Context, e shared.SupportMessageReceivedEvent) error {
	text := fmt.Sprintf("📩 Сообщение от пользователя %s (ID: %d):\n\n%s", displayName(e.UserName), e.TelegramID, e.Text)

	var errs []error
	for _, adminID := range n.adminIDs {
		msgID, err := n.messenger.SendText(ctx, adminID, text)
		if err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", adminID, err))
			continue
		}
		if n.rings == nil {
			continue
		}
		entry := session.RingEntry{MessageID: msgID, UserID: e.TelegramID, At: e.OccurredAt()}
		if err := n.rings.Push(ctx, adminID, entry); err != nil {
			errs = append(errs, fmt.Errorf("admin %d ring: %w", adminID, err))
		}
	}
	return n.report(e, errs)
}

func (n *AdminNotifier) broadcast(ctx context.Context, e shared.Event, text string) error {
	var errs []error
	for _, adminID := range n.adminIDs {
		if _, err := n.messenger.SendText(ctx, adminID, text); err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", adminID, err))
		}
	}
	return n.report(e, errs)
}

func (n *AdminNotifier) report(e shared.Event, errs []error) error {
	err := errors.Join(errs...)
	if err != nil {
		n.logger.Warn("admin notification incomplete",
			slog.String("event_type", string(e.EventType())),
			logger.Err(err),
		)
	}
	return err
}

// ═══════════════════════════════════════════════════════════════════════════
// ТЕКСТЫ
// ═══════════════════════════════════════════════════════════════════════════

func formatDeletion(e shared.AccountDeletionRequestedEvent) string {
	return "🚨 ЗАПРОС НА УДАЛЕНИЕ АККАУНТА\n\n" +
		"Пользователь: " + displayName(e.UserName) + "\n" +
		fmt.Sprintf("ID Telegram: %d\n", e.TelegramID) +
		"ID платформы: " + e.PlatformID + "\n" +
		"Время: " + timeutil.FormatDateTimeStr(e.OccurredAt())
}

func formatRegistration(e shared.ProfileRegisteredEvent) string {
	var b strings.Builder
	b.WriteString("🆕 Новая регистрация\n\n")
	fmt.Fprintf(&b, "Пользователь: %s\n", displayName(e.UserName))
	fmt.Fprintf(&b, "ID Telegram: %d\n", e.TelegramID)
	fmt.Fprintf(&b, "ID платформы: %s\n", e.PlatformID)
	fmt.Fprintf(&b, "Никнейм: %s\n", e.Nickname)
	fmt.Fprintf(&b, "Школа: %s (%s)\n", e.SchoolName, e.SchoolCode)
	fmt.Fprintf(&b, "Роль: %s\n", profile.RoleLabel(e.Role))
	b.WriteString("Время: " + timeutil.FormatDateTimeStr(e.OccurredAt()))
	return b.String()
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "без имени"
	}
	return name
}
