package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/support"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// LEDGER WRITER
// Записывает обращения и запросы на удаление в журнал поддержки.
// ═══════════════════════════════════════════════════════════════════════════

// LedgerWriter пишет тикеты в support.Repository.
type LedgerWriter struct {
	repo    support.Repository
	timeout time.Duration
	newID   func() string
	logger  *slog.Logger
}

// NewLedgerWriter создаёт LedgerWriter.
func NewLedgerWriter(repo support.Repository, log *slog.Logger) *LedgerWriter {
	if log == nil {
		log = slog.Default()
	}
	return &LedgerWriter{
		repo:    repo,
		timeout: 10 * time.Second,
		newID:   uuid.NewString,
		logger:  logger.Component(log, "ledger_writer"),
	}
}

// Register подписывает LedgerWriter на события поддержки.
func (w *LedgerWriter) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{shared.EventSupportMessageReceived, shared.EventAccountDeletionRequested} {
		if err := bus.Subscribe(t, w.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle реализует shared.EventHandler.
func (w *LedgerWriter) Handle(event shared.Event) error {
	t, ok := ticketFrom(event)
	if !ok {
		return nil
	}
	t.ID = w.newID()

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.repo.Create(ctx, t); err != nil {
		w.logger.Warn("ledger write failed", logger.TelegramID(t.TelegramID), logger.Err(err))
		return err
	}
	return nil
}

func ticketFrom(event shared.Event) (support.Ticket, bool) {
	switch e := event.(type) {
	case shared.SupportMessageReceivedEvent:
		return support.Ticket{
			Kind:       support.KindMessage,
			TelegramID: e.TelegramID,
			UserName:   e.UserName,
			Text:       e.Text,
			CreatedAt:  e.OccurredAt(),
		}, true
	case shared.AccountDeletionRequestedEvent:
		return support.Ticket{
			Kind:       support.KindDeletion,
			TelegramID: e.TelegramID,
			UserName:   e.UserName,
			PlatformID: e.PlatformID,
			CreatedAt:  e.OccurredAt(),
		}, true
	}
	return support.Ticket{}, false
}
