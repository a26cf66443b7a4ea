package support

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/support"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN DESK
// ══════════════════════════════════════════════════════════════════════════════

// Messenger is the part of the chat transport the desk needs.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
}

// Admin command names, without the slash.
const (
	CommandReply      = "reply"
	CommandReplyAdmin = "reply_admin"
)

// Texts sent back to the admin.
const (
	usageReply      = "Формат: /reply <user_id> <текст ответа>"
	usageReplyAdmin = "Формат: /reply_admin <текст ответа>"
	replySent       = "✅ Ответ отправлен пользователю"
	replyAdminSent  = "✅ Ответ отправлен на ваше сообщение."
	noRingEntry     = "❌ Нет сообщения для ответа."
	replyFailed     = "❌ Не удалось отправить сообщение: "
	replyAdminFail  = "❌ Не удалось отправить ответ: "

	answerPrefix    = "Ответ поддержки:\n\n"
	forwardAnswered = "📩 Ответ на ваше сообщение:\n\n"
)

// DeskConfig contains the desk dependencies.
type DeskConfig struct {
	Messenger Messenger
	Rings     *RingBook

	// Ledger is optional; answers are recorded when set.
	Ledger support.Repository

	Logger *slog.Logger
	Now    func() time.Time
}

// Desk handles the admin commands.
type Desk struct {
	messenger Messenger
	rings     *RingBook
	ledger    support.Repository
	logger    *slog.Logger
	now       func() time.Time
}

// NewDesk creates a Desk.
func NewDesk(cfg DeskConfig) *Desk {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Desk{
		messenger: cfg.Messenger,
		rings:     cfg.Rings,
		ledger:    cfg.Ledger,
		logger:    logger.Component(cfg.Logger, "desk"),
		now:       cfg.Now,
	}
}

// Handle runs one admin command and returns the text to show the admin.
// ok is false for commands the desk does not own.
func (d *Desk) Handle(ctx context.Context, adminID int64, command, args string) (reply string, ok bool) {
	switch command {
	case CommandReply:
		return d.Reply(ctx, adminID, args), true
	case CommandReplyAdmin:
		return d.ReplyLast(ctx, adminID, args), true
	}
	return "", false
}

// Reply answers a user by id: "/reply <user_id> <text>".
func (d *Desk) Reply(ctx context.Context, adminID int64, args string) string {
	userID, text, ok := parseReply(args)
	if !ok {
		return usageReply
	}

	if _, err := d.messenger.SendText(ctx, userID, answerPrefix+text); err != nil {
		d.logger.Warn("reply failed", logger.TelegramID(userID), logger.Err(err))
		return replyFailed + err.Error()
	}

	d.recordAnswer(ctx, userID, adminID, text)
	return replySent
}

// ReplyLast answers the newest message forwarded to this admin.
func (d *Desk) ReplyLast(ctx context.Context, adminID int64, text string) string {
	text = strings.TrimSpace(text)

	entry, found, err := d.rings.Peek(ctx, adminID)
	if err != nil {
		d.logger.Error("load reply ring", logger.TelegramID(adminID), logger.Err(err))
		return replyAdminFail + err.Error()
	}
	if !found {
		return noRingEntry
	}
	if text == "" {
		return usageReplyAdmin
	}

	if _, err := d.messenger.SendText(ctx, entry.UserID, answerPrefix+text); err != nil {
		d.logger.Warn("reply to forwarded message failed", logger.TelegramID(entry.UserID), logger.Err(err))
		return replyAdminFail + err.Error()
	}

	if err := d.messenger.EditText(ctx, adminID, entry.MessageID, forwardAnswered+text); err != nil {
		d.logger.Warn("mark forwarded message answered", slog.Int("message_id", entry.MessageID), logger.Err(err))
	}
	if err := d.rings.Remove(ctx, adminID, entry.MessageID); err != nil {
		d.logger.Error("drop answered ring entry", logger.TelegramID(adminID), logger.Err(err))
	}

	d.recordAnswer(ctx, entry.UserID, adminID, text)
	return replyAdminSent
}

func (d *Desk) recordAnswer(ctx context.Context, userID, adminID int64, text string) {
	if d.ledger == nil {
		return
	}
	_, err := d.ledger.Answer(ctx, userID, adminID, text, d.now())
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		d.logger.Warn("record answer in ledger", logger.TelegramID(userID), logger.Err(err))
	}
}

// parseReply splits "<user_id> <text>". The text may span several lines.
func parseReply(args string) (int64, string, bool) {
	args = strings.TrimSpace(args)
	i := strings.IndexFunc(args, unicode.IsSpace)
	if i < 0 {
		return 0, "", false
	}
	userID, err := strconv.ParseInt(args[:i], 10, 64)
	text := strings.TrimSpace(args[i:])
	if err != nil || userID <= 0 || text == "" {
		return 0, "", false
	}
	return userID, text, true
}
