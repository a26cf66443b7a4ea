package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thevuntgram/vuntgram-bot/internal/application/conversation"
	"github.com/thevuntgram/vuntgram-bot/internal/application/support"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
	"github.com/thevuntgram/vuntgram-bot/internal/interface/telegram/middleware"
	"github.com/thevuntgram/vuntgram-bot/internal/interface/telegram/presenter"
	"github.com/thevuntgram/vuntgram-bot/pkg/keylock"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
	"github.com/thevuntgram/vuntgram-bot/pkg/retry"
	"github.com/thevuntgram/vuntgram-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Engine is the conversation engine as seen by the router.
type Engine interface {
	Handle(ctx context.Context, st session.State, ev conversation.Event) conversation.Result
}

// AdminDesk runs admin commands.
type AdminDesk interface {
	Handle(ctx context.Context, adminID int64, command, args string) (reply string, ok bool)
}

// RouterConfig contains the router dependencies.
type RouterConfig struct {
	Engine    Engine
	Sessions  session.Repository
	Locks     *keylock.Locker
	Presenter *presenter.Presenter
	Desk      AdminDesk
	Admins    *middleware.AdminAuth
	Logger    *slog.Logger
	Now       func() time.Time
}

// adminHint answers admins who type free text outside a dialogue.
const adminHint = "Администраторам: ответить на последнее обращение - /reply_admin <текст>, " +
	"ответить пользователю - /reply <user_id> <текст>."

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Turns updates into engine events and runs each one under the user's lock:
// load state, handle, render, remember sent ids, checkpoint.
// ══════════════════════════════════════════════════════════════════════════════

// Router routes Telegram updates.
type Router struct {
	engine    Engine
	sessions  session.Repository
	locks     *keylock.Locker
	presenter *presenter.Presenter
	desk      AdminDesk
	admins    *middleware.AdminAuth
	retrier   *retry.Retrier
	logger    *slog.Logger
	now       func() time.Time
}

// NewRouter creates a new router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Locks == nil {
		cfg.Locks = keylock.New()
	}
	if cfg.Admins == nil {
		cfg.Admins = middleware.NewAdminAuth(nil)
	}
	return &Router{
		engine:    cfg.Engine,
		sessions:  cfg.Sessions,
		locks:     cfg.Locks,
		presenter: cfg.Presenter,
		desk:      cfg.Desk,
		admins:    cfg.Admins,
		retrier:   retry.ConflictRetrier(shared.IsVersionConflict),
		logger:    logger.Component(cfg.Logger, "router"),
		now:       cfg.Now,
	}
}

// Route handles one update. The returned error is either a transport or
// storage failure, or the engine's taxonomy error for a rejected transition.
func (r *Router) Route(ctx context.Context, update *telegram.Update) error {
	switch {
	case update.Message != nil:
		return r.HandleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		return r.HandleCallback(ctx, update.CallbackQuery)
	}
	return nil
}

// HandleMessage routes a message from a private chat.
func (r *Router) HandleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg == nil || msg.From == nil || msg.From.IsBot || !telegram.IsPrivateChat(msg) {
		return nil
	}
	userID := msg.From.ID

	command := telegram.ExtractCommand(msg)
	if command == support.CommandReply || command == support.CommandReplyAdmin {
		return r.handleAdminCommand(ctx, msg, command)
	}

	ev := conversation.Event{
		Kind:      conversation.KindText,
		Text:      msg.Text,
		MessageID: msg.MessageID,
		UserName:  msg.From.FullName(),
		At:        messageTime(msg, r.now),
	}
	switch command {
	case conversation.CommandStart, conversation.CommandCancel:
		ev.Kind = conversation.KindCommand
		ev.Command = command
	case "":
		if msg.Text == "" {
			r.logger.Debug("ignored non-text message", logger.TelegramID(userID))
			return nil
		}
	}

	return r.dispatch(ctx, userID, msg.Chat.ID, ev)
}

// HandleCallback routes an inline button press. Data we cannot decode is
// passed on as a stale choice so the user gets the restart hint.
func (r *Router) HandleCallback(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq == nil || cq.From == nil {
		return nil
	}
	chatID := cq.From.ID
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
	}

	ev := conversation.Event{
		Kind:     conversation.KindChoice,
		UserName: cq.From.FullName(),
		At:       r.now(),
	}
	cb, err := presenter.DecodeCallback(cq.Data)
	if err != nil {
		r.logger.Debug("undecodable callback", logger.TelegramID(cq.From.ID), slog.String("data", cq.Data))
		ev.Generation = -1
	} else {
		ev.Generation = cb.Generation
		ev.Action = cb.Action
		ev.Value = cb.Value
	}

	return r.dispatch(ctx, cq.From.ID, chatID, ev)
}

// handleAdminCommand runs /reply and /reply_admin outside the user lock; the
// ring book takes the admin's lock itself.
func (r *Router) handleAdminCommand(ctx context.Context, msg *telegram.Message, command string) error {
	adminID := msg.From.ID
	if !r.admins.IsAdmin(adminID) || r.desk == nil {
		r.logger.Debug("admin command from non-admin ignored", logger.TelegramID(adminID), slog.String("command", command))
		return nil
	}

	reply, ok := r.desk.Handle(ctx, adminID, command, telegram.ExtractCommandArgs(msg))
	if !ok {
		return nil
	}
	if err := r.presenter.Text(ctx, msg.Chat.ID, reply); err != nil {
		return fmt.Errorf("answer admin: %w", err)
	}
	return nil
}

// dispatch runs one event for one user.
func (r *Router) dispatch(ctx context.Context, userID, chatID int64, ev conversation.Event) error {
	unlock := r.locks.Lock(userID)
	defer unlock()

	st, err := r.load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if r.admins.IsAdmin(userID) && ev.Kind == conversation.KindText && st.Stage.IsIdle() && !conversation.IsMenuLabel(ev.Text) {
		return r.presenter.Text(ctx, chatID, adminHint)
	}

	res := r.engine.Handle(ctx, st, ev)
	next := res.State

	rendered, renderErr := r.presenter.Render(ctx, chatID, next.Generation, res.Instruction)
	if res.Instruction.Track {
		next.Housekeeping = session.Housekeeping{
			LastPromptID:  rendered.PromptID,
			LastStickerID: rendered.StickerID,
		}
	}

	if err := r.checkpoint(ctx, &next); err != nil {
		return fmt.Errorf("checkpoint session: %w", err)
	}
	if renderErr != nil {
		return fmt.Errorf("render: %w", renderErr)
	}

	r.logger.Debug("update handled",
		logger.TelegramID(userID),
		logger.Stage(string(next.Stage)),
		slog.String("outcome", shared.Kind(res.Err)),
	)
	return res.Err
}

func (r *Router) load(ctx context.Context, userID int64) (session.State, error) {
	st, err := r.sessions.Get(ctx, userID)
	if shared.IsNotFound(err) {
		return session.New(userID), nil
	}
	return st, err
}

// checkpoint saves next. A version conflict can only come from an admin ring
// write of another instance; the fresh ring is merged in and the save retried.
func (r *Router) checkpoint(ctx context.Context, next *session.State) error {
	return r.retrier.Do(ctx, func(ctx context.Context) error {
		err := r.sessions.Save(ctx, next)
		if !shared.IsVersionConflict(err) {
			return err
		}
		current, loadErr := r.load(ctx, next.TelegramID)
		if loadErr != nil {
			return errors.Join(err, loadErr)
		}
		next.Version = current.Version
		next.AdminRing = current.AdminRing
		return err
	})
}

func messageTime(msg *telegram.Message, now func() time.Time) time.Time {
	if msg.Date > 0 {
		return timeutil.FromUnix(msg.Date)
	}
	return now()
}
