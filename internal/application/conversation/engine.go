// Package conversation is the Conversation State Engine: an explicit
// stage + transition table over session.State. Handle is a pure function of
// (state, event) apart from the calls it makes through the Syncer and the
// event publisher; the caller serializes events per user and checkpoints the
// returned state.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/school"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/validation"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Syncer is the Profile Sync Adapter as seen by the engine.
type Syncer interface {
	Register(ctx context.Context, p profile.Profile) (profile.Profile, error)
	Update(ctx context.Context, p profile.Profile) (profile.Profile, error)
	Fetch(ctx context.Context, telegramID int64) (profile.Profile, bool, error)
}

// FeatureGate answers per-user feature flag checks.
type FeatureGate interface {
	Enabled(feature string, telegramID int64) bool
}

// Feature names, shared with config.FeatureFlags.
const (
	FeatureSupportRelay     = "support.relay"
	FeatureSupportDeletion  = "support.deletion"
	FeatureAdditionalSchool = "onboarding.additional_school"
	FeatureMessageCleanup   = "onboarding.message_cleanup"
)

type allFeatures struct{}

func (allFeatures) Enabled(string, int64) bool { return true }

// Stickers shown alongside some prompts. Empty ids are skipped.
type Stickers struct {
	Welcome string
	Sent    string
	Error   string
	Success string
}

// Config contains the engine dependencies.
type Config struct {
	Directory school.Lookup
	Screen    *validation.Screen
	Sync      Syncer
	Publisher shared.EventPublisher
	Features  FeatureGate
	Stickers  Stickers

	// EmailRelayDomain backs the "Без почты" choice: tg<id>@<domain>.
	EmailRelayDomain string

	Logger *slog.Logger
	Now    func() time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// stageHandler is one row of the transition table.
type stageHandler struct {
	prompt func(e *Engine, t *turn)
	text   func(e *Engine, t *turn, text string)
	choice func(e *Engine, t *turn, action, value string) bool
}

// Engine drives the dialogue.
type Engine struct {
	dir       school.Lookup
	screen    *validation.Screen
	sync      Syncer
	publisher shared.EventPublisher
	features  FeatureGate
	stickers  Stickers
	relay     string
	logger    *slog.Logger
	now       func() time.Time

	table map[session.Stage]stageHandler
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Publisher == nil {
		cfg.Publisher = shared.NopPublisher{}
	}
	if cfg.Features == nil {
		cfg.Features = allFeatures{}
	}
	if cfg.Screen == nil {
		cfg.Screen = validation.NewScreen()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.EmailRelayDomain == "" {
		cfg.EmailRelayDomain = "relay.thevuntgram.local"
	}

	e := &Engine{
		dir:       cfg.Directory,
		screen:    cfg.Screen,
		sync:      cfg.Sync,
		publisher: cfg.Publisher,
		features:  cfg.Features,
		stickers:  cfg.Stickers,
		relay:     cfg.EmailRelayDomain,
		logger:    logger.Component(cfg.Logger, "conversation"),
		now:       cfg.Now,
	}
	e.table = transitionTable()
	return e
}

// turn is the working set of one Handle call.
type turn struct {
	ctx context.Context
	st  session.State
	ev  Event
	out Instruction
	err error

	// keepPrompt leaves the previous prompt on screen (FAQ answers and the like).
	keepPrompt bool
}

func (t *turn) say(text string) {
	if t.out.Text == "" {
		t.out.Text = text
		return
	}
	t.out.Text += "\n\n" + text
}

func (t *turn) option(label, action, value string) {
	t.out.Options = append(t.out.Options, Option{Label: label, Action: action, Value: value})
}

// Handle applies ev to st and returns the next state and the instruction to render.
func (e *Engine) Handle(ctx context.Context, st session.State, ev Event) Result {
	t := &turn{ctx: ctx, st: st.Clone(), ev: ev}
	if t.st.Stage == "" {
		t.st.Stage = session.StageNone
	}
	if t.ev.At.IsZero() {
		t.ev.At = e.now()
	}
	previous := t.st.Housekeeping

	e.dispatch(t)

	if !t.keepPrompt && !t.out.IsEmpty() {
		if ids := previous.IDs(); len(ids) > 0 && e.features.Enabled(FeatureMessageCleanup, t.st.TelegramID) {
			t.out.DeleteMessageIDs = append(ids, t.out.DeleteMessageIDs...)
			t.st.Housekeeping = session.Housekeeping{}
		}
		t.out.Track = !t.st.Stage.IsIdle()
	}
	t.st.UpdatedAt = e.now()

	e.logger.Debug("event handled",
		logger.TelegramID(t.st.TelegramID),
		slog.String("from", string(st.Stage)),
		logger.Stage(string(t.st.Stage)),
		slog.String("outcome", shared.Kind(t.err)),
	)

	return Result{State: t.st, Instruction: t.out, Err: t.err}
}

func (e *Engine) dispatch(t *turn) {
	switch t.ev.Kind {
	case KindCommand:
		switch t.ev.Command {
		case CommandStart:
			e.restart(t)
		case CommandCancel:
			e.cancel(t)
		}

	case KindChoice:
		if t.ev.Generation != t.st.Generation {
			e.mismatch(t, "stale generation")
			return
		}
		switch {
		case t.ev.Action == ActionCancel:
			e.cancel(t)
		case t.ev.Action == ActionRetry && t.st.AwaitingRetry:
			e.submit(t)
		default:
			h, ok := e.table[t.st.Stage]
			if !ok || h.choice == nil || !h.choice(e, t, t.ev.Action, t.ev.Value) {
				e.mismatch(t, "choice not valid for stage")
			}
		}

	case KindText:
		e.text(t)
	}
}

// text routes global labels first, then the stage's own text handler.
func (e *Engine) text(t *turn) {
	text := t.ev.Text
	stage := t.st.Stage

	switch {
	case text == LabelCancel:
		e.cancel(t)
		return
	case text == LabelAbout || text == LabelDouble:
		e.faq(t, text)
		return
	case text == LabelDelete && (stage.IsIdle() || stage == session.StageEditMenu):
		e.beginDeletion(t)
		return
	}

	if stage.IsIdle() {
		switch text {
		case LabelProfile:
			e.showProfile(t)
			return
		case LabelEdit:
			e.openEditMenu(t)
			return
		case LabelAddSchool:
			e.beginAdditional(t)
			return
		}
	}

	if !stage.IsIdle() && IsMenuLabel(text) {
		e.reprompt(t, shared.ErrInputRejected, msgFinishStep)
		return
	}

	h, ok := e.table[stage]
	if !ok || h.text == nil {
		e.reprompt(t, shared.ErrInputRejected, msgUseButtons)
		return
	}
	h.text(e, t, text)
}

// prompt renders the current stage.
func (e *Engine) prompt(t *turn) {
	if h, ok := e.table[t.st.Stage]; ok && h.prompt != nil {
		h.prompt(e, t)
	}
	if t.st.AwaitingRetry {
		t.option("🔄 Повторить", ActionRetry, "")
	}
	if t.st.Flow == session.FlowEdit || t.st.Flow == session.FlowAdditional {
		t.option(LabelCancel, ActionCancel, "")
	}
}

// reprompt rejects the input, keeps the stage and repeats its prompt.
func (e *Engine) reprompt(t *turn, kind error, message string) {
	if t.err == nil {
		t.err = kind
	}
	if e.stickers.Error != "" && t.out.StickerID == "" {
		t.out.StickerID = e.stickers.Error
	}
	t.say(message)
	e.prompt(t)
}

// rejectWith maps a validation error onto a re-prompt.
func (e *Engine) rejectWith(t *turn, err error) {
	var rej *validation.Rejection
	if errors.As(err, &rej) {
		e.reprompt(t, err, rej.Reason.Message())
		return
	}
	e.reprompt(t, err, msgTryAgain)
}

func (e *Engine) mismatch(t *turn, why string) {
	t.err = shared.NewDomainError("conversation", "Choice", shared.ErrProtocolMismatch, why)
	t.keepPrompt = true
	t.say(msgStaleButton)
}

// next moves to the next pending stage or submits the flow.
func (e *Engine) next(t *turn) {
	t.st.AwaitingRetry = false
	if _, ok := t.st.Advance(); ok {
		e.prompt(t)
		return
	}
	e.submit(t)
}

func (e *Engine) publish(ev shared.Event) {
	if err := e.publisher.Publish(ev); err != nil {
		e.logger.Warn("failed to publish event",
			slog.String("event", string(ev.EventType())),
			logger.Err(err),
		)
	}
}

func (e *Engine) lookup(code string) (school.Record, bool) {
	if e.dir == nil {
		return school.Record{}, false
	}
	return e.dir.Lookup(code)
}
