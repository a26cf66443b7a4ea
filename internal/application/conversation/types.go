package conversation

import (
	"time"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// INPUT
// ══════════════════════════════════════════════════════════════════════════════

// EventKind tells what the transport delivered.
type EventKind int

const (
	// KindText is a plain message, including reply-keyboard button presses.
	KindText EventKind = iota
	// KindChoice is an inline button press.
	KindChoice
	// KindCommand is a slash command.
	KindCommand
)

// Commands the engine understands.
const (
	CommandStart  = "start"
	CommandCancel = "cancel"
)

// Event is one input for one user.
type Event struct {
	Kind EventKind

	// KindText
	Text string

	// KindChoice
	Action     string
	Value      string
	Generation int64

	// KindCommand, without the slash
	Command string

	// MessageID is the user's own message, when there is one.
	MessageID int
	UserName  string
	At        time.Time
}

// Choice actions carried in inline buttons.
const (
	ActionAck     = "ack"
	ActionRole    = "role"
	ActionSpec    = "spec"
	ActionCourse  = "course"
	ActionNoEmail = "noemail"
	ActionRetry   = "retry"
	ActionEdit    = "edit"
	ActionBack    = "back"
	ActionCancel  = "cancel"
)

// Reply-keyboard labels. They arrive as KindText.
const (
	LabelAbout     = "Что такое TheVuntgram?"
	LabelDouble    = "Двойной аккаунт"
	LabelDelete    = "Удалить аккаунт"
	LabelCancel    = "Отмена"
	LabelProfile   = "Мой профиль"
	LabelEdit      = "Изменить профиль"
	LabelAddSchool = "Добавить школу"
)

// IsMenuLabel reports whether text is one of the reply keyboard buttons.
// Such text is never taken as a field value.
func IsMenuLabel(text string) bool {
	switch text {
	case LabelAbout, LabelDouble, LabelDelete, LabelCancel, LabelProfile, LabelEdit, LabelAddSchool:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

// Option is one inline button.
type Option struct {
	Label  string
	Action string
	Value  string
}

// Instruction tells the transport what to render: the sticker, then Notice
// (carrying Menu when set), then Text with its Options.
type Instruction struct {
	Text      string
	StickerID string

	// Notice is sent before Text. It lets one instruction switch the reply
	// keyboard and show inline options at the same time.
	Notice string

	// Options are rendered as inline buttons under Text.
	Options []Option

	// Menu is a reply keyboard, row by row. Nil leaves the current one.
	// It is attached to Notice if present, otherwise to Text when Options is empty.
	Menu [][]string

	// DeleteMessageIDs are removed best-effort before rendering.
	DeleteMessageIDs []int

	// Track asks the transport to record the sent ids for later cleanup.
	Track bool
}

// IsEmpty reports whether there is nothing to send.
func (i Instruction) IsEmpty() bool {
	return i.Text == "" && i.StickerID == "" && i.Notice == ""
}

// Result is the outcome of one event.
type Result struct {
	State       session.State
	Instruction Instruction

	// Err carries the error kind of a rejected or failed transition, for logs
	// and metrics. The state is valid either way.
	Err error
}

// Menus.
var (
	idleMenu = [][]string{
		{LabelAbout},
		{LabelDouble, LabelDelete},
	}
	completeMenu = [][]string{
		{LabelProfile, LabelEdit},
		{LabelAddSchool},
		{LabelAbout},
		{LabelDouble, LabelDelete},
	}
	cancelMenu = [][]string{
		{LabelCancel},
	}
)

// menuFor returns the reply keyboard of an idle stage.
func menuFor(stage session.Stage) [][]string {
	if stage == session.StageComplete || stage == session.StageEditMenu {
		return completeMenu
	}
	return idleMenu
}
