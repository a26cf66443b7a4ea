package support

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	domain "github.com/thevuntgram/vuntgram-bot/internal/domain/support"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/memory"
	"github.com/thevuntgram/vuntgram-bot/pkg/keylock"
)

const adminID = 500

type sent struct {
	chatID int64
	text   string
}

type edited struct {
	chatID    int64
	messageID int
	text      string
}

type fakeMessenger struct {
	sent    []sent
	edited  []edited
	sendErr error
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string) (int, error) {
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.sent = append(m.sent, sent{chatID, text})
	return len(m.sent), nil
}

func (m *fakeMessenger) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	m.edited = append(m.edited, edited{chatID, messageID, text})
	return nil
}

type fakeLedger struct {
	answered []int64
}

func (l *fakeLedger) Create(context.Context, domain.Ticket) error { return nil }

func (l *fakeLedger) Answer(_ context.Context, telegramID, _ int64, answer string, at time.Time) (domain.Ticket, error) {
	if telegramID == 404 {
		return domain.Ticket{}, shared.NewDomainError("test", "Answer", shared.ErrNotFound, "none")
	}
	l.answered = append(l.answered, telegramID)
	return domain.Ticket{TelegramID: telegramID, Answer: answer, AnsweredAt: &at}, nil
}

func (l *fakeLedger) ListOpen(context.Context, int) ([]domain.Ticket, error) { return nil, nil }

type deskHarness struct {
	desk   *Desk
	rings  *RingBook
	msgs   *fakeMessenger
	ledger *fakeLedger
	store  *memory.SessionStore
}

func newDesk(t *testing.T) deskHarness {
	t.Helper()
	store := memory.NewSessionStore(0)
	rings := NewRingBook(store, keylock.New())
	msgs := &fakeMessenger{}
	ledger := &fakeLedger{}
	return deskHarness{
		desk:   NewDesk(DeskConfig{Messenger: msgs, Rings: rings, Ledger: ledger}),
		rings:  rings,
		msgs:   msgs,
		ledger: ledger,
		store:  store,
	}
}

func TestDesk_Reply(t *testing.T) {
	h := newDesk(t)
	ctx := context.Background()

	out, ok := h.desk.Handle(ctx, adminID, CommandReply, "42 Здравствуйте!\nВсё готово.")
	require.True(t, ok)
	assert.Equal(t, replySent, out)
	require.Len(t, h.msgs.sent, 1)
	assert.Equal(t, int64(42), h.msgs.sent[0].chatID)
	assert.Equal(t, "Ответ поддержки:\n\nЗдравствуйте!\nВсё готово.", h.msgs.sent[0].text)
	assert.Equal(t, []int64{42}, h.ledger.answered)
}

func TestDesk_ReplyUsage(t *testing.T) {
	h := newDesk(t)
	for _, args := range []string{"", "42", "abc text", "-5 text", "42   "} {
		out := h.desk.Reply(context.Background(), adminID, args)
		assert.Equal(t, "Формат: /reply <user_id> <текст ответа>", out, args)
	}
	assert.Empty(t, h.msgs.sent)
}

func TestDesk_ReplySendFailure(t *testing.T) {
	h := newDesk(t)
	h.msgs.sendErr = errors.New("Forbidden: bot was blocked by the user")

	out := h.desk.Reply(context.Background(), adminID, "42 привет")
	assert.Equal(t, "❌ Не удалось отправить сообщение: Forbidden: bot was blocked by the user", out)
	assert.Empty(t, h.ledger.answered)
}

func TestDesk_ReplyLast(t *testing.T) {
	h := newDesk(t)
	ctx := context.Background()

	out := h.desk.ReplyLast(ctx, adminID, "ответ")
	assert.Equal(t, "❌ Нет сообщения для ответа.", out)

	require.NoError(t, h.rings.Push(ctx, adminID, session.RingEntry{MessageID: 10, UserID: 42}))
	require.NoError(t, h.rings.Push(ctx, adminID, session.RingEntry{MessageID: 11, UserID: 43}))

	assert.Equal(t, "Формат: /reply_admin <текст ответа>", h.desk.ReplyLast(ctx, adminID, "  "))

	out, ok := h.desk.Handle(ctx, adminID, CommandReplyAdmin, "готово")
	require.True(t, ok)
	assert.Equal(t, "✅ Ответ отправлен на ваше сообщение.", out)

	require.Len(t, h.msgs.sent, 1)
	assert.Equal(t, int64(43), h.msgs.sent[0].chatID)
	require.Len(t, h.msgs.edited, 1)
	assert.Equal(t, edited{adminID, 11, "📩 Ответ на ваше сообщение:\n\nготово"}, h.msgs.edited[0])

	next, found, err := h.rings.Peek(ctx, adminID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, next.MessageID)
}

func TestDesk_ReplyLastKeepsEntryOnFailure(t *testing.T) {
	h := newDesk(t)
	ctx := context.Background()
	require.NoError(t, h.rings.Push(ctx, adminID, session.RingEntry{MessageID: 10, UserID: 404}))

	h.msgs.sendErr = errors.New("timeout")
	assert.Equal(t, "❌ Не удалось отправить ответ: timeout", h.desk.ReplyLast(ctx, adminID, "ответ"))

	_, found, err := h.rings.Peek(ctx, adminID)
	require.NoError(t, err)
	assert.True(t, found)

	h.msgs.sendErr = nil
	assert.Equal(t, replyAdminSent, h.desk.ReplyLast(ctx, adminID, "ответ"))
	assert.Empty(t, h.ledger.answered)
}

func TestDesk_UnknownCommand(t *testing.T) {
	h := newDesk(t)
	_, ok := h.desk.Handle(context.Background(), adminID, "start", "")
	assert.False(t, ok)
}

func TestRingBook_KeepsAdminDialogue(t *testing.T) {
	h := newDesk(t)
	ctx := context.Background()

	st := session.New(adminID)
	st.Stage = session.StageComplete
	require.NoError(t, h.store.Save(ctx, &st))

	require.NoError(t, h.rings.Push(ctx, adminID, session.RingEntry{MessageID: 1, UserID: 2}))

	got, err := h.store.Get(ctx, adminID)
	require.NoError(t, err)
	assert.Equal(t, session.StageComplete, got.Stage)
	assert.Equal(t, 1, got.AdminRing.Len())
	assert.Equal(t, int64(2), got.Version)
}
