package presenter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/application/conversation"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
)

type fakeSender struct {
	next      int
	messages  []telegram.SendMessageParams
	stickers  []string
	deleted   []int
	deleteErr error
	sendErr   error
}

func (s *fakeSender) SendMessage(_ context.Context, p telegram.SendMessageParams) (*telegram.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.next++
	s.messages = append(s.messages, p)
	return &telegram.Message{MessageID: s.next}, nil
}

func (s *fakeSender) SendSticker(_ context.Context, _ int64, fileID string) (*telegram.Message, error) {
	s.next++
	s.stickers = append(s.stickers, fileID)
	return &telegram.Message{MessageID: s.next}, nil
}

func (s *fakeSender) DeleteMessages(_ context.Context, _ int64, ids []int) error {
	s.deleted = append(s.deleted, ids...)
	return s.deleteErr
}

func TestCallbackRoundTrip(t *testing.T) {
	data := EncodeCallback(7, conversation.ActionCourse, "3")
	assert.Equal(t, "7|course|3", data)

	cb, err := DecodeCallback(data)
	require.NoError(t, err)
	assert.Equal(t, Callback{Generation: 7, Action: "course", Value: "3"}, cb)

	cb, err = DecodeCallback("2|retry|")
	require.NoError(t, err)
	assert.Equal(t, "", cb.Value)
}

func TestDecodeCallback_Malformed(t *testing.T) {
	for _, data := range []string{"", "cmd:me", "x|ack|", "-1|ack|", "3||v", "3|ack"} {
		_, err := DecodeCallback(data)
		assert.ErrorIs(t, err, ErrMalformedCallback, data)
	}
}

func TestEncodeCallback_FitsLimit(t *testing.T) {
	data := EncodeCallback(12, conversation.ActionSpec, strings.Repeat("я", 40))
	assert.LessOrEqual(t, len(data), maxCallbackData)

	cb, err := DecodeCallback(data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.Repeat("я", 40), cb.Value))
}

func TestInlineKeyboard_Layout(t *testing.T) {
	kb := InlineKeyboard(1, []conversation.Option{
		{Label: "1 курс", Action: "course", Value: "1"},
		{Label: "2 курс", Action: "course", Value: "2"},
		{Label: "3 курс", Action: "course", Value: "3"},
		{Label: "Очень длинная специализация", Action: "spec", Value: "x"},
	})
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Len(t, kb.InlineKeyboard[1], 1)
	assert.Len(t, kb.InlineKeyboard[2], 1)
	assert.Equal(t, "1|course|1", kb.InlineKeyboard[0][0].CallbackData)

	assert.Nil(t, InlineKeyboard(1, nil))
}

func TestRender_Order(t *testing.T) {
	s := &fakeSender{}
	p := New(s, nil)

	out, err := p.Render(context.Background(), 42, 3, conversation.Instruction{
		StickerID:        "sticker-ok",
		Notice:           "Меню обновлено",
		Text:             "Выберите курс",
		Options:          []conversation.Option{{Label: "1 курс", Action: "course", Value: "1"}},
		Menu:             [][]string{{"Отмена"}},
		DeleteMessageIDs: []int{5, 6},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{5, 6}, s.deleted)
	assert.Equal(t, []string{"sticker-ok"}, s.stickers)
	require.Len(t, s.messages, 2)

	_, isMenu := s.messages[0].ReplyMarkup.(*telegram.ReplyKeyboardMarkup)
	assert.True(t, isMenu, "menu rides on the notice")
	_, isInline := s.messages[1].ReplyMarkup.(*telegram.InlineKeyboardMarkup)
	assert.True(t, isInline)

	assert.Equal(t, Rendered{StickerID: 1, PromptID: 3}, out)
}

func TestRender_MenuOnTextWithoutOptions(t *testing.T) {
	s := &fakeSender{}
	_, err := New(s, nil).Render(context.Background(), 42, 1, conversation.Instruction{
		Text: "Привет",
		Menu: [][]string{{"Что такое TheVuntgram?"}},
	})
	require.NoError(t, err)
	require.Len(t, s.messages, 1)
	_, isMenu := s.messages[0].ReplyMarkup.(*telegram.ReplyKeyboardMarkup)
	assert.True(t, isMenu)
}

func TestRender_CleanupFailureIsIgnored(t *testing.T) {
	s := &fakeSender{deleteErr: errors.New("message to delete not found")}
	out, err := New(s, nil).Render(context.Background(), 42, 1, conversation.Instruction{
		Text:             "Введите никнейм",
		DeleteMessageIDs: []int{9},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.PromptID)
	assert.Nil(t, s.messages[0].ReplyMarkup)
}

func TestRender_SendFailure(t *testing.T) {
	s := &fakeSender{sendErr: errors.New("Forbidden: bot was blocked by the user")}
	_, err := New(s, nil).Render(context.Background(), 42, 1, conversation.Instruction{Text: "x"})
	require.Error(t, err)
}
