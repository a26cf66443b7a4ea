// Package presenter turns engine instructions into Telegram messages:
// inline keyboards with generation-stamped callback data, the reply menu,
// stickers and best-effort clean-up of earlier prompts.
package presenter

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/thevuntgram/vuntgram-bot/internal/application/conversation"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALLBACK DATA
// Format: <generation>|<action>|<value>
// ══════════════════════════════════════════════════════════════════════════════

const (
	callbackSep = "|"

	// maxCallbackData is the Bot API limit for callback_data, in bytes.
	maxCallbackData = 64
)

// ErrMalformedCallback is returned for callback data we did not produce.
var ErrMalformedCallback = errors.New("malformed callback data")

// Callback is decoded callback data.
type Callback struct {
	Generation int64
	Action     string
	Value      string
}

// EncodeCallback builds callback data. Values that would exceed the Bot API
// limit are cut at a rune boundary.
func EncodeCallback(generation int64, action, value string) string {
	head := strconv.FormatInt(generation, 10) + callbackSep + action + callbackSep
	room := maxCallbackData - len(head)
	if room < 0 {
		room = 0
	}
	for len(value) > room {
		_, size := utf8.DecodeLastRuneInString(value)
		value = value[:len(value)-size]
	}
	return head + value
}

// DecodeCallback parses callback data built by EncodeCallback.
func DecodeCallback(data string) (Callback, error) {
	parts := strings.SplitN(data, callbackSep, 3)
	if len(parts) != 3 || parts[1] == "" {
		return Callback{}, ErrMalformedCallback
	}
	gen, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || gen < 0 {
		return Callback{}, ErrMalformedCallback
	}
	return Callback{Generation: gen, Action: parts[1], Value: parts[2]}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARDS
// ══════════════════════════════════════════════════════════════════════════════

// shortLabel is the longest label that still shares a row with a neighbour.
const shortLabel = 14

// InlineKeyboard lays out options: short labels two per row, long ones alone.
func InlineKeyboard(generation int64, options []conversation.Option) *telegram.InlineKeyboardMarkup {
	if len(options) == 0 {
		return nil
	}

	kb := telegram.NewKeyboard()
	var pending []telegram.InlineKeyboardButton
	flush := func() {
		if len(pending) > 0 {
			kb.Row(pending...)
			pending = nil
		}
	}

	for _, o := range options {
		btn := telegram.Button(o.Label, EncodeCallback(generation, o.Action, o.Value))
		if utf8.RuneCountInString(o.Label) > shortLabel {
			flush()
			kb.Row(btn)
			continue
		}
		pending = append(pending, btn)
		if len(pending) == 2 {
			flush()
		}
	}
	flush()

	return kb.Build()
}

// ReplyMenu converts menu rows into a persistent reply keyboard.
func ReplyMenu(rows [][]string) *telegram.ReplyKeyboardMarkup {
	if rows == nil {
		return nil
	}
	return telegram.ReplyKeyboard(rows)
}
