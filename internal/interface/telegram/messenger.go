package telegram

import (
	"context"

	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
)

// Messenger adapts the Bot API client to the support desk and the admin
// notifier: plain text out, message ids back.
type Messenger struct {
	client *telegram.Client
}

// NewMessenger creates a Messenger.
func NewMessenger(client *telegram.Client) *Messenger {
	return &Messenger{client: client}
}

// SendText sends text and returns the new message id.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	msg, err := m.client.SendText(ctx, chatID, text)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditText replaces the text of an earlier message.
func (m *Messenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := m.client.EditMessageText(ctx, chatID, messageID, text, nil)
	return err
}
