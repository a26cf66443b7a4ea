package presenter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thevuntgram/vuntgram-bot/internal/application/conversation"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// Sender is the part of the Bot API client the presenter uses.
type Sender interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	SendSticker(ctx context.Context, chatID int64, fileID string) (*telegram.Message, error)
	DeleteMessages(ctx context.Context, chatID int64, messageIDs []int) error
}

// Rendered holds the ids of the messages an instruction produced.
type Rendered struct {
	PromptID  int
	StickerID int
}

// Presenter renders conversation instructions into one chat.
type Presenter struct {
	sender Sender
	logger *slog.Logger
}

// New creates a Presenter.
func New(sender Sender, log *slog.Logger) *Presenter {
	if log == nil {
		log = slog.Default()
	}
	return &Presenter{sender: sender, logger: logger.Component(log, "presenter")}
}

// Render deletes the requested old messages, then sends the sticker, the
// notice and the prompt. Deletion and sticker failures are logged and
// skipped; a failed notice or prompt is returned.
func (p *Presenter) Render(ctx context.Context, chatID, generation int64, in conversation.Instruction) (Rendered, error) {
	var out Rendered

	if len(in.DeleteMessageIDs) > 0 {
		if err := p.sender.DeleteMessages(ctx, chatID, in.DeleteMessageIDs); err != nil {
			p.logger.Debug("cleanup failed", logger.TelegramID(chatID), logger.Err(err))
		}
	}

	if in.StickerID != "" {
		msg, err := p.sender.SendSticker(ctx, chatID, in.StickerID)
		if err != nil {
			p.logger.Warn("send sticker", logger.TelegramID(chatID), logger.Err(err))
		} else {
			out.StickerID = msg.MessageID
		}
	}

	menu := ReplyMenu(in.Menu)

	if in.Notice != "" {
		params := telegram.SendMessageParams{ChatID: chatID, Text: in.Notice, DisableWebPreview: true}
		if menu != nil {
			params.ReplyMarkup = menu
			menu = nil
		}
		if _, err := p.sender.SendMessage(ctx, params); err != nil {
			return out, fmt.Errorf("send notice: %w", err)
		}
	}

	if in.Text == "" {
		return out, nil
	}

	params := telegram.SendMessageParams{ChatID: chatID, Text: in.Text, DisableWebPreview: true}
	if kb := InlineKeyboard(generation, in.Options); kb != nil {
		params.ReplyMarkup = kb
	} else if menu != nil {
		params.ReplyMarkup = menu
	}

	msg, err := p.sender.SendMessage(ctx, params)
	if err != nil {
		return out, fmt.Errorf("send prompt: %w", err)
	}
	out.PromptID = msg.MessageID
	return out, nil
}

// Text sends a plain message without keyboards.
func (p *Presenter) Text(ctx context.Context, chatID int64, text string) error {
	_, err := p.sender.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: text, DisableWebPreview: true})
	return err
}
