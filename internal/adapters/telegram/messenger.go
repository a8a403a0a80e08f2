package telegram

import (
	"context"
	"log/slog"

	"github.com/alekspetrov/ideabot/internal/logging"
)

// reply sends text, split into chunks when it exceeds Telegram's limit.
// Delivery failures are logged, not returned: the update has already been
// handled and there is nobody else to tell.
func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	_, _ = h.replyWithKeyboard(ctx, chatID, text, nil)
}

// replyWithKeyboard attaches keyboard to the last chunk and returns that
// message.
func (h *Handler) replyWithKeyboard(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) (*Message, error) {
	chunks := chunkContent(text, maxMessageLen)

	var last *Message
	for i, chunk := range chunks {
		var markup *InlineKeyboardMarkup
		if i == len(chunks)-1 {
			markup = kb
		}
		msg, err := h.bot.SendMessage(ctx, chatID, chunk, markup)
		if err != nil {
			logging.WithContext(ctx).Warn("Failed to send message",
				slog.Int64("chat_id", chatID), slog.Any("error", err))
			return nil, err
		}
		last = msg
	}
	return last, nil
}

// replace edits messageID in place, sending a new message when the edit is
// refused (too old, deleted, or no message to edit).
func (h *Handler) replace(ctx context.Context, chatID, messageID int64, text string, kb *InlineKeyboardMarkup) {
	if messageID != 0 && len(text) <= maxMessageLen {
		err := h.bot.EditMessage(ctx, chatID, messageID, text, kb)
		if err == nil {
			return
		}
		logging.WithContext(ctx).Debug("Edit failed, sending new message",
			slog.Int64("message_id", messageID), slog.Any("error", err))
	}
	_, _ = h.replyWithKeyboard(ctx, chatID, text, kb)
}

func (h *Handler) deleteMessage(ctx context.Context, chatID, messageID int64) {
	if messageID == 0 {
		return
	}
	if err := h.bot.DeleteMessage(ctx, chatID, messageID); err != nil {
		logging.WithContext(ctx).Debug("Failed to delete message",
			slog.Int64("message_id", messageID), slog.Any("error", err))
	}
}
