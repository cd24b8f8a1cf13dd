package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const cbDayPrefix = "day:"

// dayKeyboard moves the day view one day back or forward.
func dayKeyboard(day time.Time) tgbotapi.InlineKeyboardMarkup {
	prev := day.AddDate(0, 0, -1).Format(time.DateOnly)
	next := day.AddDate(0, 0, 1).Format(time.DateOnly)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnPrevDay, cbDayPrefix+prev),
			tgbotapi.NewInlineKeyboardButtonData(btnNextDay, cbDayPrefix+next),
		),
	)
}

func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// always answer callback to remove 'loading...'
	defer func() { _, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, "")) }()

	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	switch {
	case strings.HasPrefix(cq.Data, cbDayPrefix):
		day, err := time.ParseInLocation(time.DateOnly, strings.TrimPrefix(cq.Data, cbDayPrefix), h.Store.Location())
		if err != nil {
			return
		}
		h.editDay(ctx, chatID, cq.Message.MessageID, day)
	}
}

func (h *Handler) editDay(ctx context.Context, chatID int64, msgID int, day time.Time) {
	d, err := h.Store.Day(ctx, day)
	if err != nil {
		log.Printf("day view: %v", err)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, FormatDay(d))
	kb := dayKeyboard(day)
	edit.ReplyMarkup = &kb
	if _, err := h.Bot.Request(edit); err != nil {
		log.Printf("edit %d/%d: %v", chatID, msgID, err)
	}
}
