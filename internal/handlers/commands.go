package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Glassolution/berry/internal/models"
)

func (h *Handler) HandleCommand(ctx context.Context, chatID int64, cmd, args string) {
	switch cmd {
	case "start":
		h.HandleStart(ctx, chatID)
	case "stop":
		h.HandleStop(ctx, chatID)
	case "today", "hoje":
		h.sendDay(ctx, chatID, h.today(ctx, chatID))
	case "reminders", "lembretes":
		h.HandleReminders(ctx, chatID)
	case "tz", "fuso":
		h.HandleTimeZone(ctx, chatID, strings.TrimSpace(args))
	default:
		h.send(chatID, txtHelp)
	}
}

// ---------------- /start --------------------
func (h *Handler) HandleStart(ctx context.Context, chatID int64) {
	u, err := h.DB.GetSubscriber(ctx, chatID)
	if err != nil {
		log.Printf("get subscriber %d: %v", chatID, err)
	}
	if u == nil {
		// create with defaults
		if err := h.DB.UpsertSubscriber(ctx, &models.Subscriber{ChatID: chatID, TZ: h.DefaultTZ}); err != nil {
			log.Printf("subscribe %d: %v", chatID, err)
			h.send(chatID, txtFailed)
			return
		}
	}

	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/hoje"),
			tgbotapi.NewKeyboardButton("/lembretes"),
		),
	)
	reply := tgbotapi.NewMessage(chatID, txtWelcome)
	reply.ReplyMarkup = kb
	if _, err := h.Bot.Send(reply); err != nil {
		log.Printf("send to %d: %v", chatID, err)
	}
}

func (h *Handler) HandleStop(ctx context.Context, chatID int64) {
	if err := h.DB.DeleteSubscriber(ctx, chatID); err != nil {
		log.Printf("unsubscribe %d: %v", chatID, err)
		h.send(chatID, txtFailed)
		return
	}
	reply := tgbotapi.NewMessage(chatID, txtBye)
	reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	_, _ = h.Bot.Send(reply)
}

func (h *Handler) HandleReminders(ctx context.Context, chatID int64) {
	rs, err := h.Store.RemindersForDate(ctx, h.today(ctx, chatID))
	if err != nil {
		log.Printf("reminders: %v", err)
		h.send(chatID, txtFailed)
		return
	}
	h.send(chatID, FormatReminders(rs))
}

func (h *Handler) HandleTimeZone(ctx context.Context, chatID int64, tz string) {
	if tz == "" {
		h.send(chatID, txtTZUsage)
		return
	}
	if _, err := time.LoadLocation(tz); err != nil {
		h.send(chatID, txtTZInvalid)
		return
	}
	if err := h.DB.UpsertSubscriber(ctx, &models.Subscriber{ChatID: chatID, TZ: tz}); err != nil {
		log.Printf("set tz %d: %v", chatID, err)
		h.send(chatID, txtFailed)
		return
	}
	h.send(chatID, txtTZSaved+tz)
}

// sendDay posts the day view with prev/next navigation.
func (h *Handler) sendDay(ctx context.Context, chatID int64, day time.Time) {
	d, err := h.Store.Day(ctx, day)
	if err != nil {
		log.Printf("day view: %v", err)
		h.send(chatID, txtFailed)
		return
	}
	msg := tgbotapi.NewMessage(chatID, FormatDay(d))
	msg.ReplyMarkup = dayKeyboard(day)
	if _, err := h.Bot.Send(msg); err != nil {
		log.Printf("send to %d: %v", chatID, err)
	}
}
