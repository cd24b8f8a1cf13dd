package handlers

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Glassolution/berry/internal/models"
	"github.com/Glassolution/berry/internal/nutrition"
	"github.com/Glassolution/berry/internal/timeline"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Subscribers interface {
	UpsertSubscriber(ctx context.Context, s *models.Subscriber) error
	GetSubscriber(ctx context.Context, chatID int64) (*models.Subscriber, error)
	DeleteSubscriber(ctx context.Context, chatID int64) error
}

type Store interface {
	Day(ctx context.Context, date time.Time) (timeline.Day, error)
	RemindersForDate(ctx context.Context, date time.Time) ([]models.RoutineReminder, error)
	CreateMeal(ctx context.Context, in nutrition.MealInput) (models.Meal, error)
	Now() time.Time
	Location() *time.Location
}

type Handler struct {
	Bot       Sender
	DB        Subscribers
	Store     Store
	DefaultTZ string
}

func NewHandler(bot Sender, db Subscribers, store Store, defaultTZ string) *Handler {
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	return &Handler{Bot: bot, DB: db, Store: store, DefaultTZ: defaultTZ}
}

// Listen consumes updates until ctx is done.
func (h *Handler) Listen(ctx context.Context, bot *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		h.HandleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.HandleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		h.HandleCommand(ctx, msg.Chat.ID, msg.Command(), msg.CommandArguments())
		return
	}
	h.HandleText(ctx, msg.Chat.ID, msg.Text)
}

// Notify implements scheduler.Notifier.
func (h *Handler) Notify(_ context.Context, chatID int64, text string) error {
	_, err := h.Bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (h *Handler) send(chatID int64, text string) {
	if _, err := h.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("send to %d: %v", chatID, err)
	}
}

// location returns the chat's zone, falling back to the default one.
func (h *Handler) location(ctx context.Context, chatID int64) *time.Location {
	tz := h.DefaultTZ
	if u, err := h.DB.GetSubscriber(ctx, chatID); err == nil && u != nil && u.TZ != "" {
		tz = u.TZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// today is the chat's current calendar day, as midnight in the store zone.
func (h *Handler) today(ctx context.Context, chatID int64) time.Time {
	local := h.Store.Now().In(h.location(ctx, chatID))
	return timeline.DayIn(local, h.Store.Location())
}
