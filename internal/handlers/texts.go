package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/Glassolution/berry/internal/models"
	"github.com/Glassolution/berry/internal/nutrition"
)

// "Arroz e feijão 450" or "Maçã 95 kcal"
var quickMealRx = regexp.MustCompile(`(?i)^(.+?)\s+(\d+(?:[.,]\d+)?)\s*(kcal)?$`)

// ParseQuickMeal splits a free text line into a meal name and its calories.
func ParseQuickMeal(text string) (string, float64, bool) {
	m := quickMealRx.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", 0, false
	}
	kcal, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(m[1]), kcal, true
}

func (h *Handler) HandleText(ctx context.Context, chatID int64, text string) {
	name, kcal, ok := ParseQuickMeal(text)
	if !ok {
		h.send(chatID, txtQuickUsage)
		return
	}

	now := h.Store.Now()
	meal, err := h.Store.CreateMeal(ctx, nutrition.MealInput{
		UserID:    strconv.FormatInt(chatID, 10),
		Name:      name,
		Macros:    models.Macros{Calories: kcal},
		CreatedAt: &now,
	})
	switch {
	case errors.Is(err, nutrition.ErrNotLoaded):
		log.Printf("quick meal for %d refused: %v", chatID, err)
		h.send(chatID, txtFailed)
		return
	case errors.Is(err, nutrition.ErrInvalid):
		h.send(chatID, txtQuickUsage)
		return
	case err != nil && meal.ID == "":
		log.Printf("quick meal for %d: %v", chatID, err)
		h.send(chatID, txtFailed)
		return
	case err != nil:
		// kept in memory, backend write failed
		log.Printf("quick meal %s not persisted: %v", meal.ID, err)
	}

	h.send(chatID, fmt.Sprintf(txtMealSaved, meal.Name, meal.Calories, labelFor(meal.CreatedAt.Hour())))
}
