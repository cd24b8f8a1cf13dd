package handlers

import (
	"fmt"
	"strings"

	"github.com/Glassolution/berry/internal/models"
	"github.com/Glassolution/berry/internal/scheduler"
	"github.com/Glassolution/berry/internal/timeline"
)

const (
	btnPrevDay = "◀ Anterior"
	btnNextDay = "Próximo ▶"

	txtWelcome = "Olá! Eu sou a Berry 🍓\n" +
		"Envie \"nome calorias\" (ex.: Salada 320) para registrar uma refeição.\n" +
		"/hoje mostra o seu dia, /lembretes a rotina."
	txtBye        = "Pronto, você não receberá mais notificações."
	txtHelp       = "Comandos: /hoje, /lembretes, /fuso Area/Cidade, /stop"
	txtFailed     = "Algo deu errado, tente novamente."
	txtQuickUsage = "Não entendi. Use: nome calorias, por exemplo \"Iogurte 150\"."
	txtMealSaved  = "Registrado: %s (%.0f kcal) em %s."
	txtTZUsage    = "Use: /fuso America/Sao_Paulo"
	txtTZInvalid  = "Fuso horário desconhecido."
	txtTZSaved    = "Fuso horário salvo: "
	txtNoMeals    = "  nenhuma refeição"
	txtNoRoutine  = "Nenhum lembrete para hoje."
)

var bucketLabels = map[string]string{
	timeline.Breakfast.Name: "Café da manhã",
	timeline.Lunch.Name:     "Almoço",
	timeline.Snack.Name:     "Lanche",
	timeline.Dinner.Name:    "Jantar",
	timeline.LateNight.Name: "Madrugada",
}

func labelFor(hour int) string {
	b, _ := timeline.BucketFor(hour)
	return bucketLabels[b.Name]
}

// FormatDay renders the day view as a chat message.
func FormatDay(d timeline.Day) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s\n", d.Date.Format("02/01/2006"))
	fmt.Fprintf(&sb, "Total: %.0f kcal · P %.0fg · C %.0fg · G %.0fg\n",
		d.Totals.Calories, d.Totals.Protein, d.Totals.Carbs, d.Totals.Fat)

	for _, s := range d.Slots {
		fmt.Fprintf(&sb, "\n%s", bucketLabels[s.Bucket.Name])
		if len(s.Meals) == 0 {
			sb.WriteString("\n" + txtNoMeals)
			continue
		}
		fmt.Fprintf(&sb, " (%.0f kcal)", s.Totals.Calories)
		for _, m := range s.Meals {
			fmt.Fprintf(&sb, "\n  %s %s · %.0f kcal", m.CreatedAt.Format("15:04"), m.Name, m.Calories)
		}
	}

	if len(d.Reminders) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(FormatReminders(d.Reminders))
	}
	return sb.String()
}

func FormatReminders(rs []models.RoutineReminder) string {
	if len(rs) == 0 {
		return txtNoRoutine
	}
	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		state := ""
		if !r.Active {
			state = " (pausado)"
		}
		lines = append(lines, fmt.Sprintf("%02d:%02d %s%s", r.Hour, r.Minute, scheduler.ReminderText(r), state))
	}
	return strings.Join(lines, "\n")
}
