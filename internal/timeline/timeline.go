// Package timeline projects meals and reminders onto calendar days and the
// five hour buckets of the day view. Everything here is pure.
package timeline

import (
	"sort"
	"time"

	"github.com/Glassolution/berry/internal/models"
)

type Bucket struct {
	Name  string `json:"name"`
	Hours []int  `json:"hours"`
}

var (
	Breakfast = Bucket{Name: "breakfast", Hours: []int{6, 7, 8, 9, 10}}
	Lunch     = Bucket{Name: "lunch", Hours: []int{11, 12, 13, 14}}
	Snack     = Bucket{Name: "snack", Hours: []int{15, 16, 17}}
	Dinner    = Bucket{Name: "dinner", Hours: []int{18, 19, 20, 21}}
	LateNight = Bucket{Name: "late_night", Hours: []int{22, 23, 0, 1, 2, 3, 4, 5}}
)

// Buckets covers every hour 0-23 exactly once.
var Buckets = []Bucket{Breakfast, Lunch, Snack, Dinner, LateNight}

// BucketFor returns the bucket holding hour. ok is false only for hours
// outside 0-23.
func BucketFor(hour int) (Bucket, bool) {
	for _, b := range Buckets {
		for _, h := range b.Hours {
			if h == hour {
				return b, true
			}
		}
	}
	return Bucket{}, false
}

// SameDay compares the year/month/day of t and day as they are, without
// converting either to another location.
func SameDay(t, day time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayIn is midnight of t's calendar day in loc. It carries a date picked in
// one zone over to another without shifting it.
func DayIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// MealsOn keeps the meals whose CreatedAt falls on day.
func MealsOn(meals []models.Meal, day time.Time) []models.Meal {
	var res []models.Meal
	for _, m := range meals {
		if SameDay(m.CreatedAt, day) {
			res = append(res, m)
		}
	}
	return res
}

// FilterByHours returns the meals whose CreatedAt hour is one of hours,
// walking hours in the given order and sorting each hour by minute.
// Day matching is left to the caller.
func FilterByHours(meals []models.Meal, hours []int) []models.Meal {
	var res []models.Meal
	for _, h := range hours {
		start := len(res)
		for _, m := range meals {
			if m.CreatedAt.Hour() == h {
				res = append(res, m)
			}
		}
		slot := res[start:]
		sort.SliceStable(slot, func(i, j int) bool {
			return slot[i].CreatedAt.Minute() < slot[j].CreatedAt.Minute()
		})
	}
	return res
}

// ReminderOn reports whether r applies to day. Undated reminders repeat daily.
func ReminderOn(r models.RoutineReminder, day time.Time) bool {
	if r.Date == nil {
		return true
	}
	return SameDay(*r.Date, day)
}

// RemindersForDay keeps reminders that apply to day, ordered by time of day.
func RemindersForDay(reminders []models.RoutineReminder, day time.Time) []models.RoutineReminder {
	var res []models.RoutineReminder
	for _, r := range reminders {
		if ReminderOn(r, day) {
			res = append(res, r)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Hour != res[j].Hour {
			return res[i].Hour < res[j].Hour
		}
		return res[i].Minute < res[j].Minute
	})
	return res
}

type Slot struct {
	Bucket Bucket        `json:"bucket"`
	Meals  []models.Meal `json:"meals"`
	Totals models.Macros `json:"totals"`
}

// Day is the rendered day view.
type Day struct {
	Date      time.Time                `json:"date"`
	Slots     []Slot                   `json:"slots"`
	Totals    models.Macros            `json:"totals"`
	Reminders []models.RoutineReminder `json:"reminders"`
}

// ForDay builds the day view for day out of the full collections.
func ForDay(meals []models.Meal, reminders []models.RoutineReminder, day time.Time) Day {
	onDay := MealsOn(meals, day)
	d := Day{
		Date:      StartOfDay(day),
		Slots:     make([]Slot, 0, len(Buckets)),
		Reminders: RemindersForDay(reminders, day),
	}
	for _, b := range Buckets {
		s := Slot{Bucket: b, Meals: FilterByHours(onDay, b.Hours)}
		for _, m := range s.Meals {
			s.Totals = s.Totals.Add(m.Macros)
		}
		d.Totals = d.Totals.Add(s.Totals)
		d.Slots = append(d.Slots, s)
	}
	return d
}

// Week returns the seven days of the calendar strip holding day, starting on
// first.
func Week(day time.Time, first time.Weekday) []time.Time {
	start := StartOfDay(day)
	offset := (int(start.Weekday()) - int(first) + 7) % 7
	start = start.AddDate(0, 0, -offset)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}
