package timeline

import (
	"strconv"
	"testing"
	"time"

	"github.com/jaswdr/faker"

	"github.com/Glassolution/berry/internal/models"
)

var (
	fake   = faker.New()
	nextID int
)

func at(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, time.UTC)
}

func meal(t time.Time, kcal float64) models.Meal {
	nextID++
	return models.Meal{
		ID:        "m" + strconv.Itoa(nextID),
		Name:      fake.Lorem().Word(),
		Macros:    models.Macros{Calories: kcal},
		CreatedAt: t,
	}
}

func TestBucketsCoverEveryHourOnce(t *testing.T) {
	seen := map[int]int{}
	for _, b := range Buckets {
		for _, h := range b.Hours {
			seen[h]++
		}
	}
	for h := 0; h < 24; h++ {
		if seen[h] != 1 {
			t.Errorf("hour %d appears in %d buckets", h, seen[h])
		}
	}
	if _, ok := BucketFor(24); ok {
		t.Error("hour 24 must not map to a bucket")
	}
	if b, _ := BucketFor(3); b.Name != LateNight.Name {
		t.Errorf("hour 3 in %q", b.Name)
	}
}

func TestLunchExample(t *testing.T) {
	m := meal(at(2024, 3, 10, 13, 5), 500)
	day := at(2024, 3, 10, 0, 0)
	onDay := MealsOn([]models.Meal{m}, day)

	lunch := FilterByHours(onDay, []int{11, 12, 13, 14})
	if len(lunch) != 1 || lunch[0].ID != m.ID {
		t.Fatalf("lunch = %+v", lunch)
	}
	if got := FilterByHours(onDay, []int{6, 7, 8, 9, 10}); len(got) != 0 {
		t.Fatalf("breakfast should be empty, got %+v", got)
	}
}

func TestFilterByHoursOrdersByMinute(t *testing.T) {
	a := meal(at(2024, 3, 10, 12, 40), 1)
	b := meal(at(2024, 3, 10, 12, 5), 2)
	c := meal(at(2024, 3, 10, 11, 30), 3)
	got := FilterByHours([]models.Meal{a, b, c}, Lunch.Hours)
	want := []string{c.ID, b.ID, a.ID}
	if len(got) != len(want) {
		t.Fatalf("got %d meals", len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("pos %d: got %s want %s", i, got[i].ID, want[i])
		}
	}
}

func TestMealsOnIgnoresOtherDays(t *testing.T) {
	in := []models.Meal{
		meal(at(2024, 3, 10, 23, 59), 1),
		meal(at(2024, 3, 11, 0, 0), 1),
		meal(at(2023, 3, 10, 12, 0), 1),
	}
	got := MealsOn(in, at(2024, 3, 10, 8, 0))
	if len(got) != 1 || got[0].ID != in[0].ID {
		t.Fatalf("got %+v", got)
	}
}

func TestRemindersForDay(t *testing.T) {
	dated := at(2024, 3, 10, 0, 0)
	in := []models.RoutineReminder{
		{ID: "1", Name: "Água", Hour: 9, Date: &dated, Active: true},
		{ID: "2", Name: "Café", Hour: 8, Active: true},
	}

	got := RemindersForDay(in, at(2024, 3, 10, 15, 0))
	if len(got) != 2 {
		t.Fatalf("2024-03-10: want 2 reminders, got %+v", got)
	}
	if got[0].Name != "Café" {
		t.Errorf("reminders not ordered by time: %+v", got)
	}

	got = RemindersForDay(in, at(2024, 3, 11, 15, 0))
	if len(got) != 1 || got[0].Name != "Café" {
		t.Fatalf("2024-03-11: want only Café, got %+v", got)
	}
}

func TestForDay(t *testing.T) {
	in := []models.Meal{
		meal(at(2024, 3, 10, 7, 30), 300),
		meal(at(2024, 3, 10, 13, 5), 500),
		meal(at(2024, 3, 10, 23, 10), 200),
		meal(at(2024, 3, 9, 13, 0), 999),
	}
	d := ForDay(in, nil, at(2024, 3, 10, 12, 0))

	if len(d.Slots) != len(Buckets) {
		t.Fatalf("want %d slots, got %d", len(Buckets), len(d.Slots))
	}
	if d.Totals.Calories != 1000 {
		t.Errorf("day total = %v", d.Totals.Calories)
	}
	byName := map[string]Slot{}
	for _, s := range d.Slots {
		byName[s.Bucket.Name] = s
	}
	if n := len(byName["breakfast"].Meals); n != 1 {
		t.Errorf("breakfast has %d meals", n)
	}
	if n := len(byName["snack"].Meals); n != 0 {
		t.Errorf("snack has %d meals", n)
	}
	if c := byName["late_night"].Totals.Calories; c != 200 {
		t.Errorf("late night total = %v", c)
	}
	if !d.Date.Equal(at(2024, 3, 10, 0, 0)) {
		t.Errorf("date = %v", d.Date)
	}
}

func TestWeek(t *testing.T) {
	// 2024-03-13 is a Wednesday
	days := Week(at(2024, 3, 13, 18, 0), time.Sunday)
	if len(days) != 7 {
		t.Fatalf("got %d days", len(days))
	}
	if !days[0].Equal(at(2024, 3, 10, 0, 0)) || !days[6].Equal(at(2024, 3, 16, 0, 0)) {
		t.Errorf("sunday week = %v .. %v", days[0], days[6])
	}

	days = Week(at(2024, 3, 10, 9, 0), time.Monday)
	if !days[0].Equal(at(2024, 3, 4, 0, 0)) {
		t.Errorf("monday week starts %v", days[0])
	}
}
