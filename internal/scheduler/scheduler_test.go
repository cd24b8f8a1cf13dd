package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"

	"github.com/Glassolution/berry/internal/models"
	"github.com/Glassolution/berry/internal/timeline"
)

type fakeSource struct {
	reminders []models.RoutineReminder
	prefs     models.NotificationPrefs
	// loc mirrors the store, which reads dates in its own zone
	loc   *time.Location
	fails int
	calls int
}

func (f *fakeSource) RemindersForDate(_ context.Context, d time.Time) ([]models.RoutineReminder, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, errors.New("backend down")
	}
	if f.loc != nil {
		d = d.In(f.loc)
	}
	return timeline.RemindersForDay(f.reminders, d), nil
}

func (f *fakeSource) NotificationPrefs(context.Context) (models.NotificationPrefs, error) {
	return f.prefs, nil
}

type fakeSubs []models.Subscriber

func (f fakeSubs) ListSubscribers(context.Context) ([]models.Subscriber, error) { return f, nil }

type sent struct {
	chatID int64
	text   string
}

type recorder struct {
	mu  sync.Mutex
	got []sent
}

func (r *recorder) Notify(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, sent{chatID, text})
	return nil
}

var now = time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, src *fakeSource, subs fakeSubs, rec *recorder) *Scheduler {
	t.Helper()
	sc, err := New(context.Background(), src, subs, rec,
		WithLocation(time.UTC),
		WithClock(clockwork.NewFakeClockAt(now)),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestDue(t *testing.T) {
	in := []models.RoutineReminder{
		{ID: "a", Hour: 12, Minute: 30, Active: true},
		{ID: "b", Hour: 12, Minute: 30, Active: false},
		{ID: "c", Hour: 12, Minute: 31, Active: true},
	}
	got := Due(in, now)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("got %+v", got)
	}
}

func TestCheckRemindersPerTimeZone(t *testing.T) {
	tomorrow := now.AddDate(0, 0, 1)
	src := &fakeSource{reminders: []models.RoutineReminder{
		{ID: "water", Name: "Água", Type: "water", Hour: 12, Minute: 30, Active: true},
		{ID: "late", Name: "Ceia", Hour: 9, Minute: 30, Active: true},
		{ID: "other-day", Name: "x", Hour: 12, Minute: 30, Active: true, Date: &tomorrow},
	}}
	subs := fakeSubs{
		{ChatID: 1, TZ: "UTC"},
		{ChatID: 2, TZ: "America/Sao_Paulo"}, // 09:30 there
		{ChatID: 3, TZ: "Not/AZone"},
	}
	rec := &recorder{}
	sc := newTestScheduler(t, src, subs, rec)

	sc.CheckReminders(context.Background(), now)

	want := []sent{{1, "💧 Água"}, {2, "⏰ Ceia"}}
	if len(rec.got) != len(want) {
		t.Fatalf("sent %+v", rec.got)
	}
	for i := range want {
		if rec.got[i] != want[i] {
			t.Errorf("%d: got %+v want %+v", i, rec.got[i], want[i])
		}
	}

	// the job may fire twice within the same minute
	sc.CheckReminders(context.Background(), now.Add(20*time.Second))
	if len(rec.got) != 2 {
		t.Fatalf("duplicate sends: %+v", rec.got)
	}
}

func TestRescheduleReplacesDailyJob(t *testing.T) {
	src := &fakeSource{prefs: models.NotificationPrefs{Enabled: true, Hour: 12, Minute: 0, Title: "Almoço"}}
	sc := newTestScheduler(t, src, nil, &recorder{})

	if n := sc.Jobs(); n != 2 {
		t.Fatalf("jobs after New = %d, want 2", n)
	}
	first := sc.daily.ID()

	if err := sc.Reschedule(models.NotificationPrefs{Enabled: true, Hour: 19, Minute: 15, Title: "Jantar"}); err != nil {
		t.Fatal(err)
	}
	if n := sc.Jobs(); n != 2 {
		t.Fatalf("jobs after reschedule = %d", n)
	}
	if sc.daily.ID() == first {
		t.Error("daily job was not replaced")
	}

	if err := sc.Reschedule(models.NotificationPrefs{Enabled: false}); err != nil {
		t.Fatal(err)
	}
	if n := sc.Jobs(); n != 1 {
		t.Fatalf("jobs after disable = %d", n)
	}
}

func TestBroadcast(t *testing.T) {
	rec := &recorder{}
	sc := newTestScheduler(t, &fakeSource{}, fakeSubs{{ChatID: 5}, {ChatID: 6}}, rec)
	sc.Broadcast(context.Background(), "Hora de registrar")
	if len(rec.got) != 2 || rec.got[1].chatID != 6 || rec.got[0].text != "Hora de registrar" {
		t.Fatalf("got %+v", rec.got)
	}
}

func TestCheckRemindersUsesSubscriberCalendarDay(t *testing.T) {
	// 16:30 UTC on the 10th is 01:30 on the 11th in Tokyo
	at := time.Date(2024, 3, 10, 16, 30, 0, 0, time.UTC)
	eleventh := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{loc: time.UTC, reminders: []models.RoutineReminder{
		{ID: "dated", Name: "Remédio", Hour: 1, Minute: 30, Active: true, Date: &eleventh},
	}}
	rec := &recorder{}
	sc := newTestScheduler(t, src, fakeSubs{{ChatID: 1, TZ: "Asia/Tokyo"}}, rec)

	sc.CheckReminders(context.Background(), at)
	if len(rec.got) != 1 || rec.got[0] != (sent{1, "⏰ Remédio"}) {
		t.Fatalf("sent %+v", rec.got)
	}
}

func TestCheckRemindersSkipsFailedSubscriber(t *testing.T) {
	src := &fakeSource{fails: 1, reminders: []models.RoutineReminder{
		{ID: "water", Name: "Água", Type: "water", Hour: 12, Minute: 30, Active: true},
	}}
	rec := &recorder{}
	sc := newTestScheduler(t, src, fakeSubs{{ChatID: 1, TZ: "UTC"}, {ChatID: 2, TZ: "UTC"}}, rec)

	sc.CheckReminders(context.Background(), now)
	if len(rec.got) != 1 || rec.got[0].chatID != 2 {
		t.Fatalf("sent %+v", rec.got)
	}
}
