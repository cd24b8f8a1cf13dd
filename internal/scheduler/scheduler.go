package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/Glassolution/berry/internal/models"
	"github.com/Glassolution/berry/internal/timeline"
)

// Notifier delivers a text to one subscriber.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Source is what the scheduler reads from the nutrition store.
type Source interface {
	RemindersForDate(ctx context.Context, date time.Time) ([]models.RoutineReminder, error)
	NotificationPrefs(ctx context.Context) (models.NotificationPrefs, error)
}

// Subscribers lists who gets notified.
type Subscribers interface {
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
}

type Scheduler struct {
	s      gocron.Scheduler
	src    Source
	subs   Subscribers
	notify Notifier
	clock  clockwork.Clock
	loc    *time.Location

	mu    sync.Mutex
	daily gocron.Job
	sent  map[string]time.Time
}

type Option func(*options)

type options struct {
	loc   *time.Location
	clock clockwork.Clock
}

func WithLocation(loc *time.Location) Option { return func(o *options) { o.loc = loc } }

func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

// New registers the minute reminder sweep and, when enabled, the daily
// notification. It does not start the scheduler.
func New(ctx context.Context, src Source, subs Subscribers, n Notifier, opts ...Option) (*Scheduler, error) {
	o := options{loc: time.Local, clock: clockwork.NewRealClock()}
	for _, fn := range opts {
		fn(&o)
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(o.loc),
		gocron.WithClock(o.clock),
	)
	if err != nil {
		return nil, err
	}

	sc := &Scheduler{
		s:      s,
		src:    src,
		subs:   subs,
		notify: n,
		clock:  o.clock,
		loc:    o.loc,
		sent:   map[string]time.Time{},
	}

	_, err = s.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			sc.CheckReminders(context.Background(), sc.clock.Now())
		}),
		gocron.WithName("routine-reminders"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	prefs, err := src.NotificationPrefs(ctx)
	if err != nil {
		log.Println("notification prefs unavailable, using defaults:", err)
	}
	if err := sc.Reschedule(prefs); err != nil {
		return nil, err
	}
	return sc, nil
}

// Start creates the scheduler and starts it.
func Start(ctx context.Context, src Source, subs Subscribers, n Notifier, opts ...Option) (*Scheduler, error) {
	sc, err := New(ctx, src, subs, n, opts...)
	if err != nil {
		return nil, err
	}
	sc.s.Start()
	return sc, nil
}

func (sc *Scheduler) Shutdown() error { return sc.s.Shutdown() }

// Jobs is the number of registered jobs.
func (sc *Scheduler) Jobs() int { return len(sc.s.Jobs()) }

// Reschedule cancels the daily notification and registers it again for p.
func (sc *Scheduler) Reschedule(p models.NotificationPrefs) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.daily != nil {
		if err := sc.s.RemoveJob(sc.daily.ID()); err != nil {
			log.Println("remove daily notification:", err)
		}
		sc.daily = nil
	}
	if !p.Enabled {
		return nil
	}

	title := p.Title
	j, err := sc.s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(
			gocron.NewAtTime(uint(p.Hour), uint(p.Minute), 0),
		)),
		gocron.NewTask(func() {
			sc.Broadcast(context.Background(), title)
		}),
		gocron.WithName("daily-notification"),
	)
	if err != nil {
		return fmt.Errorf("schedule daily notification: %w", err)
	}
	sc.daily = j
	return nil
}

// Broadcast sends text to every subscriber.
func (sc *Scheduler) Broadcast(ctx context.Context, text string) {
	subs, err := sc.subs.ListSubscribers(ctx)
	if err != nil {
		log.Println("list subscribers:", err)
		return
	}
	for _, u := range subs {
		if err := sc.notify.Notify(ctx, u.ChatID, text); err != nil {
			log.Printf("notify %d: %v", u.ChatID, err)
		}
	}
}

// CheckReminders sends every active reminder due at now's HH:MM in each
// subscriber's time zone. A reminder goes out at most once per chat and day.
func (sc *Scheduler) CheckReminders(ctx context.Context, now time.Time) {
	subs, err := sc.subs.ListSubscribers(ctx)
	if err != nil {
		log.Println("list subscribers:", err)
		return
	}

	for _, u := range subs {
		loc, err := time.LoadLocation(u.TZ)
		if err != nil {
			log.Printf("bad time zone %q for %d", u.TZ, u.ChatID)
			continue
		}
		local := now.In(loc)

		// the subscriber's calendar day, expressed in the source's zone
		reminders, err := sc.src.RemindersForDate(ctx, timeline.DayIn(local, sc.loc))
		if err != nil {
			log.Printf("reminders for %d: %v", u.ChatID, err)
			continue
		}
		for _, r := range Due(reminders, local) {
			key := fmt.Sprintf("%d/%s/%s", u.ChatID, r.ID, local.Format("2006-01-02"))
			if !sc.markSent(key, now) {
				continue
			}
			if err := sc.notify.Notify(ctx, u.ChatID, ReminderText(r)); err != nil {
				log.Printf("reminder %s to %d: %v", r.ID, u.ChatID, err)
			}
		}
	}
	sc.prune(now)
}

func (sc *Scheduler) markSent(key string, now time.Time) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, ok := sc.sent[key]; ok {
		return false
	}
	sc.sent[key] = now
	return true
}

func (sc *Scheduler) prune(now time.Time) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for k, t := range sc.sent {
		if now.Sub(t) > 48*time.Hour {
			delete(sc.sent, k)
		}
	}
}

// Due keeps the active reminders set for local's hour and minute.
func Due(reminders []models.RoutineReminder, local time.Time) []models.RoutineReminder {
	var res []models.RoutineReminder
	for _, r := range reminders {
		if r.Active && r.Hour == local.Hour() && r.Minute == local.Minute() {
			res = append(res, r)
		}
	}
	return res
}

func ReminderText(r models.RoutineReminder) string {
	switch r.Type {
	case "water":
		return "💧 " + r.Name
	case "recipe", "meal":
		return "🍽 " + r.Name
	default:
		return "⏰ " + r.Name
	}
}
