// Package nutrition owns the meal and reminder collections.
//
// A Store keeps both collections in memory and writes the whole collection
// back to the key-value backend after every change. All reads and writes go
// through a single goroutine, so a mutation always starts from the state left
// by the previous one and backend writes happen in the same order.
package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/lucsky/cuid"

	"github.com/Glassolution/berry/internal/models"
	"github.com/Glassolution/berry/internal/timeline"
)

const (
	KeyMeals     = "@berry/meals"
	KeyReminders = "@berry/reminders"

	KeyNotifyEnabled = "@berry/notifications/enabled"
	KeyNotifyHour    = "@berry/notifications/hour"
	KeyNotifyMinute  = "@berry/notifications/minute"
	KeyNotifyTitle   = "@berry/notifications/title"
)

// LoadErrorMessage is exposed through LoadError when hydrate fails.
const LoadErrorMessage = "não foi possível carregar seus dados"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
	ErrClosed   = errors.New("store closed")

	// ErrNotLoaded is returned by every meal and reminder mutation while
	// LoadError is set.
	ErrNotLoaded = errors.New("data not loaded")
)

// KV is the slice of the storage backend the store persists into.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ImageSaver moves a local meal image somewhere durable and returns the new
// reference.
type ImageSaver interface {
	Save(ctx context.Context, mealID, ref string) (string, error)
}

type state struct {
	meals     []models.Meal
	reminders []models.RoutineReminder
	loadErr   string
}

type op struct {
	fn   func(*state)
	done chan struct{}
}

type Store struct {
	kv       KV
	images   ImageSaver
	clock    clockwork.Clock
	loc      *time.Location
	validate *validator.Validate

	ops     chan op
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
	st      state
}

type Option func(*Store)

// WithLocation sets the zone used for calendar-day matching. Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// NewStore starts the state goroutine. Call Close to stop it.
func NewStore(kv KV, images ImageSaver, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		images:   images,
		clock:    clockwork.NewRealClock(),
		loc:      time.Local,
		validate: validator.New(),
		ops:      make(chan op),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.loop()
	return s
}

func (s *Store) loop() {
	defer close(s.stopped)
	for {
		select {
		case o := <-s.ops:
			o.fn(&s.st)
			close(o.done)
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the state goroutine and waits for it.
func (s *Store) do(ctx context.Context, fn func(*state)) error {
	o := op{fn: fn, done: make(chan struct{})}
	select {
	case s.ops <- o:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-o.done
	return nil
}

func (s *Store) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.stopped
}

func (s *Store) Location() *time.Location { return s.loc }

// Now is the store clock in the store location.
func (s *Store) Now() time.Time { return s.clock.Now().In(s.loc) }

// ---------- hydrate / persist ----------------------------------------------

// Hydrate replaces both collections with what the backend holds. On any
// read or decode failure both collections are left empty and LoadError
// reports a generic message.
func (s *Store) Hydrate(ctx context.Context) error {
	var loadErr error
	err := s.do(ctx, func(st *state) {
		meals, mErr := s.readMeals(ctx)
		reminders, rErr := s.readReminders(ctx)
		if loadErr = errors.Join(mErr, rErr); loadErr != nil {
			st.meals, st.reminders = nil, nil
			st.loadErr = LoadErrorMessage
			return
		}
		st.meals, st.reminders, st.loadErr = meals, reminders, ""
	})
	if err != nil {
		return err
	}
	if loadErr != nil {
		return fmt.Errorf("hydrate: %w", loadErr)
	}
	return nil
}

func (s *Store) readMeals(ctx context.Context) ([]models.Meal, error) {
	raw, ok, err := s.kv.Get(ctx, KeyMeals)
	if err != nil || !ok {
		return nil, err
	}
	var meals []models.Meal
	if err := json.Unmarshal([]byte(raw), &meals); err != nil {
		return nil, fmt.Errorf("decode meals: %w", err)
	}
	for i := range meals {
		meals[i].CreatedAt = meals[i].CreatedAt.In(s.loc)
	}
	return meals, nil
}

func (s *Store) readReminders(ctx context.Context) ([]models.RoutineReminder, error) {
	raw, ok, err := s.kv.Get(ctx, KeyReminders)
	if err != nil || !ok {
		return nil, err
	}
	var reminders []models.RoutineReminder
	if err := json.Unmarshal([]byte(raw), &reminders); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}
	for i := range reminders {
		if d := reminders[i].Date; d != nil {
			t := d.In(s.loc)
			reminders[i].Date = &t
		}
	}
	return reminders, nil
}

// persist writes a whole collection under key. Runs on the state goroutine.
func (s *Store) persist(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// LoadError is empty unless the last Hydrate failed.
func (s *Store) LoadError() string {
	var msg string
	_ = s.do(context.Background(), func(st *state) { msg = st.loadErr })
	return msg
}

func (s *Store) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func cloneMeals(meals []models.Meal) []models.Meal {
	if meals == nil {
		return nil
	}
	res := make([]models.Meal, len(meals))
	for i, m := range meals {
		res[i] = m.Clone()
	}
	return res
}

func cloneReminders(rs []models.RoutineReminder) []models.RoutineReminder {
	if rs == nil {
		return nil
	}
	res := make([]models.RoutineReminder, len(rs))
	for i, r := range rs {
		res[i] = r.Clone()
	}
	return res
}

func isRemote(ref string) bool {
	r := strings.ToLower(ref)
	return strings.HasPrefix(r, "http://") || strings.HasPrefix(r, "https://")
}

// ---------- meals ----------------------------------------------------------

type MealInput struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	models.Macros
	Foods     []models.FoodItem `json:"foods"`
	CreatedAt *time.Time        `json:"createdAt"`
	Planned   bool              `json:"planned"`
	ImageURI  string            `json:"imageUri"`
}

// CreateMeal builds a meal with a fresh id and prepends it. A local image is
// handed to the ImageSaver first; if that fails the original reference is
// kept. The returned error is non-nil with a usable meal when only the
// backend write failed.
func (s *Store) CreateMeal(ctx context.Context, in MealInput) (models.Meal, error) {
	m := models.Meal{
		ID:       cuid.New(),
		UserID:   in.UserID,
		Name:     in.Name,
		Macros:   in.Macros,
		Foods:    models.CloneFoods(in.Foods),
		Planned:  in.Planned,
		ImageURI: in.ImageURI,
	}
	if m.Foods == nil {
		m.Foods = []models.FoodItem{}
	}
	if in.CreatedAt != nil {
		m.CreatedAt = in.CreatedAt.In(s.loc)
	} else {
		m.CreatedAt = s.Now()
	}
	if err := s.check(m); err != nil {
		return models.Meal{}, err
	}

	if m.ImageURI != "" && !isRemote(m.ImageURI) && s.images != nil {
		saved, err := s.images.Save(ctx, m.ID, m.ImageURI)
		if err != nil {
			log.Printf("meal %s: keeping original image %q: %v", m.ID, m.ImageURI, err)
		} else {
			m.ImageURI = saved
		}
	}

	var perr error
	err := s.do(ctx, func(st *state) {
		if st.loadErr != "" {
			perr = ErrNotLoaded
			return
		}
		st.meals = append([]models.Meal{m.Clone()}, st.meals...)
		perr = s.persist(ctx, KeyMeals, st.meals)
	})
	if err != nil {
		return models.Meal{}, err
	}
	if errors.Is(perr, ErrNotLoaded) {
		return models.Meal{}, perr
	}
	return m, perr
}

type MealPatch struct {
	Name      *string            `json:"name"`
	Calories  *float64           `json:"calories"`
	Protein   *float64           `json:"protein"`
	Carbs     *float64           `json:"carbs"`
	Fat       *float64           `json:"fat"`
	Foods     *[]models.FoodItem `json:"foods"`
	CreatedAt *time.Time         `json:"createdAt"`
	Planned   *bool              `json:"planned"`
	ImageURI  *string            `json:"imageUri"`
}

func (p MealPatch) apply(m *models.Meal) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Calories != nil {
		m.Calories = *p.Calories
	}
	if p.Protein != nil {
		m.Protein = *p.Protein
	}
	if p.Carbs != nil {
		m.Carbs = *p.Carbs
	}
	if p.Fat != nil {
		m.Fat = *p.Fat
	}
	if p.Foods != nil {
		m.Foods = models.CloneFoods(*p.Foods)
	}
	if p.CreatedAt != nil {
		m.CreatedAt = *p.CreatedAt
	}
	if p.Planned != nil {
		m.Planned = *p.Planned
	}
	if p.ImageURI != nil {
		m.ImageURI = *p.ImageURI
	}
}

// UpdateMeal merges patch into the first meal with id. It returns nil, nil
// when there is no such meal.
func (s *Store) UpdateMeal(ctx context.Context, id string, patch MealPatch) (*models.Meal, error) {
	var (
		res  *models.Meal
		verr error
		perr error
	)
	err := s.do(ctx, func(st *state) {
		if st.loadErr != "" {
			verr = ErrNotLoaded
			return
		}
		for i := range st.meals {
			if st.meals[i].ID != id {
				continue
			}
			m := st.meals[i]
			patch.apply(&m)
			m.CreatedAt = m.CreatedAt.In(s.loc)
			if verr = s.check(m); verr != nil {
				return
			}
			st.meals[i] = m
			out := m.Clone()
			res = &out
			perr = s.persist(ctx, KeyMeals, st.meals)
			return
		}
	})
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return nil, verr
	}
	return res, perr
}

// DeleteMeal removes the first meal with id.
func (s *Store) DeleteMeal(ctx context.Context, id string) error {
	var found bool
	var perr error
	err := s.do(ctx, func(st *state) {
		if st.loadErr != "" {
			perr = ErrNotLoaded
			return
		}
		for i := range st.meals {
			if st.meals[i].ID == id {
				st.meals = append(st.meals[:i:i], st.meals[i+1:]...)
				found = true
				perr = s.persist(ctx, KeyMeals, st.meals)
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if errors.Is(perr, ErrNotLoaded) {
		return perr
	}
	if !found {
		return ErrNotFound
	}
	return perr
}

func (s *Store) Meal(ctx context.Context, id string) (models.Meal, error) {
	var (
		m     models.Meal
		found bool
	)
	err := s.do(ctx, func(st *state) {
		for _, x := range st.meals {
			if x.ID == id {
				m, found = x.Clone(), true
				return
			}
		}
	})
	if err != nil {
		return models.Meal{}, err
	}
	if !found {
		return models.Meal{}, ErrNotFound
	}
	return m, nil
}

// Meals returns a copy of the full collection, newest first.
func (s *Store) Meals(ctx context.Context) ([]models.Meal, error) {
	var res []models.Meal
	err := s.do(ctx, func(st *state) {
		res = cloneMeals(st.meals)
	})
	return res, err
}

// MealsByDate returns the meals created on the calendar day of date. Both
// date and meal times are read in the store location.
func (s *Store) MealsByDate(ctx context.Context, date time.Time) ([]models.Meal, error) {
	date = date.In(s.loc)
	var res []models.Meal
	err := s.do(ctx, func(st *state) {
		res = cloneMeals(timeline.MealsOn(st.meals, date))
	})
	return res, err
}

// ---------- reminders ------------------------------------------------------

// AddReminder appends r, assigning an id when r has none.
func (s *Store) AddReminder(ctx context.Context, r models.RoutineReminder) (models.RoutineReminder, error) {
	if r.ID == "" {
		r.ID = cuid.New()
	}
	if r.Date != nil {
		d := r.Date.In(s.loc)
		r.Date = &d
	}
	if err := s.check(r); err != nil {
		return models.RoutineReminder{}, err
	}
	var perr error
	err := s.do(ctx, func(st *state) {
		if st.loadErr != "" {
			perr = ErrNotLoaded
			return
		}
		st.reminders = append(st.reminders, r.Clone())
		perr = s.persist(ctx, KeyReminders, st.reminders)
	})
	if err != nil {
		return models.RoutineReminder{}, err
	}
	if errors.Is(perr, ErrNotLoaded) {
		return models.RoutineReminder{}, perr
	}
	return r, perr
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	var found bool
	var perr error
	err := s.do(ctx, func(st *state) {
		if st.loadErr != "" {
			perr = ErrNotLoaded
			return
		}
		for i := range st.reminders {
			if st.reminders[i].ID == id {
				st.reminders = append(st.reminders[:i:i], st.reminders[i+1:]...)
				found = true
				perr = s.persist(ctx, KeyReminders, st.reminders)
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if errors.Is(perr, ErrNotLoaded) {
		return perr
	}
	if !found {
		return ErrNotFound
	}
	return perr
}

func (s *Store) Reminders(ctx context.Context) ([]models.RoutineReminder, error) {
	var res []models.RoutineReminder
	err := s.do(ctx, func(st *state) {
		res = cloneReminders(st.reminders)
	})
	return res, err
}

// RemindersForDate returns the reminders that apply to date, by time of day.
// date is read in the store location.
func (s *Store) RemindersForDate(ctx context.Context, date time.Time) ([]models.RoutineReminder, error) {
	date = date.In(s.loc)
	var res []models.RoutineReminder
	err := s.do(ctx, func(st *state) {
		res = cloneReminders(timeline.RemindersForDay(st.reminders, date))
	})
	return res, err
}

// Day builds the timeline view for date, read in the store location, from
// the current collections.
func (s *Store) Day(ctx context.Context, date time.Time) (timeline.Day, error) {
	date = date.In(s.loc)
	var d timeline.Day
	err := s.do(ctx, func(st *state) {
		d = timeline.ForDay(cloneMeals(st.meals), cloneReminders(st.reminders), date)
	})
	return d, err
}
