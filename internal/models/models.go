package models

import "time"

// Macros are the four tracked nutrition fields. Values are estimates.
type Macros struct {
	Calories float64 `json:"calories" validate:"gte=0"`
	Protein  float64 `json:"protein"  validate:"gte=0"`
	Carbs    float64 `json:"carbs"    validate:"gte=0"`
	Fat      float64 `json:"fat"      validate:"gte=0"`
}

// Add returns the field-wise sum of m and o.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fat:      m.Fat + o.Fat,
	}
}

// FoodItem is a snapshot attached to a Meal; never stored on its own.
type FoodItem struct {
	Name    string `json:"name"              validate:"required"`
	Portion string `json:"portion,omitempty"`
	Macros
	Items []FoodItem `json:"items,omitempty" validate:"dive"`
}

func (f FoodItem) clone() FoodItem {
	f.Items = CloneFoods(f.Items)
	return f
}

// CloneFoods deep-copies a food list, nested items included.
func CloneFoods(foods []FoodItem) []FoodItem {
	if foods == nil {
		return nil
	}
	res := make([]FoodItem, len(foods))
	for i, f := range foods {
		res[i] = f.clone()
	}
	return res
}

// Meal is a logged or planned meal. CreatedAt decides both the calendar day
// and the hour/minute slot on the timeline.
type Meal struct {
	ID     string `json:"id"`
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name" validate:"required"`
	Macros
	Foods     []FoodItem `json:"foods" validate:"dive"`
	CreatedAt time.Time  `json:"createdAt"`
	Planned   bool       `json:"planned,omitempty"`
	ImageURI  string     `json:"imageUri,omitempty"`
}

// Clone returns m with its own copy of Foods.
func (m Meal) Clone() Meal {
	m.Foods = CloneFoods(m.Foods)
	return m
}

// RoutineReminder fires at Hour:Minute. A nil Date means every day.
type RoutineReminder struct {
	ID     string     `json:"id"`
	Hour   int        `json:"hour"   validate:"gte=0,lte=23"`
	Minute int        `json:"minute" validate:"gte=0,lte=59"`
	Name   string     `json:"name"   validate:"required"`
	Type   string     `json:"type"`
	Date   *time.Time `json:"date,omitempty"`
	Active bool       `json:"active"`
}

func (r RoutineReminder) Clone() RoutineReminder {
	if r.Date != nil {
		d := *r.Date
		r.Date = &d
	}
	return r
}

// NotificationPrefs is the daily "log your meal" notification.
type NotificationPrefs struct {
	Enabled bool   `json:"enabled"`
	Hour    int    `json:"hour"   validate:"gte=0,lte=23"`
	Minute  int    `json:"minute" validate:"gte=0,lte=59"`
	Title   string `json:"title"`
}

// Subscriber is a telegram chat receiving notifications.
type Subscriber struct {
	ID        int64  `db:"id"         json:"id"`
	ChatID    int64  `db:"chat_id"    json:"chat_id"`
	TZ        string `db:"tz"         json:"tz"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}
