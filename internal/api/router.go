// Package api is the JSON surface over the nutrition store.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Glassolution/berry/internal/models"
	"github.com/Glassolution/berry/internal/nutrition"
)

// Rescheduler is told about new notification preferences.
type Rescheduler interface {
	Reschedule(p models.NotificationPrefs) error
}

type Server struct {
	Store     *nutrition.Store
	Scheduler Rescheduler
	// Analyze serves POST /analyze; nil leaves the route out.
	Analyze   gin.HandlerFunc
	WeekStart time.Weekday
}

func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", s.health)
	r.POST("/dietplan", s.dietPlan)
	if s.Analyze != nil {
		r.POST("/analyze", s.Analyze)
	}

	data := r.Group("/")
	data.Use(s.requireLoaded)
	{
		data.GET("/meals", s.listMeals)
		data.POST("/meals", s.createMeal)
		data.GET("/meals/:id", s.getMeal)
		data.PATCH("/meals/:id", s.updateMeal)
		data.DELETE("/meals/:id", s.deleteMeal)

		data.GET("/timeline", s.timeline)
		data.GET("/week", s.week)

		data.GET("/reminders", s.listReminders)
		data.POST("/reminders", s.createReminder)
		data.DELETE("/reminders/:id", s.deleteReminder)

		data.GET("/notifications", s.getNotifications)
		data.PUT("/notifications", s.putNotifications)
		data.DELETE("/notifications", s.resetNotifications)
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if msg := s.Store.LoadError(); msg != "" {
		body["status"] = "degraded"
		body["loadError"] = msg
	}
	c.JSON(http.StatusOK, body)
}

// requireLoaded refuses data routes after a failed hydrate so an empty
// state is never written over what the backend still holds.
func (s *Server) requireLoaded(c *gin.Context) {
	if msg := s.Store.LoadError(); msg != "" {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msg})
		return
	}
	c.Next()
}

func fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, nutrition.ErrInvalid):
		code = http.StatusBadRequest
	case errors.Is(err, nutrition.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, nutrition.ErrNotLoaded), errors.Is(err, nutrition.ErrClosed), errors.Is(err, context.Canceled):
		code = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// date reads ?date=YYYY-MM-DD in the store location, defaulting to today.
func (s *Server) date(c *gin.Context) (time.Time, bool) {
	q := c.Query("date")
	if q == "" {
		return s.Store.Now(), true
	}
	d, err := time.ParseInLocation(time.DateOnly, q, s.Store.Location())
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
