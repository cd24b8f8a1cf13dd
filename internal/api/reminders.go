package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Glassolution/berry/internal/models"
)

// GET /reminders returns all reminders, or those applying to ?date=.
func (s *Server) listReminders(c *gin.Context) {
	var (
		rs  []models.RoutineReminder
		err error
	)
	if c.Query("date") == "" {
		rs, err = s.Store.Reminders(c.Request.Context())
	} else {
		day, ok := s.date(c)
		if !ok {
			return
		}
		rs, err = s.Store.RemindersForDate(c.Request.Context(), day)
	}
	if err != nil {
		fail(c, err)
		return
	}
	if rs == nil {
		rs = []models.RoutineReminder{}
	}
	c.JSON(http.StatusOK, rs)
}

type reminderInput struct {
	Hour   int        `json:"hour"`
	Minute int        `json:"minute"`
	Name   string     `json:"name"`
	Type   string     `json:"type"`
	Date   *time.Time `json:"date"`
	Active *bool      `json:"active"`
}

func (s *Server) createReminder(c *gin.Context) {
	var in reminderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	r := models.RoutineReminder{
		Hour:   in.Hour,
		Minute: in.Minute,
		Name:   in.Name,
		Type:   in.Type,
		Date:   in.Date,
		Active: in.Active == nil || *in.Active,
	}
	r, err := s.Store.AddReminder(c.Request.Context(), r)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) deleteReminder(c *gin.Context) {
	if err := s.Store.DeleteReminder(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getNotifications(c *gin.Context) {
	p, err := s.Store.NotificationPrefs(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PUT /notifications stores the prefs and moves the daily job.
func (s *Server) putNotifications(c *gin.Context) {
	var p models.NotificationPrefs
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.Store.SetNotificationPrefs(c.Request.Context(), p); err != nil {
		fail(c, err)
		return
	}
	if s.Scheduler != nil {
		if err := s.Scheduler.Reschedule(p); err != nil {
			log.Println("reschedule daily notification:", err)
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, p)
}

// DELETE /notifications goes back to the default prefs.
func (s *Server) resetNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.Store.ResetNotificationPrefs(ctx); err != nil {
		fail(c, err)
		return
	}
	p, err := s.Store.NotificationPrefs(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	if s.Scheduler != nil {
		if err := s.Scheduler.Reschedule(p); err != nil {
			log.Println("reschedule daily notification:", err)
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, p)
}
