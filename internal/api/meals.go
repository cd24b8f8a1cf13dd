package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Glassolution/berry/internal/dietplan"
	"github.com/Glassolution/berry/internal/models"
	"github.com/Glassolution/berry/internal/nutrition"
	"github.com/Glassolution/berry/internal/timeline"
)

// GET /meals lists everything, or one day with ?date=.
func (s *Server) listMeals(c *gin.Context) {
	var (
		meals []models.Meal
		err   error
	)
	if c.Query("date") == "" {
		meals, err = s.Store.Meals(c.Request.Context())
	} else {
		day, ok := s.date(c)
		if !ok {
			return
		}
		meals, err = s.Store.MealsByDate(c.Request.Context(), day)
	}
	if err != nil {
		fail(c, err)
		return
	}
	if meals == nil {
		meals = []models.Meal{}
	}
	c.JSON(http.StatusOK, meals)
}

func (s *Server) createMeal(c *gin.Context) {
	var in nutrition.MealInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := s.Store.CreateMeal(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) getMeal(c *gin.Context) {
	m, err := s.Store.Meal(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) updateMeal(c *gin.Context) {
	var patch nutrition.MealPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := s.Store.UpdateMeal(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	if m == nil {
		fail(c, nutrition.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) deleteMeal(c *gin.Context) {
	if err := s.Store.DeleteMeal(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) timeline(c *gin.Context) {
	day, ok := s.date(c)
	if !ok {
		return
	}
	d, err := s.Store.Day(c.Request.Context(), day)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type weekDay struct {
	Date   string        `json:"date"`
	Meals  int           `json:"meals"`
	Totals models.Macros `json:"totals"`
}

// GET /week is the calendar strip: per-day meal counts and totals.
func (s *Server) week(c *gin.Context) {
	day, ok := s.date(c)
	if !ok {
		return
	}
	meals, err := s.Store.Meals(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	days := timeline.Week(day, s.WeekStart)
	res := make([]weekDay, 0, len(days))
	for _, d := range days {
		wd := weekDay{Date: d.Format("2006-01-02")}
		for _, m := range timeline.MealsOn(meals, d) {
			wd.Meals++
			wd.Totals = wd.Totals.Add(m.Macros)
		}
		res = append(res, wd)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) dietPlan(c *gin.Context) {
	var p dietplan.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	plan, err := dietplan.Calculate(p)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, plan)
}
