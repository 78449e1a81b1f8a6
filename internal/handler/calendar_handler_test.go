package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/middleware"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/service"
)

type eventSourceMock struct {
	events []models.PlacementEvent
}

func (m *eventSourceMock) List(_ context.Context, _ models.EventFilter) ([]models.PlacementEvent, int, error) {
	return m.events, len(m.events), nil
}

func newCalendarHandlerFixture(events []models.PlacementEvent) *CalendarHandler {
	calendar := service.NewCalendarService(&eventSourceMock{events: events}, nil, time.Minute, nil)
	return NewCalendarHandler(nil, calendar)
}

func TestCalendarHandlerGridReturns42Cells(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCalendarHandlerFixture([]models.PlacementEvent{
		{
			ID:        "ev-1",
			Title:     "Campus Drive",
			StartDate: models.NewDateOnly(2025, time.March, 10),
			EndDate:   models.NewDateOnly(2025, time.March, 12),
		},
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/calendar/grid?year=2025&month=3", nil)
	c.Request = req

	handler.Grid(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.MonthGrid `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Cells, 42)
	require.Equal(t, 2025, envelope.Data.Year)
	require.Equal(t, 3, envelope.Data.Month)
}

func TestCalendarHandlerGridRequiresYearAndMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCalendarHandlerFixture(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/calendar/grid?month=3", nil)
	c.Request = req
	handler.Grid(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	req, _ = http.NewRequest(http.MethodGet, "/calendar/grid?year=2025&month=13", nil)
	c.Request = req
	handler.Grid(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendarHandlerDayRequiresValidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCalendarHandlerFixture(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/calendar/day?date=not-a-date", nil)
	c.Request = req

	handler.Day(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendarHandlerDayReturnsStartDateMatches(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCalendarHandlerFixture([]models.PlacementEvent{
		{
			ID:        "ev-1",
			Title:     "Aptitude Workshop",
			StartDate: models.NewDateOnly(2025, time.March, 10),
			EndDate:   models.NewDateOnly(2025, time.March, 10),
		},
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/calendar/day?date=2025-03-10&asOf=2025-03-01", nil)
	c.Request = req

	handler.Day(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.DayDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Events, 1)
	require.False(t, envelope.Data.OngoingView)
	require.True(t, envelope.Data.CanCreate)
}

func TestCalendarHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCalendarHandlerFixture(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/calendar", nil)
	c.Request = req

	handler.Create(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRosterHandlerSelectStudentRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRosterHandler(nil, 0)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/calendar/ev-1/select-student", nil)
	c.Request = req

	handler.SelectStudent(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClaimsFromContextRejectsWrongType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, "not-claims")

	require.Nil(t, claimsFromContext(c))
}
