package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/middleware"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/service"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/response"
)

// CalendarHandler exposes placement event and calendar endpoints.
type CalendarHandler struct {
	events   *service.EventService
	calendar *service.CalendarService
}

// NewCalendarHandler constructs CalendarHandler.
func NewCalendarHandler(events *service.EventService, calendar *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{events: events, calendar: calendar}
}

// asOfDay resolves the reference day for status derivation. An explicit
// asOf query wins; otherwise the server's calendar day is used.
func asOfDay(c *gin.Context) (models.DateOnly, error) {
	raw := c.Query("asOf")
	if raw == "" {
		return models.Today(), nil
	}
	day, err := models.ParseDateOnly(raw)
	if err != nil {
		return models.DateOnly{}, appErrors.Clone(appErrors.ErrValidation, "invalid asOf date")
	}
	return day, nil
}

// List godoc
// @Summary List placement events
// @Tags Calendar
// @Produce json
// @Param from query string false "Window start (YYYY-MM-DD)"
// @Param to query string false "Window end (YYYY-MM-DD)"
// @Param asOf query string false "Reference day for status derivation"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendar [get]
func (h *CalendarHandler) List(c *gin.Context) {
	asOf, err := asOfDay(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var filter models.EventFilter
	if raw := c.Query("from"); raw != "" {
		from, err := models.ParseDateOnly(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date"))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := models.ParseDateOnly(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date"))
			return
		}
		filter.To = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	events, pagination, err := h.events.List(c.Request.Context(), filter, asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// ListDeleted godoc
// @Summary List soft-deleted events
// @Tags Calendar
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendar/deleted [get]
func (h *CalendarHandler) ListDeleted(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	events, pagination, err := h.events.ListDeleted(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get placement event
// @Tags Calendar
// @Produce json
// @Param id path string true "Event ID"
// @Param asOf query string false "Reference day for status derivation"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/{id} [get]
func (h *CalendarHandler) Get(c *gin.Context) {
	asOf, err := asOfDay(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.events.Get(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create godoc
// @Summary Schedule a placement event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	event, err := h.events.Create(c.Request.Context(), req, claims.UserID, models.Today())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Edit a placement event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.UpdateEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calendar/{id} [put]
func (h *CalendarHandler) Update(c *gin.Context) {
	var req service.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	event, err := h.events.Update(c.Request.Context(), c.Param("id"), req, models.Today())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Complete godoc
// @Summary Complete an event with summary counters
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.CompleteEventRequest true "Summary payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calendar/{id}/complete [put]
func (h *CalendarHandler) Complete(c *gin.Context) {
	var req service.CompleteEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid summary payload"))
		return
	}
	event, err := h.events.Complete(c.Request.Context(), c.Param("id"), req, models.Today())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Cancel godoc
// @Summary Cancel an event
// @Tags Calendar
// @Produce json
// @Param id path string true "Event ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /calendar/{id}/cancel [put]
func (h *CalendarHandler) Cancel(c *gin.Context) {
	if err := h.events.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Soft-delete an event
// @Tags Calendar
// @Produce json
// @Param id path string true "Event ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /calendar/{id} [delete]
func (h *CalendarHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Grid godoc
// @Summary Month grid view
// @Tags Calendar
// @Produce json
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Param asOf query string false "Reference day for status derivation"
// @Success 200 {object} response.Envelope
// @Router /calendar/grid [get]
func (h *CalendarHandler) Grid(c *gin.Context) {
	asOf, err := asOfDay(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year is required"))
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12"))
		return
	}
	grid, err := h.calendar.MonthGrid(c.Request.Context(), year, time.Month(month), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, grid.FromCache)
	response.JSON(c, http.StatusOK, grid, nil, middleware.ExtractMeta(c))
}

// Day godoc
// @Summary Day detail view
// @Tags Calendar
// @Produce json
// @Param date query string true "Day (YYYY-MM-DD)"
// @Param asOf query string false "Reference day for status derivation"
// @Success 200 {object} response.Envelope
// @Router /calendar/day [get]
func (h *CalendarHandler) Day(c *gin.Context) {
	asOf, err := asOfDay(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	day, err := models.ParseDateOnly(c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	detail, err := h.calendar.DayDetail(c.Request.Context(), day, asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
