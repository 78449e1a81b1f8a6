package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

// gridCells is the fixed month grid size: six weeks of seven days.
const gridCells = 42

type calendarEventSource interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.PlacementEvent, int, error)
}

// CalendarService builds the month grid and day detail views.
type CalendarService struct {
	events   calendarEventSource
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCalendarService constructs the calendar service.
func NewCalendarService(events calendarEventSource, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CalendarService{events: events, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// MonthGrid returns the fixed 42-cell grid for a displayed month. Events
// land on the cell matching their start date only; multi-day spans are
// not smeared across cells.
func (s *CalendarService) MonthGrid(ctx context.Context, year int, month time.Month, asOf models.DateOnly) (*models.MonthGrid, error) {
	if month < time.January || month > time.December {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month out of range")
	}

	cacheKey := fmt.Sprintf("calendar:grid:%04d-%02d:%s", year, month, asOf.String())
	if s.cache.Enabled() {
		var cached models.MonthGrid
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			cached.FromCache = true
			return &cached, nil
		}
	}

	events, err := s.monthEvents(ctx, year, month, asOf)
	if err != nil {
		return nil, err
	}

	byStartDay := make(map[models.DateOnly][]models.PlacementEvent)
	for _, event := range events {
		byStartDay[event.StartDate] = append(byStartDay[event.StartDate], event)
	}

	first := models.NewDateOnly(year, month, 1)
	leading := int(first.Weekday())
	daysInMonth := models.DaysInMonth(year, month)

	grid := &models.MonthGrid{Year: year, Month: int(month), Cells: make([]models.CalendarCell, gridCells)}
	for i := 0; i < gridCells; i++ {
		day := i - leading + 1
		if day < 1 || day > daysInMonth {
			grid.Cells[i] = models.CalendarCell{Padding: true}
			continue
		}
		date := models.NewDateOnly(year, month, day)
		grid.Cells[i] = models.CalendarCell{Date: date, Events: byStartDay[date]}
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, grid, s.cacheTTL); err != nil {
			s.logger.Warn("calendar grid cache set failed", zap.Error(err))
		}
	}
	return grid, nil
}

// DayDetail resolves the event list for a selected day. Today is
// privileged: when ongoing events cover it, those are surfaced instead
// of start-date matches.
func (s *CalendarService) DayDetail(ctx context.Context, day, today models.DateOnly) (*models.DayDetail, error) {
	events, err := s.monthEvents(ctx, day.Year, day.Month, today)
	if err != nil {
		return nil, err
	}

	detail := &models.DayDetail{Date: day, CanCreate: CanCreateOn(day, today)}

	if day.Equal(today) {
		for _, event := range events {
			if event.DerivedStatus == models.EventStatusOngoing {
				detail.Events = append(detail.Events, event)
			}
		}
		if len(detail.Events) > 0 {
			detail.OngoingView = true
			return detail, nil
		}
	}

	for _, event := range events {
		if event.StartDate.Equal(day) {
			detail.Events = append(detail.Events, event)
		}
	}
	if detail.Events == nil {
		detail.Events = []models.PlacementEvent{}
	}
	return detail, nil
}

// CanCreateOn reports whether a new event may be scheduled on the day.
// Past days are rejected.
func CanCreateOn(day, today models.DateOnly) bool {
	return !day.Before(today)
}

// monthEvents loads events overlapping the displayed month with derived
// statuses attached. Ongoing multi-day events may start before day 1, so
// the window is widened backwards.
func (s *CalendarService) monthEvents(ctx context.Context, year int, month time.Month, asOf models.DateOnly) ([]models.PlacementEvent, error) {
	from := models.NewDateOnly(year, month, 1).AddDays(-31)
	to := models.NewDateOnly(year, month, models.DaysInMonth(year, month))
	filter := models.EventFilter{From: &from, To: &to, PageSize: 200}
	events, _, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar events")
	}
	for i := range events {
		events[i].Derive(asOf)
	}
	return events, nil
}
