package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

type mockEventSource struct {
	events  []models.PlacementEvent
	listErr error
}

func (m *mockEventSource) List(ctx context.Context, filter models.EventFilter) ([]models.PlacementEvent, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.events, len(m.events), nil
}

func TestMonthGridAlwaysHas42Cells(t *testing.T) {
	svc := NewCalendarService(&mockEventSource{}, nil, 0, nil)

	months := []struct {
		year  int
		month time.Month
	}{
		{2024, time.February}, // leap year
		{2025, time.February},
		{2025, time.March},
		{2025, time.June}, // 30 days starting on Sunday
		{2026, time.August},
	}
	for _, m := range months {
		grid, err := svc.MonthGrid(context.Background(), m.year, m.month, models.Today())
		require.NoError(t, err)
		assert.Len(t, grid.Cells, 42, "%d-%d", m.year, m.month)
	}
}

func TestMonthGridPaddingAndDayPlacement(t *testing.T) {
	// March 2025 starts on a Saturday: six leading padding cells.
	event := models.PlacementEvent{
		ID:        "e1",
		Title:     "Acme Drive",
		StartDate: models.NewDateOnly(2025, time.March, 10),
		EndDate:   models.NewDateOnly(2025, time.March, 12),
	}
	svc := NewCalendarService(&mockEventSource{events: []models.PlacementEvent{event}}, nil, 0, nil)

	grid, err := svc.MonthGrid(context.Background(), 2025, time.March, models.NewDateOnly(2025, time.March, 11))
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		assert.True(t, grid.Cells[i].Padding, "cell %d", i)
	}
	assert.False(t, grid.Cells[6].Padding)
	assert.Equal(t, models.NewDateOnly(2025, time.March, 1), grid.Cells[6].Date)

	// The multi-day event appears on its start day only.
	for i, cell := range grid.Cells {
		if cell.Date.Equal(event.StartDate) {
			assert.Len(t, cell.Events, 1, "cell %d", i)
		} else {
			assert.Empty(t, cell.Events, "cell %d", i)
		}
	}
}

func TestDayDetailPrivilegesOngoingOnToday(t *testing.T) {
	today := models.NewDateOnly(2025, time.March, 11)
	ongoing := models.PlacementEvent{
		ID:        "e1",
		Title:     "Acme Drive",
		StartDate: models.NewDateOnly(2025, time.March, 10),
		EndDate:   models.NewDateOnly(2025, time.March, 12),
	}
	startingToday := models.PlacementEvent{
		ID:        "e2",
		Title:     "Resume Workshop",
		StartDate: today,
		EndDate:   today,
	}
	svc := NewCalendarService(&mockEventSource{events: []models.PlacementEvent{ongoing, startingToday}}, nil, 0, nil)

	detail, err := svc.DayDetail(context.Background(), today, today)
	require.NoError(t, err)
	assert.True(t, detail.OngoingView)
	// Both events are ongoing on the 11th, so both surface.
	assert.Len(t, detail.Events, 2)
}

func TestDayDetailFallsBackToStartDateMatches(t *testing.T) {
	day := models.NewDateOnly(2025, time.March, 10)
	today := models.NewDateOnly(2025, time.March, 1)
	event := models.PlacementEvent{
		ID:        "e1",
		StartDate: day,
		EndDate:   models.NewDateOnly(2025, time.March, 12),
	}
	svc := NewCalendarService(&mockEventSource{events: []models.PlacementEvent{event}}, nil, 0, nil)

	detail, err := svc.DayDetail(context.Background(), day, today)
	require.NoError(t, err)
	assert.False(t, detail.OngoingView)
	require.Len(t, detail.Events, 1)
	assert.Equal(t, "e1", detail.Events[0].ID)
	assert.True(t, detail.CanCreate)
}

func TestCanCreateOnRejectsPastDays(t *testing.T) {
	today := models.NewDateOnly(2025, time.March, 10)

	assert.False(t, CanCreateOn(models.NewDateOnly(2025, time.March, 9), today))
	assert.True(t, CanCreateOn(today, today))
	assert.True(t, CanCreateOn(models.NewDateOnly(2025, time.March, 11), today))
}
