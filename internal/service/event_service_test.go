package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type mockEventRepo struct {
	events        []models.PlacementEvent
	byID          map[string]*models.PlacementEvent
	calls         []string
	softDeleteErr error
}

func (m *mockEventRepo) List(ctx context.Context, filter models.EventFilter) ([]models.PlacementEvent, int, error) {
	return m.events, len(m.events), nil
}

func (m *mockEventRepo) GetByID(ctx context.Context, id string) (*models.PlacementEvent, error) {
	if event, ok := m.byID[id]; ok {
		copy := *event
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEventRepo) Create(ctx context.Context, event *models.PlacementEvent) error {
	event.ID = "new-event"
	m.calls = append(m.calls, "create")
	return nil
}

func (m *mockEventRepo) Update(ctx context.Context, event *models.PlacementEvent) error {
	m.calls = append(m.calls, "update")
	if m.byID == nil {
		m.byID = make(map[string]*models.PlacementEvent)
	}
	copy := *event
	m.byID[event.ID] = &copy
	return nil
}

func (m *mockEventRepo) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	m.calls = append(m.calls, "cancel")
	if event, ok := m.byID[id]; ok {
		event.StoredStatus = models.EventStatusCancelled
		event.CancelledAt = &at
	}
	return nil
}

func (m *mockEventRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	m.calls = append(m.calls, "delete")
	if m.softDeleteErr != nil {
		return m.softDeleteErr
	}
	if event, ok := m.byID[id]; ok {
		event.StoredStatus = models.EventStatusDeleted
		event.DeletedAt = &at
	}
	return nil
}

func validCreateRequest() CreateEventRequest {
	return CreateEventRequest{
		Title:          "Acme Drive",
		StartDate:      "2025-03-10",
		EndDate:        "2025-03-12",
		TargetGroup:    models.TargetGroupBatches,
		TargetBatchIDs: []string{"b1"},
		Company:        models.CompanyDetails{CompanyName: "Acme"},
	}
}

func TestEventServiceCreate(t *testing.T) {
	repo := &mockEventRepo{}
	svc := NewEventService(repo, nil, nil, nil)
	today := models.NewDateOnly(2025, time.March, 1)

	event, err := svc.Create(context.Background(), validCreateRequest(), "tpo-1", today)
	require.NoError(t, err)
	assert.Equal(t, "new-event", event.ID)
	assert.Equal(t, models.EventStatusScheduled, event.StoredStatus)
	assert.Equal(t, models.EventStatusScheduled, event.DerivedStatus)
	assert.Equal(t, "tpo-1", event.CreatedBy)
}

func TestEventServiceCreateRejectsPastStart(t *testing.T) {
	svc := NewEventService(&mockEventRepo{}, nil, nil, nil)
	today := models.NewDateOnly(2025, time.March, 11)

	_, err := svc.Create(context.Background(), validCreateRequest(), "tpo-1", today)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPastDate.Code, appErrors.FromError(err).Code)
}

func TestEventServiceCreateRejectsInvertedDates(t *testing.T) {
	svc := NewEventService(&mockEventRepo{}, nil, nil, nil)
	req := validCreateRequest()
	req.StartDate = "2025-03-12"
	req.EndDate = "2025-03-10"

	_, err := svc.Create(context.Background(), req, "tpo-1", models.NewDateOnly(2025, time.March, 1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventServiceCreateValidatesTargetGroup(t *testing.T) {
	svc := NewEventService(&mockEventRepo{}, nil, nil, nil)
	req := validCreateRequest()
	req.TargetBatchIDs = nil

	_, err := svc.Create(context.Background(), req, "tpo-1", models.NewDateOnly(2025, time.March, 1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventServiceUpdateRejectsTerminal(t *testing.T) {
	repo := &mockEventRepo{byID: map[string]*models.PlacementEvent{
		"e1": {ID: "e1", StoredStatus: models.EventStatusCancelled},
	}}
	svc := NewEventService(repo, nil, nil, nil)

	_, err := svc.Update(context.Background(), "e1", UpdateEventRequest(validCreateRequest()), models.NewDateOnly(2025, time.March, 1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEventServiceCompleteStoresSummary(t *testing.T) {
	repo := &mockEventRepo{byID: map[string]*models.PlacementEvent{
		"e1": {
			ID:           "e1",
			StartDate:    models.NewDateOnly(2025, time.March, 10),
			EndDate:      models.NewDateOnly(2025, time.March, 12),
			StoredStatus: models.EventStatusScheduled,
		},
	}}
	svc := NewEventService(repo, nil, nil, nil)

	event, err := svc.Complete(context.Background(), "e1", CompleteEventRequest{TotalAttendees: 50, SelectedStudents: 8}, models.NewDateOnly(2025, time.March, 15))
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, event.StoredStatus)
	summary := event.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, 50, summary.TotalAttendees)
	assert.Equal(t, 8, summary.SelectedStudents)
}

func TestEventServiceDeleteIsTwoPhase(t *testing.T) {
	repo := &mockEventRepo{byID: map[string]*models.PlacementEvent{
		"e1": {ID: "e1", StoredStatus: models.EventStatusScheduled},
	}}
	svc := NewEventService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cancel", "delete"}, repo.calls)
	assert.Equal(t, models.EventStatusDeleted, repo.byID["e1"].StoredStatus)
}

func TestEventServiceDeleteFailedPhaseTwoLeavesCancelled(t *testing.T) {
	repo := &mockEventRepo{byID: map[string]*models.PlacementEvent{
		"e1": {ID: "e1", StoredStatus: models.EventStatusScheduled},
	}}
	repo.softDeleteErr = errors.New("delete failed")
	svc := NewEventService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), "e1")
	require.Error(t, err)
	// Phase one committed; the failed delete leaves a valid cancelled state.
	assert.Equal(t, []string{"cancel", "delete"}, repo.calls)
	assert.Equal(t, models.EventStatusCancelled, repo.byID["e1"].StoredStatus)

	repo.softDeleteErr = nil
	repo.calls = nil
	err = svc.Delete(context.Background(), "e1")
	require.NoError(t, err)
	// The retry must not re-cancel.
	assert.Equal(t, []string{"delete"}, repo.calls)
	assert.Equal(t, models.EventStatusDeleted, repo.byID["e1"].StoredStatus)
}

func TestEventServiceDeleteSkipsCancelWhenAlreadyCancelled(t *testing.T) {
	repo := &mockEventRepo{byID: map[string]*models.PlacementEvent{
		"e1": {ID: "e1", StoredStatus: models.EventStatusCancelled},
	}}
	svc := NewEventService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"delete"}, repo.calls)
}

func TestEventServiceDeleteRejectsDeleted(t *testing.T) {
	repo := &mockEventRepo{byID: map[string]*models.PlacementEvent{
		"e1": {ID: "e1", StoredStatus: models.EventStatusDeleted},
	}}
	svc := NewEventService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEventServiceCancelNotFound(t *testing.T) {
	svc := NewEventService(&mockEventRepo{}, nil, nil, nil)

	err := svc.Cancel(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEventServiceListAttachesDerivedStatus(t *testing.T) {
	repo := &mockEventRepo{events: []models.PlacementEvent{
		{
			ID:           "past",
			StartDate:    models.NewDateOnly(2025, time.February, 1),
			EndDate:      models.NewDateOnly(2025, time.February, 2),
			StoredStatus: models.EventStatusScheduled,
		},
		{
			ID:           "cancelled",
			StartDate:    models.NewDateOnly(2025, time.February, 1),
			EndDate:      models.NewDateOnly(2025, time.February, 2),
			StoredStatus: models.EventStatusCancelled,
		},
	}}
	svc := NewEventService(repo, nil, nil, nil)

	events, pagination, err := svc.List(context.Background(), models.EventFilter{}, models.NewDateOnly(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, models.EventStatusCompleted, events[0].DerivedStatus)
	assert.Equal(t, models.EventStatusCancelled, events[1].DerivedStatus)
}
