package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.PlacementEvent, int, error)
	GetByID(ctx context.Context, id string) (*models.PlacementEvent, error)
	Create(ctx context.Context, event *models.PlacementEvent) error
	Update(ctx context.Context, event *models.PlacementEvent) error
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// CreateEventRequest is the payload for scheduling a placement event.
type CreateEventRequest struct {
	Title            string                `json:"title" validate:"required"`
	Description      string                `json:"description"`
	StartDate        string                `json:"start_date" validate:"required"`
	EndDate          string                `json:"end_date" validate:"required"`
	StartTime        *string               `json:"start_time,omitempty"`
	EndTime          *string               `json:"end_time,omitempty"`
	Venue            *string               `json:"venue,omitempty"`
	IsOnline         bool                  `json:"is_online"`
	Company          models.CompanyDetails `json:"company_details"`
	TargetGroup      models.TargetGroup    `json:"target_group" validate:"required,oneof=batch-specific specific-students"`
	TargetBatchIDs   []string              `json:"target_batch_ids,omitempty"`
	TargetStudentIDs []string              `json:"target_student_ids,omitempty"`
}

// UpdateEventRequest mirrors the create payload for edits.
type UpdateEventRequest CreateEventRequest

// CompleteEventRequest carries the summary counters entered when a TPO
// closes out an event.
type CompleteEventRequest struct {
	TotalAttendees   int `json:"total_attendees" validate:"min=0"`
	SelectedStudents int `json:"selected_students" validate:"min=0"`
}

// EventService owns the placement event lifecycle.
type EventService struct {
	repo      eventRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs the event service.
func NewEventService(repo eventRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns events with their effective status as of the reference day.
func (s *EventService) List(ctx context.Context, filter models.EventFilter, asOf models.DateOnly) ([]models.PlacementEvent, *models.Pagination, error) {
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	for i := range events {
		events[i].Derive(asOf)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return events, pagination, nil
}

// Get loads one event and attaches its effective status.
func (s *EventService) Get(ctx context.Context, id string, asOf models.DateOnly) (*models.PlacementEvent, error) {
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	event.Derive(asOf)
	return event, nil
}

// Create schedules a new placement event.
func (s *EventService) Create(ctx context.Context, req CreateEventRequest, actorID string, today models.DateOnly) (*models.PlacementEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	startDate, endDate, err := parseEventDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if startDate.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrPastDate, "")
	}
	if err := validateTargetGroup(req.TargetGroup, req.TargetBatchIDs, req.TargetStudentIDs); err != nil {
		return nil, err
	}

	event := &models.PlacementEvent{
		Title:            req.Title,
		Description:      req.Description,
		StartDate:        startDate,
		EndDate:          endDate,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Venue:            req.Venue,
		IsOnline:         req.IsOnline,
		Company:          req.Company,
		TargetGroup:      req.TargetGroup,
		TargetBatchIDs:   req.TargetBatchIDs,
		TargetStudentIDs: req.TargetStudentIDs,
		StoredStatus:     models.EventStatusScheduled,
		CreatedBy:        actorID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.invalidateCaches(ctx)
	event.Derive(today)
	return event, nil
}

// Update edits a scheduled or ongoing event. Terminal events reject edits.
func (s *EventService) Update(ctx context.Context, id string, req UpdateEventRequest, today models.DateOnly) (*models.PlacementEvent, error) {
	if err := s.validator.Struct(CreateEventRequest(req)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	startDate, endDate, err := parseEventDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if err := validateTargetGroup(req.TargetGroup, req.TargetBatchIDs, req.TargetStudentIDs); err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.StoredStatus.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cancelled or deleted events cannot be edited")
	}

	event.Title = req.Title
	event.Description = req.Description
	event.StartDate = startDate
	event.EndDate = endDate
	event.StartTime = req.StartTime
	event.EndTime = req.EndTime
	event.Venue = req.Venue
	event.IsOnline = req.IsOnline
	event.Company = req.Company
	event.TargetGroup = req.TargetGroup
	event.TargetBatchIDs = req.TargetBatchIDs
	event.TargetStudentIDs = req.TargetStudentIDs
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	s.invalidateCaches(ctx)
	event.Derive(today)
	return event, nil
}

// Complete marks an event completed and records the summary counters the
// operator submitted. The counters are stored as entered, never recomputed.
func (s *EventService) Complete(ctx context.Context, id string, req CompleteEventRequest, today models.DateOnly) (*models.PlacementEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid summary payload")
	}
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.StoredStatus.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cancelled or deleted events cannot be completed")
	}
	event.StoredStatus = models.EventStatusCompleted
	event.TotalAttendees = req.TotalAttendees
	event.SelectedCount = req.SelectedStudents
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete event")
	}
	s.invalidateCaches(ctx)
	event.Derive(today)
	return event, nil
}

// Cancel puts the event into its cancelled state. Cancelled is sticky:
// derivation never overrides it.
func (s *EventService) Cancel(ctx context.Context, id string) error {
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return err
	}
	if event.StoredStatus.IsTerminal() {
		return appErrors.Clone(appErrors.ErrInvalidState, "event is already cancelled or deleted")
	}
	if err := s.repo.MarkCancelled(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel event")
	}
	s.invalidateCaches(ctx)
	return nil
}

// Delete soft-deletes an event in two phases: the event is first marked
// cancelled, then marked deleted. Readers polling between the phases see
// the cancelled state.
func (s *EventService) Delete(ctx context.Context, id string) error {
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return err
	}
	if event.StoredStatus == models.EventStatusDeleted {
		return appErrors.Clone(appErrors.ErrInvalidState, "event is already deleted")
	}
	now := time.Now().UTC()
	if event.StoredStatus != models.EventStatusCancelled {
		if err := s.repo.MarkCancelled(ctx, id, now); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel event")
		}
	}
	if err := s.repo.SoftDelete(ctx, id, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.invalidateCaches(ctx)
	return nil
}

// ListDeleted returns soft-deleted events for the admin recycle view.
func (s *EventService) ListDeleted(ctx context.Context, page, size int) ([]models.PlacementEvent, *models.Pagination, error) {
	filter := models.EventFilter{OnlyDeleted: true, Page: page, PageSize: size}
	return s.List(ctx, filter, models.Today())
}

func (s *EventService) loadEvent(ctx context.Context, id string) (*models.PlacementEvent, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

func (s *EventService) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "calendar:*"); err != nil {
		s.logger.Warn("calendar cache invalidation failed", zap.Error(err))
	}
}

func parseEventDates(start, end string) (models.DateOnly, models.DateOnly, error) {
	startDate, err := models.ParseDateOnly(start)
	if err != nil {
		return models.DateOnly{}, models.DateOnly{}, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	endDate, err := models.ParseDateOnly(end)
	if err != nil {
		return models.DateOnly{}, models.DateOnly{}, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if endDate.Before(startDate) {
		return models.DateOnly{}, models.DateOnly{}, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	return startDate, endDate, nil
}

func validateTargetGroup(group models.TargetGroup, batchIDs, studentIDs []string) error {
	switch group {
	case models.TargetGroupBatches:
		if len(batchIDs) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "batch-specific events require target batch ids")
		}
	case models.TargetGroupStudents:
		if len(studentIDs) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "specific-students events require target student ids")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown target group")
	}
	return nil
}
