package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/dto"
	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type dashboardStudentSource interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type dashboardNotificationSource interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
}

// DashboardService aggregates per-role summary views.
type DashboardService struct {
	events        calendarEventSource
	students      dashboardStudentSource
	notifications dashboardNotificationSource
	logger        *zap.Logger
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(events calendarEventSource, students dashboardStudentSource, notifications dashboardNotificationSource, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{events: events, students: students, notifications: notifications, logger: logger}
}

// AdminSummary aggregates portal-wide placement activity. Status counts
// use derived statuses, so the numbers track the calendar day.
func (s *DashboardService) AdminSummary(ctx context.Context, today models.DateOnly) (*dto.AdminDashboardResponse, error) {
	events, total, err := s.events.List(ctx, models.EventFilter{PageSize: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events")
	}

	resp := &dto.AdminDashboardResponse{TotalEvents: total}
	upcoming := make([]models.PlacementEvent, 0)
	for i := range events {
		events[i].Derive(today)
		switch events[i].DerivedStatus {
		case models.EventStatusScheduled:
			resp.ScheduledEvents++
			upcoming = append(upcoming, events[i])
		case models.EventStatusOngoing:
			resp.OngoingEvents++
		case models.EventStatusCompleted:
			resp.CompletedEvents++
			resp.TotalSelections += events[i].SelectedCount
		case models.EventStatusCancelled:
			resp.CancelledEvents++
		}
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartDate.Before(upcoming[j].StartDate)
	})
	if len(upcoming) > 5 {
		upcoming = upcoming[:5]
	}
	resp.Upcoming = toDashboardEvents(upcoming)

	if s.students != nil {
		_, studentTotal, err := s.students.List(ctx, models.StudentFilter{PageSize: 1})
		if err != nil {
			s.logger.Warn("failed to count students for dashboard", zap.Error(err))
		} else {
			resp.TotalStudents = studentTotal
		}
	}
	return resp, nil
}

// StudentSummary builds the personalised student view.
func (s *DashboardService) StudentSummary(ctx context.Context, email string, today models.DateOnly) (*dto.StudentDashboardResponse, error) {
	events, _, err := s.events.List(ctx, models.EventFilter{PageSize: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events")
	}

	resp := &dto.StudentDashboardResponse{
		Upcoming: []dto.DashboardEvent{},
		Ongoing:  []dto.DashboardEvent{},
	}
	upcoming := make([]models.PlacementEvent, 0)
	ongoing := make([]models.PlacementEvent, 0)
	for i := range events {
		events[i].Derive(today)
		switch events[i].DerivedStatus {
		case models.EventStatusScheduled:
			upcoming = append(upcoming, events[i])
		case models.EventStatusOngoing:
			ongoing = append(ongoing, events[i])
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartDate.Before(upcoming[j].StartDate)
	})
	resp.Upcoming = toDashboardEvents(upcoming)
	resp.Ongoing = toDashboardEvents(ongoing)

	if s.notifications != nil && email != "" {
		_, total, err := s.notifications.List(ctx, models.NotificationFilter{RecipientEmail: email, PageSize: 1})
		if err != nil {
			s.logger.Warn("failed to count notifications for dashboard", zap.Error(err))
		} else {
			resp.Notifications = total
		}
	}
	return resp, nil
}

func toDashboardEvents(events []models.PlacementEvent) []dto.DashboardEvent {
	out := make([]dto.DashboardEvent, 0, len(events))
	for _, event := range events {
		out = append(out, dto.DashboardEvent{
			ID:        event.ID,
			Title:     event.Title,
			Company:   event.Company.CompanyName,
			StartDate: event.StartDate.String(),
			EndDate:   event.EndDate.String(),
			Status:    string(event.DerivedStatus),
		})
	}
	return out
}
