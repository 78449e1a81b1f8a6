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
	"github.com/noah-isme/ctp-api/pkg/jobs"
)

type mockNotificationRepo struct {
	notifications map[string]*models.Notification
	createErr     error
}

func (m *mockNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var out []models.Notification
	for _, n := range m.notifications {
		out = append(out, *n)
	}
	return out, len(out), nil
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.notifications == nil {
		m.notifications = make(map[string]*models.Notification)
	}
	n.ID = "n-1"
	n.Status = models.NotificationStatusPending
	copy := *n
	m.notifications[n.ID] = &copy
	return nil
}

func (m *mockNotificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := m.notifications[id]; ok {
		copy := *n
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id string, at time.Time, attempts int) error {
	if n, ok := m.notifications[id]; ok {
		n.Status = models.NotificationStatusSent
		n.SentAt = &at
		n.Attempts = attempts
	}
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id string, attempts int) error {
	if n, ok := m.notifications[id]; ok {
		n.Status = models.NotificationStatusFailed
		n.Attempts = attempts
	}
	return nil
}

type failingSender struct {
	err   error
	sent  int
	calls []string
}

func (s *failingSender) Send(ctx context.Context, n *models.Notification) error {
	s.calls = append(s.calls, n.RecipientEmail)
	if s.err != nil {
		return s.err
	}
	s.sent++
	return nil
}

func TestNotifySelectionCreatesAndEnqueues(t *testing.T) {
	repo := &mockNotificationRepo{}
	queue := &mockDispatcher{}
	svc := NewNotificationService(repo, queue, true, nil)

	event := &models.PlacementEvent{ID: "e1", Title: "Acme Drive", Company: models.CompanyDetails{CompanyName: "Acme"}}
	svc.NotifySelection(context.Background(), event, []models.EventSelection{
		{EventID: "e1", Email: "ananya@campus.edu", FullName: "Ananya"},
	})

	require.Len(t, repo.notifications, 1)
	require.Len(t, queue.enqueued, 1)
	for _, n := range repo.notifications {
		assert.Equal(t, "ananya@campus.edu", n.RecipientEmail)
		assert.Contains(t, n.Subject, "Acme")
	}
}

func TestNotifySelectionDisabled(t *testing.T) {
	repo := &mockNotificationRepo{}
	queue := &mockDispatcher{}
	svc := NewNotificationService(repo, queue, false, nil)

	svc.NotifySelection(context.Background(), &models.PlacementEvent{ID: "e1"}, []models.EventSelection{{Email: "a@b.c"}})
	assert.Empty(t, repo.notifications)
	assert.Empty(t, queue.enqueued)
}

func TestNotificationWorkerDeliversAndMarksSent(t *testing.T) {
	repo := &mockNotificationRepo{notifications: map[string]*models.Notification{
		"n-1": {ID: "n-1", RecipientEmail: "ananya@campus.edu", Status: models.NotificationStatusPending},
	}}
	sender := &failingSender{}
	worker := NewNotificationWorker(repo, sender, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatusSent, repo.notifications["n-1"].Status)
	assert.Equal(t, 1, sender.sent)
}

func TestNotificationWorkerMarksFailedWhenRetriesExhausted(t *testing.T) {
	repo := &mockNotificationRepo{notifications: map[string]*models.Notification{
		"n-1": {ID: "n-1", RecipientEmail: "ananya@campus.edu", Status: models.NotificationStatusPending},
	}}
	sender := &failingSender{err: errors.New("smtp down")}
	worker := NewNotificationWorker(repo, sender, 2, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "n-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.NotificationStatusPending, repo.notifications["n-1"].Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: "n-1", Attempt: 2})
	require.Error(t, err)
	assert.Equal(t, models.NotificationStatusFailed, repo.notifications["n-1"].Status)
}

func TestNotificationWorkerSkipsMissingRow(t *testing.T) {
	worker := NewNotificationWorker(&mockNotificationRepo{}, &failingSender{}, 3, nil)
	err := worker.Handle(context.Background(), jobs.Job{ID: "ghost"})
	assert.NoError(t, err)
}
