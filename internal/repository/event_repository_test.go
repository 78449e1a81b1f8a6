package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

func TestEventRepositoryListExcludesDeleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "start_date", "end_date", "start_time", "end_time", "venue", "is_online",
		"company_details", "target_group", "target_batch_ids", "target_student_ids", "stored_status",
		"total_attendees", "selected_students", "mail_sent", "created_by", "cancelled_at", "deleted_at", "created_at", "updated_at",
	}).AddRow("e1", "Acme Drive", "On-campus drive", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		nil, nil, nil, false, []byte(`{"company_name":"Acme","package_details":{"min":0,"max":0,"currency":""}}`),
		string(models.TargetGroupBatches), "{}", "{}", string(models.EventStatusScheduled),
		0, 0, false, "tpo-1", nil, nil, now, now)

	mock.ExpectQuery("SELECT .* FROM placement_events WHERE 1=1 AND stored_status <> 'deleted'").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM placement_events WHERE 1=1 AND stored_status <> 'deleted'")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	events, total, err := repo.List(context.Background(), models.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Acme", events[0].Company.CompanyName)
	assert.Equal(t, models.NewDateOnly(2025, time.March, 10), events[0].StartDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("INSERT INTO placement_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.PlacementEvent{
		Title:        "Acme Drive",
		Description:  "On-campus drive",
		StartDate:    models.NewDateOnly(2025, time.March, 10),
		EndDate:      models.NewDateOnly(2025, time.March, 12),
		TargetGroup:  models.TargetGroupBatches,
		StoredStatus: models.EventStatusScheduled,
		CreatedBy:    "tpo-1",
	}
	err := repo.Create(context.Background(), event)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryLockMailSent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE placement_events SET mail_sent = TRUE, updated_at = $2 WHERE id = $1 AND mail_sent = FALSE")).
		WithArgs("e1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	locked, err := repo.LockMailSent(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, locked)

	// Second attempt matches zero rows: the gate is already taken.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE placement_events SET mail_sent = TRUE, updated_at = $2 WHERE id = $1 AND mail_sent = FALSE")).
		WithArgs("e1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	locked, err = repo.LockMailSent(context.Background(), "e1")
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("UPDATE placement_events SET stored_status = 'deleted'").
		WithArgs("e1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SoftDelete(context.Background(), "e1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
