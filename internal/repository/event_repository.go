package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

// EventRepository persists placement events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs an event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, description, start_date, end_date, start_time, end_time, venue, is_online,
company_details, target_group, target_batch_ids, target_student_ids, stored_status,
total_attendees, selected_students, mail_sent, created_by, cancelled_at, deleted_at, created_at, updated_at`

// List returns events matching filters. Deleted events are excluded
// unless the filter asks for them explicitly.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.PlacementEvent, int, error) {
	base := "FROM placement_events"
	where := []string{"1=1"}
	args := []interface{}{}

	switch {
	case filter.OnlyDeleted:
		where = append(where, "stored_status = 'deleted'")
	case !filter.IncludeDeleted:
		where = append(where, "stored_status <> 'deleted'")
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("end_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("start_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.CreatedBy != "" {
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY start_date ASC, start_time ASC NULLS FIRST LIMIT %d OFFSET %d",
		eventColumns, base, whereClause, size, offset)
	var events []models.PlacementEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list placement events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count placement events: %w", err)
	}
	return events, total, nil
}

// GetByID fetches a placement event.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.PlacementEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM placement_events WHERE id = $1", eventColumns)
	var event models.PlacementEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts a placement event.
func (r *EventRepository) Create(ctx context.Context, event *models.PlacementEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO placement_events (id, title, description, start_date, end_date, start_time, end_time, venue, is_online,
company_details, target_group, target_batch_ids, target_student_ids, stored_status,
total_attendees, selected_students, mail_sent, created_by, cancelled_at, deleted_at, created_at, updated_at)
VALUES (:id, :title, :description, :start_date, :end_date, :start_time, :end_time, :venue, :is_online,
:company_details, :target_group, :target_batch_ids, :target_student_ids, :stored_status,
:total_attendees, :selected_students, :mail_sent, :created_by, :cancelled_at, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create placement event: %w", err)
	}
	return nil
}

// Update modifies an event's editable fields.
func (r *EventRepository) Update(ctx context.Context, event *models.PlacementEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE placement_events SET title = :title, description = :description, start_date = :start_date,
end_date = :end_date, start_time = :start_time, end_time = :end_time, venue = :venue, is_online = :is_online,
company_details = :company_details, target_group = :target_group, target_batch_ids = :target_batch_ids,
target_student_ids = :target_student_ids, stored_status = :stored_status, total_attendees = :total_attendees,
selected_students = :selected_students, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update placement event: %w", err)
	}
	return nil
}

// MarkCancelled persists the cancelled state. Phase one of the two-phase
// cancel-and-delete flow; the row stays visible until the delete phase.
func (r *EventRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE placement_events SET stored_status = 'cancelled', cancelled_at = $2, updated_at = $2
WHERE id = $1 AND stored_status NOT IN ('cancelled', 'deleted')`
	if _, err := r.db.ExecContext(ctx, query, id, at.UTC()); err != nil {
		return fmt.Errorf("mark event cancelled: %w", err)
	}
	return nil
}

// SoftDelete marks the event deleted. Deleted is terminal; repeated
// calls are no-ops.
func (r *EventRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE placement_events SET stored_status = 'deleted', deleted_at = $2, updated_at = $2
WHERE id = $1 AND stored_status <> 'deleted'`
	if _, err := r.db.ExecContext(ctx, query, id, at.UTC()); err != nil {
		return fmt.Errorf("soft delete event: %w", err)
	}
	return nil
}

// LockMailSent flips the one-shot upload gate. Returns false when the
// gate was already taken, without touching the row.
func (r *EventRepository) LockMailSent(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE placement_events SET mail_sent = TRUE, updated_at = $2 WHERE id = $1 AND mail_sent = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("lock mail sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lock mail sent result: %w", err)
	}
	return affected == 1, nil
}

// ReleaseMailSent reopens the upload gate after a failed upload.
func (r *EventRepository) ReleaseMailSent(ctx context.Context, id string) error {
	const query = `UPDATE placement_events SET mail_sent = FALSE, updated_at = $2 WHERE id = $1 AND mail_sent = TRUE`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("release mail sent: %w", err)
	}
	return nil
}

// SetSelectedCount updates the denormalized selection counter.
func (r *EventRepository) SetSelectedCount(ctx context.Context, id string, count int) error {
	const query = `UPDATE placement_events SET selected_students = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, count, time.Now().UTC()); err != nil {
		return fmt.Errorf("set selected count: %w", err)
	}
	return nil
}
