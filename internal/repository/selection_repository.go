package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

// SelectionRepository persists the post-completion selection ledger.
type SelectionRepository struct {
	db *sqlx.DB
}

// NewSelectionRepository constructs a selection repository.
func NewSelectionRepository(db *sqlx.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// ListByEvent returns all selections for an event.
func (r *SelectionRepository) ListByEvent(ctx context.Context, eventID string) ([]models.EventSelection, error) {
	const query = `SELECT id, event_id, roll_no, email, full_name, selected_by, selected_at
FROM event_selections WHERE event_id = $1 ORDER BY selected_at ASC, id ASC`
	var selections []models.EventSelection
	if err := r.db.SelectContext(ctx, &selections, query, eventID); err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	return selections, nil
}

// Create appends one selection row.
func (r *SelectionRepository) Create(ctx context.Context, sel *models.EventSelection) error {
	if sel.ID == "" {
		sel.ID = uuid.NewString()
	}
	if sel.SelectedAt.IsZero() {
		sel.SelectedAt = time.Now().UTC()
	}
	const query = `INSERT INTO event_selections (id, event_id, roll_no, email, full_name, selected_by, selected_at)
VALUES (:id, :event_id, :roll_no, :email, :full_name, :selected_by, :selected_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sel); err != nil {
		return fmt.Errorf("create selection: %w", err)
	}
	return nil
}

// CreateBatch appends selections in one transaction; used by the
// selected-list upload path.
func (r *SelectionRepository) CreateBatch(ctx context.Context, selections []models.EventSelection) error {
	if len(selections) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin selection batch: %w", err)
	}
	const query = `INSERT INTO event_selections (id, event_id, roll_no, email, full_name, selected_by, selected_at)
VALUES (:id, :event_id, :roll_no, :email, :full_name, :selected_by, :selected_at)`
	for i := range selections {
		if selections[i].ID == "" {
			selections[i].ID = uuid.NewString()
		}
		if selections[i].SelectedAt.IsZero() {
			selections[i].SelectedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, query, selections[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert selection batch row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit selection batch: %w", err)
	}
	return nil
}

// ExistsByEmail reports whether a selection exists for the event under a
// case-insensitive email match.
func (r *SelectionRepository) ExistsByEmail(ctx context.Context, eventID, email string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM event_selections WHERE event_id = $1 AND LOWER(email) = LOWER($2))`
	if err := r.db.GetContext(ctx, &exists, query, eventID, email); err != nil {
		return false, fmt.Errorf("check selection exists: %w", err)
	}
	return exists, nil
}

// DeleteByEmail removes a selection by case-insensitive email match and
// returns whether a row was removed.
func (r *SelectionRepository) DeleteByEmail(ctx context.Context, eventID, email string) (bool, error) {
	const query = `DELETE FROM event_selections WHERE event_id = $1 AND LOWER(email) = LOWER($2)`
	res, err := r.db.ExecContext(ctx, query, eventID, email)
	if err != nil {
		return false, fmt.Errorf("delete selection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete selection result: %w", err)
	}
	return affected > 0, nil
}

// CountByEvent returns the selection count for an event.
func (r *SelectionRepository) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM event_selections WHERE event_id = $1", eventID); err != nil {
		return 0, fmt.Errorf("count selections: %w", err)
	}
	return total, nil
}
