package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

// RegistrationRepository persists per-event student registrations.
// Duplicate identities are accepted at write time; the read path
// deduplicates (first occurrence wins).
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs a registration repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// ListByEvent returns all registration rows for an event in insertion order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]models.EventRegistration, error) {
	const query = `SELECT id, event_id, roll_no, email, full_name, batch_id, phone, registered_at
FROM event_registrations WHERE event_id = $1 ORDER BY registered_at ASC, id ASC`
	var regs []models.EventRegistration
	if err := r.db.SelectContext(ctx, &regs, query, eventID); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// Create inserts a registration row.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.EventRegistration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now().UTC()
	}
	const query = `INSERT INTO event_registrations (id, event_id, roll_no, email, full_name, batch_id, phone, registered_at)
VALUES (:id, :event_id, :roll_no, :email, :full_name, :batch_id, :phone, :registered_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// CountByEvent returns the raw (non-deduplicated) registration count.
func (r *RegistrationRepository) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM event_registrations WHERE event_id = $1", eventID); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return total, nil
}
