package models

import "time"

// NotificationStatus tracks delivery state of a notification record.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// Notification is a persisted message for a student, delivered
// asynchronously and read by polling.
type Notification struct {
	ID             string             `db:"id" json:"id"`
	RecipientEmail string             `db:"recipient_email" json:"recipient_email"`
	EventID        *string            `db:"event_id" json:"event_id,omitempty"`
	Subject        string             `db:"subject" json:"subject"`
	Body           string             `db:"body" json:"body"`
	Status         NotificationStatus `db:"status" json:"status"`
	Attempts       int                `db:"attempts" json:"attempts"`
	SentAt         *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	RecipientEmail string
	EventID        string
	Status         NotificationStatus
	Page           int
	PageSize       int
}
