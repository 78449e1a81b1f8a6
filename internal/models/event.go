package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// EventStatus enumerates the placement event lifecycle states.
type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusDeleted   EventStatus = "deleted"
)

// ParseEventStatus validates a raw status string.
func ParseEventStatus(raw string) (EventStatus, error) {
	switch EventStatus(raw) {
	case EventStatusScheduled, EventStatusOngoing, EventStatusCompleted, EventStatusCancelled, EventStatusDeleted:
		return EventStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown event status: %s", raw)
	}
}

// IsTerminal reports whether the status is sticky: cancelled and deleted
// are never overridden by date derivation.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCancelled || s == EventStatusDeleted
}

// DeriveStatus computes the effective status of an event at a given
// reference day. Terminal stored states win outright; any other stored
// value is superseded by the date rule:
//
//	endDate < today              -> completed
//	startDate <= today <= endDate -> ongoing
//	otherwise                     -> scheduled
//
// The function is pure: same inputs, same output, no writes.
func DeriveStatus(stored EventStatus, startDate, endDate, today DateOnly) EventStatus {
	if stored.IsTerminal() {
		return stored
	}
	switch {
	case endDate.Before(today):
		return EventStatusCompleted
	case !startDate.After(today) && !endDate.Before(today):
		return EventStatusOngoing
	default:
		return EventStatusScheduled
	}
}

// TargetGroup selects which students an event addresses.
type TargetGroup string

const (
	TargetGroupBatches  TargetGroup = "batch-specific"
	TargetGroupStudents TargetGroup = "specific-students"
)

// PackageDetails holds the offered compensation range.
type PackageDetails struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// CompanyDetails nests drive-specific company information on an event.
type CompanyDetails struct {
	CompanyName     string         `json:"company_name"`
	CompanyFormLink string         `json:"company_form_link,omitempty"`
	Roles           []string       `json:"roles,omitempty"`
	Package         PackageDetails `json:"package_details"`
	ExternalLink    string         `json:"external_link,omitempty"`
}

// Value marshals company details to JSONB.
func (c CompanyDetails) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan unmarshals company details from JSONB.
func (c *CompanyDetails) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = CompanyDetails{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported company details scan type %T", src)
	}
}

// EventSummary carries denormalized counters for completed events. The
// numbers come from the completing form submission and are never
// recomputed from the ledgers.
type EventSummary struct {
	TotalAttendees   int `json:"total_attendees"`
	SelectedStudents int `json:"selected_students"`
}

// PlacementEvent is a persisted placement drive or seminar.
type PlacementEvent struct {
	ID               string         `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Description      string         `db:"description" json:"description"`
	StartDate        DateOnly       `db:"start_date" json:"start_date"`
	EndDate          DateOnly       `db:"end_date" json:"end_date"`
	StartTime        *string        `db:"start_time" json:"start_time,omitempty"`
	EndTime          *string        `db:"end_time" json:"end_time,omitempty"`
	Venue            *string        `db:"venue" json:"venue,omitempty"`
	IsOnline         bool           `db:"is_online" json:"is_online"`
	Company          CompanyDetails `db:"company_details" json:"company_details"`
	TargetGroup      TargetGroup    `db:"target_group" json:"target_group"`
	TargetBatchIDs   pq.StringArray `db:"target_batch_ids" json:"target_batch_ids,omitempty"`
	TargetStudentIDs pq.StringArray `db:"target_student_ids" json:"target_student_ids,omitempty"`
	StoredStatus     EventStatus    `db:"stored_status" json:"stored_status"`
	DerivedStatus    EventStatus    `db:"-" json:"derived_status"`
	TotalAttendees   int            `db:"total_attendees" json:"-"`
	SelectedCount    int            `db:"selected_students" json:"-"`
	MailSent         bool           `db:"mail_sent" json:"mail_sent"`
	CreatedBy        string         `db:"created_by" json:"created_by"`
	CancelledAt      *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	DeletedAt        *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Summary exposes the denormalized counters when the event has been
// explicitly completed.
func (e *PlacementEvent) Summary() *EventSummary {
	if e.StoredStatus != EventStatusCompleted {
		return nil
	}
	return &EventSummary{TotalAttendees: e.TotalAttendees, SelectedStudents: e.SelectedCount}
}

// Derive attaches the effective status for the given reference day.
func (e *PlacementEvent) Derive(today DateOnly) {
	e.DerivedStatus = DeriveStatus(e.StoredStatus, e.StartDate, e.EndDate, today)
}

// MarshalJSON injects the optional event summary without persisting it.
func (e PlacementEvent) MarshalJSON() ([]byte, error) {
	type alias PlacementEvent
	return json.Marshal(struct {
		alias
		EventSummary *EventSummary `json:"event_summary,omitempty"`
	}{alias: alias(e), EventSummary: e.Summary()})
}

// EventFilter narrows down event listings.
type EventFilter struct {
	From           *DateOnly
	To             *DateOnly
	CreatedBy      string
	IncludeDeleted bool
	OnlyDeleted    bool
	Page           int
	PageSize       int
}
