package models

import "time"

// EventRegistration is one student's registration on a placement event.
type EventRegistration struct {
	ID           string    `db:"id" json:"id"`
	EventID      string    `db:"event_id" json:"event_id"`
	RollNo       string    `db:"roll_no" json:"roll_no"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	BatchID      *string   `db:"batch_id" json:"batch_id,omitempty"`
	Phone        string    `db:"phone" json:"phone"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}

// Identity returns the roster key of the registration.
func (r EventRegistration) Identity() StudentIdentity {
	return StudentIdentity{RollNo: r.RollNo, Email: r.Email}
}

// EventSelection marks a student selected after an event completed.
type EventSelection struct {
	ID         string    `db:"id" json:"id"`
	EventID    string    `db:"event_id" json:"event_id"`
	RollNo     string    `db:"roll_no" json:"roll_no"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	SelectedBy string    `db:"selected_by" json:"selected_by"`
	SelectedAt time.Time `db:"selected_at" json:"selected_at"`
}

// Identity returns the roster key of the selection.
func (s EventSelection) Identity() StudentIdentity {
	return StudentIdentity{RollNo: s.RollNo, Email: s.Email}
}

// DeduplicateRegistrations collapses duplicate registrations by identity,
// first occurrence wins. Duplicates are filtered on read rather than
// rejected on write.
func DeduplicateRegistrations(regs []EventRegistration) []EventRegistration {
	out := make([]EventRegistration, 0, len(regs))
	for _, reg := range regs {
		duplicate := false
		for _, kept := range out {
			if kept.Identity().Matches(reg.Identity()) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, reg)
		}
	}
	return out
}
