package models

import "time"

// Student represents a learner enrolled in placement training.
type Student struct {
	ID        string    `db:"id" json:"id"`
	RollNo    string    `db:"roll_no" json:"roll_no"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	BatchID   *string   `db:"batch_id" json:"batch_id,omitempty"`
	Phone     string    `db:"phone" json:"phone"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Identity returns the student's roster key.
func (s Student) Identity() StudentIdentity {
	return StudentIdentity{RollNo: s.RollNo, Email: s.Email}
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	BatchID   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with batch context.
type StudentDetail struct {
	Student
	BatchName *string `db:"batch_name" json:"batch_name,omitempty"`
}

// StudentImportResult reports the outcome of a bulk roster import.
type StudentImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
