package models

import "strings"

// StudentIdentity identifies a student on an event roster. Events may
// target students outside the primary student table via upload lists, so
// the key is the pair (roll number, email) rather than a foreign key.
type StudentIdentity struct {
	RollNo string `db:"roll_no" json:"roll_no"`
	Email  string `db:"email" json:"email"`
}

// Matches reports whether two identities refer to the same student:
// an exact roll-number match OR a case-insensitive email match counts.
func (s StudentIdentity) Matches(other StudentIdentity) bool {
	if s.RollNo != "" && s.RollNo == other.RollNo {
		return true
	}
	return s.Email != "" && strings.EqualFold(s.Email, other.Email)
}

// NormalizedEmail returns the lowercased email used for ledger lookups.
func (s StudentIdentity) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(s.Email))
}
