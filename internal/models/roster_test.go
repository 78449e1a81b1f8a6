package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStudentIdentityMatches(t *testing.T) {
	base := StudentIdentity{RollNo: "21CS001", Email: "ananya@campus.edu"}

	assert.True(t, base.Matches(StudentIdentity{RollNo: "21CS001", Email: "other@campus.edu"}))
	assert.True(t, base.Matches(StudentIdentity{RollNo: "21CS999", Email: "ANANYA@Campus.EDU"}))
	assert.False(t, base.Matches(StudentIdentity{RollNo: "21CS999", Email: "other@campus.edu"}))
}

func TestDeduplicateRegistrationsFirstOccurrenceWins(t *testing.T) {
	regs := []EventRegistration{
		{ID: "r1", RollNo: "21CS001", Email: "ananya@campus.edu", FullName: "Ananya"},
		{ID: "r2", RollNo: "21CS002", Email: "dev@campus.edu", FullName: "Dev"},
		// Same roll number, different email casing: duplicate.
		{ID: "r3", RollNo: "21CS001", Email: "ANANYA@CAMPUS.EDU", FullName: "Ananya S"},
		// Different roll number, same email case-insensitively: duplicate.
		{ID: "r4", RollNo: "21CS004", Email: "Dev@Campus.edu", FullName: "Dev K"},
		{ID: "r5", RollNo: "21CS005", Email: "mira@campus.edu", FullName: "Mira"},
	}

	out := DeduplicateRegistrations(regs)
	ids := make([]string, 0, len(out))
	for _, reg := range out {
		ids = append(ids, reg.ID)
	}
	assert.Equal(t, []string{"r1", "r2", "r5"}, ids)
}

func TestDeduplicateRegistrationsEmpty(t *testing.T) {
	assert.Empty(t, DeduplicateRegistrations(nil))
}
