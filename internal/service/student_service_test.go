package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/export"
)

type mockStudentRepo struct {
	students map[string]*models.Student
	created  []models.Student
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	details := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		details = append(details, models.StudentDetail{Student: *s})
	}
	return details, len(details), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.students[id]; ok {
		copy := *student
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByIdentity(ctx context.Context, rollNo, email string) (bool, error) {
	for _, s := range m.students {
		if s.RollNo == rollNo || strings.EqualFold(s.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	student.ID = "new-student"
	copy := *student
	m.students[student.ID] = &copy
	m.created = append(m.created, copy)
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	copy := *student
	m.students[student.ID] = &copy
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	if student, ok := m.students[id]; ok {
		student.Active = false
	}
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		RollNo:   "21CS001",
		Email:    "ananya@campus.edu",
		FullName: "Ananya",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-student", student.ID)
	assert.True(t, student.Active)
}

func TestStudentServiceCreateDuplicateIdentity(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", RollNo: "21CS001", Email: "ananya@campus.edu"},
	}}
	svc := NewStudentService(repo, nil, nil)

	// Duplicate email with different casing counts as a collision.
	_, err := svc.Create(context.Background(), CreateStudentRequest{
		RollNo:   "21CS777",
		Email:    "ANANYA@CAMPUS.EDU",
		FullName: "Someone Else",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{RollNo: "21CS001", Email: "not-an-email", FullName: "A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func rosterSheet(t *testing.T, rows []map[string]string) []byte {
	t.Helper()
	payload, err := export.NewXLSXExporter().Render(export.Dataset{
		Headers: []string{"Roll No", "Email", "Name", "Phone"},
		Rows:    rows,
	})
	require.NoError(t, err)
	return payload
}

func TestStudentServiceImport(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", RollNo: "21CS002", Email: "dev@campus.edu"},
	}}
	svc := NewStudentService(repo, nil, nil)

	payload := rosterSheet(t, []map[string]string{
		{"Roll No": "21CS001", "Email": "ananya@campus.edu", "Name": "Ananya", "Phone": "99001"},
		{"Roll No": "21CS002", "Email": "dev@campus.edu", "Name": "Dev"},
		{"Roll No": "", "Email": "broken@campus.edu", "Name": "Broken"},
	})

	batchID := "b1"
	result, err := svc.Import(context.Background(), payload, &batchID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "missing roll number or email")

	require.Len(t, repo.created, 1)
	assert.Equal(t, "21CS001", repo.created[0].RollNo)
	require.NotNil(t, repo.created[0].BatchID)
	assert.Equal(t, "b1", *repo.created[0].BatchID)
}

func TestStudentServiceImportRequiresIdentityColumns(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	payload, err := export.NewXLSXExporter().Render(export.Dataset{
		Headers: []string{"Name"},
		Rows:    []map[string]string{{"Name": "Ananya"}},
	})
	require.NoError(t, err)

	_, err = svc.Import(context.Background(), payload, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceImportUnreadablePayload(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	_, err := svc.Import(context.Background(), []byte("not an xlsx"), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
