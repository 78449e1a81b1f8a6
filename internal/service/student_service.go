package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByIdentity(ctx context.Context, rollNo, email string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	RollNo   string  `json:"roll_no" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required"`
	BatchID  *string `json:"batch_id"`
	Phone    string  `json:"phone"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	RollNo   string  `json:"roll_no" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required"`
	BatchID  *string `json:"batch_id"`
	Phone    string  `json:"phone"`
	Active   bool    `json:"active"`
}

// StudentService handles student directory use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByIdentity(ctx, req.RollNo, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate identity")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roll number or email already used")
	}
	student := &models.Student{
		RollNo:   strings.TrimSpace(req.RollNo),
		Email:    strings.TrimSpace(req.Email),
		FullName: req.FullName,
		BatchID:  req.BatchID,
		Phone:    req.Phone,
		Active:   true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	student.RollNo = strings.TrimSpace(req.RollNo)
	student.Email = strings.TrimSpace(req.Email)
	student.FullName = req.FullName
	student.BatchID = req.BatchID
	student.Phone = req.Phone
	student.Active = req.Active
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate marks student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

// Import bulk-loads students from an .xlsx roster. Expected headers:
// Roll No, Email, Name, optional Batch ID and Phone. Rows that collide
// with existing identities are skipped, not treated as failures.
func (s *StudentService) Import(ctx context.Context, payload []byte, batchID *string) (*models.StudentImportResult, error) {
	sheet, err := export.ParseSheet(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable spreadsheet")
	}

	cols, err := resolveRosterColumns(sheet.Headers)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	result := &models.StudentImportResult{}
	for i, row := range sheet.Rows {
		rollNo := strings.TrimSpace(row[cols.rollNo])
		email := strings.TrimSpace(row[cols.email])
		name := strings.TrimSpace(row[cols.name])
		if rollNo == "" || email == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing roll number or email", i+2))
			continue
		}
		exists, err := s.repo.ExistsByIdentity(ctx, rollNo, email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate identity")
		}
		if exists {
			result.Skipped++
			continue
		}
		student := &models.Student{
			RollNo:   rollNo,
			Email:    email,
			FullName: name,
			BatchID:  batchID,
			Active:   true,
		}
		if cols.phone != "" {
			student.Phone = strings.TrimSpace(row[cols.phone])
		}
		if err := s.repo.Create(ctx, student); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import student")
		}
		result.Imported++
	}
	return result, nil
}

type rosterColumns struct {
	rollNo string
	email  string
	name   string
	phone  string
}

func resolveRosterColumns(headers []string) (rosterColumns, error) {
	cols := rosterColumns{}
	for _, header := range headers {
		switch normalizeHeader(header) {
		case "rollno", "rollnumber":
			cols.rollNo = header
		case "email", "emailid":
			cols.email = header
		case "name", "fullname", "studentname":
			cols.name = header
		case "phone", "mobile":
			cols.phone = header
		}
	}
	if cols.rollNo == "" || cols.email == "" {
		return cols, fmt.Errorf("spreadsheet must contain Roll No and Email columns")
	}
	if cols.name == "" {
		cols.name = cols.email
	}
	return cols, nil
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(header))
}
