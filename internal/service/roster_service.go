package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/export"
)

type rosterEventStore interface {
	GetByID(ctx context.Context, id string) (*models.PlacementEvent, error)
	LockMailSent(ctx context.Context, id string) (bool, error)
	ReleaseMailSent(ctx context.Context, id string) error
	SetSelectedCount(ctx context.Context, id string, count int) error
}

type registrationStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.EventRegistration, error)
	Create(ctx context.Context, reg *models.EventRegistration) error
}

type selectionStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.EventSelection, error)
	Create(ctx context.Context, sel *models.EventSelection) error
	CreateBatch(ctx context.Context, selections []models.EventSelection) error
	ExistsByEmail(ctx context.Context, eventID, email string) (bool, error)
	DeleteByEmail(ctx context.Context, eventID, email string) (bool, error)
	CountByEvent(ctx context.Context, eventID string) (int, error)
}

type selectionNotifier interface {
	NotifySelection(ctx context.Context, event *models.PlacementEvent, selections []models.EventSelection)
}

type rosterStudentDirectory interface {
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
}

// RegisterRequest is one student's registration payload.
type RegisterRequest struct {
	RollNo   string  `json:"roll_no" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required"`
	BatchID  *string `json:"batch_id,omitempty"`
	Phone    string  `json:"phone"`
}

// UploadResult summarises a bulk selection upload.
type UploadResult struct {
	Selected int      `json:"selected"`
	Skipped  int      `json:"skipped"`
	Unknown  []string `json:"unknown,omitempty"`
}

// RosterService tracks per-event registered and selected student lists.
type RosterService struct {
	events        rosterEventStore
	registrations registrationStore
	selections    selectionStore
	students      rosterStudentDirectory
	notifier      selectionNotifier
	xlsx          tabularRenderer
	allowedMIME   []string
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(events rosterEventStore, registrations registrationStore, selections selectionStore, students rosterStudentDirectory, notifier selectionNotifier, allowedMIME []string, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		events:        events,
		registrations: registrations,
		selections:    selections,
		students:      students,
		notifier:      notifier,
		xlsx:          export.NewXLSXExporter(),
		allowedMIME:   allowedMIME,
		validator:     validate,
		logger:        logger,
	}
}

// Register appends a registration. Duplicate identities are tolerated at
// write time; the read path filters them.
func (s *RosterService) Register(ctx context.Context, eventID string, req RegisterRequest) (*models.EventRegistration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	event, err := s.loadRosterEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.StoredStatus.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "registrations are closed for this event")
	}
	reg := &models.EventRegistration{
		EventID:  event.ID,
		RollNo:   strings.TrimSpace(req.RollNo),
		Email:    strings.TrimSpace(req.Email),
		FullName: req.FullName,
		BatchID:  req.BatchID,
		Phone:    req.Phone,
	}
	if err := s.registrations.Create(ctx, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}
	return reg, nil
}

// RegisteredStudents returns the deduplicated registration list, first
// occurrence winning on roll number or case-insensitive email.
func (s *RosterService) RegisteredStudents(ctx context.Context, eventID string) ([]models.EventRegistration, error) {
	if _, err := s.loadRosterEvent(ctx, eventID); err != nil {
		return nil, err
	}
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return models.DeduplicateRegistrations(regs), nil
}

// SelectedStudents returns the selection list for an event.
func (s *RosterService) SelectedStudents(ctx context.Context, eventID string) ([]models.EventSelection, error) {
	if _, err := s.loadRosterEvent(ctx, eventID); err != nil {
		return nil, err
	}
	selections, err := s.selections.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list selections")
	}
	return selections, nil
}

// SelectStudent marks one student selected on a completed event. The
// selection write and the notification are not atomic: a failed
// notification never reverses the selection.
func (s *RosterService) SelectStudent(ctx context.Context, eventID, email, actorID string, today models.DateOnly) (*models.EventSelection, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	event, err := s.loadRosterEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	event.Derive(today)
	if event.DerivedStatus != models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "students can only be selected once the event has completed")
	}

	exists, err := s.selections.ExistsByEmail(ctx, eventID, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check selection")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already selected")
	}

	sel, err := s.resolveSelection(ctx, event.ID, email)
	if err != nil {
		return nil, err
	}
	sel.SelectedBy = actorID
	if err := s.selections.Create(ctx, sel); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record selection")
	}

	s.notifier.NotifySelection(ctx, event, []models.EventSelection{*sel})
	s.refreshSelectedCount(ctx, event.ID)
	return sel, nil
}

// RemoveSelectedStudent drops a selection by case-insensitive email.
func (s *RosterService) RemoveSelectedStudent(ctx context.Context, eventID, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	if _, err := s.loadRosterEvent(ctx, eventID); err != nil {
		return err
	}
	removed, err := s.selections.DeleteByEmail(ctx, eventID, email)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove selection")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "no selection found for that email")
	}
	s.refreshSelectedCount(ctx, eventID)
	return nil
}

// UploadSelectedList bulk-selects students from an .xlsx sheet. The
// mail_sent gate admits exactly one successful upload per event; a
// second attempt fails with UPLOAD_LOCKED and never touches the ledger.
func (s *RosterService) UploadSelectedList(ctx context.Context, eventID, filename, contentType string, payload []byte, actorID string, today models.DateOnly) (*UploadResult, error) {
	if err := s.validateSpreadsheet(filename, contentType); err != nil {
		return nil, err
	}
	event, err := s.loadRosterEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	event.Derive(today)
	if event.DerivedStatus != models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "selection lists can only be uploaded once the event has completed")
	}

	emails, err := parseSelectionEmails(payload)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no email addresses found in the sheet")
	}

	result := &UploadResult{}
	selections := make([]models.EventSelection, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, email := range emails {
		key := strings.ToLower(email)
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true

		exists, err := s.selections.ExistsByEmail(ctx, event.ID, email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check selection")
		}
		if exists {
			result.Skipped++
			continue
		}
		sel, err := s.resolveSelection(ctx, event.ID, email)
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrNotFound.Code {
				result.Unknown = append(result.Unknown, email)
				continue
			}
			return nil, err
		}
		sel.SelectedBy = actorID
		selections = append(selections, *sel)
	}

	// The gate flips only once every row has resolved; a failed ledger
	// write releases it again so the upload stays retryable.
	locked, err := s.events.LockMailSent(ctx, event.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire upload gate")
	}
	if !locked {
		return nil, appErrors.Clone(appErrors.ErrUploadLocked, "")
	}

	if len(selections) > 0 {
		if err := s.selections.CreateBatch(ctx, selections); err != nil {
			if relErr := s.events.ReleaseMailSent(ctx, event.ID); relErr != nil {
				s.logger.Error("failed to release upload gate",
					zap.String("event_id", event.ID),
					zap.Error(relErr))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record selections")
		}
		result.Selected = len(selections)
		s.notifier.NotifySelection(ctx, event, selections)
		s.refreshSelectedCount(ctx, event.ID)
	}
	return result, nil
}

// ExportRegistered renders the deduplicated registration list as an
// .xlsx payload. The filename comes from the company name when present.
func (s *RosterService) ExportRegistered(ctx context.Context, eventID string) (string, []byte, error) {
	event, err := s.loadRosterEvent(ctx, eventID)
	if err != nil {
		return "", nil, err
	}
	regs, err := s.RegisteredStudents(ctx, eventID)
	if err != nil {
		return "", nil, err
	}

	rows := make([]map[string]string, 0, len(regs))
	for _, reg := range regs {
		batch := ""
		if reg.BatchID != nil {
			batch = *reg.BatchID
		}
		rows = append(rows, map[string]string{
			"Roll No":       reg.RollNo,
			"Email":         reg.Email,
			"Name":          reg.FullName,
			"Batch":         batch,
			"Phone":         reg.Phone,
			"Registered At": reg.RegisteredAt.UTC().Format(time.RFC3339),
		})
	}
	payload, err := s.xlsx.Render(export.Dataset{
		Headers: []string{"Roll No", "Email", "Name", "Batch", "Phone", "Registered At"},
		Rows:    rows,
	})
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := exportFilename(event.Company.CompanyName)
	return filename, payload, nil
}

func (s *RosterService) loadRosterEvent(ctx context.Context, eventID string) (*models.PlacementEvent, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// resolveSelection builds the selection row from the registration list
// first, falling back to the student directory.
func (s *RosterService) resolveSelection(ctx context.Context, eventID, email string) (*models.EventSelection, error) {
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	for _, reg := range regs {
		if strings.EqualFold(reg.Email, email) {
			return &models.EventSelection{
				EventID:  eventID,
				RollNo:   reg.RollNo,
				Email:    reg.Email,
				FullName: reg.FullName,
			}, nil
		}
	}
	student, err := s.students.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student found for that email")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up student")
	}
	return &models.EventSelection{
		EventID:  eventID,
		RollNo:   student.RollNo,
		Email:    student.Email,
		FullName: student.FullName,
	}, nil
}

func (s *RosterService) refreshSelectedCount(ctx context.Context, eventID string) {
	count, err := s.selections.CountByEvent(ctx, eventID)
	if err != nil {
		s.logger.Warn("failed to count selections", zap.String("event_id", eventID), zap.Error(err))
		return
	}
	if err := s.events.SetSelectedCount(ctx, eventID, count); err != nil {
		s.logger.Warn("failed to update selected count", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (s *RosterService) validateSpreadsheet(filename, contentType string) error {
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return appErrors.Clone(appErrors.ErrValidation, "only .xlsx uploads are accepted")
	}
	if contentType == "" || len(s.allowedMIME) == 0 {
		return nil
	}
	mime := contentType
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	mime = strings.TrimSpace(mime)
	for _, allowed := range s.allowedMIME {
		if strings.EqualFold(mime, allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported content type %s", mime))
}

// parseSelectionEmails pulls the email column out of an uploaded sheet.
// A sheet without an Email header falls back to the first column.
func parseSelectionEmails(payload []byte) ([]string, error) {
	sheet, err := export.ParseSheet(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable spreadsheet")
	}
	column := ""
	for _, header := range sheet.Headers {
		switch normalizeHeader(header) {
		case "email", "emailid":
			column = header
		}
	}
	if column == "" && len(sheet.Headers) > 0 {
		column = sheet.Headers[0]
	}
	emails := make([]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		email := strings.TrimSpace(row[column])
		if email == "" || !strings.Contains(email, "@") {
			continue
		}
		emails = append(emails, email)
	}
	return emails, nil
}

func exportFilename(companyName string) string {
	if name := strings.TrimSpace(companyName); name != "" {
		return fmt.Sprintf("%s.xlsx", sanitizeFilename(name))
	}
	return fmt.Sprintf("registrations-%s.xlsx", time.Now().UTC().Format("20060102150405"))
}
