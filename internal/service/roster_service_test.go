package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/export"
)

type mockRosterEvents struct {
	event         *models.PlacementEvent
	mailSent      bool
	lockCalls     int
	releaseCalls  int
	selectedCount int
}

func (m *mockRosterEvents) GetByID(ctx context.Context, id string) (*models.PlacementEvent, error) {
	if m.event == nil || m.event.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *m.event
	return &copy, nil
}

func (m *mockRosterEvents) LockMailSent(ctx context.Context, id string) (bool, error) {
	m.lockCalls++
	if m.mailSent {
		return false, nil
	}
	m.mailSent = true
	return true, nil
}

func (m *mockRosterEvents) ReleaseMailSent(ctx context.Context, id string) error {
	m.releaseCalls++
	m.mailSent = false
	return nil
}

func (m *mockRosterEvents) SetSelectedCount(ctx context.Context, id string, count int) error {
	m.selectedCount = count
	return nil
}

type mockRegistrations struct {
	regs []models.EventRegistration
}

func (m *mockRegistrations) ListByEvent(ctx context.Context, eventID string) ([]models.EventRegistration, error) {
	return m.regs, nil
}

func (m *mockRegistrations) Create(ctx context.Context, reg *models.EventRegistration) error {
	reg.ID = "new-reg"
	reg.RegisteredAt = time.Now()
	m.regs = append(m.regs, *reg)
	return nil
}

type mockSelections struct {
	selections []models.EventSelection
	batchErr   error
}

func (m *mockSelections) ListByEvent(ctx context.Context, eventID string) ([]models.EventSelection, error) {
	return m.selections, nil
}

func (m *mockSelections) Create(ctx context.Context, sel *models.EventSelection) error {
	sel.ID = "new-sel"
	m.selections = append(m.selections, *sel)
	return nil
}

func (m *mockSelections) CreateBatch(ctx context.Context, selections []models.EventSelection) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	m.selections = append(m.selections, selections...)
	return nil
}

func (m *mockSelections) ExistsByEmail(ctx context.Context, eventID, email string) (bool, error) {
	for _, sel := range m.selections {
		if strings.EqualFold(sel.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSelections) DeleteByEmail(ctx context.Context, eventID, email string) (bool, error) {
	for i, sel := range m.selections {
		if strings.EqualFold(sel.Email, email) {
			m.selections = append(m.selections[:i], m.selections[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSelections) CountByEvent(ctx context.Context, eventID string) (int, error) {
	return len(m.selections), nil
}

type mockStudentDirectory struct {
	students map[string]*models.Student
}

func (m *mockStudentDirectory) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	for _, student := range m.students {
		if strings.EqualFold(student.Email, email) {
			copy := *student
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockNotifier struct {
	batches [][]models.EventSelection
}

func (m *mockNotifier) NotifySelection(ctx context.Context, event *models.PlacementEvent, selections []models.EventSelection) {
	m.batches = append(m.batches, selections)
}

func completedEvent() *models.PlacementEvent {
	return &models.PlacementEvent{
		ID:           "e1",
		Title:        "Acme Drive",
		StartDate:    models.NewDateOnly(2025, time.March, 10),
		EndDate:      models.NewDateOnly(2025, time.March, 12),
		StoredStatus: models.EventStatusScheduled,
		Company:      models.CompanyDetails{CompanyName: "Acme Corp"},
	}
}

func newRosterFixture(event *models.PlacementEvent) (*RosterService, *mockRosterEvents, *mockRegistrations, *mockSelections, *mockNotifier) {
	events := &mockRosterEvents{event: event}
	regs := &mockRegistrations{}
	sels := &mockSelections{}
	notifier := &mockNotifier{}
	students := &mockStudentDirectory{students: map[string]*models.Student{
		"s1": {ID: "s1", RollNo: "21CS009", Email: "walkin@campus.edu", FullName: "Walk In"},
	}}
	svc := NewRosterService(events, regs, sels, students, notifier, nil, nil, nil)
	return svc, events, regs, sels, notifier
}

func TestRosterRegisterAndDeduplicateOnRead(t *testing.T) {
	svc, _, regs, _, _ := newRosterFixture(completedEvent())
	ctx := context.Background()

	_, err := svc.Register(ctx, "e1", RegisterRequest{RollNo: "21CS001", Email: "ananya@campus.edu", FullName: "Ananya"})
	require.NoError(t, err)
	// Same roll number with different email casing registers fine.
	_, err = svc.Register(ctx, "e1", RegisterRequest{RollNo: "21CS001", Email: "ANANYA@CAMPUS.EDU", FullName: "Ananya S"})
	require.NoError(t, err)
	assert.Len(t, regs.regs, 2)

	listed, err := svc.RegisteredStudents(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Ananya", listed[0].FullName)
}

func TestRosterRegisterClosedForCancelledEvent(t *testing.T) {
	event := completedEvent()
	event.StoredStatus = models.EventStatusCancelled
	svc, _, _, _, _ := newRosterFixture(event)

	_, err := svc.Register(context.Background(), "e1", RegisterRequest{RollNo: "21CS001", Email: "a@campus.edu", FullName: "A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSelectStudentRequiresDerivedCompleted(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture(completedEvent())

	// Event window is 10th to 12th; on the 11th it derives ongoing.
	_, err := svc.SelectStudent(context.Background(), "e1", "ananya@campus.edu", "tpo-1", models.NewDateOnly(2025, time.March, 11))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSelectStudentFromRegistrationList(t *testing.T) {
	svc, events, regs, sels, notifier := newRosterFixture(completedEvent())
	regs.regs = []models.EventRegistration{
		{ID: "r1", EventID: "e1", RollNo: "21CS001", Email: "ananya@campus.edu", FullName: "Ananya"},
	}
	today := models.NewDateOnly(2025, time.March, 15)

	sel, err := svc.SelectStudent(context.Background(), "e1", "ANANYA@campus.edu", "tpo-1", today)
	require.NoError(t, err)
	assert.Equal(t, "21CS001", sel.RollNo)
	assert.Equal(t, "tpo-1", sel.SelectedBy)
	assert.Len(t, sels.selections, 1)
	require.Len(t, notifier.batches, 1)
	assert.Equal(t, 1, events.selectedCount)
}

func TestSelectStudentDuplicateRejected(t *testing.T) {
	svc, _, _, sels, _ := newRosterFixture(completedEvent())
	sels.selections = []models.EventSelection{{EventID: "e1", Email: "ananya@campus.edu"}}

	_, err := svc.SelectStudent(context.Background(), "e1", "Ananya@Campus.EDU", "tpo-1", models.NewDateOnly(2025, time.March, 15))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSelectStudentUnknownEmail(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture(completedEvent())

	_, err := svc.SelectStudent(context.Background(), "e1", "nobody@campus.edu", "tpo-1", models.NewDateOnly(2025, time.March, 15))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRemoveSelectedStudentCaseInsensitive(t *testing.T) {
	svc, events, _, sels, _ := newRosterFixture(completedEvent())
	sels.selections = []models.EventSelection{{EventID: "e1", Email: "ananya@campus.edu"}}

	err := svc.RemoveSelectedStudent(context.Background(), "e1", "ANANYA@CAMPUS.EDU")
	require.NoError(t, err)
	assert.Empty(t, sels.selections)
	assert.Equal(t, 0, events.selectedCount)

	err = svc.RemoveSelectedStudent(context.Background(), "e1", "ananya@campus.edu")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func selectionSheet(t *testing.T, emails ...string) []byte {
	t.Helper()
	rows := make([]map[string]string, 0, len(emails))
	for _, email := range emails {
		rows = append(rows, map[string]string{"Email": email})
	}
	payload, err := export.NewXLSXExporter().Render(export.Dataset{Headers: []string{"Email"}, Rows: rows})
	require.NoError(t, err)
	return payload
}

func TestUploadSelectedListHappyPath(t *testing.T) {
	svc, events, regs, sels, notifier := newRosterFixture(completedEvent())
	regs.regs = []models.EventRegistration{
		{ID: "r1", EventID: "e1", RollNo: "21CS001", Email: "ananya@campus.edu", FullName: "Ananya"},
		{ID: "r2", EventID: "e1", RollNo: "21CS002", Email: "dev@campus.edu", FullName: "Dev"},
	}
	payload := selectionSheet(t, "ananya@campus.edu", "dev@campus.edu", "stranger@elsewhere.com")
	today := models.NewDateOnly(2025, time.March, 15)

	result, err := svc.UploadSelectedList(context.Background(), "e1", "selected.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload, "tpo-1", today)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Selected)
	assert.Equal(t, []string{"stranger@elsewhere.com"}, result.Unknown)
	assert.Len(t, sels.selections, 2)
	require.Len(t, notifier.batches, 1)
	assert.Len(t, notifier.batches[0], 2)
	assert.True(t, events.mailSent)
	assert.Equal(t, 2, events.selectedCount)
}

func TestUploadSelectedListOneShotGate(t *testing.T) {
	svc, events, regs, sels, _ := newRosterFixture(completedEvent())
	events.mailSent = true
	regs.regs = []models.EventRegistration{
		{ID: "r1", EventID: "e1", RollNo: "21CS001", Email: "ananya@campus.edu", FullName: "Ananya"},
	}
	payload := selectionSheet(t, "ananya@campus.edu")

	_, err := svc.UploadSelectedList(context.Background(), "e1", "selected.xlsx", "", payload, "tpo-1", models.NewDateOnly(2025, time.March, 15))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUploadLocked.Code, appErrors.FromError(err).Code)
	// The gate refusal must leave the ledger untouched.
	assert.Empty(t, sels.selections)
}

func TestUploadSelectedListFailedWriteLeavesGateOpen(t *testing.T) {
	svc, events, regs, sels, notifier := newRosterFixture(completedEvent())
	regs.regs = []models.EventRegistration{
		{ID: "r1", EventID: "e1", RollNo: "21CS001", Email: "ananya@campus.edu", FullName: "Ananya"},
	}
	sels.batchErr = errors.New("insert failed")
	payload := selectionSheet(t, "ananya@campus.edu")
	today := models.NewDateOnly(2025, time.March, 15)

	_, err := svc.UploadSelectedList(context.Background(), "e1", "selected.xlsx", "", payload, "tpo-1", today)
	require.Error(t, err)
	assert.Empty(t, sels.selections)
	assert.Empty(t, notifier.batches)
	// Only a successful upload may consume the gate.
	assert.False(t, events.mailSent)
	assert.Equal(t, 1, events.releaseCalls)

	sels.batchErr = nil
	result, err := svc.UploadSelectedList(context.Background(), "e1", "selected.xlsx", "", payload, "tpo-1", today)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Selected)
	assert.True(t, events.mailSent)
	require.Len(t, notifier.batches, 1)
	assert.Equal(t, 1, events.selectedCount)
}

func TestUploadSelectedListRejectsNonXLSX(t *testing.T) {
	svc, events, _, _, _ := newRosterFixture(completedEvent())

	_, err := svc.UploadSelectedList(context.Background(), "e1", "selected.csv", "text/csv", []byte("email\n"), "tpo-1", models.NewDateOnly(2025, time.March, 15))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, events.lockCalls)
}

func TestUploadSelectedListRequiresCompletedEvent(t *testing.T) {
	svc, events, _, _, _ := newRosterFixture(completedEvent())
	payload := selectionSheet(t, "ananya@campus.edu")

	_, err := svc.UploadSelectedList(context.Background(), "e1", "selected.xlsx", "", payload, "tpo-1", models.NewDateOnly(2025, time.March, 11))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Zero(t, events.lockCalls)
}

func TestExportRegisteredFilenameFromCompany(t *testing.T) {
	svc, _, regs, _, _ := newRosterFixture(completedEvent())
	regs.regs = []models.EventRegistration{
		{ID: "r1", EventID: "e1", RollNo: "21CS001", Email: "ananya@campus.edu", FullName: "Ananya", RegisteredAt: time.Now()},
	}

	filename, payload, err := svc.ExportRegistered(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Acme_Corp.xlsx", filename)
	assert.NotEmpty(t, payload)

	parsed, err := export.ParseSheet(payload)
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)
	assert.Equal(t, "21CS001", parsed.Rows[0]["Roll No"])
}

func TestExportRegisteredFallbackFilename(t *testing.T) {
	event := completedEvent()
	event.Company.CompanyName = ""
	svc, _, _, _, _ := newRosterFixture(event)

	filename, _, err := svc.ExportRegistered(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "registrations-"))
	assert.True(t, strings.HasSuffix(filename, ".xlsx"))
}
