package service

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/storage"
)

type mockExportEvents struct {
	events []models.PlacementEvent
	byID   map[string]*models.PlacementEvent
}

func (m *mockExportEvents) List(_ context.Context, _ models.EventFilter) ([]models.PlacementEvent, int, error) {
	return m.events, len(m.events), nil
}

func (m *mockExportEvents) GetByID(_ context.Context, id string) (*models.PlacementEvent, error) {
	if event, ok := m.byID[id]; ok {
		return event, nil
	}
	return nil, errNotFoundForTest()
}

type mockExportRegistrations struct {
	regs []models.EventRegistration
}

func (m *mockExportRegistrations) ListByEvent(_ context.Context, _ string) ([]models.EventRegistration, error) {
	return m.regs, nil
}

func errNotFoundForTest() error {
	return assert.AnError
}

func newExportFixture(t *testing.T, events *mockExportEvents, regs *mockExportRegistrations) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(events, regs, store, signer, ExportConfig{APIPrefix: "/api/v1"}, nil)
}

func TestGeneratePlacementSummaryCSV(t *testing.T) {
	completed := models.PlacementEvent{
		ID:             "ev-1",
		Title:          "Campus Drive",
		Company:        models.CompanyDetails{CompanyName: "Acme Corp"},
		StartDate:      models.NewDateOnly(2025, time.March, 10),
		EndDate:        models.NewDateOnly(2025, time.March, 11),
		StoredStatus:   models.EventStatusCompleted,
		TotalAttendees: 40,
		SelectedCount:  7,
	}
	events := &mockExportEvents{events: []models.PlacementEvent{completed}}
	svc := newExportFixture(t, events, &mockExportRegistrations{})

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypePlacementSummary,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.NotEmpty(t, result.Token)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Title", "Company", "Start Date", "End Date", "Status", "Attendees", "Selected"}, records[0])
	assert.Equal(t, "Campus Drive", records[1][0])
	assert.Equal(t, "Acme Corp", records[1][1])
	assert.Equal(t, "40", records[1][5])
	assert.Equal(t, "7", records[1][6])
}

func TestGenerateRegistrationsDedupesRows(t *testing.T) {
	eventID := "ev-2"
	event := &models.PlacementEvent{ID: eventID, Title: "Acme Drive"}
	events := &mockExportEvents{byID: map[string]*models.PlacementEvent{eventID: event}}
	regs := &mockExportRegistrations{regs: []models.EventRegistration{
		{ID: "r1", EventID: eventID, RollNo: "21CS001", Email: "a@campus.edu", FullName: "Asha"},
		{ID: "r2", EventID: eventID, RollNo: "21CS001", Email: "A@CAMPUS.EDU", FullName: "Asha Again"},
		{ID: "r3", EventID: eventID, RollNo: "21CS002", Email: "b@campus.edu", FullName: "Bala"},
	}}
	svc := newExportFixture(t, events, regs)

	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeRegistrations,
		Params: models.ReportJobParams{EventID: &eventID, Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "21CS001", records[1][0])
	assert.Equal(t, "Asha", records[1][2])
	assert.Equal(t, "21CS002", records[2][0])
}

func TestGenerateRegistrationsRequiresEventID(t *testing.T) {
	svc := newExportFixture(t, &mockExportEvents{}, &mockExportRegistrations{})

	job := &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeRegistrations,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	_, err := svc.Generate(context.Background(), job)
	assert.Error(t, err)
}

func TestGenerateTokenRoundTrip(t *testing.T) {
	events := &mockExportEvents{events: []models.PlacementEvent{}}
	svc := newExportFixture(t, events, &mockExportRegistrations{})

	job := &models.ReportJob{
		ID:     "job-4",
		Type:   models.ReportTypePlacementSummary,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-4", jobID)
	assert.Equal(t, result.RelativePath, relPath)

	_, _, _, err = svc.ParseToken(result.Token+"x", false)
	assert.Error(t, err)
}

func TestCleanupRemovesExpiredFiles(t *testing.T) {
	events := &mockExportEvents{events: []models.PlacementEvent{}}
	svc := newExportFixture(t, events, &mockExportRegistrations{})

	job := &models.ReportJob{
		ID:     "job-5",
		Type:   models.ReportTypePlacementSummary,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	removed, err := svc.Cleanup(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, removed, result.RelativePath)

	_, err = svc.Open(result.RelativePath)
	assert.Error(t, err)
}
