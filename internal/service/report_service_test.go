package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/dto"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/jobs"
)

type mockReportStore struct {
	jobs    map[string]*models.ReportJob
	updates []repository.UpdateReportJobParams
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ReportJob)
	}
	job.ID = "job-1"
	copy := *job
	m.jobs[job.ID] = &copy
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobs[id]; ok {
		copy := *job
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	m.updates = append(m.updates, params)
	if job, ok := m.jobs[id]; ok {
		if params.Status != nil {
			job.Status = *params.Status
		}
		if params.ResultURL != nil {
			job.ResultURL = params.ResultURL
		}
		if params.ErrorMessage != nil {
			job.ErrorMessage = params.ErrorMessage
		}
		if params.FinishedAt != nil {
			job.FinishedAt = params.FinishedAt
		}
	}
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockGenerator struct {
	result *ExportResult
	err    error
}

func (m *mockGenerator) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	return m.result, m.err
}

func TestReportServiceCreateJob(t *testing.T) {
	store := &mockReportStore{}
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	eventID := "e1"
	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypeRegistrations,
		EventID: &eventID,
		Format:  models.ReportFormatXLSX,
	}, "tpo-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc := NewReportService(&mockReportStore{}, &mockDispatcher{}, nil, nil, ReportServiceConfig{})
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, dto.ReportRequest{Type: "payroll", Format: models.ReportFormatCSV}, "tpo-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeRegistrations, Format: models.ReportFormatCSV}, "tpo-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	from := "2025-03-12"
	to := "2025-03-10"
	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypePlacementSummary, Format: models.ReportFormatCSV, From: &from, To: &to}, "tpo-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := &mockReportStore{}
	queue := &mockDispatcher{err: errors.New("queue full")}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypePlacementSummary,
		Format: models.ReportFormatPDF,
	}, "tpo-1")
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, store.jobs["job-1"].Status)
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	store := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Status: models.ReportStatusFinished, CreatedBy: "tpo-1"},
	}}
	svc := NewReportService(store, &mockDispatcher{}, nil, nil, ReportServiceConfig{})
	ctx := context.Background()

	resp, err := svc.GetStatus(ctx, "job-1", "tpo-1", models.RoleTPO)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, resp.Status)

	_, err = svc.GetStatus(ctx, "job-1", "tpo-2", models.RoleTPO)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Admins can inspect any job.
	_, err = svc.GetStatus(ctx, "job-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
}

func TestReportWorkerMarksFinished(t *testing.T) {
	store := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Status: models.ReportStatusQueued, Params: models.ReportJobParams{Format: models.ReportFormatCSV}},
	}}
	generator := &mockGenerator{result: &ExportResult{URL: "/api/v1/export/tok"}}
	worker := NewReportWorker(store, generator, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, store.jobs["job-1"].Status)
	require.NotNil(t, store.jobs["job-1"].ResultURL)
	assert.Equal(t, "/api/v1/export/tok", *store.jobs["job-1"].ResultURL)
}

func TestReportWorkerRequeuesUntilRetriesExhausted(t *testing.T) {
	store := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Status: models.ReportStatusQueued},
	}}
	generator := &mockGenerator{err: errors.New("boom")}
	worker := NewReportWorker(store, generator, 2, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, store.jobs["job-1"].Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, store.jobs["job-1"].Status)
}
