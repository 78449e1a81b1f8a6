package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/export"
	"github.com/noah-isme/ctp-api/pkg/storage"
)

type exportEventSource interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.PlacementEvent, int, error)
	GetByID(ctx context.Context, id string) (*models.PlacementEvent, error)
}

type exportRegistrationSource interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.EventRegistration, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

type tabularRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	events        exportEventSource
	registrations exportRegistrationSource
	storage       fileStorage
	csv           tabularRenderer
	xlsx          tabularRenderer
	pdf           pdfRenderer
	signer        *storage.SignedURLSigner
	logger        *zap.Logger
	cfg           ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(events exportEventSource, registrations exportRegistrationSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		events:        events,
		registrations: registrations,
		storage:       store,
		csv:           export.NewCSVExporter(),
		xlsx:          export.NewXLSXExporter(),
		pdf:           export.NewPDFExporter(),
		signer:        signer,
		logger:        logger,
		cfg:           cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatXLSX:
		payload, err = s.xlsx.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.EventID != nil && *job.Params.EventID != "" {
		scope = sanitizeFilename(*job.Params.EventID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypePlacementSummary:
		return s.buildPlacementSummaryDataset(ctx, job.Params)
	case models.ReportTypeRegistrations:
		return s.buildRegistrationsDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildPlacementSummaryDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.EventFilter{From: params.From, To: params.To, PageSize: 200}
	events, _, err := s.events.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	today := models.Today()
	dataRows := make([]map[string]string, 0, len(events))
	for _, event := range events {
		event.Derive(today)
		row := map[string]string{
			"Title":      event.Title,
			"Company":    event.Company.CompanyName,
			"Start Date": event.StartDate.String(),
			"End Date":   event.EndDate.String(),
			"Status":     string(event.DerivedStatus),
			"Attendees":  "",
			"Selected":   "",
		}
		if summary := event.Summary(); summary != nil {
			row["Attendees"] = fmt.Sprintf("%d", summary.TotalAttendees)
			row["Selected"] = fmt.Sprintf("%d", summary.SelectedStudents)
		}
		dataRows = append(dataRows, row)
	}
	dataset := export.Dataset{
		Headers: []string{"Title", "Company", "Start Date", "End Date", "Status", "Attendees", "Selected"},
		Rows:    dataRows,
	}
	return dataset, "Placement Summary", nil
}

func (s *ExportService) buildRegistrationsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.EventID == nil || *params.EventID == "" {
		return export.Dataset{}, "", fmt.Errorf("registrations report requires an event id")
	}
	event, err := s.events.GetByID(ctx, *params.EventID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	regs, err := s.registrations.ListByEvent(ctx, event.ID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	regs = models.DeduplicateRegistrations(regs)

	dataRows := make([]map[string]string, 0, len(regs))
	for _, reg := range regs {
		batch := ""
		if reg.BatchID != nil {
			batch = *reg.BatchID
		}
		dataRows = append(dataRows, map[string]string{
			"Roll No":       reg.RollNo,
			"Email":         reg.Email,
			"Name":          reg.FullName,
			"Batch":         batch,
			"Phone":         reg.Phone,
			"Registered At": reg.RegisteredAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Roll No", "Email", "Name", "Batch", "Phone", "Registered At"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Registrations %s", event.Title)
	return dataset, title, nil
}
