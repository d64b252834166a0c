package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
	"github.com/noah-isme/scholarhub-api/pkg/export"
	"github.com/noah-isme/scholarhub-api/pkg/storage"
)

const defaultExportTitle = "Scholarship Catalog"

var catalogExportHeaders = []string{"Name", "Amount", "Education Level", "Deadline", "Days Left", "Gender", "Community", "Status"}

type catalogQueryRunner interface {
	Run(ctx context.Context, q models.CatalogQuery) (query.Result, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, opts export.PDFOptions) ([]byte, error)
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
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders catalog query results and persists the files.
type ExportService struct {
	catalog catalogQueryRunner
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(catalog catalogQueryRunner, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		catalog: catalog,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate runs the job's catalog query and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	q := job.Params.Query
	if strings.TrimSpace(q.Status) == "" {
		q.Status = string(models.ScholarshipStatusActive)
	}
	result, err := s.catalog.Run(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("run catalog query: %w", err)
	}
	now := s.now().UTC()
	dataset := catalogDataset(result, now)

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		title := strings.TrimSpace(job.Params.Title)
		if title == "" {
			title = defaultExportTitle
		}
		payload, err = s.pdf.Render(dataset, export.PDFOptions{
			Title:     title,
			Subtitle:  exportSubtitle(result.Stats, now),
			Landscape: true,
			Weights:   map[string]float64{"Name": 3, "Community": 2, "Education Level": 1.5},
		})
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, now), payload)
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
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

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

func (s *ExportService) buildFilename(job *models.ExportJob, now time.Time) string {
	title := job.Params.Title
	if title == "" {
		title = "catalog"
	}
	return fmt.Sprintf("%s_%s.%s", sanitizeFilename(strings.ToLower(title)), now.Format("20060102_150405"), job.Params.Format)
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

func catalogDataset(result query.Result, now time.Time) export.Dataset {
	rows := make([]map[string]string, 0, len(result.Items))
	for _, item := range result.Items {
		days := ""
		if d := query.DaysUntilDeadline(item, now); d >= 0 {
			days = strconv.Itoa(d)
		}
		rows = append(rows, map[string]string{
			"Name":            item.Name,
			"Amount":          strconv.FormatFloat(query.ParseAmount(item.Amount), 'f', 2, 64),
			"Education Level": item.EducationLevel,
			"Deadline":        item.ApplicationEndDate,
			"Days Left":       days,
			"Gender":          item.GenderRequirement,
			"Community":       deref(item.Community),
			"Status":          string(query.DisplayStatus(item, now)),
		})
	}
	return export.Dataset{Headers: catalogExportHeaders, Rows: rows}
}

func exportSubtitle(stats query.Stats, now time.Time) string {
	return fmt.Sprintf("%d listings | total %.2f | average %.2f | %d closing soon | generated %s",
		stats.Count, stats.TotalAmount, stats.AverageAmount, stats.UrgentCount, now.Format("2006-01-02 15:04 MST"))
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
