package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
	"github.com/grantos/grantos-api/pkg/export"
	"github.com/grantos/grantos-api/pkg/storage"
)

// contractExportColumns is the fixed column order of contract exports.
var contractExportColumns = []string{
	"Grant Name", "Contract Number", "Grantor", "Grantee",
	"Total Amount", "Start Date", "End Date", "Status", "Uploaded At",
}

type exportContractStore interface {
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, int, error)
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
	Render(data export.Dataset, title string) ([]byte, error)
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

// ExportService builds contract report datasets, renders them, and
// persists the rendered files for signed download.
type ExportService struct {
	contracts exportContractStore
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(contracts exportContractStore, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewQuotedCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		contracts: contracts,
		storage:   files,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ContractReport returns the filtered listing together with aggregates
// computed over exactly that result set.
func (s *ExportService) ContractReport(ctx context.Context, query dto.ContractQuery, actor *models.JWTClaims) (*dto.ContractReportResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	contracts, err := s.listAll(ctx, models.ContractFilter{
		Status:    query.Status,
		Search:    query.Search,
		DateRange: query.DateRange,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build contract report")
	}
	return &dto.ContractReportResponse{
		Contracts:  contracts,
		Aggregates: ComputeAggregates(contracts),
	}, nil
}

// ExportContractsCSV renders the filtered listing as a fully quoted CSV.
// The filename carries the export date.
func (s *ExportService) ExportContractsCSV(ctx context.Context, query dto.ContractQuery, actor *models.JWTClaims) (string, []byte, error) {
	if actor == nil {
		return "", nil, appErrors.ErrUnauthorized
	}
	contracts, err := s.listAll(ctx, models.ContractFilter{
		Status:    query.Status,
		Search:    query.Search,
		DateRange: query.DateRange,
	})
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export contracts")
	}
	payload, err := s.csv.Render(contractDataset(contracts))
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	filename := fmt.Sprintf("contracts_export_%s.csv", s.now().Format("2006-01-02"))
	return filename, payload, nil
}

// ComputeAggregates derives summary numbers from a filtered result set.
// Contracts without an amount count toward totals as zero.
func ComputeAggregates(contracts []models.Contract) dto.ContractAggregates {
	agg := dto.ContractAggregates{Count: len(contracts)}
	for _, contract := range contracts {
		if contract.TotalAmount != nil {
			agg.TotalValue += *contract.TotalAmount
		}
		switch contract.Status {
		case models.ContractStatusApproved:
			agg.ApprovedCount++
		case models.ContractStatusUnderReview, models.ContractStatusReviewed:
			agg.PendingReviewCount++
		case models.ContractStatusDraft:
			agg.DraftCount++
		}
	}
	if agg.Count > 0 {
		agg.AverageValue = agg.TotalValue / float64(agg.Count)
	}
	return agg
}

// Generate builds the dataset for a queued job and stores the rendered
// export, returning signed download metadata.
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

// Cleanup removes files older than ttl (defaults to the configured
// ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	filter := models.ContractFilter{
		Search:    job.Params.Search,
		Status:    job.Params.Status,
		DateRange: job.Params.DateRange,
	}
	switch job.Type {
	case models.ReportTypeContracts:
		contracts, err := s.listAll(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		return contractDataset(contracts), "Contract Report", nil
	case models.ReportTypeDecisions:
		filter.Status = []models.ContractStatus{models.ContractStatusApproved, models.ContractStatusRejected}
		contracts, err := s.listAll(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		return decisionDataset(contracts), "Decision Report", nil
	case models.ReportTypeArchive:
		filter.Status = []models.ContractStatus{models.ContractStatusArchived}
		contracts, err := s.listAll(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		return archiveDataset(contracts), "Archive Report", nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// listAll walks the paged listing so exports always cover the full
// filtered set.
func (s *ExportService) listAll(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error) {
	const pageSize = 200
	filter.PageSize = pageSize
	var all []models.Contract
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := s.contracts.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(all) >= total || len(batch) == 0 {
			return all, nil
		}
	}
}

func contractDataset(contracts []models.Contract) export.Dataset {
	rows := make([]map[string]string, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, map[string]string{
			"Grant Name":      c.GrantName,
			"Contract Number": derefString(c.ContractNumber),
			"Grantor":         c.Grantor,
			"Grantee":         c.Grantee,
			"Total Amount":    formatAmount(c.TotalAmount),
			"Start Date":      formatExportDate(c.StartDate),
			"End Date":        formatExportDate(c.EndDate),
			"Status":          string(c.Status),
			"Uploaded At":     c.UploadedAt.UTC().Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: contractExportColumns, Rows: rows}
}

func decisionDataset(contracts []models.Contract) export.Dataset {
	headers := []string{"Grant Name", "Status", "Decision", "Decision Comments", "Decided By", "Decided At"}
	rows := make([]map[string]string, 0, len(contracts))
	for _, c := range contracts {
		decision := ""
		if c.DecisionStatus != nil {
			decision = string(*c.DecisionStatus)
		}
		rows = append(rows, map[string]string{
			"Grant Name":        c.GrantName,
			"Status":            string(c.Status),
			"Decision":          decision,
			"Decision Comments": derefString(c.DecisionComments),
			"Decided By":        derefString(c.ApprovedBy),
			"Decided At":        formatExportDate(c.ApprovedAt),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func archiveDataset(contracts []models.Contract) export.Dataset {
	headers := []string{"Grant Name", "Grantor", "Grantee", "Archived At", "Archive Reason", "Archive Notes"}
	rows := make([]map[string]string, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, map[string]string{
			"Grant Name":     c.GrantName,
			"Grantor":        c.Grantor,
			"Grantee":        c.Grantee,
			"Archived At":    formatExportDate(c.ArchivedAt),
			"Archive Reason": derefString(c.ArchiveReason),
			"Archive Notes":  derefString(c.ArchiveNotes),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", strings.ToLower(string(job.Type)), timestamp, job.Params.Format)
}

func formatAmount(amount *float64) string {
	if amount == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *amount)
}

func formatExportDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
