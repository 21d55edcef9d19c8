package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dat-progress-api/internal/ledger"
	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/export"
	"github.com/noah-isme/dat-progress-api/pkg/storage"
)

const rosterTitle = "Danh sách học viên DAT"

var rosterHeaders = []string{"Ma HV", "Ho Ten", "Hang", "Ngay Sinh", "SDT", "Km", "Gio", "Dem", "Auto"}

type rosterSource interface {
	Snapshot(ctx context.Context, accountID string) (models.LedgerState, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
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
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload is an opened export file ready to stream.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService renders the filtered roster and hands out signed download links.
type ExportService struct {
	roster  rosterSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(roster rosterSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		roster:  roster,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Export renders every student matching filter and stores the file.
func (s *ExportService) Export(ctx context.Context, accountID string, filter models.StudentFilter, format models.ExportFormat) (*models.ExportResult, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}
	state, err := s.roster.Snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	students := ledger.Filter(state.Students, filter)
	now := s.now()
	dataset := BuildRosterDataset(students, now)

	var payload []byte
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, rosterTitle)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := s.buildFilename(accountID, format, now)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(accountID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("roster exported", zap.String("account_id", accountID), zap.String("format", string(format)), zap.Int("rows", len(students)))
	return &models.ExportResult{
		Format:    format,
		Filename:  path.Base(relPath),
		Rows:      len(students),
		URL:       fmt.Sprintf("%s/export/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveDownload validates token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(grant.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	filename := path.Base(grant.Path)
	return &ExportDownload{
		File:      file,
		Filename:  filename,
		Format:    models.ExportFormat(strings.TrimPrefix(path.Ext(filename), ".")),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Cleanup removes exports older than the result TTL.
func (s *ExportService) Cleanup() []string {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Sugar().Warnw("export cleanup failed", "error", err)
		return nil
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Debugw("expired exports removed", "count", len(deleted))
	}
	return deleted
}

// BuildRosterDataset lays students out in export columns. The automatic
// column reads N/A for classes without an automatic-hours target.
func BuildRosterDataset(students []models.Student, exportedAt time.Time) export.Dataset {
	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		auto := "N/A"
		if st.TargetAutomaticHours > 0 {
			auto = progressCell(st.CurrentAutomaticHours, st.TargetAutomaticHours)
		}
		rows = append(rows, map[string]string{
			"Ma HV":     st.ID,
			"Ho Ten":    st.FullName,
			"Hang":      st.LicenseClass.Label(),
			"Ngay Sinh": st.DateOfBirth,
			"SDT":       st.Phone,
			"Km":        progressCell(st.CurrentKm, st.TargetKm),
			"Gio":       progressCell(st.CurrentHours, st.TargetHours),
			"Dem":       progressCell(st.CurrentNightHours, st.TargetNightHours),
			"Auto":      auto,
		})
	}
	return export.Dataset{
		Headers:  rosterHeaders,
		Rows:     rows,
		Subtitle: "Ngày xuất: " + exportedAt.Format("2/1/2006"),
	}
}

func progressCell(current, target float64) string {
	return strconv.FormatFloat(current, 'f', -1, 64) + "/" + strconv.FormatFloat(target, 'f', -1, 64)
}

func (s *ExportService) buildFilename(accountID string, format models.ExportFormat, now time.Time) string {
	timestamp := now.UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/danh-sach-hoc-vien_%s.%s", sanitizeFilename(accountID), timestamp, format)
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
