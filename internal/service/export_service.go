package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
	"github.com/pesantren-dev/asrama-adp-api/pkg/export"
	"github.com/pesantren-dev/asrama-adp-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type excelRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
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
	Filename     string
	Token        string
	URL          string
	ExpiresAt    time.Time
}

// ExportService renders roster and attendance files, persists them and
// hands out signed download URLs.
type ExportService struct {
	santri     *SantriService
	attendance *AttendanceService
	storage    fileStorage
	excel      excelRenderer
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(santri *SantriService, attendance *AttendanceService, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		santri:     santri,
		attendance: attendance,
		storage:    store,
		excel:      export.NewExcelExporter(),
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

func rosterDataset(roster []models.Santri) export.Dataset {
	headers := []string{"Nama", "Kamar", "Jenjang Pendidikan", "Program Studi", "Semester", "Tahun Masuk", "Nomor Walisantri", "Status Aktif", "Status Tanggungan", "Jumlah Tunggakan"}
	rows := make([]map[string]string, 0, len(roster))
	for _, santri := range roster {
		rows = append(rows, map[string]string{
			"Nama":               santri.Nama,
			"Kamar":              santri.Kamar,
			"Jenjang Pendidikan": santri.JenjangPendidikan,
			"Program Studi":      santri.ProgramStudi,
			"Semester":           santri.Semester,
			"Tahun Masuk":        santri.TahunMasuk,
			"Nomor Walisantri":   santri.NomorWalisantri,
			"Status Aktif":       string(santri.StatusAktif),
			"Status Tanggungan":  string(santri.StatusTanggungan),
			"Jumlah Tunggakan":   fmt.Sprintf("%d", santri.JumlahTunggakan),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// ExportRoster renders the filtered roster into an XLSX workbook named
// after today's date.
func (s *ExportService) ExportRoster(ctx context.Context, filter models.SantriFilter) (*ExportResult, error) {
	roster, err := s.santri.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	payload, err := s.excel.Render(rosterDataset(roster), "Data Santri")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster export")
	}

	filename := fmt.Sprintf("Data-Santri-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	return s.store(filename, "roster/"+filename, payload)
}

// ExportRosterCSV renders the filtered roster as plain CSV.
func (s *ExportService) ExportRosterCSV(ctx context.Context, filter models.SantriFilter) (*ExportResult, error) {
	roster, err := s.santri.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	payload, err := s.csv.Render(rosterDataset(roster))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster export")
	}

	filename := fmt.Sprintf("Data-Santri-%s.csv", time.Now().UTC().Format("2006-01-02"))
	return s.store(filename, "roster/"+filename, payload)
}

// ExportAttendanceCSV generates the report and stores it in the exact
// export format.
func (s *ExportService) ExportAttendanceCSV(ctx context.Context, req models.AttendanceReportRequest) (*ExportResult, error) {
	report, err := s.attendance.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	filename := s.attendance.CSVFilename(report)
	return s.store(filename, "laporan/"+filename, s.attendance.RenderCSV(report))
}

// ExportAttendancePDF generates the report as a printable table.
func (s *ExportService) ExportAttendancePDF(ctx context.Context, req models.AttendanceReportRequest) (*ExportResult, error) {
	report, err := s.attendance.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	headers := []string{"Nama", "Hadir", "Tidak Hadir", "Sakit", "Pulang", "Tidak Diketahui", "Persentase Kehadiran"}
	rows := make([]map[string]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, map[string]string{
			"Nama":                 row.Nama,
			"Hadir":                fmt.Sprintf("%d", row.Present),
			"Tidak Hadir":          fmt.Sprintf("%d", row.Absent),
			"Sakit":                fmt.Sprintf("%d", row.Sick),
			"Pulang":               fmt.Sprintf("%d", row.Pulang),
			"Tidak Diketahui":      fmt.Sprintf("%d", row.Unknown),
			"Persentase Kehadiran": formatPct(row.AttendancePct) + "%",
		})
	}

	title := fmt.Sprintf("Laporan Kehadiran %s (%s s.d. %s)", report.KodeAsrama, report.StartDate, report.EndDate)
	payload, err := s.pdf.Render(export.Dataset{Headers: headers, Rows: rows}, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance pdf")
	}

	filename := fmt.Sprintf("laporan-kehadiran-%s-%s.pdf", report.KodeAsrama, report.StartDate)
	return s.store(filename, "laporan/"+filename, payload)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) store(filename, relPath string, payload []byte) (*ExportResult, error) {
	stored, err := s.storage.Save(relPath, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(uuid.NewString(), stored)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: stored,
		Filename:     filename,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}
