package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/repository"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
)

// attendanceCSVHeader is the exact header line of exported reports.
const attendanceCSVHeader = "Nama,Hadir,Tidak Hadir,Sakit,Pulang,Tidak Diketahui,Persentase Kehadiran"

const reportDateLayout = "2006-01-02"

type attendanceRepository interface {
	CountSessions(ctx context.Context, kodeAsrama string, from, to time.Time) (int, error)
	CountByStatus(ctx context.Context, kodeAsrama string, from, to time.Time) ([]repository.StatusCount, error)
	Record(ctx context.Context, entry *models.AttendanceEntry) error
}

// AttendanceService aggregates recorded sessions into per-santri reports.
type AttendanceService struct {
	attendance attendanceRepository
	santri     santriRepository
	cache      santriCache
	validator  *validator.Validate
	logger     *zap.Logger
	kodeAsrama string
	cacheTTL   time.Duration
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(attendance attendanceRepository, santri santriRepository, validate *validator.Validate, logger *zap.Logger, kodeAsrama string) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{
		attendance: attendance,
		santri:     santri,
		validator:  validate,
		logger:     logger,
		kodeAsrama: kodeAsrama,
	}
}

// SetCache enables TTL caching of generated reports. May be left unset.
func (s *AttendanceService) SetCache(cache santriCache, ttl time.Duration) {
	s.cache = cache
	s.cacheTTL = ttl
}

// Record stores one santri's status for a session. Re-recording the same
// (session, santri) pair overwrites the earlier status.
func (s *AttendanceService) Record(ctx context.Context, req models.RecordAttendanceRequest) (*models.AttendanceEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", req.Status))
	}

	if _, err := s.santri.FindByID(ctx, req.SantriID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "santri not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load santri")
	}

	entry := &models.AttendanceEntry{
		SessionID:  req.SessionID,
		SantriID:   req.SantriID,
		KodeAsrama: s.kodeAsrama,
		Status:     req.Status,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.attendance.Record(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return entry, nil
}

// Generate builds the report for [startDate, endDate]. The end date counts
// through 23:59:59 of its day, so a one-day report covers that whole day.
func (s *AttendanceService) Generate(ctx context.Context, req models.AttendanceReportRequest) (*models.AttendanceReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report range")
	}

	cacheKey := fmt.Sprintf("laporan:%s:%s:%s", s.kodeAsrama, req.StartDate, req.EndDate)
	if s.cache != nil {
		var cached models.AttendanceReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	from, err := time.Parse(reportDateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	endDay, err := time.Parse(reportDateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if endDay.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date before start date")
	}
	to := endDay.Add(24*time.Hour - time.Second)

	roster, err := s.santri.List(ctx, s.kodeAsrama, models.SantriFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	totalSessions, err := s.attendance.CountSessions(ctx, s.kodeAsrama, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}

	counts, err := s.attendance.CountByStatus(ctx, s.kodeAsrama, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}

	perSantri := make(map[string]map[string]int, len(roster))
	for _, c := range counts {
		if perSantri[c.SantriID] == nil {
			perSantri[c.SantriID] = make(map[string]int)
		}
		perSantri[c.SantriID][c.Status] += c.Count
	}

	rows := make([]models.AttendanceReportRow, 0, len(roster))
	for _, santri := range roster {
		tallies := perSantri[santri.ID]
		row := models.AttendanceReportRow{
			SantriID:       santri.ID,
			Nama:           santri.Nama,
			SessionsInSpan: totalSessions,
		}
		recorded := 0
		for status, n := range tallies {
			recorded += n
			switch models.AttendanceStatus(status) {
			case models.AttendancePresent:
				row.Present += n
			case models.AttendanceAbsent:
				row.Absent += n
			case models.AttendanceSick:
				row.Sick += n
			case models.AttendancePulang:
				row.Pulang += n
			default:
				row.Unknown += n
			}
		}
		// Sessions with no entry for this santri count as unknown too.
		if missed := totalSessions - recorded; missed > 0 {
			row.Unknown += missed
		}
		if totalSessions > 0 {
			row.AttendancePct = math.Round(float64(row.Present)/float64(totalSessions)*1000) / 10
		}
		rows = append(rows, row)
	}

	report := &models.AttendanceReport{
		KodeAsrama:    s.kodeAsrama,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		TotalSessions: totalSessions,
		Rows:          rows,
		GeneratedAt:   time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache report", zap.Error(err))
		}
	}
	return report, nil
}

// RenderCSV serializes a report in the export format: fixed header, the
// name always quoted, percentage as a decimal with a trailing percent sign.
func (s *AttendanceService) RenderCSV(report *models.AttendanceReport) []byte {
	var b strings.Builder
	b.WriteString(attendanceCSVHeader)
	b.WriteString("\n")
	for _, row := range report.Rows {
		name := strings.ReplaceAll(row.Nama, `"`, `""`)
		b.WriteString(fmt.Sprintf("\"%s\",%d,%d,%d,%d,%d,%s%%\n",
			name, row.Present, row.Absent, row.Sick, row.Pulang, row.Unknown, formatPct(row.AttendancePct)))
	}
	return []byte(b.String())
}

// CSVFilename names an export after the asrama and the report's start date.
func (s *AttendanceService) CSVFilename(report *models.AttendanceReport) string {
	return fmt.Sprintf("laporan-kehadiran-%s-%s.csv", report.KodeAsrama, report.StartDate)
}

func formatPct(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
