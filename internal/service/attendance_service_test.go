package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/repository"
)

type mockAttendanceRepo struct {
	sessions int
	counts   []repository.StatusCount
	entries  []models.AttendanceEntry
	lastFrom time.Time
	lastTo   time.Time
}

func (m *mockAttendanceRepo) Record(ctx context.Context, entry *models.AttendanceEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAttendanceRepo) CountSessions(ctx context.Context, kodeAsrama string, from, to time.Time) (int, error) {
	m.lastFrom, m.lastTo = from, to
	return m.sessions, nil
}

func (m *mockAttendanceRepo) CountByStatus(ctx context.Context, kodeAsrama string, from, to time.Time) ([]repository.StatusCount, error) {
	return m.counts, nil
}

func newAttendanceService(att *mockAttendanceRepo, santri *mockSantriRepo) *AttendanceService {
	return NewAttendanceService(att, santri, validator.New(), zap.NewNop(), "A1")
}

func TestAttendanceServiceRecord(t *testing.T) {
	santriRepo := newMockSantriRepo()
	santriRepo.santri["budi_1"] = models.Santri{ID: "budi_1", Nama: "Budi", KodeAsrama: "A1"}
	att := &mockAttendanceRepo{}
	svc := newAttendanceService(att, santriRepo)

	entry, err := svc.Record(context.Background(), models.RecordAttendanceRequest{
		SessionID: "sesi-subuh",
		SantriID:  "budi_1",
		Status:    models.AttendanceSick,
	})
	require.NoError(t, err)
	assert.Equal(t, "A1", entry.KodeAsrama)
	assert.False(t, entry.RecordedAt.IsZero())
	require.Len(t, att.entries, 1)
	assert.Equal(t, models.AttendanceSick, att.entries[0].Status)
}

func TestAttendanceServiceRecordRejectsUnknownStatus(t *testing.T) {
	santriRepo := newMockSantriRepo()
	santriRepo.santri["budi_1"] = models.Santri{ID: "budi_1", Nama: "Budi", KodeAsrama: "A1"}
	svc := newAttendanceService(&mockAttendanceRepo{}, santriRepo)

	_, err := svc.Record(context.Background(), models.RecordAttendanceRequest{
		SessionID: "sesi-subuh",
		SantriID:  "budi_1",
		Status:    "izin",
	})
	require.Error(t, err)
}

func TestAttendanceServiceRecordUnknownSantri(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{}, newMockSantriRepo())

	_, err := svc.Record(context.Background(), models.RecordAttendanceRequest{
		SessionID: "sesi-subuh",
		SantriID:  "ghost",
		Status:    models.AttendancePresent,
	})
	require.Error(t, err)
}

func TestAttendanceServiceGenerate(t *testing.T) {
	santriRepo := newMockSantriRepo()
	santriRepo.santri["a"] = models.Santri{ID: "a", Nama: "Ahmad Fauzi", KodeAsrama: "A1"}
	santriRepo.santri["b"] = models.Santri{ID: "b", Nama: "Budi Santoso", KodeAsrama: "A1"}

	att := &mockAttendanceRepo{
		sessions: 10,
		counts: []repository.StatusCount{
			{SantriID: "a", Status: "present", Count: 8},
			{SantriID: "a", Status: "sick", Count: 1},
			{SantriID: "a", Status: "izin", Count: 1}, // unrecognized status
			{SantriID: "b", Status: "present", Count: 5},
			{SantriID: "b", Status: "absent", Count: 2},
			{SantriID: "b", Status: "pulang", Count: 1},
		},
	}
	svc := newAttendanceService(att, santriRepo)

	report, err := svc.Generate(context.Background(), models.AttendanceReportRequest{StartDate: "2025-01-01", EndDate: "2025-01-31"})
	require.NoError(t, err)

	assert.Equal(t, 10, report.TotalSessions)
	require.Len(t, report.Rows, 2)

	ahmad := report.Rows[0]
	assert.Equal(t, "Ahmad Fauzi", ahmad.Nama)
	assert.Equal(t, 8, ahmad.Present)
	assert.Equal(t, 1, ahmad.Sick)
	assert.Equal(t, 1, ahmad.Unknown)
	assert.Equal(t, 80.0, ahmad.AttendancePct)

	budi := report.Rows[1]
	assert.Equal(t, 5, budi.Present)
	assert.Equal(t, 2, budi.Absent)
	assert.Equal(t, 1, budi.Pulang)
	// Two sessions with no entry at all for Budi.
	assert.Equal(t, 2, budi.Unknown)
	assert.Equal(t, 50.0, budi.AttendancePct)
}

func TestAttendanceServiceEndDateInclusive(t *testing.T) {
	att := &mockAttendanceRepo{}
	svc := newAttendanceService(att, newMockSantriRepo())

	_, err := svc.Generate(context.Background(), models.AttendanceReportRequest{StartDate: "2025-01-01", EndDate: "2025-01-01"})
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01T00:00:00Z", att.lastFrom.Format(time.RFC3339))
	assert.Equal(t, "2025-01-01T23:59:59Z", att.lastTo.Format(time.RFC3339))
}

func TestAttendanceServiceRejectsInvertedRange(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{}, newMockSantriRepo())

	_, err := svc.Generate(context.Background(), models.AttendanceReportRequest{StartDate: "2025-02-01", EndDate: "2025-01-01"})
	require.Error(t, err)
}

func TestAttendanceServiceRenderCSV(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{}, newMockSantriRepo())

	report := &models.AttendanceReport{
		KodeAsrama: "A1",
		StartDate:  "2025-01-01",
		EndDate:    "2025-01-31",
		Rows: []models.AttendanceReportRow{
			{Nama: "Ahmad Fauzi", Present: 8, Absent: 0, Sick: 1, Pulang: 0, Unknown: 1, AttendancePct: 80},
			{Nama: `Budi "Bud" Santoso`, Present: 5, Absent: 2, Sick: 0, Pulang: 1, Unknown: 2, AttendancePct: 52.5},
		},
	}

	got := string(svc.RenderCSV(report))
	want := "Nama,Hadir,Tidak Hadir,Sakit,Pulang,Tidak Diketahui,Persentase Kehadiran\n" +
		"\"Ahmad Fauzi\",8,0,1,0,1,80%\n" +
		"\"Budi \"\"Bud\"\" Santoso\",5,2,0,1,2,52.5%\n"
	assert.Equal(t, want, got)

	assert.Equal(t, "laporan-kehadiran-A1-2025-01-01.csv", svc.CSVFilename(report))
}

func TestAttendanceServiceZeroSessions(t *testing.T) {
	santriRepo := newMockSantriRepo()
	santriRepo.santri["a"] = models.Santri{ID: "a", Nama: "Ahmad", KodeAsrama: "A1"}
	svc := newAttendanceService(&mockAttendanceRepo{sessions: 0}, santriRepo)

	report, err := svc.Generate(context.Background(), models.AttendanceReportRequest{StartDate: "2025-01-01", EndDate: "2025-01-02"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Zero(t, report.Rows[0].AttendancePct)
	assert.Zero(t, report.Rows[0].Unknown)
}
