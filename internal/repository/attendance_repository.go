package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
)

// AttendanceRepository reads recorded attendance sessions and entries.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CountSessions returns the number of distinct sessions recorded for the
// asrama within [from, to].
func (r *AttendanceRepository) CountSessions(ctx context.Context, kodeAsrama string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(DISTINCT session_id) FROM attendance_entries
        WHERE kode_asrama = $1 AND recorded_at >= $2 AND recorded_at <= $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, kodeAsrama, from, to); err != nil {
		return 0, fmt.Errorf("count attendance sessions: %w", err)
	}
	return total, nil
}

// StatusCount is an aggregated (santri, status) tally within a window.
type StatusCount struct {
	SantriID string `db:"santri_id"`
	Status   string `db:"status"`
	Count    int    `db:"count"`
}

// CountByStatus aggregates per-santri status tallies for the asrama within
// [from, to]. Statuses outside the known set come back verbatim; the report
// layer buckets them as unknown.
func (r *AttendanceRepository) CountByStatus(ctx context.Context, kodeAsrama string, from, to time.Time) ([]StatusCount, error) {
	const query = `SELECT santri_id, status, COUNT(*) AS count FROM attendance_entries
        WHERE kode_asrama = $1 AND recorded_at >= $2 AND recorded_at <= $3
        GROUP BY santri_id, status`
	counts := make([]StatusCount, 0)
	if err := r.db.SelectContext(ctx, &counts, query, kodeAsrama, from, to); err != nil {
		return nil, fmt.Errorf("aggregate attendance: %w", err)
	}
	return counts, nil
}

// Record stores one attendance entry. Duplicate (session, santri) pairs
// overwrite the previous status.
func (r *AttendanceRepository) Record(ctx context.Context, entry *models.AttendanceEntry) error {
	const query = `INSERT INTO attendance_entries (session_id, santri_id, kode_asrama, status, recorded_at)
        VALUES (:session_id, :santri_id, :kode_asrama, :status, :recorded_at)
        ON CONFLICT (session_id, santri_id) DO UPDATE SET status = EXCLUDED.status, recorded_at = EXCLUDED.recorded_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("record attendance: %w", err)
	}
	return nil
}
