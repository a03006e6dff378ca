package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
)

const santriColumns = `id, nama, kode_asrama, kamar, jenjang_pendidikan, program_studi, semester, tahun_masuk, nomor_walisantri, status_aktif, status_tanggungan, jumlah_tunggakan, created_at`

// SantriRepository manages persistence for santri records.
type SantriRepository struct {
	db *sqlx.DB
}

// NewSantriRepository constructs a SantriRepository.
func NewSantriRepository(db *sqlx.DB) *SantriRepository {
	return &SantriRepository{db: db}
}

// List returns all santri of one asrama matching the filter, ordered by name.
// Filter fields holding "" or "all" are inactive; active fields combine
// conjunctively.
func (r *SantriRepository) List(ctx context.Context, kodeAsrama string, filter models.SantriFilter) ([]models.Santri, error) {
	conditions := []string{"kode_asrama = $1"}
	args := []interface{}{kodeAsrama}

	addEq := func(column, value string) {
		if value == "" || value == "all" {
			return
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	addEq("kamar", filter.Kamar)
	addEq("jenjang_pendidikan", filter.JenjangPendidikan)
	addEq("program_studi", filter.ProgramStudi)
	addEq("semester", filter.Semester)
	addEq("tahun_masuk", filter.TahunMasuk)
	addEq("status_aktif", filter.StatusAktif)
	addEq("status_tanggungan", filter.StatusTanggungan)

	query := fmt.Sprintf("SELECT %s FROM santri WHERE %s ORDER BY nama ASC", santriColumns, strings.Join(conditions, " AND "))

	santri := make([]models.Santri, 0)
	if err := r.db.SelectContext(ctx, &santri, query, args...); err != nil {
		return nil, fmt.Errorf("list santri: %w", err)
	}
	return santri, nil
}

// FindByID fetches one santri by identifier.
func (r *SantriRepository) FindByID(ctx context.Context, id string) (*models.Santri, error) {
	query := fmt.Sprintf("SELECT %s FROM santri WHERE id = $1 LIMIT 1", santriColumns)
	var s models.Santri
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find santri by id: %w", err)
	}
	return &s, nil
}

// FindByName fetches one santri of an asrama by case-insensitive name match.
// Used to link walisantri accounts that only carry the santri's name.
func (r *SantriRepository) FindByName(ctx context.Context, kodeAsrama, nama string) (*models.Santri, error) {
	query := fmt.Sprintf("SELECT %s FROM santri WHERE kode_asrama = $1 AND LOWER(nama) = LOWER($2) LIMIT 1", santriColumns)
	var s models.Santri
	if err := r.db.GetContext(ctx, &s, query, kodeAsrama, nama); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find santri by name: %w", err)
	}
	return &s, nil
}

// Save writes a santri record, trying an update first and inserting when the
// record does not exist yet.
func (r *SantriRepository) Save(ctx context.Context, s *models.Santri) error {
	const update = `UPDATE santri SET nama = :nama, kode_asrama = :kode_asrama, kamar = :kamar, jenjang_pendidikan = :jenjang_pendidikan,
        program_studi = :program_studi, semester = :semester, tahun_masuk = :tahun_masuk, nomor_walisantri = :nomor_walisantri,
        status_aktif = :status_aktif, status_tanggungan = :status_tanggungan, jumlah_tunggakan = :jumlah_tunggakan
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, update, s)
	if err != nil {
		return fmt.Errorf("update santri: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update santri: %w", err)
	}
	if affected > 0 {
		return nil
	}

	const insert = `INSERT INTO santri (id, nama, kode_asrama, kamar, jenjang_pendidikan, program_studi, semester, tahun_masuk,
        nomor_walisantri, status_aktif, status_tanggungan, jumlah_tunggakan, created_at)
        VALUES (:id, :nama, :kode_asrama, :kamar, :jenjang_pendidikan, :program_studi, :semester, :tahun_masuk,
        :nomor_walisantri, :status_aktif, :status_tanggungan, :jumlah_tunggakan, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, insert, s); err != nil {
		return fmt.Errorf("insert santri: %w", err)
	}
	return nil
}

// Delete removes one santri by identifier.
func (r *SantriRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM santri WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete santri: %w", err)
	}
	return nil
}

// DeleteBatch removes the given santri in a single transaction. Either the
// whole batch is removed or none of it.
func (r *SantriRepository) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := sqlx.In(`DELETE FROM santri WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("build delete batch: %w", err)
	}
	query = tx.Rebind(query)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete batch: %w", err)
	}
	return nil
}
