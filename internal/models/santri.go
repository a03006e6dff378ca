package models

// StatusAktif enumerates the residency statuses a santri can hold.
type StatusAktif string

const (
	StatusAktifAktif       StatusAktif = "Aktif"
	StatusAktifBoyong      StatusAktif = "Boyong"
	StatusAktifLulus       StatusAktif = "Lulus"
	StatusAktifDikeluarkan StatusAktif = "Dikeluarkan"
)

// Valid reports whether the value is one of the known residency statuses.
func (s StatusAktif) Valid() bool {
	switch s {
	case StatusAktifAktif, StatusAktifBoyong, StatusAktifLulus, StatusAktifDikeluarkan:
		return true
	}
	return false
}

// StatusTanggungan enumerates the billing statuses shown on the roster.
type StatusTanggungan string

const (
	TanggunganLunas              StatusTanggungan = "Lunas"
	TanggunganBelumAdaTagihan    StatusTanggungan = "Belum Ada Tagihan"
	TanggunganAdaTunggakan       StatusTanggungan = "Ada Tunggakan"
	TanggunganMenungguVerifikasi StatusTanggungan = "Menunggu Verifikasi"
)

// Valid reports whether the value is one of the known billing statuses.
func (s StatusTanggungan) Valid() bool {
	switch s {
	case TanggunganLunas, TanggunganBelumAdaTagihan, TanggunganAdaTunggakan, TanggunganMenungguVerifikasi:
		return true
	}
	return false
}

// Santri is a resident student record scoped to a single kode asrama.
// CreatedAt is kept as Unix milliseconds to match the record identifiers,
// which embed the same timestamp.
type Santri struct {
	ID                string           `db:"id" json:"id"`
	Nama              string           `db:"nama" json:"nama"`
	KodeAsrama        string           `db:"kode_asrama" json:"kodeAsrama"`
	Kamar             string           `db:"kamar" json:"kamar"`
	JenjangPendidikan string           `db:"jenjang_pendidikan" json:"jenjangPendidikan"`
	ProgramStudi      string           `db:"program_studi" json:"programStudi"`
	Semester          string           `db:"semester" json:"semester"`
	TahunMasuk        string           `db:"tahun_masuk" json:"tahunMasuk"`
	NomorWalisantri   string           `db:"nomor_walisantri" json:"nomorWalisantri"`
	StatusAktif       StatusAktif      `db:"status_aktif" json:"statusAktif"`
	StatusTanggungan  StatusTanggungan `db:"status_tanggungan" json:"statusTanggungan"`
	JumlahTunggakan   int              `db:"jumlah_tunggakan" json:"jumlahTunggakan"`
	CreatedAt         int64            `db:"created_at" json:"createdAt"`
}

// SantriFilter captures the roster's conjunctive equality filters. The empty
// string (or "all") on any field means the field does not constrain results.
type SantriFilter struct {
	Kamar             string `json:"kamar"`
	JenjangPendidikan string `json:"jenjangPendidikan"`
	ProgramStudi      string `json:"programStudi"`
	Semester          string `json:"semester"`
	TahunMasuk        string `json:"tahunMasuk"`
	StatusAktif       string `json:"statusAktif"`
	StatusTanggungan  string `json:"statusTanggungan"`
}

// IsZero reports whether no filter field is active.
func (f SantriFilter) IsZero() bool {
	return !active(f.Kamar) && !active(f.JenjangPendidikan) && !active(f.ProgramStudi) &&
		!active(f.Semester) && !active(f.TahunMasuk) && !active(f.StatusAktif) && !active(f.StatusTanggungan)
}

// Matches applies the filter to a single record. Used when resolving
// select-all bulk deletions against an in-memory snapshot.
func (f SantriFilter) Matches(s Santri) bool {
	if active(f.Kamar) && s.Kamar != f.Kamar {
		return false
	}
	if active(f.JenjangPendidikan) && s.JenjangPendidikan != f.JenjangPendidikan {
		return false
	}
	if active(f.ProgramStudi) && s.ProgramStudi != f.ProgramStudi {
		return false
	}
	if active(f.Semester) && s.Semester != f.Semester {
		return false
	}
	if active(f.TahunMasuk) && s.TahunMasuk != f.TahunMasuk {
		return false
	}
	if active(f.StatusAktif) && string(s.StatusAktif) != f.StatusAktif {
		return false
	}
	if active(f.StatusTanggungan) && string(s.StatusTanggungan) != f.StatusTanggungan {
		return false
	}
	return true
}

func active(v string) bool {
	return v != "" && v != "all"
}
