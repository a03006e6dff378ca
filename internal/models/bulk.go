package models

// SantriInput is one row of a bulk import, or the payload of a single
// create/update. Billing fields are managed by the system and not accepted
// from callers.
type SantriInput struct {
	Nama              string `json:"nama" validate:"required"`
	Kamar             string `json:"kamar"`
	JenjangPendidikan string `json:"jenjangPendidikan"`
	ProgramStudi      string `json:"programStudi"`
	Semester          string `json:"semester"`
	TahunMasuk        string `json:"tahunMasuk"`
	NomorWalisantri   string `json:"nomorWalisantri"`
	StatusAktif       string `json:"statusAktif" validate:"omitempty,oneof=Aktif Boyong Lulus Dikeluarkan"`
}

// BulkImportRequest carries the parsed rows of a roster import.
type BulkImportRequest struct {
	Items []SantriInput `json:"items" validate:"required,min=1,dive"`
}

// BulkDeleteRequest names records to remove, either explicitly by ID or as
// "everything matching the current filter" when Ids is empty and UseFilter
// is set.
type BulkDeleteRequest struct {
	Ids       []string     `json:"ids"`
	UseFilter bool         `json:"useFilter"`
	Filter    SantriFilter `json:"filter"`
}

// BulkOperationStarted acknowledges an accepted bulk operation.
type BulkOperationStarted struct {
	OperationID string `json:"operationId"`
	Total       int    `json:"total"`
}
