package models

import "time"

// AttendanceStatus enumerates per-session attendance outcomes.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceSick    AttendanceStatus = "sick"
	AttendancePulang  AttendanceStatus = "pulang"
)

// Valid reports whether the value is a known attendance status. Anything
// else recorded in a session is bucketed as "Tidak Diketahui" in reports.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceSick, AttendancePulang:
		return true
	}
	return false
}

// AttendanceEntry is a single santri's status within one recorded session.
type AttendanceEntry struct {
	SessionID  string           `db:"session_id" json:"sessionId"`
	SantriID   string           `db:"santri_id" json:"santriId"`
	KodeAsrama string           `db:"kode_asrama" json:"kodeAsrama"`
	Status     AttendanceStatus `db:"status" json:"status"`
	RecordedAt time.Time        `db:"recorded_at" json:"recordedAt"`
}

// RecordAttendanceRequest marks one santri's status within a session.
type RecordAttendanceRequest struct {
	SessionID string           `json:"sessionId" validate:"required"`
	SantriID  string           `json:"santriId" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required"`
}

// AttendanceReportRequest bounds a report by date. The end date is treated
// as inclusive through the end of its day.
type AttendanceReportRequest struct {
	StartDate string `json:"startDate" form:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" form:"endDate" validate:"required,datetime=2006-01-02"`
}

// AttendanceReportRow aggregates one santri's counts across the window.
type AttendanceReportRow struct {
	SantriID       string  `json:"santriId"`
	Nama           string  `json:"nama"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Sick           int     `json:"sick"`
	Pulang         int     `json:"pulang"`
	Unknown        int     `json:"unknown"`
	AttendancePct  float64 `json:"attendancePct"`
	SessionsInSpan int     `json:"sessionsInSpan"`
}

// AttendanceReport is the complete aggregation for a date window.
type AttendanceReport struct {
	KodeAsrama    string                `json:"kodeAsrama"`
	StartDate     string                `json:"startDate"`
	EndDate       string                `json:"endDate"`
	TotalSessions int                   `json:"totalSessions"`
	Rows          []AttendanceReportRow `json:"rows"`
	GeneratedAt   time.Time             `json:"generatedAt"`
}
