package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/service"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
	"github.com/pesantren-dev/asrama-adp-api/pkg/response"
)

// AttendanceHandler exposes attendance report endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	exports    *service.ExportService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, exports *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exports: exports}
}

func reportRequestFromQuery(c *gin.Context) models.AttendanceReportRequest {
	return models.AttendanceReportRequest{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	}
}

// Record godoc
// @Summary Record an attendance entry
// @Description Store one santri's status within a session; re-recording overwrites
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.RecordAttendanceRequest true "Attendance entry"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/records [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req models.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	entry, err := h.attendance.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Generate godoc
// @Summary Generate attendance report
// @Description Aggregate attendance per santri over an inclusive date span
// @Tags Attendance
// @Produce json
// @Param startDate query string true "Start date (yyyy-mm-dd)"
// @Param endDate query string true "End date (yyyy-mm-dd, inclusive)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/report [get]
func (h *AttendanceHandler) Generate(c *gin.Context) {
	report, err := h.attendance.Generate(c.Request.Context(), reportRequestFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportCSV godoc
// @Summary Export attendance report as CSV
// @Tags Attendance
// @Produce json
// @Param startDate query string true "Start date (yyyy-mm-dd)"
// @Param endDate query string true "End date (yyyy-mm-dd, inclusive)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/report/export/csv [get]
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	result, err := h.exports.ExportAttendanceCSV(c.Request.Context(), reportRequestFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportPDF godoc
// @Summary Export attendance report as PDF
// @Tags Attendance
// @Produce json
// @Param startDate query string true "Start date (yyyy-mm-dd)"
// @Param endDate query string true "End date (yyyy-mm-dd, inclusive)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/report/export/pdf [get]
func (h *AttendanceHandler) ExportPDF(c *gin.Context) {
	result, err := h.exports.ExportAttendancePDF(c.Request.Context(), reportRequestFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download attendance CSV directly
// @Description Stream the rendered CSV with a download filename instead of a signed link
// @Tags Attendance
// @Produce text/csv
// @Param startDate query string true "Start date (yyyy-mm-dd)"
// @Param endDate query string true "End date (yyyy-mm-dd, inclusive)"
// @Success 200 {string} string "CSV payload"
// @Failure 400 {object} response.Envelope
// @Router /attendance/report/download [get]
func (h *AttendanceHandler) Download(c *gin.Context) {
	report, err := h.attendance.Generate(c.Request.Context(), reportRequestFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if report == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "report unavailable"))
		return
	}

	payload := h.attendance.RenderCSV(report)
	c.Header("Content-Disposition", `attachment; filename="`+h.attendance.CSVFilename(report)+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}
