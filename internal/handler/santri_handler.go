package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/service"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
	"github.com/pesantren-dev/asrama-adp-api/pkg/response"
)

// SantriHandler exposes roster endpoints.
type SantriHandler struct {
	santri  *service.SantriService
	bulk    *service.BulkService
	exports *service.ExportService
}

// NewSantriHandler constructs SantriHandler.
func NewSantriHandler(santri *service.SantriService, bulk *service.BulkService, exports *service.ExportService) *SantriHandler {
	return &SantriHandler{santri: santri, bulk: bulk, exports: exports}
}

func filterFromQuery(c *gin.Context) models.SantriFilter {
	return models.SantriFilter{
		Kamar:             c.Query("kamar"),
		JenjangPendidikan: c.Query("jenjangPendidikan"),
		ProgramStudi:      c.Query("programStudi"),
		Semester:          c.Query("semester"),
		TahunMasuk:        c.Query("tahunMasuk"),
		StatusAktif:       c.Query("statusAktif"),
		StatusTanggungan:  c.Query("statusTanggungan"),
	}
}

// List godoc
// @Summary List santri
// @Tags Santri
// @Produce json
// @Param kamar query string false "Filter by room"
// @Param jenjangPendidikan query string false "Filter by education level"
// @Param programStudi query string false "Filter by study program"
// @Param semester query string false "Filter by semester"
// @Param tahunMasuk query string false "Filter by enrollment year"
// @Param statusAktif query string false "Filter by residency status"
// @Param statusTanggungan query string false "Filter by billing status"
// @Success 200 {object} response.Envelope
// @Router /santri [get]
func (h *SantriHandler) List(c *gin.Context) {
	records, err := h.santri.List(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Get godoc
// @Summary Get santri detail
// @Tags Santri
// @Produce json
// @Param id path string true "Santri ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /santri/{id} [get]
func (h *SantriHandler) Get(c *gin.Context) {
	record, err := h.santri.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Create godoc
// @Summary Create santri
// @Tags Santri
// @Accept json
// @Produce json
// @Param payload body models.SantriInput true "Santri payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /santri [post]
func (h *SantriHandler) Create(c *gin.Context) {
	var input models.SantriInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid santri payload"))
		return
	}

	record, err := h.santri.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Update godoc
// @Summary Update santri
// @Tags Santri
// @Accept json
// @Produce json
// @Param id path string true "Santri ID"
// @Param payload body models.SantriInput true "Santri payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /santri/{id} [put]
func (h *SantriHandler) Update(c *gin.Context) {
	var input models.SantriInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid santri payload"))
		return
	}

	record, err := h.santri.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete santri
// @Tags Santri
// @Param id path string true "Santri ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /santri/{id} [delete]
func (h *SantriHandler) Delete(c *gin.Context) {
	if err := h.santri.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkImport godoc
// @Summary Start bulk import
// @Description Queue an import of parsed roster rows; progress is polled by operation id
// @Tags Santri
// @Accept json
// @Produce json
// @Param payload body models.BulkImportRequest true "Rows to import"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /santri/bulk-import [post]
func (h *SantriHandler) BulkImport(c *gin.Context) {
	var req models.BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}

	started, err := h.bulk.StartImport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, started)
}

// BulkDelete godoc
// @Summary Start bulk delete
// @Description Queue deletion of the given ids, or of every record matching a filter
// @Tags Santri
// @Accept json
// @Produce json
// @Param payload body models.BulkDeleteRequest true "Ids or filter"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /santri/bulk-delete [post]
func (h *SantriHandler) BulkDelete(c *gin.Context) {
	var req models.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delete payload"))
		return
	}

	started, err := h.bulk.StartDelete(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, started)
}

// BulkProgress godoc
// @Summary Poll bulk operation progress
// @Tags Santri
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /santri/bulk/{id} [get]
func (h *SantriHandler) BulkProgress(c *gin.Context) {
	snapshot, err := h.bulk.Progress(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// BulkDismiss godoc
// @Summary Dismiss a finished bulk operation
// @Tags Santri
// @Param id path string true "Operation ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /santri/bulk/{id} [delete]
func (h *SantriHandler) BulkDismiss(c *gin.Context) {
	if err := h.bulk.Dismiss(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportRoster godoc
// @Summary Export the roster
// @Description Render the filtered roster as xlsx (default) or csv and return a signed download link
// @Tags Santri
// @Produce json
// @Param format query string false "xlsx or csv"
// @Success 200 {object} response.Envelope
// @Router /santri/export [get]
func (h *SantriHandler) ExportRoster(c *gin.Context) {
	var (
		result *service.ExportResult
		err    error
	)
	switch c.DefaultQuery("format", "xlsx") {
	case "csv":
		result, err = h.exports.ExportRosterCSV(c.Request.Context(), filterFromQuery(c))
	case "xlsx":
		result, err = h.exports.ExportRoster(c.Request.Context(), filterFromQuery(c))
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported export format"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
