package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/service"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
	"github.com/noah-isme/tutor-match-api/pkg/response"
)

type termResetter interface {
	Reset(ctx context.Context, closeIntake bool) (*models.TermResetSummary, error)
}

type loadAuditor interface {
	Run(ctx context.Context, repair bool) (*models.LoadAuditReport, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, view service.RosterView, format string) (*service.RosterFile, error)
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

// AdminHandler exposes coordinator maintenance endpoints.
type AdminHandler struct {
	terms   termResetter
	audits  loadAuditor
	reports rosterExporter
	metrics metricsSnapshotter
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(terms termResetter, audits loadAuditor, reports rosterExporter, metrics metricsSnapshotter) *AdminHandler {
	return &AdminHandler{terms: terms, audits: audits, reports: reports, metrics: metrics}
}

// ResetTerm godoc
// @Summary End-of-term reset
// @Description Deletes every TERM request and recomputes tutee counts from the remaining SINGLE sessions.
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.TermResetRequest false "Reset options"
// @Success 200 {object} response.Envelope
// @Router /admin/term/reset [post]
func (h *AdminHandler) ResetTerm(c *gin.Context) {
	var req dto.TermResetRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	summary, err := h.terms.Reset(c.Request.Context(), req.CloseIntake)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// AuditLoads godoc
// @Summary Audit tutee counts
// @Description Compares stored tutee counts with matched sessions and optionally repairs drift.
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.LoadAuditRequest false "Audit options"
// @Success 200 {object} response.Envelope
// @Router /admin/audits/load [post]
func (h *AdminHandler) AuditLoads(c *gin.Context) {
	var req dto.LoadAuditRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	report, err := h.audits.Run(c.Request.Context(), req.Repair)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Roster godoc
// @Summary Export tutor roster
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param view query string false "loads or assignments"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /admin/reports/roster [get]
func (h *AdminHandler) Roster(c *gin.Context) {
	file, err := h.reports.Roster(c.Request.Context(), service.RosterView(c.Query("view")), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Metrics godoc
// @Summary Aggregated service metrics
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *AdminHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "metrics disabled"))
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
