package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

type absenceService interface {
	ReconcileAbsence(ctx context.Context, req dto.ReconcileAbsenceRequest) (*dto.ReconcileAbsenceResult, error)
	RemoveAbsenceHour(ctx context.Context, id string, hour int) (*dto.RemoveAbsenceHourResult, error)
	List(ctx context.Context, query dto.AbsenceListQuery) ([]models.AbsenceRecord, error)
}

// AbsenceHandler manages the absence ledger.
type AbsenceHandler struct {
	absences absenceService
}

// NewAbsenceHandler constructs an AbsenceHandler.
func NewAbsenceHandler(absences absenceService) *AbsenceHandler {
	return &AbsenceHandler{absences: absences}
}

// List godoc
// @Summary List absence records
// @Tags Absences
// @Produce json
// @Param teacher_id query string false "Teacher ID"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param limit query int false "Maximum rows (default 200)"
// @Success 200 {object} response.Envelope
// @Router /absences [get]
func (h *AbsenceHandler) List(c *gin.Context) {
	var query dto.AbsenceListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, err := h.absences.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Reconcile godoc
// @Summary Record a teacher absent over a date range
// @Description Creates or merges one absence record per scheduled day. Days without lessons are reported, not stored.
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body dto.ReconcileAbsenceRequest true "Absence range"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absences [post]
func (h *AbsenceHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid absence payload"))
		return
	}
	req.ActorID = actorID(c)

	result, err := h.absences.ReconcileAbsence(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RemoveHour godoc
// @Summary Remove one hour from an absence record
// @Description The record is deleted when its last hour is removed.
// @Tags Absences
// @Produce json
// @Param id path string true "Absence ID"
// @Param hour path int true "Hour"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absences/{id}/hours/{hour} [delete]
func (h *AbsenceHandler) RemoveHour(c *gin.Context) {
	hour, err := strconv.Atoi(c.Param("hour"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "hour must be an integer"))
		return
	}

	result, err := h.absences.RemoveAbsenceHour(c.Request.Context(), c.Param("id"), hour)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
