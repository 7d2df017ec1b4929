package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

type coverageService interface {
	ListCoverageSlots(ctx context.Context, rawDate string) (*dto.CoverageDay, error)
	RankCandidates(ctx context.Context, req dto.RankCandidatesRequest) ([]dto.Candidate, error)
}

// CoverageHandler reports uncovered periods and ranks substitutes for them.
type CoverageHandler struct {
	coverage coverageService
}

// NewCoverageHandler constructs a CoverageHandler.
func NewCoverageHandler(coverage coverageService) *CoverageHandler {
	return &CoverageHandler{coverage: coverage}
}

// Day godoc
// @Summary Periods needing coverage on a date
// @Tags Coverage
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /coverage/{date} [get]
func (h *CoverageHandler) Day(c *gin.Context) {
	day, err := h.coverage.ListCoverageSlots(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// Candidates godoc
// @Summary Ranked substitutes for one period
// @Tags Coverage
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param hour query int true "Hour"
// @Param class query string false "Class label"
// @Param absent_teacher_id query string true "Absent teacher ID"
// @Param other_absent query string false "Comma separated IDs of teachers also unavailable"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /coverage/{date}/candidates [get]
func (h *CoverageHandler) Candidates(c *gin.Context) {
	hour, err := strconv.Atoi(c.Query("hour"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "hour must be an integer"))
		return
	}

	req := dto.RankCandidatesRequest{
		Date:            c.Param("date"),
		Hour:            hour,
		ClassLabel:      strings.TrimSpace(c.Query("class")),
		AbsentTeacherID: strings.TrimSpace(c.Query("absent_teacher_id")),
	}
	for _, id := range strings.Split(c.Query("other_absent"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			req.OtherAbsentIDs = append(req.OtherAbsentIDs, id)
		}
	}

	candidates, err := h.coverage.RankCandidates(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}
