package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

type coverageServiceMock struct {
	day        *dto.CoverageDay
	dayErr     error
	candidates []dto.Candidate
	lastDate   string
	lastRank   dto.RankCandidatesRequest
	ranked     bool
}

func (m *coverageServiceMock) ListCoverageSlots(ctx context.Context, rawDate string) (*dto.CoverageDay, error) {
	m.lastDate = rawDate
	return m.day, m.dayErr
}

func (m *coverageServiceMock) RankCandidates(ctx context.Context, req dto.RankCandidatesRequest) ([]dto.Candidate, error) {
	m.ranked = true
	m.lastRank = req
	return m.candidates, nil
}

func TestCoverageHandlerDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &coverageServiceMock{day: &dto.CoverageDay{Day: models.Monday}}
	handler := NewCoverageHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/coverage/2024-09-16", nil)
	c.Params = gin.Params{{Key: "date", Value: "2024-09-16"}}

	handler.Day(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-09-16", mockSvc.lastDate)
}

func TestCoverageHandlerDayInvalidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &coverageServiceMock{dayErr: appErrors.Clone(appErrors.ErrValidation, "invalid date")}
	handler := NewCoverageHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/coverage/16-09-2024", nil)
	c.Params = gin.Params{{Key: "date", Value: "16-09-2024"}}

	handler.Day(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCoverageHandlerCandidatesParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &coverageServiceMock{candidates: []dto.Candidate{{TeacherID: "U", Tier: models.TierCompresence, Label: "C"}}}
	handler := NewCoverageHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/coverage/2024-09-16/candidates?hour=3&class=2A&absent_teacher_id=T&other_absent=V,+,W", nil)
	c.Params = gin.Params{{Key: "date", Value: "2024-09-16"}}

	handler.Candidates(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.RankCandidatesRequest{
		Date:            "2024-09-16",
		Hour:            3,
		ClassLabel:      "2A",
		AbsentTeacherID: "T",
		OtherAbsentIDs:  []string{"V", "W"},
	}, mockSvc.lastRank)

	var payload struct {
		Data []dto.Candidate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
	assert.Equal(t, "C", payload.Data[0].Label)
}

func TestCoverageHandlerCandidatesRequiresHour(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &coverageServiceMock{}
	handler := NewCoverageHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/coverage/2024-09-16/candidates?absent_teacher_id=T", nil)
	c.Params = gin.Params{{Key: "date", Value: "2024-09-16"}}

	handler.Candidates(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.ranked)
}
