package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

func assignReq(class, absent, tier string, substitute *string) dto.AssignSubstituteRequest {
	return dto.AssignSubstituteRequest{
		Date:                "2024-09-16",
		Hour:                3,
		ClassLabel:          class,
		AbsentTeacherID:     absent,
		Tier:                tier,
		SubstituteTeacherID: substitute,
		ActorID:             "user-1",
	}
}

func TestAssignmentServiceUpsertAndConflict(t *testing.T) {
	fx := newEngineFixture()
	tx, mock := newTxProviderMock(t)
	svc := fx.assignmentService(tx)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	first, err := svc.Assign(ctx, assignReq("2A", "T", "COMPRESENCE", strPtr("U")))
	require.NoError(t, err)
	require.NotNil(t, first.SubstituteTeacherID)
	assert.Equal(t, "U", *first.SubstituteTeacherID)
	require.NotNil(t, first.AssignedBy)
	assert.Equal(t, "user-1", *first.AssignedBy)

	mock.ExpectBegin()
	mock.ExpectCommit()
	again, err := svc.Assign(ctx, assignReq("2A", "T", "C", strPtr("U")))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Assign(ctx, assignReq("3B", "W", "ONCALL", strPtr("U")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	var conflict *models.SubstituteConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID, conflict.AssignmentID)
	assert.Equal(t, "2A", conflict.ClassLabel)

	list, err := svc.ListByDate(ctx, "2024-09-16")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentServiceUpsertSwitchesToFallback(t *testing.T) {
	fx := newEngineFixture()
	tx, mock := newTxProviderMock(t)
	svc := fx.assignmentService(tx)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	first, err := svc.Assign(ctx, assignReq("2A", "T", "COMPRESENCE", strPtr("U")))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	updated, err := svc.Assign(ctx, assignReq("2A", "T", "EARLY_EXIT", strPtr("P-UA")))
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Nil(t, updated.SubstituteTeacherID)
	assert.True(t, updated.EarlyExit)
	assert.False(t, updated.DelayedEntry)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.Assign(ctx, assignReq("3B", "W", "ONCALL", strPtr("U")))
	require.NoError(t, err, "U is free again once the first decision became a fallback")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentServiceFallbackNeverConflicts(t *testing.T) {
	fx := newEngineFixture()
	tx, mock := newTxProviderMock(t)
	svc := fx.assignmentService(tx)

	for i := 0; i < 10; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		assignment, err := svc.Assign(context.Background(), assignReq(fmt.Sprintf("%dA", i+1), fmt.Sprintf("absent-%d", i), "DELAYED_ENTRY", strPtr("P-EP")))
		require.NoError(t, err)
		assert.Nil(t, assignment.SubstituteTeacherID)
		assert.True(t, assignment.DelayedEntry)
	}

	list, err := svc.ListByDate(context.Background(), "2024-09-16")
	require.NoError(t, err)
	assert.Len(t, list, 10)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentServicePreconditions(t *testing.T) {
	fx := newEngineFixture()
	fx.timetable.entries = append(fx.timetable.entries, entry("V", models.Monday, 4, "", "FREE"))
	tx, mock := newTxProviderMock(t)
	svc := fx.assignmentService(tx)
	ctx := context.Background()

	onCall := assignReq("", "V", "ONCALL", nil)
	_, err := svc.Assign(ctx, onCall)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidOperation), "on-call absence must be rejected before the substitute check")

	_, err = svc.Assign(ctx, assignReq("2A", "T", "COMPRESENCE", nil))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Assign(ctx, assignReq("2A", "T", "COMPRESENCE", strPtr("  ")))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Assign(ctx, assignReq("2A", "T", "COMPRESENCE", strPtr("T")))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Assign(ctx, assignReq("2A", "T", "COMPRESENCE", strPtr("X")))
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "inactive teachers cannot substitute")

	_, err = svc.Assign(ctx, assignReq("2A", "T", "COMPRESENCE", strPtr("P-EP")))
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "placeholders only serve fallback tiers")

	_, err = svc.Assign(ctx, assignReq("2A", "T", "COMPRESENCE", strPtr("nobody")))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Assign(ctx, assignReq("2A", "T", "SOMETHING", strPtr("U")))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	bad := assignReq("2A", "T", "COMPRESENCE", strPtr("U"))
	bad.Date = "2024-13-40"
	_, err = svc.Assign(ctx, bad)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentServiceOnCallCheckPrefersMatchingClass(t *testing.T) {
	fx := newEngineFixture()
	fx.timetable.entries = append(fx.timetable.entries,
		entry("W", models.Monday, 5, "", "FREE"),
		entry("W", models.Monday, 5, "3B", "HISTORY"),
	)
	tx, mock := newTxProviderMock(t)
	svc := fx.assignmentService(tx)

	req := assignReq("3B", "W", "ONCALL", strPtr("V"))
	req.Hour = 5
	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.Assign(context.Background(), req)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentServiceMapsUniqueViolation(t *testing.T) {
	fx := newEngineFixture()
	fx.assignments.createErr = fmt.Errorf("create assignment: %w", &pq.Error{Code: "23505"})
	tx, mock := newTxProviderMock(t)
	svc := fx.assignmentService(tx)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.Assign(context.Background(), assignReq("2A", "T", "COMPRESENCE", strPtr("U")))
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentServiceDelete(t *testing.T) {
	fx := newEngineFixture()
	fx.absences = newAbsenceRepoFake(models.AbsenceRecord{ID: "abs-1", TeacherID: "T", Date: monday, Hours: models.NewHourSet(3)})
	fx.assignments = newAssignmentRepoFake(models.Assignment{ID: "as-1", Date: monday, Hour: 3, ClassLabel: "2A", AbsentTeacherID: "T", SubstituteTeacherID: strPtr("U"), Tier: models.TierCompresence})
	svc := fx.assignmentService(nil)

	require.NoError(t, svc.Delete(context.Background(), "as-1", "user-1"))
	_, err := fx.assignments.FindByID(context.Background(), "as-1")
	assert.Error(t, err)
	assert.Len(t, fx.absences.forTeacher("T"), 1)

	err = svc.Delete(context.Background(), "as-1", "user-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAssignmentServiceListByDateValidation(t *testing.T) {
	fx := newEngineFixture()
	svc := fx.assignmentService(nil)

	list, err := svc.ListByDate(context.Background(), "2024-09-16")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = svc.ListByDate(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
