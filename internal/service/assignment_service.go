package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

const uniqueViolation = "23505"

type assignmentStore interface {
	LockHour(ctx context.Context, exec sqlx.ExtContext, date time.Time, hour int) error
	FindByKey(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey) (*models.Assignment, error)
	ListBySubstituteHour(ctx context.Context, exec sqlx.ExtContext, date time.Time, hour int, substituteID string) ([]models.Assignment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error
	Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.Assignment, error)
}

type teacherDayTimetable interface {
	ForTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.TimetableEntry, error)
	OnCallSubject() string
}

// AssignmentService commits substitute decisions without ever booking the
// same physical teacher twice in one hour.
type AssignmentService struct {
	tx          txProvider
	assignments assignmentStore
	teachers    teacherFinder
	timetable   teacherDayTimetable
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(
	tx txProvider,
	assignments assignmentStore,
	teachers teacherFinder,
	timetable teacherDayTimetable,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tx:          tx,
		assignments: assignments,
		teachers:    teachers,
		timetable:   timetable,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Assign upserts the decision for (date, hour, class, absent teacher).
func (s *AssignmentService) Assign(ctx context.Context, req dto.AssignSubstituteRequest) (*models.Assignment, error) {
	started := time.Now()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	tier, err := models.ParseSubstituteTier(req.Tier)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tier")
	}
	key := models.SlotKey{
		Date:            date,
		Hour:            req.Hour,
		ClassLabel:      strings.TrimSpace(req.ClassLabel),
		AbsentTeacherID: strings.TrimSpace(req.AbsentTeacherID),
	}

	if err := s.ensureAssignable(ctx, key); err != nil {
		return nil, err
	}

	var substituteID *string
	if !tier.IsFallback() {
		if req.SubstituteTeacherID == nil || strings.TrimSpace(*req.SubstituteTeacherID) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "substitute_teacher_id is required for this tier")
		}
		id := strings.TrimSpace(*req.SubstituteTeacherID)
		if err := s.ensureSubstitute(ctx, id, key.AbsentTeacherID); err != nil {
			return nil, err
		}
		substituteID = &id
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.assignments.LockHour(ctx, tx, date, req.Hour); err != nil {
		err = appErrors.Internal(err, "failed to lock assignment hour")
		return nil, err
	}

	if substituteID != nil {
		if err = s.ensureNotUsed(ctx, tx, key, *substituteID); err != nil {
			return nil, err
		}
	}

	assignment, action, err := s.upsert(ctx, tx, key, tier, substituteID, req.ActorID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit assignment")
		return nil, err
	}

	s.metrics.RecordAssignment(tier, action)
	s.metrics.ObserveOperation("assign_substitute", started)
	fields := []zap.Field{
		zap.String("assignment_id", assignment.ID),
		zap.String("action", action),
		zap.String("date", date.Format(models.DateLayout)),
		zap.Int("hour", req.Hour),
		zap.String("class_label", key.ClassLabel),
		zap.String("absent_teacher_id", key.AbsentTeacherID),
		zap.String("tier", string(tier)),
		zap.String("actor_id", req.ActorID),
	}
	if substituteID != nil {
		fields = append(fields, zap.String("substitute_teacher_id", *substituteID))
	}
	s.logger.Info("assignment committed", fields...)
	return assignment, nil
}

// ensureAssignable rejects periods where the absent teacher was on call.
func (s *AssignmentService) ensureAssignable(ctx context.Context, key models.SlotKey) error {
	entries, err := s.timetable.ForTeacherDay(ctx, key.AbsentTeacherID, models.WeekdayOf(key.Date))
	if err != nil {
		return err
	}
	var period *models.TimetableEntry
	for i := range entries {
		if entries[i].Hour != key.Hour {
			continue
		}
		if entries[i].ClassLabel == key.ClassLabel {
			period = &entries[i]
			break
		}
		if period == nil {
			period = &entries[i]
		}
	}
	if period != nil && period.Kind(s.timetable.OnCallSubject()) == models.PeriodOnCall {
		return appErrors.Clone(appErrors.ErrInvalidOperation, "an on-call absence does not need a substitute")
	}
	return nil
}

func (s *AssignmentService) ensureSubstitute(ctx context.Context, substituteID, absentID string) error {
	if substituteID == absentID {
		return appErrors.Clone(appErrors.ErrValidation, "the absent teacher cannot substitute themselves")
	}
	teacher, err := s.teachers.FindByID(ctx, substituteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "substitute teacher not found")
		}
		return appErrors.Internal(err, "failed to load substitute teacher")
	}
	if !teacher.CanSubstitute() {
		return appErrors.Clone(appErrors.ErrValidation, "substitute must be an active teacher")
	}
	return nil
}

// ensureNotUsed must run under the hour lock.
func (s *AssignmentService) ensureNotUsed(ctx context.Context, tx *sqlx.Tx, key models.SlotKey, substituteID string) error {
	existing, err := s.assignments.ListBySubstituteHour(ctx, tx, key.Date, key.Hour, substituteID)
	if err != nil {
		return appErrors.Internal(err, "failed to check substitute availability")
	}
	for _, other := range existing {
		if other.Key().Same(key) {
			continue
		}
		s.metrics.RecordConflict()
		detail := &models.SubstituteConflictError{
			SubstituteTeacherID: substituteID,
			Date:                key.Date,
			Hour:                key.Hour,
			AssignmentID:        other.ID,
			ClassLabel:          other.ClassLabel,
		}
		return appErrors.Wrap(detail, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "teacher already used this hour")
	}
	return nil
}

func (s *AssignmentService) upsert(ctx context.Context, tx *sqlx.Tx, key models.SlotKey, tier models.SubstituteTier, substituteID *string, actorID string) (*models.Assignment, string, error) {
	var assignedBy *string
	if actorID != "" {
		assignedBy = &actorID
	}

	existing, err := s.assignments.FindByKey(ctx, tx, key)
	switch {
	case err == nil:
		existing.SubstituteTeacherID = substituteID
		existing.Tier = tier
		existing.DelayedEntry = tier == models.TierDelayedEntry
		existing.EarlyExit = tier == models.TierEarlyExit
		existing.AssignedBy = assignedBy
		if err := s.assignments.Update(ctx, tx, existing); err != nil {
			return nil, "", s.writeError(err, "failed to update assignment")
		}
		return existing, "updated", nil
	case errors.Is(err, sql.ErrNoRows):
		assignment := &models.Assignment{
			Date:                key.Date,
			Hour:                key.Hour,
			ClassLabel:          key.ClassLabel,
			AbsentTeacherID:     key.AbsentTeacherID,
			SubstituteTeacherID: substituteID,
			Tier:                tier,
			DelayedEntry:        tier == models.TierDelayedEntry,
			EarlyExit:           tier == models.TierEarlyExit,
			AssignedBy:          assignedBy,
		}
		if err := s.assignments.Create(ctx, tx, assignment); err != nil {
			return nil, "", s.writeError(err, "failed to create assignment")
		}
		return assignment, "created", nil
	default:
		return nil, "", appErrors.Internal(err, "failed to load assignment")
	}
}

// writeError maps a unique violation raised by the storage constraints to a
// conflict.
func (s *AssignmentService) writeError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		s.metrics.RecordConflict()
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "teacher already used this hour")
	}
	return appErrors.Internal(err, message)
}

// Delete removes an assignment. The absence ledger is left untouched.
func (s *AssignmentService) Delete(ctx context.Context, id, actorID string) error {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Internal(err, "failed to load assignment")
	}
	if err := s.assignments.Delete(ctx, nil, assignment.ID); err != nil {
		return appErrors.Internal(err, "failed to delete assignment")
	}
	s.metrics.RecordAssignment(assignment.Tier, "deleted")
	s.logger.Info("assignment deleted",
		zap.String("assignment_id", assignment.ID),
		zap.String("date", assignment.Date.Format(models.DateLayout)),
		zap.Int("hour", assignment.Hour),
		zap.String("actor_id", actorID),
	)
	return nil
}

// ListByDate returns the assignments of a date ordered by hour, class, id.
func (s *AssignmentService) ListByDate(ctx context.Context, rawDate string) ([]models.Assignment, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	assignments, err := s.assignments.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assignments")
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	return assignments, nil
}
