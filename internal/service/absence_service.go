package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type absenceLedgerRepository interface {
	LockTeacherDay(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) error
	ListByTeacherDate(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) ([]models.AbsenceRecord, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AbsenceRecord, error)
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.AbsenceRecord) error
	Update(ctx context.Context, exec sqlx.ExtContext, record *models.AbsenceRecord) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	List(ctx context.Context, filter models.AbsenceFilter) ([]models.AbsenceRecord, error)
}

type teacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type teacherHours interface {
	HoursOn(ctx context.Context, teacherID string, day models.Weekday) (models.HourSet, error)
}

// AbsenceConfig tunes reconciliation.
type AbsenceConfig struct {
	MaxRangeDays   int
	NotesSeparator string
}

// AbsenceService owns the absence ledger.
type AbsenceService struct {
	tx        txProvider
	absences  absenceLedgerRepository
	teachers  teacherFinder
	timetable teacherHours
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AbsenceConfig
}

// NewAbsenceService constructs the ledger service.
func NewAbsenceService(
	tx txProvider,
	absences absenceLedgerRepository,
	teachers teacherFinder,
	timetable teacherHours,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AbsenceConfig,
) *AbsenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 92
	}
	if cfg.NotesSeparator == "" {
		cfg.NotesSeparator = " | "
	}
	return &AbsenceService{
		tx:        tx,
		absences:  absences,
		teachers:  teachers,
		timetable: timetable,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// ReconcileAbsence marks the teacher absent for every scheduled hour of each
// date in the range, merging into the existing ledger. The whole range commits
// or nothing does.
func (s *AbsenceService) ReconcileAbsence(ctx context.Context, req dto.ReconcileAbsenceRequest) (*dto.ReconcileAbsenceResult, error) {
	started := time.Now()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}

	start, end, err := s.parseRange(req.DateStart, req.DateEnd)
	if err != nil {
		return nil, err
	}

	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}

	notes := strings.TrimSpace(req.Notes)
	scheduled := make(map[models.Weekday]models.HourSet, 7)
	result := &dto.ReconcileAbsenceResult{NoScheduleDates: []string{}}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		day := models.WeekdayOf(date)
		hours, ok := scheduled[day]
		if !ok {
			hours, err = s.timetable.HoursOn(ctx, req.TeacherID, day)
			if err != nil {
				return nil, err
			}
			scheduled[day] = hours
		}
		if hours.Empty() {
			result.NoScheduleDates = append(result.NoScheduleDates, date.Format(models.DateLayout))
			continue
		}
		result.DaysWithHours++

		if err = s.reconcileDay(ctx, tx, req.TeacherID, date, hours, notes, result); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit absence reconciliation")
		return nil, err
	}

	s.metrics.RecordAbsenceDays("created", result.Created)
	s.metrics.RecordAbsenceDays("updated", result.Updated)
	s.metrics.RecordAbsenceDays("unchanged", result.Unchanged)
	s.metrics.RecordAbsenceDays("no_schedule", len(result.NoScheduleDates))
	s.metrics.ObserveOperation("reconcile_absence", started)
	s.logger.Info("absence reconciled",
		zap.String("teacher_id", req.TeacherID),
		zap.String("from", start.Format(models.DateLayout)),
		zap.String("to", end.Format(models.DateLayout)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("duplicates_fixed", result.DuplicatesFixed),
		zap.String("actor_id", req.ActorID),
	)
	return result, nil
}

func (s *AbsenceService) reconcileDay(ctx context.Context, tx *sqlx.Tx, teacherID string, date time.Time, hours models.HourSet, notes string, result *dto.ReconcileAbsenceResult) error {
	if err := s.absences.LockTeacherDay(ctx, tx, teacherID, date); err != nil {
		return appErrors.Internal(err, "failed to lock absence day")
	}
	existing, err := s.absences.ListByTeacherDate(ctx, tx, teacherID, date)
	if err != nil {
		return appErrors.Internal(err, "failed to load absences")
	}

	if len(existing) == 0 {
		record := &models.AbsenceRecord{TeacherID: teacherID, Date: date, Hours: hours, Notes: notes}
		if err := s.absences.Create(ctx, tx, record); err != nil {
			return appErrors.Internal(err, "failed to create absence")
		}
		result.Created++
		return nil
	}

	canonical := existing[0]
	stored := canonical.Hours
	storedNotes := canonical.Notes
	for _, dup := range existing[1:] {
		stored = stored.Union(dup.Hours)
		storedNotes = mergeNotes(storedNotes, dup.Notes, s.cfg.NotesSeparator)
		if err := s.absences.Delete(ctx, tx, dup.ID); err != nil {
			return appErrors.Internal(err, "failed to collapse duplicate absence")
		}
		result.DuplicatesFixed++
		s.logger.Warn("duplicate absence collapsed",
			zap.String("teacher_id", teacherID),
			zap.String("date", date.Format(models.DateLayout)),
			zap.String("kept_id", canonical.ID),
			zap.String("deleted_id", dup.ID),
		)
	}

	merged := stored.Union(hours)
	mergedNotes := mergeNotes(storedNotes, notes, s.cfg.NotesSeparator)
	if merged.Equal(canonical.Hours) && mergedNotes == canonical.Notes {
		result.Unchanged++
		return nil
	}

	canonical.Hours = merged
	canonical.Notes = mergedNotes
	if err := s.absences.Update(ctx, tx, &canonical); err != nil {
		return appErrors.Internal(err, "failed to update absence")
	}
	result.Updated++
	return nil
}

// RemoveAbsenceHour drops one hour from a record, deleting the record once no
// hour is left.
func (s *AbsenceService) RemoveAbsenceHour(ctx context.Context, id string, hour int) (*dto.RemoveAbsenceHourResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "absence id is required")
	}
	if hour <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hour must be positive")
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

	record, err := s.absences.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "absence not found")
			return nil, err
		}
		err = appErrors.Internal(err, "failed to load absence")
		return nil, err
	}

	remaining, removed := record.Hours.Without(hour)
	result := &dto.RemoveAbsenceHourResult{}
	switch {
	case !removed:
		result.Absence = record
	case remaining.Empty():
		if err = s.absences.Delete(ctx, tx, record.ID); err != nil {
			err = appErrors.Internal(err, "failed to delete absence")
			return nil, err
		}
		result.Deleted = true
	default:
		record.Hours = remaining
		if err = s.absences.Update(ctx, tx, record); err != nil {
			err = appErrors.Internal(err, "failed to update absence")
			return nil, err
		}
		result.Absence = record
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit absence update")
		return nil, err
	}

	if removed {
		s.logger.Info("absence hour removed",
			zap.String("absence_id", id),
			zap.Int("hour", hour),
			zap.Bool("record_deleted", result.Deleted),
		)
	}
	return result, nil
}

// List returns ledger rows, latest date first.
func (s *AbsenceService) List(ctx context.Context, query dto.AbsenceListQuery) ([]models.AbsenceRecord, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence filter")
	}
	filter := models.AbsenceFilter{TeacherID: strings.TrimSpace(query.TeacherID), Limit: query.Limit}
	if query.Date != "" {
		date, err := models.ParseDate(query.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
		}
		filter.Date = &date
	}
	records, err := s.absences.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list absences")
	}
	if records == nil {
		records = []models.AbsenceRecord{}
	}
	return records, nil
}

// parseRange reads an inclusive range. A reversed range is swapped rather
// than rejected.
func (s *AbsenceService) parseRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := models.ParseDate(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date_start")
	}
	end := start
	if strings.TrimSpace(rawEnd) != "" {
		end, err = models.ParseDate(rawEnd)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date_end")
		}
	}
	if end.Before(start) {
		start, end = end, start
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > s.cfg.MaxRangeDays {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "absence range exceeds the allowed number of days")
	}
	return start, end, nil
}

// mergeNotes appends incoming to existing unless it is blank or already one of
// the existing segments.
func mergeNotes(existing, incoming, separator string) string {
	if incoming == "" {
		return existing
	}
	if existing == "" {
		return incoming
	}
	for _, segment := range strings.Split(existing, separator) {
		if strings.TrimSpace(segment) == incoming {
			return existing
		}
	}
	return existing + separator + incoming
}
