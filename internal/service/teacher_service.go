package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type weekTimetable interface {
	ForTeacher(ctx context.Context, teacherID string) ([]models.TimetableEntry, error)
}

// TeacherService exposes the roster and each teacher's weekly timetable.
type TeacherService struct {
	repo      teacherRepository
	timetable weekTimetable
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, timetable weekTimetable, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, timetable: timetable, logger: logger}
}

// List returns teachers ordered by surname then given name.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	pagination := &models.Pagination{Page: 1, PageSize: len(teachers), TotalCount: len(teachers)}
	return teachers, pagination, nil
}

// Timetable returns a teacher's week, Monday first.
func (s *TeacherService) Timetable(ctx context.Context, teacherID string) ([]models.TimetableEntry, error) {
	if _, err := s.repo.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	entries, err := s.timetable.ForTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.TimetableEntry{}
	}
	return entries, nil
}
