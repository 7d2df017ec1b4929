package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

const timetableCachePattern = "timetable:*"

type timetableReader interface {
	ListByTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.TimetableEntry, error)
	ListBySlotClass(ctx context.Context, day models.Weekday, hour int, classLabel string) ([]models.TimetableEntry, error)
	ListBySlotSubject(ctx context.Context, day models.Weekday, hour int, subject string) ([]models.TimetableEntry, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TimetableEntry, error)
}

// TimetableIndex answers the lookups the engine makes against the weekly
// timetable. The timetable only changes through imports, so results are
// cached until the next import invalidates them.
type TimetableIndex struct {
	repo          timetableReader
	cache         *CacheService
	ttl           time.Duration
	onCallSubject string
	logger        *zap.Logger
}

// NewTimetableIndex constructs the index. cache may be nil.
func NewTimetableIndex(repo timetableReader, cache *CacheService, ttl time.Duration, onCallSubject string, logger *zap.Logger) *TimetableIndex {
	if onCallSubject == "" {
		onCallSubject = models.DefaultOnCallSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableIndex{repo: repo, cache: cache, ttl: ttl, onCallSubject: onCallSubject, logger: logger}
}

// OnCallSubject returns the subject marking on-call periods.
func (i *TimetableIndex) OnCallSubject() string {
	return i.onCallSubject
}

// ForTeacherDay returns a teacher's periods on a weekday.
func (i *TimetableIndex) ForTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.TimetableEntry, error) {
	key := fmt.Sprintf("timetable:teacher:%s:%s", teacherID, day)
	entries, err := loadThrough(ctx, i.cache, key, i.ttl, func() ([]models.TimetableEntry, error) {
		return i.repo.ListByTeacherDay(ctx, teacherID, day)
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teacher timetable")
	}
	return entries, nil
}

// ForSlotClass returns the periods of a class in one weekday hour.
func (i *TimetableIndex) ForSlotClass(ctx context.Context, day models.Weekday, hour int, classLabel string) ([]models.TimetableEntry, error) {
	key := fmt.Sprintf("timetable:slot:%s:%d:class:%s", day, hour, classLabel)
	entries, err := loadThrough(ctx, i.cache, key, i.ttl, func() ([]models.TimetableEntry, error) {
		return i.repo.ListBySlotClass(ctx, day, hour, classLabel)
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load class timetable")
	}
	return entries, nil
}

// OnCallAt returns the on-call periods of one weekday hour.
func (i *TimetableIndex) OnCallAt(ctx context.Context, day models.Weekday, hour int) ([]models.TimetableEntry, error) {
	key := fmt.Sprintf("timetable:slot:%s:%d:subject:%s", day, hour, i.onCallSubject)
	entries, err := loadThrough(ctx, i.cache, key, i.ttl, func() ([]models.TimetableEntry, error) {
		return i.repo.ListBySlotSubject(ctx, day, hour, i.onCallSubject)
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load on-call timetable")
	}
	return entries, nil
}

// ForTeacher returns the whole week of a teacher.
func (i *TimetableIndex) ForTeacher(ctx context.Context, teacherID string) ([]models.TimetableEntry, error) {
	key := fmt.Sprintf("timetable:teacher:%s:week", teacherID)
	entries, err := loadThrough(ctx, i.cache, key, i.ttl, func() ([]models.TimetableEntry, error) {
		return i.repo.ListByTeacher(ctx, teacherID)
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teacher timetable")
	}
	return entries, nil
}

// HoursOn returns the distinct hours a teacher has any duty on a weekday,
// on-call periods included.
func (i *TimetableIndex) HoursOn(ctx context.Context, teacherID string, day models.Weekday) (models.HourSet, error) {
	entries, err := i.ForTeacherDay(ctx, teacherID, day)
	if err != nil {
		return nil, err
	}
	hours := make([]int, 0, len(entries))
	for _, entry := range entries {
		hours = append(hours, entry.Hour)
	}
	return models.NewHourSet(hours...), nil
}

// Invalidate drops every cached lookup.
func (i *TimetableIndex) Invalidate(ctx context.Context) error {
	if err := i.cache.Invalidate(ctx, timetableCachePattern); err != nil {
		i.logger.Warn("timetable cache invalidation failed", zap.Error(err))
		return err
	}
	return nil
}
