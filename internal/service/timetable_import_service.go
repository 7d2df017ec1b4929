package service

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/tabular"
)

// Column names of the timetabling tool export.
const (
	columnActivityID = "Activity Id"
	columnDay        = "Day"
	columnHour       = "Hour"
	columnGroup      = "Students Sets"
	columnSubject    = "Subject"
	columnTeachers   = "Teachers"
	columnRoom       = "Room"
	columnComments   = "Comments"
)

type timetableWriter interface {
	ReplaceAll(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
}

type teacherLookup interface {
	ListLookup(ctx context.Context) ([]models.Teacher, error)
}

type timetableInvalidator interface {
	Invalidate(ctx context.Context) error
}

// TimetableImportService replaces the weekly timetable from a CSV export.
type TimetableImportService struct {
	tx       txProvider
	writer   timetableWriter
	teachers teacherLookup
	index    timetableInvalidator
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewTimetableImportService constructs the importer.
func NewTimetableImportService(tx txProvider, writer timetableWriter, teachers teacherLookup, index timetableInvalidator, metrics *MetricsService, logger *zap.Logger) *TimetableImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableImportService{tx: tx, writer: writer, teachers: teachers, index: index, metrics: metrics, logger: logger}
}

// Import parses the CSV and swaps the stored timetable in one transaction.
// Rows naming unknown teachers are reported, not fatal.
func (s *TimetableImportService) Import(ctx context.Context, r io.Reader) (*dto.TimetableImportResult, error) {
	data, err := tabular.ReadCSV(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable file")
	}

	roster, err := s.teachers.ListLookup(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teachers")
	}
	resolve := newTeacherResolver(roster)

	result := &dto.TimetableImportResult{Rows: len(data.Rows)}
	missing := make(map[string]struct{})
	entries := make([]models.TimetableEntry, 0, len(data.Rows))

	for i, row := range data.Rows {
		names := splitTeachers(tabular.Value(row, columnTeachers))
		if len(names) == 0 {
			continue
		}
		result.RowsWithTeacher++

		day, dayErr := models.ParseWeekday(tabular.Value(row, columnDay))
		hourLabel := tabular.Value(row, columnHour)
		hour, hourErr := models.ParseHourLabel(hourLabel)
		if dayErr != nil || hourErr != nil {
			result.SkippedRows++
			s.logger.Warn("timetable row skipped",
				zap.Int("row", i+2),
				zap.String("day", tabular.Value(row, columnDay)),
				zap.String("hour", hourLabel),
			)
			continue
		}
		activityID, _ := strconv.Atoi(tabular.Value(row, columnActivityID))

		for _, name := range names {
			teacher, ok := resolve(name)
			if !ok {
				missing[name] = struct{}{}
				continue
			}
			entries = append(entries, models.TimetableEntry{
				TeacherID:  teacher.ID,
				ActivityID: activityID,
				Day:        day,
				Hour:       hour,
				HourLabel:  hourLabel,
				ClassLabel: tabular.Value(row, columnGroup),
				Subject:    tabular.Value(row, columnSubject),
				Room:       tabular.Value(row, columnRoom),
				Note:       tabular.Value(row, columnComments),
			})
		}
	}

	for name := range missing {
		result.MissingTeachers = append(result.MissingTeachers, name)
	}
	sort.Strings(result.MissingTeachers)

	if len(entries) == 0 {
		return result, appErrors.Clone(appErrors.ErrValidation, "timetable file produced no entries")
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

	if err = s.writer.ReplaceAll(ctx, tx, entries); err != nil {
		err = appErrors.Internal(err, "failed to store timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit timetable import")
		return nil, err
	}
	result.Inserted = len(entries)

	var staleErr error
	if s.index != nil {
		if invErr := s.index.Invalidate(ctx); invErr != nil {
			result.CacheStale = true
			staleErr = appErrors.Internal(invErr, "timetable stored but cache invalidation failed")
		}
	}
	s.metrics.SetTimetableSize(result.Inserted)
	s.logger.Info("timetable imported",
		zap.Int("rows", result.Rows),
		zap.Int("rows_with_teacher", result.RowsWithTeacher),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped_rows", result.SkippedRows),
		zap.Strings("missing_teachers", result.MissingTeachers),
		zap.Bool("cache_stale", result.CacheStale),
	)
	return result, staleErr
}

// splitTeachers separates co-teachers listed as "A+B" or "A,B".
func splitTeachers(raw string) []string {
	raw = strings.ReplaceAll(raw, ",", "+")
	var names []string
	for _, part := range strings.Split(raw, "+") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// newTeacherResolver matches export names against teacher codes first, then
// surnames, then surnames ignoring case.
func newTeacherResolver(roster []models.Teacher) func(string) (models.Teacher, bool) {
	byCode := make(map[string]models.Teacher)
	bySurname := make(map[string]models.Teacher)
	byFolded := make(map[string]models.Teacher)
	for _, teacher := range roster {
		if teacher.Code != nil && *teacher.Code != "" {
			if _, ok := byCode[*teacher.Code]; !ok {
				byCode[*teacher.Code] = teacher
			}
		}
		if _, ok := bySurname[teacher.Surname]; !ok {
			bySurname[teacher.Surname] = teacher
		}
		folded := strings.ToLower(teacher.Surname)
		if _, ok := byFolded[folded]; !ok {
			byFolded[folded] = teacher
		}
	}
	return func(name string) (models.Teacher, bool) {
		if teacher, ok := byCode[name]; ok {
			return teacher, true
		}
		if teacher, ok := bySurname[name]; ok {
			return teacher, true
		}
		teacher, ok := byFolded[strings.ToLower(name)]
		return teacher, ok
	}
}
