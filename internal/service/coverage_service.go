package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

type coverageAbsenceReader interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.AbsenceRecord, error)
}

type coverageAssignmentReader interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.Assignment, error)
	ListByHour(ctx context.Context, date time.Time, hour int) ([]models.Assignment, error)
}

type coverageTimetable interface {
	ForTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.TimetableEntry, error)
	ForSlotClass(ctx context.Context, day models.Weekday, hour int, classLabel string) ([]models.TimetableEntry, error)
	OnCallAt(ctx context.Context, day models.Weekday, hour int) ([]models.TimetableEntry, error)
	OnCallSubject() string
}

type teacherDirectory interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error)
}

// CoverageService detects uncovered periods and ranks substitutes for them.
type CoverageService struct {
	absences    coverageAbsenceReader
	assignments coverageAssignmentReader
	timetable   coverageTimetable
	teachers    teacherDirectory
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCoverageService constructs the service.
func NewCoverageService(
	absences coverageAbsenceReader,
	assignments coverageAssignmentReader,
	timetable coverageTimetable,
	teachers teacherDirectory,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *CoverageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoverageService{
		absences:    absences,
		assignments: assignments,
		timetable:   timetable,
		teachers:    teachers,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// ListCoverageSlots derives the periods of a date that need a substitute,
// grouped by hour. On-call periods and hours without a duty are skipped, and
// so are hours left with no slot.
func (s *CoverageService) ListCoverageSlots(ctx context.Context, rawDate string) (*dto.CoverageDay, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	day := models.WeekdayOf(date)
	onCall := s.timetable.OnCallSubject()

	records, err := s.absences.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load absences")
	}
	assignments, err := s.assignments.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load assignments")
	}
	byKey := make(map[string]*models.Assignment, len(assignments))
	for i := range assignments {
		byKey[slotKeyString(assignments[i].Key())] = &assignments[i]
	}

	hours := make(map[int]*dto.CoverageHour)
	hourOf := func(h int) *dto.CoverageHour {
		group, ok := hours[h]
		if !ok {
			group = &dto.CoverageHour{Hour: h, Slots: []dto.CoverageSlot{}, AbsentTeacherIDs: []string{}}
			hours[h] = group
		}
		return group
	}

	for _, record := range records {
		entries, err := s.timetable.ForTeacherDay(ctx, record.TeacherID, day)
		if err != nil {
			return nil, err
		}
		for _, hour := range record.Hours {
			group := hourOf(hour)
			group.AbsentTeacherIDs = appendUnique(group.AbsentTeacherIDs, record.TeacherID)

			seenClass := make(map[string]struct{})
			for _, entry := range entries {
				if entry.Hour != hour || entry.Kind(onCall) == models.PeriodOnCall {
					continue
				}
				if _, dup := seenClass[entry.ClassLabel]; dup {
					continue
				}
				seenClass[entry.ClassLabel] = struct{}{}

				slot := dto.CoverageSlot{
					Date:            date,
					Hour:            hour,
					ClassLabel:      entry.ClassLabel,
					Subject:         entry.Subject,
					AbsentTeacherID: record.TeacherID,
					AbsenceID:       record.ID,
				}
				key := models.SlotKey{Date: date, Hour: hour, ClassLabel: entry.ClassLabel, AbsentTeacherID: record.TeacherID}
				slot.Assignment = byKey[slotKeyString(key)]
				group.Slots = append(group.Slots, slot)
			}
		}
	}

	result := &dto.CoverageDay{Date: date, Day: day, Hours: make([]dto.CoverageHour, 0, len(hours))}
	for _, group := range hours {
		if len(group.Slots) == 0 {
			continue
		}
		sort.Strings(group.AbsentTeacherIDs)
		sort.Slice(group.Slots, func(i, j int) bool {
			if group.Slots[i].ClassLabel != group.Slots[j].ClassLabel {
				return group.Slots[i].ClassLabel < group.Slots[j].ClassLabel
			}
			return group.Slots[i].AbsentTeacherID < group.Slots[j].AbsentTeacherID
		})
		result.Hours = append(result.Hours, *group)
	}
	sort.Slice(result.Hours, func(i, j int) bool { return result.Hours[i].Hour < result.Hours[j].Hour })
	return result, nil
}

// RankCandidates orders the eligible substitutes of one period: co-teachers
// of the class first, then on-call teachers, then the placeholder outcomes.
func (s *CoverageService) RankCandidates(ctx context.Context, req dto.RankCandidatesRequest) ([]dto.Candidate, error) {
	started := time.Now()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid candidate query")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	day := models.WeekdayOf(date)
	classLabel := strings.TrimSpace(req.ClassLabel)
	onCall := s.timetable.OnCallSubject()

	absent, err := s.absentAt(ctx, date, req.Hour, append([]string{req.AbsentTeacherID}, req.OtherAbsentIDs...))
	if err != nil {
		return nil, err
	}

	current := models.SlotKey{Date: date, Hour: req.Hour, ClassLabel: classLabel, AbsentTeacherID: req.AbsentTeacherID}
	used, err := s.usedAt(ctx, date, req.Hour, current)
	if err != nil {
		return nil, err
	}

	teachers, err := s.teachers.List(ctx, models.TeacherFilter{ActiveOnly: true, IncludeFallback: true})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teachers")
	}
	directory := make(map[string]models.Teacher, len(teachers))
	for _, teacher := range teachers {
		directory[teacher.ID] = teacher
	}

	seen := make(map[string]struct{})
	candidates := make([]dto.Candidate, 0)
	consider := func(entries []models.TimetableEntry, tier models.SubstituteTier, wantKind models.PeriodKind) {
		for _, entry := range entries {
			if entry.Kind(onCall) != wantKind {
				continue
			}
			if _, ok := absent[entry.TeacherID]; ok {
				continue
			}
			if _, ok := used[entry.TeacherID]; ok {
				continue
			}
			if _, ok := seen[entry.TeacherID]; ok {
				continue
			}
			teacher, ok := directory[entry.TeacherID]
			if !ok || !teacher.CanSubstitute() {
				continue
			}
			seen[teacher.ID] = struct{}{}
			candidates = append(candidates, newCandidate(teacher, tier))
		}
	}

	if classLabel != "" {
		entries, err := s.timetable.ForSlotClass(ctx, day, req.Hour, classLabel)
		if err != nil {
			return nil, err
		}
		consider(entries, models.TierCompresence, models.PeriodTeaching)
	}

	onCallEntries, err := s.timetable.OnCallAt(ctx, day, req.Hour)
	if err != nil {
		return nil, err
	}
	consider(onCallEntries, models.TierOnCall, models.PeriodOnCall)

	for _, teacher := range teachers {
		if !teacher.IsPlaceholder {
			continue
		}
		tier, ok := teacher.FallbackTier()
		if !ok {
			s.logger.Warn("placeholder teacher without fallback tier skipped", zap.String("teacher_id", teacher.ID))
			continue
		}
		candidates = append(candidates, newCandidate(teacher, tier))
	}

	sortCandidates(candidates)
	s.metrics.ObserveOperation("rank_candidates", started)
	return candidates, nil
}

// absentAt returns the given ids plus every teacher whose ledger row for the
// date contains hour.
func (s *CoverageService) absentAt(ctx context.Context, date time.Time, hour int, ids []string) (map[string]struct{}, error) {
	absent := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			absent[id] = struct{}{}
		}
	}
	records, err := s.absences.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load absences")
	}
	for _, record := range records {
		if record.Hours.Contains(hour) {
			absent[record.TeacherID] = struct{}{}
		}
	}
	return absent, nil
}

// usedAt returns the physical substitutes already committed in the hour,
// ignoring the assignment that current would overwrite.
func (s *CoverageService) usedAt(ctx context.Context, date time.Time, hour int, current models.SlotKey) (map[string]struct{}, error) {
	assignments, err := s.assignments.ListByHour(ctx, date, hour)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load assignments")
	}
	used := make(map[string]struct{}, len(assignments))
	for _, assignment := range assignments {
		if assignment.SubstituteTeacherID == nil || assignment.Tier.IsFallback() {
			continue
		}
		if assignment.Key().Same(current) {
			continue
		}
		used[*assignment.SubstituteTeacherID] = struct{}{}
	}
	return used, nil
}

func newCandidate(teacher models.Teacher, tier models.SubstituteTier) dto.Candidate {
	return dto.Candidate{
		TeacherID: teacher.ID,
		Surname:   teacher.Surname,
		GivenName: teacher.GivenName,
		Tier:      tier,
		Label:     tier.Label(),
	}
}

func sortCandidates(candidates []dto.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Tier.Rank() != b.Tier.Rank() {
			return a.Tier.Rank() < b.Tier.Rank()
		}
		if a.Surname != b.Surname {
			return a.Surname < b.Surname
		}
		if a.GivenName != b.GivenName {
			return a.GivenName < b.GivenName
		}
		return a.TeacherID < b.TeacherID
	})
}

func slotKeyString(key models.SlotKey) string {
	return models.DateOnly(key.Date).Format(models.DateLayout) + "|" + strconv.Itoa(key.Hour) + "|" + key.ClassLabel + "|" + key.AbsentTeacherID
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
