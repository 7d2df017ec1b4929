package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

var monday = time.Date(2024, 9, 16, 0, 0, 0, 0, time.UTC)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func strPtr(v string) *string { return &v }

func tierPtr(v models.SubstituteTier) *models.SubstituteTier { return &v }

// --- teachers ---

type teacherRepoFake struct {
	items []models.Teacher
	err   error
}

func (f *teacherRepoFake) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Teacher
	for _, teacher := range f.items {
		if filter.ActiveOnly && !teacher.Active {
			continue
		}
		if !filter.IncludeFallback && teacher.IsPlaceholder {
			continue
		}
		out = append(out, teacher)
	}
	return out, nil
}

func (f *teacherRepoFake) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	for _, teacher := range f.items {
		if teacher.ID == id {
			cp := teacher
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *teacherRepoFake) ListLookup(ctx context.Context) ([]models.Teacher, error) {
	return f.List(ctx, models.TeacherFilter{IncludeFallback: true})
}

// --- timetable ---

type timetableRepoFake struct {
	mu       sync.Mutex
	entries  []models.TimetableEntry
	calls    int
	replaced []models.TimetableEntry
	err      error
}

func (f *timetableRepoFake) filter(match func(models.TimetableEntry) bool) ([]models.TimetableEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.TimetableEntry
	for _, entry := range f.entries {
		if match(entry) {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day.Index() < out[j].Day.Index()
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (f *timetableRepoFake) ListByTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.TimetableEntry, error) {
	return f.filter(func(e models.TimetableEntry) bool { return e.TeacherID == teacherID && e.Day == day })
}

func (f *timetableRepoFake) ListBySlotClass(ctx context.Context, day models.Weekday, hour int, classLabel string) ([]models.TimetableEntry, error) {
	return f.filter(func(e models.TimetableEntry) bool { return e.Day == day && e.Hour == hour && e.ClassLabel == classLabel })
}

func (f *timetableRepoFake) ListBySlotSubject(ctx context.Context, day models.Weekday, hour int, subject string) ([]models.TimetableEntry, error) {
	return f.filter(func(e models.TimetableEntry) bool { return e.Day == day && e.Hour == hour && e.Subject == subject })
}

func (f *timetableRepoFake) ListByTeacher(ctx context.Context, teacherID string) ([]models.TimetableEntry, error) {
	return f.filter(func(e models.TimetableEntry) bool { return e.TeacherID == teacherID })
}

func (f *timetableRepoFake) ReplaceAll(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replaced = append([]models.TimetableEntry(nil), entries...)
	f.entries = f.replaced
	return nil
}

func entry(teacherID string, day models.Weekday, hour int, class, subject string) models.TimetableEntry {
	return models.TimetableEntry{
		ID:         fmt.Sprintf("%s-%s-%d-%s", teacherID, day, hour, class),
		TeacherID:  teacherID,
		Day:        day,
		Hour:       hour,
		ClassLabel: class,
		Subject:    subject,
	}
}

// --- absences ---

type absenceRepoFake struct {
	mu        sync.Mutex
	records   map[string]*models.AbsenceRecord
	seq       int
	locks     []string
	createErr error
}

func newAbsenceRepoFake(records ...models.AbsenceRecord) *absenceRepoFake {
	f := &absenceRepoFake{records: make(map[string]*models.AbsenceRecord)}
	for i := range records {
		record := records[i]
		f.seq++
		if record.ID == "" {
			record.ID = fmt.Sprintf("abs-%02d", f.seq)
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Unix(int64(f.seq), 0)
		}
		f.records[record.ID] = &record
	}
	return f
}

func (f *absenceRepoFake) sorted(match func(models.AbsenceRecord) bool) []models.AbsenceRecord {
	var out []models.AbsenceRecord
	for _, record := range f.records {
		if match(*record) {
			cp := *record
			cp.Hours = append(models.HourSet(nil), record.Hours...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *absenceRepoFake) LockTeacherDay(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks = append(f.locks, teacherID+":"+date.Format(models.DateLayout))
	return nil
}

func (f *absenceRepoFake) ListByTeacherDate(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) ([]models.AbsenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(r models.AbsenceRecord) bool { return r.TeacherID == teacherID && r.Date.Equal(date) }), nil
}

func (f *absenceRepoFake) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AbsenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *record
	return &cp, nil
}

func (f *absenceRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, record *models.AbsenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	record.ID = fmt.Sprintf("abs-%02d", f.seq)
	record.CreatedAt = time.Unix(int64(f.seq), 0)
	cp := *record
	f.records[record.ID] = &cp
	return nil
}

func (f *absenceRepoFake) Update(ctx context.Context, exec sqlx.ExtContext, record *models.AbsenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *record
	f.records[record.ID] = &cp
	return nil
}

func (f *absenceRepoFake) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *absenceRepoFake) List(ctx context.Context, filter models.AbsenceFilter) ([]models.AbsenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(r models.AbsenceRecord) bool {
		if filter.TeacherID != "" && r.TeacherID != filter.TeacherID {
			return false
		}
		return filter.Date == nil || r.Date.Equal(*filter.Date)
	}), nil
}

func (f *absenceRepoFake) ListByDate(ctx context.Context, date time.Time) ([]models.AbsenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(r models.AbsenceRecord) bool { return r.Date.Equal(date) }), nil
}

func (f *absenceRepoFake) forTeacher(teacherID string) []models.AbsenceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(r models.AbsenceRecord) bool { return r.TeacherID == teacherID })
}

// --- assignments ---

type assignmentRepoFake struct {
	mu        sync.Mutex
	items     map[string]*models.Assignment
	seq       int
	createErr error
}

func newAssignmentRepoFake(items ...models.Assignment) *assignmentRepoFake {
	f := &assignmentRepoFake{items: make(map[string]*models.Assignment)}
	for i := range items {
		item := items[i]
		f.seq++
		if item.ID == "" {
			item.ID = fmt.Sprintf("as-%02d", f.seq)
		}
		f.items[item.ID] = &item
	}
	return f
}

func (f *assignmentRepoFake) list(match func(models.Assignment) bool) []models.Assignment {
	var out []models.Assignment
	for _, item := range f.items {
		if match(*item) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		if out[i].ClassLabel != out[j].ClassLabel {
			return out[i].ClassLabel < out[j].ClassLabel
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *assignmentRepoFake) LockHour(ctx context.Context, exec sqlx.ExtContext, date time.Time, hour int) error {
	return nil
}

func (f *assignmentRepoFake) FindByKey(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey) (*models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.Key().Same(key) {
			cp := *item
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *assignmentRepoFake) ListBySubstituteHour(ctx context.Context, exec sqlx.ExtContext, date time.Time, hour int, substituteID string) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(func(a models.Assignment) bool {
		return a.Date.Equal(date) && a.Hour == hour && !a.Tier.IsFallback() &&
			a.SubstituteTeacherID != nil && *a.SubstituteTeacherID == substituteID
	}), nil
}

func (f *assignmentRepoFake) ListByHour(ctx context.Context, date time.Time, hour int) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(func(a models.Assignment) bool { return a.Date.Equal(date) && a.Hour == hour }), nil
}

func (f *assignmentRepoFake) ListByDate(ctx context.Context, date time.Time) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(func(a models.Assignment) bool { return a.Date.Equal(date) }), nil
}

func (f *assignmentRepoFake) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (f *assignmentRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	assignment.ID = fmt.Sprintf("as-%02d", f.seq)
	cp := *assignment
	f.items[cp.ID] = &cp
	return nil
}

func (f *assignmentRepoFake) Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *assignment
	f.items[cp.ID] = &cp
	return nil
}

func (f *assignmentRepoFake) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

// --- cache ---

type cacheRepoFake struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newCacheRepoFake() *cacheRepoFake {
	return &cacheRepoFake{values: make(map[string][]byte)}
}

func (f *cacheRepoFake) Get(ctx context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *cacheRepoFake) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = raw
	return nil
}

func (f *cacheRepoFake) DeleteByPattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			delete(f.values, key)
		}
	}
	return nil
}

// --- fixture ---

// engineFixture wires the scenario school: T teaches 2A at MON hour 3 and is
// on call at hour 4; U co-teaches 2A at hour 3; V is on call at hour 3.
type engineFixture struct {
	teachers    *teacherRepoFake
	timetable   *timetableRepoFake
	absences    *absenceRepoFake
	assignments *assignmentRepoFake
	index       *TimetableIndex
	metrics     *MetricsService
}

func newEngineFixture() *engineFixture {
	teachers := &teacherRepoFake{items: []models.Teacher{
		{ID: "T", Surname: "Rossi", GivenName: "Mario", Active: true},
		{ID: "U", Surname: "Bianchi", GivenName: "Anna", Active: true},
		{ID: "V", Surname: "Verdi", GivenName: "Luca", Active: true},
		{ID: "W", Surname: "Neri", GivenName: "Sara", Active: true},
		{ID: "X", Surname: "Gialli", GivenName: "Paolo", Active: false},
		{ID: "P-EP", Surname: "Entrata posticipata", Active: true, IsPlaceholder: true, PlaceholderTier: tierPtr(models.TierDelayedEntry)},
		{ID: "P-UA", Surname: "Uscita anticipata", Active: true, IsPlaceholder: true, PlaceholderTier: tierPtr(models.TierEarlyExit)},
		{ID: "P-BAD", Surname: "Da definire", Active: true, IsPlaceholder: true},
	}}
	timetable := &timetableRepoFake{entries: []models.TimetableEntry{
		entry("T", models.Monday, 3, "2A", "MATH"),
		entry("T", models.Monday, 4, "", "FREE"),
		entry("U", models.Monday, 3, "2A", "ART"),
		entry("V", models.Monday, 3, "", "FREE"),
		entry("W", models.Monday, 3, "3B", "HISTORY"),
		entry("X", models.Monday, 3, "", "FREE"),
		entry("W", models.Monday, 4, "", "FREE"),
	}}
	metrics := NewMetricsService()
	return &engineFixture{
		teachers:    teachers,
		timetable:   timetable,
		absences:    newAbsenceRepoFake(),
		assignments: newAssignmentRepoFake(),
		index:       NewTimetableIndex(timetable, nil, 0, "FREE", nil),
		metrics:     metrics,
	}
}

func (f *engineFixture) absenceService(tx txProvider) *AbsenceService {
	return NewAbsenceService(tx, f.absences, f.teachers, f.index, f.metrics, nil, nil, AbsenceConfig{MaxRangeDays: 31})
}

func (f *engineFixture) coverageService() *CoverageService {
	return NewCoverageService(f.absences, f.assignments, f.index, f.teachers, f.metrics, nil, nil)
}

func (f *engineFixture) assignmentService(tx txProvider) *AssignmentService {
	return NewAssignmentService(tx, f.assignments, f.teachers, f.index, f.metrics, nil, nil)
}
