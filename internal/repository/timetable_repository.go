package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

const timetableColumns = "id, teacher_id, activity_id, day_code, hour, hour_label, class_label, subject, room, note, created_at"

// TimetableRepository provides read access to the weekly timetable and the
// replace-all write used by imports.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByTeacherDay returns a teacher's entries on a weekday ordered by hour.
func (r *TimetableRepository) ListByTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.TimetableEntry, error) {
	query := "SELECT " + timetableColumns + " FROM timetable_entries WHERE teacher_id = $1 AND day_code = $2 ORDER BY hour ASC, class_label ASC, id ASC"
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, day); err != nil {
		return nil, fmt.Errorf("list timetable by teacher day: %w", err)
	}
	return entries, nil
}

// ListBySlotClass returns the entries of a class in one weekday hour.
func (r *TimetableRepository) ListBySlotClass(ctx context.Context, day models.Weekday, hour int, classLabel string) ([]models.TimetableEntry, error) {
	query := "SELECT " + timetableColumns + " FROM timetable_entries WHERE day_code = $1 AND hour = $2 AND class_label = $3 ORDER BY teacher_id ASC, id ASC"
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, day, hour, classLabel); err != nil {
		return nil, fmt.Errorf("list timetable by slot class: %w", err)
	}
	return entries, nil
}

// ListBySlotSubject returns the entries with a subject in one weekday hour.
func (r *TimetableRepository) ListBySlotSubject(ctx context.Context, day models.Weekday, hour int, subject string) ([]models.TimetableEntry, error) {
	query := "SELECT " + timetableColumns + " FROM timetable_entries WHERE day_code = $1 AND hour = $2 AND subject = $3 ORDER BY teacher_id ASC, id ASC"
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, day, hour, subject); err != nil {
		return nil, fmt.Errorf("list timetable by slot subject: %w", err)
	}
	return entries, nil
}

// ListByTeacher returns the whole week of a teacher, Monday first.
func (r *TimetableRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TimetableEntry, error) {
	query := "SELECT " + timetableColumns + ` FROM timetable_entries WHERE teacher_id = $1
ORDER BY array_position(ARRAY['MON','TUE','WED','THU','FRI','SAT','SUN'], day_code) ASC, hour ASC, class_label ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID); err != nil {
		return nil, fmt.Errorf("list timetable by teacher: %w", err)
	}
	return entries, nil
}

// ReplaceAll swaps the whole timetable for entries.
func (r *TimetableRepository) ReplaceAll(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_entries`); err != nil {
		return fmt.Errorf("clear timetable: %w", err)
	}

	const insert = `INSERT INTO timetable_entries (id, teacher_id, activity_id, day_code, hour, hour_label, class_label, subject, room, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	now := time.Now().UTC()
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if _, err := target.ExecContext(ctx, insert,
			entry.ID, entry.TeacherID, entry.ActivityID, entry.Day, entry.Hour, entry.HourLabel,
			entry.ClassLabel, entry.Subject, entry.Room, entry.Note, entry.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert timetable entry: %w", err)
		}
	}
	return nil
}
