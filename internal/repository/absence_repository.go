package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

const absenceColumns = "id, teacher_id, absence_date, hours, notes, created_at, updated_at"

// AbsenceRepository persists the absence ledger.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository constructs the repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

func (r *AbsenceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockTeacherDay serialises ledger writes for a (teacher, date) pair until the
// surrounding transaction ends.
func (r *AbsenceRepository) LockTeacherDay(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) error {
	key := "absence:" + teacherID + ":" + date.Format(models.DateLayout)
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock absence day: %w", err)
	}
	return nil
}

// ListByTeacherDate returns every row for the pair, oldest first, locking them.
func (r *AbsenceRepository) ListByTeacherDate(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) ([]models.AbsenceRecord, error) {
	query := "SELECT " + absenceColumns + " FROM absences WHERE teacher_id = $1 AND absence_date = $2 ORDER BY created_at ASC, id ASC FOR UPDATE"
	var records []models.AbsenceRecord
	if err := sqlx.SelectContext(ctx, r.exec(exec), &records, query, teacherID, date); err != nil {
		return nil, fmt.Errorf("list absences by teacher date: %w", err)
	}
	return records, nil
}

// FindByIDForUpdate loads and locks one record. sql.ErrNoRows is returned untouched.
func (r *AbsenceRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AbsenceRecord, error) {
	query := "SELECT " + absenceColumns + " FROM absences WHERE id = $1 FOR UPDATE"
	var record models.AbsenceRecord
	if err := sqlx.GetContext(ctx, r.exec(exec), &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByDate returns the records of a date ordered by teacher.
func (r *AbsenceRepository) ListByDate(ctx context.Context, date time.Time) ([]models.AbsenceRecord, error) {
	query := "SELECT " + absenceColumns + " FROM absences WHERE absence_date = $1 ORDER BY teacher_id ASC, id ASC"
	var records []models.AbsenceRecord
	if err := r.db.SelectContext(ctx, &records, query, date); err != nil {
		return nil, fmt.Errorf("list absences by date: %w", err)
	}
	return records, nil
}

// List returns records matching the filter, latest date first.
func (r *AbsenceRepository) List(ctx context.Context, filter models.AbsenceFilter) ([]models.AbsenceRecord, error) {
	var conditions []string
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		conditions = append(conditions, fmt.Sprintf("absence_date = $%d", len(args)))
	}

	query := "SELECT " + absenceColumns + " FROM absences"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	query += fmt.Sprintf(" ORDER BY absence_date DESC, id DESC LIMIT %d", limit)

	var records []models.AbsenceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	return records, nil
}

// Create inserts a new record.
func (r *AbsenceRepository) Create(ctx context.Context, exec sqlx.ExtContext, record *models.AbsenceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO absences (id, teacher_id, absence_date, hours, notes, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.exec(exec).ExecContext(ctx, query, record.ID, record.TeacherID, record.Date, record.Hours, record.Notes, record.CreatedAt, record.UpdatedAt); err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	return nil
}

// Update persists the hour set and notes of a record.
func (r *AbsenceRepository) Update(ctx context.Context, exec sqlx.ExtContext, record *models.AbsenceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE absences SET hours = $1, notes = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.exec(exec).ExecContext(ctx, query, record.Hours, record.Notes, record.UpdatedAt, record.ID); err != nil {
		return fmt.Errorf("update absence: %w", err)
	}
	return nil
}

// Delete removes a record by id.
func (r *AbsenceRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM absences WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete absence: %w", err)
	}
	return nil
}
