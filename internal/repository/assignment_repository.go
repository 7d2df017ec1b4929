package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

const assignmentColumns = "id, assignment_date, hour, class_label, absent_teacher_id, substitute_teacher_id, tier, delayed_entry, early_exit, assigned_by, created_at, updated_at"

// AssignmentRepository persists committed substitutions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockHour serialises assignment writes for one (date, hour) until the
// surrounding transaction ends.
func (r *AssignmentRepository) LockHour(ctx context.Context, exec sqlx.ExtContext, date time.Time, hour int) error {
	day := int32(models.DateOnly(date).Unix() / 86400)
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, day, int32(hour)); err != nil {
		return fmt.Errorf("lock assignment hour: %w", err)
	}
	return nil
}

// FindByKey loads and locks the assignment for a uniqueness key. sql.ErrNoRows is returned untouched.
func (r *AssignmentRepository) FindByKey(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey) (*models.Assignment, error) {
	query := "SELECT " + assignmentColumns + ` FROM assignments
WHERE assignment_date = $1 AND hour = $2 AND class_label = $3 AND absent_teacher_id = $4 FOR UPDATE`
	var assignment models.Assignment
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, key.Date, key.Hour, key.ClassLabel, key.AbsentTeacherID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListBySubstituteHour returns the non-fallback assignments of a substitute in one hour.
func (r *AssignmentRepository) ListBySubstituteHour(ctx context.Context, exec sqlx.ExtContext, date time.Time, hour int, substituteID string) ([]models.Assignment, error) {
	query := "SELECT " + assignmentColumns + ` FROM assignments
WHERE assignment_date = $1 AND hour = $2 AND substitute_teacher_id = $3 AND tier IN ('COMPRESENCE', 'ONCALL')
ORDER BY id ASC`
	var assignments []models.Assignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query, date, hour, substituteID); err != nil {
		return nil, fmt.Errorf("list assignments by substitute hour: %w", err)
	}
	return assignments, nil
}

// ListByHour returns every assignment of one (date, hour).
func (r *AssignmentRepository) ListByHour(ctx context.Context, date time.Time, hour int) ([]models.Assignment, error) {
	query := "SELECT " + assignmentColumns + " FROM assignments WHERE assignment_date = $1 AND hour = $2 ORDER BY class_label ASC, id ASC"
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, date, hour); err != nil {
		return nil, fmt.Errorf("list assignments by hour: %w", err)
	}
	return assignments, nil
}

// ListByDate returns the assignments of a date ordered by hour, class, id.
func (r *AssignmentRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Assignment, error) {
	query := "SELECT " + assignmentColumns + " FROM assignments WHERE assignment_date = $1 ORDER BY hour ASC, class_label ASC, id ASC"
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, date); err != nil {
		return nil, fmt.Errorf("list assignments by date: %w", err)
	}
	return assignments, nil
}

// FindByID loads an assignment. sql.ErrNoRows is returned untouched.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := "SELECT " + assignmentColumns + " FROM assignments WHERE id = $1"
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (id, assignment_date, hour, class_label, absent_teacher_id, substitute_teacher_id, tier, delayed_entry, early_exit, assigned_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		assignment.ID, assignment.Date, assignment.Hour, assignment.ClassLabel, assignment.AbsentTeacherID,
		assignment.SubstituteTeacherID, assignment.Tier, assignment.DelayedEntry, assignment.EarlyExit,
		assignment.AssignedBy, assignment.CreatedAt, assignment.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update rewrites the decision of an existing assignment.
func (r *AssignmentRepository) Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET substitute_teacher_id = $1, tier = $2, delayed_entry = $3, early_exit = $4, assigned_by = $5, updated_at = $6 WHERE id = $7`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		assignment.SubstituteTeacherID, assignment.Tier, assignment.DelayedEntry, assignment.EarlyExit,
		assignment.AssignedBy, assignment.UpdatedAt, assignment.ID,
	); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment by id.
func (r *AssignmentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
