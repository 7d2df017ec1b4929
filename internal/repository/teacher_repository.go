package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

const teacherColumns = "id, surname, given_name, code, active, is_placeholder, placeholder_tier, created_at, updated_at"

// TeacherRepository reads the teacher directory.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers ordered by surname then given name.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error) {
	var conditions []string
	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}
	if !filter.IncludeFallback {
		conditions = append(conditions, "is_placeholder = FALSE")
	}

	query := "SELECT " + teacherColumns + " FROM teachers"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY surname ASC, given_name ASC, id ASC"

	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher by ID. sql.ErrNoRows is returned untouched.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := "SELECT " + teacherColumns + " FROM teachers WHERE id = $1"
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListLookup returns every teacher usable to resolve timetable names.
func (r *TeacherRepository) ListLookup(ctx context.Context) ([]models.Teacher, error) {
	return r.List(ctx, models.TeacherFilter{IncludeFallback: true})
}
