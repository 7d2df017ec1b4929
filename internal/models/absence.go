package models

import "time"

// AbsenceRecord is the canonical ledger row of a teacher's absence on one day.
// At most one record exists per (teacher, date).
type AbsenceRecord struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      time.Time `db:"absence_date" json:"date"`
	Hours     HourSet   `db:"hours" json:"hours"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AbsenceFilter narrows absence listings.
type AbsenceFilter struct {
	TeacherID string
	Date      *time.Time
	Limit     int
}
