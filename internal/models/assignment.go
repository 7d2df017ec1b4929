package models

import (
	"fmt"
	"time"
)

// Assignment is a committed decision for one uncovered period. It is unique per
// (date, hour, class, absent teacher).
type Assignment struct {
	ID                  string         `db:"id" json:"id"`
	Date                time.Time      `db:"assignment_date" json:"date"`
	Hour                int            `db:"hour" json:"hour"`
	ClassLabel          string         `db:"class_label" json:"class_label"`
	AbsentTeacherID     string         `db:"absent_teacher_id" json:"absent_teacher_id"`
	SubstituteTeacherID *string        `db:"substitute_teacher_id" json:"substitute_teacher_id,omitempty"`
	Tier                SubstituteTier `db:"tier" json:"tier"`
	DelayedEntry        bool           `db:"delayed_entry" json:"delayed_entry"`
	EarlyExit           bool           `db:"early_exit" json:"early_exit"`
	AssignedBy          *string        `db:"assigned_by" json:"assigned_by,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// SlotKey identifies the period an assignment covers.
type SlotKey struct {
	Date            time.Time
	Hour            int
	ClassLabel      string
	AbsentTeacherID string
}

// Key returns the uniqueness key of the assignment.
func (a Assignment) Key() SlotKey {
	return SlotKey{Date: a.Date, Hour: a.Hour, ClassLabel: a.ClassLabel, AbsentTeacherID: a.AbsentTeacherID}
}

// Same reports whether two keys address the same period.
func (k SlotKey) Same(other SlotKey) bool {
	return DateOnly(k.Date).Equal(DateOnly(other.Date)) &&
		k.Hour == other.Hour &&
		k.ClassLabel == other.ClassLabel &&
		k.AbsentTeacherID == other.AbsentTeacherID
}

// SubstituteConflictError reports a substitute already covering another class in the same hour.
type SubstituteConflictError struct {
	SubstituteTeacherID string    `json:"substitute_teacher_id"`
	Date                time.Time `json:"date"`
	Hour                int       `json:"hour"`
	AssignmentID        string    `json:"assignment_id"`
	ClassLabel          string    `json:"class_label"`
}

// Error implements the error interface.
func (e *SubstituteConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("teacher %s already used at hour %d on %s (class %s)",
		e.SubstituteTeacherID, e.Hour, e.Date.Format(DateLayout), e.ClassLabel)
}
