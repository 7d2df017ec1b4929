package dto

import (
	"time"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// CoverageSlot is a period whose absent teacher had a teaching duty.
type CoverageSlot struct {
	Date            time.Time          `json:"date"`
	Hour            int                `json:"hour"`
	ClassLabel      string             `json:"class_label"`
	Subject         string             `json:"subject"`
	AbsentTeacherID string             `json:"absent_teacher_id"`
	AbsenceID       string             `json:"absence_id"`
	Assignment      *models.Assignment `json:"assignment,omitempty"`
}

// CoverageHour groups the slots of one hour; AbsentTeacherIDs holds every
// teacher absent that hour, whether or not their period needs coverage.
type CoverageHour struct {
	Hour             int            `json:"hour"`
	Slots            []CoverageSlot `json:"slots"`
	AbsentTeacherIDs []string       `json:"absent_teacher_ids"`
}

// CoverageDay is the coverage report of a date.
type CoverageDay struct {
	Date  time.Time      `json:"date"`
	Day   models.Weekday `json:"day"`
	Hours []CoverageHour `json:"hours"`
}

// RankCandidatesRequest describes one uncovered period to rank substitutes for.
type RankCandidatesRequest struct {
	Date            string   `json:"date" validate:"required,datetime=2006-01-02"`
	Hour            int      `json:"hour" validate:"required,min=1"`
	ClassLabel      string   `json:"class_label"`
	AbsentTeacherID string   `json:"absent_teacher_id" validate:"required"`
	OtherAbsentIDs  []string `json:"other_absent_ids"`
}

// Candidate is a ranked substitute option.
type Candidate struct {
	TeacherID string                `json:"teacher_id"`
	Surname   string                `json:"surname"`
	GivenName string                `json:"given_name"`
	Tier      models.SubstituteTier `json:"tier"`
	Label     string                `json:"label"`
}
