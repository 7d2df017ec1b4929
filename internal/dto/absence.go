package dto

import "github.com/noah-isme/sma-substitution-api/internal/models"

// ReconcileAbsenceRequest records a teacher absent for every scheduled hour of
// an inclusive date range. DateEnd defaults to DateStart; reversed ranges are swapped.
type ReconcileAbsenceRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	DateStart string `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateEnd   string `json:"date_end" validate:"omitempty,datetime=2006-01-02"`
	Notes     string `json:"notes" validate:"max=2000"`
	ActorID   string `json:"-"`
}

// ReconcileAbsenceResult summarises a reconciliation run.
type ReconcileAbsenceResult struct {
	Created         int      `json:"created"`
	Updated         int      `json:"updated"`
	Unchanged       int      `json:"unchanged"`
	DuplicatesFixed int      `json:"duplicates_fixed"`
	NoScheduleDates []string `json:"no_schedule_dates"`
	DaysWithHours   int      `json:"days_with_hours"`
}

// RemoveAbsenceHourResult reports whether the record disappeared.
type RemoveAbsenceHourResult struct {
	Deleted bool                  `json:"deleted"`
	Absence *models.AbsenceRecord `json:"absence,omitempty"`
}

// AbsenceListQuery filters the absence listing.
type AbsenceListQuery struct {
	TeacherID string `form:"teacher_id"`
	Date      string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	Limit     int    `form:"limit" validate:"omitempty,min=1,max=500"`
}
