package dto

// AssignSubstituteRequest commits a decision for one uncovered period.
type AssignSubstituteRequest struct {
	Date                string  `json:"date" validate:"required,datetime=2006-01-02"`
	Hour                int     `json:"hour" validate:"required,min=1"`
	ClassLabel          string  `json:"class_label" validate:"max=100"`
	AbsentTeacherID     string  `json:"absent_teacher_id" validate:"required"`
	Tier                string  `json:"tier" validate:"required"`
	SubstituteTeacherID *string `json:"substitute_teacher_id"`
	ActorID             string  `json:"-"`
}
