package models

import "time"

// TimetableEntry is one scheduled duty of a teacher in the weekly timetable.
type TimetableEntry struct {
	ID         string    `db:"id" json:"id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	ActivityID int       `db:"activity_id" json:"activity_id"`
	Day        Weekday   `db:"day_code" json:"day"`
	Hour       int       `db:"hour" json:"hour"`
	HourLabel  string    `db:"hour_label" json:"hour_label"`
	ClassLabel string    `db:"class_label" json:"class_label"`
	Subject    string    `db:"subject" json:"subject"`
	Room       string    `db:"room" json:"room"`
	Note       string    `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Kind classifies the entry against the on-call sentinel subject.
func (e TimetableEntry) Kind(onCallSubject string) PeriodKind {
	if onCallSubject == "" {
		onCallSubject = DefaultOnCallSubject
	}
	if e.Subject == onCallSubject {
		return PeriodOnCall
	}
	return PeriodTeaching
}
