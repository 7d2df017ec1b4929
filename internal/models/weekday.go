package models

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the three-letter day code used by the timetable.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
)

// isoWeek is indexed by ISO weekday with Monday = 0.
var isoWeek = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// timetable exports sometimes carry Italian day codes.
var weekdayAliases = map[string]Weekday{
	"LUN": Monday,
	"MAR": Tuesday,
	"MER": Wednesday,
	"GIO": Thursday,
	"VEN": Friday,
	"SAB": Saturday,
	"DOM": Sunday,
}

// WeekdayOf returns the day code of a calendar date.
func WeekdayOf(date time.Time) Weekday {
	return isoWeek[(int(date.Weekday())+6)%7]
}

// Index returns the ISO position of the day, Monday = 0. Unknown codes return -1.
func (w Weekday) Index() int {
	for i, day := range isoWeek {
		if day == w {
			return i
		}
	}
	return -1
}

// Valid reports whether w is one of the seven canonical codes.
func (w Weekday) Valid() bool {
	return w.Index() >= 0
}

// ParseWeekday normalises a day code, accepting English and Italian abbreviations
// as well as full English names.
func ParseWeekday(raw string) (Weekday, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) > 3 {
		code = code[:3]
	}
	if day := Weekday(code); day.Valid() {
		return day, nil
	}
	if day, ok := weekdayAliases[code]; ok {
		return day, nil
	}
	return "", fmt.Errorf("unknown weekday %q", raw)
}
