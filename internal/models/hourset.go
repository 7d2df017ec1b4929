package models

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// HourSet is an ordered set of hour-slot numbers. It is persisted as a
// comma-joined ascending list ("1,3,4"); everything else works on the set.
type HourSet []int

// NewHourSet builds a canonical set from arbitrary hours, dropping duplicates
// and non-positive values.
func NewHourSet(hours ...int) HourSet {
	seen := make(map[int]struct{}, len(hours))
	set := make(HourSet, 0, len(hours))
	for _, h := range hours {
		if h <= 0 {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		set = append(set, h)
	}
	sort.Ints(set)
	return set
}

// ParseHourSet reads the storage form. Blank tokens are ignored.
func ParseHourSet(raw string) (HourSet, error) {
	var hours []int
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		h, err := strconv.Atoi(token)
		if err != nil || h <= 0 {
			return nil, fmt.Errorf("invalid hour %q in %q", token, raw)
		}
		hours = append(hours, h)
	}
	return NewHourSet(hours...), nil
}

// String returns the storage form.
func (s HourSet) String() string {
	parts := make([]string, len(s))
	for i, h := range s {
		parts[i] = strconv.Itoa(h)
	}
	return strings.Join(parts, ",")
}

// Contains reports whether hour is in the set.
func (s HourSet) Contains(hour int) bool {
	i := sort.SearchInts(s, hour)
	return i < len(s) && s[i] == hour
}

// Union returns a new set holding the hours of both operands.
func (s HourSet) Union(other HourSet) HourSet {
	merged := make([]int, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewHourSet(merged...)
}

// Without returns a copy of the set minus hour and whether hour was present.
func (s HourSet) Without(hour int) (HourSet, bool) {
	if !s.Contains(hour) {
		return append(HourSet(nil), s...), false
	}
	out := make(HourSet, 0, len(s)-1)
	for _, h := range s {
		if h != hour {
			out = append(out, h)
		}
	}
	return out, true
}

// Equal reports element-wise equality.
func (s HourSet) Equal(other HourSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// IsSupersetOf reports whether every hour of other is also in s.
func (s HourSet) IsSupersetOf(other HourSet) bool {
	for _, h := range other {
		if !s.Contains(h) {
			return false
		}
	}
	return true
}

// Empty reports whether the set has no hours.
func (s HourSet) Empty() bool {
	return len(s) == 0
}

// Value implements driver.Valuer.
func (s HourSet) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *HourSet) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = HourSet{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into HourSet", src)
	}
	parsed, err := ParseHourSet(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseHourLabel extracts the hour number from timetable labels such as "H3"
// or "3". Labels without digits return an error.
func ParseHourLabel(label string) (int, error) {
	var digits strings.Builder
	for _, r := range label {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("hour label %q has no digits", label)
	}
	h, err := strconv.Atoi(digits.String())
	if err != nil || h <= 0 {
		return 0, fmt.Errorf("invalid hour label %q", label)
	}
	return h, nil
}
