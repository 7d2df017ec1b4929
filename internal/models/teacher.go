package models

import "time"

// Teacher represents a roster entry. Placeholder teachers are synthetic rows
// standing for an administrative outcome (delayed entry, early exit).
type Teacher struct {
	ID              string          `db:"id" json:"id"`
	Surname         string          `db:"surname" json:"surname"`
	GivenName       string          `db:"given_name" json:"given_name"`
	Code            *string         `db:"code" json:"code,omitempty"`
	Active          bool            `db:"active" json:"active"`
	IsPlaceholder   bool            `db:"is_placeholder" json:"is_placeholder"`
	PlaceholderTier *SubstituteTier `db:"placeholder_tier" json:"placeholder_tier,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// DisplayName returns "Surname GivenName".
func (t Teacher) DisplayName() string {
	if t.GivenName == "" {
		return t.Surname
	}
	return t.Surname + " " + t.GivenName
}

// FallbackTier returns the tier a placeholder stands for. ok is false for real
// teachers and for placeholders without a fallback tier.
func (t Teacher) FallbackTier() (tier SubstituteTier, ok bool) {
	if !t.IsPlaceholder || t.PlaceholderTier == nil {
		return "", false
	}
	if !t.PlaceholderTier.IsFallback() {
		return "", false
	}
	return *t.PlaceholderTier, true
}

// CanSubstitute reports whether the teacher may physically cover a period.
func (t Teacher) CanSubstitute() bool {
	return t.Active && !t.IsPlaceholder
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	ActiveOnly      bool
	IncludeFallback bool
}
