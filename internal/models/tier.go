package models

import (
	"fmt"
	"strings"
)

// SubstituteTier classifies how an uncovered period is handled.
type SubstituteTier string

const (
	// TierCompresence is a co-teacher already scheduled in the same class and hour.
	TierCompresence SubstituteTier = "COMPRESENCE"
	// TierOnCall is a teacher on duty that hour without a class.
	TierOnCall SubstituteTier = "ONCALL"
	// TierDelayedEntry lets the class enter late; no physical substitute.
	TierDelayedEntry SubstituteTier = "DELAYED_ENTRY"
	// TierEarlyExit lets the class leave early; no physical substitute.
	TierEarlyExit SubstituteTier = "EARLY_EXIT"
)

// SubstituteTiers lists every tier in display order.
var SubstituteTiers = []SubstituteTier{TierCompresence, TierOnCall, TierDelayedEntry, TierEarlyExit}

// ParseSubstituteTier accepts the tier name or its short label.
func ParseSubstituteTier(raw string) (SubstituteTier, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for _, tier := range SubstituteTiers {
		if value == string(tier) || value == tier.Label() {
			return tier, nil
		}
	}
	return "", fmt.Errorf("unknown substitute tier %q", raw)
}

// Valid reports whether t is a known tier.
func (t SubstituteTier) Valid() bool {
	return t.Rank() >= 0
}

// Rank orders tiers for candidate ranking; unknown tiers return -1.
func (t SubstituteTier) Rank() int {
	switch t {
	case TierCompresence:
		return 0
	case TierOnCall:
		return 1
	case TierDelayedEntry:
		return 2
	case TierEarlyExit:
		return 3
	default:
		return -1
	}
}

// Label is the short tag shown next to a candidate.
func (t SubstituteTier) Label() string {
	switch t {
	case TierCompresence:
		return "C"
	case TierOnCall:
		return "D"
	case TierDelayedEntry:
		return "EP"
	case TierEarlyExit:
		return "UA"
	default:
		return ""
	}
}

// IsFallback reports whether the tier stands for an administrative outcome
// rather than a physical substitute.
func (t SubstituteTier) IsFallback() bool {
	switch t {
	case TierDelayedEntry, TierEarlyExit:
		return true
	case TierCompresence, TierOnCall:
		return false
	default:
		return false
	}
}

// PeriodKind tells a teaching period apart from an on-call one.
type PeriodKind int

const (
	PeriodTeaching PeriodKind = iota
	PeriodOnCall
)

// DefaultOnCallSubject is the subject value marking on-call duty in timetable exports.
const DefaultOnCallSubject = "FREE"

// String implements fmt.Stringer.
func (k PeriodKind) String() string {
	switch k {
	case PeriodOnCall:
		return "ONCALL"
	default:
		return "TEACHING"
	}
}
