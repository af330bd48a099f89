package travel

import (
	"math"
	"time"

	"signinguard/internal/geo"
)

// Reason explains an Assessment outcome.
type Reason string

const (
	ReasonDisabled            Reason = "disabled"
	ReasonNoSubject           Reason = "no_subject"
	ReasonNoClientIP          Reason = "no_client_ip"
	ReasonNoHistory           Reason = "no_history"
	ReasonLocationUnresolved  Reason = "location_unresolved"
	ReasonNoComparableHistory Reason = "no_comparable_history"
	ReasonWithinThreshold     Reason = "within_threshold"
	ReasonSpeedExceeded       Reason = "speed_exceeded"
	ReasonSimultaneousLogin   Reason = "simultaneous_login"
	ReasonHistoryUnavailable  Reason = "history_unavailable"
	ReasonLocatorUnavailable  Reason = "locator_unavailable"
	ReasonCanceled            Reason = "canceled"
)

// Comparison is the outcome of measuring the current login against one
// prior login.
type Comparison struct {
	RecordID     string
	From         geo.Point
	To           geo.Point
	PriorAt      time.Time
	DistanceKm   float64
	ElapsedHours float64
	// SpeedKmh is +Inf for simultaneous logins at different places.
	SpeedKmh     float64
	Simultaneous bool
	Exceeded     bool
}

// Assessment is the full result of one evaluation. Flagged is the only field
// the sign-in pipeline must act on; the rest is diagnostics for logging and
// auditing by the caller.
type Assessment struct {
	SubjectID   string
	EvaluatedAt time.Time
	Flagged     bool
	Reason      Reason
	Current     *geo.Location
	Comparisons []Comparison
	// Err is the collaborator failure that forced a fail-open outcome, if any.
	Err error
}

// FiniteSpeed returns the comparison speed, or nil for simultaneous logins.
func (c Comparison) FiniteSpeed() *float64 {
	if math.IsInf(c.SpeedKmh, 0) || math.IsNaN(c.SpeedKmh) {
		return nil
	}
	v := c.SpeedKmh
	return &v
}

// MaxSpeedKmh returns the highest finite implied speed across comparisons.
func (a Assessment) MaxSpeedKmh() (float64, bool) {
	var best float64
	found := false
	for _, c := range a.Comparisons {
		if s := c.FiniteSpeed(); s != nil && (!found || *s > best) {
			best, found = *s, true
		}
	}
	return best, found
}
