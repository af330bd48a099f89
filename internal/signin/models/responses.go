package models

import "time"

// ComparisonSummary is the transport view of one prior-login comparison.
type ComparisonSummary struct {
	RecordID     string    `json:"record_id"`
	PriorAt      time.Time `json:"prior_at"`
	DistanceKm   float64   `json:"distance_km"`
	ElapsedHours float64   `json:"elapsed_hours"`
	SpeedKmh     *float64  `json:"speed_kmh,omitempty"`
	Simultaneous bool      `json:"simultaneous,omitempty"`
	Exceeded     bool      `json:"exceeded"`
}

// CheckResult is returned to the sign-in pipeline. StepUpRequired mirrors
// Flagged; the pipeline decides what a step-up means.
type CheckResult struct {
	SubjectID      string              `json:"subject_id"`
	Flagged        bool                `json:"impossible_travel"`
	StepUpRequired bool                `json:"step_up_required"`
	Reason         string              `json:"reason"`
	CountryCode    string              `json:"country_code,omitempty"`
	City           string              `json:"city,omitempty"`
	Comparisons    []ComparisonSummary `json:"comparisons,omitempty"`
	EvaluatedAt    time.Time           `json:"evaluated_at"`
}

// SignInListResponse is the admin listing envelope.
type SignInListResponse struct {
	SubjectID string    `json:"subject_id"`
	Records   []*Record `json:"records"`
	HasMore   bool      `json:"has_more"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
}
