package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events so sinks can route and retain them
// differently.
type EventCategory string

const (
	// CategorySecurity covers events for security monitoring and alerting,
	// such as flagged sign-ins.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          string        `json:"id"`
	Category    EventCategory `json:"category"`
	Timestamp   time.Time     `json:"timestamp"`
	SubjectID   string        `json:"subject_id"`
	Action      string        `json:"action"`
	Decision    string        `json:"decision,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Severity    Severity      `json:"severity,omitempty"`
	IP          string        `json:"ip,omitempty"`
	CountryCode string        `json:"country_code,omitempty"`
	RequestID   string        `json:"request_id,omitempty"`
	// ActorID is the authenticated caller when it differs from the subject,
	// e.g. the identity provider reporting a sign-in or an admin listing one.
	ActorID string            `json:"actor_id,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type AuditEvent string

const (
	EventImpossibleTravelDetected AuditEvent = "impossible_travel_detected"
	EventSignInEvaluated          AuditEvent = "sign_in_evaluated"
	EventSignInRecorded           AuditEvent = "sign_in_recorded"
	EventSignInsListed            AuditEvent = "sign_ins_listed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventImpossibleTravelDetected: CategorySecurity,
	EventSignInsListed:            CategorySecurity,

	EventSignInEvaluated: CategoryOperations,
	EventSignInRecorded:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
