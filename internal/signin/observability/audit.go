// Package observability provides audit logging helpers for the sign-in module.
package observability

import (
	"context"
	"log/slog"

	"signinguard/pkg/platform/attrs"
	"signinguard/pkg/platform/audit"
	"signinguard/pkg/requestcontext"
)

// AuditPublisher is satisfied by publisher.Publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// promoted are attributes copied into dedicated Event fields rather than
// Details.
var promoted = []string{"subject_id", "reason", "decision", "ip", "country_code", "request_id"}

// LogAudit writes the event as a structured log line and emits it to the
// audit publisher. Publishing failures are logged, never returned.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append(append([]any{}, attrList...), "event", string(event), "log_type", "audit")
		logger.InfoContext(ctx, string(event), args...)
	}

	if publisher == nil {
		return
	}

	severity := audit.SeverityInfo
	if event.Category() == audit.CategorySecurity {
		severity = audit.SeverityWarning
	}

	err := publisher.Emit(ctx, audit.Event{
		Category:    event.Category(),
		Timestamp:   requestcontext.Now(ctx),
		SubjectID:   attrs.ExtractString(attrList, "subject_id"),
		Action:      string(event),
		Decision:    attrs.ExtractString(attrList, "decision"),
		Reason:      attrs.ExtractString(attrList, "reason"),
		Severity:    severity,
		IP:          attrs.ExtractString(attrList, "ip"),
		CountryCode: attrs.ExtractString(attrList, "country_code"),
		RequestID:   requestID,
		ActorID:     requestcontext.Caller(ctx),
		Details:     attrs.Details(attrList, promoted...),
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event),
			"error", err,
		)
	}
}
