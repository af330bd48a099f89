// Package service hosts the impossible-travel check inside the sign-in
// pipeline: it runs the detector, records successful sign-ins for future
// checks, and reports outcomes through logs, metrics, audit events and spans.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signinguard/internal/geo"
	"signinguard/internal/signin/device"
	"signinguard/internal/signin/metrics"
	"signinguard/internal/signin/models"
	"signinguard/internal/signin/observability"
	"signinguard/internal/travel"
	dErrors "signinguard/pkg/domain-errors"
	"signinguard/pkg/platform/audit"
	"signinguard/pkg/platform/sentinel"
	"signinguard/pkg/requestcontext"
)

const tracerName = "signinguard/internal/signin/service"

// Store is the sign-in log as the service uses it.
type Store interface {
	Append(ctx context.Context, record *models.Record) error
	List(ctx context.Context, filter models.ListFilter, page models.Page) (*models.ResultSet, error)
}

// Detector is the subset of travel.Detector the service drives.
type Detector interface {
	Evaluate(ctx context.Context, subjectID string) travel.Assessment
	Assess(ctx context.Context, attempt models.Attempt) travel.Assessment
}

// Locator resolves the position stored on new records.
type Locator interface {
	Locate(ctx context.Context, addr netip.Addr) (*geo.Location, error)
}

type AuditPublisher = observability.AuditPublisher

type Service struct {
	store    Store
	detector Detector
	locator  Locator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  AuditPublisher
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

// WithLocator enables location lookup for recorded sign-ins. Without it
// records are stored without coordinates and never take part in detection.
func WithLocator(locator Locator) Option {
	return func(s *Service) {
		s.locator = locator
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

func New(store Store, detector Detector, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("sign-in store is required")
	}
	if detector == nil {
		return nil, errors.New("travel detector is required")
	}
	svc := &Service{
		store:    store,
		detector: detector,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckAttempt evaluates the login currently being authenticated. The
// explicit IP in req wins over the request's client address. Detector
// failures never surface as errors: the result is simply not flagged.
func (s *Service) CheckAttempt(ctx context.Context, req models.EvaluateRequest) (*models.CheckResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "signin.CheckAttempt",
		trace.WithAttributes(attribute.String("signin.subject_id", req.SubjectID)))
	defer span.End()

	start := time.Now()
	var (
		assessment travel.Assessment
		clientIP   string
	)
	if req.IPAddress != "" {
		addr, err := parseAddr(req.IPAddress)
		if err != nil {
			span.SetStatus(codes.Error, "invalid ip_address")
			return nil, err
		}
		clientIP = addr.String()
		assessment = s.detector.Assess(ctx, models.Attempt{
			SubjectID:  req.SubjectID,
			IPAddress:  addr,
			OccurredAt: requestcontext.Now(ctx),
		})
	} else {
		if addr, ok := requestcontext.ClientAddr(ctx); ok {
			clientIP = addr.String()
		}
		assessment = s.detector.Evaluate(ctx, req.SubjectID)
	}
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Bool("signin.impossible_travel", assessment.Flagged),
		attribute.String("signin.reason", string(assessment.Reason)),
		attribute.Int("signin.comparisons", len(assessment.Comparisons)),
	)
	if assessment.Err != nil {
		span.RecordError(assessment.Err)
		s.logger.WarnContext(ctx, "impossible travel check failed open",
			"subject_id", req.SubjectID,
			"reason", string(assessment.Reason),
			"error", assessment.Err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	s.metrics.ObserveEvaluation(string(assessment.Reason), assessment.Flagged, elapsed)
	if speed, ok := assessment.MaxSpeedKmh(); ok {
		s.metrics.ObserveImpliedSpeed(speed)
	}

	s.logger.InfoContext(ctx, "impossible travel evaluated",
		"subject_id", req.SubjectID,
		"impossible_travel", assessment.Flagged,
		"reason", string(assessment.Reason),
		"comparisons", len(assessment.Comparisons),
		"duration_ms", elapsed.Milliseconds(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if assessment.Flagged {
		s.auditFlagged(ctx, assessment, clientIP)
	} else {
		observability.LogAudit(ctx, s.logger, s.auditor, audit.EventSignInEvaluated,
			"subject_id", assessment.SubjectID,
			"reason", string(assessment.Reason),
			"decision", "allow",
			"ip", clientIP,
			"comparisons", len(assessment.Comparisons),
		)
	}

	return toCheckResult(assessment), nil
}

func (s *Service) auditFlagged(ctx context.Context, a travel.Assessment, clientIP string) {
	attrList := []any{
		"subject_id", a.SubjectID,
		"reason", string(a.Reason),
		"decision", "step_up",
		"ip", clientIP,
	}
	if a.Current != nil {
		attrList = append(attrList, "country_code", a.Current.CountryCode, "city", a.Current.City)
	}
	if n := len(a.Comparisons); n > 0 {
		last := a.Comparisons[n-1]
		attrList = append(attrList,
			"prior_record_id", last.RecordID,
			"distance_km", strconv.FormatFloat(last.DistanceKm, 'f', 1, 64),
			"speed_kmh", speedLabel(last),
		)
	}
	observability.LogAudit(ctx, s.logger, s.auditor, audit.EventImpossibleTravelDetected, attrList...)
}

// RecordSuccess appends a completed successful sign-in. Location and device
// enrichment are best-effort; only the store write can fail the call.
func (s *Service) RecordSuccess(ctx context.Context, req models.RecordRequest) (*models.Record, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "signin.RecordSuccess",
		trace.WithAttributes(
			attribute.String("signin.subject_id", req.SubjectID),
			attribute.String("signin.type", string(req.Type)),
		))
	defer span.End()

	var addr netip.Addr
	if req.IPAddress != "" {
		parsed, err := parseAddr(req.IPAddress)
		if err != nil {
			span.SetStatus(codes.Error, "invalid ip_address")
			return nil, err
		}
		addr = parsed
	} else if fromCtx, ok := requestcontext.ClientAddr(ctx); ok {
		addr = fromCtx
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = requestcontext.UserAgent(ctx)
	}

	record := &models.Record{
		ID:        uuid.NewString(),
		SubjectID: req.SubjectID,
		Type:      req.Type,
		Succeeded: true,
		CreatedAt: requestcontext.Now(ctx),
		Device:    device.ParseUserAgent(userAgent),
	}
	if addr.IsValid() {
		record.IPAddress = addr.String()
		s.enrichLocation(ctx, record, addr)
	}

	if err := s.store.Append(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		s.logger.ErrorContext(ctx, "failed to record sign-in",
			"subject_id", req.SubjectID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, storeErrorCode(err), "failed to record sign-in")
	}

	s.metrics.IncrementRecorded(string(record.Type), record.Succeeded)
	observability.LogAudit(ctx, s.logger, s.auditor, audit.EventSignInRecorded,
		"subject_id", record.SubjectID,
		"record_id", record.ID,
		"sign_in_type", string(record.Type),
		"ip", record.IPAddress,
		"country_code", record.CountryCode,
		"located", record.Coordinates != nil,
	)
	return record, nil
}

func (s *Service) enrichLocation(ctx context.Context, record *models.Record, addr netip.Addr) {
	if s.locator == nil {
		return
	}
	loc, err := s.locator.Locate(ctx, addr)
	if err != nil {
		s.logger.WarnContext(ctx, "sign-in location lookup failed",
			"subject_id", record.SubjectID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	if loc == nil {
		return
	}
	record.CountryCode = loc.CountryCode
	record.City = loc.City
	if loc.HasCoordinates() {
		pt := *loc.Coordinates
		record.Coordinates = &pt
	}
}

// ListSignIns returns a subject's sign-in history for administrators.
func (s *Service) ListSignIns(ctx context.Context, subjectID string, page models.Page) (*models.SignInListResponse, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	page = page.Normalize()

	rs, err := s.store.List(ctx, models.ListFilter{SubjectID: subjectID}, page)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list sign-ins",
			"subject_id", subjectID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, storeErrorCode(err), "failed to list sign-ins")
	}

	observability.LogAudit(ctx, s.logger, s.auditor, audit.EventSignInsListed,
		"subject_id", subjectID,
		"returned", len(rs.Records),
	)
	return &models.SignInListResponse{
		SubjectID: subjectID,
		Records:   rs.Records,
		HasMore:   rs.HasMore,
		Limit:     page.Size,
		Offset:    page.Offset,
	}, nil
}

// speedLabel renders the implied speed for logs; simultaneous logins have
// no finite speed.
func speedLabel(c travel.Comparison) string {
	if v := c.FiniteSpeed(); v != nil {
		return strconv.FormatFloat(*v, 'f', 1, 64)
	}
	return "inf"
}

// storeErrorCode translates infrastructure sentinels from the sign-in log.
func storeErrorCode(err error) dErrors.Code {
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.CodeUnavailable
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.CodeConflict
	default:
		return dErrors.CodeInternal
	}
}

func parseAddr(raw string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("ip_address %q is not a valid IP address", raw))
	}
	return addr.Unmap(), nil
}

func toCheckResult(a travel.Assessment) *models.CheckResult {
	result := &models.CheckResult{
		SubjectID:      a.SubjectID,
		Flagged:        a.Flagged,
		StepUpRequired: a.Flagged,
		Reason:         string(a.Reason),
		EvaluatedAt:    a.EvaluatedAt,
	}
	if a.Current != nil {
		result.CountryCode = a.Current.CountryCode
		result.City = a.Current.City
	}
	for _, c := range a.Comparisons {
		result.Comparisons = append(result.Comparisons, models.ComparisonSummary{
			RecordID:     c.RecordID,
			PriorAt:      c.PriorAt,
			DistanceKm:   c.DistanceKm,
			ElapsedHours: c.ElapsedHours,
			SpeedKmh:     c.FiniteSpeed(),
			Simultaneous: c.Simultaneous,
			Exceeded:     c.Exceeded,
		})
	}
	return result
}
