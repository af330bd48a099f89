// Package travel decides whether a login is geographically implausible given
// the subject's most recent successful interactive logins.
//
// The detector is read-only and fail-open: every missing signal or failing
// collaborator yields "not flagged". It never logs or persists; the sign-in
// service acts on the Assessment.
package travel

import (
	"context"
	"errors"
	"math"
	"net/netip"
	"strings"
	"time"

	"signinguard/internal/geo"
	"signinguard/internal/signin/models"
	"signinguard/pkg/requestcontext"
)

// SignInLog is the read side of the sign-in log store.
type SignInLog interface {
	List(ctx context.Context, filter models.ListFilter, page models.Page) (*models.ResultSet, error)
}

// Locator maps an address to a location; nil means unresolved.
type Locator interface {
	Locate(ctx context.Context, addr netip.Addr) (*geo.Location, error)
}

// IPSource supplies the originating address of the current request.
type IPSource interface {
	ClientIP(ctx context.Context) (netip.Addr, bool)
}

// RequestIPSource reads the address the metadata middleware put in context.
type RequestIPSource struct{}

func (RequestIPSource) ClientIP(ctx context.Context) (netip.Addr, bool) {
	return requestcontext.ClientAddr(ctx)
}

// Detector is implemented by the working Service and by Disabled.
type Detector interface {
	IsImpossibleTravel(ctx context.Context, subjectID string) bool
	Evaluate(ctx context.Context, subjectID string) Assessment
	Assess(ctx context.Context, attempt models.Attempt) Assessment
}

// Service is the impossible-travel detector. It holds no mutable state and
// is safe for concurrent use.
type Service struct {
	log      SignInLog
	locator  Locator
	ipSource IPSource
	options  Options
}

// New builds a detector. Missing collaborators and invalid options are
// programmer errors and fail here rather than per call.
func New(log SignInLog, locator Locator, opts ...Option) (*Service, error) {
	if log == nil {
		return nil, errors.New("sign-in log is required")
	}
	if locator == nil {
		return nil, errors.New("ip locator is required")
	}

	cfg := settings{options: DefaultOptions(), ipSource: RequestIPSource{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.options.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		log:      log,
		locator:  locator,
		ipSource: cfg.ipSource,
		options:  cfg.options,
	}, nil
}

// Select returns a working detector when both collaborators are configured
// and Disabled otherwise. Pass untyped nil for an absent collaborator.
func Select(log SignInLog, locator Locator, opts ...Option) (Detector, error) {
	if log == nil || locator == nil {
		return Disabled{}, nil
	}
	return New(log, locator, opts...)
}

// Options returns the configuration the detector runs with.
func (s *Service) Options() Options {
	return s.options
}

// IsImpossibleTravel reports whether the current login for subjectID should
// be flagged.
func (s *Service) IsImpossibleTravel(ctx context.Context, subjectID string) bool {
	return s.Evaluate(ctx, subjectID).Flagged
}

// Evaluate assesses the current request for subjectID, taking the client
// address from the IP source and "now" from the request context.
func (s *Service) Evaluate(ctx context.Context, subjectID string) Assessment {
	attempt := models.Attempt{
		SubjectID:  strings.TrimSpace(subjectID),
		OccurredAt: requestcontext.Now(ctx),
	}
	if addr, ok := s.ipSource.ClientIP(ctx); ok {
		attempt.IPAddress = addr
	}
	return s.Assess(ctx, attempt)
}

// Assess evaluates an explicit attempt.
func (s *Service) Assess(ctx context.Context, attempt models.Attempt) Assessment {
	now := attempt.OccurredAt
	if now.IsZero() {
		now = requestcontext.Now(ctx)
	}
	now = now.UTC()

	a := Assessment{SubjectID: attempt.SubjectID, EvaluatedAt: now}
	if attempt.SubjectID == "" {
		return a.conclude(ReasonNoSubject)
	}
	if !attempt.HasIP() {
		return a.conclude(ReasonNoClientIP)
	}
	if err := ctx.Err(); err != nil {
		return a.failOpen(ctx, ReasonCanceled, err)
	}

	history, err := s.log.List(ctx, models.ListFilter{
		SubjectID:     attempt.SubjectID,
		Types:         []models.SignInType{models.SignInInteractive},
		SucceededOnly: true,
		Before:        now,
	}, models.Page{Size: s.options.LookbackCount})
	if err != nil {
		return a.failOpen(ctx, ReasonHistoryUnavailable, err)
	}
	if history == nil || len(history.Records) == 0 {
		return a.conclude(ReasonNoHistory)
	}

	current, err := s.locator.Locate(ctx, attempt.IPAddress)
	if err != nil {
		return a.failOpen(ctx, ReasonLocatorUnavailable, err)
	}
	a.Current = current
	if !current.HasCoordinates() {
		return a.conclude(ReasonLocationUnresolved)
	}
	here := *current.Coordinates

	records := history.Records
	if len(records) > s.options.LookbackCount {
		records = records[:s.options.LookbackCount]
	}
	for _, r := range records {
		if r == nil || r.Coordinates == nil || !r.Coordinates.Valid() {
			continue
		}
		// Records racing in after "now" are not history yet.
		if r.CreatedAt.After(now) {
			continue
		}

		c := compare(r, here, now, s.options.AcceptableSpeedKmh)
		a.Comparisons = append(a.Comparisons, c)
		if c.Exceeded {
			a.Flagged = true
			if c.Simultaneous {
				return a.conclude(ReasonSimultaneousLogin)
			}
			return a.conclude(ReasonSpeedExceeded)
		}
	}

	if len(a.Comparisons) == 0 {
		return a.conclude(ReasonNoComparableHistory)
	}
	return a.conclude(ReasonWithinThreshold)
}

// compare measures one prior login against the current position. A
// non-positive gap between different places is a simultaneous login and
// always exceeds the limit.
func compare(prior *models.Record, here geo.Point, now time.Time, limitKmh float64) Comparison {
	from := *prior.Coordinates
	c := Comparison{
		RecordID:   prior.ID,
		From:       from,
		To:         here,
		PriorAt:    prior.CreatedAt,
		DistanceKm: geo.Distance(from, here),
	}

	elapsed := now.Sub(prior.CreatedAt)
	c.ElapsedHours = elapsed.Hours()
	if elapsed <= 0 {
		if c.DistanceKm > 0 {
			c.SpeedKmh = math.Inf(1)
			c.Simultaneous = true
			c.Exceeded = true
		}
		return c
	}

	c.SpeedKmh = c.DistanceKm / c.ElapsedHours
	c.Exceeded = c.SpeedKmh > limitKmh
	return c
}

func (a Assessment) conclude(reason Reason) Assessment {
	a.Reason = reason
	return a
}

// failOpen records why the evaluation gave up. Cancellation wins over the
// collaborator error it usually causes.
func (a Assessment) failOpen(ctx context.Context, reason Reason, err error) Assessment {
	a.Flagged = false
	if ctxErr := ctx.Err(); ctxErr != nil {
		a.Reason = ReasonCanceled
		a.Err = ctxErr
		return a
	}
	a.Reason = reason
	a.Err = err
	return a
}

// Disabled never flags. It stands in when the sign-in log or the locator is
// not configured.
type Disabled struct{}

func (Disabled) IsImpossibleTravel(context.Context, string) bool {
	return false
}

func (d Disabled) Evaluate(ctx context.Context, subjectID string) Assessment {
	return d.Assess(ctx, models.Attempt{SubjectID: strings.TrimSpace(subjectID)})
}

func (Disabled) Assess(ctx context.Context, attempt models.Attempt) Assessment {
	return Assessment{
		SubjectID:   attempt.SubjectID,
		EvaluatedAt: requestcontext.Now(ctx),
		Reason:      ReasonDisabled,
	}
}
