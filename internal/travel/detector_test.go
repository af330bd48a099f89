package travel

import (
	"context"
	"errors"
	"math"
	"net/netip"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signinguard/internal/geo"
	"signinguard/internal/geo/locator"
	"signinguard/internal/signin/models"
	"signinguard/pkg/requestcontext"
)

var (
	athens = geo.Point{Latitude: 37.9838, Longitude: 23.7275}
	london = geo.Point{Latitude: 51.5074, Longitude: -0.1278}
	paris  = geo.Point{Latitude: 48.8566, Longitude: 2.3522}

	londonIP = netip.MustParseAddr("203.0.113.7")
	unknown  = netip.MustParseAddr("198.51.100.9")
)

// fakeLog behaves like a store: filter, newest first, truncate to page size.
type fakeLog struct {
	records    []*models.Record
	err        error
	calls      int
	lastFilter models.ListFilter
	lastPage   models.Page
}

func (f *fakeLog) List(ctx context.Context, filter models.ListFilter, page models.Page) (*models.ResultSet, error) {
	f.calls++
	f.lastFilter = filter
	f.lastPage = page
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*models.Record
	for _, r := range f.records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	rs := &models.ResultSet{}
	if len(out) > page.Size {
		out = out[:page.Size]
		rs.HasMore = true
	}
	rs.Records = out
	return rs, nil
}

// unfilteredLog ignores the filter, to prove the detector guards on its own.
type unfilteredLog struct {
	records []*models.Record
}

func (u unfilteredLog) List(context.Context, models.ListFilter, models.Page) (*models.ResultSet, error) {
	return &models.ResultSet{Records: u.records}, nil
}

type failingLocator struct{ err error }

func (f failingLocator) Locate(context.Context, netip.Addr) (*geo.Location, error) {
	return nil, f.err
}

type fixedIP struct{ addr netip.Addr }

func (f fixedIP) ClientIP(context.Context) (netip.Addr, bool) {
	return f.addr, f.addr.IsValid()
}

type DetectorSuite struct {
	suite.Suite
	now     time.Time
	log     *fakeLog
	locator *locator.Static
	ctx     context.Context
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.log = &fakeLog{}
	s.locator = locator.NewStatic().
		Set(londonIP, &geo.Location{Coordinates: pt(london), CountryCode: "GB", City: "London"})
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithClientIP(s.ctx, londonIP.String())
}

func pt(p geo.Point) *geo.Point {
	return &p
}

func (s *DetectorSuite) record(id string, at time.Time, where *geo.Point) *models.Record {
	return &models.Record{
		ID:          id,
		SubjectID:   "user-1",
		Type:        models.SignInInteractive,
		Succeeded:   true,
		CreatedAt:   at,
		Coordinates: where,
	}
}

func (s *DetectorSuite) detector(opts ...Option) *Service {
	d, err := New(s.log, s.locator, opts...)
	s.Require().NoError(err)
	return d
}

func (s *DetectorSuite) TestAthensToLondonInThirtyMinutes() {
	s.log.records = []*models.Record{s.record("r1", s.now.Add(-30*time.Minute), pt(athens))}

	a := s.detector().Evaluate(s.ctx, "user-1")

	s.True(a.Flagged)
	s.Equal(ReasonSpeedExceeded, a.Reason)
	s.Require().Len(a.Comparisons, 1)
	s.InDelta(2392, a.Comparisons[0].DistanceKm, 20)
	s.InDelta(4784, a.Comparisons[0].SpeedKmh, 40)
	s.Equal("GB", a.Current.CountryCode)
	s.NoError(a.Err)
	s.True(s.detector().IsImpossibleTravel(s.ctx, "user-1"))
}

func (s *DetectorSuite) TestQueriesOnlySuccessfulInteractiveHistory() {
	s.log.records = []*models.Record{s.record("r1", s.now.Add(-time.Hour), pt(london))}

	s.detector(WithLookbackCount(2)).Evaluate(s.ctx, "user-1")

	s.Equal(1, s.log.calls)
	s.Equal("user-1", s.log.lastFilter.SubjectID)
	s.Equal([]models.SignInType{models.SignInInteractive}, s.log.lastFilter.Types)
	s.True(s.log.lastFilter.SucceededOnly)
	s.True(s.log.lastFilter.Before.Equal(s.now))
	s.Equal(2, s.log.lastPage.Size)
}

func (s *DetectorSuite) TestMissingInputsFailOpen() {
	s.log.records = []*models.Record{s.record("r1", s.now.Add(-time.Minute), pt(athens))}

	s.Run("blank subject", func() {
		calls := s.log.calls
		a := s.detector().Evaluate(s.ctx, "   ")
		s.False(a.Flagged)
		s.Equal(ReasonNoSubject, a.Reason)
		s.Equal(calls, s.log.calls, "no store access for blank subject")
	})

	s.Run("no client ip in context", func() {
		ctx := requestcontext.WithTime(context.Background(), s.now)
		a := s.detector().Evaluate(ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonNoClientIP, a.Reason)
	})

	s.Run("unparseable client ip", func() {
		ctx := requestcontext.WithClientIP(s.ctx, "not-an-ip")
		a := s.detector().Evaluate(ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonNoClientIP, a.Reason)
	})

	s.Run("unresolvable current ip", func() {
		ctx := requestcontext.WithClientIP(s.ctx, unknown.String())
		a := s.detector().Evaluate(ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonLocationUnresolved, a.Reason)
	})

	s.Run("current location without coordinates", func() {
		s.locator.Set(unknown, &geo.Location{CountryCode: "FR"})
		ctx := requestcontext.WithClientIP(s.ctx, unknown.String())
		a := s.detector().Evaluate(ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonLocationUnresolved, a.Reason)
		s.Equal("FR", a.Current.CountryCode)
	})
}

func (s *DetectorSuite) TestNoHistory() {
	a := s.detector().Evaluate(s.ctx, "user-1")
	s.False(a.Flagged)
	s.Equal(ReasonNoHistory, a.Reason)
	s.Zero(s.locator.Lookups(), "locator is skipped when there is nothing to compare")
}

func (s *DetectorSuite) TestHistoryWithoutCoordinatesIsSkipped() {
	s.log.records = []*models.Record{s.record("r1", s.now.Add(-time.Minute), nil)}

	a := s.detector().Evaluate(s.ctx, "user-1")

	s.False(a.Flagged)
	s.Equal(ReasonNoComparableHistory, a.Reason)
	s.Empty(a.Comparisons)
}

func (s *DetectorSuite) TestSamePlaceIsNeverFlagged() {
	s.Run("same instant", func() {
		s.log.records = []*models.Record{s.record("r1", s.now, pt(london))}
		a := s.detector().Evaluate(s.ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonWithinThreshold, a.Reason)
		s.Require().Len(a.Comparisons, 1)
		s.Zero(a.Comparisons[0].DistanceKm)
		s.False(a.Comparisons[0].Simultaneous)
	})

	s.Run("a second later", func() {
		s.log.records = []*models.Record{s.record("r1", s.now.Add(-time.Second), pt(london))}
		s.False(s.detector().IsImpossibleTravel(s.ctx, "user-1"))
	})
}

func (s *DetectorSuite) TestSimultaneousLoginAtDifferentPlaces() {
	s.log.records = []*models.Record{s.record("r1", s.now, pt(paris))}

	a := s.detector().Evaluate(s.ctx, "user-1")

	s.True(a.Flagged)
	s.Equal(ReasonSimultaneousLogin, a.Reason)
	s.Require().Len(a.Comparisons, 1)
	s.True(a.Comparisons[0].Simultaneous)
	s.True(math.IsInf(a.Comparisons[0].SpeedKmh, 1))
	s.Nil(a.Comparisons[0].FiniteSpeed())
}

func (s *DetectorSuite) TestThresholdBoundary() {
	// London to Paris is roughly 344 km.
	s.log.records = []*models.Record{s.record("r1", s.now.Add(-5*time.Hour), pt(paris))}

	s.Run("below default threshold", func() {
		a := s.detector().Evaluate(s.ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonWithinThreshold, a.Reason)
		speed, ok := a.MaxSpeedKmh()
		s.True(ok)
		s.InDelta(68.8, speed, 2)
	})

	s.Run("stricter threshold flags the same trip", func() {
		s.True(s.detector(WithAcceptableSpeed(50)).IsImpossibleTravel(s.ctx, "user-1"))
	})

	s.Run("speed equal to the threshold is not flagged", func() {
		a := s.detector().Evaluate(s.ctx, "user-1")
		exact := a.Comparisons[0].SpeedKmh
		s.False(s.detector(WithAcceptableSpeed(exact)).IsImpossibleTravel(s.ctx, "user-1"))
	})
}

func (s *DetectorSuite) TestSpeedIsMonotoneInDistanceAndTime() {
	cases := []struct {
		name  string
		ago   time.Duration
		where geo.Point
	}{
		{"paris one hour ago", time.Hour, paris},
		{"athens one hour ago", time.Hour, athens},
		{"athens ten hours ago", 10 * time.Hour, athens},
	}
	speeds := make([]float64, len(cases))
	for i, tc := range cases {
		s.log.records = []*models.Record{s.record("r", s.now.Add(-tc.ago), pt(tc.where))}
		a := s.detector(WithAcceptableSpeed(1e9)).Evaluate(s.ctx, "user-1")
		s.Require().Len(a.Comparisons, 1, tc.name)
		speeds[i] = a.Comparisons[0].SpeedKmh
	}
	s.Less(speeds[0], speeds[1], "longer distance in same time is faster")
	s.Greater(speeds[1], speeds[2], "same distance in more time is slower")
}

func (s *DetectorSuite) TestLookback() {
	s.log.records = []*models.Record{
		s.record("recent", s.now.Add(-10*time.Hour), pt(paris)),
		s.record("older", s.now.Add(-11*time.Hour), pt(athens)),
	}

	s.Run("default compares only the latest login", func() {
		a := s.detector().Evaluate(s.ctx, "user-1")
		s.False(a.Flagged)
		s.Len(a.Comparisons, 1)
		s.Equal("recent", a.Comparisons[0].RecordID)
	})

	s.Run("lookback of two reaches the older login", func() {
		a := s.detector(WithLookbackCount(2), WithAcceptableSpeed(200)).Evaluate(s.ctx, "user-1")
		s.True(a.Flagged)
		s.Len(a.Comparisons, 2)
		s.Equal("older", a.Comparisons[1].RecordID)
	})

	s.Run("first violation short-circuits", func() {
		s.log.records[0] = s.record("recent", s.now.Add(-time.Minute), pt(paris))
		a := s.detector(WithLookbackCount(2)).Evaluate(s.ctx, "user-1")
		s.True(a.Flagged)
		s.Len(a.Comparisons, 1)
	})
}

func (s *DetectorSuite) TestIgnoresRecordsTheStoreShouldHaveFiltered() {
	future := s.record("future", s.now.Add(time.Minute), pt(athens))
	d, err := New(unfilteredLog{records: []*models.Record{future}}, s.locator)
	s.Require().NoError(err)

	a := d.Evaluate(s.ctx, "user-1")

	s.False(a.Flagged)
	s.Equal(ReasonNoComparableHistory, a.Reason)
}

func (s *DetectorSuite) TestCollaboratorFailuresFailOpen() {
	s.Run("store error", func() {
		boom := errors.New("connection refused")
		s.log.err = boom
		a := s.detector().Evaluate(s.ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonHistoryUnavailable, a.Reason)
		s.ErrorIs(a.Err, boom)
		s.log.err = nil
	})

	s.Run("locator error", func() {
		s.log.records = []*models.Record{s.record("r1", s.now.Add(-time.Minute), pt(athens))}
		boom := errors.New("geoip unavailable")
		d, err := New(s.log, failingLocator{err: boom})
		s.Require().NoError(err)
		a := d.Evaluate(s.ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonLocatorUnavailable, a.Reason)
		s.ErrorIs(a.Err, boom)
	})

	s.Run("canceled context", func() {
		s.log.records = []*models.Record{s.record("r1", s.now.Add(-time.Minute), pt(athens))}
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		a := s.detector().Evaluate(ctx, "user-1")
		s.False(a.Flagged)
		s.Equal(ReasonCanceled, a.Reason)
		s.ErrorIs(a.Err, context.Canceled)
	})
}

func (s *DetectorSuite) TestIsDeterministic() {
	s.log.records = []*models.Record{s.record("r1", s.now.Add(-2*time.Hour), pt(athens))}
	d := s.detector()
	first := d.Evaluate(s.ctx, "user-1")
	for range 5 {
		s.Equal(first, d.Evaluate(s.ctx, "user-1"))
	}
}

func (s *DetectorSuite) TestAssessWithExplicitAttempt() {
	s.log.records = []*models.Record{s.record("r1", s.now.Add(-30*time.Minute), pt(athens))}
	d := s.detector(WithIPSource(fixedIP{}))

	s.False(d.IsImpossibleTravel(s.ctx, "user-1"), "custom ip source has no address")

	a := d.Assess(context.Background(), models.Attempt{
		SubjectID:  "user-1",
		IPAddress:  londonIP,
		OccurredAt: s.now,
	})
	s.True(a.Flagged)
	s.True(a.EvaluatedAt.Equal(s.now))
}

func (s *DetectorSuite) TestConstruction() {
	s.Run("nil collaborators are rejected", func() {
		_, err := New(nil, s.locator)
		s.Error(err)
		_, err = New(s.log, nil)
		s.Error(err)
	})

	s.Run("invalid options are rejected", func() {
		for _, opt := range []Option{
			WithLookbackCount(0),
			WithLookbackCount(MaxLookbackCount + 1),
			WithAcceptableSpeed(0),
			WithAcceptableSpeed(-10),
			WithAcceptableSpeed(math.NaN()),
			WithAcceptableSpeed(math.Inf(1)),
		} {
			_, err := New(s.log, s.locator, opt)
			s.Error(err)
		}
	})

	s.Run("defaults", func() {
		s.Equal(DefaultOptions(), s.detector().Options())
		s.Equal(Options{AcceptableSpeedKmh: 120, LookbackCount: 2},
			s.detector(WithOptions(Options{AcceptableSpeedKmh: 120, LookbackCount: 2})).Options())
	})
}

func (s *DetectorSuite) TestSelect() {
	s.Run("missing collaborator selects disabled variant", func() {
		d, err := Select(nil, s.locator)
		s.Require().NoError(err)
		s.IsType(Disabled{}, d)

		d, err = Select(s.log, nil)
		s.Require().NoError(err)
		s.IsType(Disabled{}, d)
	})

	s.Run("disabled never flags", func() {
		s.log.records = []*models.Record{s.record("r1", s.now, pt(paris))}
		d := Disabled{}
		s.False(d.IsImpossibleTravel(s.ctx, "user-1"))
		a := d.Evaluate(s.ctx, "user-1")
		s.Equal(ReasonDisabled, a.Reason)
		s.Zero(s.log.calls)
	})

	s.Run("configured collaborators select the real detector", func() {
		d, err := Select(s.log, s.locator)
		s.Require().NoError(err)
		s.IsType(&Service{}, d)
	})

	s.Run("invalid options still surface", func() {
		_, err := Select(s.log, s.locator, WithLookbackCount(9))
		s.Error(err)
	})
}
