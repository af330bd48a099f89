package store_test

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/suite"

	"signinguard/internal/geo"
	"signinguard/internal/signin/models"
	"signinguard/internal/signin/store"
)

// storeContract is the behaviour every sign-in store shares. Concrete suites
// embed it and set s.store in SetupTest.
type storeContract struct {
	suite.Suite
	store store.Store
	base  time.Time
}

func (s *storeContract) record(id, subject string, offset time.Duration, t models.SignInType, ok bool) *models.Record {
	return &models.Record{
		ID:          id,
		SubjectID:   subject,
		Type:        t,
		Succeeded:   ok,
		CreatedAt:   s.base.Add(offset),
		Coordinates: &geo.Point{Latitude: 37.98, Longitude: 23.73},
		IPAddress:   "203.0.113.7",
		CountryCode: "GR",
		City:        "Athens",
		Device:      "Chrome on macOS",
	}
}

func (s *storeContract) seed(records ...*models.Record) {
	for _, r := range records {
		s.Require().NoError(s.store.Append(context.Background(), r))
	}
}

func ids(rs *models.ResultSet) []string {
	out := make([]string, 0, len(rs.Records))
	for _, r := range rs.Records {
		out = append(out, r.ID)
	}
	return out
}

func (s *storeContract) TestAppendRejectsInvalidRecords() {
	ctx := context.Background()
	bad := []*models.Record{
		nil,
		{SubjectID: "u", Type: models.SignInInteractive, CreatedAt: s.base},
		{ID: "x", Type: models.SignInInteractive, CreatedAt: s.base},
		{ID: "x", SubjectID: "u", Type: "kiosk", CreatedAt: s.base},
		{ID: "x", SubjectID: "u", Type: models.SignInInteractive},
		{ID: "x", SubjectID: "u", Type: models.SignInInteractive, CreatedAt: s.base, Coordinates: &geo.Point{Latitude: 91}},
	}
	for i, r := range bad {
		s.ErrorIs(s.store.Append(ctx, r), store.ErrInvalidRecord, fmt.Sprintf("case %d", i))
	}
}

func (s *storeContract) TestListIsNewestFirst() {
	s.seed(
		s.record("a", "user-1", -3*time.Hour, models.SignInInteractive, true),
		s.record("c", "user-1", -1*time.Hour, models.SignInInteractive, true),
		s.record("b", "user-1", -2*time.Hour, models.SignInInteractive, true),
		s.record("z", "user-2", -30*time.Minute, models.SignInInteractive, true),
	)

	rs, err := s.store.List(context.Background(), models.ListFilter{SubjectID: "user-1"}, models.Page{Size: 10})
	s.Require().NoError(err)
	s.Equal([]string{"c", "b", "a"}, ids(rs))
	s.False(rs.HasMore)

	got := rs.Records[0]
	s.Equal("user-1", got.SubjectID)
	s.True(got.CreatedAt.Equal(s.base.Add(-time.Hour)))
	s.Require().NotNil(got.Coordinates)
	s.InDelta(37.98, got.Coordinates.Latitude, 1e-9)
	s.Equal("GR", got.CountryCode)
	s.Equal("Chrome on macOS", got.Device)
}

func (s *storeContract) TestListFiltersForDetector() {
	s.seed(
		s.record("machine", "user-1", -1*time.Minute, models.SignInMachine, true),
		s.record("future", "user-1", time.Minute, models.SignInInteractive, true),
		s.record("latest", "user-1", -10*time.Minute, models.SignInInteractive, true),
		s.record("older", "user-1", -20*time.Minute, models.SignInInteractive, true),
		s.record("oldest", "user-1", -30*time.Minute, models.SignInInteractive, true),
	)
	filter := models.ListFilter{
		SubjectID:     "user-1",
		Types:         []models.SignInType{models.SignInInteractive},
		SucceededOnly: true,
		Before:        s.base,
	}

	s.Run("single lookback", func() {
		rs, err := s.store.List(context.Background(), filter, models.Page{Size: 1})
		s.Require().NoError(err)
		s.Equal([]string{"latest"}, ids(rs))
		s.True(rs.HasMore)
	})

	s.Run("two lookback", func() {
		rs, err := s.store.List(context.Background(), filter, models.Page{Size: 2})
		s.Require().NoError(err)
		s.Equal([]string{"latest", "older"}, ids(rs))
	})

	s.Run("before is inclusive", func() {
		f := filter
		f.Before = s.base.Add(-10 * time.Minute)
		rs, err := s.store.List(context.Background(), f, models.Page{Size: 1})
		s.Require().NoError(err)
		s.Equal([]string{"latest"}, ids(rs))
	})

	s.Run("type filter", func() {
		f := filter
		f.Types = []models.SignInType{models.SignInMachine}
		rs, err := s.store.List(context.Background(), f, models.Page{Size: 5})
		s.Require().NoError(err)
		s.Equal([]string{"machine"}, ids(rs))
	})
}

func (s *storeContract) TestListPaging() {
	for i := range 5 {
		s.seed(s.record(fmt.Sprintf("r%d", i), "user-1", time.Duration(i)*time.Minute, models.SignInInteractive, true))
	}
	ctx := context.Background()
	filter := models.ListFilter{SubjectID: "user-1"}

	first, err := s.store.List(ctx, filter, models.Page{Size: 2})
	s.Require().NoError(err)
	s.Equal([]string{"r4", "r3"}, ids(first))
	s.True(first.HasMore)

	last, err := s.store.List(ctx, filter, models.Page{Size: 2, Offset: 4})
	s.Require().NoError(err)
	s.Equal([]string{"r0"}, ids(last))
	s.False(last.HasMore)

	past, err := s.store.List(ctx, filter, models.Page{Size: 2, Offset: 10})
	s.Require().NoError(err)
	s.Empty(past.Records)
}

func (s *storeContract) TestListUnknownSubject() {
	rs, err := s.store.List(context.Background(), models.ListFilter{SubjectID: "nobody"}, models.Page{Size: 1})
	s.Require().NoError(err)
	s.Empty(rs.Records)
	s.False(rs.HasMore)
}

func (s *storeContract) TestRecordWithoutCoordinates() {
	r := s.record("nocoords", "user-1", -time.Minute, models.SignInInteractive, true)
	r.Coordinates = nil
	s.seed(r)

	rs, err := s.store.List(context.Background(), models.ListFilter{SubjectID: "user-1"}, models.Page{Size: 1})
	s.Require().NoError(err)
	s.Require().Len(rs.Records, 1)
	s.Nil(rs.Records[0].Coordinates)
}
