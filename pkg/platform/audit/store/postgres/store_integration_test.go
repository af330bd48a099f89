//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "signinguard/pkg/platform/audit"
	"signinguard/pkg/platform/audit/store/postgres"
	"signinguard/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *AuditStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		ID:        "evt-1",
		Timestamp: base,
		SubjectID: "user-1",
		Action:    string(audit.EventSignInRecorded),
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		ID:        "evt-2",
		Timestamp: base.Add(time.Minute),
		SubjectID: "user-1",
		Action:    string(audit.EventImpossibleTravelDetected),
		Severity:  audit.SeverityWarning,
		Details:   map[string]string{"speed_kmh": "4784.7"},
	}))

	events, err := s.store.ListBySubject(ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("evt-2", events[0].ID)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal("4784.7", events[0].Details["speed_kmh"])
	s.Equal(audit.CategoryOperations, events[1].Category)
}

func (s *AuditStoreSuite) TestReplayIsIgnored() {
	ctx := context.Background()
	event := audit.Event{ID: "evt-1", Timestamp: time.Now(), SubjectID: "user-1", Action: "x"}
	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.ListBySubject(ctx, "user-1")
	s.Require().NoError(err)
	s.Len(events, 1)
}
