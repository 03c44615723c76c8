//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "enrollment/pkg/platform/audit"
	"enrollment/pkg/platform/audit/store/postgres"
	"enrollment/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.DB)
	s.Require().NoError(s.store.Migrate(s.ctx))
	// Migrate is idempotent.
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func record(eventType audit.EventType, email string, userID *int64, at time.Time) audit.Record {
	return audit.NewRecord(audit.Event{
		EventType:  eventType,
		UserID:     userID,
		UserEmail:  email,
		Action:     "Carrera creada",
		Details:    "Carrera: Sistemas - Facultad: Ingeniería",
		Timestamp:  at,
		Status:     audit.StatusSuccess,
		EntityType: audit.EntityCareer,
		EntityID:   3,
	})
}

func (s *PostgresStoreSuite) TestAppendAndReadBack() {
	uid := int64(5)
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	saved, err := s.store.Append(s.ctx, record(audit.EventCareerCreated, "john@test.com", &uid, at))
	s.Require().NoError(err)
	s.Positive(saved.ID)

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	got := all[0]
	s.Equal(saved.ID, got.ID)
	s.Equal(audit.EventCareerCreated, got.EventType)
	s.Require().NotNil(got.UserID)
	s.Equal(uid, *got.UserID)
	s.Equal("Carrera: Sistemas - Facultad: Ingeniería", got.Details)
	s.True(at.Equal(got.Timestamp))
}

func (s *PostgresStoreSuite) TestNullUserIDForSystemEvents() {
	_, err := s.store.Append(s.ctx, record(audit.EventFacultyDeleted, audit.SystemActor, nil, time.Now().UTC()))
	s.Require().NoError(err)

	bySystem, err := s.store.ListByUserEmail(s.ctx, audit.SystemActor)
	s.Require().NoError(err)
	s.Require().Len(bySystem, 1)
	s.Nil(bySystem[0].UserID)
}

func (s *PostgresStoreSuite) TestLookups() {
	uid := int64(9)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range []audit.Record{
		record(audit.EventCareerCreated, "john@test.com", &uid, base),
		record(audit.EventCareerUpdated, "john@test.com", &uid, base.Add(time.Hour)),
		record(audit.EventCareerCreated, audit.SystemActor, nil, base.Add(72*time.Hour)),
	} {
		_, err := s.store.Append(s.ctx, r)
		s.Require().NoError(err, "append %d", i)
	}

	byType, err := s.store.ListByEventType(s.ctx, audit.EventCareerCreated)
	s.Require().NoError(err)
	s.Len(byType, 2)

	byUser, err := s.store.ListByUserID(s.ctx, uid)
	s.Require().NoError(err)
	s.Len(byUser, 2)

	inRange, err := s.store.ListByTimeRange(s.ctx, base, base.Add(time.Hour))
	s.Require().NoError(err)
	s.Len(inRange, 2, "both bounds are inclusive")

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Less(all[0].ID, all[1].ID)
	s.Less(all[1].ID, all[2].ID)
}

func (s *PostgresStoreSuite) TestConcurrentAppends() {
	const writers = 16
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Append(s.ctx, record(audit.EventCareerCreated, "john@test.com", nil, time.Now().UTC()))
			s.NoError(err)
		}()
	}
	wg.Wait()

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, writers)
}
