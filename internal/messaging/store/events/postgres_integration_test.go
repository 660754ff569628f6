//go:build integration

package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"courier/internal/messaging/models"
	"courier/internal/messaging/store/events"
	"courier/pkg/platform/tx"
	"courier/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *events.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = events.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestInsertAssignsSerialIDs() {
	ctx := context.Background()
	messageID := uuid.New()
	base := time.Now().UTC().Truncate(time.Millisecond)

	first, err := s.store.Insert(ctx, models.Event{
		Status: models.StatusSuccessful, Key: models.KeyMessageCreate,
		MessageID: messageID, Data: models.EventData{"origin": "api"},
		InsertedAt: base,
	})
	s.Require().NoError(err)

	second, err := s.store.Insert(ctx, models.Event{
		Status: models.StatusPending, Key: models.KeyMessageDelivery,
		MessageID: messageID, InsertedAt: base.Add(time.Millisecond),
	})
	s.Require().NoError(err)
	s.Greater(second, first)
}

func (s *PostgresStoreSuite) TestListByMessageAscendingAndFiltered() {
	ctx := context.Background()
	messageID := uuid.New()
	other := uuid.New()
	base := time.Now().UTC().Truncate(time.Millisecond)

	keys := []models.EventKey{models.KeyMessageCreate, models.KeyMessageDelivery, models.KeyEmailDelivery}
	for i, key := range keys {
		_, err := s.store.Insert(ctx, models.Event{
			Status: models.StatusSuccessful, Key: key, MessageID: messageID,
			InsertedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
		s.Require().NoError(err)
	}
	_, err := s.store.Insert(ctx, models.Event{
		Status: models.StatusSuccessful, Key: models.KeyMessageCreate,
		MessageID: other, InsertedAt: base,
	})
	s.Require().NoError(err)

	rows, err := s.store.ListByMessage(ctx, messageID, time.Time{})
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	for i, key := range keys {
		s.Equal(key, rows[i].Key)
	}

	// Strictly newer than the first row: the boundary row is excluded.
	rows, err = s.store.ListByMessage(ctx, messageID, base)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(models.KeyMessageDelivery, rows[0].Key)
}

func (s *PostgresStoreSuite) TestListByMessageDesc() {
	ctx := context.Background()
	messageID := uuid.New()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, key := range []models.EventKey{models.KeyMessageCreate, models.KeyMessageDelivery} {
		_, err := s.store.Insert(ctx, models.Event{
			Status: models.StatusSuccessful, Key: key, MessageID: messageID,
			InsertedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
		s.Require().NoError(err)
	}

	rows, err := s.store.ListByMessageDesc(ctx, messageID)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(models.KeyMessageDelivery, rows[0].Key)
	s.Equal(models.KeyMessageCreate, rows[1].Key)
}

func (s *PostgresStoreSuite) TestInsertJoinsContextTransaction() {
	ctx := context.Background()
	messageID := uuid.New()
	event := models.Event{
		Status: models.StatusSuccessful, Key: models.KeyMessageOptionSeen,
		MessageID: messageID, InsertedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	abort := errors.New("force rollback")
	err := tx.Run(ctx, s.postgres.DB, func(txCtx context.Context) error {
		_, err := s.store.Insert(txCtx, event)
		s.Require().NoError(err)
		return abort
	})
	s.Require().ErrorIs(err, abort)

	rows, err := s.store.ListByMessage(ctx, messageID, time.Time{})
	s.Require().NoError(err)
	s.Empty(rows, "rolled-back insert must not be visible")

	s.Require().NoError(tx.Run(ctx, s.postgres.DB, func(txCtx context.Context) error {
		_, err := s.store.Insert(txCtx, event)
		return err
	}))

	rows, err = s.store.ListByMessage(ctx, messageID, time.Time{})
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *PostgresStoreSuite) TestDataRoundTrip() {
	ctx := context.Background()
	messageID := uuid.New()

	_, err := s.store.Insert(ctx, models.Event{
		Status: models.StatusFailed, Key: models.KeyEmailDelivery, MessageID: messageID,
		Data:       models.EventData{"reason": models.ReasonNoEmail},
		InsertedAt: time.Now().UTC().Truncate(time.Millisecond),
	})
	s.Require().NoError(err)

	rows, err := s.store.ListByMessage(ctx, messageID, time.Time{})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(models.ReasonNoEmail, rows[0].Data["reason"])
}
