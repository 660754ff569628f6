package eventlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/messaging/models"
	"courier/internal/messaging/store/events"
)

type recordingSyncer struct {
	mu     sync.Mutex
	synced []uuid.UUID
	err    error
}

func (s *recordingSyncer) Sync(_ context.Context, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, messageID)
	return s.err
}

type failNthStore struct {
	inner  *events.MemoryStore
	calls  int
	failOn int
}

func (s *failNthStore) Insert(ctx context.Context, event models.Event) (int64, error) {
	s.calls++
	if s.calls == s.failOn {
		return 0, errors.New("simulated insert failure")
	}
	return s.inner.Insert(ctx, event)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestTimestampsStrictlyIncreaseWithFrozenClock(t *testing.T) {
	store := events.NewMemory()
	syncer := &recordingSyncer{}
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w := NewWriter(store, syncer, newTestLogger(&bytes.Buffer{}),
		WithClock(func() time.Time { return frozen }))

	messageID := uuid.New()
	for range 5 {
		w.Log(context.Background(), models.StatusPending, models.KeyMessageDelivery,
			Entry{MessageID: messageID})
	}
	require.NoError(t, w.Commit(context.Background()))

	persisted := store.All()
	require.Len(t, persisted, 5)
	for i := 1; i < len(persisted); i++ {
		assert.True(t, persisted[i].InsertedAt.After(persisted[i-1].InsertedAt),
			"timestamps must strictly increase even when the clock does not advance")
	}
}

func TestTimestampsSurviveClockGoingBackwards(t *testing.T) {
	store := events.NewMemory()
	syncer := &recordingSyncer{}

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWriter(store, syncer, newTestLogger(&bytes.Buffer{}),
		WithClock(func() time.Time { return current }))

	messageID := uuid.New()
	w.Log(context.Background(), models.StatusPending, models.KeyMessageCreate, Entry{MessageID: messageID})

	current = current.Add(-2 * time.Second)
	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageCreate, Entry{MessageID: messageID})

	require.NoError(t, w.Commit(context.Background()))

	persisted := store.All()
	require.Len(t, persisted, 2)
	assert.True(t, persisted[1].InsertedAt.After(persisted[0].InsertedAt))
}

func TestLogWithNoEventsWarnsAndBuffersNothing(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(events.NewMemory(), &recordingSyncer{}, newTestLogger(&buf))

	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageCreate)

	assert.Zero(t, w.Pending())
	assert.Contains(t, buf.String(), "no events")
}

func TestCommitToleratesRowFailure(t *testing.T) {
	store := &failNthStore{inner: events.NewMemory(), failOn: 2}
	syncer := &recordingSyncer{}
	w := NewWriter(store, syncer, newTestLogger(&bytes.Buffer{}))

	messageID := uuid.New()
	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageCreate,
		Entry{MessageID: messageID, Data: models.EventData{"step": 1}})
	w.Log(context.Background(), models.StatusPending, models.KeyMessageDelivery,
		Entry{MessageID: messageID, Data: models.EventData{"step": 2}})
	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageDelivery,
		Entry{MessageID: messageID, Data: models.EventData{"step": 3}})

	require.NoError(t, w.Commit(context.Background()))

	persisted := store.inner.All()
	require.Len(t, persisted, 2, "rows 1 and 3 persist despite row 2 failing")
	assert.Equal(t, models.EventData{"step": 1}, persisted[0].Data)
	assert.Equal(t, models.EventData{"step": 3}, persisted[1].Data)

	require.Len(t, syncer.synced, 1, "projector still runs for the touched message")
	assert.Equal(t, messageID, syncer.synced[0])
}

func TestCommitFansOutPerDistinctMessage(t *testing.T) {
	store := events.NewMemory()
	syncer := &recordingSyncer{}
	w := NewWriter(store, syncer, newTestLogger(&bytes.Buffer{}))

	first, second := uuid.New(), uuid.New()
	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageCreate,
		Entry{MessageID: first}, Entry{MessageID: second}, Entry{MessageID: first})

	require.NoError(t, w.Commit(context.Background()))

	assert.Len(t, syncer.synced, 2, "one sync per distinct message id")
	assert.ElementsMatch(t, []uuid.UUID{first, second}, syncer.synced)
}

func TestCommitResetsBufferAndCursor(t *testing.T) {
	store := events.NewMemory()
	w := NewWriter(store, &recordingSyncer{}, newTestLogger(&bytes.Buffer{}))

	messageID := uuid.New()
	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageCreate, Entry{MessageID: messageID})
	require.NoError(t, w.Commit(context.Background()))
	assert.Zero(t, w.Pending())
	assert.True(t, w.lastInsertedAt.IsZero())

	// A second commit with an empty buffer is a no-op.
	require.NoError(t, w.Commit(context.Background()))
	assert.Len(t, store.All(), 1)
}

type selectiveSyncer struct {
	recordingSyncer
	failFor uuid.UUID
}

func (s *selectiveSyncer) Sync(ctx context.Context, messageID uuid.UUID) error {
	_ = s.recordingSyncer.Sync(ctx, messageID)
	if messageID == s.failFor {
		return errors.New("projection unavailable")
	}
	return nil
}

func TestProjectionFailureDoesNotSkipSiblingSyncs(t *testing.T) {
	store := events.NewMemory()
	failing, healthy := uuid.New(), uuid.New()
	syncer := &selectiveSyncer{failFor: failing}
	w := NewWriter(store, syncer, newTestLogger(&bytes.Buffer{}))

	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageCreate,
		Entry{MessageID: failing}, Entry{MessageID: healthy})

	err := w.Commit(context.Background())
	require.Error(t, err)
	assert.ElementsMatch(t, []uuid.UUID{failing, healthy}, syncer.synced,
		"one failing projection must not leave another message's summary stale")
}

func TestCommitInFlushesInsideTransactionScope(t *testing.T) {
	store := events.NewMemory()
	syncer := &recordingSyncer{}
	w := NewWriter(store, syncer, newTestLogger(&bytes.Buffer{}))

	messageID := uuid.New()
	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageOptionSeen,
		Entry{MessageID: messageID})

	var rowsInScope, syncsInScope int
	run := func(ctx context.Context, fn func(context.Context) error) error {
		if err := fn(ctx); err != nil {
			return err
		}
		rowsInScope = len(store.All())
		syncsInScope = len(syncer.synced)
		return nil
	}

	require.NoError(t, w.CommitIn(context.Background(), run, func(context.Context) error {
		return nil
	}))

	assert.Equal(t, 1, rowsInScope, "rows flush before the transaction closes")
	assert.Zero(t, syncsInScope, "projection waits for the transaction to commit")
	require.Len(t, syncer.synced, 1)
	assert.Equal(t, messageID, syncer.synced[0])
}

func TestCommitInKeepsBufferWhenTransactionAborts(t *testing.T) {
	store := events.NewMemory()
	w := NewWriter(store, &recordingSyncer{}, newTestLogger(&bytes.Buffer{}))

	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageOptionSeen,
		Entry{MessageID: uuid.New()})

	abort := errors.New("message not found")
	run := func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	}

	err := w.CommitIn(context.Background(), run, func(context.Context) error {
		return abort
	})
	require.ErrorIs(t, err, abort)
	assert.Empty(t, store.All(), "no rows flush when the unit of work fails")
	assert.Equal(t, 1, w.Pending())
}

func TestProjectionFailurePropagates(t *testing.T) {
	syncErr := errors.New("projection unavailable")
	w := NewWriter(events.NewMemory(), &recordingSyncer{err: syncErr}, newTestLogger(&bytes.Buffer{}))

	w.Log(context.Background(), models.StatusSuccessful, models.KeyMessageCreate, Entry{MessageID: uuid.New()})

	err := w.Commit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, syncErr)
}
