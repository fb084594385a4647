package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokewatch/internal/quota"
	"pokewatch/internal/reminder"
)

var (
	_ reminder.Store   = (*DB)(nil)
	_ reminder.Journal = (*DB)(nil)
	_ quota.Recorder   = (*DB)(nil)
)

func openMem(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRemindersRoundTripThroughRegistry(t *testing.T) {
	db := openMem(t)
	ctx := context.Background()
	reg := reminder.NewRegistry(db, zerolog.Nop())

	_, err := reg.Register(ctx, "alice", "09:00", 1, "first")
	require.NoError(t, err)
	_, err = reg.Register(ctx, "alice", "09:00", 2, "second")
	require.NoError(t, err)
	c, err := reg.Register(ctx, "bob", "08:30", 0, "")
	require.NoError(t, err)
	require.NoError(t, reg.Disable(ctx, c.Key))

	// A second registry over the same DB sees the same state.
	again := reminder.NewRegistry(db, zerolog.Nop())
	all, err := again.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "bob@08:30", all[0].ID())
	assert.False(t, all[0].Active)
	assert.Equal(t, "alice@09:00", all[1].ID())
	assert.Equal(t, "second", all[1].Message)
	assert.Equal(t, 2, all[1].MinRequiredCount)
	assert.True(t, all[1].Active)

	_, ok, err := db.Get(ctx, reminder.Key{Username: "carol", TimeOfDay: "09:00"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCallLedger(t *testing.T) {
	db := openMem(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tr := quota.NewTracker(quota.Config{Limit: 10}, zerolog.Nop())
	tr.SetRecorder(db)
	_, err := tr.Record(ctx, "tweets/counts/recent")
	require.NoError(t, err)
	_, err = tr.Record(ctx, "users/by/username")
	require.NoError(t, err)
	require.NoError(t, db.RecordCall(ctx, now.Add(-48*time.Hour), "tweets/counts/recent"))

	n, err := db.CountCallsWithin(ctx, now.Add(-time.Hour), now.Add(time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = db.CountCallsWithin(ctx, now.Add(-72*time.Hour), now.Add(time.Hour), "tweets/counts/recent")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeliveryJournal(t *testing.T) {
	db := openMem(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	zero := 0

	require.NoError(t, db.RecordResult(ctx, "run-1", at, reminder.Result{ID: "alice@09:00", Count: &zero, Sent: true, Response: map[string]any{"ok": true}}))
	require.NoError(t, db.RecordResult(ctx, "run-1", at, reminder.Result{ID: "bob@09:00", Error: "boom"}))

	got, err := db.LoadDeliveries(ctx, at.Add(-time.Minute), at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice@09:00", got[0].ReminderID)
	assert.True(t, got[0].Sent)
	require.NotNil(t, got[0].Count)
	assert.Equal(t, 0, *got[0].Count)
	assert.Nil(t, got[1].Count)
	assert.Equal(t, "boom", got[1].Error)
	assert.Equal(t, "run-1", got[1].RunID)
}
