package quota

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct{ endpoints []string }

func (f *fakeRecorder) RecordCall(ctx context.Context, ts time.Time, endpoint string) error {
	f.endpoints = append(f.endpoints, endpoint)
	return nil
}

func TestTrackerCountsAndWarns(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(Config{Limit: 10}, zerolog.New(&buf))
	rec := &fakeRecorder{}
	tr.SetRecorder(rec)
	ctx := context.Background()

	for i := 1; i <= 8; i++ {
		n, err := tr.Record(ctx, "/x")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.NotContains(t, buf.String(), "nearly used")

	_, err := tr.Record(ctx, "/x")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "api quota nearly used")

	_, err = tr.Record(ctx, "/x")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "api quota reached")

	// Advisory mode never refuses.
	n, err := tr.Record(ctx, "/x")
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "11/10", tr.Usage())
	assert.Len(t, rec.endpoints, 11)
}

func TestTrackerEnforceRefusesPastLimit(t *testing.T) {
	tr := NewTracker(Config{Limit: 2, Enforce: true}, zerolog.Nop())
	ctx := context.Background()
	_, err := tr.Record(ctx, "/x")
	require.NoError(t, err)
	_, err = tr.Record(ctx, "/x")
	require.NoError(t, err)

	n, err := tr.Record(ctx, "/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, tr.Used())
}

func TestTrackerDefaults(t *testing.T) {
	tr := NewTracker(Config{}, zerolog.Nop())
	assert.Equal(t, DefaultLimit, tr.Limit())
	assert.Equal(t, 90, tr.warnAt)
	assert.True(t, strings.HasSuffix(tr.Usage(), "/100"))
}
