package reminder

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokewatch/internal/model"
)

func newRegistry() *Registry { return NewRegistry(nil, zerolog.Nop()) }

func TestRegisterAcceptsEveryValidTime(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	for h := 0; h < 24; h++ {
		for m := 0; m < 60; m++ {
			tod := fmt.Sprintf("%02d:%02d", h, m)
			_, err := r.Register(ctx, "alice", tod, 1, "")
			require.NoError(t, err, tod)
		}
	}
	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 24*60)
}

func TestRegisterRejectsBadTimes(t *testing.T) {
	r := newRegistry()
	for _, tod := range []string{"", "9:00", "24:00", "23:60", "09:0", "09-00", "0900", " 09:00", "09:00 ", "ab:cd", "09:00:00", "-1:00"} {
		_, err := r.Register(context.Background(), "alice", tod, 1, "")
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve, "%q", tod)
		assert.Equal(t, "time_of_day", ve.Field)
	}
	all, _ := r.List(context.Background())
	assert.Empty(t, all)
}

func TestRegisterValidatesUsernameAndMin(t *testing.T) {
	r := newRegistry()
	var ve *model.ValidationError

	_, err := r.Register(context.Background(), "  ", "09:00", 1, "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "username", ve.Field)

	_, err = r.Register(context.Background(), "alice", "09:00", -1, "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "min_required_count", ve.Field)
}

func TestRegisterDefaults(t *testing.T) {
	r := newRegistry()
	c, err := r.Register(context.Background(), "@Alice", "09:00", 0, "")
	require.NoError(t, err)
	assert.Equal(t, Key{Username: "alice", TimeOfDay: "09:00"}, c.Key)
	assert.Equal(t, "alice@09:00", c.ID())
	assert.Equal(t, DefaultMinRequired, c.MinRequiredCount)
	assert.Equal(t, DefaultMessage("alice", 1), c.Message)
	assert.True(t, c.Active)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestRegisterSameKeyOverwrites(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	_, err := r.Register(ctx, "alice", "09:00", 1, "first")
	require.NoError(t, err)
	_, err = r.Register(ctx, "ALICE", "09:00", 3, "second")
	require.NoError(t, err)

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "second", all[0].Message)
	assert.Equal(t, 3, all[0].MinRequiredCount)
	assert.True(t, all[0].Active)
}

func TestDisable(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	c, err := r.Register(ctx, "alice", "09:00", 1, "")
	require.NoError(t, err)

	require.NoError(t, r.Disable(ctx, c.Key))
	got, ok, err := r.Get(ctx, c.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Active)

	all, _ := r.List(ctx)
	assert.Len(t, all, 1)

	err = r.Disable(ctx, Key{Username: "bob", TimeOfDay: "10:00"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrder(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	for _, in := range [][2]string{{"carol", "10:00"}, {"bob", "09:00"}, {"alice", "10:00"}} {
		_, err := r.Register(ctx, in[0], in[1], 1, "")
		require.NoError(t, err)
	}
	all, err := r.List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, c := range all {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []string{"bob@09:00", "alice@10:00", "carol@10:00"}, ids)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("alice@09:00")
	require.NoError(t, err)
	assert.Equal(t, Key{Username: "alice", TimeOfDay: "09:00"}, k)

	k, err = ParseKey("@Alice@21:30")
	require.NoError(t, err)
	assert.Equal(t, "alice@21:30", k.ID())

	for _, bad := range []string{"alice", "alice@25:00", "@09:00", ""} {
		_, err := ParseKey(bad)
		var ve *model.ValidationError
		assert.ErrorAs(t, err, &ve, bad)
	}
}

func TestConfigJSONIncludesID(t *testing.T) {
	c := Config{Key: Key{Username: "alice", TimeOfDay: "09:00"}, MinRequiredCount: 1, Active: true}
	b, err := c.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id":"alice@09:00"`)
	assert.Contains(t, string(b), `"time_of_day":"09:00"`)
	assert.Contains(t, string(b), `"active":true`)
}
