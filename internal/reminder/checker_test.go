package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokewatch/internal/model"
)

type stubCounts struct {
	counts map[string]int
	errs   map[string]error
	calls  []string
}

func (s *stubCounts) GetCountLast24h(_ context.Context, username string) (model.TweetCountResult, error) {
	s.calls = append(s.calls, username)
	if err := s.errs[username]; err != nil {
		return model.TweetCountResult{}, err
	}
	return model.TweetCountResult{Username: username, Count: s.counts[username], Period: model.PeriodLast24h}, nil
}

type stubSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *stubSender) SendMessage(_ context.Context, text string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, text)
	return map[string]any{"success": true}, nil
}

type memJournal struct {
	runs []string
	res  []Result
}

func (j *memJournal) RecordResult(_ context.Context, runID string, _ time.Time, r Result) error {
	j.runs = append(j.runs, runID)
	j.res = append(j.res, r)
	return nil
}

var nine = time.Date(2025, 3, 14, 9, 0, 30, 0, time.UTC)

func setup(t *testing.T, counts *stubCounts, opts ...CheckerOption) (*Registry, *Checker) {
	t.Helper()
	reg := newRegistry()
	opts = append([]CheckerOption{WithLocation(time.UTC)}, opts...)
	return reg, NewChecker(reg, counts, zerolog.Nop(), opts...)
}

func TestCheckDueFiresUnderGoal(t *testing.T) {
	counts := &stubCounts{counts: map[string]int{"alice": 0}}
	sender := &stubSender{}
	reg, chk := setup(t, counts, WithSender(sender))
	_, err := reg.Register(context.Background(), "alice", "09:00", 1, "")
	require.NoError(t, err)

	rep := chk.CheckDue(context.Background(), nine)
	require.Len(t, rep.Results, 1)
	r := rep.Results[0]
	assert.True(t, r.Sent)
	assert.Empty(t, r.Reason)
	assert.Empty(t, r.Error)
	require.NotNil(t, r.Count)
	assert.Equal(t, 0, *r.Count)
	assert.Equal(t, []string{DefaultMessage("alice", 1)}, sender.sent)
	assert.Equal(t, 1, rep.TotalEntries)
	assert.Equal(t, 1, rep.Checked)
	assert.Equal(t, 1, rep.Fired())
	assert.NotEmpty(t, rep.RunID)
}

func TestCheckDueCustomMessage(t *testing.T) {
	sender := &stubSender{}
	reg, chk := setup(t, &stubCounts{}, WithSender(sender))
	_, err := reg.Register(context.Background(), "alice", "09:00", 1, "go post something")
	require.NoError(t, err)

	chk.CheckDue(context.Background(), nine)
	assert.Equal(t, []string{"go post something"}, sender.sent)
}

func TestCheckDueGoalMet(t *testing.T) {
	sender := &stubSender{}
	reg, chk := setup(t, &stubCounts{counts: map[string]int{"alice": 2}}, WithSender(sender))
	_, err := reg.Register(context.Background(), "alice", "09:00", 1, "")
	require.NoError(t, err)

	rep := chk.CheckDue(context.Background(), nine)
	require.Len(t, rep.Results, 1)
	assert.False(t, rep.Results[0].Sent)
	assert.Equal(t, ReasonGoalMet, rep.Results[0].Reason)
	assert.Empty(t, sender.sent)
}

func TestCheckDueNoSender(t *testing.T) {
	reg, chk := setup(t, &stubCounts{})
	_, err := reg.Register(context.Background(), "alice", "09:00", 1, "")
	require.NoError(t, err)

	rep := chk.CheckDue(context.Background(), nine)
	require.Len(t, rep.Results, 1)
	assert.False(t, rep.Results[0].Sent)
	assert.Equal(t, ReasonNoSender, rep.Results[0].Reason)
	assert.False(t, chk.HasSender())
}

func TestCheckDueNoMatchingTime(t *testing.T) {
	counts := &stubCounts{}
	sender := &stubSender{}
	reg, chk := setup(t, counts, WithSender(sender))
	ctx := context.Background()
	for _, tod := range []string{"08:59", "09:01", "21:00"} {
		_, err := reg.Register(ctx, "alice", tod, 1, "")
		require.NoError(t, err)
	}

	rep := chk.CheckDue(ctx, nine)
	assert.Empty(t, rep.Results)
	assert.Empty(t, sender.sent)
	assert.Empty(t, counts.calls)
	assert.Equal(t, rep.TotalEntries, rep.Checked)
	assert.Equal(t, 3, rep.Checked)
}

func TestCheckDueSkipsInactive(t *testing.T) {
	counts := &stubCounts{}
	reg, chk := setup(t, counts, WithSender(&stubSender{}))
	c, err := reg.Register(context.Background(), "alice", "09:00", 1, "")
	require.NoError(t, err)
	require.NoError(t, reg.Disable(context.Background(), c.Key))

	rep := chk.CheckDue(context.Background(), nine)
	assert.Empty(t, rep.Results)
	assert.Empty(t, counts.calls)
	assert.Equal(t, 1, rep.Checked)
}

func TestCheckDueIsolatesFetchFailures(t *testing.T) {
	counts := &stubCounts{
		counts: map[string]int{"bob": 0},
		errs:   map[string]error{"alice": errors.New("boom")},
	}
	sender := &stubSender{}
	journal := &memJournal{}
	reg, chk := setup(t, counts, WithSender(sender), WithJournal(journal))
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		_, err := reg.Register(ctx, u, "09:00", 1, "hi "+u)
		require.NoError(t, err)
	}

	rep := chk.CheckDue(ctx, nine)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, 2, rep.TotalEntries)
	assert.Equal(t, 1, rep.Checked)

	byUser := map[string]Result{}
	for _, r := range rep.Results {
		byUser[r.Username] = r
	}
	assert.Equal(t, "boom", byUser["alice"].Error)
	assert.Nil(t, byUser["alice"].Count)
	assert.False(t, byUser["alice"].Sent)
	assert.True(t, byUser["bob"].Sent)
	assert.Equal(t, []string{"hi bob"}, sender.sent)

	require.Len(t, journal.res, 2)
	assert.Equal(t, []string{rep.RunID, rep.RunID}, journal.runs)
}

func TestCheckDueDeliveryFailure(t *testing.T) {
	reg, chk := setup(t, &stubCounts{}, WithSender(&stubSender{err: errors.New("poke down")}))
	_, err := reg.Register(context.Background(), "alice", "09:00", 1, "")
	require.NoError(t, err)

	rep := chk.CheckDue(context.Background(), nine)
	require.Len(t, rep.Results, 1)
	assert.False(t, rep.Results[0].Sent)
	assert.Equal(t, ReasonDeliveryFailed, rep.Results[0].Reason)
	assert.Equal(t, "poke down", rep.Results[0].Error)
	assert.Equal(t, 1, rep.Checked)
}

func TestCheckDueUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	counts := &stubCounts{}
	reg, chk := setup(t, counts, WithLocation(loc))
	_, err := reg.Register(context.Background(), "alice", "11:00", 1, "")
	require.NoError(t, err)

	rep := chk.CheckDue(context.Background(), nine)
	assert.Len(t, rep.Results, 1)
	assert.Equal(t, []string{"alice"}, counts.calls)
}
