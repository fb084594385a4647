package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokewatch/internal/poke"
	"pokewatch/internal/quota"
	"pokewatch/internal/reminder"
	"pokewatch/internal/schedule"
	"pokewatch/internal/xclient"
)

var nine = time.Date(2025, 3, 14, 9, 0, 10, 0, time.UTC)

type fakeX struct {
	count      int
	countsCode int
}

func (f *fakeX) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/users/by/username/ghost"):
		w.WriteHeader(http.StatusNotFound)
	case strings.HasPrefix(r.URL.Path, "/users/by/username/"):
		_, _ = w.Write([]byte(`{"data":{"id":"42","username":"alice"}}`))
	case r.URL.Path == "/tweets/counts/recent":
		if f.countsCode != 0 {
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(f.countsCode)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]int{{"tweet_count": f.count}}})
	case r.URL.Path == "/users/42/tweets":
		_, _ = w.Write([]byte(`{"data":[{"id":"1","text":"hi","public_metrics":{"like_count":2}}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fakePoke struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakePoke) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct{ Message string }
	_ = json.NewDecoder(r.Body).Decode(&body)
	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	f.mu.Lock()
	f.sent = append(f.sent, body.Message)
	f.mu.Unlock()
	_, _ = w.Write([]byte(`{"ok":true}`))
}

type fixture struct {
	svc  *Service
	x    *fakeX
	poke *fakePoke
	reg  *reminder.Registry
}

func newFixture(t *testing.T, xToken, pokeKey string) *fixture {
	t.Helper()
	f := &fixture{x: &fakeX{}, poke: &fakePoke{}}
	xs := httptest.NewServer(f.x)
	ps := httptest.NewServer(f.poke)
	t.Cleanup(xs.Close)
	t.Cleanup(ps.Close)

	log := zerolog.Nop()
	xc := xclient.NewHTTPClient(xToken, xclient.Options{BaseURL: xs.URL, RPS: 1000, Burst: 100, Logger: log,
		Quota: quota.NewTracker(quota.Config{Limit: 100}, log)})
	pc := poke.NewClient(pokeKey, poke.Options{BaseURL: ps.URL, RPS: 1000, Burst: 100, Logger: log})
	f.reg = reminder.NewRegistry(nil, log)
	chk := reminder.NewChecker(f.reg, xc, log, reminder.WithSender(pc), reminder.WithLocation(time.UTC))
	f.svc = NewService(Deps{
		X: xc, Poke: pc, Registry: f.reg, Checker: chk,
		Info: Info{Name: "pokewatch", Version: "test", Environment: "test"},
		Log:  log,
		Now:  func() time.Time { return nine },
	})
	return f
}

func TestTweetCount(t *testing.T) {
	f := newFixture(t, "tok", "key")
	f.x.count = 1
	r := f.svc.TweetCount(context.Background(), "@Alice")
	require.True(t, r.Success, "%+v", r.Error)
	assert.Equal(t, "alice", r.Data.Username)
	assert.Equal(t, 1, r.Data.Count)
	assert.Equal(t, "single-post", r.Data.Tier)
	assert.Contains(t, r.Data.Report, "API calls used: 2/100")
}

func TestTweetCountFailures(t *testing.T) {
	f := newFixture(t, "tok", "key")

	r := f.svc.TweetCount(context.Background(), "not a handle!")
	require.NotNil(t, r.Error)
	assert.Equal(t, KindValidation, r.Error.Kind)

	r = f.svc.TweetCount(context.Background(), "ghost")
	require.NotNil(t, r.Error)
	assert.Equal(t, KindNotFound, r.Error.Kind)

	f.x.countsCode = http.StatusTooManyRequests
	r = f.svc.TweetCount(context.Background(), "alice")
	require.NotNil(t, r.Error)
	assert.Equal(t, KindRateLimited, r.Error.Kind)
	assert.Equal(t, 60, r.Error.RetryAfterSeconds)

	f.x.countsCode = http.StatusInternalServerError
	r = f.svc.TweetCount(context.Background(), "alice")
	require.NotNil(t, r.Error)
	assert.Equal(t, KindProvider, r.Error.Kind)
	assert.Equal(t, http.StatusInternalServerError, r.Error.StatusCode)
}

func TestMissingCredentialsAreConfigurationFailures(t *testing.T) {
	f := newFixture(t, "", "")
	ctx := context.Background()

	assert.Equal(t, KindConfiguration, f.svc.TweetCount(ctx, "alice").Error.Kind)
	assert.Equal(t, KindConfiguration, f.svc.TwitterMetrics(ctx, "alice").Error.Kind)
	assert.Equal(t, KindConfiguration, f.svc.SendPokeMessage(ctx, "hi").Error.Kind)
	assert.Equal(t, KindConfiguration, f.svc.CheckReminders(ctx).Error.Kind)

	st := f.svc.PokeStatus(ctx)
	assert.True(t, st.Success)
	assert.Equal(t, "not_configured", st.Data.ConnectionStatus)

	info := f.svc.ServerInfo()
	assert.False(t, info.XConfigured)
	assert.False(t, info.PokeConfigured)
	assert.Len(t, info.AvailableTools, 15)
}

func TestPokeTools(t *testing.T) {
	f := newFixture(t, "tok", "key")
	ctx := context.Background()

	r := f.svc.SendPokeMessage(ctx, "hello")
	require.True(t, r.Success)
	assert.Equal(t, true, r.Data["ok"])

	n := f.svc.SendNotification(ctx, "Deploy", "done", true)
	require.True(t, n.Success)
	assert.True(t, strings.HasPrefix(n.Data.FormattedMessage, "🚨 URGENT: Deploy"))

	b := f.svc.SendBulk(ctx, []string{"a", "b"})
	require.True(t, b.Success)
	assert.Equal(t, 2, b.Data.Sent)

	assert.Equal(t, KindValidation, f.svc.SendBulk(ctx, nil).Error.Kind)

	c := f.svc.TestPokeConnection(ctx)
	assert.True(t, c.Data.Connected)

	st := f.svc.PokeStatus(ctx)
	assert.Equal(t, "connected", st.Data.ConnectionStatus)

	f.poke.fail = true
	r = f.svc.SendPokeMessage(ctx, "hello")
	require.NotNil(t, r.Error)
	assert.Equal(t, KindDelivery, r.Error.Kind)
	b = f.svc.SendBulk(ctx, []string{"a"})
	assert.False(t, b.Success)
	assert.Equal(t, 1, b.Data.Failed)
}

func TestReminderTools(t *testing.T) {
	f := newFixture(t, "tok", "key")
	ctx := context.Background()

	bad := f.svc.SetupReminder(ctx, "alice", "9am", 1, "")
	require.NotNil(t, bad.Error)
	assert.Equal(t, KindValidation, bad.Error.Kind)

	r := f.svc.SetupReminder(ctx, "alice", "09:00", 1, "")
	require.True(t, r.Success)
	assert.Equal(t, "alice@09:00", r.Data.ID())

	rep := f.svc.CheckReminders(ctx)
	require.True(t, rep.Success)
	require.Len(t, rep.Data.Results, 1)
	assert.True(t, rep.Data.Results[0].Sent)
	assert.Equal(t, []string{r.Data.Message}, f.poke.sent)

	l := f.svc.ListReminders(ctx)
	assert.Equal(t, 1, l.Data.Total)
	assert.Equal(t, 1, l.Data.Active)

	d := f.svc.DisableReminder(ctx, "alice@09:00")
	require.True(t, d.Success)
	assert.False(t, d.Data.Active)

	missing := f.svc.DisableReminder(ctx, "bob@09:00")
	require.NotNil(t, missing.Error)
	assert.Equal(t, KindNotFound, missing.Error.Kind)

	l = f.svc.ListReminders(ctx)
	assert.Equal(t, 1, l.Data.Total)
	assert.Equal(t, 0, l.Data.Active)
}

func TestDailyReportTools(t *testing.T) {
	f := newFixture(t, "tok", "key")
	ctx := context.Background()

	m := f.svc.TwitterMetrics(ctx, "alice")
	require.True(t, m.Success)
	assert.Equal(t, 1, m.Data.TweetCount)

	r := f.svc.SendDailyReport(ctx, "alice")
	require.True(t, r.Success)
	require.Len(t, f.poke.sent, 1)
	assert.Contains(t, f.poke.sent[0], "Daily Twitter Report")
}

func TestSetupAutomation(t *testing.T) {
	f := newFixture(t, "tok", "key")
	ctx := context.Background()

	r := f.svc.SetupAutomation(ctx, "alice", 21)
	require.True(t, r.Success)
	assert.False(t, r.Data.Scheduled)
	assert.NotEmpty(t, r.Data.NextSteps)
	assert.Equal(t, "21:00", r.Data.DailyTime)

	assert.Equal(t, KindValidation, f.svc.SetupAutomation(ctx, "alice", 24).Error.Kind)

	d := schedule.New(time.UTC, time.Second, zerolog.Nop())
	d.Start(ctx)
	defer d.Stop()
	f.svc.d.Scheduler = d
	r = f.svc.SetupAutomation(ctx, "alice", 21)
	require.True(t, r.Success)
	assert.True(t, r.Data.Scheduled)
	assert.Equal(t, time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC), r.Data.NextRun)
	require.Len(t, d.Entries(), 1)
	assert.Equal(t, "report:alice", d.Entries()[0].Name)
}

func call(t *testing.T, s *Service, name string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	for _, e := range s.definitions() {
		if e.def.Name != name {
			continue
		}
		var req mcp.CallToolRequest
		req.Params.Name = name
		req.Params.Arguments = args
		v, success := e.handle(context.Background(), req)
		res, err := toolResult(v, success)
		require.NoError(t, err)
		out := map[string]any{}
		if res.StructuredContent != nil {
			b, err := json.Marshal(res.StructuredContent)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(b, &out))
		}
		return res, out
	}
	t.Fatalf("no tool %s", name)
	return nil, nil
}

func TestToolAdapters(t *testing.T) {
	f := newFixture(t, "tok", "key")

	res, out := call(t, f.svc, "setup_tweet_reminder", map[string]any{"username": "alice", "time_of_day": "25:00"})
	assert.True(t, res.IsError)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "validation", out["error"].(map[string]any)["kind"])

	res, out = call(t, f.svc, "setup_tweet_reminder", map[string]any{"username": "alice", "time_of_day": "09:00", "min_required_count": 2})
	assert.False(t, res.IsError)
	assert.Equal(t, "alice@09:00", out["data"].(map[string]any)["id"])

	res, _ = call(t, f.svc, "get_tweet_count", map[string]any{})
	assert.True(t, res.IsError)

	res, _ = call(t, f.svc, "greet", map[string]any{"name": "Ada"})
	require.Len(t, res.Content, 1)
	tc, isText := res.Content[0].(mcp.TextContent)
	require.True(t, isText)
	assert.Equal(t, "Hello, Ada! Welcome to the pokewatch!", tc.Text)
}

func TestNamesMatchDefinitions(t *testing.T) {
	assert.Equal(t, []string{
		"greet", "get_server_info", "send_poke_message", "send_bulk_poke_messages",
		"send_poke_notification", "test_poke_connection", "get_poke_status",
		"get_twitter_metrics", "send_twitter_daily_report_tool", "setup_twitter_automation",
		"get_tweet_count", "setup_tweet_reminder", "list_tweet_reminders",
		"disable_tweet_reminder", "check_tweet_reminders",
	}, Names())
}
