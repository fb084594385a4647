package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pokewatch/internal/jobs"
	"pokewatch/internal/model"
	"pokewatch/internal/poke"
	"pokewatch/internal/reminder"
	"pokewatch/internal/report"
	"pokewatch/internal/schedule"
	"pokewatch/internal/xclient"
)

// Info describes the running server.
type Info struct {
	Name        string `json:"server_name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// Deps are the collaborators built once at startup. Scheduler may be nil.
type Deps struct {
	X         *xclient.HTTPClient
	Poke      *poke.Client
	Registry  *reminder.Registry
	Checker   *reminder.Checker
	Scheduler *schedule.Driver
	Info      Info
	MaxTweets int
	Log       zerolog.Logger
	Now       func() time.Time
}

// Service implements every tool over Deps.
type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MaxTweets <= 0 {
		d.MaxTweets = 5
	}
	return &Service{d: d}
}

func (s *Service) now() time.Time { return s.d.Now() }

func (s *Service) requireX() error {
	if s.d.X == nil || !s.d.X.Configured() {
		return &Failure{Kind: KindConfiguration, Message: "X_BEARER_TOKEN environment variable not set"}
	}
	return nil
}

func (s *Service) requirePoke() error {
	if s.d.Poke == nil || !s.d.Poke.Configured() {
		return &Failure{Kind: KindConfiguration, Message: "POKE_API_KEY environment variable not set"}
	}
	return nil
}

// Greet returns a welcome line.
func (s *Service) Greet(name string) string {
	return fmt.Sprintf("Hello, %s! Welcome to the %s!", name, s.d.Info.Name)
}

type ServerInfo struct {
	Info
	AvailableTools []string `json:"available_tools"`
	XConfigured    bool     `json:"x_configured"`
	PokeConfigured bool     `json:"poke_configured"`
	APICallsUsed   string   `json:"api_calls_used,omitempty"`
}

func (s *Service) ServerInfo() ServerInfo {
	out := ServerInfo{
		Info:           s.d.Info,
		AvailableTools: Names(),
		XConfigured:    s.requireX() == nil,
		PokeConfigured: s.requirePoke() == nil,
	}
	if s.d.X != nil {
		out.APICallsUsed = s.d.X.Quota().Usage()
	}
	return out
}

// Poke operations.

func (s *Service) SendPokeMessage(ctx context.Context, message string) Result[map[string]any] {
	if err := s.requirePoke(); err != nil {
		return fail[map[string]any](err, "Failed to send message", s.now())
	}
	resp, err := s.d.Poke.SendMessage(ctx, message)
	if err != nil {
		return failDelivery[map[string]any](err, fmt.Sprintf("Failed to send message: %q", message), s.now())
	}
	return ok(resp, fmt.Sprintf("Message sent successfully: %q", message), s.now())
}

type BulkPayload struct {
	Total   int               `json:"total"`
	Sent    int               `json:"sent"`
	Failed  int               `json:"failed"`
	Results []poke.BulkResult `json:"results"`
}

// SendBulk succeeds when every message was delivered; partial results are
// always included.
func (s *Service) SendBulk(ctx context.Context, messages []string) Result[BulkPayload] {
	if err := s.requirePoke(); err != nil {
		return fail[BulkPayload](err, "Failed to send bulk messages", s.now())
	}
	if len(messages) == 0 {
		return fail[BulkPayload](&model.ValidationError{Field: "messages", Reason: "must not be empty"}, "Failed to send bulk messages", s.now())
	}
	res := s.d.Poke.SendBulk(ctx, messages)
	p := BulkPayload{Total: len(res), Results: res}
	for _, r := range res {
		if r.Success {
			p.Sent++
		} else {
			p.Failed++
		}
	}
	msg := fmt.Sprintf("Sent %d/%d messages", p.Sent, p.Total)
	if p.Failed > 0 {
		return Result[BulkPayload]{Data: p, Message: msg, Timestamp: s.now(),
			Error: &Failure{Kind: KindDelivery, Message: fmt.Sprintf("%d of %d messages failed", p.Failed, p.Total)}}
	}
	return ok(p, msg, s.now())
}

type NotificationPayload struct {
	FormattedMessage string         `json:"formatted_message"`
	Response         map[string]any `json:"response,omitempty"`
}

func (s *Service) SendNotification(ctx context.Context, title, message string, urgent bool) Result[NotificationPayload] {
	if err := s.requirePoke(); err != nil {
		return fail[NotificationPayload](err, fmt.Sprintf("Failed to send notification: %q", title), s.now())
	}
	text := report.RenderNotification(title, message, urgent, s.now())
	resp, err := s.d.Poke.SendMessage(ctx, text)
	if err != nil {
		r := failDelivery[NotificationPayload](err, fmt.Sprintf("Failed to send notification: %q", title), s.now())
		r.Data.FormattedMessage = text
		return r
	}
	return ok(NotificationPayload{FormattedMessage: text, Response: resp}, fmt.Sprintf("Notification sent: %q", title), s.now())
}

type ConnectionPayload struct {
	Connected     bool `json:"connected"`
	APIConfigured bool `json:"api_configured"`
}

func (s *Service) TestPokeConnection(ctx context.Context) Result[ConnectionPayload] {
	if err := s.requirePoke(); err != nil {
		return fail[ConnectionPayload](err, "Failed to test connection", s.now())
	}
	if err := s.d.Poke.TestConnection(ctx); err != nil {
		r := failDelivery[ConnectionPayload](err, "Connection failed", s.now())
		r.Data.APIConfigured = true
		return r
	}
	return ok(ConnectionPayload{Connected: true, APIConfigured: true}, "Connection successful", s.now())
}

type StatusPayload struct {
	APIKeyConfigured bool   `json:"api_key_configured"`
	ConnectionStatus string `json:"connection_status"`
	APIResponsive    bool   `json:"api_responsive"`
	ConnectionError  string `json:"connection_error,omitempty"`
}

// PokeStatus always succeeds; the payload carries the connection state.
func (s *Service) PokeStatus(ctx context.Context) Result[StatusPayload] {
	if s.requirePoke() != nil {
		return ok(StatusPayload{ConnectionStatus: "not_configured"}, "POKE_API_KEY environment variable not set", s.now())
	}
	p := StatusPayload{APIKeyConfigured: true}
	if err := s.d.Poke.TestConnection(ctx); err != nil {
		p.ConnectionStatus = "error"
		p.ConnectionError = err.Error()
	} else {
		p.ConnectionStatus = "connected"
		p.APIResponsive = true
	}
	return ok(p, "", s.now())
}

// X operations.

func (s *Service) username(raw string) (string, error) {
	return model.NormalizeUsername(raw)
}

// TwitterMetrics returns the day's engagement summary.
func (s *Service) TwitterMetrics(ctx context.Context, rawUsername string) Result[model.DailySummary] {
	msg := fmt.Sprintf("Failed to fetch Twitter metrics for @%s", rawUsername)
	if err := s.requireX(); err != nil {
		return fail[model.DailySummary](err, "Please configure Twitter API credentials", s.now())
	}
	u, err := s.username(rawUsername)
	if err != nil {
		return fail[model.DailySummary](err, msg, s.now())
	}
	sum, err := s.d.X.GetDailySummary(ctx, u, s.d.MaxTweets)
	if err != nil {
		return fail[model.DailySummary](err, msg, s.now())
	}
	return ok(sum, "", s.now())
}

// SendDailyReport builds the daily report and sends it through Poke.
func (s *Service) SendDailyReport(ctx context.Context, rawUsername string) Result[jobs.DailyReportResult] {
	msg := fmt.Sprintf("Failed to send daily report for @%s", rawUsername)
	if err := s.requirePoke(); err != nil {
		return fail[jobs.DailyReportResult](err, msg, s.now())
	}
	if err := s.requireX(); err != nil {
		return fail[jobs.DailyReportResult](err, msg, s.now())
	}
	u, err := s.username(rawUsername)
	if err != nil {
		return fail[jobs.DailyReportResult](err, msg, s.now())
	}
	res, err := jobs.RunDailyReport(ctx, s.d.X, s.d.Poke, u, s.d.MaxTweets, s.d.Log)
	if err != nil {
		r := fail[jobs.DailyReportResult](err, "Failed to send report", s.now())
		r.Data = res
		return r
	}
	return ok(res, "Daily Twitter report sent successfully", s.now())
}

type AutomationPayload struct {
	Username  string    `json:"username"`
	DailyTime string    `json:"daily_time"`
	Timezone  string    `json:"timezone"`
	Scheduled bool      `json:"scheduled"`
	NextRun   time.Time `json:"next_run"`
	NextSteps []string  `json:"next_steps,omitempty"`
}

// SetupAutomation schedules a daily report in the running scheduler, or
// explains how to run one externally when there is none.
func (s *Service) SetupAutomation(ctx context.Context, rawUsername string, hour int) Result[AutomationPayload] {
	const msg = "Failed to set up Twitter automation"
	u, err := s.username(rawUsername)
	if err != nil {
		return fail[AutomationPayload](err, msg, s.now())
	}
	if hour < 0 || hour > 23 {
		return fail[AutomationPayload](&model.ValidationError{Field: "time_hour", Value: fmt.Sprint(hour), Reason: "must be 0-23"}, msg, s.now())
	}
	loc := time.Local
	if s.d.Scheduler != nil {
		loc = s.d.Scheduler.Location()
	}
	spec := schedule.DailySpec(hour, 0)
	next, err := schedule.NextRun(spec, s.now(), loc)
	if err != nil {
		return fail[AutomationPayload](err, msg, s.now())
	}
	p := AutomationPayload{
		Username:  u,
		DailyTime: fmt.Sprintf("%02d:00", hour),
		Timezone:  loc.String(),
		NextRun:   next,
	}

	if s.d.Scheduler != nil && s.d.Scheduler.Running() && s.requireX() == nil && s.requirePoke() == nil {
		job := jobs.DailyReportJob(s.d.X, s.d.Poke, u, s.d.MaxTweets, s.d.Log)
		if err := s.d.Scheduler.AddCron(jobs.ReportJobName(u), spec, job); err != nil {
			return fail[AutomationPayload](err, msg, s.now())
		}
		p.Scheduled = true
		return ok(p, fmt.Sprintf("Automation configured for @%s at %s", u, p.DailyTime), s.now())
	}

	p.NextSteps = []string{
		"Set X_BEARER_TOKEN and POKE_API_KEY",
		fmt.Sprintf("Add {username: %s, hour: %d} under reports.daily and run `pokewatch serve`", u, hour),
		fmt.Sprintf("Or schedule externally: %s pokewatch report -send -user %s", spec, u),
	}
	return ok(p, fmt.Sprintf("Automation prepared for @%s at %s; no running scheduler", u, p.DailyTime), s.now())
}

type CountPayload struct {
	model.TweetCountResult
	Tier   string `json:"tier"`
	Report string `json:"report"`
}

// TweetCount returns the trailing 24h post count.
func (s *Service) TweetCount(ctx context.Context, rawUsername string) Result[CountPayload] {
	msg := fmt.Sprintf("Failed to count tweets for @%s", rawUsername)
	if err := s.requireX(); err != nil {
		return fail[CountPayload](err, msg, s.now())
	}
	u, err := s.username(rawUsername)
	if err != nil {
		return fail[CountPayload](err, msg, s.now())
	}
	res, err := s.d.X.GetCountLast24h(ctx, u)
	if err != nil {
		return fail[CountPayload](err, msg, s.now())
	}
	p := CountPayload{
		TweetCountResult: res,
		Tier:             report.ClassifyCount(res.Count).String(),
		Report:           report.RenderCount(res, s.d.X.Quota().Limit()),
	}
	return ok(p, "", s.now())
}

// Reminder operations.

func (s *Service) SetupReminder(ctx context.Context, rawUsername, timeOfDay string, minRequired int, message string) Result[reminder.Config] {
	const msg = "Failed to set up tweet reminder"
	c, err := s.d.Registry.Register(ctx, rawUsername, timeOfDay, minRequired, message)
	if err != nil {
		return fail[reminder.Config](err, msg, s.now())
	}
	return ok(c, fmt.Sprintf("Reminder %s set: fires when @%s has fewer than %d posts in 24h", c.ID(), c.Username, c.MinRequiredCount), s.now())
}

type ReminderList struct {
	Total     int               `json:"total"`
	Active    int               `json:"active"`
	Reminders []reminder.Config `json:"reminders"`
}

func (s *Service) ListReminders(ctx context.Context) Result[ReminderList] {
	all, err := s.d.Registry.List(ctx)
	if err != nil {
		return fail[ReminderList](err, "Failed to list reminders", s.now())
	}
	p := ReminderList{Total: len(all), Reminders: all}
	if p.Reminders == nil {
		p.Reminders = []reminder.Config{}
	}
	for _, c := range all {
		if c.Active {
			p.Active++
		}
	}
	return ok(p, "", s.now())
}

func (s *Service) DisableReminder(ctx context.Context, id string) Result[reminder.Config] {
	const msg = "Failed to disable reminder"
	k, err := reminder.ParseKey(id)
	if err != nil {
		return fail[reminder.Config](err, msg, s.now())
	}
	if err := s.d.Registry.Disable(ctx, k); err != nil {
		return fail[reminder.Config](err, msg, s.now())
	}
	c, _, err := s.d.Registry.Get(ctx, k)
	if err != nil {
		return fail[reminder.Config](err, msg, s.now())
	}
	return ok(c, fmt.Sprintf("Reminder %s disabled", k.ID()), s.now())
}

// CheckReminders runs one check pass at the current time.
func (s *Service) CheckReminders(ctx context.Context) Result[reminder.CheckReport] {
	if err := s.requireX(); err != nil {
		return fail[reminder.CheckReport](err, "Failed to check reminders", s.now())
	}
	rep := s.d.Checker.CheckDue(ctx, s.now())
	if rep.Error != "" {
		r := fail[reminder.CheckReport](errors.New(rep.Error), "Failed to check reminders", s.now())
		r.Data = rep
		return r
	}
	return ok(rep, fmt.Sprintf("Checked %d/%d reminders, %d due, %d sent", rep.Checked, rep.TotalEntries, len(rep.Results), rep.Fired()), s.now())
}
