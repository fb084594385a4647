package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"pokewatch/internal/config"
	"pokewatch/internal/jobs"
	"pokewatch/internal/logging"
	"pokewatch/internal/model"
	"pokewatch/internal/poke"
	"pokewatch/internal/quota"
	"pokewatch/internal/reminder"
	"pokewatch/internal/schedule"
	"pokewatch/internal/store/sqlite"
	"pokewatch/internal/tools"
	"pokewatch/internal/xclient"
)

// app holds everything built once from config.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	loc   *time.Location
	db    *sqlite.DB
	x     *xclient.HTTPClient
	poke  *poke.Client
	reg   *reminder.Registry
	chk   *reminder.Checker
	sched *schedule.Driver
	svc   *tools.Service

	closers []io.Closer
}

type appOptions struct {
	configPath string
	// stdio keeps stdout free for the MCP transport.
	stdio bool
}

func newApp(ctx context.Context, o appOptions) (*app, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	log, logCloser := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    cfg.Logging.File,
		Stderr:  o.stdio,
	})
	a := &app{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a.loc = loc
	timeout, err := cfg.APITimeout()
	if err != nil {
		return nil, err
	}

	var store reminder.Store
	if cfg.Storage.Driver == "sqlite" {
		db, err := sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Storage.DBPath, err)
		}
		a.db = db
		a.closers = append(a.closers, db)
		store = db
	}

	tracker := quota.NewTracker(quota.Config{
		Limit:     cfg.Quota.Limit,
		WarnRatio: cfg.Quota.WarnRatio,
		Enforce:   cfg.Quota.Enforce,
	}, logging.Component(log, "quota"))
	if a.db != nil {
		tracker.SetRecorder(a.db)
	}

	if cfg.Credentials.BearerToken == "" {
		log.Warn().Msg("X_BEARER_TOKEN not set; X tools will report a configuration error")
	}
	a.x = xclient.NewHTTPClient(cfg.Credentials.BearerToken, xclient.Options{
		BaseURL: cfg.API.XBaseURL,
		Timeout: timeout,
		RPS:     cfg.API.RPS,
		Burst:   cfg.API.Burst,
		Quota:   tracker,
		Logger:  logging.Component(log, "xclient"),
	})
	if cfg.Credentials.PokeAPIKey == "" {
		log.Warn().Msg("POKE_API_KEY not set; Poke tools will report a configuration error")
	}
	a.poke = poke.NewClient(cfg.Credentials.PokeAPIKey, poke.Options{
		BaseURL: cfg.API.PokeBaseURL,
		Timeout: timeout,
		Logger:  logging.Component(log, "poke"),
	})

	a.reg = reminder.NewRegistry(store, logging.Component(log, "reminders"))
	if err := a.seedReminders(ctx); err != nil {
		return nil, err
	}

	opts := []reminder.CheckerOption{reminder.WithLocation(loc)}
	if a.poke.Configured() {
		opts = append(opts, reminder.WithSender(a.poke))
	}
	if a.db != nil {
		opts = append(opts, reminder.WithJournal(a.db))
	}
	a.chk = reminder.NewChecker(a.reg, a.x, logging.Component(log, "checker"), opts...)

	a.sched = schedule.New(loc, 5*time.Minute, logging.Component(log, "schedule"))
	a.svc = tools.NewService(tools.Deps{
		X:         a.x,
		Poke:      a.poke,
		Registry:  a.reg,
		Checker:   a.chk,
		Scheduler: a.sched,
		Info:      tools.Info{Name: "pokewatch", Version: version, Environment: cfg.Server.Environment},
		MaxTweets: cfg.Reports.MaxTweets,
		Log:       logging.Component(log, "tools"),
	})
	return a, nil
}

// seedReminders registers configured reminders that are not stored yet, so a
// reminder disabled at runtime stays disabled across restarts.
func (a *app) seedReminders(ctx context.Context) error {
	for i, s := range a.cfg.Reminders.Seed {
		k, err := reminder.NewKey(s.Username, s.Time)
		if err != nil {
			return fmt.Errorf("reminders.seed[%d]: %w", i, err)
		}
		if _, exists, err := a.reg.Get(ctx, k); err != nil {
			return err
		} else if exists {
			continue
		}
		if _, err := a.reg.Register(ctx, s.Username, s.Time, s.MinRequired, s.Message); err != nil {
			return fmt.Errorf("reminders.seed[%d]: %w", i, err)
		}
	}
	return nil
}

// registerJobs registers the reminder check and the configured daily reports.
func (a *app) registerJobs() error {
	if !a.x.Configured() {
		a.log.Warn().Msg("reminder checks need X_BEARER_TOKEN; not scheduled")
		return nil
	}
	if err := a.sched.AddCron(jobs.ReminderJobName, a.cfg.Reminders.CheckSchedule, jobs.ReminderCheckJob(a.chk, a.log)); err != nil {
		return fmt.Errorf("reminders.checkSchedule: %w", err)
	}
	if !a.poke.Configured() {
		if len(a.cfg.Reports.Daily) > 0 {
			a.log.Warn().Msg("daily reports need POKE_API_KEY; not scheduled")
		}
		return nil
	}
	for _, r := range a.cfg.Reports.Daily {
		u, err := model.NormalizeUsername(r.Username)
		if err != nil {
			return err
		}
		job := jobs.DailyReportJob(a.x, a.poke, u, a.cfg.Reports.MaxTweets, a.log)
		if err := a.sched.AddDaily(jobs.ReportJobName(u), r.Hour, 0, job); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}
}
