package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"pokewatch/internal/cmdlog"
	"pokewatch/internal/config"
	"pokewatch/internal/jobs"
	"pokewatch/internal/logging"
	"pokewatch/internal/model"
	"pokewatch/internal/reminder"
	"pokewatch/internal/report"
	"pokewatch/internal/server"
	"pokewatch/internal/theme"
	"pokewatch/internal/tools"
	"pokewatch/internal/xclient"
)

var version = "dev"

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"init", "Create a config file at " + config.DefaultPath, cmdInit},
		{"count", "Print the post count for the last 24 hours", cmdCount},
		{"report", "Build the daily engagement report; -send delivers it via Poke", cmdReport},
		{"remind", "Register a reminder (sqlite storage persists it)", cmdRemind},
		{"reminders", "List reminders", cmdReminders},
		{"disable", "Disable a reminder by id (username@HH:MM)", cmdDisable},
		{"check", "Run one reminder check now, or at -at HH:MM today", cmdCheck},
		{"send", "Send a message or notification via Poke", cmdSend},
		{"history", "Show journaled reminder outcomes and API calls (sqlite only)", cmdHistory},
		{"serve", "Run the MCP server over HTTP, or stdio with -stdio", cmdServe},
		{"version", "Print the version", cmdVersion},
	}
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	name := ""
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	for _, c := range commands {
		if c.name == name {
			if err := c.run(os.Args[2:]); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			return
		}
	}
	printHelp()
	if name != "" && name != "help" && name != "-h" {
		os.Exit(2)
	}
}

func printHelp() {
	theme.PrintBanner(os.Stderr, version)
	w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Usage: pokewatch <command> [options]")
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\t%s\n", c.name, c.usage)
	}
	_ = w.Flush()
}

func newFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	return fs, cfgPath
}

// withApp builds the app, runs f under cmdlog and releases everything.
func withApp(name, cfgPath string, f func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := newApp(ctx, appOptions{configPath: cfgPath})
	if err != nil {
		return err
	}
	defer a.Close()
	return cmdlog.Run(name, a.log, func() error { return f(ctx, a) })
}

func (a *app) username(flagValue string) (string, error) {
	u := flagValue
	if u == "" {
		u = a.cfg.Account.Username
	}
	if u == "" {
		return "", errors.New("no username: pass -user or set account.username")
	}
	return model.NormalizeUsername(u)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult[T any](r tools.Result[T]) error {
	if !r.OK() {
		if r.Message != "" {
			fmt.Fprintln(os.Stderr, r.Message)
		}
		if r.Error != nil {
			_ = printJSON(r)
			return r.Error
		}
		return errors.New(r.Message)
	}
	if r.Message != "" {
		fmt.Println(r.Message)
	}
	return printJSON(r.Data)
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", config.DefaultPath, "path to write config")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(args)
	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s exists; pass -force to overwrite", *path)
	}
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner(os.Stderr, version)
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdCount(args []string) error {
	fs, cfgPath := newFlags("count")
	user := fs.String("user", "", "X username (default account.username)")
	_ = fs.Parse(args)
	return withApp("count", *cfgPath, func(ctx context.Context, a *app) error {
		out, err := countReport(ctx, a, *user)
		if out != "" {
			fmt.Println(out)
		}
		return err
	})
}

// countReport renders the 24h count report; a rendered failure is also
// returned as an error so the command exits non-zero.
func countReport(ctx context.Context, a *app, user string) (string, error) {
	u, err := a.username(user)
	if err != nil {
		return "", err
	}
	out := a.x.FormatReport(ctx, u)
	if msg, failed := strings.CutPrefix(out, report.ErrorPrefix); failed {
		return out, errors.New(msg)
	}
	return out, nil
}

func cmdReport(args []string) error {
	fs, cfgPath := newFlags("report")
	user := fs.String("user", "", "X username (default account.username)")
	send := fs.Bool("send", false, "deliver the report via Poke")
	_ = fs.Parse(args)
	return withApp("report", *cfgPath, func(ctx context.Context, a *app) error {
		u, err := a.username(*user)
		if err != nil {
			return err
		}
		if *send {
			if !a.poke.Configured() {
				return errors.New("POKE_API_KEY environment variable not set")
			}
			res, err := jobs.RunDailyReport(ctx, a.x, a.poke, u, a.cfg.Reports.MaxTweets, a.log)
			if err != nil {
				return err
			}
			fmt.Println(res.Message)
			return nil
		}
		sum, err := a.x.GetDailySummary(ctx, u, a.cfg.Reports.MaxTweets)
		if err != nil {
			return err
		}
		fmt.Println(report.Render(sum))
		return nil
	})
}

func cmdRemind(args []string) error {
	fs, cfgPath := newFlags("remind")
	user := fs.String("user", "", "X username (default account.username)")
	at := fs.String("at", "", "24-hour HH:MM check time")
	minCount := fs.Int("min", reminder.DefaultMinRequired, "minimum posts in 24h")
	msg := fs.String("message", "", "custom reminder text")
	_ = fs.Parse(args)
	return withApp("remind", *cfgPath, func(ctx context.Context, a *app) error {
		u, err := a.username(*user)
		if err != nil {
			return err
		}
		if a.db == nil {
			a.log.Warn().Msg("storage.driver is memory; this reminder lasts only for this process")
		}
		return printResult(a.svc.SetupReminder(ctx, u, *at, *minCount, *msg))
	})
}

func cmdReminders(args []string) error {
	fs, cfgPath := newFlags("reminders")
	_ = fs.Parse(args)
	return withApp("reminders", *cfgPath, func(ctx context.Context, a *app) error {
		r := a.svc.ListReminders(ctx)
		if !r.OK() {
			return printResult(r)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMIN\tACTIVE\tMESSAGE")
		for _, c := range r.Data.Reminders {
			fmt.Fprintf(w, "%s\t%d\t%t\t%s\n", c.ID(), c.MinRequiredCount, c.Active, c.Message)
		}
		fmt.Fprintf(w, "\n%d reminders, %d active\n", r.Data.Total, r.Data.Active)
		return w.Flush()
	})
}

func cmdDisable(args []string) error {
	fs, cfgPath := newFlags("disable")
	id := fs.String("id", "", "reminder id (username@HH:MM)")
	_ = fs.Parse(args)
	return withApp("disable", *cfgPath, func(ctx context.Context, a *app) error {
		return printResult(a.svc.DisableReminder(ctx, *id))
	})
}

func cmdCheck(args []string) error {
	fs, cfgPath := newFlags("check")
	at := fs.String("at", "", "check as if it were HH:MM today (reminder timezone)")
	_ = fs.Parse(args)
	return withApp("check", *cfgPath, func(ctx context.Context, a *app) error {
		if !a.x.Configured() {
			return xclient.ErrMissingToken
		}
		now, err := checkTime(*at, time.Now(), a.loc)
		if err != nil {
			return err
		}
		rep, err := jobs.RunReminderCheckOnce(ctx, a.chk, now, a.log)
		if perr := printJSON(rep); perr != nil && err == nil {
			err = perr
		}
		return err
	})
}

// checkTime resolves -at against today in loc; empty means now.
func checkTime(at string, now time.Time, loc *time.Location) (time.Time, error) {
	if at == "" {
		return now, nil
	}
	if err := reminder.ValidateTimeOfDay(at); err != nil {
		return time.Time{}, err
	}
	hm, _ := time.Parse("15:04", at)
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), nil
}

func cmdSend(args []string) error {
	fs, cfgPath := newFlags("send")
	msg := fs.String("message", "", "message text")
	title := fs.String("title", "", "send as a notification with this title")
	urgent := fs.Bool("urgent", false, "mark the notification urgent")
	_ = fs.Parse(args)
	return withApp("send", *cfgPath, func(ctx context.Context, a *app) error {
		if *msg == "" {
			return errors.New("-message is required")
		}
		if *title != "" {
			return printResult(a.svc.SendNotification(ctx, *title, *msg, *urgent))
		}
		return printResult(a.svc.SendPokeMessage(ctx, *msg))
	})
}

func cmdHistory(args []string) error {
	fs, cfgPath := newFlags("history")
	hours := fs.Int("hours", 24, "look-back window in hours")
	_ = fs.Parse(args)
	return withApp("history", *cfgPath, func(ctx context.Context, a *app) error {
		if a.db == nil {
			return errors.New("history needs storage.driver: sqlite")
		}
		end := time.Now()
		start := end.Add(-time.Duration(*hours) * time.Hour)
		calls, err := a.db.CountCallsWithin(ctx, start, end, "")
		if err != nil {
			return err
		}
		deliveries, err := a.db.LoadDeliveries(ctx, start, end)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AT\tREMINDER\tCOUNT\tSENT\tREASON")
		for _, d := range deliveries {
			count := "-"
			if d.Count != nil {
				count = fmt.Sprint(*d.Count)
			}
			reason := d.Reason
			if d.Error != "" {
				reason = d.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", d.At.In(a.loc).Format("2006-01-02 15:04"), d.ReminderID, count, d.Sent, reason)
		}
		fmt.Fprintf(w, "\nX API calls in the last %dh: %d\n", *hours, calls)
		return w.Flush()
	})
}

func cmdServe(args []string) error {
	fs, cfgPath := newFlags("serve")
	stdio := fs.Bool("stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := newApp(ctx, appOptions{configPath: *cfgPath, stdio: *stdio})
	if err != nil {
		return err
	}
	defer a.Close()

	return cmdlog.Run("serve", a.log, func() error {
		if err := a.registerJobs(); err != nil {
			return err
		}
		a.sched.Start(ctx)
		defer a.sched.Stop()

		mcp := tools.NewMCPServer(a.svc)
		if *stdio {
			a.log.Info().Str("version", version).Msg("serving MCP over stdio")
			return mcpserver.ServeStdio(mcp)
		}

		srv := server.New(a.svc, mcp, server.Config{
			Addr:        a.cfg.Addr(),
			CORSOrigins: a.cfg.Server.CORSOrigins,
		}, logging.Component(a.log, "http"))
		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()
		a.log.Info().Str("addr", a.cfg.Addr()).Str("environment", a.cfg.Server.Environment).Msg("pokewatch serving /mcp")

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		timeout, err := a.cfg.ShutdownTimeout()
		if err != nil {
			return err
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

func cmdVersion([]string) error {
	fmt.Println("pokewatch", version)
	return nil
}
