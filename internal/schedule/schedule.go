// Package schedule drives periodic work from cron specs. It is the outside
// caller for the single-shot reminder check and the daily reports.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one scheduled run. Errors are logged by the driver.
type Job func(ctx context.Context) error

// Entry describes a registered job.
type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Driver wraps a cron instance with named, replaceable jobs.
type Driver struct {
	mu      sync.Mutex
	c       *cron.Cron
	loc     *time.Location
	log     zerolog.Logger
	timeout time.Duration
	ctx     context.Context
	running bool
	ids     map[string]cron.EntryID
	specs   map[string]string
}

// New builds a stopped driver. Runs longer than timeout are cancelled.
func New(loc *time.Location, timeout time.Duration, log zerolog.Logger) *Driver {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	cl := cronLogger{log: log}
	return &Driver{
		c: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc:     loc,
		log:     log,
		timeout: timeout,
		ctx:     context.Background(),
		ids:     map[string]cron.EntryID{},
		specs:   map[string]string{},
	}
}

func (d *Driver) Location() *time.Location { return d.loc }

// Start begins firing jobs. Job contexts derive from ctx.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.ctx = ctx
	d.running = true
	d.c.Start()
	d.log.Info().Str("tz", d.loc.String()).Int("jobs", len(d.ids)).Msg("scheduler started")
}

// Stop halts the cron loop and waits for running jobs.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()
	<-d.c.Stop().Done()
	d.log.Info().Msg("scheduler stopped")
}

func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// AddCron registers job under name, replacing any job with the same name.
func (d *Driver) AddCron(name, spec string, job Job) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %s: invalid spec %q: %w", name, spec, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.ids[name]; ok {
		d.c.Remove(id)
	}
	id, err := d.c.AddFunc(spec, func() { d.run(name, job) })
	if err != nil {
		return err
	}
	d.ids[name] = id
	d.specs[name] = spec
	d.log.Info().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

// AddDaily runs job every day at hour:minute in the driver's zone.
func (d *Driver) AddDaily(name string, hour, minute int, job Job) error {
	return d.AddCron(name, DailySpec(hour, minute), job)
}

// Remove drops a named job; it reports whether one existed.
func (d *Driver) Remove(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.ids[name]
	if ok {
		d.c.Remove(id)
		delete(d.ids, name)
		delete(d.specs, name)
	}
	return ok
}

// Entries lists registered jobs by name.
func (d *Driver) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Entry, 0, len(d.ids))
	for name, id := range d.ids {
		e := d.c.Entry(id)
		out = append(out, Entry{Name: name, Spec: d.specs[name], Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Driver) run(name string, job Job) {
	d.mu.Lock()
	parent := d.ctx
	d.mu.Unlock()
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()
	start := time.Now()
	if err := job(ctx); err != nil {
		d.log.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	d.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job done")
}

// DailySpec renders a cron spec firing once a day at hour:minute.
func DailySpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// NextRun returns the first activation of spec strictly after from, in loc.
func NextRun(spec string, from time.Time, loc *time.Location) (time.Time, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	if loc != nil {
		from = from.In(loc)
	}
	return s.Next(from), nil
}

type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(kv).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}
