package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pokewatch/internal/metrics"
	"pokewatch/internal/model"
)

const (
	ReasonGoalMet        = "goal met"
	ReasonNoSender       = "no delivery client configured"
	ReasonDeliveryFailed = "delivery failed"
)

// CountFetcher supplies live counts. xclient.HTTPClient satisfies it.
type CountFetcher interface {
	GetCountLast24h(ctx context.Context, username string) (model.TweetCountResult, error)
}

// Sender delivers reminder text. poke.Client satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, text string) (map[string]any, error)
}

// Journal records the outcome of each due reminder.
type Journal interface {
	RecordResult(ctx context.Context, runID string, at time.Time, r Result) error
}

// Result is the outcome for one due reminder.
type Result struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	TimeOfDay   string         `json:"time_of_day"`
	Count       *int           `json:"count,omitempty"`
	MinRequired int            `json:"min_required_count"`
	Sent        bool           `json:"sent"`
	Reason      string         `json:"reason,omitempty"`
	Response    map[string]any `json:"response,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// CheckReport summarizes one pass. Checked counts entries evaluated without
// error, including skipped ones. The exception is a due entry whose count was
// fetched but whose delivery failed: it counts as checked even though its
// Result carries an Error. Only a failed count fetch leaves an entry
// unchecked. Results holds due entries only.
type CheckReport struct {
	RunID        string    `json:"run_id"`
	CheckedAt    time.Time `json:"checked_at"`
	TotalEntries int       `json:"total_entries"`
	Checked      int       `json:"checked"`
	Results      []Result  `json:"results"`
	Error        string    `json:"error,omitempty"`
}

// Fired is the number of reminders delivered in the pass.
func (r CheckReport) Fired() int {
	n := 0
	for _, res := range r.Results {
		if res.Sent {
			n++
		}
	}
	return n
}

type CheckerOption func(*Checker)

// WithSender sets the delivery client. Pass only a configured sender.
func WithSender(s Sender) CheckerOption { return func(c *Checker) { c.sender = s } }

func WithJournal(j Journal) CheckerOption { return func(c *Checker) { c.journal = j } }

// WithLocation sets the zone reminder times are read in. Defaults to local.
func WithLocation(loc *time.Location) CheckerOption {
	return func(c *Checker) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// Checker evaluates the registry at a given instant.
type Checker struct {
	registry *Registry
	counts   CountFetcher
	sender   Sender
	journal  Journal
	loc      *time.Location
	log      zerolog.Logger
}

func NewChecker(reg *Registry, counts CountFetcher, log zerolog.Logger, opts ...CheckerOption) *Checker {
	c := &Checker{registry: reg, counts: counts, loc: time.Local, log: log}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HasSender reports whether deliveries can be attempted.
func (c *Checker) HasSender() bool { return c.sender != nil }

// CheckDue runs one synchronous pass. Entries whose time matches now's
// minute are fetched and, when under their goal, delivered. Per-entry
// failures are recorded and never stop the pass.
func (c *Checker) CheckDue(ctx context.Context, now time.Time) CheckReport {
	metrics.ReminderChecks.Inc()
	rep := CheckReport{
		RunID:     uuid.NewString(),
		CheckedAt: now,
		Results:   []Result{},
	}
	log := c.log.With().Str("run_id", rep.RunID).Logger()

	entries, err := c.registry.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reminder check could not list reminders")
		rep.Error = err.Error()
		return rep
	}
	rep.TotalEntries = len(entries)
	minute := now.In(c.loc).Format("15:04")

	for _, e := range entries {
		if !e.Active || e.TimeOfDay != minute {
			rep.Checked++
			continue
		}
		res := c.evaluate(ctx, e)
		// A failed delivery still counts as evaluated; a failed fetch does not.
		if res.Count != nil {
			rep.Checked++
		} else {
			metrics.ReminderErrors.Inc()
		}
		if res.Sent {
			metrics.RemindersFired.Inc()
		}
		if c.journal != nil {
			if err := c.journal.RecordResult(ctx, rep.RunID, now, res); err != nil {
				log.Warn().Err(err).Str("reminder", res.ID).Msg("journal write failed")
			}
		}
		log.Info().Str("reminder", res.ID).Bool("sent", res.Sent).Str("reason", res.Reason).Str("error", res.Error).Msg("reminder evaluated")
		rep.Results = append(rep.Results, res)
	}
	log.Info().Int("total", rep.TotalEntries).Int("checked", rep.Checked).Int("due", len(rep.Results)).Int("fired", rep.Fired()).Msg("reminder check done")
	return rep
}

func (c *Checker) evaluate(ctx context.Context, e Config) Result {
	res := Result{ID: e.ID(), Username: e.Username, TimeOfDay: e.TimeOfDay, MinRequired: e.MinRequiredCount}

	cnt, err := c.counts.GetCountLast24h(ctx, e.Username)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	n := cnt.Count
	res.Count = &n

	if n >= e.MinRequiredCount {
		res.Reason = ReasonGoalMet
		return res
	}
	if c.sender == nil {
		res.Reason = ReasonNoSender
		return res
	}
	resp, err := c.sender.SendMessage(ctx, e.Message)
	if err != nil {
		res.Reason = ReasonDeliveryFailed
		res.Error = err.Error()
		return res
	}
	res.Sent = true
	res.Response = resp
	return res
}
