package quota

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pokewatch/internal/metrics"
)

const (
	DefaultLimit     = 100
	DefaultWarnRatio = 0.9
)

// ErrExhausted is returned by Record when enforcement is on and the limit is spent.
var ErrExhausted = errors.New("api quota exhausted")

// Recorder persists each counted call. The SQLite store implements it.
type Recorder interface {
	RecordCall(ctx context.Context, ts time.Time, endpoint string) error
}

// Config controls the tracker. Enforce is off by default: the counter is
// advisory and only logs.
type Config struct {
	Limit     int
	WarnRatio float64
	Enforce   bool
}

// Tracker counts outbound calls for one client instance. The count only grows.
type Tracker struct {
	mu     sync.Mutex
	cfg    Config
	warnAt int
	used   int
	log    zerolog.Logger
	rec    Recorder
	nowFn  func() time.Time
}

func NewTracker(cfg Config, log zerolog.Logger) *Tracker {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.WarnRatio <= 0 || cfg.WarnRatio > 1 {
		cfg.WarnRatio = DefaultWarnRatio
	}
	return &Tracker{
		cfg:    cfg,
		warnAt: int(math.Ceil(float64(cfg.Limit) * cfg.WarnRatio)),
		log:    log,
		nowFn:  time.Now,
	}
}

// SetRecorder attaches a durable ledger. Ledger failures are logged, never returned.
func (t *Tracker) SetRecorder(r Recorder) {
	t.mu.Lock()
	t.rec = r
	t.mu.Unlock()
}

// Record counts one call to endpoint and returns the new total.
func (t *Tracker) Record(ctx context.Context, endpoint string) (int, error) {
	t.mu.Lock()
	if t.cfg.Enforce && t.used >= t.cfg.Limit {
		used := t.used
		t.mu.Unlock()
		t.log.Error().Int("used", used).Int("limit", t.cfg.Limit).Str("endpoint", endpoint).Msg("api call refused, quota exhausted")
		return used, fmt.Errorf("%w (%d/%d)", ErrExhausted, used, t.cfg.Limit)
	}
	t.used++
	used := t.used
	rec := t.rec
	t.mu.Unlock()

	metrics.IncAPICall(endpoint, used)
	t.log.Info().Int("call", used).Str("endpoint", endpoint).Msg("api call")
	switch {
	case used >= t.cfg.Limit:
		t.log.Error().Int("used", used).Int("limit", t.cfg.Limit).Msg("api quota reached")
	case used >= t.warnAt:
		t.log.Warn().Int("used", used).Int("limit", t.cfg.Limit).Msg("api quota nearly used")
	}

	if rec != nil {
		if err := rec.RecordCall(ctx, t.nowFn().UTC(), endpoint); err != nil {
			t.log.Warn().Err(err).Msg("api call ledger write failed")
		}
	}
	return used, nil
}

// Used returns the number of calls counted so far.
func (t *Tracker) Used() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

func (t *Tracker) Limit() int { return t.cfg.Limit }

// Usage renders "used/limit".
func (t *Tracker) Usage() string {
	return fmt.Sprintf("%d/%d", t.Used(), t.cfg.Limit)
}
