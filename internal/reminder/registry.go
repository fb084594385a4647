package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pokewatch/internal/model"
)

// ErrNotFound is returned by Disable for an unknown key.
var ErrNotFound = errors.New("reminder not found")

// Registry validates and stores reminder configurations.
type Registry struct {
	mu    sync.RWMutex
	store Store
	log   zerolog.Logger
	nowFn func() time.Time
}

// NewRegistry wraps store. A nil store means an in-memory one.
func NewRegistry(store Store, log zerolog.Logger) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{store: store, log: log, nowFn: time.Now}
}

// Register validates input and stores an active reminder. minRequired of 0
// selects the default; an empty message selects a generated one. An existing
// entry with the same username and time is replaced.
func (r *Registry) Register(ctx context.Context, username, timeOfDay string, minRequired int, message string) (Config, error) {
	k, err := NewKey(username, timeOfDay)
	if err != nil {
		return Config{}, err
	}
	if minRequired < 0 {
		return Config{}, &model.ValidationError{Field: "min_required_count", Value: fmt.Sprint(minRequired), Reason: "must be positive"}
	}
	if minRequired == 0 {
		minRequired = DefaultMinRequired
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultMessage(k.Username, minRequired)
	}
	c := Config{
		Key:              k,
		MinRequiredCount: minRequired,
		Message:          message,
		Active:           true,
		CreatedAt:        r.nowFn().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, existed, err := r.store.Get(ctx, k); err != nil {
		return Config{}, fmt.Errorf("load reminder %s: %w", k, err)
	} else if existed {
		r.log.Info().Str("reminder", k.ID()).Msg("replacing reminder")
	}
	if err := r.store.Put(ctx, c); err != nil {
		return Config{}, fmt.Errorf("store reminder %s: %w", k, err)
	}
	r.log.Info().Str("reminder", k.ID()).Int("min_required", minRequired).Msg("reminder registered")
	return c, nil
}

// List returns every reminder, active or not, ordered by time then username.
func (r *Registry) List(ctx context.Context) ([]Config, error) {
	r.mu.RLock()
	out, err := r.store.List(ctx)
	r.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeOfDay != out[j].TimeOfDay {
			return out[i].TimeOfDay < out[j].TimeOfDay
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (r *Registry) Get(ctx context.Context, k Key) (Config, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Get(ctx, k)
}

// Disable marks a reminder inactive. The entry stays listed.
func (r *Registry) Disable(ctx context.Context, k Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok, err := r.store.Get(ctx, k)
	if err != nil {
		return fmt.Errorf("load reminder %s: %w", k, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	c.Active = false
	if err := r.store.Put(ctx, c); err != nil {
		return fmt.Errorf("store reminder %s: %w", k, err)
	}
	r.log.Info().Str("reminder", k.ID()).Msg("reminder disabled")
	return nil
}
