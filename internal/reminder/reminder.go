// Package reminder keeps low-post reminder configurations and evaluates them
// against live tweet counts.
package reminder

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pokewatch/internal/model"
)

const DefaultMinRequired = 1

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Key identifies a reminder. Registering the same key again replaces the entry.
type Key struct {
	Username  string `json:"username"`
	TimeOfDay string `json:"time_of_day"`
}

// ID renders the key as "username@HH:MM".
func (k Key) ID() string { return k.Username + "@" + k.TimeOfDay }

func (k Key) String() string { return k.ID() }

// ParseKey is the inverse of Key.ID. The username is normalized.
func ParseKey(id string) (Key, error) {
	// A leading handle marker is tolerated: "@alice@09:00".
	s := strings.TrimPrefix(strings.TrimSpace(id), "@")
	user, tod, ok := strings.Cut(s, "@")
	if !ok {
		return Key{}, &model.ValidationError{Field: "reminder_id", Value: id, Reason: "expected username@HH:MM"}
	}
	return NewKey(user, tod)
}

// NewKey validates and normalizes both parts of a key.
func NewKey(username, timeOfDay string) (Key, error) {
	u, err := model.NormalizeUsername(username)
	if err != nil {
		return Key{}, err
	}
	if err := ValidateTimeOfDay(timeOfDay); err != nil {
		return Key{}, err
	}
	return Key{Username: u, TimeOfDay: timeOfDay}, nil
}

// ValidateTimeOfDay accepts strict 24h HH:MM only.
func ValidateTimeOfDay(s string) error {
	if !timeOfDayRe.MatchString(s) {
		return &model.ValidationError{Field: "time_of_day", Value: s, Reason: "must be 24-hour HH:MM"}
	}
	return nil
}

// Config is one stored reminder.
type Config struct {
	Key
	MinRequiredCount int       `json:"min_required_count"`
	Message          string    `json:"message"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

// MarshalJSON adds the derived id.
func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	return json.Marshal(struct {
		ID string `json:"id"`
		plain
	}{ID: c.ID(), plain: plain(c)})
}

// DefaultMessage is used when a reminder is registered without one.
func DefaultMessage(username string, minRequired int) string {
	if minRequired == 1 {
		return fmt.Sprintf("⏰ Reminder: @%s hasn't posted in the last 24 hours. Time to tweet!", username)
	}
	return fmt.Sprintf("⏰ Reminder: @%s is under %d posts for the last 24 hours. Time to tweet!", username, minRequired)
}
