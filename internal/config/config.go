package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "./pokewatch.yaml"

// Config is the application's configuration model.
type Config struct {
	Account     AccountConfig     `yaml:"account"`
	Credentials CredentialsConfig `yaml:"credentials"`
	API         APIConfig         `yaml:"api"`
	Quota       QuotaConfig       `yaml:"quota"`
	Reminders   RemindersConfig   `yaml:"reminders"`
	Reports     ReportsConfig     `yaml:"reports"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Storage     StorageConfig     `yaml:"storage"`
}

type AccountConfig struct {
	// Default handle for count, report and remind when none is given.
	Username string `yaml:"username"`
}

type CredentialsConfig struct {
	// If empty, read from X_BEARER_TOKEN, then TWITTER_BEARER_TOKEN.
	BearerToken string `yaml:"bearerToken"`
	// If empty, read from POKE_API_KEY.
	PokeAPIKey string `yaml:"pokeApiKey"`
}

type APIConfig struct {
	XBaseURL    string  `yaml:"xBaseUrl"`
	PokeBaseURL string  `yaml:"pokeBaseUrl"`
	Timeout     string  `yaml:"timeout"`
	RPS         float64 `yaml:"rps"`
	Burst       int     `yaml:"burst"`
}

type QuotaConfig struct {
	Limit     int     `yaml:"limit"`
	WarnRatio float64 `yaml:"warnRatio"`
	// Refuse calls once the limit is spent instead of only logging.
	Enforce bool `yaml:"enforce"`
}

type ReminderSeed struct {
	Username    string `yaml:"username"`
	Time        string `yaml:"time"`
	MinRequired int    `yaml:"minRequired"`
	Message     string `yaml:"message"`
}

type RemindersConfig struct {
	// IANA zone reminder times are read in; empty means local.
	Timezone string `yaml:"timezone"`
	// Cron spec for the serve-mode check driver.
	CheckSchedule string `yaml:"checkSchedule"`
	// Reminders registered at startup.
	Seed []ReminderSeed `yaml:"seed"`
}

type DailyReport struct {
	Username string `yaml:"username"`
	Hour     int    `yaml:"hour"`
}

type ReportsConfig struct {
	MaxTweets int           `yaml:"maxTweets"`
	Daily     []DailyReport `yaml:"daily"`
}

type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	Environment     string   `yaml:"environment"`
	ShutdownTimeout string   `yaml:"shutdownTimeout"`
	CORSOrigins     []string `yaml:"corsOrigins"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    string `yaml:"file"`
}

type StorageConfig struct {
	// "memory" (default) or "sqlite".
	Driver string `yaml:"driver"`
	DBPath string `yaml:"dbPath"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			XBaseURL:    "https://api.twitter.com/2",
			PokeBaseURL: "https://poke.com/api/v1",
			Timeout:     "15s",
			RPS:         2,
			Burst:       10,
		},
		Quota:     QuotaConfig{Limit: 100, WarnRatio: 0.9},
		Reminders: RemindersConfig{CheckSchedule: "* * * * *"},
		Reports:   ReportsConfig{MaxTweets: 5},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			Environment:     "development",
			ShutdownTimeout: "10s",
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "memory", DBPath: "./pokewatch.db"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
// PORT and ENVIRONMENT always win, matching hosted deployments.
func (c *Config) ResolveEnv() {
	if c.Credentials.BearerToken == "" {
		c.Credentials.BearerToken = os.Getenv("X_BEARER_TOKEN")
	}
	if c.Credentials.BearerToken == "" {
		c.Credentials.BearerToken = os.Getenv("TWITTER_BEARER_TOKEN")
	}
	if c.Credentials.PokeAPIKey == "" {
		c.Credentials.PokeAPIKey = os.Getenv("POKE_API_KEY")
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}
}

// Load reads YAML config from path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields defaults plus env.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.ResolveEnv()
		return cfg, nil
	}
	return cfg, err
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Validate checks fields that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := c.APITimeout(); err != nil {
		return err
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Quota.Limit < 0 {
		return errors.New("quota.limit: must be >= 0")
	}
	for i, r := range c.Reports.Daily {
		if r.Hour < 0 || r.Hour > 23 {
			return fmt.Errorf("reports.daily[%d].hour: must be 0-23", i)
		}
	}
	return nil
}

func (c Config) APITimeout() (time.Duration, error) {
	return ParseDurationOrDefault("api.timeout", c.API.Timeout, 15*time.Second)
}

func (c Config) ShutdownTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("server.shutdownTimeout", c.Server.ShutdownTimeout, 10*time.Second)
}

// Location resolves reminders.timezone.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Reminders.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("reminders.timezone: %w", err)
	}
	return loc, nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
