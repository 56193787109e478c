// Package daemon manages the chronik daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/unfloned/chronik/internal/app/reminder"
)

// Config holds all daemon configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage" mapstructure:"storage"`
	API       APIConfig       `toml:"api" mapstructure:"api"`
	Scheduler SchedulerConfig `toml:"scheduler" mapstructure:"scheduler"`
	Push      PushConfig      `toml:"push" mapstructure:"push"`
	Logging   LoggingConfig   `toml:"logging" mapstructure:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry" mapstructure:"telemetry"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Driver is "sqlite" for a single instance or "postgres" when several
	// instances share one database.
	Driver string `toml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	Dir    string `toml:"dir" mapstructure:"dir"`
	DSN    string `toml:"dsn" mapstructure:"dsn" validate:"required_if=Driver postgres"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host       string `toml:"host" mapstructure:"host" validate:"required"`
	Port       int    `toml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	CORSOrigin string `toml:"cors_origin" mapstructure:"cors_origin"`
}

// SchedulerConfig controls the reminder jobs. Intervals are Go duration
// strings.
type SchedulerConfig struct {
	Enabled              bool     `toml:"enabled" mapstructure:"enabled"`
	HabitInterval        string   `toml:"habit_interval" mapstructure:"habit_interval"`
	DeadlineInterval     string   `toml:"deadline_interval" mapstructure:"deadline_interval"`
	SubscriptionInterval string   `toml:"subscription_interval" mapstructure:"subscription_interval"`
	StreakInterval       string   `toml:"streak_interval" mapstructure:"streak_interval"`
	EveningStart         int      `toml:"evening_start" mapstructure:"evening_start" validate:"min=0,max=23"`
	EveningEnd           int      `toml:"evening_end" mapstructure:"evening_end" validate:"min=1,max=24,gtfield=EveningStart"`
	Disabled             []string `toml:"disabled" mapstructure:"disabled" validate:"dive,oneof=habit-reminder deadline-warning subscription-reminder streak-risk"`
	HealthInterval       string   `toml:"health_interval" mapstructure:"health_interval"`
}

// PushConfig controls push delivery. An empty gateway posts directly to
// each subscription endpoint. Endpoints are client supplied and only
// checked to be https URLs, so production deployments should set Gateway
// to a push service that restricts where requests may go.
type PushConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Gateway string `toml:"gateway" mapstructure:"gateway" validate:"omitempty,url"`
	Timeout string `toml:"timeout" mapstructure:"timeout"`
	// Sign adds an Ed25519 signature over each delivery. The key lives in
	// $CHRONIK_HOME/keys.
	Sign bool `toml:"sign" mapstructure:"sign"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus" mapstructure:"prometheus"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	rc := reminder.DefaultConfig()
	return Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			Dir:    chronikHome(),
		},
		API: APIConfig{
			Host:       "127.0.0.1",
			Port:       8420,
			CORSOrigin: "*",
		},
		Scheduler: SchedulerConfig{
			Enabled:              true,
			HabitInterval:        rc.HabitInterval.String(),
			DeadlineInterval:     rc.DeadlineInterval.String(),
			SubscriptionInterval: rc.SubscriptionInterval.String(),
			StreakInterval:       rc.StreakInterval.String(),
			EveningStart:         rc.EveningStart,
			EveningEnd:           rc.EveningEnd,
			Disabled:             []string{},
			HealthInterval:       "1m0s",
		},
		Push: PushConfig{
			Timeout: "10s",
			Sign:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

var validate = validator.New()

// Validate checks field constraints and duration syntax.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, v := range map[string]string{
		"scheduler.habit_interval":        c.Scheduler.HabitInterval,
		"scheduler.deadline_interval":     c.Scheduler.DeadlineInterval,
		"scheduler.subscription_interval": c.Scheduler.SubscriptionInterval,
		"scheduler.streak_interval":       c.Scheduler.StreakInterval,
		"scheduler.health_interval":       c.Scheduler.HealthInterval,
		"push.timeout":                    c.Push.Timeout,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid config: %s must be a positive duration, got %q", name, v)
		}
	}
	return nil
}

// ReminderConfig converts the scheduler section for reminder.Register.
func (c Config) ReminderConfig() reminder.Config {
	def := reminder.DefaultConfig()
	return reminder.Config{
		HabitInterval:        parseDuration(c.Scheduler.HabitInterval, def.HabitInterval),
		DeadlineInterval:     parseDuration(c.Scheduler.DeadlineInterval, def.DeadlineInterval),
		SubscriptionInterval: parseDuration(c.Scheduler.SubscriptionInterval, def.SubscriptionInterval),
		StreakInterval:       parseDuration(c.Scheduler.StreakInterval, def.StreakInterval),
		EveningStart:         c.Scheduler.EveningStart,
		EveningEnd:           c.Scheduler.EveningEnd,
		Disabled:             c.Scheduler.Disabled,
	}
}

// ConfigPath returns the path of the config file.
func ConfigPath() string {
	return filepath.Join(chronikHome(), "config.toml")
}

// LoadConfig reads $CHRONIK_HOME/config.toml with CHRONIK_* environment
// overrides, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads the config at path. A missing file yields the
// defaults with environment overrides applied.
func LoadConfigFrom(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("CHRONIK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = chronikHome()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.dsn", d.Storage.DSN)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.cors_origin", d.API.CORSOrigin)

	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.habit_interval", d.Scheduler.HabitInterval)
	v.SetDefault("scheduler.deadline_interval", d.Scheduler.DeadlineInterval)
	v.SetDefault("scheduler.subscription_interval", d.Scheduler.SubscriptionInterval)
	v.SetDefault("scheduler.streak_interval", d.Scheduler.StreakInterval)
	v.SetDefault("scheduler.evening_start", d.Scheduler.EveningStart)
	v.SetDefault("scheduler.evening_end", d.Scheduler.EveningEnd)
	v.SetDefault("scheduler.disabled", d.Scheduler.Disabled)
	v.SetDefault("scheduler.health_interval", d.Scheduler.HealthInterval)

	v.SetDefault("push.enabled", d.Push.Enabled)
	v.SetDefault("push.gateway", d.Push.Gateway)
	v.SetDefault("push.timeout", d.Push.Timeout)
	v.SetDefault("push.sign", d.Push.Sign)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("telemetry.prometheus", d.Telemetry.Prometheus)
}

// SaveConfig writes the config to $CHRONIK_HOME/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigTo(ConfigPath(), cfg)
}

// SaveConfigTo writes cfg as TOML to path.
func SaveConfigTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// chronikHome returns the chronik data directory.
func chronikHome() string {
	if env := os.Getenv("CHRONIK_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chronik")
}

// ChronikHome is exported for use by other packages.
func ChronikHome() string {
	return chronikHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
