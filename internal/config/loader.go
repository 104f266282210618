package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures configuration values for the rehearsal scheduler service.
type Config struct {
	HTTPPort  int    `yaml:"http_port"`
	SQLiteDSN string `yaml:"sqlite_dsn"`

	Redis RedisConfig `yaml:"redis"`

	LookaheadDays   int    `yaml:"lookahead_days"`
	Timezone        string `yaml:"timezone"`
	SuggestionLimit int    `yaml:"suggestion_limit"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	AutoCompleteInterval time.Duration `yaml:"autocomplete_interval"`

	LogLevel   string `yaml:"log_level"`
	LogConsole bool   `yaml:"log_console"`

	// Location is Timezone resolved by Load.
	Location *time.Location `yaml:"-"`
}

// RedisConfig configures the notification gateway. An empty Addr disables it.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// RateLimitConfig bounds requests per client over a rolling window.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	// TrustActingUser keys clients by the acting user header instead of the
	// remote address. Set it when a gateway owns that header.
	TrustActingUser bool `yaml:"trust_acting_user"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Lookahead returns the widest availability window as a duration.
func (c Config) Lookahead() time.Duration {
	return time.Duration(c.LookaheadDays) * 24 * time.Hour
}

func defaults() Config {
	return Config{
		HTTPPort:  8080,
		SQLiteDSN: "file:rehearsals.db?_pragma=foreign_keys(1)",
		Redis: RedisConfig{
			ChannelPrefix: "band:",
		},
		LookaheadDays:   365,
		Timezone:        "UTC",
		SuggestionLimit: 20,
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   15 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		LogLevel: "info",
	}
}

// Load assembles configuration from, in increasing precedence, built-in
// defaults, an optional YAML file named by SCHEDULER_CONFIG_FILE and
// SCHEDULER_* environment variables. A .env file (or SCHEDULER_ENV_FILE) is
// loaded first when present and never overrides variables already set.
//
// Every invalid key is reported in a single error.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("SCHEDULER_ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	invalid := make([]string, 0, 4)
	env := envReader{invalid: &invalid}

	env.positiveInt("SCHEDULER_HTTP_PORT", &cfg.HTTPPort)
	env.str("SCHEDULER_SQLITE_DSN", &cfg.SQLiteDSN)
	env.str("SCHEDULER_REDIS_ADDR", &cfg.Redis.Addr)
	env.str("SCHEDULER_REDIS_PASSWORD", &cfg.Redis.Password)
	env.nonNegativeInt("SCHEDULER_REDIS_DB", &cfg.Redis.DB)
	env.str("SCHEDULER_REDIS_CHANNEL_PREFIX", &cfg.Redis.ChannelPrefix)
	env.positiveInt("SCHEDULER_LOOKAHEAD_DAYS", &cfg.LookaheadDays)
	env.str("SCHEDULER_TIMEZONE", &cfg.Timezone)
	env.nonNegativeInt("SCHEDULER_SUGGESTION_LIMIT", &cfg.SuggestionLimit)
	env.positiveInt("SCHEDULER_RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	env.duration("SCHEDULER_RATE_LIMIT_WINDOW", &cfg.RateLimit.Window, false)
	env.boolean("SCHEDULER_RATE_LIMIT_TRUST_ACTING_USER", &cfg.RateLimit.TrustActingUser)
	env.boolean("SCHEDULER_METRICS_ENABLED", &cfg.Metrics.Enabled)
	env.positiveInt("SCHEDULER_METRICS_PORT", &cfg.Metrics.Port)
	env.duration("SCHEDULER_AUTOCOMPLETE_INTERVAL", &cfg.AutoCompleteInterval, true)
	env.str("SCHEDULER_LOG_LEVEL", &cfg.LogLevel)
	env.boolean("SCHEDULER_LOG_CONSOLE", &cfg.LogConsole)

	if cfg.LookaheadDays <= 0 {
		invalid = append(invalid, "lookahead_days")
	}
	if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
		invalid = append(invalid, "rate_limit")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		invalid = append(invalid, "SCHEDULER_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

type envReader struct {
	invalid *[]string
}

func (r envReader) lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

func (r envReader) fail(key string) {
	*r.invalid = append(*r.invalid, key)
}

func (r envReader) str(key string, dst *string) {
	if value, ok := r.lookup(key); ok {
		*dst = value
	}
}

func (r envReader) positiveInt(key string, dst *int) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		r.fail(key)
		return
	}
	*dst = n
}

func (r envReader) nonNegativeInt(key string, dst *int) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		r.fail(key)
		return
	}
	*dst = n
}

func (r envReader) duration(key string, dst *time.Duration, allowZero bool) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		r.fail(key)
		return
	}
	*dst = d
}

func (r envReader) boolean(key string, dst *bool) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key)
		return
	}
	*dst = b
}
