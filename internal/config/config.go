package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/rumpus/rucho/internal/chaos"
)

// ErrInvalid wraps every validation failure returned by Load and ChaosConfig.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is prepended to environment overrides, e.g. RUCHO_SERVER_LISTEN_PRIMARY.
const EnvPrefix = "RUCHO"

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Chaos     ChaosSection    `mapstructure:"chaos"`

	// File is the config file that was read, or "" when none was found.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	Prefix          string        `mapstructure:"prefix" json:"prefix"`
	ListenPrimary   string        `mapstructure:"listen_primary" json:"listen_primary"`
	ListenSecondary string        `mapstructure:"listen_secondary" json:"listen_secondary"`
	Upstream        string        `mapstructure:"upstream" json:"upstream"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" json:"level"`
	Format     string `mapstructure:"format" json:"format"`
	AccessLog  string `mapstructure:"access_log" json:"access_log"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// RateLimitConfig enables the Redis admission limiter when RedisAddr is set.
type RateLimitConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
}

// ChaosSection is the chaos block as written by the operator. delay_ms is
// kept as a string because it may be the literal "random".
type ChaosSection struct {
	Modes          []string `mapstructure:"modes"`
	FailureRate    float64  `mapstructure:"failure_rate"`
	FailureCodes   []int    `mapstructure:"failure_codes"`
	DelayRate      float64  `mapstructure:"delay_rate"`
	DelayMs        string   `mapstructure:"delay_ms"`
	DelayMaxMs     int      `mapstructure:"delay_max_ms"`
	CorruptionRate float64  `mapstructure:"corruption_rate"`
	CorruptionType string   `mapstructure:"corruption_type"`
	InformHeader   bool     `mapstructure:"inform_header"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.prefix", "/usr/local/rucho")
	v.SetDefault("server.listen_primary", "0.0.0.0:8080")
	v.SetDefault("server.listen_secondary", "0.0.0.0:9090")
	v.SetDefault("server.upstream", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.access_log", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "rucho")

	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("ratelimit.limit", 100)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("chaos.modes", []string{})
	v.SetDefault("chaos.failure_rate", 0.0)
	v.SetDefault("chaos.failure_codes", []int{})
	v.SetDefault("chaos.delay_rate", 0.0)
	v.SetDefault("chaos.delay_ms", "0")
	v.SetDefault("chaos.delay_max_ms", 0)
	v.SetDefault("chaos.corruption_rate", 0.0)
	v.SetDefault("chaos.corruption_type", "")
	v.SetDefault("chaos.inform_header", true)
}

// Load reads defaults, then the config file, then RUCHO_* environment
// variables. An empty path searches for rucho.yaml in the working
// directory and /etc/rucho; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rucho")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rucho")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Chaos.Modes = splitModes(cfg.Chaos.Modes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitModes accepts both ["failure","delay"] and ["failure,delay"].
func splitModes(in []string) []string {
	var out []string
	for _, item := range in {
		for _, m := range strings.Split(item, ",") {
			if m = strings.TrimSpace(strings.ToLower(m)); m != "" {
				out = append(out, m)
			}
		}
	}
	return out
}

// Validate checks server, log and limiter settings, then the chaos section.
func (c *Config) Validate() error {
	err := validation.Errors{
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.ListenPrimary, validation.Required),
			validation.Field(&c.Server.ShutdownTimeout, validation.Min(time.Duration(0))),
		),
		"log": validation.ValidateStruct(&c.Log,
			validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
			validation.Field(&c.Log.Format, validation.In("json", "console")),
		),
		"ratelimit": validation.ValidateStruct(&c.RateLimit,
			validation.Field(&c.RateLimit.Limit, validation.When(c.RateLimit.RedisAddr != "", validation.Required, validation.Min(1))),
			validation.Field(&c.RateLimit.Window, validation.When(c.RateLimit.RedisAddr != "", validation.Required)),
		),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	_, err = c.ChaosConfig()
	return err
}

// ChaosConfig converts and validates the chaos section. It returns nil
// when no modes are enabled.
func (c *Config) ChaosConfig() (*chaos.Config, error) {
	s := c.Chaos
	if len(s.Modes) == 0 {
		return nil, nil
	}

	out := &chaos.Config{
		FailureRate:    s.FailureRate,
		FailureCodes:   s.FailureCodes,
		DelayRate:      s.DelayRate,
		DelayMaxMs:     s.DelayMaxMs,
		CorruptionRate: s.CorruptionRate,
		CorruptionType: chaos.CorruptionType(strings.ToLower(s.CorruptionType)),
		InformHeader:   s.InformHeader,
	}
	for _, m := range s.Modes {
		mode := chaos.Mode(m)
		if !out.Has(mode) {
			out.Modes = append(out.Modes, mode)
		}
	}

	switch d := strings.TrimSpace(strings.ToLower(s.DelayMs)); d {
	case "random":
		out.DelayRandom = true
	case "":
	default:
		ms, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("%w: chaos: delay_ms: must be a non-negative integer or \"random\"", ErrInvalid)
		}
		out.DelayMs = ms
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: chaos: %w", ErrInvalid, err)
	}
	return out, nil
}
