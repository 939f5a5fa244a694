// Package config loads subrelayd configuration from a YAML file and
// SUBRELAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rzbill/subrelay/pkg/log"
	"github.com/spf13/viper"
)

// DefaultHTTPPort is the default listen port.
const DefaultHTTPPort = 8787

// EnvPrefix prefixes every environment override, e.g. SUBRELAY_ADMIN_PASSWORD.
const EnvPrefix = "SUBRELAY"

// Store drivers.
const (
	StoreBadger = "badger"
	StoreMemory = "memory"
)

type Server struct {
	HTTPAddr        string        `yaml:"http_address" mapstructure:"http_address"`
	AdminTimeout    time.Duration `yaml:"admin_timeout" mapstructure:"admin_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type Store struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
}

type Admin struct {
	Password string `yaml:"password" mapstructure:"password"`
}

type Session struct {
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	PruneSchedule string        `yaml:"prune_schedule" mapstructure:"prune_schedule"`
}

type Backend struct {
	// Timeout bounds each backend call; zero leaves it to the request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type Subscription struct {
	ExposeDebug bool `yaml:"expose_debug" mapstructure:"expose_debug"`
}

type Config struct {
	Server       Server       `yaml:"server" mapstructure:"server"`
	DataDir      string       `yaml:"data_dir" mapstructure:"data_dir"`
	Store        Store        `yaml:"store" mapstructure:"store"`
	Admin        Admin        `yaml:"admin" mapstructure:"admin"`
	Session      Session      `yaml:"session" mapstructure:"session"`
	Backend      Backend      `yaml:"backend" mapstructure:"backend"`
	Subscription Subscription `yaml:"subscription" mapstructure:"subscription"`
	Log          log.Config   `yaml:"log" mapstructure:"log"`

	// Source is the file the values were read from, empty when none was found.
	Source string `yaml:"-" mapstructure:"-"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			HTTPAddr:        fmt.Sprintf(":%d", DefaultHTTPPort),
			AdminTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		DataDir:      defaultDataDir(),
		Store:        Store{Driver: StoreBadger},
		Session:      Session{TTL: 3 * time.Hour, PruneSchedule: "@every 10m"},
		Subscription: Subscription{ExposeDebug: true},
		Log:          log.Config{Level: "info", Format: "text"},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "subrelay")
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return "./data"
	}
	return filepath.Join(home, ".subrelay")
}

// setDefaults registers every key so that environment variables bind even
// when the file does not mention them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.http_address", d.Server.HTTPAddr)
	v.SetDefault("server.admin_timeout", d.Server.AdminTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("admin.password", "")
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.prune_schedule", d.Session.PruneSchedule)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("subscription.expose_debug", d.Subscription.ExposeDebug)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.enable_caller", false)
}

// Load reads configuration. When path is empty, subrelay.yaml is searched
// in the working directory and /etc/subrelay/; a missing file is not an
// error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := Default()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("subrelay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")              // Local development override
		v.AddConfigPath("/etc/subrelay/") // System-wide production config
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Admin.Password == "" {
		return fmt.Errorf("admin.password is required (or set %s_ADMIN_PASSWORD)", EnvPrefix)
	}
	switch c.Store.Driver {
	case StoreBadger:
		if c.DataDir == "" {
			return fmt.Errorf("data_dir is required for the badger store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Session.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.Session.PruneSchedule); err != nil {
			return fmt.Errorf("invalid session.prune_schedule: %w", err)
		}
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// StorePath is where the badger store keeps its files.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "store")
}
