// Package config loads the schnorrkel daemon and CLI configuration from a
// YAML file, then applies SCHNORRKEL_* environment overrides.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
	"github.com/aa-schnorr/schnorrkel/adapters"
	"github.com/aa-schnorr/schnorrkel/mailbox"
)

// Config is the full configuration
type Config struct {
	Curve   string        `yaml:"curve"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Mailbox MailboxConfig `yaml:"mailbox"`
	Session SessionConfig `yaml:"session"`
	Module  ModuleConfig  `yaml:"module"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Development bool   `yaml:"development"`
}

type MailboxConfig struct {
	// Backend is "memory" or "redis"
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	TTL          time.Duration `yaml:"ttl"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type SessionConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ModuleConfig is the validation module registry: a default deployment and
// the addresses of released versions.
type ModuleConfig struct {
	DefaultAddress string            `yaml:"default_address"`
	DefaultVersion string            `yaml:"default_version"`
	Versions       map[string]string `yaml:"versions"`
}

type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint; empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Curve: "secp256k1",
		Store: StoreConfig{Dir: "schnorrkel-data"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Mailbox: MailboxConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:         "127.0.0.1:6379",
				Prefix:       "schnorrkel",
				TTL:          10 * time.Minute,
				PollInterval: 50 * time.Millisecond,
			},
		},
		Session: SessionConfig{Timeout: 2 * time.Minute},
		Module: ModuleConfig{
			DefaultVersion: "V1_0_0",
			Versions:       map[string]string{},
		},
	}
}

// overrides lists every setting that can come from the environment.
// Unset variables leave the file value in place.
type overrides struct {
	Curve         string        `env:"SCHNORRKEL_CURVE" usage:"curve engine: secp256k1 or ed25519"`
	StoreDir      string        `env:"SCHNORRKEL_STORE_DIR" usage:"badger data directory"`
	LogLevel      string        `env:"SCHNORRKEL_LOG_LEVEL" usage:"debug, info, warn or error"`
	LogFile       string        `env:"SCHNORRKEL_LOG_FILE" usage:"rotate logs into this file instead of stderr"`
	Backend       string        `env:"SCHNORRKEL_MAILBOX_BACKEND" usage:"memory or redis"`
	RedisAddr     string        `env:"SCHNORRKEL_REDIS_ADDR" usage:"redis host:port"`
	RedisPassword string        `env:"SCHNORRKEL_REDIS_PASSWORD" usage:"redis password"`
	RedisDB       int           `env:"SCHNORRKEL_REDIS_DB" usage:"redis database number"`
	RedisPrefix   string        `env:"SCHNORRKEL_REDIS_PREFIX" usage:"key prefix for mailbox sessions"`
	RedisTTL      time.Duration `env:"SCHNORRKEL_REDIS_TTL" usage:"idle session lifetime"`
	Timeout       time.Duration `env:"SCHNORRKEL_SESSION_TIMEOUT" usage:"how long a coordinator waits for a session"`
	ModuleAddress string        `env:"SCHNORRKEL_MODULE_ADDRESS" usage:"default validation module address"`
	ModuleVersion string        `env:"SCHNORRKEL_MODULE_VERSION" usage:"default validation module version"`
	MetricsListen string        `env:"SCHNORRKEL_METRICS_LISTEN" usage:"metrics endpoint address"`
}

// Load reads path (skipped when empty) over the defaults and applies the
// process environment.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// load is Load with an injectable environment source.
func load(path string, source env.Source) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(source); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(source env.Source) error {
	o := overrides{
		Curve:         c.Curve,
		StoreDir:      c.Store.Dir,
		LogLevel:      c.Log.Level,
		LogFile:       c.Log.File,
		Backend:       c.Mailbox.Backend,
		RedisAddr:     c.Mailbox.Redis.Addr,
		RedisPassword: c.Mailbox.Redis.Password,
		RedisDB:       c.Mailbox.Redis.DB,
		RedisPrefix:   c.Mailbox.Redis.Prefix,
		RedisTTL:      c.Mailbox.Redis.TTL,
		Timeout:       c.Session.Timeout,
		ModuleAddress: c.Module.DefaultAddress,
		ModuleVersion: c.Module.DefaultVersion,
		MetricsListen: c.Metrics.Listen,
	}
	opts := &env.Options{SliceSep: ","}
	if source != nil {
		opts.Source = source
	}
	if err := env.Load(&o, opts); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}

	c.Curve = o.Curve
	c.Store.Dir = o.StoreDir
	c.Log.Level = o.LogLevel
	c.Log.File = o.LogFile
	c.Mailbox.Backend = o.Backend
	c.Mailbox.Redis.Addr = o.RedisAddr
	c.Mailbox.Redis.Password = o.RedisPassword
	c.Mailbox.Redis.DB = o.RedisDB
	c.Mailbox.Redis.Prefix = o.RedisPrefix
	c.Mailbox.Redis.TTL = o.RedisTTL
	c.Session.Timeout = o.Timeout
	c.Module.DefaultAddress = o.ModuleAddress
	c.Module.DefaultVersion = o.ModuleVersion
	c.Metrics.Listen = o.MetricsListen
	return nil
}

// PrintEnvUsage writes the supported environment variables to w
func PrintEnvUsage(w io.Writer) {
	env.Usage(&overrides{}, w, &env.Options{SliceSep: ","})
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// CurveEngine builds the configured curve
func (c *Config) CurveEngine() (schnorrkel.Curve, error) {
	curve, err := schnorrkel.NewCurve(schnorrkel.CurveType(c.Curve))
	if err != nil {
		return nil, schnorrkel.ErrInvalidConfiguration.WithCause(err)
	}
	return curve, nil
}

// RedisOptions maps the redis section onto the mailbox options
func (c *Config) RedisOptions() mailbox.RedisOptions {
	return mailbox.RedisOptions{
		Addr:         c.Mailbox.Redis.Addr,
		Password:     c.Mailbox.Redis.Password,
		DB:           c.Mailbox.Redis.DB,
		Prefix:       c.Mailbox.Redis.Prefix,
		TTL:          c.Mailbox.Redis.TTL,
		PollInterval: c.Mailbox.Redis.PollInterval,
	}
}

// Registry builds the validation module registry. Call Validate first; bad
// addresses are skipped here.
func (c *Config) Registry() adapters.ModuleRegistry {
	reg := adapters.ModuleRegistry{
		DefaultVersion: c.Module.DefaultVersion,
		Versions:       make(map[string]common.Address, len(c.Module.Versions)),
	}
	if common.IsHexAddress(c.Module.DefaultAddress) {
		reg.DefaultAddress = common.HexToAddress(c.Module.DefaultAddress)
	}
	for version, addr := range c.Module.Versions {
		if common.IsHexAddress(addr) {
			reg.Versions[version] = common.HexToAddress(addr)
		}
	}
	return reg
}
