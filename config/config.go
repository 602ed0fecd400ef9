// Package config loads rise settings from a TOML or YAML file, applies
// RISE_* environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caffeineduck/rise/config/env"
	"github.com/caffeineduck/rise/executor"
	"github.com/caffeineduck/rise/hostfunc"
	"github.com/caffeineduck/rise/store"
	"gopkg.in/yaml.v3"
)

// Languages accepted by Runtime.Language.
var Languages = []string{"starlark", "javascript"}

type Config struct {
	Server  Server       `toml:"server" yaml:"server"`
	Store   store.Config `toml:"store" yaml:"store"`
	Runtime Runtime      `toml:"runtime" yaml:"runtime"`
	Log     Log          `toml:"log" yaml:"log"`
}

type Server struct {
	Addr            string        `toml:"addr" yaml:"addr"`
	BaseURL         string        `toml:"base_url" yaml:"base_url"`
	SessionTTL      time.Duration `toml:"session_ttl" yaml:"session_ttl"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxSourceSize   int           `toml:"max_source_size" yaml:"max_source_size"`
}

type Runtime struct {
	Language    string        `toml:"language" yaml:"language"`
	Timeout     time.Duration `toml:"timeout" yaml:"timeout"`
	MemoryLimit string        `toml:"memory_limit" yaml:"memory_limit"`
	MaxSteps    uint64        `toml:"max_steps" yaml:"max_steps"`
	QuickJSPath string        `toml:"quickjs_path" yaml:"quickjs_path"`
	DiskCache   bool          `toml:"disk_cache" yaml:"disk_cache"`
	// Mounts are "virtual:host" pairs exposing host files as support files.
	Mounts []string `toml:"mounts" yaml:"mounts"`
}

type Log struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			SessionTTL:      30 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			MaxSourceSize:   1 << 20,
		},
		Store: store.DefaultConfig(),
		Runtime: Runtime{
			Language:    "starlark",
			Timeout:     30 * time.Second,
			MemoryLimit: "256mb",
			DiskCache:   true,
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml, or .yaml/.yml.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (use .toml or .yaml)", filepath.Ext(path))
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RISE_* environment variables.
func (c *Config) ApplyEnv() error {
	var err error

	c.Server.Addr = env.String("RISE_ADDR", c.Server.Addr)
	c.Server.BaseURL = env.String("RISE_BASE_URL", c.Server.BaseURL)
	if c.Server.SessionTTL, err = env.Duration("RISE_SESSION_TTL", c.Server.SessionTTL); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout, err = env.Duration("RISE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout); err != nil {
		return err
	}
	if c.Server.MaxSourceSize, err = env.Int("RISE_MAX_SOURCE_SIZE", c.Server.MaxSourceSize); err != nil {
		return err
	}

	c.Store.Driver = env.String("RISE_STORE_DRIVER", c.Store.Driver)
	c.Store.Path = env.String("RISE_STORE_PATH", c.Store.Path)
	c.Store.Table = env.String("RISE_STORE_TABLE", c.Store.Table)
	if c.Store.MaxKeys, err = env.Int("RISE_STORE_MAX_KEYS", c.Store.MaxKeys); err != nil {
		return err
	}
	if c.Store.MaxValueSize, err = env.Int("RISE_STORE_MAX_VALUE_SIZE", c.Store.MaxValueSize); err != nil {
		return err
	}
	c.Store.Postgres.URL = env.String("RISE_DATABASE_URL", c.Store.Postgres.URL)
	if c.Store.Postgres.PingTimeout, err = env.Duration("RISE_DATABASE_PING_TIMEOUT", c.Store.Postgres.PingTimeout); err != nil {
		return err
	}
	if c.Store.Postgres.MaxOpenConns, err = env.Int("RISE_DATABASE_MAX_OPEN_CONNS", c.Store.Postgres.MaxOpenConns); err != nil {
		return err
	}
	c.Store.S3.Endpoint = env.String("RISE_S3_ENDPOINT", c.Store.S3.Endpoint)
	c.Store.S3.AccessKey = env.String("RISE_S3_ACCESS_KEY", c.Store.S3.AccessKey)
	c.Store.S3.SecretKey = env.String("RISE_S3_SECRET_KEY", c.Store.S3.SecretKey)
	c.Store.S3.Region = env.String("RISE_S3_REGION", c.Store.S3.Region)
	c.Store.S3.Bucket = env.String("RISE_S3_BUCKET", c.Store.S3.Bucket)
	if c.Store.S3.UseSSL, err = env.Bool("RISE_S3_USE_SSL", c.Store.S3.UseSSL); err != nil {
		return err
	}

	c.Runtime.Language = env.String("RISE_LANGUAGE", c.Runtime.Language)
	if c.Runtime.Timeout, err = env.Duration("RISE_TIMEOUT", c.Runtime.Timeout); err != nil {
		return err
	}
	c.Runtime.MemoryLimit = env.String("RISE_MEMORY_LIMIT", c.Runtime.MemoryLimit)
	if c.Runtime.MaxSteps, err = env.Uint64("RISE_MAX_STEPS", c.Runtime.MaxSteps); err != nil {
		return err
	}
	c.Runtime.QuickJSPath = env.String("RISE_QJS_WASM", c.Runtime.QuickJSPath)
	if c.Runtime.DiskCache, err = env.Bool("RISE_DISK_CACHE", c.Runtime.DiskCache); err != nil {
		return err
	}
	c.Runtime.Mounts = env.List("RISE_MOUNTS", c.Runtime.Mounts)

	c.Log.Level = env.String("RISE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = env.String("RISE_LOG_FORMAT", c.Log.Format)
	return nil
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is required")
	}
	if c.Server.SessionTTL <= 0 {
		return errors.New("server session_ttl must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown_timeout must be positive")
	}
	if c.Server.MaxSourceSize < 1 {
		return errors.New("server max_source_size must be >= 1")
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if _, err := NormalizeLanguage(c.Runtime.Language); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	if c.Runtime.Timeout < 0 {
		return errors.New("runtime timeout must be >= 0")
	}
	if c.Runtime.MemoryLimit != "" && executor.ParseMemoryLimit(c.Runtime.MemoryLimit) == 0 {
		return fmt.Errorf("runtime memory_limit %q is not one of 1mb, 16mb, 64mb, 256mb, 1gb", c.Runtime.MemoryLimit)
	}
	if _, err := c.Runtime.ParseMounts(); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log format %q is not one of console, json", c.Log.Format)
	}
	return nil
}

// ParseMounts converts Mounts into host mounts.
func (r Runtime) ParseMounts() ([]hostfunc.Mount, error) {
	mounts := make([]hostfunc.Mount, 0, len(r.Mounts))
	for _, spec := range r.Mounts {
		m, err := ParseMount(spec)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}

// ParseMount parses "virtual:host".
func ParseMount(spec string) (hostfunc.Mount, error) {
	virtual, host, ok := strings.Cut(spec, ":")
	if !ok || virtual == "" || host == "" {
		return hostfunc.Mount{}, fmt.Errorf("invalid mount spec %q (expected virtual:host)", spec)
	}
	return hostfunc.Mount{VirtualPath: virtual, HostPath: host}, nil
}

// NormalizeLanguage maps aliases (python, py, star, js) to a name in
// Languages.
func NormalizeLanguage(name string) (string, error) {
	switch strings.ToLower(name) {
	case "starlark", "star", "python", "py":
		return "starlark", nil
	case "javascript", "js":
		return "javascript", nil
	default:
		return "", fmt.Errorf("unknown language %q: use starlark or javascript", name)
	}
}
