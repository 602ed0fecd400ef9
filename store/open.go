package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// DefaultTable is the table used by the SQL backends.
const DefaultTable = "rise_drafts"

// Drivers lists the accepted values of Config.Driver.
var Drivers = []string{"memory", "sqlite", "postgres", "s3"}

// Config selects and configures a backend.
type Config struct {
	Driver   string         `toml:"driver" yaml:"driver"`
	Path     string         `toml:"path" yaml:"path"`
	Table    string         `toml:"table" yaml:"table"`
	Postgres PostgresConfig `toml:"postgres" yaml:"postgres"`
	S3       S3Config       `toml:"s3" yaml:"s3"`

	// Limits for the memory driver. Zero means unlimited.
	MaxKeys      int `toml:"max_keys" yaml:"max_keys"`
	MaxValueSize int `toml:"max_value_size" yaml:"max_value_size"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Driver:   "memory",
		Path:     filepath.Join("data", "rise.db"),
		Table:    DefaultTable,
		Postgres: DefaultPostgresConfig(),
		S3:       S3Config{Bucket: "rise-drafts", Prefix: "drafts"},

		MaxKeys:      100_000,
		MaxValueSize: 1 << 20,
	}
}

func (c Config) Validate() error {
	if c.MaxKeys < 0 || c.MaxValueSize < 0 {
		return fmt.Errorf("store limits must be >= 0")
	}
	switch c.Driver {
	case "memory":
		return nil
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("store path is required for sqlite")
		}
		return nil
	case "postgres":
		return c.Postgres.Validate()
	case "s3":
		return c.S3.Validate()
	default:
		return fmt.Errorf("unknown store driver %q (want one of %v)", c.Driver, Drivers)
	}
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path, cfg.Table)
	case "postgres":
		return OpenPostgres(ctx, cfg.Postgres, cfg.Table)
	case "s3":
		return OpenS3(ctx, cfg.S3)
	default:
		return NewMemory(WithMaxKeys(cfg.MaxKeys), WithMaxValueSize(cfg.MaxValueSize)), nil
	}
}
