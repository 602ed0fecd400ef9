package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	URL             string        `toml:"url" yaml:"url"`
	PingTimeout     time.Duration `toml:"ping_timeout" yaml:"ping_timeout"`
	MaxOpenConns    int           `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DefaultPostgresConfig returns pool settings suitable for a single server.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		PingTimeout:     2 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func (c PostgresConfig) Validate() error {
	if c.URL == "" {
		return errors.New("postgres url is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("postgres ping_timeout must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("postgres max_open_conns must be >= 1")
	}
	if c.MaxIdleConns < 0 {
		return errors.New("postgres max_idle_conns must be >= 0")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("postgres max_idle_conns must be <= max_open_conns")
	}
	if c.ConnMaxLifetime < 0 {
		return errors.New("postgres conn_max_lifetime must be >= 0")
	}
	return nil
}

// OpenPostgres connects through the pgx database/sql driver, verifies the
// connection with a bounded ping and creates table if needed.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, table string) (*SQL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s, err := newSQL(ctx, db, postgresDialect, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
