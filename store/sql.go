package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// dialect captures the placeholder style of a database/sql driver.
type dialect struct {
	name        string
	placeholder func(n int) string
}

var (
	sqliteDialect   = dialect{name: "sqlite", placeholder: func(int) string { return "?" }}
	postgresDialect = dialect{name: "postgres", placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
)

// SQL is a Store backed by a single key/value table.
type SQL struct {
	db      *sql.DB
	dialect dialect
	table   string

	getQuery    string
	setQuery    string
	deleteQuery string
}

func newSQL(ctx context.Context, db *sql.DB, d dialect, table string) (*SQL, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, table)
	if _, err := db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("creating table: %w", err)
	}

	p := d.placeholder
	return &SQL{
		db:       db,
		dialect:  d,
		table:    table,
		getQuery: fmt.Sprintf("SELECT value FROM %s WHERE key = %s", table, p(1)),
		setQuery: fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES (%s, %s, CURRENT_TIMESTAMP)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			table, p(1), p(2)),
		deleteQuery: fmt.Sprintf("DELETE FROM %s WHERE key = %s", table, p(1)),
	}, nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case errors.Is(err, sql.ErrConnDone):
		return "", false, ErrClosed
	case err != nil:
		return "", false, fmt.Errorf("%s get %q: %w", s.dialect.name, key, err)
	}
	return value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.setQuery, key, value); err != nil {
		return fmt.Errorf("%s set %q: %w", s.dialect.name, key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, key); err != nil {
		return fmt.Errorf("%s delete %q: %w", s.dialect.name, key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return !strings.HasPrefix(strings.ToLower(name), "sqlite_")
}
