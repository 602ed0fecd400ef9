// Package store persists editor drafts behind a small key-value interface.
//
// Backends: an in-memory map, SQLite (modernc.org/sqlite), PostgreSQL
// (pgx through database/sql) and S3-compatible object storage (minio-go).
package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store maps string keys to string values. Set overwrites; the last write
// for a key wins.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
