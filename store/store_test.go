package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// exerciseStore checks the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	if err := s.Set(ctx, "k", "first"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "k", "second"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || got != "second" {
		t.Fatalf("Get(k) = %q, %v, %v; want last write", got, ok, err)
	}

	for _, value := range []string{"", "   \n\t", "héllo wörld ✓", "a&b=c%20d+e#f"} {
		if err := s.Set(ctx, "v", value); err != nil {
			t.Fatalf("Set(%q) failed: %v", value, err)
		}
		got, ok, err := s.Get(ctx, "v")
		if err != nil || !ok || got != value {
			t.Errorf("round trip %q = %q, %v, %v", value, got, ok, err)
		}
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key still present after Delete")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryStoreLimits(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(WithMaxKeys(1), WithMaxValueSize(4))

	if err := s.Set(ctx, "a", "12345"); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "a", "2"); err != nil {
		t.Errorf("overwriting an existing key should not count against the limit: %v", err)
	}
	if err := s.Set(ctx, "b", "1"); err == nil || !strings.Contains(err.Error(), "too many keys") {
		t.Errorf("expected key limit error, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemory()
	s.Close()
	if _, _, err := s.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Set(context.Background(), "k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rise.db")
	s, err := OpenSQLite(context.Background(), path, "")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rise.db")

	s, err := OpenSQLite(ctx, path, "drafts")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := s.Set(ctx, "k", "kept"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path, "drafts")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if got, ok, err := s.Get(ctx, "k"); err != nil || !ok || got != "kept" {
		t.Errorf("Get after reopen = %q, %v, %v", got, ok, err)
	}
}

func TestSQLiteRejectsBadTable(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), "drafts; DROP TABLE x")
	if err == nil || !strings.Contains(err.Error(), "invalid table name") {
		t.Errorf("expected invalid table error, got %v", err)
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("RISE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("RISE_TEST_POSTGRES_URL not set")
	}
	cfg := DefaultPostgresConfig()
	cfg.URL = url

	s, err := OpenPostgres(context.Background(), cfg, "rise_drafts_test")
	if err != nil {
		t.Fatalf("OpenPostgres failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestS3Store(t *testing.T) {
	endpoint := os.Getenv("RISE_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("RISE_TEST_S3_ENDPOINT not set")
	}
	cfg := S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("RISE_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("RISE_TEST_S3_SECRET_KEY"),
		Bucket:    "rise-test",
		Prefix:    "drafts",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := OpenS3(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenS3 failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PostgresConfig)
		wantErr string
	}{
		{"valid", func(c *PostgresConfig) {}, ""},
		{"missing url", func(c *PostgresConfig) { c.URL = "" }, "url is required"},
		{"zero ping", func(c *PostgresConfig) { c.PingTimeout = 0 }, "ping_timeout"},
		{"idle above open", func(c *PostgresConfig) { c.MaxIdleConns = 20 }, "max_idle_conns must be <="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPostgresConfig()
			cfg.URL = "postgres://localhost/rise"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Driver = "etcd"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "unknown store driver") {
		t.Errorf("expected unknown driver error, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.MaxKeys = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected negative limit to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Driver = "s3"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("expected s3 endpoint error, got %v", err)
	}
}

func TestOpenByDriver(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DefaultConfig())
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", s)
	}
	s.Close()

	cfg := DefaultConfig()
	cfg.MaxKeys = 1
	cfg.MaxValueSize = 4
	s, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(memory) with limits failed: %v", err)
	}
	if err := s.Set(ctx, "a", "12345"); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected configured size limit, got %v", err)
	}
	s.Set(ctx, "a", "1")
	if err := s.Set(ctx, "b", "1"); err == nil || !strings.Contains(err.Error(), "too many keys") {
		t.Errorf("expected configured key limit, got %v", err)
	}
	s.Close()

	cfg = DefaultConfig()
	cfg.Driver = "sqlite"
	cfg.Path = filepath.Join(t.TempDir(), "rise.db")
	s, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(sqlite) failed: %v", err)
	}
	if _, ok := s.(*SQL); !ok {
		t.Errorf("expected *SQL, got %T", s)
	}
	s.Close()
}

func TestDrafts(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	alice := NewDrafts(s, "alice")
	bob := NewDrafts(s, "bob")

	if _, ok, err := alice.Load(ctx); err != nil || ok {
		t.Fatalf("fresh Load = ok %v, err %v", ok, err)
	}

	if err := alice.Save(ctx, "print(1)"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := alice.Save(ctx, "print(2)"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got, ok, _ := alice.Load(ctx); !ok || got != "print(2)" {
		t.Errorf("Load = %q, %v; want last save", got, ok)
	}
	if _, ok, _ := bob.Load(ctx); ok {
		t.Error("drafts leaked across namespaces")
	}
	if s.Len() != 1 {
		t.Errorf("expected one stored draft, got %d", s.Len())
	}

	if _, ok, _ := s.Get(ctx, "alice/"+DraftKey); !ok {
		t.Error("draft not stored under the well-known key")
	}

	if err := alice.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := alice.Load(ctx); ok {
		t.Error("draft still present after Clear")
	}
}

func TestDraftsWrapErrors(t *testing.T) {
	s := NewMemory()
	s.Close()
	_, _, err := NewDrafts(s, "").Load(context.Background())
	if !errors.Is(err, ErrClosed) || !strings.HasPrefix(err.Error(), "load draft:") {
		t.Errorf("unexpected error %v", err)
	}
}
