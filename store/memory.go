package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMaxKeys limits the number of distinct keys. Zero means unlimited.
func WithMaxKeys(n int) MemoryOption {
	return func(m *Memory) {
		m.maxKeys = n
	}
}

// WithMaxValueSize limits the size of a stored value in bytes. Zero means
// unlimited.
func WithMaxValueSize(n int) MemoryOption {
	return func(m *Memory) {
		m.maxValueSize = n
	}
}

// Memory is a process-local Store. Contents are lost on exit.
type Memory struct {
	data         map[string]string
	maxKeys      int
	maxValueSize int
	closed       bool
	mu           sync.RWMutex
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{data: make(map[string]string)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	if m.maxValueSize > 0 && len(value) > m.maxValueSize {
		return fmt.Errorf("value too large (%d > %d bytes)", len(value), m.maxValueSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.data[key]; !exists && m.maxKeys > 0 && len(m.data) >= m.maxKeys {
		return fmt.Errorf("too many keys (max %d)", m.maxKeys)
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
