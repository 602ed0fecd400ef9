package hostfunc

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Func is a host function callable from interpreted code. Arguments arrive
// as decoded JSON; the returned value is encoded back the same way.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Host is the capability set handed to an interpreter for a single run.
type Host interface {
	// Output appends text to the run's output verbatim.
	Output(text string)

	// Input asks the user for a line of text. ok is false when the user
	// dismissed the prompt.
	Input(ctx context.Context, prompt string) (value string, ok bool, err error)

	// ReadSupportFile returns the contents of a file the interpreter itself
	// needs. Unknown names fail with a *FileNotFoundError.
	ReadSupportFile(name string) (string, error)
}

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a registry holding the same functions.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	if r == nil {
		return c
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, fn := range r.funcs {
		c.funcs[name] = fn
	}
	return c
}

// Bind registers the host callbacks under the names the language shims call:
// output, input, read_file and time_now.
func Bind(r *Registry, host Host) {
	r.Register("output", NewOutput(host))
	r.Register("input", NewInput(host))
	r.Register("read_file", NewReadFile(host))
	r.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
}
