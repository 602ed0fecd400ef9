// Package starlark provides the Starlark (Python dialect) interpreter for
// the editor. It runs in process on go.starlark.net rather than under WASM.
package starlark

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/caffeineduck/rise/executor"
	"github.com/caffeineduck/rise/hostfunc"
	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const contextKey = "rise.context"

// Option configures a Starlark interpreter.
type Option func(*Starlark)

// WithMaxSteps bounds the number of computation steps per run. Zero means
// no bound beyond the caller's context.
func WithMaxSteps(n uint64) Option {
	return func(s *Starlark) {
		s.maxSteps = n
	}
}

// Starlark runs scripts with Python-like top-level control flow enabled:
// while loops, if/for at top level, reassignment of globals and recursion.
type Starlark struct {
	fileOptions *syntax.FileOptions
	predeclared starlark.StringDict
	maxSteps    uint64
}

// New returns a Starlark interpreter with json, math and time predeclared.
func New(opts ...Option) *Starlark {
	s := &Starlark{
		fileOptions: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
			Recursion:       true,
		},
		predeclared: starlark.StringDict{
			"json": starjson.Module,
			"math": starmath.Module,
			"time": startime.Module,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns "starlark".
func (s *Starlark) Name() string { return "starlark" }

// Extension returns ".star".
func (s *Starlark) Extension() string { return ".star" }

// Run executes code. print() goes to host.Output, input() prompts through
// host.Input and load() reads modules with host.ReadSupportFile.
func (s *Starlark) Run(ctx context.Context, code string, host hostfunc.Host) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	predeclared := s.predeclaredFor(host)
	ld := &loader{
		host:        host,
		fileOptions: s.fileOptions,
		predeclared: predeclared,
		cache:       make(map[string]*entry),
	}

	var (
		mu        sync.Mutex
		threads   []*starlark.Thread
		cancelled string
	)
	spawn := func(name string) *starlark.Thread {
		thread := s.newThread(ctx, name, host, ld)
		mu.Lock()
		defer mu.Unlock()
		if cancelled != "" {
			thread.Cancel(cancelled)
		}
		threads = append(threads, thread)
		return thread
	}
	ld.newThread = spawn
	thread := spawn("main")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mu.Lock()
			cancelled = ctx.Err().Error()
			for _, t := range threads {
				t.Cancel(cancelled)
			}
			mu.Unlock()
		case <-done:
		}
	}()

	_, err := starlark.ExecFileOptions(s.fileOptions, thread, "<stdin>", code, predeclared)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return describe(err)
}

func (s *Starlark) newThread(ctx context.Context, name string, host hostfunc.Host, ld *loader) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			host.Output(msg + "\n")
		},
		Load: ld.load,
	}
	thread.SetLocal(contextKey, ctx)
	if s.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.maxSteps)
	}
	return thread
}

func (s *Starlark) predeclaredFor(host hostfunc.Host) starlark.StringDict {
	names := make(starlark.StringDict, len(s.predeclared)+1)
	for k, v := range s.predeclared {
		names[k] = v
	}
	names["input"] = starlark.NewBuiltin("input", inputBuiltin(host))
	return names
}

// inputBuiltin implements input(prompt="") -> str | None.
func inputBuiltin(host hostfunc.Host) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var prompt string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "prompt?", &prompt); err != nil {
			return nil, err
		}
		ctx, _ := thread.Local(contextKey).(context.Context)
		if ctx == nil {
			ctx = context.Background()
		}
		value, ok, err := host.Input(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		if !ok {
			return starlark.None, nil
		}
		return starlark.String(value), nil
	}
}

// describe turns a Starlark failure into the message users see.
func describe(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return executor.NewRuntimeError(evalErr.Backtrace(), err)
	}
	return executor.NewRuntimeError(err.Error(), err)
}

type entry struct {
	globals starlark.StringDict
	err     error
}

// loader resolves load() statements through the host, caching modules for
// the duration of one run and rejecting cycles.
type loader struct {
	host        hostfunc.Host
	fileOptions *syntax.FileOptions
	predeclared starlark.StringDict
	newThread   func(module string) *starlark.Thread

	mu    sync.Mutex
	cache map[string]*entry
}

func (l *loader) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	l.mu.Lock()
	e, ok := l.cache[module]
	if ok {
		l.mu.Unlock()
		if e == nil {
			return nil, fmt.Errorf("cycle in load graph")
		}
		return e.globals, e.err
	}
	// A nil entry marks a load in progress.
	l.cache[module] = nil
	l.mu.Unlock()

	src, err := l.host.ReadSupportFile(module)
	var globals starlark.StringDict
	if err == nil {
		globals, err = starlark.ExecFileOptions(l.fileOptions, l.newThread(module), module, src, l.predeclared)
	}

	l.mu.Lock()
	l.cache[module] = &entry{globals: globals, err: err}
	l.mu.Unlock()
	return globals, err
}
