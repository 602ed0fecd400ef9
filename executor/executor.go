package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/rise/hostfunc"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

// Result holds the metadata from code execution. Output is streamed to the
// Host while the code runs and is not collected here.
type Result struct {
	Duration time.Duration
	Error    error
}

// Executor manages the WASM runtime and compiled module caching.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	registry *hostfunc.Registry
	logger   *zap.Logger
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor. Functions in registry are available to every run
// in addition to the per-run host callbacks.
func New(registry *hostfunc.Registry, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	e := &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
		registry: registry,
		logger:   cfg.logger,
	}

	for _, lang := range cfg.precompile {
		if _, err := e.getCompiled(ctx, lang); err != nil {
			e.Close()
			return nil, fmt.Errorf("precompile %s: %w", lang.Name(), err)
		}
	}

	return e, nil
}

// Run executes code in the specified language. Output is delivered to host
// as it is produced; input prompts and support-file reads go through host.
func (e *Executor) Run(ctx context.Context, lang Language, code string, host hostfunc.Host, opts ...Option) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	compiled, err := e.getCompiled(ctx, lang)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}

	registry := e.registry.Clone()
	hostfunc.Bind(registry, host)

	stdinReader, stdinWriter := io.Pipe()
	protocol := newProtocolHandler(ctx, registry, stdinWriter)

	args := lang.Args(lang.WrapCode(code))

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(outputWriter{host}).
		WithStderr(protocol).
		WithStdin(stdinReader).
		WithArgs(args...).
		WithName("")

	errCh := make(chan error, 1)
	go func() {
		mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		if mod != nil {
			mod.Close(context.Background())
		}
		stdinReader.Close()
		stdinWriter.Close()
		errCh <- err
	}()

	err = <-errCh
	result := Result{Duration: time.Since(start)}

	stderr := protocol.Stderr()
	switch {
	case err == nil:
		if stderr != "" {
			host.Output(stderr)
		}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Error = fmt.Errorf("%w after %v", ErrTimeout, cfg.timeout)
	case ctx.Err() != nil:
		result.Error = ctx.Err()
	default:
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && stderr == "" {
			stderr = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		}
		result.Error = NewRuntimeError(stderr, err)
	}

	e.logger.Debug("run finished",
		zap.String("language", lang.Name()),
		zap.Duration("duration", result.Duration),
		zap.Error(result.Error))

	return result
}

// outputWriter forwards interpreter stdout to the host verbatim.
type outputWriter struct {
	host hostfunc.Host
}

func (w outputWriter) Write(p []byte) (int, error) {
	w.host.Output(string(p))
	return len(p), nil
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (e *Executor) getCompiled(ctx context.Context, lang Language) (wazero.CompiledModule, error) {
	name := lang.Name()

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		return compiled, nil
	}

	compileStart := time.Now()
	compiled, err := e.runtime.CompileModule(ctx, lang.Module())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	e.logger.Info("compiled language module",
		zap.String("language", name),
		zap.Duration("duration", time.Since(compileStart)))

	e.compiled[name] = compiled
	return compiled, nil
}

// Interpreter binds a Language to this Executor so it can be handed to
// callers that only know how to run source against a Host.
func (e *Executor) Interpreter(lang Language, opts ...Option) *Interpreter {
	return &Interpreter{exec: e, lang: lang, opts: opts}
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "rise")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "rise")
	}
	return filepath.Join(os.TempDir(), "rise-cache")
}

// Interpreter runs source for one WASM Language.
type Interpreter struct {
	exec *Executor
	lang Language
	opts []Option
}

func (i *Interpreter) Name() string      { return i.lang.Name() }
func (i *Interpreter) Extension() string { return i.lang.Extension() }

// Run executes code and returns the run's error, if any.
func (i *Interpreter) Run(ctx context.Context, code string, host hostfunc.Host) error {
	return i.exec.Run(ctx, i.lang, code, host, i.opts...).Error
}
