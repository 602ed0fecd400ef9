package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caffeineduck/rise/executor"
	"github.com/caffeineduck/rise/hostfunc"
	"go.uber.org/zap"
)

// Interpreter runs source text against a host.
type Interpreter interface {
	Name() string
	// Extension is the file extension for saved scripts, including the dot.
	Extension() string
	Run(ctx context.Context, code string, host hostfunc.Host) error
}

// Environment supplies the interactive half of a run's host: input prompts
// and support files. Output always goes to the bridge's OutputBuffer.
type Environment interface {
	Input(ctx context.Context, prompt string) (value string, ok bool, err error)
	ReadSupportFile(name string) (string, error)
}

// Outcome tags an ExecutionResult.
type Outcome int

const (
	Completed Outcome = iota
	Failed
	// Superseded marks a run that was replaced by a newer one before it
	// finished. It appended nothing after the newer run started.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Superseded:
		return "superseded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ExecutionResult is the outcome of one run. Err is set for Failed.
type ExecutionResult struct {
	Outcome Outcome
	Elapsed time.Duration
	Err     error
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithRunTimeout bounds every run. Zero disables the bound.
func WithRunTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.timeout = d
	}
}

// WithBridgeLogger sets the logger for run lifecycle events.
func WithBridgeLogger(logger *zap.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// Bridge runs source through an Interpreter into an OutputBuffer, one run at
// a time.
type Bridge struct {
	output  *OutputBuffer
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	token  uint64
	cancel context.CancelFunc
}

// NewBridge returns a Bridge writing to output.
func NewBridge(output *OutputBuffer, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		output: output,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start clears the output and begins running source. Any run still in
// flight is cancelled and its result becomes Superseded. The channel
// receives exactly one result.
func (b *Bridge) Start(ctx context.Context, interp Interpreter, source string, env Environment) <-chan ExecutionResult {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.token++
	token := b.token

	var runCtx context.Context
	var cancel context.CancelFunc
	if b.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, b.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	b.cancel = cancel
	b.output.Reset()
	b.mu.Unlock()

	host := &runHost{bridge: b, token: token, env: env}
	done := make(chan ExecutionResult, 1)

	go func() {
		defer cancel()

		start := time.Now()
		err := b.invoke(runCtx, interp, source, host)
		elapsed := time.Since(start)

		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %v", executor.ErrTimeout, b.timeout)
		}

		result := b.finish(token, elapsed, err)
		b.logger.Debug("run finished",
			zap.String("language", interp.Name()),
			zap.Uint64("run", token),
			zap.Stringer("outcome", result.Outcome),
			zap.Duration("elapsed", elapsed),
			zap.Error(result.Err))
		done <- result
	}()

	return done
}

// Run is Start followed by waiting for the result.
func (b *Bridge) Run(ctx context.Context, interp Interpreter, source string, env Environment) ExecutionResult {
	return <-b.Start(ctx, interp, source, env)
}

// Cancel stops the run in flight, if any. Its result is Failed with the
// context error unless a newer run has started.
func (b *Bridge) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

// Busy reports whether a run is in flight.
func (b *Bridge) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

// invoke runs the interpreter, turning a panic into an error.
func (b *Bridge) invoke(ctx context.Context, interp Interpreter, source string, host hostfunc.Host) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("interpreter panic", zap.String("language", interp.Name()), zap.Any("panic", r))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return interp.Run(ctx, source, host)
}

func (b *Bridge) finish(token uint64, elapsed time.Duration, err error) ExecutionResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if token != b.token {
		return ExecutionResult{Outcome: Superseded, Elapsed: elapsed, Err: err}
	}
	b.cancel = nil

	if err != nil {
		b.output.Append(err.Error() + "\n")
		b.output.Append(completionAnnotation(elapsed))
		return ExecutionResult{Outcome: Failed, Elapsed: elapsed, Err: err}
	}
	b.output.Append(completionAnnotation(elapsed))
	return ExecutionResult{Outcome: Completed, Elapsed: elapsed}
}

// current reports whether token is the latest run. Callers hold b.mu.
func (b *Bridge) current(token uint64) bool {
	return token == b.token
}

// runHost is the hostfunc.Host for one run. Once a newer run starts it
// drops output and refuses prompts.
type runHost struct {
	bridge *Bridge
	token  uint64
	env    Environment
}

func (h *runHost) Output(text string) {
	h.bridge.mu.Lock()
	defer h.bridge.mu.Unlock()
	if h.bridge.current(h.token) {
		h.bridge.output.Append(text)
	}
}

func (h *runHost) Input(ctx context.Context, prompt string) (string, bool, error) {
	h.bridge.mu.Lock()
	stale := !h.bridge.current(h.token)
	h.bridge.mu.Unlock()
	if stale {
		return "", false, context.Canceled
	}
	if h.env == nil {
		return "", false, nil
	}
	return h.env.Input(ctx, prompt)
}

func (h *runHost) ReadSupportFile(name string) (string, error) {
	if h.env == nil {
		return "", &hostfunc.FileNotFoundError{Name: name}
	}
	return h.env.ReadSupportFile(name)
}
