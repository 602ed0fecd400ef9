package starlark

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/rise/executor"
	"github.com/caffeineduck/rise/hostfunc"
)

type testHost struct {
	mu      sync.Mutex
	output  strings.Builder
	answer  *string
	prompts []string
	files   map[string]string
	reads   int
}

func (h *testHost) Output(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.output.WriteString(text)
}

func (h *testHost) Input(ctx context.Context, prompt string) (string, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, prompt)
	if h.answer == nil {
		return "", false, nil
	}
	return *h.answer, true, nil
}

func (h *testHost) ReadSupportFile(name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads++
	if content, ok := h.files[name]; ok {
		return content, nil
	}
	return "", &hostfunc.FileNotFoundError{Name: name}
}

func (h *testHost) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.output.String()
}

func TestStarlarkIdentity(t *testing.T) {
	s := New()
	if s.Name() != "starlark" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.Extension() != ".star" {
		t.Errorf("Extension() = %q", s.Extension())
	}
}

func TestStarlarkPrint(t *testing.T) {
	host := &testHost{}
	if err := New().Run(context.Background(), `print("hello")`, host); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host.String() != "hello\n" {
		t.Errorf("expected 'hello\\n', got %q", host.String())
	}
}

func TestStarlarkTopLevelControl(t *testing.T) {
	host := &testHost{}
	code := `
total = 0
i = 0
while i < 5:
    i += 1
    total += i
if total == 15:
    print(total)
`
	if err := New().Run(context.Background(), code, host); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(host.String()) != "15" {
		t.Errorf("expected '15', got %q", host.String())
	}
}

func TestStarlarkPredeclaredModules(t *testing.T) {
	host := &testHost{}
	code := `print(json.encode({"a": 1}), math.floor(2.7))`
	if err := New().Run(context.Background(), code, host); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(host.String()) != `{"a":1} 2` {
		t.Errorf("unexpected output %q", host.String())
	}
}

func TestStarlarkInput(t *testing.T) {
	answer := "Ada"
	host := &testHost{answer: &answer}
	code := `
name = input("name? ")
print("hi " + name)
`
	if err := New().Run(context.Background(), code, host); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(host.String()) != "hi Ada" {
		t.Errorf("expected 'hi Ada', got %q", host.String())
	}
	if len(host.prompts) != 1 || host.prompts[0] != "name? " {
		t.Errorf("unexpected prompts %v", host.prompts)
	}
}

func TestStarlarkInputCancelled(t *testing.T) {
	host := &testHost{}
	if err := New().Run(context.Background(), `print(input() == None)`, host); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(host.String()) != "True" {
		t.Errorf("expected 'True', got %q", host.String())
	}
	if len(host.prompts) != 1 || host.prompts[0] != "" {
		t.Errorf("expected one empty prompt, got %v", host.prompts)
	}
}

func TestStarlarkLoadSupportFile(t *testing.T) {
	host := &testHost{files: map[string]string{
		"lib.star": "def double(x):\n    return x * 2\n",
	}}
	code := `
load("lib.star", "double")
load("lib.star", twice = "double")
print(double(21), twice(1))
`
	if err := New().Run(context.Background(), code, host); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(host.String()) != "42 2" {
		t.Errorf("expected '42 2', got %q", host.String())
	}
	if host.reads != 1 {
		t.Errorf("expected module to be read once, got %d reads", host.reads)
	}
}

func TestStarlarkLoadMissingFile(t *testing.T) {
	host := &testHost{}
	err := New().Run(context.Background(), `load("x.star", "y")`, host)
	if err == nil {
		t.Fatal("expected error for missing support file")
	}
	if !strings.Contains(err.Error(), "File not found: 'x.star'") {
		t.Errorf("expected file not found message, got %v", err)
	}
}

func TestStarlarkLoadCycle(t *testing.T) {
	host := &testHost{files: map[string]string{
		"a.star": `load("b.star", "b")` + "\na = 1\n",
		"b.star": `load("a.star", "a")` + "\nb = 2\n",
	}}
	err := New().Run(context.Background(), `load("a.star", "a")`, host)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle in load graph") {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestStarlarkRuntimeError(t *testing.T) {
	host := &testHost{}
	err := New().Run(context.Background(), `fail("boom")`, host)
	if err == nil {
		t.Fatal("expected runtime error")
	}
	var rtErr *executor.RuntimeError
	if !errors.As(err, &rtErr) {
		t.Fatalf("expected *executor.RuntimeError, got %T", err)
	}
	if !strings.Contains(rtErr.Error(), "boom") {
		t.Errorf("expected message to mention boom, got %q", rtErr.Error())
	}
}

func TestStarlarkSyntaxError(t *testing.T) {
	err := New().Run(context.Background(), `print(`, &testHost{})
	var rtErr *executor.RuntimeError
	if !errors.As(err, &rtErr) {
		t.Fatalf("expected *executor.RuntimeError, got %v", err)
	}
}

func TestStarlarkCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := New().Run(ctx, "while True:\n    pass\n", &testHost{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation took too long")
	}
}

func TestStarlarkCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	host := &testHost{}
	err := New().Run(ctx, `print("never")`, host)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if host.String() != "" {
		t.Errorf("expected no output, got %q", host.String())
	}
}

func TestStarlarkMaxSteps(t *testing.T) {
	err := New(WithMaxSteps(1000)).Run(context.Background(), "while True:\n    pass\n", &testHost{})
	if err == nil {
		t.Fatal("expected step limit error")
	}
	if !strings.Contains(err.Error(), "too many steps") {
		t.Errorf("expected step limit message, got %v", err)
	}
}
