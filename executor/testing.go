package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/caffeineduck/rise/hostfunc"
)

var shared struct {
	mu   sync.Mutex
	exec *Executor
}

// GetTestExecutor returns an executor shared by every test in the process,
// creating it on first use. Languages not yet compiled by the shared
// executor are compiled before it is returned, so the first Run in a test
// does not include compilation time.
func GetTestExecutor(precompile ...Language) (*Executor, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.exec == nil {
		exec, err := New(hostfunc.NewRegistry(), WithPrecompile(precompile...))
		if err != nil {
			return nil, err
		}
		shared.exec = exec
		return exec, nil
	}
	for _, lang := range precompile {
		if _, err := shared.exec.getCompiled(context.Background(), lang); err != nil {
			return nil, fmt.Errorf("precompile %s: %w", lang.Name(), err)
		}
	}
	return shared.exec, nil
}

// CloseTestExecutor closes the shared executor. A later GetTestExecutor
// starts a fresh one.
func CloseTestExecutor() {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.exec != nil {
		shared.exec.Close()
		shared.exec = nil
	}
}
