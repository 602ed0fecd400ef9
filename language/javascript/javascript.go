// Package javascript provides the JavaScript language adapter: QuickJS
// compiled to WASI, run by the executor.
package javascript

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

// go generate fetches the binary to DefaultModulePath, where Load finds it.
//go:generate go run ../../internal/tools/download https://github.com/quickjs-ng/quickjs/releases/download/v0.10.1/qjs-wasi.wasm

//go:embed stdlib.js
var stdlib string

// ModuleEnv names the environment variable that overrides the QuickJS
// binary location.
const ModuleEnv = "RISE_QJS_WASM"

// DefaultModulePath returns where Load looks for the QuickJS binary when no
// path is given: $RISE_QJS_WASM, else ~/.cache/rise/qjs.wasm.
func DefaultModulePath() string {
	if p := os.Getenv(ModuleEnv); p != "" {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "rise", "qjs.wasm")
	}
	return "qjs.wasm"
}

// JavaScript implements the executor.Language interface for JavaScript execution.
type JavaScript struct {
	module []byte
}

// New returns a JavaScript adapter for an already loaded QuickJS binary.
func New(module []byte) *JavaScript {
	return &JavaScript{module: module}
}

// Load reads the QuickJS binary from path, or DefaultModulePath when path is empty.
func Load(path string) (*JavaScript, error) {
	if path == "" {
		path = DefaultModulePath()
	}
	module, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load quickjs module: %w", err)
	}
	return New(module), nil
}

// Name returns "javascript".
func (j *JavaScript) Name() string {
	return "javascript"
}

// Extension returns ".js".
func (j *JavaScript) Extension() string {
	return ".js"
}

// Module returns the QuickJS WASM binary.
func (j *JavaScript) Module() []byte {
	return j.module
}

// WrapCode prepends the host shim to user code.
func (j *JavaScript) WrapCode(code string) string {
	return stdlib + "\n" + code
}

// Args returns the command-line arguments for the QuickJS interpreter.
func (j *JavaScript) Args(wrappedCode string) []string {
	return []string{"qjs", "--std", "-e", wrappedCode}
}
