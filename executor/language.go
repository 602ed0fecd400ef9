package executor

// Language defines a WASI-compiled interpreter the Executor can run.
// Implement this interface to add support for new WASM languages.
type Language interface {
	// Name returns a unique identifier for this language (e.g., "javascript").
	// Used as the cache key for compiled modules.
	Name() string

	// Extension returns the file extension for saved scripts, including the dot.
	Extension() string

	// Module returns the WASM binary for the language interpreter.
	Module() []byte

	// WrapCode prepares user code for execution by prepending the shim that
	// binds output, input and support-file reads to the host side channel.
	WrapCode(code string) string

	// Args returns the command-line arguments to pass to the WASM module.
	// For QuickJS: []string{"qjs", "--std", "-e", code}
	Args(wrappedCode string) []string
}
