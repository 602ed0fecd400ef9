// Package executor runs WASI-compiled language interpreters for the editor.
//
// # Overview
//
// The executor manages WASM module compilation, caching, and execution.
// Each Run instantiates a fresh module, so nothing leaks between runs.
// Output is streamed to a [hostfunc.Host] while the code runs; input
// prompts and support-file reads travel over a side channel on stderr
// (`\x00RISE:{json}\x00`) and are answered on stdin.
//
// # Basic Usage
//
//	exec, err := executor.New(hostfunc.NewRegistry())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	result := exec.Run(ctx, js, `console.log("hello")`, host)
//	if result.Error != nil {
//	    // *RuntimeError carries the interpreter's message
//	}
//
// # Interpreters
//
// [Executor.Interpreter] binds a [Language] so the editor can treat WASM
// languages like any other interpreter:
//
//	interp := exec.Interpreter(js, executor.WithTimeout(10*time.Second))
//	err := interp.Run(ctx, source, host)
//
// # Language Interface
//
// To add support for a new language, implement the [Language] interface.
// See [github.com/caffeineduck/rise/language/javascript] for an example.
package executor
