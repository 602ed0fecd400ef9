package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/rise/config"
	"github.com/caffeineduck/rise/editor"
	"github.com/caffeineduck/rise/executor"
	"github.com/caffeineduck/rise/hostfunc"
	"github.com/caffeineduck/rise/language/javascript"
	"github.com/caffeineduck/rise/language/starlark"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "rise [file]",
	Short: "Code editor for Starlark and JavaScript",
	Long: `rise - A small code editor with run, save, share and download.

Serve the editor to browsers with 'rise serve', edit in the terminal with
'rise edit', or run a file directly. Starlark (a Python dialect) runs in
process; JavaScript runs on QuickJS compiled to WebAssembly.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRun, // Default to run command behavior
}

// errExit fails the command without printing anything more; the reason is
// already in the output.
var errExit = errors.New("exit status 1")

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (.toml or .yaml)")
	rootCmd.PersistentFlags().StringP("lang", "l", "", "Language: starlark (python), javascript (js)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console, json")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")

	addRunFlags(rootCmd)
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then RISE_* variables, then flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	if v, _ := flags.GetString("lang"); v != "" {
		cfg.Runtime.Language = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v, _ := flags.GetBool("no-cache"); v {
		cfg.Runtime.DiskCache = false
	}
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		cfg.Runtime.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Lookup("mount") != nil && flags.Changed("mount") {
		mounts, _ := flags.GetStringSlice("mount")
		cfg.Runtime.Mounts = append(cfg.Runtime.Mounts, mounts...)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// engine is the set of interpreters a command offers, preferred first.
type engine struct {
	interpreters []editor.Interpreter
	support      *hostfunc.SupportFiles
	exec         *executor.Executor
}

func (r *engine) Close() error {
	if r.exec != nil {
		return r.exec.Close()
	}
	return nil
}

func (r *engine) interpreter(name string) (editor.Interpreter, error) {
	for _, interp := range r.interpreters {
		if interp.Name() == name {
			return interp, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", editor.ErrUnknownLanguage, name)
}

// buildRuntime sets up Starlark and, when the QuickJS binary is available,
// JavaScript. JavaScript is only required when it is the configured
// language.
func buildRuntime(cfg config.Config, logger *zap.Logger) (*engine, error) {
	preferred, err := config.NormalizeLanguage(cfg.Runtime.Language)
	if err != nil {
		return nil, err
	}
	mounts, err := cfg.Runtime.ParseMounts()
	if err != nil {
		return nil, err
	}

	rt := &engine{support: hostfunc.NewSupportFiles(mounts)}
	star := starlark.New(starlark.WithMaxSteps(cfg.Runtime.MaxSteps))

	js, jsErr := javascript.Load(cfg.Runtime.QuickJSPath)
	if jsErr == nil {
		execOpts := []executor.ExecutorOption{executor.WithLogger(logger)}
		if cfg.Runtime.DiskCache {
			execOpts = append(execOpts, executor.WithDiskCache())
		}
		if pages := executor.ParseMemoryLimit(cfg.Runtime.MemoryLimit); pages > 0 {
			execOpts = append(execOpts, executor.WithMemoryLimit(pages))
		}
		rt.exec, err = executor.New(hostfunc.NewRegistry(), execOpts...)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case preferred == "javascript" && jsErr != nil:
		return nil, fmt.Errorf("javascript unavailable: %w", jsErr)
	case preferred == "javascript":
		rt.interpreters = []editor.Interpreter{rt.exec.Interpreter(js), star}
	case jsErr != nil:
		logger.Warn("javascript disabled, QuickJS binary not loaded (run go generate ./language/javascript or set RISE_QJS_WASM)",
			zap.String("path", quickJSPath(cfg.Runtime.QuickJSPath)), zap.Error(jsErr))
		rt.interpreters = []editor.Interpreter{star}
	default:
		rt.interpreters = []editor.Interpreter{star, rt.exec.Interpreter(js)}
	}
	return rt, nil
}

// quickJSPath is the path javascript.Load reads for the configured value.
func quickJSPath(configured string) string {
	if configured != "" {
		return configured
	}
	return javascript.DefaultModulePath()
}

// languageForFile picks a language from a file extension, falling back to
// the configured one.
func languageForFile(filename, configured string) (string, error) {
	if filename != "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".star", ".py", ".bzl":
			return "starlark", nil
		case ".js", ".mjs":
			return "javascript", nil
		}
	}
	return config.NormalizeLanguage(configured)
}
