package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/caffeineduck/rise/editor"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run code once and print its output",
	Long: `Run Starlark or JavaScript code and print its output followed by the
completion time, as the editor console shows it.

Code can be provided via:
  - File argument: rise run script.star
  - Inline flag: rise run -c 'print(1+1)'
  - Stdin: echo 'print(1+1)' | rise run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
	cmd.Flags().StringSlice("mount", nil, "Support file mount virtual:host (repeatable)")
}

// stdoutSink mirrors run output to a writer.
type stdoutSink struct {
	w io.Writer
}

func (s stdoutSink) AppendOutput(text string) { io.WriteString(s.w, text) }
func (s stdoutSink) ClearOutput()             {}

// promptEnv answers input() from the terminal when stdin is one.
type promptEnv struct {
	ui      *termUI
	support interface {
		Read(name string) (string, error)
	}
}

func (e promptEnv) Input(ctx context.Context, prompt string) (string, bool, error) {
	return e.ui.Prompt(ctx, prompt, "")
}

func (e promptEnv) ReadSupportFile(name string) (string, error) {
	return e.support.Read(name)
}

func readSource(cmd *cobra.Command, args []string) (source, filename string, err error) {
	code, _ := cmd.Flags().GetString("code")
	switch {
	case code != "":
		return code, "", nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	}

	// Check if stdin has data (not a terminal)
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", "", nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", "", err
	}
	return string(data), "", nil
}

func runRun(cmd *cobra.Command, args []string) error {
	source, filename, err := readSource(cmd, args)
	if err != nil {
		return err
	}
	if source == "" {
		return cmd.Help()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	langName := cfg.Runtime.Language
	if !cmd.Flags().Changed("lang") {
		if langName, err = languageForFile(filename, cfg.Runtime.Language); err != nil {
			return err
		}
		cfg.Runtime.Language = langName
	}
	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	interp := rt.interpreters[0]

	// input() reads from the terminal only when the code did not come
	// from stdin.
	var lines lineReader
	if stat, _ := os.Stdin.Stat(); stat.Mode()&os.ModeCharDevice != 0 {
		rl, err := readline.NewEx(&readline.Config{InterruptPrompt: "^C", EOFPrompt: ""})
		if err == nil {
			defer rl.Close()
			lines = rl
		}
	}
	out := cmd.OutOrStdout()
	ui := newTermUI(out, lines, ".")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bridge := editor.NewBridge(editor.NewOutputBuffer(stdoutSink{w: out}),
		editor.WithRunTimeout(cfg.Runtime.Timeout),
		editor.WithBridgeLogger(logger))
	result := bridge.Run(ctx, interp, source, promptEnv{ui: ui, support: rt.support})
	fmt.Fprintln(out)

	logger.Debug("run finished",
		zap.String("language", interp.Name()),
		zap.Stringer("outcome", result.Outcome),
		zap.Duration("elapsed", result.Elapsed))

	if result.Err != nil {
		if errors.Is(result.Err, context.Canceled) {
			return errors.New("interrupted")
		}
		return errExit
	}
	return nil
}
