package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/rise/editor"
	"github.com/caffeineduck/rise/store"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var editCmd = &cobra.Command{
	Use:   "edit [file]",
	Short: "Edit and run code in the terminal",
	Long: `Start a line-based editor session in the terminal.

Lines you type are appended to the code. Commands start with ':'.

  :run        Run the code            (Ctrl+Enter in the browser)
  :open       Open a file
  :console    Show or hide the console
  :save       Save the code as a draft
  :download   Write the code to script.<ext>
  :share      Print a share link
  :keys       Show keyboard shortcuts
  :settings   Change font size, theme and language
  :list       Print the code with line numbers
  :clear      Empty the code
  :quit       Leave (also Ctrl+D)

The session opens with a shared link's code (--share), else the saved
draft, else empty.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().String("share", "", "Open the code of a share link")
	editCmd.Flags().String("base-url", "https://rise.local/", "Page URL used in share links")
	editCmd.Flags().String("store", "", "Draft store: memory, sqlite, postgres, s3")
	editCmd.Flags().String("history", "", "History file path (default: ~/.rise_history)")
	editCmd.Flags().Duration("timeout", 0, "Execution timeout (default 30s)")
	editCmd.Flags().StringSlice("mount", nil, "Support file mount virtual:host (repeatable)")
	rootCmd.AddCommand(editCmd)
}

// Local drafts live under a fixed namespace; the terminal has one user.
const localDrafts = "local"

// editCommands maps ':' commands to editor actions.
var editCommands = map[string]editor.Action{
	"run":      editor.ActionRun,
	"open":     editor.ActionOpen,
	"console":  editor.ActionToggleOutput,
	"save":     editor.ActionSave,
	"download": editor.ActionDownload,
	"share":    editor.ActionShare,
	"keys":     editor.ActionShortcuts,
	"settings": editor.ActionSettings,
}

type editLine int

const (
	lineText editLine = iota
	lineAction
	lineList
	lineClear
	lineQuit
	lineUnknown
)

// parseEditLine classifies one input line. Action names are accepted as
// commands too (":toggle_output").
func parseEditLine(line string) (editLine, editor.Action) {
	if !strings.HasPrefix(line, ":") {
		return lineText, ""
	}
	name := strings.ToLower(strings.TrimSpace(line[1:]))
	switch name {
	case "list", "l":
		return lineList, ""
	case "clear":
		return lineClear, ""
	case "quit", "q", "exit":
		return lineQuit, ""
	}
	if action, ok := editCommands[name]; ok {
		return lineAction, action
	}
	for _, action := range editor.Actions {
		if string(action) == name {
			return lineAction, action
		}
	}
	return lineUnknown, ""
}

func numbered(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%4d  %s\n", i+1, l)
	}
	return b.String()
}

func runEdit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Driver = v
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	shareURL, _ := cmd.Flags().GetString("share")
	baseURL, _ := cmd.Flags().GetString("base-url")
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".rise_history")
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	out := cmd.OutOrStdout()
	ui := newTermUI(out, rl, ".")
	session := editor.NewEditorSession(ui,
		editor.WithInterpreters(rt.interpreters...),
		editor.WithDrafts(store.NewDrafts(st, localDrafts)),
		editor.WithSupportFiles(rt.support),
		editor.WithBaseURL(baseURL),
		editor.WithTimeout(cfg.Runtime.Timeout),
		editor.WithLogger(logger))
	defer session.Close()

	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := editor.LoadFile(ctx, session, editor.File{Name: filepath.Base(args[0]), Data: data}, nil); err != nil {
			return err
		}
		session.SetOutputVisible(false)
	} else if _, err := editor.Bootstrap(ctx, session, shareURL); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "rise %s editor (:run to run, :keys for shortcuts, :quit to leave)\n", session.Language())
	return editLoop(ctx, session, rl, out, logger)
}

func editLoop(ctx context.Context, session *editor.EditorSession, lines lineReader, out io.Writer, logger *zap.Logger) error {
	for {
		line, err := lines.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		kind, action := parseEditLine(line)
		switch kind {
		case lineText:
			session.SetText(session.Text() + line + "\n")
		case lineList:
			io.WriteString(out, numbered(session.Text()))
		case lineClear:
			session.SetText("")
		case lineQuit:
			return nil
		case lineUnknown:
			fmt.Fprintf(out, "unknown command %q\n", strings.TrimSpace(line))
		case lineAction:
			if err := editor.Perform(ctx, session, action); err != nil {
				logger.Debug("action failed", zap.String("action", string(action)), zap.Error(err))
			}
			if action == editor.ActionRun {
				fmt.Fprintln(out)
			}
		}
	}
}
