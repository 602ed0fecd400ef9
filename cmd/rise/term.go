package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/caffeineduck/rise/config"
	"github.com/caffeineduck/rise/editor"
	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
)

var (
	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6600"))

	statusStyle = lipgloss.NewStyle().
			Faint(true)

	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))
)

// lineReader is the part of readline the terminal view needs.
type lineReader interface {
	Readline() (string, error)
	ReadlineWithDefault(initial string) (string, error)
	SetPrompt(prompt string)
}

var _ lineReader = (*readline.Instance)(nil)

// termUI renders an editor session on a terminal. Modals become readline
// prompts; with no reader every modal is dismissed.
type termUI struct {
	out    io.Writer
	lines  lineReader
	prompt string
	dir    string

	mu      sync.Mutex
	text    string
	visible bool
}

func newTermUI(out io.Writer, lines lineReader, downloadDir string) *termUI {
	return &termUI{out: out, lines: lines, prompt: "> ", dir: downloadDir}
}

// println writes one line. Every write to out holds mu, since run output
// arrives from the interpreter's goroutine.
func (u *termUI) println(line string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, line)
}

func (u *termUI) status(format string, args ...any) {
	u.println(statusStyle.Render(fmt.Sprintf(format, args...)))
}

func (u *termUI) SetText(text string) {
	u.mu.Lock()
	u.text = text
	u.mu.Unlock()
	u.status("[%d lines loaded]", lineCount(text))
}

func (u *termUI) AppendOutput(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	io.WriteString(u.out, text)
}

func (u *termUI) ClearOutput() {
	u.println(ruleStyle.Render(strings.Repeat("─", 40)))
}

func (u *termUI) SetOutputVisible(visible bool) {
	u.mu.Lock()
	changed := u.visible != visible
	u.visible = visible
	u.mu.Unlock()
	if changed {
		if visible {
			u.status("[console shown]")
		} else {
			u.status("[console hidden]")
		}
	}
}

// Resize is a no-op; the terminal reflows on its own.
func (u *termUI) Resize() {}

func (u *termUI) Alert(ctx context.Context, message string) error {
	u.println(alertStyle.Render(message))
	return nil
}

func (u *termUI) Confirm(ctx context.Context, message string) (bool, error) {
	answer, ok, err := u.ask(message+" [y/N] ", "")
	if err != nil || !ok {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (u *termUI) Prompt(ctx context.Context, message, initial string) (string, bool, error) {
	return u.ask(message, initial)
}

// ask reads one line, restoring the command prompt afterwards. Ctrl+C and
// Ctrl+D dismiss.
func (u *termUI) ask(message, initial string) (string, bool, error) {
	if u.lines == nil {
		return "", false, nil
	}
	u.lines.SetPrompt(promptStyle.Render(message))
	defer u.lines.SetPrompt(u.prompt)

	line, err := u.lines.ReadlineWithDefault(initial)
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return line, true, nil
}

func (u *termUI) ChooseFile(ctx context.Context) (editor.File, bool, error) {
	path, ok, err := u.ask("File to open: ", "")
	if err != nil || !ok || strings.TrimSpace(path) == "" {
		return editor.File{}, false, err
	}
	path = strings.TrimSpace(path)
	file := editor.File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return file, false, err
	}
	file.Data = data
	return file, true, nil
}

// Download writes the file into the download directory.
func (u *termUI) Download(ctx context.Context, file editor.File) error {
	path := filepath.Join(u.dir, filepath.Base(file.Name))
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	u.status("[saved %s]", path)
	return nil
}

func (u *termUI) ShowSettings(ctx context.Context, current editor.Settings) (editor.Settings, bool, error) {
	next := current

	size, ok, err := u.ask("Font size: ", strconv.Itoa(current.FontSize))
	if err != nil || !ok {
		return editor.Settings{}, false, err
	}
	if n, err := strconv.Atoi(strings.TrimSpace(size)); err == nil {
		next.FontSize = n
	}

	theme, ok, err := u.ask("Theme: ", current.Theme)
	if err != nil || !ok {
		return editor.Settings{}, false, err
	}
	if theme = strings.TrimSpace(theme); theme != "" {
		next.Theme = theme
	}

	lang, ok, err := u.ask("Language: ", current.Language)
	if err != nil || !ok {
		return editor.Settings{}, false, err
	}
	if lang = strings.TrimSpace(lang); lang != "" {
		if normalized, err := config.NormalizeLanguage(lang); err == nil {
			lang = normalized
		}
		next.Language = lang
	}
	return next, true, nil
}

func lineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(text, "\n"), "\n") + 1
}
