package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/caffeineduck/rise/hostfunc"
)

// fakeUI records every call as a short event string and answers modals
// from preset fields.
type fakeUI struct {
	mu     sync.Mutex
	events []string

	confirm      bool
	promptValue  *string
	file         File
	fileOK       bool
	fileErr      error
	settings     Settings
	settingsOK   bool
	downloads    []File
	prompts      []string
	promptInits  []string
	alerts       []string
	text         string
	outputText   strings.Builder
	visible      bool
	resizeCount  int
	modalBlocker chan struct{}
}

func (u *fakeUI) record(format string, args ...any) {
	u.events = append(u.events, fmt.Sprintf(format, args...))
}

func (u *fakeUI) SetText(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.text = text
	u.record("text")
}

func (u *fakeUI) AppendOutput(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.outputText.WriteString(text)
	u.record("append:%s", text)
}

func (u *fakeUI) ClearOutput() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.outputText.Reset()
	u.record("clear")
}

func (u *fakeUI) SetOutputVisible(visible bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.visible = visible
	u.record("visible:%v", visible)
}

func (u *fakeUI) Resize() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.resizeCount++
	u.record("resize")
}

func (u *fakeUI) Alert(ctx context.Context, message string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.alerts = append(u.alerts, message)
	u.record("alert")
	return nil
}

func (u *fakeUI) Confirm(ctx context.Context, message string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.record("confirm:%s", message)
	return u.confirm, nil
}

func (u *fakeUI) Prompt(ctx context.Context, message, initial string) (string, bool, error) {
	u.mu.Lock()
	u.prompts = append(u.prompts, message)
	u.promptInits = append(u.promptInits, initial)
	u.record("prompt")
	blocker := u.modalBlocker
	value := u.promptValue
	u.mu.Unlock()

	if blocker != nil {
		select {
		case <-blocker:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (u *fakeUI) ChooseFile(ctx context.Context) (File, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.record("choose_file")
	return u.file, u.fileOK, u.fileErr
}

func (u *fakeUI) Download(ctx context.Context, file File) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.downloads = append(u.downloads, file)
	u.record("download:%s", file.Name)
	return nil
}

func (u *fakeUI) ShowSettings(ctx context.Context, current Settings) (Settings, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.record("settings")
	return u.settings, u.settingsOK, nil
}

func (u *fakeUI) Events() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.events...)
}

func (u *fakeUI) Output() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.outputText.String()
}

// funcInterpreter runs a Go function in place of a language.
type funcInterpreter struct {
	name string
	ext  string
	fn   func(ctx context.Context, code string, host hostfunc.Host) error
}

func (f *funcInterpreter) Name() string      { return f.name }
func (f *funcInterpreter) Extension() string { return f.ext }
func (f *funcInterpreter) Run(ctx context.Context, code string, host hostfunc.Host) error {
	return f.fn(ctx, code, host)
}

// echo prints its source back.
func echo(name, ext string) *funcInterpreter {
	return &funcInterpreter{name: name, ext: ext, fn: func(ctx context.Context, code string, host hostfunc.Host) error {
		host.Output(code)
		return nil
	}}
}

func indexOf(events []string, event string) int {
	for i, e := range events {
		if e == event {
			return i
		}
	}
	return -1
}
