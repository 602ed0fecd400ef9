package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/caffeineduck/rise/share"
	"go.uber.org/zap"
)

const (
	savedMessage  = "Code saved in browser's local storage!"
	shareMessage  = "Copy link to clipboard: Ctrl+C, Enter"
	scriptName    = "script"
	scriptMIME    = "text/plain; charset=utf-8"
	downloadAsFmt = "Download code as %s?"
)

// Run shows the output, resizes the editor and executes the session's text
// with the selected interpreter. It returns when the run finishes.
func Run(ctx context.Context, s *EditorSession) (ExecutionResult, error) {
	return RunSource(ctx, s, s.Text())
}

// RunSource is Run for a given source instead of the session text.
func RunSource(ctx context.Context, s *EditorSession, source string) (ExecutionResult, error) {
	if s.Closed() {
		return ExecutionResult{}, ErrSessionClosed
	}
	interp, err := s.Interpreter()
	if err != nil {
		return ExecutionResult{}, err
	}

	// Show the output before dispatch so the view never reports the
	// change in the middle of the run's own output.
	s.SetOutputVisible(true)
	done := s.bridge.Start(ctx, interp, source, s)

	result := <-done
	s.logger.Info("run",
		zap.String("language", interp.Name()),
		zap.Stringer("outcome", result.Outcome),
		zap.Int64("elapsed_ms", result.Elapsed.Milliseconds()))
	return result, nil
}

// OpenFile asks the view for a file and replaces the text with its
// contents. A read failure is shown to the user as an alert.
func OpenFile(ctx context.Context, s *EditorSession) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	file, ok, err := s.ui.ChooseFile(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil && !ok {
		return nil
	}
	return LoadFile(ctx, s, file, err)
}

// LoadFile puts a file the user picked into the editor. readErr is the
// error the view hit reading it, if any; it becomes an alert.
func LoadFile(ctx context.Context, s *EditorSession, file File, readErr error) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	if readErr != nil {
		err := &FileReadError{Name: file.Name, Err: readErr}
		s.logger.Warn("open file failed", zap.Error(err))
		return s.ui.Alert(ctx, err.Error())
	}

	text := string(file.Data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	s.ReplaceText(text)
	return nil
}

// ToggleOutput flips output visibility and resizes the editor. It returns
// the new visibility.
func ToggleOutput(ctx context.Context, s *EditorSession) (bool, error) {
	if s.Closed() {
		return false, ErrSessionClosed
	}
	visible := !s.OutputVisible()
	s.SetOutputVisible(visible)
	return visible, nil
}

// Save writes the text to the session's drafts and acknowledges with an
// alert once the write succeeded.
func Save(ctx context.Context, s *EditorSession) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	if s.drafts == nil {
		return ErrNoDrafts
	}
	if err := s.drafts.Save(ctx, s.Text()); err != nil {
		s.logger.Error("save failed", zap.Error(err))
		if alertErr := s.ui.Alert(ctx, "Could not save code: "+err.Error()); alertErr != nil {
			return errors.Join(err, alertErr)
		}
		return err
	}
	return s.ui.Alert(ctx, savedMessage)
}

// DownloadName is the file name Download offers for the selected language.
func DownloadName(s *EditorSession) (string, error) {
	interp, err := s.Interpreter()
	if err != nil {
		return "", err
	}
	return scriptName + interp.Extension(), nil
}

// Download offers the text as script<ext> after the user confirms. It
// reports whether a file was produced.
func Download(ctx context.Context, s *EditorSession) (bool, error) {
	if s.Closed() {
		return false, ErrSessionClosed
	}
	name, err := DownloadName(s)
	if err != nil {
		return false, err
	}
	ok, err := s.ui.Confirm(ctx, fmt.Sprintf(downloadAsFmt, name))
	if err != nil || !ok {
		return false, err
	}
	file := File{Name: name, ContentType: scriptMIME, Data: []byte(s.Text())}
	if err := s.ui.Download(ctx, file); err != nil {
		return false, err
	}
	return true, nil
}

// Share builds a link carrying the text and shows it in a prompt for the
// user to copy.
func Share(ctx context.Context, s *EditorSession) (string, error) {
	if s.Closed() {
		return "", ErrSessionClosed
	}
	link, err := share.Encode(s.Text(), s.BaseURL())
	if err != nil {
		return "", err
	}
	if _, _, err := s.ui.Prompt(ctx, shareMessage, link); err != nil {
		return link, err
	}
	return link, nil
}

// ShowShortcuts lists the keymap in an alert.
func ShowShortcuts(ctx context.Context, s *EditorSession) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	return s.ui.Alert(ctx, s.keymap.Help())
}

// ShowSettings opens the settings panel and applies what the user chose.
func ShowSettings(ctx context.Context, s *EditorSession) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	chosen, ok, err := s.ui.ShowSettings(ctx, s.Settings())
	if err != nil || !ok {
		return err
	}
	if err := s.ApplySettings(chosen); err != nil {
		return s.ui.Alert(ctx, err.Error())
	}
	return nil
}

// Perform runs action against s.
func Perform(ctx context.Context, s *EditorSession, action Action) error {
	var err error
	switch action {
	case ActionRun:
		_, err = Run(ctx, s)
	case ActionOpen:
		err = OpenFile(ctx, s)
	case ActionToggleOutput:
		_, err = ToggleOutput(ctx, s)
	case ActionSave:
		err = Save(ctx, s)
	case ActionDownload:
		_, err = Download(ctx, s)
	case ActionShare:
		_, err = Share(ctx, s)
	case ActionShortcuts:
		err = ShowShortcuts(ctx, s)
	case ActionSettings:
		err = ShowSettings(ctx, s)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// Dispatch performs the action bound to chord. handled is true whenever the
// chord is bound, even if the action then failed, so the view knows to
// suppress the browser default.
func Dispatch(ctx context.Context, s *EditorSession, chord Chord) (handled bool, err error) {
	action, ok := s.keymap.Lookup(chord)
	if !ok {
		return false, nil
	}
	return true, Perform(ctx, s, action)
}
