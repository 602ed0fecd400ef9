package editor

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned by actions on a closed session.
	ErrSessionClosed = errors.New("editor: session closed")

	// ErrNoDrafts is returned by Save when the session has no draft storage.
	ErrNoDrafts = errors.New("editor: no draft storage configured")

	// ErrUnknownLanguage is returned when selecting a language the session
	// has no interpreter for.
	ErrUnknownLanguage = errors.New("editor: unknown language")
)

// FileReadError reports a failure opening a local file into the editor.
type FileReadError struct {
	Name string
	Err  error
}

func (e *FileReadError) Error() string {
	if e.Name == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}
