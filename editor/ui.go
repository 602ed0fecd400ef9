package editor

import "context"

// UI is the view an EditorSession drives.
//
// The non-blocking methods update what the user sees. The modal methods
// block until the user answers or ctx is done, mirroring the browser's
// alert, confirm and prompt dialogs.
type UI interface {
	SetText(text string)
	AppendOutput(text string)
	ClearOutput()
	SetOutputVisible(visible bool)

	// Resize asks the editing widget to recompute its layout.
	Resize()

	Alert(ctx context.Context, message string) error
	Confirm(ctx context.Context, message string) (bool, error)

	// Prompt shows message with an input prefilled with initial. ok is
	// false when the user cancelled.
	Prompt(ctx context.Context, message, initial string) (value string, ok bool, err error)

	// ChooseFile lets the user pick a local file. ok is false when the
	// user cancelled; err reports a read failure.
	ChooseFile(ctx context.Context) (file File, ok bool, err error)

	// Download hands a file to the user.
	Download(ctx context.Context, file File) error

	// ShowSettings opens the settings panel with current filled in and
	// returns what the user chose. ok is false when the panel was dismissed.
	ShowSettings(ctx context.Context, current Settings) (chosen Settings, ok bool, err error)
}

// File is a named blob moving between the user's machine and the editor.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data"`
}

// Settings are the user-adjustable editor preferences.
type Settings struct {
	FontSize int    `json:"fontSize"`
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings(language string) Settings {
	return Settings{
		FontSize: 15,
		Theme:    "vibrant_ink",
		Language: language,
	}
}
