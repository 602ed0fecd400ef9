package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/caffeineduck/rise/hostfunc"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Drafts persists one saved copy of the source.
type Drafts interface {
	Save(ctx context.Context, source string) error
	Load(ctx context.Context) (source string, ok bool, err error)
}

// Option configures an EditorSession.
type Option func(*EditorSession)

// WithID sets the session id. The default is a random UUID.
func WithID(id string) Option {
	return func(s *EditorSession) {
		s.id = id
	}
}

// WithInterpreters registers the languages the session can run. The first
// one is selected initially.
func WithInterpreters(interps ...Interpreter) Option {
	return func(s *EditorSession) {
		for _, interp := range interps {
			if _, exists := s.interpreters[interp.Name()]; !exists && s.language == "" {
				s.language = interp.Name()
			}
			s.interpreters[interp.Name()] = interp
		}
	}
}

// WithDrafts sets where Save writes and Bootstrap reads the saved draft.
func WithDrafts(d Drafts) Option {
	return func(s *EditorSession) {
		s.drafts = d
	}
}

// WithSupportFiles sets the resolver behind ReadSupportFile.
func WithSupportFiles(files *hostfunc.SupportFiles) Option {
	return func(s *EditorSession) {
		s.support = files
	}
}

// WithBaseURL sets the page URL share links are built on.
func WithBaseURL(url string) Option {
	return func(s *EditorSession) {
		s.baseURL = url
	}
}

// WithTimeout bounds every run.
func WithTimeout(d time.Duration) Option {
	return func(s *EditorSession) {
		s.timeout = d
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *EditorSession) {
		s.logger = logger
	}
}

// EditorSession is the state of one editor view: its text, whether the
// output is shown, the selected language and the view handle itself.
type EditorSession struct {
	id           string
	ui           UI
	output       *OutputBuffer
	bridge       *Bridge
	interpreters map[string]Interpreter
	drafts       Drafts
	support      *hostfunc.SupportFiles
	baseURL      string
	keymap       *Keymap
	timeout      time.Duration
	logger       *zap.Logger

	mu            sync.Mutex
	text          string
	outputVisible bool
	language      string
	settings      Settings
	closed        bool
}

// NewEditorSession creates a session driving ui. The output starts visible
// until Bootstrap hides it.
func NewEditorSession(ui UI, opts ...Option) *EditorSession {
	s := &EditorSession{
		id:            uuid.NewString(),
		ui:            ui,
		interpreters:  make(map[string]Interpreter),
		keymap:        DefaultKeymap(),
		logger:        zap.NewNop(),
		outputVisible: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	s.output = NewOutputBuffer(ui)
	s.bridge = NewBridge(s.output, WithRunTimeout(s.timeout), WithBridgeLogger(s.logger))
	s.settings = DefaultSettings(s.language)
	return s
}

func (s *EditorSession) ID() string { return s.id }

func (s *EditorSession) Keymap() *Keymap { return s.keymap }

func (s *EditorSession) Logger() *zap.Logger { return s.logger }

// BaseURL is the page URL share links are built on.
func (s *EditorSession) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// SetBaseURL records the page URL the view is showing.
func (s *EditorSession) SetBaseURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = url
}

func (s *EditorSession) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// SetText records text typed in the view. The view already shows it, so
// nothing is sent back.
func (s *EditorSession) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

// ReplaceText sets the text and pushes it to the view, cursor at the start.
func (s *EditorSession) ReplaceText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	s.ui.SetText(text)
}

// Output returns the current contents of the OutputBuffer.
func (s *EditorSession) Output() string {
	return s.output.String()
}

func (s *EditorSession) OutputVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputVisible
}

// SetOutputVisible shows or hides the output and then resizes the editor.
// The resize happens even when visibility does not change.
func (s *EditorSession) SetOutputVisible(visible bool) {
	s.mu.Lock()
	s.outputVisible = visible
	s.mu.Unlock()
	s.ui.SetOutputVisible(visible)
	s.ui.Resize()
}

// Language returns the name of the selected interpreter.
func (s *EditorSession) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage selects the interpreter used by later runs and downloads.
func (s *EditorSession) SetLanguage(name string) error {
	if _, ok := s.interpreters[name]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownLanguage, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = name
	s.settings.Language = name
	return nil
}

// Interpreter returns the selected interpreter.
func (s *EditorSession) Interpreter() (Interpreter, error) {
	name := s.Language()
	interp, ok := s.interpreters[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownLanguage, name)
	}
	return interp, nil
}

func (s *EditorSession) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// ApplySettings stores settings, switching language if it changed.
func (s *EditorSession) ApplySettings(settings Settings) error {
	if settings.Language != "" && settings.Language != s.Language() {
		if err := s.SetLanguage(settings.Language); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.Language == "" {
		settings.Language = s.language
	}
	if settings.FontSize <= 0 {
		settings.FontSize = s.settings.FontSize
	}
	s.settings = settings
	return nil
}

// Busy reports whether a run is in flight.
func (s *EditorSession) Busy() bool {
	return s.bridge.Busy()
}

// Closed reports whether Close has been called.
func (s *EditorSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels any run in flight. Later actions fail with ErrSessionClosed.
func (s *EditorSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.bridge.Cancel()
	s.logger.Debug("session closed")
	return nil
}

// Input implements Environment by prompting through the view.
func (s *EditorSession) Input(ctx context.Context, prompt string) (string, bool, error) {
	return s.ui.Prompt(ctx, prompt, "")
}

// ReadSupportFile implements Environment.
func (s *EditorSession) ReadSupportFile(name string) (string, error) {
	return s.support.Read(name)
}
