package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/caffeineduck/rise/editor"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Websocket messages are JSON envelopes {"type", "id", "data"}. Requests
// that need an answer (alert, confirm, prompt, choose_file, settings) carry
// an id; the page answers with a "reply" of the same id.
//
// Client to server: text, key, action, reply, file.
// Server to client: init, output, clear, visible, resize, text, alert,
// confirm, prompt, choose_file, settings, download.
type envelope struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type initData struct {
	Session   string           `json:"session"`
	Languages []string         `json:"languages"`
	Language  string           `json:"language"`
	Settings  editor.Settings  `json:"settings"`
	Bindings  []bindingMessage `json:"bindings"`
}

type bindingMessage struct {
	Chord  chordMessage  `json:"chord"`
	Action editor.Action `json:"action"`
	Label  string        `json:"label"`
}

type chordMessage struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
	Key   string `json:"key"`
}

type textData struct {
	Text string `json:"text"`
}

type visibleData struct {
	Visible bool `json:"visible"`
}

type actionData struct {
	Action editor.Action `json:"action"`
}

type modalData struct {
	Message string `json:"message"`
	Initial string `json:"initial,omitempty"`
}

type replyData struct {
	OK       bool             `json:"ok"`
	Value    string           `json:"value,omitempty"`
	File     *editor.File     `json:"file,omitempty"`
	Settings *editor.Settings `json:"settings,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type fileData struct {
	File  editor.File `json:"file"`
	Error string      `json:"error,omitempty"`
}

var errConnClosed = errors.New("connection closed")

const writeWait = 10 * time.Second

// wsUI implements editor.UI over one websocket connection.
type wsUI struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan replyData

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSUI(conn *websocket.Conn, logger *zap.Logger) *wsUI {
	return &wsUI{
		conn:    conn,
		logger:  logger,
		pending: make(map[uint64]chan replyData),
		closed:  make(chan struct{}),
	}
}

func (u *wsUI) send(msgType string, id uint64, data any) error {
	select {
	case <-u.closed:
		return errConnClosed
	default:
	}

	env := envelope{Type: msgType, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", msgType, err)
		}
		env.Data = raw
	}

	u.writeMu.Lock()
	defer u.writeMu.Unlock()
	u.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := u.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	return nil
}

// notify sends a message nobody waits on, logging failures.
func (u *wsUI) notify(msgType string, data any) {
	if err := u.send(msgType, 0, data); err != nil && !errors.Is(err, errConnClosed) {
		u.logger.Debug("notify failed", zap.String("type", msgType), zap.Error(err))
	}
}

// request sends a message and waits for the page's reply.
func (u *wsUI) request(ctx context.Context, msgType string, data any) (replyData, error) {
	ch := make(chan replyData, 1)
	u.mu.Lock()
	u.nextID++
	id := u.nextID
	u.pending[id] = ch
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		delete(u.pending, id)
		u.mu.Unlock()
	}()

	if err := u.send(msgType, id, data); err != nil {
		return replyData{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return replyData{}, ctx.Err()
	case <-u.closed:
		return replyData{}, errConnClosed
	}
}

// deliver routes a reply to the request waiting on it.
func (u *wsUI) deliver(id uint64, reply replyData) bool {
	u.mu.Lock()
	ch, ok := u.pending[id]
	u.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- reply:
	default:
	}
	return true
}

// Close fails every pending request and stops further sends.
func (u *wsUI) Close() error {
	var err error
	u.closeOnce.Do(func() {
		close(u.closed)
		err = u.conn.Close()
	})
	return err
}

func (u *wsUI) SetText(text string)           { u.notify("text", textData{Text: text}) }
func (u *wsUI) AppendOutput(text string)      { u.notify("output", textData{Text: text}) }
func (u *wsUI) ClearOutput()                  { u.notify("clear", nil) }
func (u *wsUI) SetOutputVisible(visible bool) { u.notify("visible", visibleData{Visible: visible}) }
func (u *wsUI) Resize()                       { u.notify("resize", nil) }

func (u *wsUI) Alert(ctx context.Context, message string) error {
	_, err := u.request(ctx, "alert", modalData{Message: message})
	return err
}

func (u *wsUI) Confirm(ctx context.Context, message string) (bool, error) {
	reply, err := u.request(ctx, "confirm", modalData{Message: message})
	return reply.OK, err
}

func (u *wsUI) Prompt(ctx context.Context, message, initial string) (string, bool, error) {
	reply, err := u.request(ctx, "prompt", modalData{Message: message, Initial: initial})
	if err != nil || !reply.OK {
		return "", false, err
	}
	return reply.Value, true, nil
}

func (u *wsUI) ChooseFile(ctx context.Context) (editor.File, bool, error) {
	reply, err := u.request(ctx, "choose_file", nil)
	if err != nil {
		return editor.File{}, false, err
	}
	var file editor.File
	if reply.File != nil {
		file = *reply.File
	}
	if reply.Error != "" {
		return file, false, errors.New(reply.Error)
	}
	if !reply.OK || reply.File == nil {
		return editor.File{}, false, nil
	}
	return file, true, nil
}

func (u *wsUI) Download(ctx context.Context, file editor.File) error {
	return u.send("download", 0, file)
}

func (u *wsUI) ShowSettings(ctx context.Context, current editor.Settings) (editor.Settings, bool, error) {
	reply, err := u.request(ctx, "settings", current)
	if err != nil || !reply.OK || reply.Settings == nil {
		return editor.Settings{}, false, err
	}
	return *reply.Settings, true, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	client := clientID(&headerRecorder{header: header}, r)

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(int64(s.maxSourceSize) + 4096)

	// page is the address the browser shows. It carries the shared code;
	// share links use it only when no base URL is configured.
	page := r.URL.Query().Get("page")
	base := s.pageBase(r)
	if page != "" && s.baseURL == "" {
		base = page
	}
	if page == "" {
		page = base
	}

	ui := newWSUI(conn, s.logger)
	session := s.newSession(ui, client, base)
	s.sessions.add(session, client, ui)
	logger := session.Logger().With(zap.String("request_id", requestID(r.Context())))
	logger.Info("session opened", zap.String("client", client))

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.sessions.close(session.ID())
		logger.Info("session closed")
	}()

	ui.notify("init", s.initMessage(session))
	if r.URL.Query().Get("resume") != "" {
		session.SetOutputVisible(r.URL.Query().Get("visible") == "1")
	} else if _, err := editor.Bootstrap(ctx, session, page); err != nil {
		logger.Warn("bootstrap failed", zap.Error(err))
	}

	s.readLoop(ctx, cancel, session, ui, logger)
}

func (s *Server) newSession(ui editor.UI, client, base string) *editor.EditorSession {
	return editor.NewEditorSession(ui,
		editor.WithInterpreters(s.interpreters...),
		editor.WithDrafts(s.draftsFor(client)),
		editor.WithSupportFiles(s.support),
		editor.WithBaseURL(stripQuery(base)),
		editor.WithTimeout(s.runTimeout),
		editor.WithLogger(s.logger))
}

func (s *Server) initMessage(session *editor.EditorSession) initData {
	bindings := session.Keymap().Bindings()
	msg := initData{
		Session:   session.ID(),
		Languages: s.interpreterNames(),
		Language:  session.Language(),
		Settings:  session.Settings(),
		Bindings:  make([]bindingMessage, len(bindings)),
	}
	for i, b := range bindings {
		msg.Bindings[i] = bindingMessage{
			Chord:  chordMessage{Ctrl: b.Chord.Ctrl, Shift: b.Chord.Shift, Alt: b.Chord.Alt, Meta: b.Chord.Meta, Key: b.Chord.Key},
			Action: b.Action,
			Label:  b.Label,
		}
	}
	return msg
}

// readLoop handles incoming messages until the connection drops. Actions
// run on their own goroutines so a modal waiting for a reply never blocks
// the loop that delivers the reply.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, session *editor.EditorSession, ui *wsUI, logger *zap.Logger) {
	var wg sync.WaitGroup
	defer wg.Wait()

	perform := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && ctx.Err() == nil && !errors.Is(err, errConnClosed) && !errors.Is(err, editor.ErrSessionClosed) {
				logger.Warn("action failed", zap.String("action", name), zap.Error(err))
			}
		}()
	}

	for {
		var env envelope
		if err := ui.conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read failed", zap.Error(err))
			}
			cancel()
			ui.Close()
			return
		}
		s.sessions.touch(session.ID())

		switch env.Type {
		case "text":
			var d textData
			if json.Unmarshal(env.Data, &d) == nil {
				session.SetText(d.Text)
			}
		case "key":
			var d chordMessage
			if json.Unmarshal(env.Data, &d) != nil {
				continue
			}
			chord := editor.NewChord(d.Ctrl, d.Shift, d.Alt, d.Meta, d.Key)
			if action, ok := session.Keymap().Lookup(chord); ok {
				perform(string(action), func() error { return editor.Perform(ctx, session, action) })
			}
		case "action":
			var d actionData
			if json.Unmarshal(env.Data, &d) != nil {
				continue
			}
			perform(string(d.Action), func() error { return editor.Perform(ctx, session, d.Action) })
		case "file":
			var d fileData
			if json.Unmarshal(env.Data, &d) != nil {
				continue
			}
			var readErr error
			if d.Error != "" {
				readErr = errors.New(d.Error)
			}
			perform("open", func() error { return editor.LoadFile(ctx, session, d.File, readErr) })
		case "reply":
			var d replyData
			if json.Unmarshal(env.Data, &d) == nil && !ui.deliver(env.ID, d) {
				logger.Debug("reply for unknown request", zap.Uint64("id", env.ID))
			}
		default:
			logger.Debug("unknown message", zap.String("type", env.Type))
		}
	}
}

// headerRecorder lets clientID set a cookie on the upgrade response.
type headerRecorder struct {
	http.ResponseWriter
	header http.Header
}

func (h *headerRecorder) Header() http.Header { return h.header }
