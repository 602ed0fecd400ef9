package server

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialSession(t *testing.T, s *Server, page string) *wsClient {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if page != "" {
		target += "?page=" + url.QueryEscape(page)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if len(resp.Cookies()) != 1 || resp.Cookies()[0].Name != clientCookie {
		t.Errorf("expected client cookie on upgrade, got %v", resp.Cookies())
	}
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msgType string, id uint64, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		c.t.Fatal(err)
	}
	if err := c.conn.WriteJSON(envelope{Type: msgType, ID: id, Data: raw}); err != nil {
		c.t.Fatalf("write failed: %v", err)
	}
}

// next reads messages until one of type msgType arrives.
func (c *wsClient) next(msgType string) envelope {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.t.Fatalf("waiting for %q: %v", msgType, err)
		}
		if env.Type == msgType {
			return env
		}
	}
}

// outputUntilDone collects output until the completion annotation.
func (c *wsClient) outputUntilDone() string {
	c.t.Helper()
	var b strings.Builder
	for !strings.Contains(b.String(), "<completed in ") {
		var d textData
		json.Unmarshal(c.next("output").Data, &d)
		b.WriteString(d.Text)
	}
	return b.String()
}

func TestWSInit(t *testing.T) {
	s := newTestServer(t)
	c := dialSession(t, s, "")

	var init initData
	if err := json.Unmarshal(c.next("init").Data, &init); err != nil {
		t.Fatal(err)
	}
	if init.Session == "" || init.Language != "starlark" {
		t.Errorf("unexpected init %+v", init)
	}
	if len(init.Bindings) != 8 {
		t.Errorf("expected 8 bindings, got %d", len(init.Bindings))
	}
	if init.Settings.FontSize != 15 || init.Settings.Theme != "vibrant_ink" {
		t.Errorf("unexpected settings %+v", init.Settings)
	}

	var vis visibleData
	json.Unmarshal(c.next("visible").Data, &vis)
	if vis.Visible {
		t.Error("output should start hidden")
	}
}

func TestWSBootstrapFromShareLink(t *testing.T) {
	s := newTestServer(t)
	c := dialSession(t, s, "https://rise.test/?code=print(2)")

	var d textData
	json.Unmarshal(c.next("text").Data, &d)
	if d.Text != "print(2)" {
		t.Errorf("expected shared source, got %q", d.Text)
	}
}

func TestWSBootstrapKeepsExactSource(t *testing.T) {
	s := newTestServer(t)
	c := dialSession(t, s, "https://rise.test/?code=%0D%0Aprint(2)")

	var d textData
	json.Unmarshal(c.next("text").Data, &d)
	if d.Text != "\r\nprint(2)" {
		t.Fatalf("expected shared source verbatim, got %q", d.Text)
	}

	c.send("action", 0, actionData{Action: "share"})
	prompt := c.next("prompt")
	var m modalData
	json.Unmarshal(prompt.Data, &m)
	if m.Initial != "https://rise.test/?code=%0D%0Aprint(2)" {
		t.Errorf("session text changed after bootstrap, link %q", m.Initial)
	}
	c.send("reply", prompt.ID, replyData{OK: false})
}

func TestWSRun(t *testing.T) {
	s := newTestServer(t)
	c := dialSession(t, s, "")
	c.next("init")

	c.send("text", 0, textData{Text: "print(1 + 1)"})
	c.send("action", 0, actionData{Action: "run"})

	out := c.outputUntilDone()
	if !strings.HasPrefix(out, "2\n\n<completed in ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestWSRunPromptsForInput(t *testing.T) {
	s := newTestServer(t)
	c := dialSession(t, s, "")
	c.next("init")

	c.send("text", 0, textData{Text: `print("hi " + input("name? "))`})
	c.send("key", 0, chordMessage{Ctrl: true, Key: "Enter"})

	prompt := c.next("prompt")
	var m modalData
	json.Unmarshal(prompt.Data, &m)
	if m.Message != "name? " {
		t.Errorf("unexpected prompt %q", m.Message)
	}
	c.send("reply", prompt.ID, replyData{OK: true, Value: "Ada"})

	out := c.outputUntilDone()
	if !strings.HasPrefix(out, "hi Ada\n") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestWSToggleChord(t *testing.T) {
	s := newTestServer(t)
	c := dialSession(t, s, "")
	c.next("init")
	c.next("visible")

	c.send("key", 0, chordMessage{Ctrl: true, Shift: true, Key: "e"})
	var vis visibleData
	json.Unmarshal(c.next("visible").Data, &vis)
	if !vis.Visible {
		t.Error("expected output to be shown")
	}
	c.next("resize")
}

func TestWSShare(t *testing.T) {
	s := newTestServer(t)
	c := dialSession(t, s, "https://rise.test/editor?x=1")
	c.next("init")

	c.send("text", 0, textData{Text: "a b"})
	c.send("action", 0, actionData{Action: "share"})

	prompt := c.next("prompt")
	var m modalData
	json.Unmarshal(prompt.Data, &m)
	if m.Message != "Copy link to clipboard: Ctrl+C, Enter" {
		t.Errorf("unexpected prompt %q", m.Message)
	}
	if m.Initial != "https://rise.test/?code=a%20b" {
		t.Errorf("unexpected link %q", m.Initial)
	}
	c.send("reply", prompt.ID, replyData{OK: false})
}

func TestWSShareUsesPageWithoutBaseURL(t *testing.T) {
	s := newTestServer(t, WithBaseURL(""))
	c := dialSession(t, s, "http://10.0.0.5:8080/editor?x=1")
	c.next("init")

	c.send("text", 0, textData{Text: "a"})
	c.send("action", 0, actionData{Action: "share"})

	prompt := c.next("prompt")
	var m modalData
	json.Unmarshal(prompt.Data, &m)
	if m.Initial != "http://10.0.0.5:8080/editor?code=a" {
		t.Errorf("unexpected link %q", m.Initial)
	}
	c.send("reply", prompt.ID, replyData{OK: false})
}

func TestWSShareKeepsBaseURLAndReadsPageCode(t *testing.T) {
	s := newTestServer(t, WithBaseURL("https://public.example/play"))
	c := dialSession(t, s, "http://10.0.0.5:8080/?x=1&code=a")
	c.next("init")

	text := c.next("text")
	var got textData
	json.Unmarshal(text.Data, &got)
	if got.Text != "a" {
		t.Fatalf("expected shared code from the page URL, got %q", got.Text)
	}

	c.send("action", 0, actionData{Action: "share"})
	prompt := c.next("prompt")
	var m modalData
	json.Unmarshal(prompt.Data, &m)
	if m.Initial != "https://public.example/play?code=a" {
		t.Errorf("unexpected link %q", m.Initial)
	}
	c.send("reply", prompt.ID, replyData{OK: false})
}

func TestWSClosedSessionIsForgotten(t *testing.T) {
	s := newTestServer(t)
	c := dialSession(t, s, "")
	c.next("init")
	if s.sessions.len() != 1 {
		t.Fatalf("expected 1 session, got %d", s.sessions.len())
	}

	c.conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for s.sessions.len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session was not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
