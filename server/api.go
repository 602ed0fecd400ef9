package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/caffeineduck/rise/editor"
	"github.com/caffeineduck/rise/share"
	"github.com/caffeineduck/rise/store"
	"go.uber.org/zap"
)

type runRequest struct {
	Code    string `json:"code"`
	Lang    string `json:"lang,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type runResponse struct {
	Output     string `json:"output"`
	Outcome    string `json:"outcome"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type shareRequest struct {
	Code    string `json:"code"`
	BaseURL string `json:"base_url,omitempty"`
}

type shareResponse struct {
	URL string `json:"url"`
}

type draftBody struct {
	Code  string `json:"code"`
	Saved bool   `json:"saved"`
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxSourceSize)+4096)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleRun runs code once without a session. Input prompts are answered
// as cancelled and output is returned whole.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	interp, ok := s.interpreter(req.Lang)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown language %q", req.Lang), http.StatusBadRequest)
		return
	}

	timeout := s.runTimeout
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			http.Error(w, "invalid timeout", http.StatusBadRequest)
			return
		}
		if timeout == 0 || d < timeout {
			timeout = d
		}
	}

	output := editor.NewOutputBuffer(nil)
	bridge := editor.NewBridge(output,
		editor.WithRunTimeout(timeout),
		editor.WithBridgeLogger(s.logger.With(zap.String("request_id", requestID(r.Context())))))
	result := bridge.Run(r.Context(), interp, req.Code, headlessEnv{s})

	resp := runResponse{
		Output:     output.String(),
		Outcome:    result.Outcome.String(),
		DurationMs: result.Elapsed.Milliseconds(),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// headlessEnv serves support files but cannot ask the user anything.
type headlessEnv struct {
	s *Server
}

func (e headlessEnv) Input(ctx context.Context, prompt string) (string, bool, error) {
	return "", false, nil
}

func (e headlessEnv) ReadSupportFile(name string) (string, error) {
	return e.s.support.Read(name)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	base := req.BaseURL
	if base == "" {
		base = s.pageBase(r)
	}
	link, err := share.Encode(req.Code, base)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{URL: link})
}

func (s *Server) drafts(w http.ResponseWriter, r *http.Request) *store.Drafts {
	return s.draftsFor(clientID(w, r))
}

func (s *Server) draftsFor(client string) *store.Drafts {
	return store.NewDrafts(s.store, client)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	code, ok, err := s.drafts(w, r).Load(r.Context())
	if err != nil {
		s.logger.Error("load draft", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		http.Error(w, "failed to load draft", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, draftBody{Code: code, Saved: ok})
}

func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	var body draftBody
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if err := s.drafts(w, r).Save(r.Context(), body.Code); err != nil {
		s.logger.Error("save draft", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		http.Error(w, "failed to save draft", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDownload serves a live session's current source as an attachment.
// Only the client that opened the session can fetch it.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		http.Error(w, "session required", http.StatusBadRequest)
		return
	}
	var client string
	if c, err := r.Cookie(clientCookie); err == nil {
		client = c.Value
	}
	session, ok := s.sessions.get(id, client)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	name, err := editor.DownloadName(session)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	io.WriteString(w, session.Text())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
