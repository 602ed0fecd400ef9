package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/caffeineduck/rise/editor"
	"go.uber.org/zap"
)

//go:embed assets
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "assets/index.html"))

type pageData struct {
	Text      string
	Origin    string
	Languages []string
	Settings  editor.Settings
	Help      string
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// handlePage renders the editor with its initial source already resolved,
// so the page shows the right text before the websocket connects.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	drafts := s.draftsFor(clientID(w, r))
	pageURL := editor.PageURL(s.pageBase(r), r.URL.RawQuery)

	src, err := editor.ResolveSource(r.Context(), pageURL, drafts)
	if err != nil {
		s.logger.Warn("initial source partly unavailable",
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
	}

	keymap := editor.DefaultKeymap()
	data := pageData{
		Text:      src.Text,
		Origin:    src.Origin.String(),
		Languages: s.interpreterNames(),
		Settings:  editor.DefaultSettings(s.interpreters[0].Name()),
		Help:      keymap.Help(),
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("render page", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

// pageBase is the page URL share links are built on: the configured base
// URL, or the request's own scheme, host and path.
func (s *Server) pageBase(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	path := r.URL.Path
	if path == "" || path == "/ws" || strings.HasPrefix(path, "/api/") {
		path = "/"
	}
	return scheme + "://" + r.Host + path
}

// stripQuery drops the query and fragment of a URL.
func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
