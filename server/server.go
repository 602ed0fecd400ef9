// Package server serves the editor page and drives one EditorSession per
// open page over a websocket.
//
// Endpoints:
//
//	GET  /            editor page, initial source resolved server-side
//	GET  /ws          websocket session (see ws.go for messages)
//	POST /api/run     run code statelessly
//	POST /api/share   build a share link
//	GET  /api/draft   load the client's saved draft
//	PUT  /api/draft   save the client's draft
//	GET  /download    download a live session's source as script<ext>
//	GET  /health      health check
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/caffeineduck/rise/editor"
	"github.com/caffeineduck/rise/hostfunc"
	"github.com/caffeineduck/rise/store"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Default ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithBaseURL fixes the URL share links are built on. By default it is
// derived from each request.
func WithBaseURL(url string) Option {
	return func(s *Server) {
		s.baseURL = url
	}
}

// WithInterpreters sets the languages offered. The first is the default.
func WithInterpreters(interps ...editor.Interpreter) Option {
	return func(s *Server) {
		s.interpreters = append(s.interpreters, interps...)
	}
}

// WithStore sets where drafts are kept. Default is an in-memory store.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithSupportFiles sets the support-file resolver for every session.
func WithSupportFiles(files *hostfunc.SupportFiles) Option {
	return func(s *Server) {
		s.support = files
	}
}

// WithSessionTTL closes sessions idle for longer than ttl.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.sessionTTL = ttl
	}
}

// WithRunTimeout bounds every run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.runTimeout = d
	}
}

// WithMaxSourceSize caps request bodies and websocket messages.
func WithMaxSourceSize(n int) Option {
	return func(s *Server) {
		s.maxSourceSize = n
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is the HTTP front end.
type Server struct {
	addr            string
	baseURL         string
	interpreters    []editor.Interpreter
	store           store.Store
	support         *hostfunc.SupportFiles
	sessionTTL      time.Duration
	runTimeout      time.Duration
	maxSourceSize   int
	shutdownTimeout time.Duration
	logger          *zap.Logger

	sessions *sessionManager
	upgrader websocket.Upgrader
	handler  http.Handler
}

// New creates a Server. At least one interpreter is required.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		addr:            ":8080",
		sessionTTL:      30 * time.Minute,
		maxSourceSize:   1 << 20,
		shutdownTimeout: 10 * time.Second,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.interpreters) == 0 {
		return nil, errors.New("server: at least one interpreter is required")
	}
	if s.store == nil {
		s.store = store.NewMemory()
	}

	s.sessions = newSessionManager(s.sessionTTL, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.Handle("GET /static/", staticHandler())
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("POST /api/share", s.handleShare)
	mux.HandleFunc("GET /api/draft", s.handleGetDraft)
	mux.HandleFunc("PUT /api/draft", s.handlePutDraft)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("GET /health", s.handleHealth)
	s.handler = s.withRequestLog(mux)

	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// and closes every session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.sessions.run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.sessions.closeAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// Close closes every live session.
func (s *Server) Close() error {
	s.sessions.closeAll()
	return nil
}

// interpreterNames lists the offered languages in preference order.
func (s *Server) interpreterNames() []string {
	names := make([]string, len(s.interpreters))
	for i, interp := range s.interpreters {
		names[i] = interp.Name()
	}
	return names
}

func (s *Server) interpreter(name string) (editor.Interpreter, bool) {
	if name == "" {
		return s.interpreters[0], true
	}
	for _, interp := range s.interpreters {
		if interp.Name() == name {
			return interp, true
		}
	}
	return nil, false
}
