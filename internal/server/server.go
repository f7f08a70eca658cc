// Package server implements the live preview server behind "livebundle serve".
//
// The server keeps the most recent successful bundle and serves it at
// /bundle.js next to a preview page. Every rebuild is announced to open pages
// over a websocket: a successful build makes them reload, a failed one shows
// the error while the previous bundle stays in place.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/livebundle/pkg/buildinfo"
	"github.com/matzehuels/livebundle/pkg/bundler"
	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/observability"
	"github.com/matzehuels/livebundle/pkg/resolve"
)

//go:embed preview.html
var previewHTML string

var previewTmpl = template.Must(template.New("preview").Parse(previewHTML))

const shutdownTimeout = 5 * time.Second

// Bundler is the subset of *bundler.Bundler the server uses.
type Bundler interface {
	Bundle(ctx context.Context, source string) bundler.Result
	State() bundler.InitState
}

// Options configures a Server.
type Options struct {
	// RegistryBase is where the preview page loads React from.
	RegistryBase string

	// Counters, when set, are reported by the status endpoint.
	Counters *observability.Counters

	// OriginPatterns lists extra hosts allowed to open the websocket.
	OriginPatterns []string
}

// Status is the body of GET /api/status.
type Status struct {
	State     bundler.InitState       `json:"state"`
	BuildID   string                  `json:"build_id,omitempty"`
	Component string                  `json:"component,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Clients   int                     `json:"clients"`
	Modules   *observability.Snapshot `json:"modules,omitempty"`
	Version   buildinfo.Info          `json:"version"`
}

// Server serves previews of the latest build.
type Server struct {
	bundler Bundler
	logger  *log.Logger
	opts    Options
	hub     *hub
	router  chi.Router

	mu      sync.RWMutex
	good    bundler.Result // last successful build
	lastErr string         // error of the latest build, cleared on success
}

// New creates a Server. A nil logger selects log.Default().
func New(b Bundler, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.RegistryBase == "" {
		opts.RegistryBase = resolve.DefaultRegistryBase
	}
	s := &Server{bundler: b, logger: logger, opts: opts, hub: newHub(logger)}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/bundle.js", s.handleBundleJS)
	r.Get("/ws", s.handleWebSocket)
	r.Route("/api", func(r chi.Router) {
		r.Post("/bundle", s.handleBundle)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Rebuild bundles source, records the outcome and notifies preview pages.
func (s *Server) Rebuild(ctx context.Context, source string) bundler.Result {
	res := s.bundler.Bundle(ctx, source)

	s.mu.Lock()
	if res.OK() {
		s.good = res
		s.lastErr = ""
	} else {
		s.lastErr = res.Error
	}
	s.mu.Unlock()

	if res.OK() {
		s.hub.broadcast(Message{Type: "reload", ID: res.ID})
	} else {
		s.hub.broadcast(Message{Type: "error", ID: res.ID, Error: res.Error})
	}
	return res
}

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("preview server listening", "addr", "http://"+addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := previewTmpl.Execute(w, s.opts); err != nil {
		s.logger.Error("render preview page", "err", err)
	}
}

func (s *Server) handleBundleJS(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	good, lastErr := s.good, s.lastErr
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if good.Code == "" {
		msg, _ := json.Marshal("no successful build yet: " + lastErr)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("console.error(" + string(msg) + ");\n"))
		return
	}
	w.Header().Set("X-Build-Id", good.ID)
	io.WriteString(w, good.Code)
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, lberrors.MaxSourceBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, bundler.Result{Error: "source too large"})
		return
	}
	res := s.bundler.Bundle(r.Context(), string(body))
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := Status{
		State:     s.bundler.State(),
		BuildID:   s.good.ID,
		Component: s.good.Component,
		Error:     s.lastErr,
		Version:   buildinfo.Get(),
	}
	s.mu.RUnlock()
	st.Clients = s.hub.count()
	if s.opts.Counters != nil {
		snap := s.opts.Counters.Snapshot()
		st.Modules = &snap
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.logger.Debug("preview connected", "clients", s.hub.add(c))
	s.hub.serve(r.Context(), c)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "took", time.Since(start).Round(time.Microsecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
