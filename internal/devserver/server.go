// Package devserver serves the built site and tells connected browsers to
// reload when a rebuild finishes.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/sitepipe/internal/log"
)

// Reserved paths under which the server exposes its own endpoints.
const (
	wsPath      = "/__sitepipe/ws"
	reloadPath  = "/__sitepipe/reload.js"
	metricsPath = "/__sitepipe/metrics"
)

const shutdownTimeout = 5 * time.Second

// ErrRootMissing is returned by Run when the directory to serve does not
// exist.
var ErrRootMissing = errors.New("server root does not exist")

// Options configures a Server.
type Options struct {
	// Root is the directory to serve.
	Root string
	Host string
	// Port is the listen port; 0 picks an ephemeral port.
	Port int

	// Metrics, when set, is served at /__sitepipe/metrics.
	Metrics http.Handler

	// OnReload is called for every Reload.
	OnReload func()
}

// Server is a static file server with live reload.
type Server struct {
	opts Options
	hub  *hub
	log  zerolog.Logger

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// New creates a server. Nothing listens until Run.
func New(opts Options) *Server {
	return &Server{
		opts:  opts,
		hub:   newHub(),
		log:   log.Nop(),
		ready: make(chan struct{}),
	}
}

// Name implements runner.Runnable.
func (s *Server) Name() string { return "server" }

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, func(w http.ResponseWriter, r *http.Request) {
		s.hub.serveWS(s.logger(), w, r)
	})
	mux.HandleFunc(reloadPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(reloadScript)
	})
	if s.opts.Metrics != nil {
		mux.Handle(metricsPath, s.opts.Metrics)
	}
	mux.Handle("/", injectReload(http.FileServer(http.Dir(s.opts.Root))))

	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	})(mux)
}

// Run listens and serves until ctx is done. A missing root or a failed
// bind is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.log = log.Component(log.Get(ctx), "server")
	s.mu.Unlock()
	l := s.logger()

	info, err := os.Stat(s.opts.Root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootMissing, s.opts.Root)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	l.Info().Str("url", s.URL()).Str("root", s.opts.Root).Msg("serving")
	return g.Wait()
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// URL returns the base URL, or "" before the server is listening.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return "http://" + s.addr.String()
}

// Reload tells every connected browser to reload.
func (s *Server) Reload() {
	n := s.hub.broadcast()
	if s.opts.OnReload != nil {
		s.opts.OnReload()
	}
	l := s.logger()
	l.Debug().Int("clients", n).Msg("reload")
}

func (s *Server) logger() zerolog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// Clients returns the number of connected reload clients.
func (s *Server) Clients() int {
	return s.hub.count()
}
