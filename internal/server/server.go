// Package server serves the build output during development: a static file
// handler with conditional GET and Accept negotiation, plus the live-reload
// socket the injected client script connects to.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/stasis/internal/config"
	"github.com/conneroisu/stasis/internal/logging"
	"github.com/conneroisu/stasis/internal/reload"
	"github.com/conneroisu/stasis/internal/validation"
)

// Server is the development server.
type Server struct {
	config *config.Config
	logger logging.Logger
	files  *FileServer
	hub    *reload.Hub

	httpServer   *http.Server
	listener     net.Listener
	serverMutex  sync.RWMutex // Protects httpServer and listener
	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	fs   afero.Fs
	sink Sink
}

// WithFs serves the output directory from fsys.
func WithFs(fsys afero.Fs) Option {
	return func(o *serverOptions) {
		o.fs = fsys
	}
}

// WithRequestSink replaces the default logging sink.
func WithRequestSink(sink Sink) Option {
	return func(o *serverOptions) {
		o.sink = sink
	}
}

// New creates a server for cfg.Build.Output.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) *Server {
	logger = logger.WithComponent("server")

	o := serverOptions{fs: afero.NewOsFs(), sink: LogSink{Logger: logger}}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{config: cfg, logger: logger}

	fileOpts := []FileServerOption{WithFileSystem(o.fs), WithSink(o.sink)}
	if cfg.Server.LiveReload {
		s.hub = reload.NewHub(logger)
		script := ReloadScript(ReloadPath, cfg.Watch.Interval)
		fileOpts = append(fileOpts, WithInjection(cfg.Server.ReloadAnchor, script))
	}
	s.files = NewFileServer(cfg.Build.Output, fileOpts...)

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.hub != nil {
		mux.Handle(ReloadPath, s.hub)
	}
	mux.Handle("/", s.files)
	return mux
}

// Listen binds the configured address. Port 0 picks a free port; the
// listener's address is the one actually bound.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	return ln, nil
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	location := "http://" + ln.Addr().String()
	s.logger.Info(ctx, "Serving", "url", location, "root", s.files.Root(), "live_reload", s.hub != nil)

	if s.config.Server.Open {
		go s.openBrowser(ctx, location)
	}

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Addr returns the bound address once serving, or "".
func (s *Server) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Reload tells connected pages that paths changed.
func (s *Server) Reload(ctx context.Context, paths []string) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(reload.Message{Type: "reload", Paths: paths}); err != nil {
		s.logger.Warn(ctx, err, "Failed to broadcast reload")
		return
	}
	s.logger.Debug(ctx, "Reload broadcast", "paths", len(paths), "clients", s.hub.ClientCount())
}

// Shutdown gracefully shuts down the server and disconnects reload clients.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		// Hijacked reload sockets are not tracked by http.Server.
		if s.hub != nil {
			s.hub.Shutdown()
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) openBrowser(ctx context.Context, rawURL string) {
	time.Sleep(100 * time.Millisecond) // Give server time to start

	if err := validation.ValidateURL(rawURL); err != nil {
		s.logger.Warn(ctx, err, "Refusing to open browser for invalid URL", "url", rawURL)
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", rawURL).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL).Start()
	case "darwin":
		err = exec.Command("open", rawURL).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}
