package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Server is the lifecycle manager: it binds the listeners, admits new
// connections into the hub and coordinates shutdown.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	hub     *Hub

	listener    net.Listener
	webListener net.Listener
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	origins     *originPolicy

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the structured logger used by the server and its hub.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server for cfg. Nothing is bound until Listen is called.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg.sanitized(),
		logger:  slog.Default(),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	policy, invalid := newOriginPolicy(s.cfg.AllowedOrigins)
	for _, origin := range invalid {
		s.logger.Warn("ignoring invalid origin in configuration", "origin", origin)
	}
	s.origins = policy
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.hub = NewHub(s.cfg, s.logger, s.metrics)
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Online reports the number of admitted users.
func (s *Server) Online() int {
	return s.hub.Online()
}

// Listen binds the chat listener and, if configured, the HTTP listener, then
// starts the hub. A bind failure is returned to the caller and is fatal.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	if s.cfg.HTTPAddr != "" {
		webLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
		}
		s.webListener = webLn
		s.httpServer = CreateServer(webLn.Addr().String(), s.Routes())
	}

	s.hub.Start()
	s.logger.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound chat address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebAddr returns the bound HTTP address, or nil if HTTP is disabled.
func (s *Server) WebAddr() net.Addr {
	if s.webListener == nil {
		return nil
	}
	return s.webListener.Addr()
}

// Serve accepts chat connections until the listener is closed by Shutdown,
// at which point it returns nil.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}
	for {
		if err := s.acceptOne(); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// ServeWeb serves the HTTP surface until Shutdown. It returns nil right away
// when HTTP is disabled.
func (s *Server) ServeWeb() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("http listening", "addr", s.webListener.Addr().String())
	if err := s.httpServer.Serve(s.webListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown notifies and disconnects every client, stops the hub, and closes
// the listeners. Only the first call does any work.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("closing server")
		var errs []error

		if err := s.hub.Shutdown(timeout); err != nil {
			errs = append(errs, err)
		}
		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		if s.httpServer != nil {
			if err := ShutdownServer(s.httpServer, timeout); err != nil {
				errs = append(errs, err)
			}
		}

		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active requests.
// Upgraded WebSocket connections are not tracked by it; the hub closes those.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
