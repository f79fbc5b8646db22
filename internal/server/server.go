package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown
var ErrServerClosed = errors.New("server closed")

// Config holds the host server settings
type Config struct {
	Addr           string
	ReadTimeout    time.Duration // per request head, 0 disables
	MaxHeaderBytes int
	MaxBodySize    int64
}

func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		ReadTimeout: 30 * time.Second,
	}
}

// Handler serves one request. A non-nil error drops the connection.
type Handler interface {
	Serve(w *response.Writer, req *request.Request) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(w *response.Writer, req *request.Request) error

func (f HandlerFunc) Serve(w *response.Writer, req *request.Request) error {
	return f(w, req)
}

// Middleware wraps a Handler
type Middleware func(next Handler) Handler

type Server struct {
	cfg        Config
	handler    Handler
	middleware []Middleware
	logger     Logger
	metrics    *Metrics

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]*connState
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// Option configures a Server
type Option func(*Server)

func WithLogger(l Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a server that hands every request to h
func New(cfg Config, h Handler, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		handler: h,
		conns:   make(map[net.Conn]*connState),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = NewDefaultLogger()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	return s
}

// Use adds middleware. The first one added runs outermost.
// Must be called before Serve.
func (s *Server) Use(mw ...Middleware) {
	s.middleware = append(s.middleware, mw...)
}

func (s *Server) Logger() Logger {
	return s.logger
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Stats returns a snapshot of the server metrics
func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// ListenAndServe listens on the configured address and serves until Shutdown
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It always returns a
// non-nil error; ErrServerClosed after a Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	h := s.chain()
	s.logger.Info("server listening", Field{"addr", ln.Addr().String()})

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept timeout", Field{"error", err})
				continue
			}
			return err
		}

		state, ok := s.track(conn)
		if !ok {
			conn.Close()
			return ErrServerClosed
		}

		go s.serveConn(conn, state, h)
	}
}

// Addr returns the listener address once Serve has started
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections, closes idle ones and waits for the
// rest to finish their current request. When ctx ends first the remaining
// connections are closed and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed.Store(true)
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn, state := range s.conns {
		if state.idle.Load() {
			conn.Close()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server stopped")
		return err
	case <-ctx.Done():
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

func (s *Server) chain() Handler {
	h := s.handler
	for i := len(s.middleware) - 1; i >= 0; i-- {
		h = s.middleware[i](h)
	}
	return h
}

// connState is shared between a connection goroutine and Shutdown
type connState struct {
	idle atomic.Bool // waiting for the next request head
}

func (s *Server) track(conn net.Conn) (*connState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, false
	}
	state := &connState{}
	s.conns[conn] = state
	s.wg.Add(1)
	return state, true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}
