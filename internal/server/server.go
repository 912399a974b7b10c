package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/muurk/onvif-discover/internal/logging"
	"github.com/muurk/onvif-discover/internal/metrics"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a discovery run is requested while one is active.
var ErrRunInProgress = errors.New("discovery run already in progress")

// Config holds the server configuration
type Config struct {
	Listen    string
	Interval  time.Duration // Delay between periodic runs, 0 disables them
	Advertise bool          // Announce the feed over mDNS
	Instance  string        // mDNS instance name
	CertPath  string        // Serve HTTPS when set together with KeyPath
	KeyPath   string

	// NewBuilder returns a configured discovery builder for each run.
	NewBuilder func() (*discovery.Builder, error)
}

// Server runs discovery and streams its events to HTTP clients.
type Server struct {
	config    *Config
	metrics   *metrics.Metrics
	hub       *hub
	handler   http.Handler
	tlsConfig *tls.Config

	httpServer *http.Server
	listener   net.Listener
	mdns       *zeroconf.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	runMu   sync.Mutex
	running bool

	mu   sync.RWMutex
	last *discovery.Result
}

// New creates a new Server instance. A nil m creates a private metrics registry.
func New(config *Config, m *metrics.Metrics) (*Server, error) {
	if config == nil || config.NewBuilder == nil {
		return nil, errors.New("server config requires a builder factory")
	}
	if m == nil {
		m = metrics.New()
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    config,
		metrics:   m,
		hub:       newHub(m.FeedConnected),
		tlsConfig: tlsConfig,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the API, feed and metrics.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listening address once Start or Listen has succeeded.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the configured address without serving yet.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener
	return nil
}

// Start serves until ctx is cancelled, a shutdown signal arrives or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	logging.Info("Starting discovery event server",
		zap.String("addr", s.listener.Addr().String()),
		zap.Duration("interval", s.config.Interval),
		zap.Bool("advertise", s.config.Advertise),
		zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
	)

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.config.Advertise {
		if err := s.advertise(); err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	if s.config.Interval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.periodic(s.config.Interval)
		}()
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// periodic runs discovery immediately and then every interval until shutdown.
func (s *Server) periodic(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Discover(s.ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			logging.Warn("Periodic discovery run failed", zap.Error(err))
		}
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Discover performs one run, streams its events to feed clients and keeps
// the result for /api/devices. Only one run is active at a time.
func (s *Server) Discover(ctx context.Context) (*discovery.Result, error) {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.runMu.Unlock()
	defer func() {
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
	}()

	b, err := s.config.NewBuilder()
	if err != nil {
		return nil, err
	}

	var mode discovery.Mode
	cfg, err := b.
		OnEvent(func(ev discovery.Event) { s.hub.broadcast(newMessage(ev, mode)) }).
		Observer(s.metrics).
		Build()
	if err != nil {
		return nil, err
	}
	mode = cfg.Mode()

	run, err := cfg.Discover(ctx)
	if err != nil {
		return nil, err
	}
	result := run.Wait()

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
	return result, nil
}

// LastResult returns the most recent completed run, or nil.
func (s *Server) LastResult() *discovery.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.cancel()
	if s.mdns != nil {
		s.mdns.Shutdown()
		s.mdns = nil
	}
	s.hub.close()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	} else if s.listener != nil {
		err = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Server stopped")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of connected feed clients
func (s *Server) GetActiveConnections() int {
	return s.hub.count()
}
