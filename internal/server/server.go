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

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/ssdp-scan/internal/discovery"
	"github.com/muurk/ssdp-scan/internal/logging"
)

const (
	// DefaultMaxTimeout caps the receive window a client may ask for
	DefaultMaxTimeout = 30 * time.Second

	// shutdownTimeout bounds how long Start waits for scans to finish
	shutdownTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Addr     string // Listen address, e.g. ":8900"
	CertPath string // TLS certificate (optional, serves plain HTTP when empty)
	KeyPath  string // TLS private key (required with CertPath)

	// Session performs the discoveries; nil uses discovery.NewSession()
	Session *discovery.Session

	// Defaults fills request fields a client leaves out
	Defaults discovery.SearchRequest

	// MaxTimeout caps the per-request receive window (default 30s)
	MaxTimeout time.Duration

	// Announce registers the endpoint over mDNS as InstanceName
	Announce     bool
	InstanceName string
}

// Server streams SSDP discoveries to websocket clients
type Server struct {
	config      *Config
	httpServer  *http.Server
	listener    net.Listener
	tlsConfig   *tls.Config
	upgrader    websocket.Upgrader
	announcer   *zeroconf.Server
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	if config == nil {
		return nil, errors.New("server config is required")
	}
	if (config.CertPath == "") != (config.KeyPath == "") {
		return nil, errors.New("both a certificate and a key must be provided, or neither")
	}

	cfg := *config
	if cfg.Session == nil {
		cfg.Session = discovery.NewSession()
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = DefaultMaxTimeout
	}
	if cfg.InstanceName == "" {
		cfg.InstanceName = defaultInstanceName()
	}

	s := &Server{
		config:      &cfg,
		activeConns: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser dashboards on other origins may subscribe
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	if cfg.CertPath != "" {
		tlsConfig, err := NewTLSConfig(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP routes served by the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/scan", s.handleScan)
	mux.HandleFunc("/healthz", handleHealth)
	return mux
}

// Start starts the server and blocks until a shutdown signal or error
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// Serve accepts connections on listener until Shutdown is called.
// It announces the endpoint over mDNS first when configured to.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	scheme := "ws"
	if s.tlsConfig != nil {
		scheme = "wss"
	}
	logging.Info("Starting SSDP scan server",
		zap.String("addr", listener.Addr().String()),
		zap.String("scheme", scheme),
		zap.Duration("max_timeout", s.config.MaxTimeout),
	)

	if s.config.Announce {
		if port, ok := listenerPort(listener); ok {
			announcer, err := Announce(s.config.InstanceName, port, []string{"path=/scan", "scheme=" + scheme})
			if err != nil {
				logging.Warn("mDNS announcement failed", zap.Error(err))
			} else {
				s.mu.Lock()
				s.announcer = announcer
				s.mu.Unlock()
			}
		}
	}

	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	if s.announcer != nil {
		s.announcer.Shutdown()
		s.announcer = nil
	}
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)

	// Hijacked websocket connections are not tracked by http.Server
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()

	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

// GetActiveConnections returns the number of active websocket connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(addr string, conn *websocket.Conn) {
	s.mu.Lock()
	s.activeConns[addr] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(addr string) {
	s.mu.Lock()
	delete(s.activeConns, addr)
	s.mu.Unlock()
}

func listenerPort(listener net.Listener) (int, bool) {
	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, false
	}
	return addr.Port, true
}

func defaultInstanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "ssdp-scan"
	}
	return "ssdp-scan on " + host
}
