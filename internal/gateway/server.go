// Package gateway serves ideabot's HTTP surface: health and metrics probes,
// the Telegram webhook, a read-only JSON API for the companion web table and
// a WebSocket feed of freshly captured ideas.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alekspetrov/ideabot/internal/logging"
	"github.com/alekspetrov/ideabot/internal/store"
)

// Server is the gateway HTTP server. Server is safe for concurrent use.
type Server struct {
	config     *Config
	authConfig *AuthConfig
	store      store.Store
	hub        *Hub
	webhook    http.Handler
	gatherer   prometheus.Gatherer
	upgrader   websocket.Upgrader
	server     *http.Server
	mu         sync.RWMutex
	running    bool
}

// Config holds gateway server configuration including network binding options.
type Config struct {
	// Enabled starts the server. Webhook mode starts it regardless.
	Enabled bool `yaml:"enabled"`
	// Host is the network interface to bind to (e.g., "127.0.0.1" or "0.0.0.0").
	Host string `yaml:"host"`
	// Port is the TCP port number to listen on.
	Port int `yaml:"port"`
	// APIToken protects /api/v1/* and /ws. Empty leaves them open to loopback
	// callers only.
	APIToken string `yaml:"api_token"`
}

// DefaultConfig binds to loopback on 9091.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    9091,
	}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig derives the authenticator settings from the API token.
func (c *Config) AuthConfig() *AuthConfig {
	if c.APIToken == "" {
		return &AuthConfig{Type: AuthTypeLocal}
	}
	return &AuthConfig{Type: AuthTypeAPIToken, Token: c.APIToken}
}

// NewServer creates a new gateway server with the given configuration.
// The server is not started until Start is called.
func NewServer(config *Config, opts ...ServerOption) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no origin
				if origin == "" {
					return true
				}
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption is a functional option for configuring Server.
type ServerOption func(*Server)

// WithAuthConfig overrides the authentication derived from Config.APIToken.
func WithAuthConfig(auth *AuthConfig) ServerOption {
	return func(s *Server) {
		s.authConfig = auth
	}
}

// WithStore enables the /api/v1 endpoints and the live feed history.
func WithStore(st store.Store) ServerOption {
	return func(s *Server) {
		s.store = st
	}
}

// WithHub enables the /ws live feed.
func WithHub(h *Hub) ServerOption {
	return func(s *Server) {
		s.hub = h
	}
}

// WithTelegramWebhook mounts the Telegram webhook receiver.
func WithTelegramWebhook(h http.Handler) ServerOption {
	return func(s *Server) {
		s.webhook = h
	}
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// Handler builds the request multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("/health", s.handleHealth)

	gatherer := s.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// The webhook checks Telegram's secret header itself
	if s.webhook != nil {
		mux.Handle("/webhooks/telegram", s.webhook)
	}

	authConfig := s.authConfig
	if authConfig == nil {
		authConfig = s.config.AuthConfig()
	}
	auth := NewAuthenticator(authConfig)

	mux.Handle("/api/v1/ideas", auth.Middleware(http.HandlerFunc(s.handleIdeas)))
	mux.Handle("/api/v1/stats", auth.Middleware(http.HandlerFunc(s.handleStats)))
	mux.Handle("/api/v1/categories", auth.Middleware(http.HandlerFunc(s.handleCategories)))
	mux.Handle("/ws", auth.Middleware(http.HandlerFunc(s.handleLiveFeed)))

	return mux
}

// Start starts the gateway server and blocks until the context is cancelled
// or an error occurs. Returns an error if the server fails to start or is
// already running.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true

	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	logging.WithComponent("gateway").Info("Gateway starting", slog.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server with a 30-second timeout.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.running = false
	return s.server.Shutdown(ctx)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
