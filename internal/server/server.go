// Package server assembles every service behind one HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/campuscycle/campuscycle/internal/platform/httpx"
	"github.com/campuscycle/campuscycle/internal/platform/timeouts"
	authrest "github.com/campuscycle/campuscycle/internal/services/auth/api/rest"
	authapp "github.com/campuscycle/campuscycle/internal/services/auth/app"
	authsqlite "github.com/campuscycle/campuscycle/internal/services/auth/storage/sqlite"
	"github.com/campuscycle/campuscycle/internal/services/auth/token"
	chatrest "github.com/campuscycle/campuscycle/internal/services/chat/api/rest"
	chatws "github.com/campuscycle/campuscycle/internal/services/chat/api/ws"
	chatapp "github.com/campuscycle/campuscycle/internal/services/chat/app"
	chatsqlite "github.com/campuscycle/campuscycle/internal/services/chat/storage/sqlite"
	marketrest "github.com/campuscycle/campuscycle/internal/services/market/api/rest"
	marketapp "github.com/campuscycle/campuscycle/internal/services/market/app"
	marketsqlite "github.com/campuscycle/campuscycle/internal/services/market/storage/sqlite"
)

// Config carries the process settings shared by the server and seed commands.
type Config struct {
	Address       string `env:"CAMPUSCYCLE_HTTP_ADDR" envDefault:":4000"`
	DataDir       string `env:"CAMPUSCYCLE_DATA_DIR" envDefault:"data"`
	AccessSecret  string `env:"CAMPUSCYCLE_JWT_SECRET" envDefault:"dev-access-secret"`
	RefreshSecret string `env:"CAMPUSCYCLE_JWT_REFRESH_SECRET" envDefault:"dev-refresh-secret"`
	AppURL        string `env:"CAMPUSCYCLE_APP_URL" envDefault:"http://localhost:3000"`
}

// Server owns the storage handles and services behind the HTTP listener.
type Server struct {
	authStore   *authsqlite.Store
	marketStore *marketsqlite.Store
	chatStore   *chatsqlite.Store

	Auth   *authapp.Service
	Market *marketapp.Service
	Chat   *chatapp.Service

	httpServer *http.Server
}

// New opens the stores under cfg.DataDir and wires every service together.
func New(cfg Config) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	authStore, err := authsqlite.Open(filepath.Join(cfg.DataDir, "auth.db"))
	if err != nil {
		return nil, fmt.Errorf("open auth store: %w", err)
	}
	marketStore, err := marketsqlite.Open(filepath.Join(cfg.DataDir, "market.db"))
	if err != nil {
		_ = authStore.Close()
		return nil, fmt.Errorf("open market store: %w", err)
	}
	chatStore, err := chatsqlite.Open(filepath.Join(cfg.DataDir, "chat.db"))
	if err != nil {
		_ = authStore.Close()
		_ = marketStore.Close()
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	server, err := build(cfg, authStore, marketStore, chatStore)
	if err != nil {
		_ = authStore.Close()
		_ = marketStore.Close()
		_ = chatStore.Close()
		return nil, err
	}
	return server, nil
}

func build(cfg Config, authStore *authsqlite.Store, marketStore *marketsqlite.Store, chatStore *chatsqlite.Store) (*Server, error) {
	issuer, err := token.NewIssuer(cfg.AccessSecret, cfg.RefreshSecret, time.Now)
	if err != nil {
		return nil, fmt.Errorf("build token issuer: %w", err)
	}
	authSvc, err := authapp.NewService(authStore, authStore, issuer, nil, cfg.AppURL)
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}
	marketSvc, err := marketapp.NewService(marketStore, marketStore, marketStore, userDirectory{auth: authSvc})
	if err != nil {
		return nil, fmt.Errorf("build market service: %w", err)
	}
	chatSvc := chatapp.NewService(chatStore, chatStore,
		listingLookup{market: marketSvc}, chatUserLookup{auth: authSvc})

	server := &Server{
		authStore:   authStore,
		marketStore: marketStore,
		chatStore:   chatStore,
		Auth:        authSvc,
		Market:      marketSvc,
		Chat:        chatSvc,
	}
	server.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           server.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return server, nil
}

// Handler builds the full route tree: identity, marketplace, conversations,
// the realtime socket and the health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	authrest.NewHandler(s.Auth).Register(mux)
	marketrest.NewHandler(s.Market, s.Auth).Register(mux)
	chatrest.NewHandler(s.Chat, s.Auth).Register(mux)
	chatws.NewHandler(s.Chat, s.Auth).Register(mux)

	mux.HandleFunc(http.MethodGet+" /health", func(w http.ResponseWriter, r *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	handler := httpx.Chain(mux, httpx.RecoverPanic())
	return otelhttp.NewHandler(handler, "http.server")
}

// ListenAndServe runs the HTTP server until the context ends, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("server listening on %s", s.httpServer.Addr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the storage handles.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if err := s.chatStore.Close(); err != nil {
		log.Printf("close chat store: %v", err)
	}
	if err := s.marketStore.Close(); err != nil {
		log.Printf("close market store: %v", err)
	}
	if err := s.authStore.Close(); err != nil {
		log.Printf("close auth store: %v", err)
	}
}
