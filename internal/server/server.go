// Package server exposes the annotation engine and version history over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/config"
	"github.com/raaihank/annotext/internal/logger"
	"github.com/raaihank/annotext/internal/privacy"
	"github.com/raaihank/annotext/internal/tagging"
	"github.com/raaihank/annotext/internal/version"
	"github.com/raaihank/annotext/internal/websocket"
)

// Server is the annotation API server
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	catalog   *annotation.Catalog
	suggester *privacy.Suggester
	store     version.Store
	history   *version.History
	policy    atomic.Pointer[tagging.Policy]
	limiter   *clientLimiter
	router    *mux.Router
	server    *http.Server
	wsHub     *websocket.Hub
}

// New creates a new API server over the given version store
func New(cfg *config.Config, log *logger.Logger, store version.Store) (*Server, error) {
	catalog, err := annotation.NewCatalog(cfg.Annotation.Classes...)
	if err != nil {
		return nil, fmt.Errorf("failed to build class catalog: %w", err)
	}

	suggester, err := privacy.New(cfg.Privacy, log.WithComponent("privacy"))
	if err != nil {
		return nil, fmt.Errorf("failed to create privacy suggester: %w", err)
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastVersions:    cfg.WebSocket.Events.BroadcastVersions,
		BroadcastDiffs:       cfg.WebSocket.Events.BroadcastDiffs,
		BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
		AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
		MaxConnections:       cfg.WebSocket.MaxConnections,
		ReadBufferSize:       cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:      cfg.WebSocket.WriteBufferSize,
		PingInterval:         cfg.WebSocket.PingInterval,
		PongTimeout:          cfg.WebSocket.PongTimeout,
		WriteTimeout:         cfg.WebSocket.WriteTimeout,
		MaxMessageSize:       cfg.WebSocket.MaxMessageSize,
	}, log.WithComponent("websocket").Logger)

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		catalog:   catalog,
		suggester: suggester,
		store:     store,
		history:   version.NewHistory(store, log.WithComponent("history").Logger),
		router:    mux.NewRouter(),
		wsHub:     wsHub,
	}
	s.SetPolicy(cfg.Annotation.Policy)

	if cfg.RateLimit.Enabled {
		s.limiter = newClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.requestIDMiddleware)
	api.Use(s.loggingMiddleware)
	if s.limiter != nil {
		api.Use(s.rateLimitMiddleware)
	}

	api.HandleFunc("/classes", s.handleClasses).Methods("GET")
	api.HandleFunc("/segments", s.handleSegments).Methods("POST")
	api.HandleFunc("/deidentify", s.handleDeidentify).Methods("POST")
	api.HandleFunc("/tags/next", s.handleNextTag).Methods("POST")
	api.HandleFunc("/tags/lookup", s.handleLookupTag).Methods("POST")
	api.HandleFunc("/annotate", s.handleAnnotate).Methods("POST")
	api.HandleFunc("/suggest", s.handleSuggest).Methods("POST")

	api.HandleFunc("/documents/{documentID}/versions", s.handleAppendVersion).Methods("POST")
	api.HandleFunc("/documents/{documentID}/versions", s.handleListVersions).Methods("GET")
	api.HandleFunc("/versions/{versionID}", s.handleGetVersion).Methods("GET")
	api.HandleFunc("/versions/{versionID}/diff", s.handleDiffPrevious).Methods("GET")
	api.HandleFunc("/diff", s.handleDiff).Methods("GET")
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetPolicy swaps the tagging policy used for new selections
func (s *Server) SetPolicy(p tagging.Policy) {
	s.policy.Store(&p)
}

// Policy returns the active tagging policy
func (s *Server) Policy() tagging.Policy {
	return *s.policy.Load()
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting annotext server",
		zap.Int("port", s.config.Server.Port),
		zap.String("storage", s.config.Storage.Driver),
		zap.Bool("link_duplicates", s.Policy().LinkDuplicates),
		zap.Strings("detectors", s.suggester.EnabledRules()),
	)

	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping annotext server")
	s.wsHub.Stop()
	return s.server.Shutdown(ctx)
}

// Hub returns the WebSocket hub for broadcasting events
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}
