// Package server provides the HTTP API for Novellize.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/config"
	"github.com/novellize/novellize/internal/keyword"
	"github.com/novellize/novellize/internal/llm"
	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/internal/recommend"
	"github.com/novellize/novellize/pkg/utils"
)

// Recommender answers chat requests.
type Recommender interface {
	Chat(ctx context.Context, messages []models.ChatMessage) (*models.ChatResponse, recommend.Outcome)
}

// CacheProxy is the cache surface used by the API.
type CacheProxy interface {
	Catalog(ctx context.Context) ([]models.Novel, bool)
	GetRaw(ctx context.Context, key string) (any, bool, error)
	SetRaw(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Ping(ctx context.Context) error
}

// WatchService manages the watched catalog seed directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Deps are the collaborators of a Server. Index, Watch and LLM are optional.
type Deps struct {
	Recommender Recommender
	Cache       CacheProxy
	Index       keyword.Index
	Watch       WatchService
	LLM         llm.Client
}

// Server is the HTTP server for the Novellize API.
type Server struct {
	deps       Deps
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	startedAt  time.Time
	server     *http.Server
}

// NewServer creates a server. configPath, when set, is where watch directory
// changes are persisted.
func NewServer(deps Deps, cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	return &Server{
		deps:       deps,
		config:     cfg,
		configPath: configPath,
		logger:     utils.LoggerOrNop(logger),
		startedAt:  time.Now(),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		if s.config.Server.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.config.Server.RateLimit, time.Minute))
		}
		r.Post("/chat", s.handleChat)
		r.Get("/redis", s.handleCacheGet)
		r.Post("/redis", s.handleCacheSet)
		r.Get("/novels/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/sitemap.xml", s.handleSitemap)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
