package server

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/catalog"
	"github.com/novellize/novellize/internal/config"
	"github.com/novellize/novellize/internal/keyword"
	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/internal/recommend"
	"github.com/novellize/novellize/internal/sitemap"
	"github.com/novellize/novellize/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("chat handler panic",
				zap.Any("panic", rec),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Stack("stack"))
			s.respondChat(w, http.StatusInternalServerError, recommend.InternalErrorMessage)
		}
	}()

	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.logger.Debug("chat: invalid body", zap.Error(err))
		s.respondChat(w, http.StatusBadRequest, recommend.InvalidRequestMessage)
		return
	}
	if err := config.Validator().Struct(&req); err != nil {
		s.logger.Debug("chat: validation failed", zap.Error(err))
		s.respondChat(w, http.StatusBadRequest, recommend.InvalidRequestMessage)
		return
	}

	ctx := recommend.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	resp, outcome := s.deps.Recommender.Chat(ctx, req.Messages)
	status := http.StatusOK
	if outcome == recommend.OutcomeNoUserMessage {
		status = http.StatusBadRequest
	}
	s.respondJSON(w, status, resp)
}

// respondChat writes the uniform chat payload with no recommendations.
func (s *Server) respondChat(w http.ResponseWriter, status int, explanation string) {
	s.respondJSON(w, status, models.NewChatResponse(explanation, nil, models.NovelPreference{}))
}

type cacheGetResponse struct {
	Data any `json:"data,omitempty"`
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	value, found, err := s.deps.Cache.GetRaw(r.Context(), key)
	if err != nil {
		s.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		s.respondErrorDetails(w, http.StatusInternalServerError, "failed to read from cache", err)
		return
	}
	if !found {
		s.respondJSON(w, http.StatusOK, cacheGetResponse{})
		return
	}
	s.respondJSON(w, http.StatusOK, cacheGetResponse{Data: value})
}

type cacheSetRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	// TTL is in seconds; absent or zero means no expiry.
	TTL *float64 `json:"ttl,omitempty"`
}

type cacheSetResponse struct {
	Success            bool `json:"success"`
	VerificationResult bool `json:"verificationResult"`
}

func (s *Server) handleCacheSet(w http.ResponseWriter, r *http.Request) {
	var req cacheSetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		s.respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	raw := bytes.TrimSpace(req.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		s.respondError(w, http.StatusBadRequest, "value is required")
		return
	}
	var ttl time.Duration
	if req.TTL != nil {
		if *req.TTL < 0 || math.IsNaN(*req.TTL) || math.IsInf(*req.TTL, 0) {
			s.respondError(w, http.StatusBadRequest, "ttl must be a non-negative number of seconds")
			return
		}
		ttl = time.Duration(*req.TTL * float64(time.Second))
	}

	// String values go to SetRaw as strings so they read back as strings.
	var value any = json.RawMessage(raw)
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid string value")
			return
		}
		value = str
	}

	verified, err := s.deps.Cache.SetRaw(r.Context(), req.Key, value, ttl)
	if errors.Is(err, catalog.ErrValueTooLarge) {
		s.respondErrorDetails(w, http.StatusBadRequest, "value too large", err)
		return
	}
	if err != nil {
		s.logger.Error("cache set failed", zap.String("key", req.Key), zap.Error(err))
		s.respondErrorDetails(w, http.StatusInternalServerError, "failed to write to cache", err)
		return
	}
	if req.Key == catalog.CatalogKey {
		s.reindexCatalog(r.Context())
	}
	s.respondJSON(w, http.StatusOK, cacheSetResponse{Success: true, VerificationResult: verified})
}

// reindexCatalog rebuilds the search index from the cached catalog.
func (s *Server) reindexCatalog(ctx context.Context) {
	if s.deps.Index == nil {
		return
	}
	novels, _ := s.deps.Cache.Catalog(ctx)
	if err := s.deps.Index.Rebuild(ctx, novels); err != nil {
		s.logger.Warn("search index rebuild failed", zap.Error(err))
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Index == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := s.config.Search.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, s.config.Search.MaxLimit)
	}
	fuzzy, _ := strconv.ParseBool(r.URL.Query().Get("fuzzy"))

	hits, err := s.deps.Index.Search(r.Context(), q, limit, fuzzy)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	novels, _ := s.deps.Cache.Catalog(r.Context())
	resp := models.SearchResponse{Query: q, Results: keyword.Resolve(hits, novels)}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	base := s.config.Server.BaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	novels, _ := s.deps.Cache.Catalog(r.Context())
	out, err := sitemap.Build(base, novels, time.Now())
	if err != nil {
		s.logger.Error("sitemap failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "sitemap unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Cache.Ping(ctx); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "cache": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	novels, ok := s.deps.Cache.Catalog(ctx)
	resp := map[string]any{
		"catalog_loaded": ok,
		"catalog_size":   len(novels),
		"valid_novels":   len(recommend.FilterValid(novels)),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if s.deps.Index != nil {
		if count, err := s.deps.Index.DocCount(); err == nil {
			resp["indexed_novels"] = count
		}
	}
	if b, ok := s.deps.LLM.(interface{ State() string }); ok {
		resp["llm_breaker"] = b.State()
	}

	cache := &s.config.Cache
	resp["config"] = map[string]any{
		"cache_backend":    cache.Backend,
		"catalog_ttl":      cache.CatalogTTL.String(),
		"llm_provider":     s.config.LLM.Provider,
		"llm_model":        s.config.LLM.Model,
		"bleve_index_path": s.config.Search.BleveIndexPath,
	}
	if diskBytes, err := storage.DiskUsageBytes(append(storage.DataPaths(cache), s.config.Search.BleveIndexPath)...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.deps.Watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.deps.Watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.deps.Watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current watch roots back to the config file.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.deps.Watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondErrorDetails(w http.ResponseWriter, status int, message string, err error) {
	s.respondJSON(w, status, map[string]string{"error": message, "details": err.Error()})
}
