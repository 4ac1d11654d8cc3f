package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/novellize/novellize/internal/ranking"
)

const (
	defaultHost           = "localhost"
	defaultPort           = 8080
	defaultRequestTimeout = 30 * time.Second
	defaultRateLimit      = 60

	defaultCacheBackend   = "memory"
	defaultSQLitePath     = "/usr/local/var/novellize/data/cache.db"
	defaultBadgerPath     = "/usr/local/var/novellize/data/badger"
	defaultMemoryCapacity = 1024
	defaultCatalogTTL     = time.Hour
	defaultMaxValueLength = 1_000_000

	defaultLLMProvider      = "openai"
	defaultLLMModel         = "gpt-4o-mini"
	defaultLLMTemperature   = 0.7
	defaultLLMMaxTokens     = 500
	defaultLLMTimeout       = 8 * time.Second
	defaultBreakerRequests  = 1
	defaultBreakerInterval  = time.Minute
	defaultBreakerTimeout   = 30 * time.Second
	defaultBreakerThreshold = 5

	defaultRecommendLimit    = 5
	defaultRecommendMaxLimit = 20

	defaultSearchLimit    = 10
	defaultSearchMaxLimit = 100

	defaultWatchDebounce = 500 * time.Millisecond
)

var defaultWatchExtensions = []string{".json", ".yaml", ".yml", ".xlsx"}

// setDefaults registers every key with viper so environment overrides apply
// even when the key is missing from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", defaultHost)
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", defaultRateLimit)
	v.SetDefault("server.request_timeout", defaultRequestTimeout)

	v.SetDefault("cache.backend", defaultCacheBackend)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.sqlite_path", defaultSQLitePath)
	v.SetDefault("cache.badger_path", defaultBadgerPath)
	v.SetDefault("cache.memory_capacity", defaultMemoryCapacity)
	v.SetDefault("cache.catalog_ttl", defaultCatalogTTL)
	v.SetDefault("cache.max_value_length", defaultMaxValueLength)

	v.SetDefault("llm.provider", defaultLLMProvider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", defaultLLMModel)
	v.SetDefault("llm.temperature", defaultLLMTemperature)
	v.SetDefault("llm.max_tokens", defaultLLMMaxTokens)
	v.SetDefault("llm.timeout", defaultLLMTimeout)
	v.SetDefault("llm.breaker.max_requests", defaultBreakerRequests)
	v.SetDefault("llm.breaker.interval", defaultBreakerInterval)
	v.SetDefault("llm.breaker.timeout", defaultBreakerTimeout)
	v.SetDefault("llm.breaker.failure_threshold", defaultBreakerThreshold)

	r := ranking.DefaultRankingConfig()
	v.SetDefault("ranking.genre_weight", r.GenreWeight)
	v.SetDefault("ranking.tag_weight", r.TagWeight)
	v.SetDefault("ranking.status_weight", r.StatusWeight)
	v.SetDefault("ranking.type_weight", r.TypeWeight)
	v.SetDefault("ranking.rating_weight", r.RatingWeight)
	v.SetDefault("ranking.excluded_genre_penalty", r.ExcludedGenrePenalty)
	v.SetDefault("ranking.excluded_tag_penalty", r.ExcludedTagPenalty)

	v.SetDefault("recommend.default_limit", defaultRecommendLimit)
	v.SetDefault("recommend.max_limit", defaultRecommendMaxLimit)

	v.SetDefault("search.bleve_index_path", "")
	v.SetDefault("search.default_limit", defaultSearchLimit)
	v.SetDefault("search.max_limit", defaultSearchMaxLimit)

	v.SetDefault("watch.extensions", defaultWatchExtensions)
	v.SetDefault("watch.debounce", defaultWatchDebounce)
}

// ApplyDefaults sets default values for any zero values in cfg. The ranking
// section is defaulted only when it is entirely unset.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = defaultRequestTimeout
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = defaultCacheBackend
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = defaultSQLitePath
	}
	if cfg.Cache.BadgerPath == "" {
		cfg.Cache.BadgerPath = defaultBadgerPath
	}
	if cfg.Cache.MemoryCapacity == 0 {
		cfg.Cache.MemoryCapacity = defaultMemoryCapacity
	}
	if cfg.Cache.CatalogTTL == 0 {
		cfg.Cache.CatalogTTL = defaultCatalogTTL
	}
	if cfg.Cache.MaxValueLength == 0 {
		cfg.Cache.MaxValueLength = defaultMaxValueLength
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = defaultLLMProvider
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultLLMModel
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = defaultLLMTimeout
	}
	if cfg.LLM.Breaker.MaxRequests == 0 {
		cfg.LLM.Breaker.MaxRequests = defaultBreakerRequests
	}
	if cfg.LLM.Breaker.Interval == 0 {
		cfg.LLM.Breaker.Interval = defaultBreakerInterval
	}
	if cfg.LLM.Breaker.Timeout == 0 {
		cfg.LLM.Breaker.Timeout = defaultBreakerTimeout
	}
	if cfg.LLM.Breaker.FailureThreshold == 0 {
		cfg.LLM.Breaker.FailureThreshold = defaultBreakerThreshold
	}

	cfg.Ranking.ApplyDefaults()

	if cfg.Recommend.DefaultLimit == 0 {
		cfg.Recommend.DefaultLimit = defaultRecommendLimit
	}
	if cfg.Recommend.MaxLimit == 0 {
		cfg.Recommend.MaxLimit = defaultRecommendMaxLimit
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = defaultSearchLimit
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = defaultSearchMaxLimit
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = append([]string(nil), defaultWatchExtensions...)
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = defaultWatchDebounce
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
