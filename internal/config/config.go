// Package config provides configuration loading and structs for the Novellize server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/novellize/novellize/internal/ranking"
)

// EnvPrefix prefixes environment overrides, e.g. NOVELLIZE_SERVER_PORT.
const EnvPrefix = "NOVELLIZE"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool                  `yaml:"debug" mapstructure:"debug"`
	Server    ServerConfig          `yaml:"server" mapstructure:"server"`
	Cache     CacheConfig           `yaml:"cache" mapstructure:"cache"`
	LLM       LLMConfig             `yaml:"llm" mapstructure:"llm"`
	Ranking   ranking.RankingConfig `yaml:"ranking" mapstructure:"ranking"`
	Recommend RecommendConfig       `yaml:"recommend" mapstructure:"recommend"`
	Search    SearchConfig          `yaml:"search" mapstructure:"search"`
	Watch     WatchConfig           `yaml:"watch" mapstructure:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host" mapstructure:"host" validate:"required"`
	Port           int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	CORSOrigins    []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit      int           `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"` // requests per minute per IP, 0 disables
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout" validate:"gt=0"`
}

// CacheConfig selects and configures the key-value store holding the catalog.
type CacheConfig struct {
	Backend        string        `yaml:"backend" mapstructure:"backend" validate:"oneof=redis badger sqlite memory"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url" validate:"required_if=Backend redis"`
	SQLitePath     string        `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	BadgerPath     string        `yaml:"badger_path" mapstructure:"badger_path"`
	MemoryCapacity int           `yaml:"memory_capacity" mapstructure:"memory_capacity" validate:"gte=0"`
	CatalogTTL     time.Duration `yaml:"catalog_ttl" mapstructure:"catalog_ttl" validate:"gte=0"`
	MaxValueLength int           `yaml:"max_value_length" mapstructure:"max_value_length" validate:"gt=0"`
}

// LLMConfig holds chat-completion client settings.
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider" validate:"oneof=openai mock"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Model       string        `yaml:"model" mapstructure:"model" validate:"required"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gt=0"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	Breaker     BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// BreakerConfig configures the circuit breaker in front of the LLM provider.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" mapstructure:"max_requests"`
	Interval         time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gt=0"`
}

// RecommendConfig bounds the number of recommendations per request.
type RecommendConfig struct {
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit" validate:"gt=0"`
	MaxLimit     int `yaml:"max_limit" mapstructure:"max_limit" validate:"gtefield=DefaultLimit"`
}

// SearchConfig holds catalog text search settings.
type SearchConfig struct {
	BleveIndexPath string `yaml:"bleve_index_path" mapstructure:"bleve_index_path"` // empty keeps the index in memory
	DefaultLimit   int    `yaml:"default_limit" mapstructure:"default_limit" validate:"gt=0"`
	MaxLimit       int    `yaml:"max_limit" mapstructure:"max_limit" validate:"gtefield=DefaultLimit"`
}

// WatchConfig holds catalog seed directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories" mapstructure:"directories"`
	Extensions  []string      `yaml:"extensions" mapstructure:"extensions"`
	Recursive   *bool         `yaml:"recursive" mapstructure:"recursive"`
	Debounce    time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads the config file at path, applies NOVELLIZE_* environment overrides,
// expands paths, applies defaults and validates the result.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Well-known variables used by the hosted deployment.
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = apiKey
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" && cfg.Cache.RedisURL == "" {
		cfg.Cache.RedisURL = redisURL
	}

	// Viper already defaulted every ranking key, so zeros here were set on purpose.
	weights := cfg.Ranking
	ApplyDefaults(&cfg)
	cfg.Ranking = weights

	if path != "" {
		configDir := filepath.Dir(path)
		cfg.Cache.SQLitePath = expandPath(cfg.Cache.SQLitePath, configDir)
		cfg.Cache.BadgerPath = expandPath(cfg.Cache.BadgerPath, configDir)
		if cfg.Search.BleveIndexPath != "" {
			cfg.Search.BleveIndexPath = expandPath(cfg.Search.BleveIndexPath, configDir)
		}
		for i := range cfg.Watch.Directories {
			cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
