package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
cache:
  backend: sqlite
  sqlite_path: "test.db"
llm:
  provider: mock
  timeout: 3s
ranking:
  genre_weight: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Cache.Backend != "sqlite" || cfg.Cache.SQLitePath == "" {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.LLM.Timeout != 3*time.Second {
		t.Errorf("llm timeout = %v, want 3s", cfg.LLM.Timeout)
	}
	if cfg.Ranking.GenreWeight != 4 || cfg.Ranking.TagWeight != 2 {
		t.Errorf("unexpected ranking config: %+v", cfg.Ranking)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_ZeroRankingValuesKept(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: mock
ranking:
  excluded_genre_penalty: 0
  status_weight: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ranking.ExcludedGenrePenalty != 0 || cfg.Ranking.StatusWeight != 0 {
		t.Errorf("explicit zeros overwritten: %+v", cfg.Ranking)
	}
	if cfg.Ranking.GenreWeight != 3 || cfg.Ranking.ExcludedTagPenalty != 5 {
		t.Errorf("unset ranking keys should keep defaults: %+v", cfg.Ranking)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
llm:
  provider: mock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
cache:
  sqlite_path: "./data/cache.db"
watch:
  directories: ["./dev/catalog"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "cache.db")
	if cfg.Cache.SQLitePath != wantDB {
		t.Errorf("sqlite_path = %s, want %s", cfg.Cache.SQLitePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "catalog")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
	if !cfg.Watch.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NOVELLIZE_SERVER_PORT", "7070")
	t.Setenv("NOVELLIZE_CACHE_BACKEND", "redis")
	t.Setenv("NOVELLIZE_LLM_API_KEY", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q, want sk-test", cfg.LLM.APIKey)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "cache:\n  backend: etcd\n"},
		{"redis without url", "cache:\n  backend: redis\n"},
		{"unknown provider", "llm:\n  provider: bard\n"},
		{"max limit below default", "recommend:\n  default_limit: 10\n  max_limit: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REDIS_URL", "")
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("default backend: got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.MaxValueLength != 1_000_000 {
		t.Errorf("default max value length: got %d", cfg.Cache.MaxValueLength)
	}
	if cfg.LLM.Timeout != 8*time.Second {
		t.Errorf("default llm timeout: got %v", cfg.LLM.Timeout)
	}
	if cfg.Recommend.DefaultLimit != 5 {
		t.Errorf("default recommend limit: got %d", cfg.Recommend.DefaultLimit)
	}
	if cfg.Ranking.ExcludedGenrePenalty != 5.0 {
		t.Errorf("default excluded genre penalty: got %v", cfg.Ranking.ExcludedGenrePenalty)
	}
	if len(cfg.Watch.Extensions) != 4 || cfg.Watch.Extensions[0] != ".json" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/catalog"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		LLM:    LLMConfig{Provider: "mock", Timeout: 2 * time.Second},
	}
	ApplyDefaults(cfg)
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.LLM.Timeout != 2*time.Second {
		t.Errorf("loaded llm timeout: got %v", loaded.LLM.Timeout)
	}
}

func TestAddr(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "0.0.0.0", Port: 8081}}
	if got := cfg.Addr(); got != "0.0.0.0:8081" {
		t.Errorf("Addr() = %s", got)
	}
}
