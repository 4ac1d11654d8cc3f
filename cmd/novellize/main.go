// Package main is the Novellize CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/catalog"
	"github.com/novellize/novellize/internal/config"
	"github.com/novellize/novellize/internal/ingest"
	"github.com/novellize/novellize/internal/keyword"
	"github.com/novellize/novellize/internal/llm"
	"github.com/novellize/novellize/internal/preference"
	"github.com/novellize/novellize/internal/ranking"
	"github.com/novellize/novellize/internal/recommend"
	"github.com/novellize/novellize/internal/server"
	"github.com/novellize/novellize/internal/storage"
	"github.com/novellize/novellize/internal/watcher"
	"github.com/novellize/novellize/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/novellize/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default and a config.yaml
// exists in the current directory, that file is used instead so "novellize server"
// run from a checkout picks up the project config. A missing default file falls
// back to built-in defaults and environment overrides.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg, err := config.Load("")
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "search":
		runSearch()
	case "import":
		runImport()
	case "cache":
		runCache()
	case "sitemap":
		runSitemap()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("novellize version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (request logs, file imports, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Index whatever catalog another writer already published.
	if novels, ok := components.Catalog.Catalog(ctx); ok {
		if err := components.Index.Rebuild(ctx, novels); err != nil {
			logger.Warn("initial search index build failed", zap.Error(err))
		}
	}

	imp := components.Importer
	watchSvc := watcher.New(watcher.Options{
		Roots:      cfg.Watch.Directories,
		Extensions: cfg.Watch.Extensions,
		Recursive:  cfg.Watch.RecursiveOrDefault(),
		Debounce:   cfg.Watch.Debounce,
	}, watcher.HandlerFuncs{
		OnChange: func(ctx context.Context, path string) {
			if _, err := imp.ImportFile(ctx, path); err != nil {
				logger.Warn("catalog import failed", zap.String("path", path), zap.Error(err))
			}
		},
		OnRemove: func(ctx context.Context, path string) {
			if err := imp.RemoveFile(ctx, path); err != nil {
				logger.Warn("catalog withdraw failed", zap.String("path", path), zap.Error(err))
			}
		},
	}, watcher.WithLogger(logger))
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(server.Deps{
		Recommender: components.Engine,
		Cache:       components.Catalog,
		Index:       components.Index,
		Watch:       watchSvc,
		LLM:         components.LLM,
	}, cfg, resolvedConfigPath, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// Components holds initialized services.
type Components struct {
	Store    storage.Store
	Catalog  *catalog.Client
	LLM      llm.Client
	Engine   *recommend.Engine
	Index    keyword.Index
	Importer *ingest.Importer
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewStore(ctx, &cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}
	cat := catalog.NewClient(store, logger, catalog.WithMaxValueLength(cfg.Cache.MaxValueLength))

	client := llm.NewClient(&cfg.LLM, logger)
	extractor := preference.NewExtractor(client, logger, preference.Options{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	engine := recommend.NewEngine(cat, extractor, client, ranking.NewRanker(&cfg.Ranking), logger, recommend.Options{
		DefaultLimit: cfg.Recommend.DefaultLimit,
		MaxLimit:     cfg.Recommend.MaxLimit,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		Timeout:      cfg.LLM.Timeout,
	})

	index, err := keyword.NewBleveIndex(cfg.Search.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}
	imp := ingest.NewImporter(cat, cfg.Cache.CatalogTTL, ingest.WithLogger(logger), ingest.WithIndex(index))

	return &Components{
		Store:    store,
		Catalog:  cat,
		LLM:      client,
		Engine:   engine,
		Index:    index,
		Importer: imp,
	}, nil
}

// directComponents loads config and wires components for commands run with --server "".
func directComponents(configPath string) (*Components, *config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	// Direct mode keeps the search index in memory; the on-disk index belongs to the server.
	cfg.Search.BleveIndexPath = ""
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, cfg, logger
}

func printUsage() {
	fmt.Println(`novellize - Web novel recommendations

Usage:
  novellize server [flags]                 Start the HTTP server
  novellize recommend [flags] <message>    Ask for recommendations
  novellize search [flags] <query>         Search the catalog by text
  novellize import [flags] <file>          Load a catalog file (.json, .yaml, .xlsx)
  novellize cache get|set [flags] <key>    Read or write a cache key
  novellize sitemap [flags]                Print the sitemap XML
  novellize status [flags]                 Show catalog/cache/index status
  novellize watch <add|remove|list>        Manage watched catalog directories
  novellize version                        Show version
  novellize help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/novellize/config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "")
                     to work on the configured cache directly when no server is running.
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Recommend Flags:
  --history string   JSON file holding earlier chat messages to send before <message>

Search Flags:
  --limit int        Number of results (default from config)
  --fuzzy            Enable typo tolerance; retried automatically when nothing matches

Import Flags:
  --ttl duration     Catalog expiry when importing through a server (default from config)

Cache Flags:
  --ttl duration     Expiry for cache set (0 = none)

Sitemap Flags:
  --base-url string  Site origin for direct mode (default from config)

Examples:
  novellize server
  novellize recommend "completed fantasy with magic schools, no harem"
  novellize recommend --output json "something like Solo Leveling"
  novellize search --fuzzy dragn
  novellize import catalog.xlsx
  novellize cache get novels
  novellize cache set --ttl 1h greeting '"hello"'
  novellize sitemap > sitemap.xml
  novellize watch add /srv/novellize/catalog`)
}
