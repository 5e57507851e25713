// Package main provides the MCP reporting server for the knowledge base.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vcia/knowledge-sync/internal/config"
	"github.com/vcia/knowledge-sync/internal/confidence"
	"github.com/vcia/knowledge-sync/internal/embedding"
	mcpserver "github.com/vcia/knowledge-sync/internal/mcp"
	"github.com/vcia/knowledge-sync/internal/metrics"
	"github.com/vcia/knowledge-sync/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := storage.NewQdrantStorage(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("failed to create embedding provider: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	cache := embedding.NewCache(embedding.CacheConfig{
		MaxEntries: cfg.Cache.MaxEntries,
		Strategy:   embedding.Strategy(cfg.Cache.Strategy),
		TTL:        cfg.Cache.TTL(),
	})
	embedder := embedding.NewEmbedder(provider, cache, cfg.Embedder.Dimension, m.EmbeddingCacheTotal, slog.Default())
	bridge := confidence.NewBridge(store, nil, slog.Default())

	server := mcpserver.NewServer(&mcpserver.Config{
		Storage:  store,
		Embedder: embedder,
		Bridge:   bridge,
	})

	// Stdio mode serves a single local client and needs no HTTP listener.
	if os.Getenv("SERVER_MODE") != "true" {
		log.Println("starting MCP server on stdio")
		if err := server.Run(ctx); err != nil {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(store))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	httpServer := &http.Server{
		Addr:    cfg.Serve.HTTPAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("starting MCP server on %s (endpoints: /mcp /health /metrics)", cfg.Serve.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func buildProvider(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Embedder.Provider {
	case "openai":
		return embedding.NewOpenAIClient(cfg.Embedder.APIKeyEnv, cfg.Embedder.Model)
	default:
		return embedding.NewOllamaClient(embedding.OllamaConfig{
			BaseURL: cfg.Embedder.BaseURL,
			Model:   cfg.Embedder.Model,
		}), nil
	}
}
