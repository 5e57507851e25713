// Package main provides the sync CLI for the knowledge base.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vcia/knowledge-sync/internal/chunking"
	"github.com/vcia/knowledge-sync/internal/config"
	"github.com/vcia/knowledge-sync/internal/confidence"
	"github.com/vcia/knowledge-sync/internal/domain"
	"github.com/vcia/knowledge-sync/internal/embedding"
	"github.com/vcia/knowledge-sync/internal/pipeline"
	"github.com/vcia/knowledge-sync/internal/storage"
	"github.com/vcia/knowledge-sync/internal/syncer"
)

var (
	configPath  string
	action      string
	preserve    []string
	batchSize   int
	concurrency int
	clearFirst  bool
)

var rootCmd = &cobra.Command{
	Use:   "kcsync",
	Short: "Knowledge base synchronization tool",
	Long:  "CLI tool for syncing local documents into the Qdrant knowledge collection",
}

var syncCmd = &cobra.Command{
	Use:   "sync <directory>",
	Short: "Sync a directory of documents into the vector store",
	Long: `Walks the directory, chunks and embeds every markdown/text file and
reconciles the results against the knowledge collection.

Files already in the store are handled per --action:
  skip    leave stored points untouched (default)
  update  replace stored points with the new version
  merge   replace points but union categories and keep stored metadata

Environment variables:
  QDRANT_HOST        Qdrant hostname (default: localhost)
  QDRANT_PORT        Qdrant gRPC port (default: 6334)
  EMBEDDER_PROVIDER  ollama or openai (default: ollama)
  OPENAI_API_KEY     required when the provider is openai`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the config file")
	syncCmd.Flags().StringVar(&action, "action", "", "duplicate action: skip, update or merge")
	syncCmd.Flags().StringSliceVar(&preserve, "preserve", nil, "payload fields preserved on update")
	syncCmd.Flags().IntVar(&batchSize, "batch-size", 0, "points per upsert call")
	syncCmd.Flags().IntVar(&concurrency, "concurrency", 0, "documents in flight at once")
	syncCmd.Flags().BoolVar(&clearFirst, "clear", false, "drop the collection before syncing")
	rootCmd.AddCommand(syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg)

	docs, err := collectDocuments(args[0])
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	fmt.Printf("Found %d documents under %s\n", len(docs), args[0])

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.Qdrant.Host, cfg.Qdrant.Port)
	store, err := storage.NewQdrantStorage(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	if clearFirst {
		fmt.Println("Clearing existing collection...")
		if err := store.ClearCollection(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
	} else if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	cache := embedding.NewCache(embedding.CacheConfig{
		MaxEntries: cfg.Cache.MaxEntries,
		Strategy:   embedding.Strategy(cfg.Cache.Strategy),
		TTL:        cfg.Cache.TTL(),
	})
	embedder := embedding.NewEmbedder(provider, cache, cfg.Embedder.Dimension, nil, slog.Default())
	bridge := confidence.NewBridge(store, nil, slog.Default())

	p := pipeline.New(pipeline.Config{
		Chunker: chunking.NewChunker(),
		ChunkConfig: chunking.Config{
			MaxSize:           cfg.Chunking.MaxSize,
			MinSize:           cfg.Chunking.MinSize,
			OverlapPercent:    cfg.Chunking.OverlapPercent,
			PreserveStructure: cfg.Chunking.PreserveStructure,
		},
		Embedder:     embedder,
		Synchronizer: syncer.New(store, cfg.Embedder.Dimension, nil, slog.Default()),
		Bridge:       bridge,
		Concurrency:  cfg.Sync.Concurrency,
		SyncOptions: syncer.Options{
			DuplicateAction: syncer.DuplicateAction(cfg.Sync.DuplicateAction),
			PreserveFields:  cfg.Sync.PreserveFields,
			BatchSize:       cfg.Sync.BatchSize,
		},
	})

	fmt.Println("Syncing...")
	summary, err := p.SyncAll(ctx, docs)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Sync complete!")
	fmt.Printf("  Inserted: %d  Updated: %d  Merged: %d  Skipped: %d\n",
		summary.Inserted, summary.Updated, summary.Merged, summary.Skipped)
	fmt.Printf("  Chunks: %d\n", summary.TotalChunks)
	fmt.Printf("  Duration: %s\n", summary.Duration.Round(time.Millisecond))

	stats := embedder.CacheStats()
	fmt.Printf("  Cache: %d hits, %d misses\n", stats.Hits, stats.Misses)

	if len(summary.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range summary.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))

	if summary.Failed > 0 {
		return fmt.Errorf("%d documents failed", summary.Failed)
	}
	return nil
}

func applyFlags(cfg *config.Config) {
	if action != "" {
		cfg.Sync.DuplicateAction = action
	}
	if len(preserve) > 0 {
		cfg.Sync.PreserveFields = preserve
	}
	if batchSize > 0 {
		cfg.Sync.BatchSize = batchSize
	}
	if concurrency > 0 {
		cfg.Sync.Concurrency = concurrency
	}
}

// buildProvider selects the embedding backend from configuration.
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

// collectDocuments walks root and loads every markdown and text file.
func collectDocuments(root string) ([]*domain.Document, error) {
	var docs []*domain.Document

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".txt":
		default:
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		docs = append(docs, &domain.Document{
			Path:         filepath.ToSlash(rel),
			Content:      string(content),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return docs, nil
}
