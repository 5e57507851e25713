package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcia/knowledge-sync/internal/confidence"
	"github.com/vcia/knowledge-sync/internal/embedding"
	"github.com/vcia/knowledge-sync/internal/pipeline"
	"github.com/vcia/knowledge-sync/internal/storage"
)

// Server wraps the MCP server with its dependencies.
type Server struct {
	server   *mcp.Server
	storage  *storage.QdrantStorage
	embedder *embedding.Embedder
	bridge   *confidence.Bridge

	mu      sync.RWMutex
	lastRun *RunStats
}

// Config holds server dependencies.
type Config struct {
	Storage  *storage.QdrantStorage
	Embedder *embedding.Embedder
	Bridge   *confidence.Bridge
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "knowledge-sync-server",
		Version: "v0.1.0",
	}

	s := &Server{
		server:   mcp.NewServer(impl, nil),
		storage:  cfg.Storage,
		embedder: cfg.Embedder,
		bridge:   cfg.Bridge,
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search the knowledge base semantically. Returns matching documents with payload metadata, best chunk first.",
	}, makeSearchHandler(cfg.Storage, cfg.Embedder))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Get collection statistics and the outcome of the most recent sync run.",
	}, s.makeStatusHandler())

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "file_confidence",
		Description: "Get the normalized confidence score (0-1) for one document, derived from its stored relevance scores.",
	}, makeConfidenceHandler(cfg.Bridge))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Get embedding cache hit/miss/eviction counters.",
	}, makeCacheStatsHandler(cfg.Embedder))

	return s
}

// RecordSummary publishes a finished sync run for the sync_status tool.
func (s *Server) RecordSummary(summary *pipeline.SyncSummary) {
	stats := &RunStats{
		TotalDocs:   summary.TotalDocs,
		Inserted:    summary.Inserted,
		Updated:     summary.Updated,
		Merged:      summary.Merged,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		TotalChunks: summary.TotalChunks,
		DurationSec: summary.Duration.Seconds(),
		FinishedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	s.mu.Lock()
	s.lastRun = stats
	s.mu.Unlock()
}

func (s *Server) lastRunStats() *RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance for transport wrappers.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
