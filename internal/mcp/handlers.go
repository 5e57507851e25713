package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcia/knowledge-sync/internal/confidence"
	"github.com/vcia/knowledge-sync/internal/embedding"
	"github.com/vcia/knowledge-sync/internal/storage"
)

// makeSearchHandler creates the search_knowledge tool handler.
// Search flow:
// 1. Embed the query text
// 2. Search points with vector similarity (limit * 3 to survive dedup)
// 3. Deduplicate by document, keeping the highest-scoring chunk
// 4. Return up to MaxResults documents with payload metadata
func makeSearchHandler(store *storage.QdrantStorage, embedder *embedding.Embedder) func(
	context.Context, *mcp.CallToolRequest, SearchKnowledgeInput,
) (*mcp.CallToolResult, SearchKnowledgeOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchKnowledgeInput) (
		*mcp.CallToolResult, SearchKnowledgeOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = 0.4
		}

		queryVector, err := embedder.GetEmbedding(ctx, input.Query, "")
		if err != nil {
			return nil, SearchKnowledgeOutput{}, fmt.Errorf("failed to embed query: %w", err)
		}

		points, err := store.SearchPoints(ctx, queryVector, maxResults*3, float32(minScore))
		if err != nil {
			return nil, SearchKnowledgeOutput{}, fmt.Errorf("search failed: %w", err)
		}

		// Keep the best chunk per document, preserving score order.
		seen := make(map[string]bool)
		results := make([]KnowledgeResult, 0, maxResults)
		for _, point := range points {
			if seen[point.Payload.DocID] {
				continue
			}
			seen[point.Payload.DocID] = true

			categories := point.Payload.Categories
			if categories == nil {
				categories = []string{}
			}
			results = append(results, KnowledgeResult{
				DocID:        point.Payload.DocID,
				Path:         point.Payload.Path,
				Score:        point.Score,
				Categories:   categories,
				AnalysisType: point.Payload.AnalysisType,
				ProcessedAt:  point.Payload.ProcessedAt,
			})
			if len(results) == maxResults {
				break
			}
		}

		if len(results) == 0 {
			return nil, SearchKnowledgeOutput{
				Results: []KnowledgeResult{},
				Message: "No matching documents found. Try broader search terms.",
			}, nil
		}

		return nil, SearchKnowledgeOutput{Results: results}, nil
	}
}

// makeStatusHandler creates the sync_status tool handler.
func (s *Server) makeStatusHandler() func(
	context.Context, *mcp.CallToolRequest, SyncStatusInput,
) (*mcp.CallToolResult, SyncStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SyncStatusInput) (
		*mcp.CallToolResult, SyncStatusOutput, error,
	) {
		info, err := s.storage.GetCollectionInfo(ctx)
		if err != nil {
			return nil, SyncStatusOutput{}, fmt.Errorf("failed to get collection info: %w", err)
		}

		return nil, SyncStatusOutput{
			CollectionStatus: info.Status,
			TotalPoints:      info.PointsCount,
			LastRun:          s.lastRunStats(),
		}, nil
	}
}

// makeConfidenceHandler creates the file_confidence tool handler.
func makeConfidenceHandler(bridge *confidence.Bridge) func(
	context.Context, *mcp.CallToolRequest, FileConfidenceInput,
) (*mcp.CallToolResult, FileConfidenceOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FileConfidenceInput) (
		*mcp.CallToolResult, FileConfidenceOutput, error,
	) {
		if input.DocID == "" {
			return nil, FileConfidenceOutput{}, fmt.Errorf("doc_id is required")
		}

		record, err := bridge.GetFileConfidence(ctx, input.DocID)
		if err != nil {
			return nil, FileConfidenceOutput{}, fmt.Errorf("failed to get confidence: %w", err)
		}

		return nil, FileConfidenceOutput{
			DocID:           record.FileID,
			RawScore:        record.RawScore,
			SourceType:      string(record.Source),
			NormalizedScore: record.NormalizedScore,
			Metadata:        record.Metadata,
		}, nil
	}
}

// makeCacheStatsHandler creates the cache_stats tool handler.
func makeCacheStatsHandler(embedder *embedding.Embedder) func(
	context.Context, *mcp.CallToolRequest, CacheStatsInput,
) (*mcp.CallToolResult, CacheStatsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CacheStatsInput) (
		*mcp.CallToolResult, CacheStatsOutput, error,
	) {
		stats := embedder.CacheStats()
		return nil, CacheStatsOutput{
			Hits:        stats.Hits,
			Misses:      stats.Misses,
			Evictions:   stats.Evictions,
			Expirations: stats.Expirations,
			Size:        stats.Size,
		}, nil
	}
}
