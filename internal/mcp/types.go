// Package mcp exposes the knowledge store over the Model Context Protocol:
// semantic search, sync status, per-file confidence and cache statistics.
package mcp

import "time"

// SearchKnowledgeInput defines the input parameters for the search_knowledge tool.
type SearchKnowledgeInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query over the knowledge base"`
	// MaxResults is the maximum number of documents to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of documents to return"`
	// MinScore is the minimum similarity threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0.4,description=Minimum similarity score threshold (0-1)"`
}

// SearchKnowledgeOutput contains the search results.
type SearchKnowledgeOutput struct {
	Results []KnowledgeResult `json:"results"`
	// Message provides informational context (e.g., "No matching documents found").
	Message string `json:"message,omitempty"`
}

// KnowledgeResult is one matching document, represented by its best chunk.
type KnowledgeResult struct {
	DocID        string    `json:"doc_id"`
	Path         string    `json:"path"`
	Score        float64   `json:"score"`
	Categories   []string  `json:"categories"`
	AnalysisType string    `json:"analysis_type,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// SyncStatusInput takes no parameters.
type SyncStatusInput struct{}

// RunStats summarizes the most recent sync run.
type RunStats struct {
	TotalDocs   int     `json:"total_docs"`
	Inserted    int     `json:"inserted"`
	Updated     int     `json:"updated"`
	Merged      int     `json:"merged"`
	Skipped     int     `json:"skipped"`
	Failed      int     `json:"failed"`
	TotalChunks int     `json:"total_chunks"`
	DurationSec float64 `json:"duration_seconds"`
	FinishedAt  string  `json:"finished_at"`
}

// SyncStatusOutput reports collection state and the last run, if any.
type SyncStatusOutput struct {
	CollectionStatus string    `json:"collection_status"`
	TotalPoints      uint64    `json:"total_points"`
	LastRun          *RunStats `json:"last_run,omitempty"`
}

// FileConfidenceInput identifies the document to score.
type FileConfidenceInput struct {
	// DocID is the document identifier carried in the point payloads.
	DocID string `json:"doc_id" jsonschema:"required,description=The document identifier to fetch confidence for"`
}

// FileConfidenceOutput is the confidence record for one document: the raw
// score, the scale it arrived on and the normalized [0,1] value.
type FileConfidenceOutput struct {
	DocID           string            `json:"doc_id"`
	RawScore        float64           `json:"raw_score"`
	SourceType      string            `json:"source_type"`
	NormalizedScore float64           `json:"normalized_score"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CacheStatsInput takes no parameters.
type CacheStatsInput struct{}

// CacheStatsOutput mirrors the embedding cache counters.
type CacheStatsOutput struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Size        int    `json:"size"`
}
