package storage

import (
	"fmt"
	"time"
)

// DefaultCollection is the Qdrant collection holding all knowledge points.
const DefaultCollection = "knowledge_consolidator"

// VectorDimension is the embedding size for nomic-embed-text.
const VectorDimension = 768

// Payload is the structured payload attached to every point. It replaces
// ad hoc per-call-site maps: every write goes through Validate before any
// network call.
type Payload struct {
	DocID          string
	ChunkIndex     int
	TotalChunks    int
	ContentHash    string
	Path           string
	Categories     []string
	AnalysisType   string
	RelevanceScore float64
	ProcessedAt    time.Time
}

// Validate checks the required payload fields. A payload failing validation
// is rejected per-point before any network call.
func (p *Payload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: missing docId", ErrInvalidPayload)
	}
	if p.ContentHash == "" {
		return fmt.Errorf("%w: missing contentHash", ErrInvalidPayload)
	}
	if p.Path == "" {
		return fmt.Errorf("%w: missing path", ErrInvalidPayload)
	}
	if p.TotalChunks <= 0 {
		return fmt.Errorf("%w: totalChunks must be positive", ErrInvalidPayload)
	}
	if p.ChunkIndex < 0 || p.ChunkIndex >= p.TotalChunks {
		return fmt.Errorf("%w: chunkIndex %d out of range [0,%d)", ErrInvalidPayload, p.ChunkIndex, p.TotalChunks)
	}
	return nil
}

// StoredPoint is one embedded chunk as written to or read from the store.
type StoredPoint struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// ScoredPoint is a search result: a stored point with its similarity score.
type ScoredPoint struct {
	StoredPoint
	Score float64
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	PointsCount uint64
	Status      string
}
