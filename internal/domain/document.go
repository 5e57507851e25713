// Package domain holds the entities exchanged between the discovery layer and
// the sync engine.
package domain

import "time"

// Document is a textual document handed in by the discovery layer. It is
// consumed read-only by the sync engine. Identity for deduplication is
// ContentHash, not ID or Path.
type Document struct {
	ID           string
	Path         string
	Content      string
	ContentHash  string
	LastModified time.Time
	Categories   []string
	AnalysisType string
	Approved     bool

	// RelevanceScore is the locally computed relevance heuristic on the
	// provider's native scale, carried into the vector store payload as is.
	RelevanceScore float64
}

// Chunk is a bounded contiguous segment of a document's text, the unit of
// embedding. Indices are 0-based and contiguous per document.
type Chunk struct {
	ParentDocID string
	Index       int
	Text        string
	StartOffset int
	Size        int
}
