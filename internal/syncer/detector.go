package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/vcia/knowledge-sync/internal/domain"
	"github.com/vcia/knowledge-sync/internal/storage"
)

// MatchType classifies how an incoming document relates to stored points.
type MatchType string

const (
	// MatchNone means no stored point shares the document's path or hash.
	MatchNone MatchType = "none"

	// MatchExact means a stored point has the same path and the same
	// content hash. The document is unchanged.
	MatchExact MatchType = "exact"

	// MatchMoved means a stored point has the same content hash under a
	// different path. The content is known but the file was relocated.
	MatchMoved MatchType = "moved"
)

// DuplicateCheck is the outcome of duplicate detection for one document.
type DuplicateCheck struct {
	Match      MatchType
	Confidence float64

	// Existing is the matched stored point, nil when Match is MatchNone.
	Existing *storage.StoredPoint
}

// pointFinder is the slice of the store duplicate detection needs.
type pointFinder interface {
	FirstByPath(ctx context.Context, path string) (*storage.StoredPoint, error)
	FirstByContentHash(ctx context.Context, hash string) (*storage.StoredPoint, error)
}

// Detector decides whether a document already exists in the store.
type Detector struct {
	store pointFinder
}

// NewDetector creates a duplicate detector over the given store.
func NewDetector(store pointFinder) *Detector {
	return &Detector{store: store}
}

// CheckDuplicate looks up the document by path first, then by content hash.
// A path match with an equal hash is exact (confidence 1.0). A hash match
// under another path means the file moved (confidence 0.9). A path match
// whose hash differs is content drift and reported as no match; the caller
// decides between insert and update.
func (d *Detector) CheckDuplicate(ctx context.Context, doc *domain.Document) (*DuplicateCheck, error) {
	byPath, err := d.store.FirstByPath(ctx, doc.Path)
	if err != nil && !errors.Is(err, storage.ErrPointNotFound) {
		return nil, fmt.Errorf("lookup by path: %w", err)
	}
	if byPath != nil && byPath.Payload.ContentHash == doc.ContentHash {
		return &DuplicateCheck{
			Match:      MatchExact,
			Confidence: 1.0,
			Existing:   byPath,
		}, nil
	}

	byHash, err := d.store.FirstByContentHash(ctx, doc.ContentHash)
	if err != nil {
		if errors.Is(err, storage.ErrPointNotFound) {
			return &DuplicateCheck{Match: MatchNone}, nil
		}
		return nil, fmt.Errorf("lookup by content hash: %w", err)
	}

	// The path lookup returns a single point, so a stale point at the path
	// can shadow the current one. A hash match at the same path is still an
	// exact duplicate.
	if byHash.Payload.Path == doc.Path {
		return &DuplicateCheck{
			Match:      MatchExact,
			Confidence: 1.0,
			Existing:   byHash,
		}, nil
	}

	return &DuplicateCheck{
		Match:      MatchMoved,
		Confidence: 0.9,
		Existing:   byHash,
	}, nil
}
