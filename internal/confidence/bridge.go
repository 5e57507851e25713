package confidence

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"sync"

	"github.com/vcia/knowledge-sync/internal/storage"
)

// Weights for blending store confidence with a locally computed score. The
// store side carries history across runs, the local side reflects the
// current file, so the store gets the larger share.
const (
	storeWeight = 0.6
	localWeight = 0.4
)

// Record is one resolved confidence: the raw score, the scale it arrived on
// and the normalized value served to callers.
type Record struct {
	FileID          string
	RawScore        float64
	Source          SourceType
	NormalizedScore float64
	Metadata        map[string]string
}

// pointLister is the slice of the store the bridge reads through.
type pointLister interface {
	PointsByDocID(ctx context.Context, docID string) ([]*storage.StoredPoint, error)
}

// Bridge serves normalized per-document confidence from the vector store,
// memoized until explicitly invalidated by a sync.
type Bridge struct {
	store      pointLister
	normalizer *Normalizer
	logger     *slog.Logger

	mu    sync.RWMutex
	cache map[string]Record
}

// NewBridge creates a confidence bridge over the given store.
func NewBridge(store pointLister, normalizer *Normalizer, logger *slog.Logger) *Bridge {
	if normalizer == nil {
		normalizer = NewNormalizer(MethodLinear)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		store:      store,
		normalizer: normalizer,
		logger:     logger,
		cache:      make(map[string]Record),
	}
}

// GetFileConfidence returns the confidence record for a document: the best
// relevance score across its stored points, normalized. A document with no
// points or no scores gets a SourceDefault record carrying DefaultScore.
// Records are cached until invalidated.
func (b *Bridge) GetFileConfidence(ctx context.Context, docID string) (*Record, error) {
	b.mu.RLock()
	cached, ok := b.cache[docID]
	b.mu.RUnlock()
	if ok {
		return copyRecord(cached), nil
	}

	points, err := b.store.PointsByDocID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("fetch points for %s: %w", docID, err)
	}

	record := Record{
		FileID:          docID,
		Source:          SourceDefault,
		NormalizedScore: DefaultScore,
		Metadata:        map[string]string{"points": strconv.Itoa(len(points))},
	}
	for _, point := range points {
		if point.Payload.RelevanceScore <= 0 {
			continue
		}
		normalized := b.normalizer.Normalize(point.Payload.RelevanceScore, SourceVectorStore)
		if record.Source == SourceDefault || normalized > record.NormalizedScore {
			record.RawScore = point.Payload.RelevanceScore
			record.Source = SourceVectorStore
			record.NormalizedScore = normalized
		}
	}
	if record.Source == SourceDefault {
		b.logger.Debug("no stored scores, using default confidence", "docId", docID)
	}

	b.mu.Lock()
	b.cache[docID] = record
	b.mu.Unlock()
	return copyRecord(record), nil
}

// CombineWithLocal blends the stored confidence with a locally computed
// [0,1] score and reports the blend as a SourceLocal record.
func (b *Bridge) CombineWithLocal(ctx context.Context, docID string, local float64) (*Record, error) {
	stored, err := b.GetFileConfidence(ctx, docID)
	if err != nil {
		return nil, err
	}

	local = clamp01(local)
	return &Record{
		FileID:          docID,
		RawScore:        local,
		Source:          SourceLocal,
		NormalizedScore: clamp01(storeWeight*stored.NormalizedScore + localWeight*local),
		Metadata: map[string]string{
			"storedScore":  strconv.FormatFloat(stored.NormalizedScore, 'f', -1, 64),
			"storedSource": string(stored.Source),
		},
	}, nil
}

// Invalidate drops the cached confidence for one document. Syncs call this
// after writing so the next read reflects the new payloads.
func (b *Bridge) Invalidate(docID string) {
	b.mu.Lock()
	delete(b.cache, docID)
	b.mu.Unlock()
}

// InvalidateAll drops every cached confidence.
func (b *Bridge) InvalidateAll() {
	b.mu.Lock()
	b.cache = make(map[string]Record)
	b.mu.Unlock()
}

func copyRecord(record Record) *Record {
	record.Metadata = maps.Clone(record.Metadata)
	return &record
}
