// Package syncer reconciles incoming documents against the vector store:
// duplicate detection by path and content hash, insert/update/merge
// resolution and batched, cancellable writes.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vcia/knowledge-sync/internal/domain"
	"github.com/vcia/knowledge-sync/internal/storage"
)

// DuplicateAction selects what happens when an incoming document matches a
// stored one.
type DuplicateAction string

const (
	// ActionSkip leaves the stored points untouched. Default.
	ActionSkip DuplicateAction = "skip"

	// ActionUpdate replaces the stored document's points with the new ones.
	ActionUpdate DuplicateAction = "update"

	// ActionMerge replaces the points but folds the stored payload into the
	// new one: categories are unioned and stored scalars win unless empty.
	ActionMerge DuplicateAction = "merge"
)

// DefaultBatchSize is the number of points written per upsert call.
const DefaultBatchSize = 100

// Options control one sync run.
type Options struct {
	// DuplicateAction applies to exact and moved matches, ActionSkip when empty.
	DuplicateAction DuplicateAction

	// PreserveFields names payload fields copied from the stored point into
	// the new payload on update: "categories", "analysisType",
	// "relevanceScore". Ignored for other actions.
	PreserveFields []string

	// BatchSize is points per upsert call, DefaultBatchSize when 0.
	BatchSize int
}

func (o Options) action() DuplicateAction {
	if o.DuplicateAction == "" {
		return ActionSkip
	}
	return o.DuplicateAction
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

// Item is one prepared document: chunks and vectors aligned by index.
type Item struct {
	Doc     *domain.Document
	Chunks  []domain.Chunk
	Vectors [][]float32
}

// Store is the vector store surface the synchronizer writes through.
type Store interface {
	pointFinder
	UpsertPoints(ctx context.Context, points []*storage.StoredPoint) error
	PointsByDocID(ctx context.Context, docID string) ([]*storage.StoredPoint, error)
	DeletePoints(ctx context.Context, ids []string) error
}

// Synchronizer applies documents to the vector store with per-content-hash
// serialization.
type Synchronizer struct {
	store      Store
	dimension  int
	detector   *Detector
	locks      *keyedLocks
	logger     *slog.Logger
	itemsTotal *prometheus.CounterVec // labels "action","status", may be nil
}

// New creates a synchronizer. dimension is the deployment's fixed vector
// size, storage.VectorDimension when 0. itemsTotal may be nil when metrics
// are not wired.
func New(store Store, dimension int, itemsTotal *prometheus.CounterVec, logger *slog.Logger) *Synchronizer {
	if dimension <= 0 {
		dimension = storage.VectorDimension
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		store:      store,
		dimension:  dimension,
		detector:   NewDetector(store),
		locks:      newKeyedLocks(),
		logger:     logger,
		itemsTotal: itemsTotal,
	}
}

// pointNamespace seeds deterministic point IDs. Re-syncing the same content
// always addresses the same points.
var pointNamespace = uuid.MustParse("7b9bcbc6-25ae-4b8b-9eb1-2c3a54c0a0f1")

// PointID derives the stable UUID for one chunk of a content hash.
func PointID(contentHash string, chunkIndex int) string {
	name := fmt.Sprintf("%s:%d", contentHash, chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

// InsertOrUpdate reconciles one document against the store. Writes for the
// same content hash are serialized; concurrent calls for distinct hashes
// proceed independently.
func (s *Synchronizer) InsertOrUpdate(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32, opts Options) (*ItemResult, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no chunks", doc.ID)
	}

	// A document that cannot be written in full must be rejected before any
	// network call; otherwise a mid-write failure leaves partial state.
	for i, vector := range vectors {
		if len(vector) != s.dimension {
			return nil, fmt.Errorf("chunk %d: %w: has %d dimensions, expected %d",
				i, storage.ErrDimensionMismatch, len(vector), s.dimension)
		}
	}
	base := buildPayload(doc)
	base.TotalChunks = len(chunks)
	if err := base.Validate(); err != nil {
		return nil, err
	}

	s.locks.acquire(doc.ContentHash)
	defer s.locks.release(doc.ContentHash)

	check, err := s.detector.CheckDuplicate(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	result := &ItemResult{
		DocID:  doc.ID,
		Path:   doc.Path,
		Match:  check.Match,
		Chunks: len(chunks),
		Status: StatusOK,
	}

	switch {
	case check.Match == MatchNone:
		err = s.writePoints(ctx, buildPayload(doc), doc, chunks, vectors, opts)
		result.Action = ActionInserted

	case opts.action() == ActionSkip:
		result.Action = ActionSkipped
		result.Status = StatusSkipped
		result.Chunks = 0
		s.logger.Debug("skipping duplicate",
			"path", doc.Path, "match", string(check.Match), "confidence", check.Confidence)

	case opts.action() == ActionUpdate:
		payload := buildPayload(doc)
		preserveFields(&payload, &check.Existing.Payload, opts.PreserveFields)
		err = s.replacePoints(ctx, check.Existing.Payload.DocID, payload, doc, chunks, vectors, opts)
		result.Action = ActionUpdated

	case opts.action() == ActionMerge:
		payload := mergePayload(buildPayload(doc), &check.Existing.Payload)
		err = s.replacePoints(ctx, check.Existing.Payload.DocID, payload, doc, chunks, vectors, opts)
		result.Action = ActionMerged
		// The stored identity survives a merge; report it so downstream
		// caches invalidate the right document.
		result.DocID = check.Existing.Payload.DocID

	default:
		err = fmt.Errorf("unknown duplicate action %q", opts.DuplicateAction)
	}

	if err != nil {
		return nil, err
	}
	s.countItem(result)
	return result, nil
}

// SyncBatch applies items in order. A failed item is recorded and does not
// stop the batch; cancellation marks every remaining item cancelled.
func (s *Synchronizer) SyncBatch(ctx context.Context, items []Item, opts Options) *SyncResult {
	start := time.Now()
	result := &SyncResult{}

	for i, item := range items {
		if ctx.Err() != nil {
			for _, rest := range items[i:] {
				cancelled := ItemResult{
					DocID:  rest.Doc.ID,
					Path:   rest.Doc.Path,
					Status: StatusCancelled,
					Action: ActionNone,
					Err:    ctx.Err(),
				}
				result.record(cancelled)
				s.countItem(&cancelled)
			}
			break
		}

		itemResult, err := s.InsertOrUpdate(ctx, item.Doc, item.Chunks, item.Vectors, opts)
		if err != nil {
			failed := ItemResult{
				DocID:  item.Doc.ID,
				Path:   item.Doc.Path,
				Status: StatusFailed,
				Action: ActionNone,
				Err:    err,
			}
			result.record(failed)
			s.countItem(&failed)
			s.logger.Error("sync item failed", "path", item.Doc.Path, "error", err)
			continue
		}
		result.record(*itemResult)
	}

	result.Duration = time.Since(start)
	return result
}

// writePoints upserts the document's points in bounded batches, checking for
// cancellation between batches.
func (s *Synchronizer) writePoints(ctx context.Context, payload storage.Payload, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32, opts Options) error {
	return s.writeBatches(ctx, buildPoints(payload, doc, chunks, vectors), opts)
}

func buildPoints(payload storage.Payload, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) []*storage.StoredPoint {
	points := make([]*storage.StoredPoint, len(chunks))
	for i, chunk := range chunks {
		p := payload
		p.ChunkIndex = chunk.Index
		p.TotalChunks = len(chunks)
		points[i] = &storage.StoredPoint{
			ID:      PointID(doc.ContentHash, chunk.Index),
			Vector:  vectors[i],
			Payload: p,
		}
	}
	return points
}

func (s *Synchronizer) writeBatches(ctx context.Context, points []*storage.StoredPoint, opts Options) error {
	batchSize := opts.batchSize()
	for start := 0; start < len(points); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(points))
		if err := s.store.UpsertPoints(ctx, points[start:end]); err != nil {
			return fmt.Errorf("upsert batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// replacePoints writes the new version of a stored document, then removes
// whatever stale points remain from the previous version. The write comes
// first: a failed write must leave the stored version intact, never a store
// with the document deleted. Deterministic point IDs make the overlap an
// in-place overwrite, so only leftovers (e.g. a shrunk chunk count) need an
// explicit delete.
func (s *Synchronizer) replacePoints(ctx context.Context, existingDocID string, payload storage.Payload, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32, opts Options) error {
	stale, err := s.store.PointsByDocID(ctx, existingDocID)
	if err != nil {
		return fmt.Errorf("list stored points: %w", err)
	}

	points := buildPoints(payload, doc, chunks, vectors)
	if err := s.writeBatches(ctx, points, opts); err != nil {
		return err
	}

	fresh := make(map[string]struct{}, len(points))
	for _, point := range points {
		fresh[point.ID] = struct{}{}
	}
	var staleIDs []string
	for _, point := range stale {
		if _, ok := fresh[point.ID]; !ok {
			staleIDs = append(staleIDs, point.ID)
		}
	}
	if err := s.store.DeletePoints(ctx, staleIDs); err != nil {
		return fmt.Errorf("delete stale points: %w", err)
	}
	return nil
}

// buildPayload maps a document onto the per-chunk payload template. Chunk
// index fields are filled in per point.
func buildPayload(doc *domain.Document) storage.Payload {
	return storage.Payload{
		DocID:          doc.ID,
		ContentHash:    doc.ContentHash,
		Path:           doc.Path,
		Categories:     doc.Categories,
		AnalysisType:   doc.AnalysisType,
		RelevanceScore: doc.RelevanceScore,
		ProcessedAt:    time.Now().UTC(),
	}
}

// preserveFields copies the named fields of the stored payload over the new
// one. Unknown names are ignored.
func preserveFields(dst *storage.Payload, existing *storage.Payload, fields []string) {
	for _, field := range fields {
		switch field {
		case "categories":
			dst.Categories = existing.Categories
		case "analysisType":
			dst.AnalysisType = existing.AnalysisType
		case "relevanceScore":
			dst.RelevanceScore = existing.RelevanceScore
		}
	}
}

// mergePayload folds the stored payload into the new one: the stored
// document identity survives, categories are unioned and stored scalars are
// kept unless they are empty. Structural fields (chunk index, processedAt)
// always come from the new version.
func mergePayload(next storage.Payload, existing *storage.Payload) storage.Payload {
	next.DocID = existing.DocID
	next.Categories = unionCategories(existing.Categories, next.Categories)
	if existing.AnalysisType != "" {
		next.AnalysisType = existing.AnalysisType
	}
	if existing.RelevanceScore != 0 {
		next.RelevanceScore = existing.RelevanceScore
	}
	return next
}

// unionCategories merges both lists, deduplicated and sorted for stable
// payloads.
func unionCategories(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, c := range a {
		seen[c] = struct{}{}
	}
	for _, c := range b {
		seen[c] = struct{}{}
	}

	union := make([]string, 0, len(seen))
	for c := range seen {
		union = append(union, c)
	}
	sort.Strings(union)
	return union
}

func (s *Synchronizer) countItem(item *ItemResult) {
	if s.itemsTotal != nil {
		s.itemsTotal.WithLabelValues(string(item.Action), string(item.Status)).Inc()
	}
}
