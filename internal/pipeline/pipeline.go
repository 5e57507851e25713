// Package pipeline orchestrates the full sync flow: hashing, chunking,
// embedding and reconciliation against the vector store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vcia/knowledge-sync/internal/chunking"
	"github.com/vcia/knowledge-sync/internal/confidence"
	"github.com/vcia/knowledge-sync/internal/domain"
	"github.com/vcia/knowledge-sync/internal/embedding"
	"github.com/vcia/knowledge-sync/internal/hashing"
	"github.com/vcia/knowledge-sync/internal/metrics"
	"github.com/vcia/knowledge-sync/internal/syncer"
)

// Config wires the pipeline components. Bridge and Metrics may be nil.
type Config struct {
	Chunker      *chunking.Chunker
	ChunkConfig  chunking.Config
	Embedder     *embedding.Embedder
	Synchronizer *syncer.Synchronizer
	Bridge       *confidence.Bridge
	Metrics      *metrics.Metrics
	Logger       *slog.Logger

	// Concurrency bounds how many documents are in flight at once, 4 when 0.
	Concurrency int

	SyncOptions syncer.Options
}

// FailedDoc records why one document did not make it into the store.
type FailedDoc struct {
	Path   string
	Reason string
}

// SyncSummary contains statistics for one run.
type SyncSummary struct {
	TotalDocs   int
	Inserted    int
	Updated     int
	Merged      int
	Skipped     int
	Failed      int
	Cancelled   int
	TotalChunks int
	FailedDocs  []FailedDoc
	Duration    time.Duration
}

// Pipeline runs documents through chunking, embedding and sync with bounded
// fan-out.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a pipeline from wired components.
func New(cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// SyncAll processes every document. Per-document failures are recorded and
// do not stop the run; cancellation marks unstarted documents cancelled.
func (p *Pipeline) SyncAll(ctx context.Context, docs []*domain.Document) (*SyncSummary, error) {
	start := time.Now()
	summary := &SyncSummary{TotalDocs: len(docs)}
	p.logger.Info("starting sync", "documents", len(docs), "concurrency", p.cfg.Concurrency)

	var mu sync.Mutex

	group := new(errgroup.Group)
	group.SetLimit(p.cfg.Concurrency)

	for _, doc := range docs {
		doc := doc
		group.Go(func() error {
			result, err := p.syncOne(ctx, doc)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil && ctx.Err() != nil:
				summary.Cancelled++
			case err != nil:
				summary.Failed++
				summary.FailedDocs = append(summary.FailedDocs, FailedDoc{
					Path:   doc.Path,
					Reason: err.Error(),
				})
				p.logger.Warn("document failed", "path", doc.Path, "error", err)
			default:
				p.recordResult(summary, result)
			}
			return nil
		})
	}
	_ = group.Wait()

	summary.Duration = time.Since(start)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.SyncBatchDuration.Observe(summary.Duration.Seconds())
	}
	p.logger.Info("sync complete",
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"merged", summary.Merged,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"chunks", summary.TotalChunks,
		"duration", summary.Duration,
	)
	return summary, nil
}

// syncOne takes one document through the full flow.
func (p *Pipeline) syncOne(ctx context.Context, doc *domain.Document) (*syncer.ItemResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if doc.ContentHash == "" {
		doc.ContentHash = hashing.HashContent(doc.Content)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	chunks, err := p.cfg.Chunker.Chunk(doc.Content, p.cfg.ChunkConfig)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document has no content")
	}
	for i := range chunks {
		chunks[i].ParentDocID = doc.ID
	}

	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		vectors[i], err = p.cfg.Embedder.GetEmbedding(ctx, chunk.Text, "")
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}
	}

	result, err := p.cfg.Synchronizer.InsertOrUpdate(ctx, doc, chunks, vectors, p.cfg.SyncOptions)
	if err != nil {
		return nil, err
	}

	if result.Status == syncer.StatusOK && p.cfg.Bridge != nil {
		p.cfg.Bridge.Invalidate(result.DocID)
	}
	return result, nil
}

func (p *Pipeline) recordResult(summary *SyncSummary, result *syncer.ItemResult) {
	switch result.Action {
	case syncer.ActionInserted:
		summary.Inserted++
	case syncer.ActionUpdated:
		summary.Updated++
	case syncer.ActionMerged:
		summary.Merged++
	case syncer.ActionSkipped:
		summary.Skipped++
	}
	summary.TotalChunks += result.Chunks
	if p.cfg.Metrics != nil && result.Chunks > 0 {
		p.cfg.Metrics.ChunksWritten.Add(float64(result.Chunks))
	}
}
