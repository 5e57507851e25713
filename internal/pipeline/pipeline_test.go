package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcia/knowledge-sync/internal/chunking"
	"github.com/vcia/knowledge-sync/internal/domain"
	"github.com/vcia/knowledge-sync/internal/embedding"
	"github.com/vcia/knowledge-sync/internal/storage"
	"github.com/vcia/knowledge-sync/internal/syncer"
)

type fakeProvider struct{}

func (fakeProvider) Name() string  { return "fake" }
func (fakeProvider) Model() string { return "fake-model" }

func (fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 2}, nil
}

type fakeStore struct {
	mu       sync.Mutex
	points   map[string]*storage.StoredPoint
	failPath string
}

func newFakeStore() *fakeStore {
	return &fakeStore{points: make(map[string]*storage.StoredPoint)}
}

func (f *fakeStore) FirstByPath(ctx context.Context, path string) (*storage.StoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.points {
		if p.Payload.Path == path {
			return p, nil
		}
	}
	return nil, storage.ErrPointNotFound
}

func (f *fakeStore) FirstByContentHash(ctx context.Context, hash string) (*storage.StoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.points {
		if p.Payload.ContentHash == hash {
			return p, nil
		}
	}
	return nil, storage.ErrPointNotFound
}

func (f *fakeStore) UpsertPoints(ctx context.Context, points []*storage.StoredPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		if f.failPath != "" && p.Payload.Path == f.failPath {
			return fmt.Errorf("store rejected %s", p.Payload.Path)
		}
		copied := *p
		f.points[p.ID] = &copied
	}
	return nil
}

func (f *fakeStore) PointsByDocID(ctx context.Context, docID string) ([]*storage.StoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*storage.StoredPoint
	for _, p := range f.points {
		if p.Payload.DocID == docID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) DeletePoints(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.points, id)
	}
	return nil
}

func newTestPipeline(store *fakeStore, opts syncer.Options) *Pipeline {
	embedder := embedding.NewEmbedder(
		fakeProvider{},
		embedding.NewCache(embedding.CacheConfig{MaxEntries: 100}),
		3, nil, nil,
	)
	return New(Config{
		Chunker:      chunking.NewChunker(),
		ChunkConfig:  chunking.Config{MaxSize: 500},
		Embedder:     embedder,
		Synchronizer: syncer.New(store, 3, nil, nil),
		Concurrency:  2,
		SyncOptions:  opts,
	})
}

func testDocs(paths ...string) []*domain.Document {
	docs := make([]*domain.Document, len(paths))
	for i, path := range paths {
		docs[i] = &domain.Document{
			Path: path,
			Content: fmt.Sprintf("# Doc %d\n\n%s\n\n## Detail\n\n%s\n",
				i, strings.Repeat("alpha beta gamma ", 20), strings.Repeat("delta epsilon ", 20)),
			Categories: []string{"test"},
		}
	}
	return docs
}

func TestSyncAll_InsertsNewDocuments(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, syncer.Options{})

	summary, err := p.SyncAll(context.Background(), testDocs("/a.md", "/b.md"))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalDocs)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 0, summary.Failed)
	assert.Greater(t, summary.TotalChunks, 0)
	assert.Len(t, store.points, summary.TotalChunks)

	for _, p := range store.points {
		assert.NotEmpty(t, p.Payload.DocID, "identity is assigned when missing")
		assert.NotEmpty(t, p.Payload.ContentHash, "hash is computed when missing")
	}
}

func TestSyncAll_SecondRunSkipsUnchanged(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, syncer.Options{})

	docs := testDocs("/a.md")
	_, err := p.SyncAll(context.Background(), docs)
	require.NoError(t, err)

	summary, err := p.SyncAll(context.Background(), testDocs("/a.md"))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Inserted)
}

func TestSyncAll_FailureDoesNotStopRun(t *testing.T) {
	store := newFakeStore()
	store.failPath = "/bad.md"
	p := newTestPipeline(store, syncer.Options{})

	summary, err := p.SyncAll(context.Background(), testDocs("/a.md", "/bad.md", "/c.md"))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.FailedDocs, 1)
	assert.Equal(t, "/bad.md", summary.FailedDocs[0].Path)
	assert.NotEmpty(t, summary.FailedDocs[0].Reason)
}

func TestSyncAll_EmptyDocumentFails(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, syncer.Options{})

	docs := []*domain.Document{{Path: "/empty.md", Content: "   \n"}}
	summary, err := p.SyncAll(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, store.points)
}

func TestSyncAll_CancelledContext(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, syncer.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.SyncAll(ctx, testDocs("/a.md", "/b.md"))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Cancelled)
	assert.Empty(t, store.points)
}
