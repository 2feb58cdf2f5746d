package kb

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelasquez/docqa/internal/embeddings"
	"github.com/avelasquez/docqa/internal/ingest"
)

// mockEmbedder produces deterministic vectors so identical text always maps
// to an identical embedding.
type mockEmbedder struct {
	dims     int
	provider embeddings.Provider
	model    string
	err      error

	started chan struct{}
	gate    chan struct{}
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dims: 8, provider: embeddings.ProviderOllama, model: "mock-embed"}
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dims)
	for i := range v {
		v[i] = 1
		for j, r := range text {
			v[i] += float32((int(r)*(i+1)+j)%13) * 0.1
		}
	}
	return v
}

func (m *mockEmbedder) embed(texts []string) ([][]float32, error) {
	if m.started != nil {
		close(m.started)
		m.started = nil
	}
	if m.gate != nil {
		<-m.gate
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.embed([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return m.Embed(ctx, text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return m.embed(texts)
}

func (m *mockEmbedder) Dimensions() int               { return m.dims }
func (m *mockEmbedder) Provider() embeddings.Provider { return m.provider }
func (m *mockEmbedder) ModelName() string             { return m.model }

var _ embeddings.Service = (*mockEmbedder)(nil)

func openTestKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	k, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	return k
}

func testChunks() []ingest.Chunk {
	return []ingest.Chunk{
		{Text: "the capital of France is Paris", Source: "geo.pdf", Index: 0},
		{Text: "water boils at one hundred degrees", Source: "physics.pdf", Index: 0},
		{Text: "the Loire is the longest river in France", Source: "geo.pdf", Index: 1},
	}
}

func TestRebuildAndQuery(t *testing.T) {
	k := openTestKB(t)
	emb := newMockEmbedder()
	ctx := context.Background()

	require.NoError(t, k.Rebuild(ctx, testChunks(), emb, "fp-1"))

	meta, err := k.Meta()
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "ollama", meta.EmbeddingProvider)
	assert.Equal(t, "mock-embed", meta.EmbeddingModel)
	assert.Equal(t, 8, meta.EmbeddingDimensions)
	assert.Equal(t, 3, meta.ChunkCount)
	assert.Equal(t, 2, meta.DocumentCount)
	assert.Equal(t, "fp-1", meta.DocFingerprint)
	assert.WithinDuration(t, time.Now().UTC(), meta.BuiltAt, time.Minute)

	// Querying with a chunk's exact text must rank that chunk first
	results, err := k.Query(ctx, emb, "water boils at one hundred degrees", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "water boils at one hundred degrees", results[0].Content)
	assert.Equal(t, "physics.pdf", results[0].Source)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
	assert.LessOrEqual(t, len(results), 2)
}

func TestQueryNotBuilt(t *testing.T) {
	k := openTestKB(t)

	_, err := k.Query(context.Background(), newMockEmbedder(), "anything", 4)
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestQueryStale(t *testing.T) {
	k := openTestKB(t)
	emb := newMockEmbedder()
	ctx := context.Background()

	require.NoError(t, k.Rebuild(ctx, testChunks(), emb, "fp-1"))
	require.False(t, k.Stale())

	k.MarkStale()
	require.True(t, k.Stale())

	_, err := k.Query(ctx, emb, "anything", 4)
	assert.ErrorIs(t, err, ErrStale)

	// A successful rebuild clears the flag
	require.NoError(t, k.Rebuild(ctx, testChunks(), emb, "fp-1"))
	assert.False(t, k.Stale())

	_, err = k.Query(ctx, emb, "anything", 4)
	assert.NoError(t, err)
}

func TestQueryModelMismatch(t *testing.T) {
	k := openTestKB(t)
	ctx := context.Background()

	require.NoError(t, k.Rebuild(ctx, testChunks(), newMockEmbedder(), "fp-1"))

	other := newMockEmbedder()
	other.model = "different-model"

	_, err := k.Query(ctx, other, "anything", 4)

	var mismatch *ModelMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "mock-embed", mismatch.IndexModel)
	assert.Equal(t, "different-model", mismatch.Model)
}

func TestRebuildReplacesPreviousBuild(t *testing.T) {
	k := openTestKB(t)
	emb := newMockEmbedder()
	ctx := context.Background()

	require.NoError(t, k.Rebuild(ctx, testChunks(), emb, "fp-1"))

	replacement := []ingest.Chunk{
		{Text: "entirely new content about astronomy", Source: "space.pdf", Index: 0},
	}
	require.NoError(t, k.Rebuild(ctx, replacement, emb, "fp-2"))

	meta, err := k.Meta()
	require.NoError(t, err)
	assert.Equal(t, 1, meta.ChunkCount)
	assert.Equal(t, 1, meta.DocumentCount)

	results, err := k.Query(ctx, emb, "the capital of France is Paris", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "space.pdf", r.Source)
	}
}

func TestRebuildEmptyRefused(t *testing.T) {
	k := openTestKB(t)

	err := k.Rebuild(context.Background(), nil, newMockEmbedder(), "fp-1")
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	// Nothing was persisted
	meta, err := k.Meta()
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestRebuildFailureLeavesPreviousBuild(t *testing.T) {
	k := openTestKB(t)
	emb := newMockEmbedder()
	ctx := context.Background()

	require.NoError(t, k.Rebuild(ctx, testChunks(), emb, "fp-1"))

	broken := newMockEmbedder()
	broken.err = errors.New("provider down")
	err := k.Rebuild(ctx, []ingest.Chunk{{Text: "new", Source: "new.pdf"}}, broken, "fp-2")
	require.Error(t, err)

	// The earlier build is still queryable
	results, err := k.Query(ctx, emb, "the capital of France is Paris", 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "geo.pdf", results[0].Source)
}

func TestRebuildSingleFlight(t *testing.T) {
	k := openTestKB(t)
	ctx := context.Background()

	slow := newMockEmbedder()
	slow.started = make(chan struct{})
	slow.gate = make(chan struct{})
	started := slow.started

	done := make(chan error, 1)
	go func() {
		done <- k.Rebuild(ctx, testChunks(), slow, "fp-1")
	}()

	// Wait until the first rebuild is inside the embedding call
	<-started

	err := k.Rebuild(ctx, testChunks(), newMockEmbedder(), "fp-2")
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	close(slow.gate)
	require.NoError(t, <-done)
}

func TestQueryBreaksTiesByChunkOrder(t *testing.T) {
	k := openTestKB(t)
	emb := newMockEmbedder()
	ctx := context.Background()

	// Identical text embeds to identical vectors, forcing a distance tie
	chunks := []ingest.Chunk{
		{Text: "the same passage appears twice", Source: "b.pdf", Index: 0},
		{Text: "the same passage appears twice", Source: "a.pdf", Index: 0},
	}
	require.NoError(t, k.Rebuild(ctx, chunks, emb, "fp-1"))

	results, err := k.Query(ctx, emb, "the same passage appears twice", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The earlier chunk wins the tie
	assert.Equal(t, 0, results[0].Seq)
	assert.Equal(t, "b.pdf", results[0].Source)
	assert.Equal(t, 1, results[1].Seq)
}

func TestClear(t *testing.T) {
	k := openTestKB(t)
	emb := newMockEmbedder()
	ctx := context.Background()

	require.NoError(t, k.Rebuild(ctx, testChunks(), emb, "fp-1"))
	require.NoError(t, k.Clear())

	meta, err := k.Meta()
	require.NoError(t, err)
	assert.Nil(t, meta)

	_, err = k.Query(ctx, emb, "anything", 4)
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	emb := newMockEmbedder()
	ctx := context.Background()

	k, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, k.Rebuild(ctx, testChunks(), emb, "fp-1"))
	require.NoError(t, k.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	meta, err := reopened.Meta()
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 3, meta.ChunkCount)

	results, err := reopened.Query(ctx, emb, "water boils at one hundred degrees", 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "physics.pdf", results[0].Source)
}

func TestSerializeEmbedding(t *testing.T) {
	buf := serializeEmbedding([]float32{1.5, -2.25})
	require.Len(t, buf, 8)

	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])))
	assert.Equal(t, float32(-2.25), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])))
}
