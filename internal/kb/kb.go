// Package kb persists the vector knowledge base built from ingested chunks
// and answers similarity queries against it.
package kb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/avelasquez/docqa/internal/config"
	"github.com/avelasquez/docqa/internal/embeddings"
	"github.com/avelasquez/docqa/internal/ingest"
)

func init() {
	// Register sqlite-vec extension
	sqlite_vec.Auto()
}

// embedBatchSize bounds the number of chunks sent to the embedding provider
// per request.
const embedBatchSize = 50

var (
	// ErrNotBuilt is returned when querying before any build has completed.
	ErrNotBuilt = errors.New("knowledge base has not been built")

	// ErrStale is returned when the document set changed after the last
	// build. The caller must rebuild before querying again.
	ErrStale = errors.New("knowledge base is out of date")

	// ErrRebuildInProgress is returned when a rebuild is requested while
	// another one is running.
	ErrRebuildInProgress = errors.New("a rebuild is already in progress")

	// ErrEmptyCorpus is returned when a rebuild is attempted with no chunks.
	ErrEmptyCorpus = errors.New("refusing to build an empty index")
)

// ModelMismatchError is returned when the index on disk was built with a
// different embedding model than the one configured. Vectors from different
// models live in incompatible spaces.
type ModelMismatchError struct {
	IndexProvider string
	IndexModel    string
	Provider      string
	Model         string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("index was built with %s/%s but the configured embedding model is %s/%s; rebuild the index or restore the original model",
		e.IndexProvider, e.IndexModel, e.Provider, e.Model)
}

// Meta describes the build the index currently holds.
type Meta struct {
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChunkCount          int
	DocumentCount       int

	// DocFingerprint identifies the document set the build covers. A build
	// from a different fingerprint than the current registry is out of date.
	DocFingerprint string

	BuiltAt time.Time
}

// Result is a single retrieved chunk.
type Result struct {
	// Seq is the chunk's position in the build, preserving document order.
	Seq int

	// Source is the document the chunk came from.
	Source string

	// Index is the chunk's position within its document.
	Index int

	// Content is the chunk text.
	Content string

	// Distance is the cosine distance to the query.
	Distance float64

	// Score is 1 - Distance.
	Score float64
}

// KnowledgeBase is a persisted vector index backed by SQLite and sqlite-vec.
// Queries and rebuilds are safe to call concurrently; a query never observes
// a partially written index.
type KnowledgeBase struct {
	db   *sql.DB
	path string

	mu    sync.RWMutex
	stale bool

	rebuildMu sync.Mutex
}

// Open opens (or creates) the knowledge base at the given path.
func Open(path string) (*KnowledgeBase, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("Opened knowledge base", "path", path)

	return &KnowledgeBase{db: db, path: path}, nil
}

// Close closes the database connection.
func (k *KnowledgeBase) Close() error {
	return k.db.Close()
}

// Path returns the database file path.
func (k *KnowledgeBase) Path() string {
	return k.path
}

// Meta returns the metadata of the current build, or nil when no build has
// completed.
func (k *KnowledgeBase) Meta() (*Meta, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.readMeta()
}

// readMeta reads the meta row. Callers hold at least a read lock.
func (k *KnowledgeBase) readMeta() (*Meta, error) {
	var m Meta
	var builtAt string

	err := k.db.QueryRow(`
		SELECT embedding_provider, embedding_model, embedding_dimensions, chunk_count, document_count, doc_fingerprint, built_at
		FROM meta WHERE id = 1
	`).Scan(&m.EmbeddingProvider, &m.EmbeddingModel, &m.EmbeddingDimensions, &m.ChunkCount, &m.DocumentCount, &m.DocFingerprint, &builtAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}

	m.BuiltAt, _ = time.Parse(time.RFC3339, builtAt)
	return &m, nil
}

// Stale reports whether the index no longer reflects the document set.
func (k *KnowledgeBase) Stale() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.stale
}

// MarkStale flags the index as out of date. Queries fail with ErrStale until
// the next successful rebuild.
func (k *KnowledgeBase) MarkStale() {
	k.mu.Lock()
	k.stale = true
	k.mu.Unlock()
}

// Rebuild replaces the entire index with the given chunks and records
// docFingerprint as the document set the build covers. Only one rebuild runs
// at a time; a second caller fails fast with ErrRebuildInProgress. Queries
// keep seeing the previous build until the new one commits.
func (k *KnowledgeBase) Rebuild(ctx context.Context, chunks []ingest.Chunk, svc embeddings.Service, docFingerprint string) error {
	if !k.rebuildMu.TryLock() {
		return ErrRebuildInProgress
	}
	defer k.rebuildMu.Unlock()

	if len(chunks) == 0 {
		return ErrEmptyCorpus
	}

	log.Debug("Rebuilding index", "chunks", len(chunks), "model", svc.ModelName())

	// Embed everything before touching the database so a provider failure
	// leaves the previous build intact
	vectors, err := k.embedChunks(ctx, chunks, svc)
	if err != nil {
		return err
	}

	dimensions := len(vectors[0])
	sources := map[string]struct{}{}
	for _, c := range chunks {
		sources[c.Source] = struct{}{}
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.ensureVectorTable(dimensions); err != nil {
		return err
	}

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunk_vectors"); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO meta (id, embedding_provider, embedding_model, embedding_dimensions, chunk_count, document_count, doc_fingerprint, built_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	`, string(svc.Provider()), svc.ModelName(), dimensions, len(chunks), len(sources), docFingerprint, now)
	if err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}

	for i, chunk := range chunks {
		result, err := tx.Exec(`
			INSERT INTO chunks (seq, source, chunk_index, content)
			VALUES (?, ?, ?, ?)
		`, i, chunk.Source, chunk.Index, chunk.Text)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}

		chunkID, _ := result.LastInsertId()
		_, err = tx.Exec(`
			INSERT INTO chunk_vectors (chunk_id, embedding)
			VALUES (?, ?)
		`, chunkID, serializeEmbedding(vectors[i]))
		if err != nil {
			return fmt.Errorf("failed to insert vector for chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build: %w", err)
	}

	k.stale = false
	log.Debug("Index rebuilt", "chunks", len(chunks), "documents", len(sources), "dimensions", dimensions)
	return nil
}

// embedChunks embeds chunk texts in batches, preserving order.
func (k *KnowledgeBase) embedChunks(ctx context.Context, chunks []ingest.Chunk, svc embeddings.Service) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := svc.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(batch))
		}

		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// ensureVectorTable creates the vector table, recreating it when the
// embedding dimensions changed. Callers hold the write lock.
func (k *KnowledgeBase) ensureVectorTable(dimensions int) error {
	meta, err := k.readMeta()
	if err != nil {
		return err
	}
	if meta != nil && meta.EmbeddingDimensions != dimensions {
		log.Debug("Embedding dimensions changed, recreating vector table",
			"old", meta.EmbeddingDimensions, "new", dimensions)
		if err := dropVectorTable(k.db); err != nil {
			return fmt.Errorf("failed to drop vector table: %w", err)
		}
	}

	if err := createVectorTable(k.db, dimensions); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	return nil
}

// Query embeds the question and returns the topK nearest chunks. It fails
// with ErrNotBuilt before the first build, ErrStale after the document set
// changed, and *ModelMismatchError when svc does not match the build.
func (k *KnowledgeBase) Query(ctx context.Context, svc embeddings.Service, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = config.DefaultTopK
	}

	// Validate cheaply before paying for a query embedding
	k.mu.RLock()
	if k.stale {
		k.mu.RUnlock()
		return nil, ErrStale
	}
	meta, err := k.readMeta()
	k.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrNotBuilt
	}
	if meta.EmbeddingProvider != string(svc.Provider()) || meta.EmbeddingModel != svc.ModelName() {
		return nil, &ModelMismatchError{
			IndexProvider: meta.EmbeddingProvider,
			IndexModel:    meta.EmbeddingModel,
			Provider:      string(svc.Provider()),
			Model:         svc.ModelName(),
		}
	}

	queryVec, err := svc.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	// Re-check after the embedding round trip
	if k.stale {
		return nil, ErrStale
	}

	// Ties on distance resolve to the earlier chunk
	rows, err := k.db.QueryContext(ctx, `
		SELECT c.seq, c.source, c.chunk_index, c.content, cv.distance
		FROM (
			SELECT chunk_id, distance
			FROM chunk_vectors
			WHERE embedding MATCH ?
				AND k = ?
			ORDER BY distance
		) cv
		JOIN chunks c ON c.id = cv.chunk_id
		ORDER BY cv.distance ASC, c.seq ASC
	`, serializeEmbedding(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Seq, &r.Source, &r.Index, &r.Content, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Score = 1 - r.Distance
		results = append(results, r)
	}

	return results, rows.Err()
}

// Clear removes the build entirely. The knowledge base returns to the
// not-built state.
func (k *KnowledgeBase) Clear() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := dropVectorTable(k.db); err != nil {
		return fmt.Errorf("failed to drop vector table: %w", err)
	}
	if _, err := k.db.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := k.db.Exec("DELETE FROM meta"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	k.stale = false
	return nil
}

// serializeEmbedding converts a float32 slice to the byte layout sqlite-vec
// expects.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
