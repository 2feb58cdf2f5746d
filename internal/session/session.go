// Package session coordinates the document store, the ingestion pipeline,
// and the knowledge base behind a single question-answering session.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/avelasquez/docqa/internal/chunk"
	"github.com/avelasquez/docqa/internal/config"
	"github.com/avelasquez/docqa/internal/docstore"
	"github.com/avelasquez/docqa/internal/embeddings"
	"github.com/avelasquez/docqa/internal/ingest"
	"github.com/avelasquez/docqa/internal/kb"
	"github.com/avelasquez/docqa/internal/llm"
)

// State describes where the session is in its lifecycle.
type State string

const (
	// StateEmpty means no documents are registered.
	StateEmpty State = "empty"

	// StatePending means documents changed since the last build; the next
	// question triggers a rebuild.
	StatePending State = "pending"

	// StateReady means the index reflects the current document set.
	StateReady State = "ready"
)

// AnswerGenerationError wraps a failure on the answer path so callers can
// distinguish it from indexing problems.
type AnswerGenerationError struct {
	Err error
}

func (e *AnswerGenerationError) Error() string {
	return fmt.Sprintf("failed to generate an answer: %v", e.Err)
}

func (e *AnswerGenerationError) Unwrap() error {
	return e.Err
}

// Status is a snapshot of the session.
type Status struct {
	State         State
	DocumentCount int
	Index         *kb.Meta
}

// Session owns the add/ask/remove lifecycle. Adding or removing a document
// marks the index stale immediately; the rebuild itself is deferred until
// the next question.
type Session struct {
	mu sync.Mutex

	cfg      *config.Config
	docs     *docstore.Store
	pipeline *ingest.Pipeline
	kb       *kb.KnowledgeBase
	embedder embeddings.Service
	answerer *llm.Answerer
}

// New assembles a session from its parts.
func New(cfg *config.Config, docs *docstore.Store, kbase *kb.KnowledgeBase, embedder embeddings.Service, llmSvc llm.Service) *Session {
	return &Session{
		cfg:  cfg,
		docs: docs,
		pipeline: ingest.NewPipeline(chunk.Options{
			Size:    cfg.Chunking.Size,
			Overlap: cfg.Chunking.Overlap,
			Min:     cfg.Chunking.Min,
		}),
		kb:       kbase,
		embedder: embedder,
		answerer: llm.NewAnswerer(llmSvc),
	}
}

// AddDocument registers a document and marks the index stale.
func (s *Session) AddDocument(name string, data []byte) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.docs.Register(name, data)
	if err != nil {
		return docstore.Document{}, err
	}

	s.kb.MarkStale()
	log.Debug("Document added", "name", doc.Name, "size", doc.Size)
	return doc, nil
}

// RemoveDocument unregisters a document. Removing the last document tears
// the index down entirely; otherwise the index is marked stale.
func (s *Session) RemoveDocument(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.docs.Remove(name) {
		return false, nil
	}

	if s.docs.Count() == 0 {
		if err := s.kb.Clear(); err != nil {
			return true, err
		}
		log.Debug("Last document removed, index cleared")
		return true, nil
	}

	s.kb.MarkStale()
	return true, nil
}

// Clear removes every document and the index.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs.Clear()
	return s.kb.Clear()
}

// MarkStale flags the index as out of date, for callers that detect
// document changes out of band.
func (s *Session) MarkStale() {
	s.kb.MarkStale()
}

// Rebuild ingests all documents and rebuilds the index. It reports which
// documents were skipped. With no documents registered it returns
// ingest.ErrNoDocuments.
func (s *Session) Rebuild(ctx context.Context) ([]ingest.Failure, error) {
	chunks, failures, err := s.pipeline.Ingest(s.docs.Documents())
	if err != nil {
		return failures, err
	}

	if err := s.kb.Rebuild(ctx, chunks, s.embedder, s.docs.Fingerprint()); err != nil {
		return failures, err
	}

	return failures, nil
}

// Ask answers a question against the current document set, rebuilding the
// index first when it is stale or missing.
func (s *Session) Ask(ctx context.Context, question string) (*llm.Answer, error) {
	if s.docs.Count() == 0 {
		return nil, ingest.ErrNoDocuments
	}

	if err := s.ensureBuilt(ctx); err != nil {
		return nil, err
	}

	results, err := s.kb.Query(ctx, s.embedder, question, s.cfg.Retrieval.TopK)
	if err != nil {
		return nil, err
	}

	answer, err := s.answerer.Answer(ctx, question, results, llm.AnswerOptions{
		ContextBytes: s.cfg.Answer.ContextBytes,
		Temperature:  s.cfg.Answer.Temperature,
		MaxTokens:    s.cfg.Answer.MaxTokens,
	})
	if err != nil {
		return nil, &AnswerGenerationError{Err: err}
	}

	return answer, nil
}

// ensureBuilt rebuilds the index when it is stale, has never been built, or
// was built from a different document set. The fingerprint comparison catches
// document changes made by an earlier process, since the stale flag itself
// does not survive a restart.
func (s *Session) ensureBuilt(ctx context.Context) error {
	meta, err := s.kb.Meta()
	if err != nil {
		return err
	}
	if meta != nil && !s.kb.Stale() && meta.DocFingerprint == s.docs.Fingerprint() {
		return nil
	}

	log.Debug("Index is out of date, rebuilding before answering")
	_, err = s.Rebuild(ctx)
	return err
}

// Status reports the current lifecycle state.
func (s *Session) Status() (Status, error) {
	st := Status{DocumentCount: s.docs.Count()}

	meta, err := s.kb.Meta()
	if err != nil {
		return st, err
	}
	st.Index = meta

	switch {
	case st.DocumentCount == 0:
		st.State = StateEmpty
	case meta == nil || s.kb.Stale() || meta.DocFingerprint != s.docs.Fingerprint():
		st.State = StatePending
	default:
		st.State = StateReady
	}

	return st, nil
}

// Documents lists registered documents in registration order.
func (s *Session) Documents() []docstore.Document {
	return s.docs.Documents()
}
