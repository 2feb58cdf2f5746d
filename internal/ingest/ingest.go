// Package ingest turns registered documents into ordered text chunks ready
// for indexing.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/avelasquez/docqa/internal/chunk"
	"github.com/avelasquez/docqa/internal/docstore"
	"github.com/avelasquez/docqa/internal/extract"
)

// ErrNoDocuments is returned when ingestion is attempted with no documents
// registered.
var ErrNoDocuments = errors.New("no documents registered")

// Chunk is a single indexable unit of text.
type Chunk struct {
	// Text is the chunk content. Never empty.
	Text string

	// Source is the name of the document the chunk came from.
	Source string

	// Index is the position of the chunk within its document, starting at 0.
	Index int
}

// Failure records why a single document produced no chunks.
type Failure struct {
	Name   string
	Reason string
}

// EmptyCorpusError is returned when every registered document failed to
// produce text. It carries per-document diagnostics so the caller can tell
// the user which files were missing, empty, or unreadable.
type EmptyCorpusError struct {
	Failures []Failure
}

func (e *EmptyCorpusError) Error() string {
	var sb strings.Builder
	sb.WriteString("no text could be extracted from any document")
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  %s: %s", f.Name, f.Reason)
	}
	return sb.String()
}

// Pipeline extracts and chunks documents.
type Pipeline struct {
	extractors extract.Chain
	splitter   *chunk.Splitter
}

// NewPipeline builds a pipeline with the default extractor chain.
func NewPipeline(opts chunk.Options) *Pipeline {
	return &Pipeline{
		extractors: extract.DefaultChain(),
		splitter:   chunk.NewSplitter(opts),
	}
}

// Ingest processes documents in registration order. A failing document never
// aborts the run; it is recorded as a Failure and the rest proceed. The
// returned chunks preserve document order and within-document order.
//
// Ingest returns ErrNoDocuments when docs is empty and an *EmptyCorpusError
// when every document failed.
func (p *Pipeline) Ingest(docs []docstore.Document) ([]Chunk, []Failure, error) {
	if len(docs) == 0 {
		return nil, nil, ErrNoDocuments
	}

	var chunks []Chunk
	var failures []Failure

	for _, doc := range docs {
		docChunks, reason := p.ingestOne(doc)
		if reason != "" {
			log.Warn("Skipping document", "name", doc.Name, "reason", reason)
			failures = append(failures, Failure{Name: doc.Name, Reason: reason})
			continue
		}
		chunks = append(chunks, docChunks...)
	}

	if len(chunks) == 0 {
		return nil, failures, &EmptyCorpusError{Failures: failures}
	}

	return chunks, failures, nil
}

// ingestOne extracts and chunks a single document, returning a non-empty
// reason string on failure.
func (p *Pipeline) ingestOne(doc docstore.Document) ([]Chunk, string) {
	info, err := os.Stat(doc.Path)
	if err != nil {
		return nil, "file not found in storage"
	}
	if info.Size() == 0 {
		return nil, "file is empty"
	}

	pages, err := p.extractors.Extract(doc.Path)
	if err != nil {
		return nil, fmt.Sprintf("extraction failed: %v", err)
	}

	text := strings.Join(pages, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, "no extractable text"
	}

	parts := p.splitter.Split(text)

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:   part,
			Source: doc.Name,
			Index:  len(chunks),
		})
	}
	if len(chunks) == 0 {
		return nil, "no extractable text"
	}

	log.Debug("Ingested document", "name", doc.Name, "chunks", len(chunks))
	return chunks, ""
}
