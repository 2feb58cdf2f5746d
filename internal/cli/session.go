package cli

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/avelasquez/docqa/internal/config"
	"github.com/avelasquez/docqa/internal/docstore"
	"github.com/avelasquez/docqa/internal/embeddings"
	"github.com/avelasquez/docqa/internal/kb"
	"github.com/avelasquez/docqa/internal/llm"
	"github.com/avelasquez/docqa/internal/session"
)

// openSession assembles a session from the configuration. When forIndex is
// true and a fresh build exists, the embedding service is pinned to the
// model the index was built with so queries stay in the same vector space.
func openSession(forIndex bool) (*session.Session, func(), error) {
	cfg := config.Get()

	docs, err := docstore.New(cfg.Storage.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document storage: %w", err)
	}

	if err := docs.Restore(); err != nil {
		return nil, nil, fmt.Errorf("failed to restore document registry: %w", err)
	}

	kbase, err := kb.Open(cfg.Storage.Index)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	closeFn := func() { kbase.Close() }

	emb, err := embeddingService(cfg, docs, kbase, forIndex)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	llmSvc, err := llm.NewService(cfg)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to create LLM service: %w", err)
	}

	return session.New(cfg, docs, kbase, emb, llmSvc), closeFn, nil
}

// embeddingService picks the embedding backend, preferring the one recorded
// in the index when it exists and still reflects the document set.
func embeddingService(cfg *config.Config, docs *docstore.Store, kbase *kb.KnowledgeBase, forIndex bool) (embeddings.Service, error) {
	if forIndex {
		meta, err := kbase.Meta()
		if err != nil {
			return nil, err
		}
		if meta != nil && !kbase.Stale() && meta.DocFingerprint == docs.Fingerprint() &&
			(meta.EmbeddingProvider != cfg.Embeddings.Provider || meta.EmbeddingModel != embedModelFor(cfg)) {
			log.Warn("Using the embedding model the index was built with",
				"provider", meta.EmbeddingProvider, "model", meta.EmbeddingModel)
			return embeddings.NewServiceForIndex(meta.EmbeddingProvider, meta.EmbeddingModel, cfg)
		}
	}

	emb, err := embeddings.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}
	return emb, nil
}

// embedModelFor returns the configured model for the configured provider.
func embedModelFor(cfg *config.Config) string {
	if cfg.Embeddings.Provider == "openai" {
		return cfg.Embeddings.OpenAI.Model
	}
	return cfg.Embeddings.Ollama.Model
}
