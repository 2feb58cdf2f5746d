package config

import (
	"os"
	"path/filepath"
)

// Default configuration values
const (
	// Embedding defaults
	DefaultEmbeddingProvider = "ollama"
	DefaultOllamaURL         = "http://localhost:11434"
	DefaultOllamaEmbedModel  = "nomic-embed-text"
	DefaultOpenAIEmbedModel  = "text-embedding-3-small"

	// Completion defaults
	DefaultLLMProvider    = "groq"
	DefaultGroqModel      = "llama3-70b-8192"
	DefaultGroqBaseURL    = "https://api.groq.com/openai/v1"
	DefaultOpenAILLMModel = "gpt-4o-mini"
	DefaultOllamaLLMModel = "llama3.2:3b"

	// Chunking defaults
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMinChunkSize = 100

	// Retrieval and answer defaults
	DefaultTopK         = 4
	DefaultContextBytes = 8000
	DefaultTemperature  = 0.1
	DefaultMaxTokens    = 1024

	// Storage
	DefaultIndexFileName = "index.db"
	DocumentsDirName     = "documents"
)

// DefaultConfigDir returns the default configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/docqa"
	}
	return filepath.Join(home, ".config", "docqa")
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share/docqa"
	}
	return filepath.Join(home, ".local", "share", "docqa")
}

// DefaultDocumentsRoot returns the default managed document directory.
func DefaultDocumentsRoot() string {
	return filepath.Join(DefaultDataDir(), DocumentsDirName)
}

// DefaultIndexPath returns the default knowledge base index path.
func DefaultIndexPath() string {
	return filepath.Join(DefaultDataDir(), DefaultIndexFileName)
}
