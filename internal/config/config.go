// Package config handles configuration loading and validation for docqa.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config represents the complete docqa configuration.
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Answer     AnswerConfig     `mapstructure:"answer"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	LLM        LLMConfig        `mapstructure:"llm"`
}

// StorageConfig configures the managed storage area.
type StorageConfig struct {
	// Root is the directory registered documents are copied into.
	Root string `mapstructure:"root"`

	// Index is the path of the persisted knowledge base.
	Index string `mapstructure:"index"`
}

// ChunkingConfig configures the text splitter.
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
	Min     int `mapstructure:"min"`
}

// RetrievalConfig configures the query path.
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// AnswerConfig configures answer synthesis.
type AnswerConfig struct {
	ContextBytes int     `mapstructure:"context_bytes"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
}

// EmbeddingsConfig configures the embedding service.
type EmbeddingsConfig struct {
	Provider string            `mapstructure:"provider"`
	Ollama   OllamaEmbedConfig `mapstructure:"ollama"`
	OpenAI   OpenAIEmbedConfig `mapstructure:"openai"`
}

// OllamaEmbedConfig configures Ollama embeddings.
type OllamaEmbedConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// OpenAIEmbedConfig configures OpenAI embeddings.
type OpenAIEmbedConfig struct {
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig configures the completion provider. The provider is selected
// once at load time; callers never branch on it per request.
type LLMConfig struct {
	Provider string          `mapstructure:"provider"`
	Groq     GroqConfig      `mapstructure:"groq"`
	OpenAI   OpenAILLMConfig `mapstructure:"openai"`
	Ollama   OllamaLLMConfig `mapstructure:"ollama"`
}

// GroqConfig configures the hosted Groq provider.
type GroqConfig struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

// OpenAILLMConfig configures the hosted OpenAI provider.
type OpenAILLMConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// OllamaLLMConfig configures the local Ollama provider.
type OllamaLLMConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// Global configuration instance
var cfg *Config

// Get returns the current configuration.
func Get() *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Root:  DefaultDocumentsRoot(),
			Index: DefaultIndexPath(),
		},
		Chunking: ChunkingConfig{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
			Min:     DefaultMinChunkSize,
		},
		Retrieval: RetrievalConfig{
			TopK: DefaultTopK,
		},
		Answer: AnswerConfig{
			ContextBytes: DefaultContextBytes,
			Temperature:  DefaultTemperature,
			MaxTokens:    DefaultMaxTokens,
		},
		Embeddings: EmbeddingsConfig{
			Provider: DefaultEmbeddingProvider,
			Ollama: OllamaEmbedConfig{
				URL:   DefaultOllamaURL,
				Model: DefaultOllamaEmbedModel,
			},
			OpenAI: OpenAIEmbedConfig{
				Model: DefaultOpenAIEmbedModel,
			},
		},
		LLM: LLMConfig{
			Provider: DefaultLLMProvider,
			Groq: GroqConfig{
				Model: DefaultGroqModel,
			},
			OpenAI: OpenAILLMConfig{
				Model: DefaultOpenAILLMModel,
			},
			Ollama: OllamaLLMConfig{
				URL:   DefaultOllamaURL,
				Model: DefaultOllamaLLMModel,
			},
		},
	}
}

// Load reads configuration from file and environment variables.
func Load(configFile string) error {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(DefaultConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("DOCQA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config file found, using defaults")
	} else {
		log.Debug("Loaded config from", "file", viper.ConfigFileUsed())
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	loadAPIKeysFromEnv()

	return nil
}

// setDefaults sets default values in viper.
func setDefaults() {
	viper.SetDefault("storage.root", DefaultDocumentsRoot())
	viper.SetDefault("storage.index", DefaultIndexPath())

	viper.SetDefault("chunking.size", DefaultChunkSize)
	viper.SetDefault("chunking.overlap", DefaultChunkOverlap)
	viper.SetDefault("chunking.min", DefaultMinChunkSize)

	viper.SetDefault("retrieval.top_k", DefaultTopK)

	viper.SetDefault("answer.context_bytes", DefaultContextBytes)
	viper.SetDefault("answer.temperature", DefaultTemperature)
	viper.SetDefault("answer.max_tokens", DefaultMaxTokens)

	viper.SetDefault("embeddings.provider", DefaultEmbeddingProvider)
	viper.SetDefault("embeddings.ollama.url", DefaultOllamaURL)
	viper.SetDefault("embeddings.ollama.model", DefaultOllamaEmbedModel)
	viper.SetDefault("embeddings.openai.model", DefaultOpenAIEmbedModel)

	viper.SetDefault("llm.provider", DefaultLLMProvider)
	viper.SetDefault("llm.groq.model", DefaultGroqModel)
	viper.SetDefault("llm.openai.model", DefaultOpenAILLMModel)
	viper.SetDefault("llm.ollama.url", DefaultOllamaURL)
	viper.SetDefault("llm.ollama.model", DefaultOllamaLLMModel)
}

// loadAPIKeysFromEnv loads API keys from environment variables if not already set.
func loadAPIKeysFromEnv() {
	if cfg.LLM.Groq.APIKey == "" {
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			cfg.LLM.Groq.APIKey = key
		}
	}
	if cfg.Embeddings.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Embeddings.OpenAI.APIKey = key
		}
	}
	if cfg.LLM.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.LLM.OpenAI.APIKey = key
		}
	}
}

// ConfigFilePath returns the path of the loaded config file, or empty string if none.
func ConfigFilePath() string {
	return viper.ConfigFileUsed()
}
