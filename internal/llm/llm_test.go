package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelasquez/docqa/internal/config"
)

// mockOllamaServer simulates Ollama's chat API.
func mockOllamaServer(t *testing.T, reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.NotEmpty(t, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: reply},
			Done:    true,
		})
	}))
}

func TestOllamaComplete(t *testing.T) {
	server := mockOllamaServer(t, "the answer is 42")
	defer server.Close()

	svc, err := NewOllamaService(server.URL, "llama3.2:3b")
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, svc.Provider())
	assert.Equal(t, "llama3.2:3b", svc.ModelName())

	answer, err := svc.Complete(context.Background(), []Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "what is the answer"},
	}, DefaultCompletionOptions())
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", answer)
}

func TestOllamaCompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	svc, _ := NewOllamaService(server.URL, "llama3.2:3b")
	_, err := svc.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, DefaultCompletionOptions())
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderOllama, provErr.Provider)
	assert.Contains(t, provErr.Error(), "model not loaded")
}

func TestOllamaCompleteConnectionError(t *testing.T) {
	svc, _ := NewOllamaService("http://127.0.0.1:1", "llama3.2:3b")
	_, err := svc.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, DefaultCompletionOptions())

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderOllama, provErr.Provider)
}

func TestNewOpenAIServiceRequiresKey(t *testing.T) {
	_, err := NewOpenAIService(ProviderGroq, "", "llama3-70b-8192", config.DefaultGroqBaseURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groq API key is required")
}

func TestNewService(t *testing.T) {
	t.Run("groq requires key", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LLM.Provider = "groq"
		cfg.LLM.Groq.APIKey = ""

		_, err := NewService(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GROQ_API_KEY")
	})

	t.Run("groq", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LLM.Provider = "groq"
		cfg.LLM.Groq.APIKey = "gsk-test"

		svc, err := NewService(cfg)
		require.NoError(t, err)
		assert.Equal(t, ProviderGroq, svc.Provider())
		assert.Equal(t, config.DefaultGroqModel, svc.ModelName())
	})

	t.Run("openai", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LLM.Provider = "openai"
		cfg.LLM.OpenAI.APIKey = "sk-test"

		svc, err := NewService(cfg)
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, svc.Provider())
	})

	t.Run("ollama", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LLM.Provider = "ollama"

		svc, err := NewService(cfg)
		require.NoError(t, err)
		assert.Equal(t, ProviderOllama, svc.Provider())
	})

	t.Run("unsupported provider", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LLM.Provider = "carrier-pigeon"

		_, err := NewService(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported LLM provider")
	})
}
