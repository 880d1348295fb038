package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/avatar/internal/config"
)

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "the answer"}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	text, err := client.Complete(context.Background(), "the question")
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)
}

func TestOpenAICompleteStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, IsOverloaded(err))
}

func TestOpenAIEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{APIKey: "k", BaseURL: server.URL})
	vec, err := client.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "local answer", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	text, err := client.Complete(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "local answer", text)
}

func TestOllamaEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2, 3}}})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "nomic-embed-text"})
	vec, err := client.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestOllamaEmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	_, err := client.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestFactorySelectsProvider(t *testing.T) {
	gen, err := NewTextGenerator(config.LLMConfig{Provider: "openai", OpenAIModel: "gpt-4o"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, gen)
	assert.Equal(t, "gpt-4o", gen.GetModel())

	gen, err = NewTextGenerator(config.LLMConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, gen)

	// Empty provider defaults to OpenAI.
	gen, err = NewTextGenerator(config.LLMConfig{})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, gen)

	_, err = NewTextGenerator(config.LLMConfig{Provider: "bedrock"})
	assert.Error(t, err)
}

func TestFactoryEmbeddingModels(t *testing.T) {
	emb, err := NewEmbeddingGenerator(config.LLMConfig{Provider: "openai", OpenAIEmbeddingModel: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", emb.GetModel())

	emb, err = NewEmbeddingGenerator(config.LLMConfig{Provider: "ollama", OllamaEmbeddingModel: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", emb.GetModel())
}
