// Package config provides configuration management for the avatar backend.
// It loads settings from environment variables with the AVATAR_ prefix and
// provides sensible defaults for all configuration options.
//
// API keys are deliberately not validated at load time: a missing key
// surfaces as a runtime failure on the first provider call, which keeps
// local development (ollama, tests) free of cloud credentials.
package config

import (
	"os"
	"strconv"
)

// Config holds all configuration settings for the avatar application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Security SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 8000)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains index persistence and document source configuration.
type StorageConfig struct {
	StorageEngine     string // Chunk store engine: sqlite, postgres (default: sqlite)
	IndexPath         string // Root directory for persisted indexes (default: ./data/index)
	PostgresDSN       string // DSN for the postgres chunk store
	DocumentPath      string // Root directory for source PDF documents (default: ./data/docs)
	PrinciplesPath    string // Directory holding per-personality principles documents (default: ./data/principles)
	PersonalitiesFile string // Optional YAML catalog of extra personalities
}

// LLMConfig contains LLM and embedding provider configuration.
type LLMConfig struct {
	Provider             string // LLM provider: openai, ollama (default: openai)
	OpenAIAPIKey         string // OpenAI API key
	OpenAIModel          string // OpenAI chat model (default: gpt-4o-mini)
	OpenAIEmbeddingModel string // OpenAI embedding model (default: text-embedding-3-small)
	OllamaURL            string // Ollama API URL (default: http://localhost:11434)
	OllamaModel          string // Ollama model for completions (default: qwen2.5:7b)
	OllamaEmbeddingModel string // Ollama model for embeddings (default: nomic-embed-text)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token for production mode
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the AVATAR_ prefix.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("AVATAR_PORT", 8000),
			Host: getEnv("AVATAR_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine:     getEnv("AVATAR_STORAGE_ENGINE", "sqlite"),
			IndexPath:         getEnv("AVATAR_INDEX_PATH", "./data/index"),
			PostgresDSN:       getEnv("AVATAR_POSTGRES_DSN", ""),
			DocumentPath:      getEnv("AVATAR_DOCUMENT_PATH", "./data/docs"),
			PrinciplesPath:    getEnv("AVATAR_PRINCIPLES_PATH", "./data/principles"),
			PersonalitiesFile: getEnv("AVATAR_PERSONALITIES_FILE", ""),
		},
		LLM: LLMConfig{
			Provider:             getEnv("AVATAR_LLM_PROVIDER", "openai"),
			OpenAIAPIKey:         getEnv("AVATAR_OPENAI_API_KEY", ""),
			OpenAIModel:          getEnv("AVATAR_OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIEmbeddingModel: getEnv("AVATAR_OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			OllamaURL:            getEnv("AVATAR_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("AVATAR_OLLAMA_MODEL", "qwen2.5:7b"),
			OllamaEmbeddingModel: getEnv("AVATAR_OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("AVATAR_SECURITY_MODE", "development"),
			APIToken:     getEnv("AVATAR_API_TOKEN", ""),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
