// Package config loads application configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the whole application configuration.
type Config struct {
	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Chunker   ChunkerConfig
	Retrieval RetrievalConfig
	Chat      ChatConfig
	Log       LogConfig

	// Ephemeral switches the document store and vector index to the
	// in-memory implementations; nothing survives process exit.
	Ephemeral bool
}

// DatabaseConfig is the PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig covers embeddings and chat completion.
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	ChatModel          string
}

// ChunkerConfig controls document splitting.
type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
	SentenceSlack int
}

// RetrievalConfig controls context retrieval.
type RetrievalConfig struct {
	K              int
	MinScore       float64
	DedupThreshold float64
}

// ChatConfig controls conversation memory.
type ChatConfig struct {
	MemoryWindow int
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. A missing .env file is not an error; the environment alone is
// enough.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "medha"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "medha"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			ChatModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		},
		Chunker: ChunkerConfig{
			MaxTokens:     getEnvAsInt("CHUNK_MAX_TOKENS", 300),
			OverlapTokens: getEnvAsInt("CHUNK_OVERLAP_TOKENS", 50),
			SentenceSlack: getEnvAsInt("CHUNK_SENTENCE_SLACK", 40),
		},
		Retrieval: RetrievalConfig{
			K:              getEnvAsInt("RETRIEVAL_K", 5),
			MinScore:       getEnvAsFloat("RETRIEVAL_MIN_SCORE", 0),
			DedupThreshold: getEnvAsFloat("RETRIEVAL_DEDUP_THRESHOLD", 0.9),
		},
		Chat: ChatConfig{
			MemoryWindow: getEnvAsInt("CHAT_MEMORY_WINDOW", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Ephemeral: getEnvAsBool("MEDHA_EPHEMERAL", false),
	}

	if cfg.OpenAI.EmbeddingDimension <= 0 {
		return nil, fmt.Errorf("OPENAI_EMBEDDING_DIMENSION must be positive, got %d", cfg.OpenAI.EmbeddingDimension)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
