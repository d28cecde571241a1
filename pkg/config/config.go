package config

import (
	"os"
	"strconv"
	"time"

	"github.com/mikeboe/deep-research/pkg/research"
)

type Config struct {
	GoogleApiKey   string
	TavilyApiKey   string
	DatabaseURL    string
	ReasoningModel string
	FastModel      string
	Port           string
	ChunkSize      int
	ChunkOverlap   int
	EmbeddingModel string
	CollectionName string

	// SearchBackend selects the search tool: tavily or arxiv.
	SearchBackend string

	MaxIterations     int
	MaxWallClock      time.Duration
	MinNewSourceRatio float64
	ShrinkTolerance   float64
}

func Load() *Config {
	return &Config{
		GoogleApiKey:   getEnv("GOOGLE_API_KEY", ""),
		TavilyApiKey:   getEnv("TAVILY_API_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ReasoningModel: getEnv("REASONING_MODEL", "gemini-3-pro-preview"),
		FastModel:      getEnv("FAST_MODEL", "gemini-3-flash-preview"),
		Port:           getEnv("PORT", "3000"),
		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 200),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		CollectionName: getEnv("COLLECTION_NAME", "research_archive"),

		SearchBackend: getEnv("SEARCH_BACKEND", "tavily"),

		MaxIterations:     getEnvAsInt("MAX_ITERATIONS", 5),
		MaxWallClock:      time.Duration(getEnvAsInt("MAX_WALL_CLOCK_SECONDS", 600)) * time.Second,
		MinNewSourceRatio: getEnvAsFloat("MIN_NEW_SOURCE_RATIO", 0.1),
		ShrinkTolerance:   getEnvAsFloat("SHRINK_TOLERANCE", 0.8),
	}
}

// ResearchConfig maps the loop budgets onto the research package config.
func (c *Config) ResearchConfig() research.Config {
	cfg := research.DefaultConfig()
	cfg.MaxIterations = c.MaxIterations
	cfg.MaxWallClock = c.MaxWallClock
	cfg.MinNewSourceRatio = c.MinNewSourceRatio
	cfg.ShrinkTolerance = c.ShrinkTolerance
	return cfg
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
