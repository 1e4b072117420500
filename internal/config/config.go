package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ChatModel          string
	ChatTemperature    float32
	EmbeddingModel     string
	EmbeddingBatchSize int
	RequestTimeout     time.Duration

	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int
	Reformulate  bool

	IndexBackend string
	QdrantURL    string
	TurnLogPath  string

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// fileConfig is the optional YAML file named by CONFIG_FILE. Its values replace
// the built-in defaults; environment variables still take precedence.
type fileConfig struct {
	OpenAI struct {
		APIKey         string   `yaml:"api_key"`
		BaseURL        string   `yaml:"base_url"`
		ChatModel      string   `yaml:"chat_model"`
		Temperature    *float64 `yaml:"temperature"`
		EmbeddingModel string   `yaml:"embedding_model"`
		BatchSize      int      `yaml:"batch_size"`
		Timeout        string   `yaml:"timeout"`
	} `yaml:"openai"`
	Chunker struct {
		Size    int  `yaml:"size"`
		Overlap *int `yaml:"overlap"`
	} `yaml:"chunker"`
	Retrieval struct {
		K           int   `yaml:"k"`
		Reformulate *bool `yaml:"reformulate"`
	} `yaml:"retrieval"`
	Index struct {
		Backend   string `yaml:"backend"`
		QdrantURL string `yaml:"qdrant_url"`
	} `yaml:"index"`
	TurnLogPath string `yaml:"turn_log_path"`
	API         struct {
		Port string `yaml:"port"`
	} `yaml:"api"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is loaded
// first. Environment variables already set take precedence over .env file values.
// When CONFIG_FILE names a YAML file, its values replace the built-in defaults.
func Load() (*Config, error) {
	loadDotEnv()

	defaults := builtinDefaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		overlay, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		for key, value := range overlay {
			defaults[key] = value
		}
	}
	get := func(key string) string { return getEnv(key, defaults[key]) }

	cfg := &Config{
		OpenAIAPIKey:   get("OPENAI_API_KEY"),
		OpenAIBaseURL:  get("OPENAI_BASE_URL"),
		ChatModel:      get("CHAT_MODEL"),
		EmbeddingModel: get("EMBEDDING_MODEL"),
		IndexBackend:   strings.ToLower(get("INDEX_BACKEND")),
		QdrantURL:      get("QDRANT_URL"),
		TurnLogPath:    get("TURN_LOG_PATH"),
		APIPort:        get("API_PORT"),
		LogFormat:      strings.ToLower(get("LOG_FORMAT")),
	}

	var err error
	if cfg.ChatTemperature, err = parseTemperature(get("CHAT_TEMPERATURE")); err != nil {
		return nil, err
	}
	if cfg.EmbeddingBatchSize, err = parsePositiveInt("EMBEDDING_BATCH_SIZE", get("EMBEDDING_BATCH_SIZE")); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = time.ParseDuration(get("REQUEST_TIMEOUT")); err != nil {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be a valid duration: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be greater than 0")
	}
	if cfg.ChunkSize, err = parsePositiveInt("CHUNK_SIZE", get("CHUNK_SIZE")); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = strconv.Atoi(get("CHUNK_OVERLAP")); err != nil {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be a valid integer: %w", err)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be between 0 and CHUNK_SIZE-1")
	}
	if cfg.RetrievalK, err = parsePositiveInt("RETRIEVAL_K", get("RETRIEVAL_K")); err != nil {
		return nil, err
	}
	if cfg.Reformulate, err = strconv.ParseBool(get("REFORMULATE")); err != nil {
		return nil, fmt.Errorf("REFORMULATE must be a boolean: %w", err)
	}

	switch cfg.IndexBackend {
	case BackendMemory:
	case BackendQdrant:
		if cfg.QdrantURL == "" {
			return nil, fmt.Errorf("QDRANT_URL is required when INDEX_BACKEND is %s", BackendQdrant)
		}
	default:
		return nil, fmt.Errorf("INDEX_BACKEND must be %s or %s, got %q", BackendMemory, BackendQdrant, cfg.IndexBackend)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	// Create the turn log directory if it doesn't exist
	if cfg.TurnLogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.TurnLogPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create turn log directory: %w", err)
		}
	}

	return cfg, nil
}

func builtinDefaults() map[string]string {
	return map[string]string{
		"OPENAI_API_KEY":       "",
		"OPENAI_BASE_URL":      "",
		"CHAT_MODEL":           "gpt-4o-mini",
		"CHAT_TEMPERATURE":     "0",
		"EMBEDDING_MODEL":      "text-embedding-3-small",
		"EMBEDDING_BATCH_SIZE": "64",
		"REQUEST_TIMEOUT":      "60s",
		"CHUNK_SIZE":           "1000",
		"CHUNK_OVERLAP":        "200",
		"RETRIEVAL_K":          "4",
		"REFORMULATE":          "true",
		"INDEX_BACKEND":        BackendMemory,
		"QDRANT_URL":           "http://localhost:6333",
		"TURN_LOG_PATH":        "",
		"API_PORT":             "9000",
		"LOG_LEVEL":            "info",
		"LOG_FORMAT":           "text",
	}
}

// loadDotEnv loads the nearest .env file, looking at most 5 directories up.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// loadFile reads a YAML config file and returns its set values keyed by
// environment variable name.
func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := map[string]string{
		"OPENAI_API_KEY":  fc.OpenAI.APIKey,
		"OPENAI_BASE_URL": fc.OpenAI.BaseURL,
		"CHAT_MODEL":      fc.OpenAI.ChatModel,
		"EMBEDDING_MODEL": fc.OpenAI.EmbeddingModel,
		"REQUEST_TIMEOUT": fc.OpenAI.Timeout,
		"INDEX_BACKEND":   fc.Index.Backend,
		"QDRANT_URL":      fc.Index.QdrantURL,
		"TURN_LOG_PATH":   fc.TurnLogPath,
		"API_PORT":        fc.API.Port,
		"LOG_LEVEL":       fc.Log.Level,
		"LOG_FORMAT":      fc.Log.Format,
	}
	if fc.OpenAI.Temperature != nil {
		values["CHAT_TEMPERATURE"] = strconv.FormatFloat(*fc.OpenAI.Temperature, 'f', -1, 64)
	}
	if fc.OpenAI.BatchSize != 0 {
		values["EMBEDDING_BATCH_SIZE"] = strconv.Itoa(fc.OpenAI.BatchSize)
	}
	if fc.Chunker.Size != 0 {
		values["CHUNK_SIZE"] = strconv.Itoa(fc.Chunker.Size)
	}
	if fc.Chunker.Overlap != nil {
		values["CHUNK_OVERLAP"] = strconv.Itoa(*fc.Chunker.Overlap)
	}
	if fc.Retrieval.K != 0 {
		values["RETRIEVAL_K"] = strconv.Itoa(fc.Retrieval.K)
	}
	if fc.Retrieval.Reformulate != nil {
		values["REFORMULATE"] = strconv.FormatBool(*fc.Retrieval.Reformulate)
	}

	for key, value := range values {
		if value == "" {
			delete(values, key)
		}
	}
	return values, nil
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}

func parseTemperature(value string) (float32, error) {
	t, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return 0, fmt.Errorf("CHAT_TEMPERATURE must be a number: %w", err)
	}
	if t < 0 || t > 2 {
		return 0, fmt.Errorf("CHAT_TEMPERATURE must be between 0 and 2")
	}
	return float32(t), nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
