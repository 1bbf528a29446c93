package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Embedding EmbeddingConfig
	Matching  MatchingConfig
	Database  DatabaseConfig
	Roster    RosterConfig
	Storage   StorageConfig
	Session   SessionConfig
	Models    ModelsConfig
}

type EmbeddingConfig struct {
	URL   string // embedding service base URL, defaults to http://localhost:8000
	Model string // embedding model name, defaults to face_recognition
	Dim   int    // expected embedding dimensionality, defaults to the model's
}

type MatchingConfig struct {
	Threshold float64 // maximum accepted distance; 0 means "use the model default"
	IndexMin  int     // minimum gallery size before an HNSW index is built
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// RosterConfig points at an existing school information system database
// (MariaDB). Used only by `classmark encode` to pull student names.
type RosterConfig struct {
	DSN string
}

type StorageConfig struct {
	Dir string // directory for the JSON file backend, used when DATABASE_URL is empty
}

type SessionConfig struct {
	TTL time.Duration // default lifetime of an attendance session
}

type ModelsConfig struct {
	Models map[string]ModelDefaults `yaml:"models"`
}

type ModelDefaults struct {
	Dim       int     `yaml:"dim"`
	Threshold float64 `yaml:"threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(defaultsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "face_recognition"
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: model,
			Dim:   envInt("EMBEDDING_DIM", models.Models[model].Dim),
		},
		Matching: MatchingConfig{
			Threshold: envFloat("MATCH_THRESHOLD", 0),
			IndexMin:  envInt("GALLERY_INDEX_MIN", 512),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Roster: RosterConfig{
			DSN: os.Getenv("ROSTER_DSN"),
		},
		Storage: StorageConfig{
			Dir: os.Getenv("STORAGE_DIR"),
		},
		Session: SessionConfig{
			TTL: time.Duration(envInt("SESSION_TTL_MINUTES", 10)) * time.Minute,
		},
		Models: models,
	}
}

// MatchThreshold resolves the acceptance threshold for the configured model.
// An explicit MATCH_THRESHOLD wins over the embedded model default.
func (c *Config) MatchThreshold() float64 {
	if c.Matching.Threshold > 0 {
		return c.Matching.Threshold
	}
	if m, ok := c.Models.Models[c.Embedding.Model]; ok && m.Threshold > 0 {
		return m.Threshold
	}
	return 0.5
}
