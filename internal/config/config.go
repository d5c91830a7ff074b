package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bull/vector-notes/internal/logging"
	"github.com/bull/vector-notes/internal/storage"
)

// DefaultPath is used when neither --config nor NOTES_CONFIG is given.
const DefaultPath = "configurations/config.yaml"

var ErrInvalidConfiguration = errors.New("invalid configuration")

// ServerConfig is the HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string       `yaml:"type"` // "qdrant" or "memory"
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// NotesConfig describes the chunk collection.
type NotesConfig struct {
	Collection           string `yaml:"collection"`
	VectorSize           int    `yaml:"vector_size"`
	Distance             string `yaml:"distance"`
	TextSplitMaximumSize int    `yaml:"text_split_maximum_size"`
}

// MetadataConfig names the document record table.
type MetadataConfig struct {
	TableName string `yaml:"table_name"`
}

// EmbeddingConfig selects and configures the text embedder implementation.
type EmbeddingConfig struct {
	Type      string `yaml:"type"` // "openai" or "hash"
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// RegistryConfig locates the collection name registry file.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Notes       NotesConfig       `yaml:"notes"`
	Metadata    MetadataConfig    `yaml:"metadata"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Registry    RegistryConfig    `yaml:"registry"`
	OwnerID     string            `yaml:"owner_id"`
}

// ResolvePath picks the config file: explicit flag, then NOTES_CONFIG, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("NOTES_CONFIG"); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads a config from path. A missing file yields defaults. Environment
// overrides are applied after the file, then the result is validated.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfiguration, path, err)
		}
	}

	applyConfigDefaults(cfg)
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Log:    LogConfig{Level: "info", Format: "json"},
		VectorStore: VectorStoreConfig{
			Type:   "qdrant",
			Qdrant: QdrantConfig{Host: "localhost", Port: 6334},
		},
		Notes: NotesConfig{
			Collection:           "notes",
			VectorSize:           1536,
			Distance:             string(storage.DistanceCosine),
			TextSplitMaximumSize: 1000,
		},
		Metadata: MetadataConfig{TableName: "notes_metadata"},
		Embedding: EmbeddingConfig{
			Type:      "openai",
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "text-embedding-3-small",
		},
		Registry: RegistryConfig{Path: "data/collections.json"},
		OwnerID:  "single_user",
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "qdrant"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.Notes.Distance == "" {
		cfg.Notes.Distance = string(storage.DistanceCosine)
	}
	if cfg.Embedding.Type == "openai" {
		if cfg.Embedding.APIKeyEnv == "" {
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-small"
		}
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = "single_user"
	}
}

func applyEnvOverrides(cfg *AppConfig) error {
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		cfg.VectorStore.Qdrant.Host = host
	}
	if raw := os.Getenv("QDRANT_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: QDRANT_PORT %q is not a number", ErrInvalidConfiguration, raw)
		}
		cfg.VectorStore.Qdrant.Port = port
	}
	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: PORT %q is not a number", ErrInvalidConfiguration, raw)
		}
		cfg.Server.Port = port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	return nil
}

// Validate checks the fields every component relies on.
func (c *AppConfig) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, "log.level: "+err.Error())
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		problems = append(problems, fmt.Sprintf("log.format %q must be json or text", c.Log.Format))
	}
	switch c.VectorStore.Type {
	case "qdrant":
		if c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535 {
			problems = append(problems, fmt.Sprintf("vector_store.qdrant.port %d out of range", c.VectorStore.Qdrant.Port))
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("vector_store.type %q must be qdrant or memory", c.VectorStore.Type))
	}
	if c.Notes.Collection == "" {
		problems = append(problems, "notes.collection is required")
	}
	if c.Notes.VectorSize <= 0 {
		problems = append(problems, "notes.vector_size must be positive")
	}
	if _, err := storage.ParseDistance(c.Notes.Distance); err != nil {
		problems = append(problems, "notes.distance: "+err.Error())
	}
	if c.Notes.TextSplitMaximumSize <= 0 {
		problems = append(problems, "notes.text_split_maximum_size must be positive")
	}
	if c.Metadata.TableName == "" {
		problems = append(problems, "metadata.table_name is required")
	} else if c.Metadata.TableName == c.Notes.Collection {
		problems = append(problems, "metadata.table_name must differ from notes.collection")
	}
	switch c.Embedding.Type {
	case "openai", "hash":
	default:
		problems = append(problems, fmt.Sprintf("embedding.type %q must be openai or hash", c.Embedding.Type))
	}
	if c.Registry.Path == "" {
		problems = append(problems, "registry.path is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// LoggingConfig converts the log section for logging.New.
func (c *AppConfig) LoggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.Config{Level: level, Format: c.Log.Format}
}

// APIKey reads the embedding API key from the configured environment variable.
func (c *AppConfig) APIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}
