// Package config holds the configuration structures for the RCAE engine.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rcae/rcae/pkg/version"
)

// Config holds the configuration for the RCAE engine and its cmd/rcaectl front end.
type Config struct {
	// MCPStreamableHTTP enables the thin MCP dispatcher over Streamable HTTP.
	// Stdio is the default transport, matching the teacher's MCP front end.
	MCPStreamableHTTP         bool   `mapstructure:"mcp-http"`
	MCPStreamableHTTPAddr     string `mapstructure:"mcp-http-addr"`
	MCPStreamableHTTPEndpoint string `mapstructure:"mcp-http-endpoint"`

	HTTP     bool   `mapstructure:"http"`
	HTTPAddr string `mapstructure:"http-addr"`

	ProjectRoot string `mapstructure:"project-root"`

	// Storage — §4.1/§6 storage document.
	StorageBackend string `mapstructure:"storage-backend"` // "sqlite" | "memory"
	DbPath         string `mapstructure:"db-path"`
	StorageMode    string `mapstructure:"storage-mode"` // "manual" | "suggested" | "automatic"

	// Vector — §4.4 backend selection (fail-over by configuration, not runtime switching).
	VectorProvider       string `mapstructure:"vector-provider"` // "embedded" | "remote"
	VectorURL            string `mapstructure:"vector-url"`
	VectorCollectionName string `mapstructure:"vector-collection"`

	// Embedding / extraction capability — §4.5 step 2, §9 capability abstraction.
	EmbeddingProvider string `mapstructure:"embedding-provider"` // "local" | "remote"
	EmbeddingEndpoint string `mapstructure:"embedding-endpoint"`
	EmbeddingModel    string `mapstructure:"embedding-model"`
	EmbeddingDim      int    `mapstructure:"embedding-dim"`
	DisableLLMExtract bool   `mapstructure:"disable-llm-extract"`

	// Chunking — §4.3.
	ChunkTokens      int `mapstructure:"chunk-tokens"`
	ChunkOverlap     int `mapstructure:"chunk-overlap"`
	EmbeddingBatch   int `mapstructure:"embedding-batch-size"`
	BatchConcurrency int `mapstructure:"batch-concurrency"`

	// Retriever scoring weights — §4.6/§4.7 "scoring: {…}".
	ScoringVectorWeight  float64 `mapstructure:"scoring-vector-weight"`
	ScoringLexicalWeight float64 `mapstructure:"scoring-lexical-weight"`
	RRFBiasK             int     `mapstructure:"rrf-bias-k"`
	MinEdgeWeight        int     `mapstructure:"min-edge-weight"`
	MaxSearchDepth       int     `mapstructure:"max-search-depth"`

	// GraphRAG clustering — §4.5 step 6.
	MaxCommunityLevel int `mapstructure:"max-community-level"`

	DisableCodeWatch bool `mapstructure:"disable-code-watch"`

	LogFile          string `mapstructure:"log"`
	DisableOutputLog bool   `mapstructure:"disable-output-log"`
}

// Load loads the configuration from CLI flags, a config file, and environment variables.
func Load() (*Config, error) {
	pflag.String("config", "", "Path to YAML or JSON configuration file")

	pflag.Bool("mcp-http", false, "Enable MCP Streamable HTTP transport")
	pflag.String("mcp-http-addr", "3000", "Port or address to bind MCP Streamable HTTP transport; can also be set via RCAE_MCP_HTTP_ADDR")
	pflag.String("mcp-http-endpoint", "/mcp", "HTTP path for the MCP Streamable HTTP endpoint")

	pflag.Bool("http", false, "Enable HTTP JSON API transport")
	pflag.String("http-addr", ":8080", "Address to bind HTTP transport (host:port)")

	pflag.String("project-root", ".", "Root of the project to index and retrieve over")

	pflag.String("storage-backend", "sqlite", "Persistent store backend: sqlite or memory")
	pflag.String("db-path", "./.rcae/rcae.db", "Path to the embedded store")
	pflag.String("storage-mode", "suggested", "Suggestion apply mode: manual, suggested, or automatic")

	pflag.String("vector-provider", "embedded", "Vector backend: embedded or remote")
	pflag.String("vector-url", "", "URL for the remote vector service")
	pflag.String("vector-collection", "rcae", "Collection/namespace name for the vector backend")

	pflag.String("embedding-provider", "local", "Embedding capability: local or remote")
	pflag.String("embedding-endpoint", "", "Endpoint for the embedding capability")
	pflag.String("embedding-model", "", "Model identifier for the embedding capability")
	pflag.Int("embedding-dim", 768, "Fixed embedding dimension enforced by the vector store")
	pflag.Bool("disable-llm-extract", false, "Disable LLM-backed entity/relationship extraction; always use the heuristic fallback")

	pflag.Int("chunk-tokens", 512, "Maximum tokens per chunk")
	pflag.Int("chunk-overlap", 64, "Token overlap between adjacent chunks")
	pflag.Int("embedding-batch-size", 32, "Embedding batch size for queued embed operations")
	pflag.Int("batch-concurrency", 4, "Bounded concurrency for batch embedding/extraction drivers")

	pflag.Float64("scoring-vector-weight", 0.72, "Weight of vector similarity in local-search seed scoring")
	pflag.Float64("scoring-lexical-weight", 0.28, "Weight of lexical similarity in local-search seed scoring")
	pflag.Int("rrf-bias-k", 60, "Reciprocal rank fusion bias constant")
	pflag.Int("min-edge-weight", 3, "Minimum relationship strength traversed by local search")
	pflag.Int("max-search-depth", 2, "Maximum BFS depth for local search")

	pflag.Int("max-community-level", 4, "Maximum GraphRAG community hierarchy level")

	pflag.Bool("disable-code-watch", false, "Disable the background file watcher")

	pflag.String("log", "", "Path to the log file (logs are written to stderr/stdout and, if set, to this file)")
	pflag.Bool("disable-output-log", false, "Disable console logging; only write to the log file if configured")

	flag.Bool("version", false, "Print version and exit")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	if ver := pflag.Lookup("version"); ver != nil && ver.Value.String() == "true" {
		fmt.Println(version.Describe())
		os.Exit(0)
	}

	v := viper.New()

	configPath := pflag.Lookup("config").Value.String()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if homeDir, err := os.UserHomeDir(); err == nil {
		var standardConfigPath string
		if runtime.GOOS == "darwin" {
			standardConfigPath = filepath.Join(homeDir, "Library", "Application Support", "rcae", "config.yaml")
		} else {
			standardConfigPath = filepath.Join(homeDir, ".config", "rcae", "config.yaml")
		}
		if _, err := os.Stat(standardConfigPath); err == nil {
			v.SetConfigFile(standardConfigPath)
			if err := v.ReadInConfig(); err == nil {
				slog.Info("using configuration file from standard location", "path", standardConfigPath)
			}
		} else {
			slog.Info("no configuration file found, using environment variables and defaults")
		}
	}

	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind pflags: %w", err)
	}

	v.SetEnvPrefix("RCAE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	migrateLegacy(&cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// migrateLegacy fills defaults for configs that only specify storage.dbPath,
// per spec §6: "Legacy configs containing only storage.dbPath are migrated
// forward by filling defaults."
func migrateLegacy(cfg *Config, v *viper.Viper) {
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "sqlite"
	}
	if cfg.StorageMode == "" {
		cfg.StorageMode = "suggested"
	}
	if cfg.VectorProvider == "" {
		cfg.VectorProvider = "embedded"
	}
	if cfg.VectorCollectionName == "" {
		cfg.VectorCollectionName = "rcae"
	}
	if cfg.EmbeddingProvider == "" {
		cfg.EmbeddingProvider = "local"
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 768
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("invalid storage backend %q: must be sqlite or memory", c.StorageBackend)
	}

	switch c.StorageMode {
	case "manual", "suggested", "automatic":
	default:
		return fmt.Errorf("invalid storage mode %q: must be manual, suggested, or automatic", c.StorageMode)
	}

	switch c.VectorProvider {
	case "embedded", "remote":
	default:
		return fmt.Errorf("invalid vector provider %q: must be embedded or remote", c.VectorProvider)
	}
	if c.VectorProvider == "remote" && c.VectorURL == "" {
		return errors.New("vector-url is required when vector-provider is remote")
	}

	if c.StorageBackend == "sqlite" && c.DbPath == "" {
		return errors.New("db-path is required for the sqlite storage backend")
	}

	if c.EmbeddingDim <= 0 {
		return errors.New("embedding-dim must be positive")
	}

	return nil
}

// GetChunkTokens returns the configured chunk token budget, with a safe default.
func (c *Config) GetChunkTokens() int {
	if c.ChunkTokens <= 0 {
		return 512
	}
	return c.ChunkTokens
}

// GetChunkOverlap returns the configured chunk token overlap, with a safe default.
func (c *Config) GetChunkOverlap() int {
	if c.ChunkOverlap < 0 {
		return 64
	}
	return c.ChunkOverlap
}

// GetEmbeddingBatchSize returns the embedding queue batch size, with a safe default.
func (c *Config) GetEmbeddingBatchSize() int {
	if c.EmbeddingBatch <= 0 {
		return 32
	}
	return c.EmbeddingBatch
}

// GetBatchConcurrency returns the bounded-concurrency batch driver width.
func (c *Config) GetBatchConcurrency() int {
	if c.BatchConcurrency <= 0 {
		return 4
	}
	return c.BatchConcurrency
}

// Getenv reads an environment variable or returns a default value.
func Getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SetupLogging configures slog output.
//
// Important: when running MCP over stdio, stdout must be reserved for
// protocol messages, so console logs default to stderr in stdio mode.
func (c *Config) SetupLogging() error {
	var writers []io.Writer

	if !c.DisableOutputLog {
		stdioMode := !c.MCPStreamableHTTP && !c.HTTP
		if stdioMode {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	if c.LogFile != "" {
		logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", c.LogFile, err)
		}
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: false,
	})

	slog.SetDefault(slog.New(handler))
	return nil
}
