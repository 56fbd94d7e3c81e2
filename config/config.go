// Package config loads process configuration from an optional YAML file and
// LEXGRAPH_* environment variables. Environment values win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smallnest/lexgraph/log"
	"github.com/smallnest/lexgraph/orchestrator"
)

// Config contains all runtime settings.
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Log          LogConfig           `yaml:"log"`
	Orchestrator orchestrator.Config `yaml:"orchestrator"`
	LLM          LLMConfig           `yaml:"llm"`
	FalkorDB     FalkorDBConfig      `yaml:"falkordb"`
	Vector       VectorConfig        `yaml:"vector"`
	History      HistoryConfig       `yaml:"history"`
	Progress     ProgressConfig      `yaml:"progress"`
}

type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderLangChain = "langchain"
	ProviderOllama    = "ollama"
)

type LLMConfig struct {
	// Provider is openai (strict structured output), langchain (langchaingo
	// OpenAI client, JSON mode) or ollama.
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float32 `yaml:"temperature"`
	// EmbeddingModel is used for vector search queries.
	EmbeddingModel string `yaml:"embedding_model"`
}

type FalkorDBConfig struct {
	// URL has the form falkordb://[:password@]host:port/graph.
	URL                string `yaml:"url"`
	TopK               int    `yaml:"top_k"`
	SkipClassification bool   `yaml:"skip_classification"`
}

// Vector drivers.
const (
	VectorQdrant = "qdrant"
	VectorMemory = "memory"
)

type VectorConfig struct {
	Driver     string  `yaml:"driver"`
	URL        string  `yaml:"url"`
	APIKey     string  `yaml:"api_key"`
	Collection string  `yaml:"collection"`
	Threshold  float32 `yaml:"threshold"`
	// Dimensions sizes the embeddings of the memory driver.
	Dimensions int `yaml:"dimensions"`
}

// History drivers.
const (
	HistoryMemory   = "memory"
	HistoryRedis    = "redis"
	HistoryPostgres = "postgres"
	HistorySQLite   = "sqlite"
)

type HistoryConfig struct {
	Driver string `yaml:"driver"`
	// DSN is a redis address, a postgres connection string or a sqlite path.
	DSN         string        `yaml:"dsn"`
	Password    string        `yaml:"password"`
	Table       string        `yaml:"table"`
	Prefix      string        `yaml:"prefix"`
	TTL         time.Duration `yaml:"ttl"`
	MaxMessages int           `yaml:"max_messages"`
}

type ProgressConfig struct {
	WebSocket bool `yaml:"websocket"`
	Log       bool `yaml:"log"`
	// RedisAddr enables pub/sub publishing when set.
	RedisAddr string `yaml:"redis_addr"`
	Prefix    string `yaml:"prefix"`
	QueueSize int    `yaml:"queue_size"`
}

// Default returns the settings used when neither the file nor the
// environment provides a value.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:             ":8080",
			ShutdownTimeout:  10 * time.Second,
			MetricsNamespace: "lexgraph",
			MaxBodyBytes:     64 << 10,
		},
		Log:          LogConfig{Level: "info"},
		Orchestrator: orchestrator.DefaultConfig(),
		LLM: LLMConfig{
			Provider:       ProviderOpenAI,
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		FalkorDB: FalkorDBConfig{
			URL:  "falkordb://localhost:6379/legal",
			TopK: 10,
		},
		Vector: VectorConfig{
			Driver:     VectorQdrant,
			URL:        "http://localhost:6333",
			Collection: "legal_documents",
			Dimensions: 256,
		},
		History: HistoryConfig{
			Driver: HistoryMemory,
		},
		Progress: ProgressConfig{
			WebSocket: true,
			QueueSize: 256,
		},
	}
}

// Load reads path when it is not empty, applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read is Load without validation.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Orchestrator.MaxDepth < 0 {
		return fmt.Errorf("orchestrator.max_depth must not be negative: %d", c.Orchestrator.MaxDepth)
	}
	switch c.Orchestrator.Topology {
	case "", orchestrator.TopologyFull, orchestrator.TopologySimple:
	default:
		return fmt.Errorf("orchestrator.topology: unknown value %q", c.Orchestrator.Topology)
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderLangChain:
		if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.api_key is required for provider %s", c.LLM.Provider)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("llm.provider: unknown value %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}

	if c.FalkorDB.URL == "" {
		return errors.New("falkordb.url is required")
	}

	needVector := c.Orchestrator.Topology != orchestrator.TopologySimple
	switch c.Vector.Driver {
	case VectorQdrant:
		if needVector && (c.Vector.URL == "" || c.Vector.Collection == "") {
			return errors.New("vector.url and vector.collection are required for qdrant")
		}
	case VectorMemory:
		if c.Vector.Dimensions <= 0 {
			return errors.New("vector.dimensions must be positive")
		}
	default:
		return fmt.Errorf("vector.driver: unknown value %q", c.Vector.Driver)
	}

	switch c.History.Driver {
	case HistoryMemory:
	case HistoryRedis, HistoryPostgres, HistorySQLite:
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for driver %s", c.History.Driver)
		}
	default:
		return fmt.Errorf("history.driver: unknown value %q", c.History.Driver)
	}
	return nil
}

func applyEnv(c *Config) error {
	var err error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if err == nil {
			*dst, err = intFromEnv(key, *dst)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if err == nil {
			*dst, err = durationFromEnv(key, *dst)
		}
	}
	flag := func(key string, dst *bool) {
		if err == nil {
			*dst, err = boolFromEnv(key, *dst)
		}
	}

	str("LEXGRAPH_ADDR", &c.Server.Addr)
	dur("LEXGRAPH_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	str("LEXGRAPH_METRICS_NAMESPACE", &c.Server.MetricsNamespace)
	str("LEXGRAPH_LOG_LEVEL", &c.Log.Level)

	num("LEXGRAPH_MAX_DEPTH", &c.Orchestrator.MaxDepth)
	num("LEXGRAPH_MAX_SUBQUERIES", &c.Orchestrator.MaxSubqueries)
	num("LEXGRAPH_HISTORY_WINDOW", &c.Orchestrator.HistoryWindow)
	num("LEXGRAPH_VECTOR_K", &c.Orchestrator.VectorK)
	topology := string(c.Orchestrator.Topology)
	str("LEXGRAPH_TOPOLOGY", &topology)
	c.Orchestrator.Topology = orchestrator.Topology(topology)
	dur("LEXGRAPH_CALL_TIMEOUT", &c.Orchestrator.CallTimeout)
	dur("LEXGRAPH_INVOCATION_TIMEOUT", &c.Orchestrator.InvocationTimeout)
	flag("LEXGRAPH_SERIALIZE_SESSIONS", &c.Orchestrator.SerializeSessions)

	str("LEXGRAPH_LLM_PROVIDER", &c.LLM.Provider)
	str("LEXGRAPH_LLM_MODEL", &c.LLM.Model)
	str("LEXGRAPH_LLM_BASE_URL", &c.LLM.BaseURL)
	str("OPENAI_API_KEY", &c.LLM.APIKey)
	str("LEXGRAPH_LLM_API_KEY", &c.LLM.APIKey)
	str("LEXGRAPH_EMBEDDING_MODEL", &c.LLM.EmbeddingModel)

	str("LEXGRAPH_FALKORDB_URL", &c.FalkorDB.URL)
	num("LEXGRAPH_FALKORDB_TOP_K", &c.FalkorDB.TopK)

	str("LEXGRAPH_VECTOR_DRIVER", &c.Vector.Driver)
	str("LEXGRAPH_QDRANT_URL", &c.Vector.URL)
	str("LEXGRAPH_QDRANT_API_KEY", &c.Vector.APIKey)
	str("LEXGRAPH_QDRANT_COLLECTION", &c.Vector.Collection)

	str("LEXGRAPH_HISTORY_DRIVER", &c.History.Driver)
	str("LEXGRAPH_HISTORY_DSN", &c.History.DSN)
	str("LEXGRAPH_HISTORY_PASSWORD", &c.History.Password)
	dur("LEXGRAPH_HISTORY_TTL", &c.History.TTL)

	flag("LEXGRAPH_PROGRESS_WEBSOCKET", &c.Progress.WebSocket)
	flag("LEXGRAPH_PROGRESS_LOG", &c.Progress.Log)
	str("LEXGRAPH_PROGRESS_REDIS_ADDR", &c.Progress.RedisAddr)
	return err
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
