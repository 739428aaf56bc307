package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/ticker"
)

// Vector store drivers.
const (
	DriverQdrant = "qdrant"
	DriverValkey = "valkey"
	DriverRedis  = "redis"
)

// Dense vector index algorithms for the valkey and redis drivers.
const (
	DenseIndexHNSW = "hnsw"
	DenseIndexFlat = "flat"
)

// Config holds the finsight API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
	Auth        AuthConfig        `yaml:"auth"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Completion  CompletionConfig  `yaml:"completion"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Resolver    ResolverConfig    `yaml:"resolver"`
	Agent       AgentConfig       `yaml:"agent"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// VectorStoreConfig selects and tunes the chunk index backend.
type VectorStoreConfig struct {
	Driver          string       `yaml:"driver"` // qdrant (default), valkey, redis
	Qdrant          QdrantConfig `yaml:"qdrant"`
	FilterKeys      []string     `yaml:"filter_keys"`
	DenseIndex      string       `yaml:"dense_index"` // valkey/redis only: hnsw (default) or flat
	HNSWM           int          `yaml:"hnsw_m"`
	HNSWEFConstruct int          `yaml:"hnsw_ef_construction"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	APIKey           string `yaml:"api_key"`
	UseTLS           bool   `yaml:"use_tls"`
	Collection       string `yaml:"collection"`
	CreateCollection bool   `yaml:"create_collection"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// DatabaseConfig holds Valkey/Redis connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding sidecar settings.
type EmbeddingConfig struct {
	BaseURL             string      `yaml:"base_url"`
	APIKey              string      `yaml:"api_key"`
	TimeoutSec          int         `yaml:"timeout_sec"`
	DenseDimensions     int         `yaml:"dense_dimensions"`
	MultiDimensions     int         `yaml:"multi_dimensions"`
	QueryInstruction    string      `yaml:"query_instruction"`    // prepended to query text
	DocumentInstruction string      `yaml:"document_instruction"` // prepended to passage text
	Cache               CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TTLHours  int    `yaml:"ttl_hours"`
	Namespace string `yaml:"namespace"` // changing it invalidates cached vectors
}

// CompletionConfig holds chat completion provider settings.
type CompletionConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	ResponseFormat    string  `yaml:"response_format"` // json_schema (default) or json_object
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// RetrievalConfig holds the two-stage retrieval budgets.
type RetrievalConfig struct {
	PrefetchLimit int `yaml:"prefetch_limit"`
	FusionLimit   int `yaml:"fusion_limit"`
	RRFK          int `yaml:"rrf_k"`
	SparsePool    int `yaml:"sparse_pool"`
	SparseScanMax int `yaml:"sparse_scan_max"`
}

// ResolverConfig holds the static company-to-ticker mapping, checked in order.
type ResolverConfig struct {
	Companies []CompanyConfig `yaml:"companies"`
}

// CompanyConfig maps a company name fragment to its ticker.
type CompanyConfig struct {
	Name   string `yaml:"name"`
	Ticker string `yaml:"ticker"`
}

// AgentConfig holds orchestrator settings.
type AgentConfig struct {
	NewsSource string `yaml:"news_source"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = DriverQdrant
	}
	if len(c.VectorStore.FilterKeys) == 0 {
		c.VectorStore.FilterKeys = []string{"ticker", "form_type", "source"}
	}
	if c.VectorStore.DenseIndex == "" {
		c.VectorStore.DenseIndex = DenseIndexHNSW
	}
	if c.VectorStore.HNSWM <= 0 {
		c.VectorStore.HNSWM = 32
	}
	if c.VectorStore.HNSWEFConstruct <= 0 {
		c.VectorStore.HNSWEFConstruct = 400
	}
	if c.VectorStore.Qdrant.Port <= 0 {
		c.VectorStore.Qdrant.Port = 6334
	}
	if c.VectorStore.Qdrant.Collection == "" {
		c.VectorStore.Qdrant.Collection = "financial"
	}
	if c.VectorStore.Qdrant.ReadinessTimeout <= 0 {
		c.VectorStore.Qdrant.ReadinessTimeout = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "finsight:"
	}

	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.DenseDimensions <= 0 {
		c.Embedding.DenseDimensions = 384
	}
	if c.Embedding.MultiDimensions <= 0 {
		c.Embedding.MultiDimensions = 128
	}
	if c.Embedding.Cache.TTLHours <= 0 {
		c.Embedding.Cache.TTLHours = 24 * 7
	}
	if c.Embedding.Cache.Namespace == "" {
		c.Embedding.Cache.Namespace = "minilm-bm25-colbertv2"
	}

	if c.Completion.BaseURL == "" {
		c.Completion.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "llama-3.3-70b-versatile"
	}
	if c.Completion.ResponseFormat == "" {
		c.Completion.ResponseFormat = "json_schema"
	}
	if c.Completion.Burst <= 0 {
		c.Completion.Burst = 1
	}

	if c.Retrieval.PrefetchLimit <= 0 {
		c.Retrieval.PrefetchLimit = request.DefaultPrefetchLimit
	}
	if c.Retrieval.FusionLimit <= 0 {
		c.Retrieval.FusionLimit = request.DefaultFusionLimit
	}
	if c.Retrieval.RRFK <= 0 {
		c.Retrieval.RRFK = request.DefaultRRFK
	}
	if c.Retrieval.SparsePool <= 0 {
		c.Retrieval.SparsePool = 200
	}
	if c.Retrieval.SparseScanMax <= 0 {
		c.Retrieval.SparseScanMax = 10000
	}

	if len(c.Resolver.Companies) == 0 {
		for _, a := range ticker.DefaultAliases() {
			c.Resolver.Companies = append(c.Resolver.Companies, CompanyConfig{Name: a.Name, Ticker: a.Ticker.String()})
		}
	}

	if c.Agent.NewsSource == "" {
		c.Agent.NewsSource = "news-provider"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.ValidateServices()
}

// ValidateServices checks everything except the HTTP listener settings.
// Embedded clients that never serve HTTP validate with this.
func (c *Config) ValidateServices() error {
	switch c.VectorStore.Driver {
	case DriverQdrant:
		if c.VectorStore.Qdrant.Host == "" {
			return fmt.Errorf("vector_store.qdrant.host is required for the qdrant driver")
		}
	case DriverValkey, DriverRedis:
	default:
		return fmt.Errorf("vector_store.driver must be qdrant, valkey or redis, got %q", c.VectorStore.Driver)
	}
	switch c.VectorStore.DenseIndex {
	case DenseIndexHNSW, DenseIndexFlat:
	default:
		return fmt.Errorf("vector_store.dense_index must be hnsw or flat, got %q", c.VectorStore.DenseIndex)
	}

	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
	default:
		return fmt.Errorf("database.driver must be valkey or redis, got %q", c.Database.Driver)
	}
	if c.NeedsDatabase() && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}

	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}

	switch c.Completion.ResponseFormat {
	case "json_schema", "json_object":
	default:
		return fmt.Errorf(
			"completion.response_format must be \"json_schema\" or \"json_object\", got %q",
			c.Completion.ResponseFormat,
		)
	}
	if c.Completion.RequestsPerSecond < 0 {
		return fmt.Errorf("completion.requests_per_second must not be negative")
	}

	if err := c.Plan().Validate(); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}

	for i, co := range c.Resolver.Companies {
		if strings.TrimSpace(co.Name) == "" {
			return fmt.Errorf("resolver.companies[%d].name is required", i)
		}
		if _, err := ticker.Parse(co.Ticker); err != nil {
			return fmt.Errorf("resolver.companies[%d]: %w", i, err)
		}
	}
	return nil
}

// NeedsDatabase reports whether a Valkey/Redis connection is required.
func (c *Config) NeedsDatabase() bool {
	return c.VectorStore.Driver != DriverQdrant || c.Embedding.Cache.Enabled
}

// Plan returns the retrieval plan.
func (c *Config) Plan() request.Plan {
	return request.Plan{
		PrefetchLimit: c.Retrieval.PrefetchLimit,
		FusionLimit:   c.Retrieval.FusionLimit,
		RRFK:          c.Retrieval.RRFK,
	}
}

// Aliases returns the resolver mapping in configured order. Call after Validate.
func (c *Config) Aliases() []ticker.CompanyAlias {
	out := make([]ticker.CompanyAlias, 0, len(c.Resolver.Companies))
	for _, co := range c.Resolver.Companies {
		sym, _ := ticker.Parse(co.Ticker)
		out = append(out, ticker.CompanyAlias{Name: strings.ToLower(co.Name), Ticker: sym})
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
