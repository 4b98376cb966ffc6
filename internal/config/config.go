package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Provider and model defaults.
const (
	DefaultLLMProvider = "openai"
	DefaultLLMModel    = "gpt-4o-mini"
	DefaultLLMBaseURL  = "https://api.openai.com/v1"

	DefaultEmbeddingModel = "text-embedding-3-small"

	DefaultMaxTokens            = 2048
	DefaultTemperature          = 0.4
	DefaultInvokeTimeoutSeconds = 90
)

// Retrieval defaults. TopK is adaptive: short plain queries use the simple
// bound, longer or code-bearing ones the detailed bound.
const (
	DefaultShortQueryChars     = 40
	DefaultTopKSimple          = 2
	DefaultTopKDetailed        = 5
	DefaultMinSimilarity       = 0.30
	DefaultSearchTimeoutMillis = 3000
	DefaultEmbeddingCacheSize  = 512
)

// Planning defaults. The caps bound how many suggested tools survive
// approval; the specialist count bounds module fan-out.
const (
	DefaultSimpleToolCap     = 2
	DefaultComplexToolCap    = 5
	DefaultSpecialistModules = 4
)

// Refinement defaults. Complexity at or below the skip bound bypasses
// evaluation entirely.
const (
	DefaultQualityThreshold     = 4.0
	DefaultMaxRefineIterations  = 3
	DefaultSkipComplexity       = 3
	DefaultHallucinationPenalty = 1.5
	DefaultInconsistencyPenalty = 1.0
)

// Supervisor defaults.
const (
	DefaultRetentionWindow        = 20
	DefaultConversationCacheSize  = 512
	DefaultConversationTTLSeconds = 3600
)

// Server and observability defaults.
const (
	DefaultServerHost       = "127.0.0.1"
	DefaultServerPort       = 8650
	DefaultMetricsPort      = 9464
	DefaultTraceExporter    = "none"
	DefaultTraceSampleRatio = 1.0
)

// Config captures user-configurable settings shared across binaries.
type Config struct {
	// Model invocation
	LLMProvider          string  `json:"llm_provider" yaml:"llm_provider"`
	LLMModel             string  `json:"llm_model" yaml:"llm_model"`
	APIKey               string  `json:"api_key" yaml:"api_key"`
	BaseURL              string  `json:"base_url" yaml:"base_url"`
	MaxTokens            int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature          float64 `json:"temperature" yaml:"temperature"`
	InvokeTimeoutSeconds int     `json:"invoke_timeout_seconds" yaml:"invoke_timeout_seconds"`

	// Embeddings and index
	EmbeddingModel     string `json:"embedding_model" yaml:"embedding_model"`
	EmbeddingBaseURL   string `json:"embedding_base_url" yaml:"embedding_base_url"`
	EmbeddingCacheSize int    `json:"embedding_cache_size" yaml:"embedding_cache_size"`
	IndexPath          string `json:"index_path" yaml:"index_path"`

	// Retrieval
	ShortQueryChars     int     `json:"short_query_chars" yaml:"short_query_chars"`
	TopKSimple          int     `json:"top_k_simple" yaml:"top_k_simple"`
	TopKDetailed        int     `json:"top_k_detailed" yaml:"top_k_detailed"`
	MinSimilarity       float32 `json:"min_similarity" yaml:"min_similarity"`
	SearchTimeoutMillis int     `json:"search_timeout_millis" yaml:"search_timeout_millis"`

	// Planning
	SimpleToolCap     int `json:"simple_tool_cap" yaml:"simple_tool_cap"`
	ComplexToolCap    int `json:"complex_tool_cap" yaml:"complex_tool_cap"`
	SpecialistModules int `json:"specialist_modules" yaml:"specialist_modules"`

	// Refinement
	QualityThreshold     float64 `json:"quality_threshold" yaml:"quality_threshold"`
	MaxRefineIterations  int     `json:"max_refine_iterations" yaml:"max_refine_iterations"`
	SkipComplexity       int     `json:"skip_complexity" yaml:"skip_complexity"`
	HallucinationPenalty float64 `json:"hallucination_penalty" yaml:"hallucination_penalty"`
	InconsistencyPenalty float64 `json:"inconsistency_penalty" yaml:"inconsistency_penalty"`

	// Supervisor
	RetentionWindow        int `json:"retention_window" yaml:"retention_window"`
	ConversationCacheSize  int `json:"conversation_cache_size" yaml:"conversation_cache_size"`
	ConversationTTLSeconds int `json:"conversation_ttl_seconds" yaml:"conversation_ttl_seconds"`

	// Server
	ServerHost  string `json:"server_host" yaml:"server_host"`
	ServerPort  int    `json:"server_port" yaml:"server_port"`
	MetricsPort int    `json:"metrics_port" yaml:"metrics_port"`

	// Observability
	TraceExporter    string  `json:"trace_exporter" yaml:"trace_exporter"` // none|otlp|zipkin|jaeger
	TraceEndpoint    string  `json:"trace_endpoint" yaml:"trace_endpoint"`
	TraceSampleRatio float64 `json:"trace_sample_ratio" yaml:"trace_sample_ratio"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	Verbose  bool   `json:"verbose" yaml:"verbose"`
}

// Default returns a fully populated configuration that works with zero files.
func Default() *Config {
	return &Config{
		LLMProvider:          DefaultLLMProvider,
		LLMModel:             DefaultLLMModel,
		BaseURL:              DefaultLLMBaseURL,
		MaxTokens:            DefaultMaxTokens,
		Temperature:          DefaultTemperature,
		InvokeTimeoutSeconds: DefaultInvokeTimeoutSeconds,

		EmbeddingModel:     DefaultEmbeddingModel,
		EmbeddingCacheSize: DefaultEmbeddingCacheSize,
		IndexPath:          defaultIndexPath(),

		ShortQueryChars:     DefaultShortQueryChars,
		TopKSimple:          DefaultTopKSimple,
		TopKDetailed:        DefaultTopKDetailed,
		MinSimilarity:       DefaultMinSimilarity,
		SearchTimeoutMillis: DefaultSearchTimeoutMillis,

		SimpleToolCap:     DefaultSimpleToolCap,
		ComplexToolCap:    DefaultComplexToolCap,
		SpecialistModules: DefaultSpecialistModules,

		QualityThreshold:     DefaultQualityThreshold,
		MaxRefineIterations:  DefaultMaxRefineIterations,
		SkipComplexity:       DefaultSkipComplexity,
		HallucinationPenalty: DefaultHallucinationPenalty,
		InconsistencyPenalty: DefaultInconsistencyPenalty,

		RetentionWindow:        DefaultRetentionWindow,
		ConversationCacheSize:  DefaultConversationCacheSize,
		ConversationTTLSeconds: DefaultConversationTTLSeconds,

		ServerHost:  DefaultServerHost,
		ServerPort:  DefaultServerPort,
		MetricsPort: DefaultMetricsPort,

		TraceExporter:    DefaultTraceExporter,
		TraceSampleRatio: DefaultTraceSampleRatio,

		LogLevel: "info",
	}
}

// Load builds the effective configuration through viper: defaults, then the
// YAML file at path (or the default location when path is empty), then
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := newViper()

	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// newViper seeds a viper instance with every key's default and the
// environment bindings. Keys use the struct's yaml names.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	d := Default()
	v.SetDefault("llm_provider", d.LLMProvider)
	v.SetDefault("llm_model", d.LLMModel)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("invoke_timeout_seconds", d.InvokeTimeoutSeconds)
	v.SetDefault("embedding_model", d.EmbeddingModel)
	v.SetDefault("embedding_base_url", d.EmbeddingBaseURL)
	v.SetDefault("embedding_cache_size", d.EmbeddingCacheSize)
	v.SetDefault("index_path", d.IndexPath)
	v.SetDefault("short_query_chars", d.ShortQueryChars)
	v.SetDefault("top_k_simple", d.TopKSimple)
	v.SetDefault("top_k_detailed", d.TopKDetailed)
	v.SetDefault("min_similarity", float64(d.MinSimilarity))
	v.SetDefault("search_timeout_millis", d.SearchTimeoutMillis)
	v.SetDefault("simple_tool_cap", d.SimpleToolCap)
	v.SetDefault("complex_tool_cap", d.ComplexToolCap)
	v.SetDefault("specialist_modules", d.SpecialistModules)
	v.SetDefault("quality_threshold", d.QualityThreshold)
	v.SetDefault("max_refine_iterations", d.MaxRefineIterations)
	v.SetDefault("skip_complexity", d.SkipComplexity)
	v.SetDefault("hallucination_penalty", d.HallucinationPenalty)
	v.SetDefault("inconsistency_penalty", d.InconsistencyPenalty)
	v.SetDefault("retention_window", d.RetentionWindow)
	v.SetDefault("conversation_cache_size", d.ConversationCacheSize)
	v.SetDefault("conversation_ttl_seconds", d.ConversationTTLSeconds)
	v.SetDefault("server_host", d.ServerHost)
	v.SetDefault("server_port", d.ServerPort)
	v.SetDefault("metrics_port", d.MetricsPort)
	v.SetDefault("trace_exporter", d.TraceExporter)
	v.SetDefault("trace_endpoint", d.TraceEndpoint)
	v.SetDefault("trace_sample_ratio", d.TraceSampleRatio)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("verbose", d.Verbose)

	// Environment beats the file; the api key additionally honors the
	// provider's conventional variable.
	_ = v.BindEnv("api_key", "CONDUCTOR_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("base_url", "CONDUCTOR_BASE_URL")
	_ = v.BindEnv("llm_model", "CONDUCTOR_MODEL")
	_ = v.BindEnv("llm_provider", "CONDUCTOR_PROVIDER")
	_ = v.BindEnv("embedding_base_url", "CONDUCTOR_EMBEDDING_BASE_URL")
	_ = v.BindEnv("index_path", "CONDUCTOR_INDEX_PATH")
	_ = v.BindEnv("log_level", "CONDUCTOR_LOG_LEVEL")
	_ = v.BindEnv("trace_exporter", "CONDUCTOR_TRACE_EXPORTER")
	_ = v.BindEnv("trace_endpoint", "CONDUCTOR_TRACE_ENDPOINT")
	_ = v.BindEnv("server_port", "CONDUCTOR_SERVER_PORT")

	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		LLMProvider:          v.GetString("llm_provider"),
		LLMModel:             v.GetString("llm_model"),
		APIKey:               v.GetString("api_key"),
		BaseURL:              v.GetString("base_url"),
		MaxTokens:            v.GetInt("max_tokens"),
		Temperature:          v.GetFloat64("temperature"),
		InvokeTimeoutSeconds: v.GetInt("invoke_timeout_seconds"),

		EmbeddingModel:     v.GetString("embedding_model"),
		EmbeddingBaseURL:   v.GetString("embedding_base_url"),
		EmbeddingCacheSize: v.GetInt("embedding_cache_size"),
		IndexPath:          v.GetString("index_path"),

		ShortQueryChars:     v.GetInt("short_query_chars"),
		TopKSimple:          v.GetInt("top_k_simple"),
		TopKDetailed:        v.GetInt("top_k_detailed"),
		MinSimilarity:       float32(v.GetFloat64("min_similarity")),
		SearchTimeoutMillis: v.GetInt("search_timeout_millis"),

		SimpleToolCap:     v.GetInt("simple_tool_cap"),
		ComplexToolCap:    v.GetInt("complex_tool_cap"),
		SpecialistModules: v.GetInt("specialist_modules"),

		QualityThreshold:     v.GetFloat64("quality_threshold"),
		MaxRefineIterations:  v.GetInt("max_refine_iterations"),
		SkipComplexity:       v.GetInt("skip_complexity"),
		HallucinationPenalty: v.GetFloat64("hallucination_penalty"),
		InconsistencyPenalty: v.GetFloat64("inconsistency_penalty"),

		RetentionWindow:        v.GetInt("retention_window"),
		ConversationCacheSize:  v.GetInt("conversation_cache_size"),
		ConversationTTLSeconds: v.GetInt("conversation_ttl_seconds"),

		ServerHost:  v.GetString("server_host"),
		ServerPort:  v.GetInt("server_port"),
		MetricsPort: v.GetInt("metrics_port"),

		TraceExporter:    v.GetString("trace_exporter"),
		TraceEndpoint:    v.GetString("trace_endpoint"),
		TraceSampleRatio: v.GetFloat64("trace_sample_ratio"),

		LogLevel: v.GetString("log_level"),
		Verbose:  v.GetBool("verbose"),
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 5 {
		return fmt.Errorf("quality_threshold %v outside [0,5]", c.QualityThreshold)
	}
	if c.MaxRefineIterations < 1 {
		return fmt.Errorf("max_refine_iterations must be at least 1, got %d", c.MaxRefineIterations)
	}
	if c.SimpleToolCap < 0 || c.ComplexToolCap < c.SimpleToolCap {
		return fmt.Errorf("tool caps invalid: simple=%d complex=%d", c.SimpleToolCap, c.ComplexToolCap)
	}
	if c.TopKSimple < 1 || c.TopKDetailed < c.TopKSimple {
		return fmt.Errorf("top-k bounds invalid: simple=%d detailed=%d", c.TopKSimple, c.TopKDetailed)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity %v outside [0,1]", c.MinSimilarity)
	}
	if c.RetentionWindow < 1 {
		return fmt.Errorf("retention_window must be at least 1, got %d", c.RetentionWindow)
	}
	return nil
}

// InvokeTimeout returns the per-call model invocation timeout.
func (c *Config) InvokeTimeout() time.Duration {
	return time.Duration(c.InvokeTimeoutSeconds) * time.Second
}

// SearchTimeout returns the per-search retrieval timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutMillis) * time.Millisecond
}

// ConversationTTL returns the supervisor entry lifetime.
func (c *Config) ConversationTTL() time.Duration {
	return time.Duration(c.ConversationTTLSeconds) * time.Second
}

// DefaultConfigPath returns ~/.conductor/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".conductor", "config.yaml")
}

func defaultIndexPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conductor-index"
	}
	return filepath.Join(home, ".conductor", "index")
}
