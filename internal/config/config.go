// Package config loads the application configuration from a YAML file
// overlaid with environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the application's top-level configuration.
type Config struct {
	Server       *ServerConfig       `yaml:"server" json:"server"`
	Cache        *CacheConfig        `yaml:"cache" json:"cache"`
	Retrieval    *RetrievalConfig    `yaml:"retrieval" json:"retrieval"`
	Conversation *ConversationConfig `yaml:"conversation" json:"conversation"`
	Generation   *GenerationConfig  `yaml:"generation" json:"generation"`
	Models       []ModelConfig       `yaml:"models" json:"models"`
	VectorStore  *VectorStoreConfig  `yaml:"vector_store" json:"vector_store"`
	SparseIndex  *SparseIndexConfig  `yaml:"sparse_index" json:"sparse_index"`
	ObjectStore  *ObjectStoreConfig  `yaml:"object_store" json:"object_store"`
	Asynq        *AsynqConfig        `yaml:"asynq" json:"asynq"`
	Tracing      *TracingConfig      `yaml:"tracing" json:"tracing"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`
	Host            string        `yaml:"host" json:"host"`
	LogPath         string        `yaml:"log_path" json:"log_path"`
	LogLevel        string        `yaml:"log_level" json:"log_level" default:"info"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" default:"30s"`
	GlobalDeadline  time.Duration `yaml:"global_deadline" json:"global_deadline" default:"120s"`
	MaxInflight     int           `yaml:"max_inflight" json:"max_inflight" default:"64"`
}

// CacheConfig configures the three-stage semantic cache.
type CacheConfig struct {
	Enabled            bool          `yaml:"enabled" json:"enabled"`
	Redis              RedisConfig   `yaml:"redis" json:"redis"`
	ExactTTL           time.Duration `yaml:"exact_ttl_sec" json:"exact_ttl_sec" default:"3600s"`
	SemanticTTL        time.Duration `yaml:"semantic_ttl_sec" json:"semantic_ttl_sec" default:"600s"`
	SimThreshold       float64       `yaml:"sim_threshold" json:"sim_threshold" default:"0.98"`
	OverlapThreshold   float64       `yaml:"overlap_threshold" json:"overlap_threshold" default:"0.80"`
	SemanticCandidates int           `yaml:"semantic_candidates" json:"semantic_candidates" default:"200"`
	EnableSemantic     bool          `yaml:"enable_semantic" json:"enable_semantic" default:"true"`
	SweepInterval      time.Duration `yaml:"sweep_interval" json:"sweep_interval" default:"1h"`
}

// RedisConfig describes a Redis connection shared by cache, stream, and asynq.
type RedisConfig struct {
	Address  string `yaml:"address" json:"address"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// RetrievalConfig configures the classifier and adaptive strategies.
type RetrievalConfig struct {
	SimpleThreshold    float64 `yaml:"simple_threshold" json:"simple_threshold" default:"1"`
	ComplexThreshold   float64 `yaml:"complex_threshold" json:"complex_threshold" default:"3"`
	DenseTopK          int     `yaml:"dense_top_k" json:"dense_top_k" default:"20"`
	SparseTopK         int     `yaml:"sparse_top_k" json:"sparse_top_k" default:"20"`
	RRFK               int     `yaml:"rrf_k" json:"rrf_k" default:"60"`
	RerankTopN         int     `yaml:"rerank_top_n" json:"rerank_top_n" default:"10"`
	CrossEncoderWeight float64 `yaml:"cross_encoder_weight" json:"cross_encoder_weight" default:"0.7"`
	QueryVariantCount  int     `yaml:"query_variant_count" json:"query_variant_count" default:"2"`
}

// ConversationConfig configures the sliding window and summarizer.
type ConversationConfig struct {
	Redis                RedisConfig   `yaml:"redis" json:"redis"`
	WindowSize           int           `yaml:"window_size" json:"window_size" default:"10"`
	SummarizeEveryTurns  int           `yaml:"summarize_every_turns" json:"summarize_every_turns" default:"5"`
	SessionTTL           time.Duration `yaml:"session_ttl" json:"session_ttl" default:"168h"`
	SummaryPrompt        string        `yaml:"summary_prompt" json:"summary_prompt"`
}

// GenerationConfig configures grounded answer generation.
type GenerationConfig struct {
	SystemPrompt        string  `yaml:"system_prompt" json:"system_prompt"`
	MaxContextChunks    int     `yaml:"max_context_chunks" json:"max_context_chunks" default:"8"`
	Temperature         float64 `yaml:"temperature" json:"temperature" default:"0.2"`
	MaxTokens           int     `yaml:"max_tokens" json:"max_tokens" default:"1024"`
	GroundingNGram      int     `yaml:"grounding_ngram" json:"grounding_ngram" default:"3"`
	RetryAttempts       int     `yaml:"retry_attempts" json:"retry_attempts" default:"3"`
	RetryBackoffBaseMs  int     `yaml:"retry_backoff_base_ms" json:"retry_backoff_base_ms" default:"1000"`
	RequestTimeout      time.Duration `yaml:"request_timeout" json:"request_timeout" default:"90s"`
	UseLLMJudge         bool    `yaml:"use_llm_judge" json:"use_llm_judge" default:"false"`
}

// ModelConfig describes one model backend (embedding, chat, rerank).
type ModelConfig struct {
	Type       string                 `yaml:"type" json:"type"`
	Source     string                 `yaml:"source" json:"source"`
	ModelName  string                 `yaml:"model_name" json:"model_name"`
	BaseURL    string                 `yaml:"base_url" json:"base_url"`
	APIKey     string                 `yaml:"api_key" json:"api_key"`
	Parameters map[string]interface{} `yaml:"parameters" json:"parameters"`
}

// VectorStoreConfig configures the pgvector-backed dense store (C3).
type VectorStoreConfig struct {
	Driver string `yaml:"driver" json:"driver" default:"pgvector"`
	DSN    string `yaml:"dsn" json:"dsn"`
	Table  string `yaml:"table" json:"table" default:"chunks"`
}

// SparseIndexConfig configures the Elasticsearch-backed lexical store (C4).
type SparseIndexConfig struct {
	Addresses []string `yaml:"addresses" json:"addresses"`
	Username  string   `yaml:"username" json:"username"`
	Password  string   `yaml:"password" json:"password"`
	Index     string   `yaml:"index" json:"index" default:"chunks"`
}

// ObjectStoreConfig configures the analytics/feedback sink backends.
type ObjectStoreConfig struct {
	Driver    string `yaml:"driver" json:"driver" default:"minio"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
	Region    string `yaml:"region" json:"region"`
	// COS-specific, used when Driver == "cos".
	SecretID string `yaml:"secret_id" json:"secret_id"`

	BatchSize     int           `yaml:"batch_size" json:"batch_size" default:"100"`
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval" default:"30s"`
}

// AsynqConfig configures the background task queue.
type AsynqConfig struct {
	Redis       RedisConfig `yaml:"redis" json:"redis"`
	Concurrency int         `yaml:"concurrency" json:"concurrency" default:"10"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Exporter    string `yaml:"exporter" json:"exporter" default:"stdout"`
	OTLPAddr    string `yaml:"otlp_addr" json:"otlp_addr"`
	ServiceName string `yaml:"service_name" json:"service_name" default:"policyqa-core"`
}

// LoadConfig reads config.yaml from the known search paths, overlays
// ${VAR}-style environment variable references, and decodes into Config.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.policyqa")
	viper.AddConfigPath("/etc/policyqa/")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	configFileContent, err := os.ReadFile(viper.ConfigFileUsed())
	if err != nil {
		return nil, fmt.Errorf("error reading config file content: %w", err)
	}

	re := regexp.MustCompile(`\${([^}]+)}`)
	result := re.ReplaceAllStringFunc(string(configFileContent), func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})

	if err := viper.ReadConfig(strings.NewReader(result)); err != nil {
		return nil, fmt.Errorf("error applying environment overlay: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	fmt.Printf("using configuration file: %s\n", viper.ConfigFileUsed())
	return &cfg, nil
}
