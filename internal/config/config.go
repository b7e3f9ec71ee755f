package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	Database  DatabaseConfig   `json:"database"`
	Redis     RedisConfig      `json:"redis"`
	Cache     CacheConfig      `json:"cache"`
	AI        AIConfig         `json:"ai"`
	Schedule  ScheduleConfig   `json:"schedule"`
	CORS      []string         `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// CacheConfig carries every recognized cache knob. The embedding ttl must
// outlive the feedback ttl: embeddings describe what a text means, feedback
// entries describe current policy about it.
type CacheConfig struct {
	ExactStore            string  `json:"exact_store"` // memory | redis
	SimilarityThreshold   float64 `json:"similarity_threshold"`
	FeedbackTTLHours      int     `json:"feedback_ttl_hours"`
	EmbeddingTTLHours     int     `json:"embedding_ttl_hours"`
	MaxItems              int     `json:"max_items"`
	TopK                  int     `json:"top_k"`
	EmbedLruSize          int     `json:"embed_lru_size"`
	EmbedTimeoutSeconds   int     `json:"embed_timeout_seconds"`
	AnalyzeTimeoutSeconds int     `json:"analyze_timeout_seconds"`
}

type AIProviderConfig struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	EmbedModel string      `json:"embed_model"`
	Data       interface{} `json:"data"`
}

type AIConfig struct {
	AIProviderConfig
	Fallbacks []AIProviderConfig `json:"fallbacks"`
}

type ScheduleConfig struct {
	CleanupCron string `json:"cleanup_cron"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.DBName == "") {
		return nil, fmt.Errorf("database.dsn or database.host + database.db_name is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if err := applyCacheDefaults(&cfg); err != nil {
		return nil, err
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.Schedule.CleanupCron == "" {
		cfg.Schedule.CleanupCron = "30 3 * * *"
	}
	return &cfg, nil
}

func applyCacheDefaults(cfg *Config) error {
	c := &cfg.Cache
	if c.ExactStore == "" {
		c.ExactStore = "memory"
	}
	switch c.ExactStore {
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis exact store")
		}
	default:
		return fmt.Errorf("cache.exact_store must be memory or redis")
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.95
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in (0, 1]")
	}
	if c.FeedbackTTLHours <= 0 {
		c.FeedbackTTLHours = 48
	}
	if c.EmbeddingTTLHours <= 0 {
		c.EmbeddingTTLHours = 168
	}
	if c.EmbeddingTTLHours < c.FeedbackTTLHours {
		return fmt.Errorf("cache.embedding_ttl_hours must not be shorter than cache.feedback_ttl_hours")
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 100000
	}
	if c.TopK <= 0 {
		c.TopK = 3
	}
	if c.EmbedLruSize <= 0 {
		c.EmbedLruSize = 4096
	}
	if c.EmbedTimeoutSeconds <= 0 {
		c.EmbedTimeoutSeconds = 10
	}
	if c.AnalyzeTimeoutSeconds <= 0 {
		c.AnalyzeTimeoutSeconds = 30
	}
	return nil
}
