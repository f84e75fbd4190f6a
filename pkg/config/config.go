// Package config loads and validates gateway configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Auth, RateLimit, Backend, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend type values accepted by Backend.Type.
const (
	BackendElasticsearch = "elasticsearch"
	BackendMemory        = "memory"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Backend   BackendConfig   `yaml:"backend"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// AuthConfig holds token signing parameters. Tokens are stateless HS256
// JWTs; rotating the secret invalidates every outstanding token.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

// RateLimitConfig controls per-tenant admission. PermitsPerSecond is both
// the bucket capacity and the sustained refill rate.
type RateLimitConfig struct {
	PermitsPerSecond float64 `yaml:"permitsPerSecond"`
}

// BackendConfig selects and configures the search engine the gateway
// orchestrates against.
type BackendConfig struct {
	Type           string              `yaml:"type"`
	RequestTimeout time.Duration       `yaml:"requestTimeout"`
	Elasticsearch  ElasticsearchConfig `yaml:"elasticsearch"`
}

// ElasticsearchConfig holds connection parameters for the Elasticsearch
// REST endpoint.
type ElasticsearchConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// URL returns the base URL of the Elasticsearch endpoint.
func (e ElasticsearchConfig) URL() string {
	return fmt.Sprintf("%s://%s:%d", e.Scheme, e.Host, e.Port)
}

// RedisConfig holds the optional query-cache settings. The cache is only
// wired when Enabled is true.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds the optional analytics-event publishing settings.
type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers"`
	AnalyticsEvents string   `yaml:"analyticsEvents"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. It returns a Config populated with defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret must not be empty")
	}
	if c.RateLimit.PermitsPerSecond <= 0 {
		return fmt.Errorf("rateLimit.permitsPerSecond must be positive, got %v", c.RateLimit.PermitsPerSecond)
	}
	switch c.Backend.Type {
	case BackendElasticsearch, BackendMemory:
	default:
		return fmt.Errorf("backend.type must be %q or %q, got %q", BackendElasticsearch, BackendMemory, c.Backend.Type)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  25 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			Secret:   "localdev-secret-change-me",
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			PermitsPerSecond: 100,
		},
		Backend: BackendConfig{
			Type:           BackendElasticsearch,
			RequestTimeout: 10 * time.Second,
			Elasticsearch: ElasticsearchConfig{
				Host:   "localhost",
				Port:   9200,
				Scheme: "http",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:         false,
			Brokers:         []string{"localhost:9092"},
			AnalyticsEvents: "search-analytics-events",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads DSE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DSE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DSE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("DSE_AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}
	if v := os.Getenv("DSE_RATE_LIMIT_PERMITS_PER_SECOND"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.PermitsPerSecond = rate
		}
	}
	if v := os.Getenv("DSE_BACKEND_TYPE"); v != "" {
		cfg.Backend.Type = v
	}
	if v := os.Getenv("DSE_ELASTICSEARCH_HOST"); v != "" {
		cfg.Backend.Elasticsearch.Host = v
	}
	if v := os.Getenv("DSE_ELASTICSEARCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Backend.Elasticsearch.Port = port
		}
	}
	if v := os.Getenv("DSE_ELASTICSEARCH_SCHEME"); v != "" {
		cfg.Backend.Elasticsearch.Scheme = v
	}
	if v := os.Getenv("DSE_ELASTICSEARCH_USERNAME"); v != "" {
		cfg.Backend.Elasticsearch.Username = v
	}
	if v := os.Getenv("DSE_ELASTICSEARCH_PASSWORD"); v != "" {
		cfg.Backend.Elasticsearch.Password = v
	}
	if v := os.Getenv("DSE_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true"
	}
	if v := os.Getenv("DSE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DSE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DSE_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true"
	}
	if v := os.Getenv("DSE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DSE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DSE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DSE_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
