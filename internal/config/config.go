package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`

	// Carrier accounts
	AccountsFile string `envconfig:"ACCOUNTS_FILE" default:"accounts.yaml"`

	// CTT Express endpoints
	LegacyEndpoint string        `envconfig:"CTT_LEGACY_ENDPOINT"`
	RESTBaseURL    string        `envconfig:"CTT_REST_BASE_URL" default:"https://api.cttexpress.com/integrations"`
	TokenURL       string        `envconfig:"CTT_TOKEN_URL"`
	Platform       string        `envconfig:"CTT_PLATFORM" default:"CTTGATEWAY"`
	Timeout        time.Duration `envconfig:"CTT_TIMEOUT" default:"30s"`
	UseMock        bool          `envconfig:"CTT_USE_MOCK" default:"false"`

	// Gateway
	ManifestConcurrency int           `envconfig:"MANIFEST_CONCURRENCY" default:"4"`
	LabelDelay          time.Duration `envconfig:"LABEL_DELAY" default:"0s"`
	FixedPrice          float64       `envconfig:"FIXED_PRICE" default:"7.0"`

	// Token cache: memory, file, redis or postgres
	TokenCache    string `envconfig:"TOKEN_CACHE" default:"memory"`
	TokenCacheDir string `envconfig:"TOKEN_CACHE_DIR" default:".cttgateway/tokens"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`

	// Kafka state sink
	KafkaEnabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"ctt.delivery-state"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"cttgateway"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("ctt.token_cache", c.TokenCache),
		attribute.Bool("ctt.use_mock", c.UseMock),
		attribute.Bool("kafka.enabled", c.KafkaEnabled),
	}
}
