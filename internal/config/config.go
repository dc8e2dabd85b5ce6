package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTPPort    string
	GRPCPort    string
	Database    DatabaseConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Security    SecurityConfig
	Tracking    TrackingConfig
	CORS        CORSConfig
	Tracing     TracingConfig
}

type DatabaseConfig struct {
	// postgres or sqlite
	Driver     string
	SQLitePath string
}

type PostgresConfig struct {
	Host            string
	Port            string
	Database        string
	Username        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string
}

type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	Topic            string
	ProducerRetries  int
	ProducerTimeout  time.Duration
	RequiredAcks     int
	CompressionType  string
	MaxMessageBytes  int
	IdempotentWrites bool
	ConsumerGroup    string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SummaryTTL time.Duration
}

type SecurityConfig struct {
	JWTSecret string
	AuthURL   string
}

type TrackingConfig struct {
	Origin        string
	BeaconPath    string
	BufferSize    int
	InsertTimeout time.Duration
	FeedLimit     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	OTLPEndpoint string
	SampleRatio  float64
	Version      string
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "50051"),
	}

	cfg.Database = DatabaseConfig{
		Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		SQLitePath: getEnv("SQLITE_PATH", "storefront-activity.db"),
	}

	cfg.Postgres = PostgresConfig{
		Host:            getEnv("POSTGRES_HOST", "localhost"),
		Port:            getEnv("POSTGRES_PORT", "5432"),
		Database:        getEnv("POSTGRES_DB", "storefront"),
		Username:        getEnv("POSTGRES_USER", "admin"),
		Password:        getEnv("POSTGRES_PASSWORD", "password"),
		MaxOpenConns:    getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
	}

	brokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	topic := getEnv("KAFKA_TOPIC_ACTIVITY", "user-activity")
	cfg.Kafka = KafkaConfig{
		Enabled:          getEnvAsBool("KAFKA_ENABLED", true),
		Brokers:          strings.Split(brokers, ","),
		Topic:            topic,
		ProducerRetries:  getEnvAsInt("KAFKA_PRODUCER_RETRIES", 3),
		ProducerTimeout:  getEnvAsDuration("KAFKA_PRODUCER_TIMEOUT", 10*time.Second),
		RequiredAcks:     getEnvAsInt("KAFKA_REQUIRED_ACKS", -1),
		CompressionType:  getEnv("KAFKA_COMPRESSION", "snappy"),
		IdempotentWrites: getEnvAsBool("KAFKA_IDEMPOTENT", true),
		MaxMessageBytes:  getEnvAsInt("KAFKA_MAX_MESSAGE_BYTES", 1000000),
		ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", topic+"-analytics"),
	}

	cfg.Redis = RedisConfig{
		Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         getEnvAsInt("REDIS_DB", 0),
		SummaryTTL: getEnvAsDuration("REDIS_SUMMARY_TTL", time.Minute),
	}

	cfg.Security = SecurityConfig{
		JWTSecret: getEnv("JWT_SECRET", ""),
		AuthURL:   getEnv("AUTH_URL", ""),
	}

	cfg.Tracking = TrackingConfig{
		Origin:        strings.TrimSuffix(getEnv("TRACKING_ORIGIN", "http://localhost:8080"), "/"),
		BeaconPath:    getEnv("TRACKING_BEACON_PATH", "/beacon"),
		BufferSize:    getEnvAsInt("TRACKING_BUFFER_SIZE", 256),
		InsertTimeout: getEnvAsDuration("TRACKING_INSERT_TIMEOUT", 5*time.Second),
		FeedLimit:     getEnvAsInt("ADMIN_FEED_LIMIT", 100),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitNonEmpty(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
	}

	cfg.Tracing = TracingConfig{
		Enabled:      getEnvAsBool("OTEL_ENABLED", false),
		Exporter:     getEnv("OTEL_EXPORTER", "stdout"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SampleRatio:  getEnvAsFloat("OTEL_SAMPLER_RATIO", 0.1),
		Version:      getEnv("SERVICE_VERSION", "dev"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Tracking.BufferSize <= 0 {
		return fmt.Errorf("TRACKING_BUFFER_SIZE must be positive, got %d", c.Tracking.BufferSize)
	}
	if !strings.HasPrefix(c.Tracking.BeaconPath, "/") {
		return fmt.Errorf("TRACKING_BEACON_PATH must start with '/', got %q", c.Tracking.BeaconPath)
	}
	return nil
}

func (c *PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// BeaconURL is where departing clients post their final time-on-page signal.
func (t *TrackingConfig) BeaconURL() string {
	return t.Origin + t.BeaconPath
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
