package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendMemory   = "memory"

	// DefaultSeverityIndex is the name of the DynamoDB GSI on (severity, eventTime)
	DefaultSeverityIndex = "severity-index"
)

// MaxQueryLimit is the hard cap on incidents per page
const MaxQueryLimit = 50

// Config represents the complete application configuration
type Config struct {
	Server         ServerConfig
	Store          StoreConfig
	Database       DatabaseConfig
	DynamoDB       DynamoDBConfig
	Redis          RedisConfig
	Queue          QueueConfig
	Classification ClassificationConfig
	Query          QueryConfig
	Auth           AuthConfig
	Cognito        CognitoConfig
	Observability  ObservabilityConfig
	Environment    string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	AllowedOrigins  []string
}

// StoreConfig selects the incident store for this deployment
type StoreConfig struct {
	Backend string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// DynamoDBConfig holds the incident table settings
type DynamoDBConfig struct {
	Table         string
	SeverityIndex string
	Region        string
	Endpoint      string // local DynamoDB or LocalStack
}

// RedisConfig holds Redis connection settings shared by the store and the queue
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// QueueConfig configures the Redis list consumer and ingest workers
type QueueConfig struct {
	Key          string
	BlockTimeout time.Duration
	Workers      int
	BufferSize   int
	WriteTimeout time.Duration
}

// ClassificationConfig points at an optional classification table file
type ClassificationConfig struct {
	TablePath string // empty uses the built-in table
}

// QueryConfig holds incident query paging settings
type QueryConfig struct {
	DefaultLimit    int
	MaxLimit        int
	ServerSideRange bool // push "from" into the store when it supports it
}

// AuthConfig holds API authentication switches
type AuthConfig struct {
	Disabled     bool
	IngestAPIKey string

	// RequiredGroup, when set, restricts queries to members of this Cognito group
	RequiredGroup string
}

// CognitoConfig holds AWS Cognito token validation settings
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Load reads the configuration from the environment without validating it
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		},
		Database: loadDatabaseConfig(),
		DynamoDB: DynamoDBConfig{
			Table:         firstEnv("DYNAMODB_TABLE", "INCIDENT_TABLE", "TABLE_NAME"),
			SeverityIndex: getEnv("DYNAMODB_SEVERITY_INDEX", DefaultSeverityIndex),
			Region:        firstEnvOr("us-east-1", "DYNAMODB_REGION", "AWS_REGION"),
			Endpoint:      getEnv("DYNAMODB_ENDPOINT", ""),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "trailguard"),
		},
		Queue: QueueConfig{
			Key:          getEnv("QUEUE_REDIS_KEY", "trailguard:audit_events"),
			BlockTimeout: getEnvAsDuration("QUEUE_BLOCK_TIMEOUT", 5*time.Second),
			Workers:      getEnvAsInt("INGEST_WORKERS", 4),
			BufferSize:   getEnvAsInt("INGEST_BUFFER_SIZE", 1000),
			WriteTimeout: getEnvAsDuration("INGEST_WRITE_TIMEOUT", 5*time.Second),
		},
		Classification: ClassificationConfig{
			TablePath: getEnv("CLASSIFICATION_TABLE_PATH", ""),
		},
		Query: QueryConfig{
			DefaultLimit:    getEnvAsInt("QUERY_DEFAULT_LIMIT", 10),
			MaxLimit:        getEnvAsInt("QUERY_MAX_LIMIT", 50),
			ServerSideRange: getEnvAsBool("QUERY_SERVER_SIDE_RANGE", true),
		},
		Auth: AuthConfig{
			Disabled:      getEnvAsBool("AUTH_DISABLED", false),
			IngestAPIKey:  getEnv("INGEST_API_KEY", ""),
			RequiredGroup: getEnv("AUTH_REQUIRED_GROUP", ""),
		},
		Cognito: CognitoConfig{
			Region:     getEnv("COGNITO_REGION", "us-east-1"),
			UserPoolID: getEnv("COGNITO_USER_POOL_ID", ""),
			ClientID:   getEnv("COGNITO_CLIENT_ID", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case BackendDynamoDB:
		if c.DynamoDB.Table == "" {
			return fmt.Errorf("dynamodb table is required: set DYNAMODB_TABLE")
		}
		if c.DynamoDB.Region == "" {
			return fmt.Errorf("dynamodb region is required")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("memory store is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Query.DefaultLimit <= 0 || c.Query.MaxLimit <= 0 {
		return fmt.Errorf("query limits must be positive")
	}
	if c.Query.MaxLimit > MaxQueryLimit {
		return fmt.Errorf("query max limit %d exceeds the hard cap of %d", c.Query.MaxLimit, MaxQueryLimit)
	}
	if c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("query default limit %d exceeds max limit %d", c.Query.DefaultLimit, c.Query.MaxLimit)
	}

	if c.Queue.Workers <= 0 {
		return fmt.Errorf("ingest workers must be positive")
	}
	if c.Queue.BufferSize < 0 {
		return fmt.Errorf("ingest buffer size cannot be negative")
	}

	if c.IsProduction() {
		if c.Auth.Disabled {
			return fmt.Errorf("auth cannot be disabled in production")
		}
		if c.Cognito.UserPoolID == "" {
			return fmt.Errorf("cognito user pool ID is required in production")
		}
		if c.Cognito.ClientID == "" {
			return fmt.Errorf("cognito client ID is required in production")
		}
		if c.Auth.IngestAPIKey == "" {
			return fmt.Errorf("ingest API key is required in production: set INGEST_API_KEY")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// CognitoConfigured reports whether JWT validation can be enabled
func (c *Config) CognitoConfigured() bool {
	return c.Cognito.UserPoolID != "" && c.Cognito.ClientID != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return pool
	}
	pool.Host = getEnv("DB_HOST", "localhost")
	pool.Port = getEnvAsInt("DB_PORT", 5432)
	pool.User = getEnv("DB_USER", "trailguard")
	pool.Password = getEnv("DB_PASSWORD", "")
	pool.Database = getEnv("DB_NAME", "trailguard")
	pool.SSLMode = getEnv("DB_SSLMODE", "disable")
	return pool
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv returns the first non-empty variable among keys
func firstEnv(keys ...string) string {
	return firstEnvOr("", keys...)
}

func firstEnvOr(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
