// Package config defines the process configuration for the autopost services.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> SecretProvider (Lowest)
//
// A missing required value or invalid format fails startup.
package config

import (
	"time"

	"autopost/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"autopost"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Database  DatabaseConfig
	AWS       AWSConfig
	Gemini    GeminiConfig
	Threads   ThreadsConfig
	Security  SecurityConfig
	Scheduler SchedulerConfig

	// Injected via ldflags, not Env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	// TriggerTimeout bounds one process-due invocation over HTTP.
	TriggerTimeout time.Duration `envconfig:"TRIGGER_TIMEOUT" default:"10m"`
	// RateLimitPerMinute applies per route and client address.
	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30" validate:"min=1"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// EventQueueURL receives post lifecycle events. Empty disables publishing.
	EventQueueURL string `envconfig:"SQS_POST_EVENTS" validate:"omitempty,url"`
	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// GeminiConfig configures the generative and embedding backends.
type GeminiConfig struct {
	APIKey         SecretString `envconfig:"GEMINI_API_KEY" validate:"required"`
	BaseURL        string       `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	TextModel      string       `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-2.0-flash"`
	EmbeddingModel string       `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-exp-03-07"`
}

// ThreadsConfig configures the publishing backend.
type ThreadsConfig struct {
	BaseURL    string `envconfig:"THREADS_BASE_URL" default:"https://graph.threads.net"`
	APIVersion string `envconfig:"THREADS_API_VERSION" default:"v1.0"`
}

// SecurityConfig holds trigger authentication and credential encryption keys.
type SecurityConfig struct {
	// TriggerSecretHash is the bcrypt hash of the process-due bearer secret.
	TriggerSecretHash SecretString `envconfig:"TRIGGER_SECRET_HASH" validate:"required"`
	// TokenEncryptionKey is a base64 encoded 32-byte AES key.
	TokenEncryptionKey SecretString `envconfig:"TOKEN_ENCRYPTION_KEY" validate:"required"`
}

// SchedulerConfig holds the batch processing tunables.
type SchedulerConfig struct {
	PageSize            int           `envconfig:"SCHEDULER_PAGE_SIZE" default:"100" validate:"min=1,max=1000"`
	MaxAttempts         int           `envconfig:"SCHEDULER_MAX_ATTEMPTS" default:"5" validate:"min=1,max=20"`
	HistoryWindow       int           `envconfig:"SCHEDULER_HISTORY_WINDOW" default:"30" validate:"min=1,max=200"`
	SimilarityThreshold float64       `envconfig:"SCHEDULER_SIMILARITY_THRESHOLD" default:"0.85" validate:"gt=0,lte=1"`
	PublishDelay        time.Duration `envconfig:"SCHEDULER_PUBLISH_DELAY" default:"3s"`
	RecordTimeout       time.Duration `envconfig:"SCHEDULER_RECORD_TIMEOUT" default:"90s"`
	Concurrency         int           `envconfig:"SCHEDULER_CONCURRENCY" default:"1" validate:"min=1,max=32"`
	LeaseTTL            time.Duration `envconfig:"SCHEDULER_LEASE_TTL" default:"10m"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv       ConfigErrorType = "MISSING_ENV"
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	ErrValidation       ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing          ConfigErrorType = "PARSING_FAILED"
)
