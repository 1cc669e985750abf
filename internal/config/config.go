package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Analyzer providers
const (
	AnalyzerMock      = "mock"
	AnalyzerOpenAI    = "openai"
	AnalyzerAnthropic = "anthropic"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	DatabaseURL string // postgres://, mysql DSN, or sqlite:<path>
	Version     string
	LogLevel    string
	APIToken    string // Bearer token required on /api routes when set

	// AI analyzer
	AnalyzerProvider               string // mock, openai or anthropic
	AnalyzerTimeout                int    // Per-message analyzer timeout in seconds
	OpenAIKey                      string
	OpenAIBaseURL                  string // Optional override for OpenAI-compatible endpoints
	AzureOpenAIKey                 string
	AzureOpenAIEndpoint            string
	AzureOpenAIGPTDeployment       string
	AzureOpenAIEmbeddingDeployment string
	AnthropicKey                   string
	AnthropicModel                 string
	AnthropicBaseURL               string

	// Sync pipeline
	IMAPTimeout         int  // Mail server connect/IO timeout in seconds
	SyncBatchSize       int  // Most recent messages fetched per sync
	SyncWorkers         int  // Parallel parse/analyze/persist workers
	SyncTimeout         int  // Upper bound for one sync run in seconds
	AllowSampleFallback bool // Permit callers to opt into labeled sample data when the mailbox is unreachable

	// Search index
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantUseTLS     bool
	QdrantCollection string

	// Notifications
	SendGridAPIKey  string // SendGrid API key for high-priority task digests
	NotifyFromEmail string

	// Scheduled sync
	SchedulerEnabled   bool   // Create Kubernetes CronJobs from fetch frequency settings
	SchedulerNamespace string
	SyncImage          string // Container image that ships /app/bin/sync-user
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		APIToken:    os.Getenv("API_TOKEN"),

		AnalyzerProvider:               strings.ToLower(getEnv("ANALYZER_PROVIDER", AnalyzerMock)),
		AnalyzerTimeout:                getEnvInt("ANALYZER_TIMEOUT", 30),
		OpenAIKey:                      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:                  os.Getenv("OPENAI_BASE_URL"),
		AzureOpenAIKey:                 os.Getenv("AZURE_OPENAI_KEY"),
		AzureOpenAIEndpoint:            os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIGPTDeployment:       getEnv("AZURE_OPENAI_GPT_DEPLOYMENT", "gpt-4o-mini"),
		AzureOpenAIEmbeddingDeployment: getEnv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-3-small"),
		AnthropicKey:                   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:                 getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		AnthropicBaseURL:               os.Getenv("ANTHROPIC_BASE_URL"),

		IMAPTimeout:         getEnvInt("IMAP_TIMEOUT", 30),
		SyncBatchSize:       getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncWorkers:         getEnvInt("SYNC_WORKERS", 4),
		SyncTimeout:         getEnvInt("SYNC_TIMEOUT", 300),
		AllowSampleFallback: getEnvBool("ALLOW_SAMPLE_FALLBACK", false), // Never degrade silently

		QdrantHost:       os.Getenv("QDRANT_HOST"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantUseTLS:     getEnvBool("QDRANT_USE_TLS", false),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "emails"),

		SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", "noreply@mailtriage.local"),

		SchedulerEnabled:   getEnvBool("SCHEDULER_ENABLED", false),
		SchedulerNamespace: getEnv("SCHEDULER_NAMESPACE", "mailtriage"),
		SyncImage:          getEnv("SYNC_IMAGE", "mailtriage:latest"),
	}

	return config
}

// UseAzureOpenAI reports whether Azure OpenAI credentials are configured
func (c *Config) UseAzureOpenAI() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey != ""
}

// HasOpenAIFallback reports whether the OpenAI platform key is configured
func (c *Config) HasOpenAIFallback() bool {
	return c.OpenAIKey != ""
}

// SearchEnabled reports whether the vector index can be used
func (c *Config) SearchEnabled() bool {
	return c.QdrantHost != "" && (c.UseAzureOpenAI() || c.HasOpenAIFallback())
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a default fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "mailtriage").
		Str("version", c.Version).
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
