// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache + refresh token store)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Auth
	AuthSecret string // HMAC secret for access tokens

	// CORS origin of the frontend; empty for same-origin deployments.
	CORSOrigin string

	// S3-compatible object storage (demand media + AI generations)
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3BucketPublic  string
	S3BucketPrivate string
	S3PublicURL     string

	// Meilisearch (optional full-text search)
	MeiliURL    string
	MeiliAPIKey string

	// AI provider settings
	AIProvider string // active chat provider: "gemini", "openrouter", "openai"

	GeminiKey        string
	GeminiModel      string
	GeminiModelImage string
	GeminiBaseURL    string

	OpenRouterKey     string
	OpenRouterModel   string
	OpenRouterBaseURL string

	OpenAIKey         string
	OpenAIAssistantID string
	OpenAIModel       string
	OpenAIBaseURL     string

	FreepikKey     string
	FreepikBaseURL string

	ElevenLabsKey     string
	ElevenLabsVoiceID string
	ElevenLabsModel   string
	ElevenLabsBaseURL string
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "demandflow"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "demandflow"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		AuthSecret: envOrDefault("AUTH_SECRET", "dev-secret"),

		CORSOrigin: os.Getenv("CORS_ORIGIN"),

		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        envOrDefault("S3_REGION", "eu-central"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3BucketPublic:  envOrDefault("S3_BUCKET_PUBLIC", "demandflow-public"),
		S3BucketPrivate: envOrDefault("S3_BUCKET_PRIVATE", "demandflow-private"),
		S3PublicURL:     os.Getenv("S3_PUBLIC_URL"),

		MeiliURL:    os.Getenv("MEILI_URL"),
		MeiliAPIKey: os.Getenv("MEILI_API_KEY"),

		AIProvider: envOrDefault("AI_PROVIDER", "gemini"),

		GeminiKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiModelImage: os.Getenv("GEMINI_MODEL_IMAGE"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),

		OpenRouterKey:     os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   envOrDefault("OPENROUTER_MODEL", "openai/gpt-4o"),
		OpenRouterBaseURL: os.Getenv("OPENROUTER_BASE_URL"),

		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIAssistantID: os.Getenv("OPENAI_ASSISTANT_ID"),
		OpenAIModel:       envOrDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),

		FreepikKey:     os.Getenv("FREEPIK_API_KEY"),
		FreepikBaseURL: os.Getenv("FREEPIK_BASE_URL"),

		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: envOrDefault("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModel:   envOrDefault("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		ElevenLabsBaseURL: os.Getenv("ELEVENLABS_BASE_URL"),
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.AuthSecret == "dev-secret" {
			return nil, fmt.Errorf("AUTH_SECRET must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
