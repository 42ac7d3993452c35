package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported coach providers
const (
	CoachProviderGemini = "gemini"
	CoachProviderMock   = "mock"
)

// Supported conversation storage backends
const (
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

// Config contains all runtime settings for the coach server.
type Config struct {
	Port             string
	Env              string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	CoachProvider     string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTemperature float32
	CoachTimeout      time.Duration

	JWTSecret string

	StorageBackend            string
	MongoURI                  string
	MongoDatabase             string
	DatabaseURL               string
	ConversationCleanupPeriod time.Duration

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string

	LiveTranscriptEnabled  bool
	LiveTranscriptLanguage string
}

// Load reads environment variables and applies defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                   envOrDefault("PORT", "8080"),
		Env:                    envOrDefault("APP_ENV", "production"),
		MetricsNamespace:       envOrDefault("METRICS_NAMESPACE", "echo_coach"),
		CoachProvider:          strings.ToLower(envOrDefault("COACH_PROVIDER", CoachProviderGemini)),
		GeminiAPIKey:           strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:            envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTemperature:      0.2,
		JWTSecret:              strings.TrimSpace(os.Getenv("JWT_SECRET")),
		StorageBackend:         strings.ToLower(envOrDefault("STORAGE_BACKEND", StorageMemory)),
		MongoURI:               envOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:          envOrDefault("MONGODB_DATABASE", "echocoach"),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ElevenLabsAPIKey:       strings.TrimSpace(os.Getenv("ELEVEN_LABS_API_KEY")),
		ElevenLabsVoiceID:      strings.TrimSpace(os.Getenv("ELEVEN_LABS_VOICE_ID")),
		LiveTranscriptLanguage: envOrDefault("LIVE_TRANSCRIPT_LANGUAGE", "en-US"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.CoachTimeout, err = durationFromEnv("COACH_TIMEOUT", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ConversationCleanupPeriod, err = durationFromEnv("CONVERSATION_CLEANUP_INTERVAL", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.GeminiTemperature, err = float32FromEnv("GEMINI_TEMPERATURE", cfg.GeminiTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.LiveTranscriptEnabled, err = boolFromEnv("LIVE_TRANSCRIPT_ENABLED", false)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.CoachProvider {
	case CoachProviderGemini, CoachProviderMock:
	default:
		return fmt.Errorf("COACH_PROVIDER must be one of %s, %s", CoachProviderGemini, CoachProviderMock)
	}

	switch c.StorageBackend {
	case StorageMemory, StorageMongo:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of %s, %s, %s", StorageMemory, StorageMongo, StoragePostgres)
	}

	if c.GeminiTemperature < 0 || c.GeminiTemperature > 1 {
		return fmt.Errorf("GEMINI_TEMPERATURE must be between 0 and 1, got %v", c.GeminiTemperature)
	}
	if c.CoachTimeout <= 0 {
		return fmt.Errorf("COACH_TIMEOUT must be positive")
	}
	if c.ConversationCleanupPeriod < time.Minute {
		return fmt.Errorf("CONVERSATION_CLEANUP_INTERVAL must be at least 1m")
	}
	return nil
}

// IsDevelopment reports whether verbose development logging should be used.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func float32FromEnv(key string, fallback float32) (float32, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return float32(f), nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
