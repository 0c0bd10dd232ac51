package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string

	// Client side.
	APIBaseURL        string
	SessionDBPath     string
	OutputDir         string
	PollInterval      time.Duration
	GenerationTimeout time.Duration
	HTTPTimeout       time.Duration

	// Stub service (cmd/scriptgen-stub only).
	Port              string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	StubCompleteAfter time.Duration
	StubFailMode      string
	StubCreditsNeeded int
	StubCreditsOwned  int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A .env file is honoured when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		APIBaseURL:        getEnv("SCRIPTGEN_API_URL", "http://localhost:8080"),
		SessionDBPath:     getEnv("SCRIPTGEN_SESSION_DB", ".scriptgen/session.db"),
		OutputDir:         getEnv("SCRIPTGEN_OUTPUT_DIR", "output"),
		PollInterval:      time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 300)),
		HTTPTimeout:       time.Second * time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)),
		Port:              getEnv("PORT", "8080"),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		StubCompleteAfter: time.Second * time.Duration(getEnvInt("STUB_COMPLETE_AFTER_SECONDS", 20)),
		StubFailMode:      getEnv("STUB_FAIL_MODE", ""),
		StubCreditsNeeded: getEnvInt("STUB_CREDITS_REQUIRED", 500),
		StubCreditsOwned:  getEnvInt("STUB_CREDITS_AVAILABLE", 120),
	}

	if _, err := url.Parse(cfg.APIBaseURL); err != nil || strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("SCRIPTGEN_API_URL is invalid: %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.GenerationTimeout <= 0 {
		return nil, fmt.Errorf("GENERATION_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
