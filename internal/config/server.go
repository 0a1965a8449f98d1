package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ServerConfig is the environment configuration of the editor server.
type ServerConfig struct {
	Port         int
	DatabaseURL  string
	RedisURL     string
	GeminiAPIKey string
	// DailyQuota is the server-side assessments per user per day. Zero or
	// less sends every assessment to browser execution.
	DailyQuota int
	// BrowserModelType and BrowserModel are sent to clients for browser
	// execution.
	BrowserModelType string
	BrowserModel     string
	// CSRFSecret signs per-user form tokens. Defaults to JWT_SECRET.
	CSRFSecret    string
	AllowedOrigin string
}

// NewServerConfig reads the server configuration from the environment.
func NewServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:             8080,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		DailyQuota:       20,
		BrowserModelType: envOr("BROWSER_AI_MODEL_TYPE", "webllm"),
		BrowserModel:     envOr("BROWSER_AI_MODEL", "phi3:mini"),
		CSRFSecret:       envOr("CSRF_SECRET", os.Getenv("JWT_SECRET")),
		AllowedOrigin:    envOr("CORS_ALLOWED_ORIGIN", "*"),
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %v", err)
		}
		cfg.Port = p
	}
	if quota := os.Getenv("AI_DAILY_QUOTA"); quota != "" {
		q, err := strconv.Atoi(quota)
		if err != nil {
			return nil, fmt.Errorf("invalid AI_DAILY_QUOTA: %v", err)
		}
		cfg.DailyQuota = q
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServerConfig) normalize() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required but not set")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}
	if c.CSRFSecret == "" {
		return fmt.Errorf("CSRF_SECRET or JWT_SECRET is required but not set")
	}
	c.BrowserModelType = strings.ToLower(strings.TrimSpace(c.BrowserModelType))
	if c.BrowserModelType != "webllm" && c.BrowserModelType != "tensorflow" {
		return fmt.Errorf("BROWSER_AI_MODEL_TYPE must be webllm or tensorflow, got: %q", c.BrowserModelType)
	}
	if c.BrowserModel == "" {
		return fmt.Errorf("BROWSER_AI_MODEL cannot be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
