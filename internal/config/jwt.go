package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultJWTIssuer  = "cv-editor"
	minJWTSecretBytes = 16
)

// JWTConfig signs the bearer tokens minted by "cv_editor token" and checks
// them on every editor request.
type JWTConfig struct {
	Secret          string
	Issuer          string
	ExpirationHours int
}

// NewJWTConfig loads JWT_SECRET, JWT_ISSUER and JWT_EXPIRATION_HOURS.
// Only the secret has no default.
func NewJWTConfig() (*JWTConfig, error) {
	cfg := &JWTConfig{
		Secret: os.Getenv("JWT_SECRET"),
		Issuer: envOr("JWT_ISSUER", defaultJWTIssuer),
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	hours, err := strconv.Atoi(envOr("JWT_EXPIRATION_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
	}
	cfg.ExpirationHours = hours

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TokenLifetime is how long a minted token stays valid.
func (c *JWTConfig) TokenLifetime() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	if len(c.Secret) < minJWTSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretBytes)
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
