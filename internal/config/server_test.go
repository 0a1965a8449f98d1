package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setServerEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "GEMINI_API_KEY", "PORT", "AI_DAILY_QUOTA",
		"BROWSER_AI_MODEL_TYPE", "BROWSER_AI_MODEL", "CSRF_SECRET", "JWT_SECRET",
		"CORS_ALLOWED_ORIGIN",
	} {
		t.Setenv(key, env[key])
	}
}

func TestNewServerConfig_Defaults(t *testing.T) {
	setServerEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/cv",
		"JWT_SECRET":   testSecret,
	})

	cfg, err := NewServerConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 20, cfg.DailyQuota)
	assert.Equal(t, "webllm", cfg.BrowserModelType)
	assert.Equal(t, "phi3:mini", cfg.BrowserModel)
	assert.Equal(t, testSecret, cfg.CSRFSecret)
	assert.Equal(t, "*", cfg.AllowedOrigin)
}

func TestNewServerConfig_Overrides(t *testing.T) {
	setServerEnv(t, map[string]string{
		"DATABASE_URL":          "postgres://localhost/cv",
		"PORT":                  "9000",
		"AI_DAILY_QUOTA":        "0",
		"BROWSER_AI_MODEL_TYPE": " TensorFlow ",
		"BROWSER_AI_MODEL":      "mobilebert",
		"CSRF_SECRET":           "csrf-secret",
	})

	cfg, err := NewServerConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 0, cfg.DailyQuota)
	assert.Equal(t, "tensorflow", cfg.BrowserModelType)
	assert.Equal(t, "csrf-secret", cfg.CSRFSecret)
}

func TestNewServerConfig_Errors(t *testing.T) {
	base := map[string]string{"DATABASE_URL": "postgres://localhost/cv", "JWT_SECRET": testSecret}
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing database", "DATABASE_URL", "", "DATABASE_URL is required"},
		{"bad port", "PORT", "http", "invalid PORT"},
		{"port range", "PORT", "70000", "between 1 and 65535"},
		{"bad quota", "AI_DAILY_QUOTA", "lots", "invalid AI_DAILY_QUOTA"},
		{"unknown model type", "BROWSER_AI_MODEL_TYPE", "onnx", "webllm or tensorflow"},
		{"missing secret", "JWT_SECRET", "", "CSRF_SECRET or JWT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range base {
				env[k] = v
			}
			env[tt.key] = tt.value
			setServerEnv(t, env)

			_, err := NewServerConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
