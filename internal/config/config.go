// Package config loads the editor client configuration file and the
// server's environment configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/cv-editor/internal/modelcache"
	"github.com/jonathan/cv-editor/internal/prefs"
)

// Duration is a time.Duration written as a Go duration string ("15s").
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config is the editor client configuration. Every field is optional;
// missing values come from Defaults or CLI flags.
type Config struct {
	ServerURL string `json:"server_url,omitempty" validate:"omitempty,url"`
	Token     string `json:"token,omitempty"`
	CSRFToken string `json:"csrf_token,omitempty"`

	ModelCachePath   string `json:"model_cache_path,omitempty"`
	RuntimeURL       string `json:"runtime_url,omitempty" validate:"omitempty,url"`
	TensorLibraryURL string `json:"tensor_library_url,omitempty" validate:"omitempty,url"`
	TensorModelsURL  string `json:"tensor_models_url,omitempty" validate:"omitempty,url"`
	UseChrome        bool   `json:"use_chrome,omitempty"`

	PrefsDir string `json:"prefs_dir,omitempty"`

	FetchTimeout  Duration `json:"fetch_timeout,omitempty" validate:"gte=0"`
	AssessTimeout Duration `json:"assess_timeout,omitempty" validate:"gte=0"`
}

// Defaults returns the built-in client configuration.
func Defaults() Config {
	return Config{
		ServerURL:        "http://localhost:8080",
		ModelCachePath:   modelcache.DefaultPath(),
		RuntimeURL:       "http://localhost:11434",
		TensorLibraryURL: "https://cdn.jsdelivr.net/npm/@tensorflow/tfjs/dist/tf.min.js",
		TensorModelsURL:  "https://storage.googleapis.com/tfjs-models/savedmodel",
		PrefsDir:         prefs.DefaultDir(),
		FetchTimeout:     Duration(15 * time.Second),
		AssessTimeout:    Duration(5 * time.Minute),
	}
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// Validate checks field formats.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// MergeWithDefaults returns c with empty fields filled from defaults.
// Booleans are not merged since unset and false cannot be told apart.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	for _, f := range []struct {
		dst *string
		src string
	}{
		{&result.ServerURL, defaults.ServerURL},
		{&result.Token, defaults.Token},
		{&result.CSRFToken, defaults.CSRFToken},
		{&result.ModelCachePath, defaults.ModelCachePath},
		{&result.RuntimeURL, defaults.RuntimeURL},
		{&result.TensorLibraryURL, defaults.TensorLibraryURL},
		{&result.TensorModelsURL, defaults.TensorModelsURL},
		{&result.PrefsDir, defaults.PrefsDir},
	} {
		if *f.dst == "" {
			*f.dst = f.src
		}
	}

	if result.FetchTimeout == 0 {
		result.FetchTimeout = defaults.FetchTimeout
	}
	if result.AssessTimeout == 0 {
		result.AssessTimeout = defaults.AssessTimeout
	}
	return result
}
