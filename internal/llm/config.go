// Package llm wraps the server-side language model used to assess CV
// sections.
package llm

import "os"

// ModelTier represents the capability level of a model.
type ModelTier string

const (
	// TierLite is for short, single-entry assessments.
	TierLite ModelTier = "lite"
	// TierStandard is for whole-section assessments.
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider.
type Provider string

// ProviderGemini is the Google Gemini provider.
const ProviderGemini Provider = "gemini"

// Config holds the model configuration.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature: 0.2,
	}
}

// ConfigFromEnv returns DefaultConfig with GEMINI_MODEL and
// GEMINI_LITE_MODEL overrides applied.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg = cfg.WithModel(TierStandard, model)
	}
	if model := os.Getenv("GEMINI_LITE_MODEL"); model != "" {
		cfg = cfg.WithModel(TierLite, model)
	}
	return cfg
}

// GetModel returns the model name for tier, falling back to the standard
// then the lite model.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	return c.Models[TierLite]
}

// WithModel returns a copy of c using model for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)+1),
		Temperature: c.Temperature,
	}
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return out
}
