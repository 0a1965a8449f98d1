package browserai

import (
	"context"
	"fmt"
)

// ModelType selects an inference engine.
type ModelType string

const (
	// ModelTypeWebLLM is the chat-completion engine.
	ModelTypeWebLLM ModelType = "webllm"
	// ModelTypeTensorFlow is the tensor-graph engine.
	ModelTypeTensorFlow ModelType = "tensorflow"
)

// ParseModelType validates a model type string.
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(s) {
	case ModelTypeWebLLM, ModelTypeTensorFlow:
		return ModelType(s), nil
	}
	return "", fmt.Errorf("unknown model type %q", s)
}

// Support describes the device capabilities relevant to client-side inference.
type Support struct {
	GPUCompute        bool `json:"gpu_compute"`
	GPUGraphics       bool `json:"gpu_graphics"`
	PersistentStorage bool `json:"persistent_storage"`
	Sufficient        bool `json:"sufficient"`
}

// Stage names a phase of model initialization.
type Stage string

const (
	StageCheckingCache Stage = "checking_cache"
	StageDownloading   Stage = "downloading"
	StageCaching       Stage = "caching"
	StageReady         Stage = "ready"
)

// Progress is reported during Init.
type Progress struct {
	Stage   Stage   `json:"stage"`
	Message string  `json:"message"`
	Percent float64 `json:"progress,omitempty"`
}

// ProgressFunc receives initialization progress. It may be nil.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(p Progress) {
	if f != nil {
		f(p)
	}
}

// GenerateOptions tunes a single generation.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Defaults for GenerateOptions.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// GenerateOption mutates GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = t }
}

// WithMaxTokens caps the generated token count.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

// WithStop sets stop sequences.
func WithStop(stop ...string) GenerateOption {
	return func(o *GenerateOptions) { o.Stop = stop }
}

func buildOptions(opts []GenerateOption) GenerateOptions {
	o := GenerateOptions{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens, Stop: []string{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Engine is an initialized inference session.
type Engine interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	// EstimatedSize is the approximate artifact size in bytes, 0 if unknown.
	EstimatedSize() int64
	Close(ctx context.Context) error
}

// EngineFactory constructs engines of one model type.
type EngineFactory interface {
	Library() Library
	Create(ctx context.Context, modelName string, onProgress ProgressFunc) (Engine, error)
}
