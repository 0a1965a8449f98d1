// Package browserai runs model inference on the client when server-side AI quota is exhausted.
package browserai

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedEnvironment means neither GPU compute nor GPU graphics is available.
	ErrUnsupportedEnvironment = errors.New("this device does not support in-browser AI (no WebGPU or WebGL)")
	// ErrNotInitialized means Generate was called before Init.
	ErrNotInitialized = errors.New("browser AI is not initialized")
	// ErrUnsupportedOperation means the active engine cannot perform the request.
	ErrUnsupportedOperation = errors.New("operation not supported by this engine")
)

// InitializationError reports a failed Init: unknown model type, library
// load failure or engine construction failure. It is not retried internally.
type InitializationError struct {
	ModelType ModelType
	ModelName string
	Message   string
	Cause     error
}

func (e *InitializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to initialize %s model %q: %s: %v", e.ModelType, e.ModelName, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to initialize %s model %q: %s", e.ModelType, e.ModelName, e.Message)
}

func (e *InitializationError) Unwrap() error {
	return e.Cause
}

// GenerationError wraps a failure raised while generating text.
type GenerationError struct {
	ModelType ModelType
	Message   string
	Cause     error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s generation failed: %s: %v", e.ModelType, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s generation failed: %s", e.ModelType, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
