package browserai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jonathan/cv-editor/internal/modelcache"
)

// ModelCache is the subset of the model cache store the adapter needs.
type ModelCache interface {
	Get(ctx context.Context, modelName, modelType string) (*modelcache.Record, error)
	Save(ctx context.Context, rec *modelcache.Record) error
}

// session is the single active engine of an Adapter.
type session struct {
	modelType ModelType
	modelName string
	engine    Engine
}

// Adapter is a unified front over the available engines. It holds at most
// one session; callers should Cleanup after every generation.
type Adapter struct {
	probe     Probe
	loader    *Loader
	cache     ModelCache
	factories map[ModelType]EngineFactory

	mu      sync.Mutex
	session *session
}

// NewAdapter creates an adapter. cache may be nil to disable artifact tracking.
func NewAdapter(probe Probe, loader *Loader, cache ModelCache, factories map[ModelType]EngineFactory) *Adapter {
	if loader == nil {
		loader = NewLoader(nil)
	}
	return &Adapter{
		probe:     probe,
		loader:    loader,
		cache:     cache,
		factories: factories,
	}
}

// CheckSupport reports device capabilities. Sufficient is true iff GPU
// compute or GPU graphics is available.
func (a *Adapter) CheckSupport(ctx context.Context) (Support, error) {
	if a.probe == nil {
		return Support{}, nil
	}
	return a.probe.Probe(ctx)
}

// Init loads the runtime library for modelType, consults the model cache and
// constructs the engine, reporting progress through onProgress. Any previous
// session is released first.
func (a *Adapter) Init(ctx context.Context, modelType ModelType, modelName string, onProgress ProgressFunc) error {
	factory, ok := a.factories[modelType]
	if !ok {
		return &InitializationError{ModelType: modelType, ModelName: modelName, Message: "unrecognized model type"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.cleanupLocked(ctx); err != nil {
		log.Printf("[browserai] releasing previous session: %v", err)
	}

	if err := a.loader.Load(ctx, factory.Library()); err != nil {
		return &InitializationError{ModelType: modelType, ModelName: modelName, Message: "library failed to load", Cause: err}
	}

	onProgress.report(Progress{Stage: StageCheckingCache, Message: "Checking for cached model..."})
	var cached *modelcache.Record
	if a.cache != nil {
		rec, err := a.cache.Get(ctx, modelName, string(modelType))
		if err != nil {
			log.Printf("[browserai] cache lookup failed for %s: %v", modelName, err)
		}
		cached = rec
	}

	if cached == nil {
		onProgress.report(Progress{Stage: StageDownloading, Message: fmt.Sprintf("Downloading %s...", modelName)})
	} else {
		onProgress.report(Progress{Stage: StageDownloading, Message: fmt.Sprintf("Loading cached %s...", modelName)})
	}

	engine, err := a.create(ctx, factory, modelName, onProgress)
	if err != nil {
		return &InitializationError{ModelType: modelType, ModelName: modelName, Message: "engine construction failed", Cause: err}
	}

	if cached == nil && a.cache != nil {
		onProgress.report(Progress{Stage: StageCaching, Message: "Caching model for next time..."})
		rec := &modelcache.Record{
			ModelName: modelName,
			ModelType: string(modelType),
			Version:   modelcache.DefaultVersion,
			Size:      engine.EstimatedSize(),
		}
		if err := a.cache.Save(ctx, rec); err != nil {
			log.Printf("[browserai] failed to record cached model %s: %v", modelName, err)
		}
	}

	a.session = &session{modelType: modelType, modelName: modelName, engine: engine}
	onProgress.report(Progress{Stage: StageReady, Message: "Model ready", Percent: 100})
	return nil
}

// create runs the factory, converting a panic into an error.
func (a *Adapter) create(ctx context.Context, factory EngineFactory, modelName string, onProgress ProgressFunc) (engine Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panicked: %v", r)
		}
	}()
	return factory.Create(ctx, modelName, onProgress)
}

// Generate runs prompt through the active engine.
func (a *Adapter) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return "", ErrNotInitialized
	}

	text, err := a.session.engine.Generate(ctx, prompt, buildOptions(opts))
	if err != nil {
		msg := "engine error"
		if errors.Is(err, ErrUnsupportedOperation) {
			msg = "unsupported operation"
		}
		return "", &GenerationError{ModelType: a.session.modelType, Message: msg, Cause: err}
	}
	return text, nil
}

// Active returns the current model type and name, if any.
func (a *Adapter) Active() (ModelType, string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return "", "", false
	}
	return a.session.modelType, a.session.modelName, true
}

// Cleanup releases the active engine. It is a no-op when nothing is initialized.
func (a *Adapter) Cleanup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cleanupLocked(ctx)
}

func (a *Adapter) cleanupLocked(ctx context.Context) error {
	if a.session == nil {
		return nil
	}
	s := a.session
	a.session = nil
	if err := s.engine.Close(ctx); err != nil {
		return fmt.Errorf("failed to release %s engine: %w", s.modelType, err)
	}
	return nil
}
