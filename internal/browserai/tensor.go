package browserai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// TensorFactory creates tensor-graph engines from a layers/graph model.json
// manifest. These engines load models but cannot generate text.
type TensorFactory struct {
	LibraryURL string
	ModelsURL  string
	Client     *http.Client
}

// NewTensorFactory returns a factory loading manifests from modelsURL/<name>/model.json.
func NewTensorFactory(libraryURL, modelsURL string, client *http.Client) *TensorFactory {
	if client == nil {
		client = http.DefaultClient
	}
	return &TensorFactory{LibraryURL: libraryURL, ModelsURL: strings.TrimRight(modelsURL, "/"), Client: client}
}

// Library implements EngineFactory.
func (f *TensorFactory) Library() Library {
	return Library{Name: "tensorflow.js", URL: f.LibraryURL}
}

type graphManifest struct {
	Format          string `json:"format"`
	WeightsManifest []struct {
		Paths   []string `json:"paths"`
		Weights []struct {
			Name  string `json:"name"`
			Shape []int  `json:"shape"`
			Dtype string `json:"dtype"`
		} `json:"weights"`
	} `json:"weightsManifest"`
}

// Create implements EngineFactory.
func (f *TensorFactory) Create(ctx context.Context, modelName string, onProgress ProgressFunc) (Engine, error) {
	url := f.ModelsURL + "/" + modelName + "/model.json"
	onProgress.report(Progress{Stage: StageDownloading, Message: "Loading model graph"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model manifest returned status %d", resp.StatusCode)
	}

	var manifest graphManifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("invalid model manifest: %w", err)
	}
	onProgress.report(Progress{Stage: StageDownloading, Message: "Model graph loaded", Percent: 100})

	return &tensorEngine{manifest: &manifest, size: manifestSize(&manifest)}, nil
}

// manifestSize estimates weight bytes from tensor shapes and dtypes.
func manifestSize(m *graphManifest) int64 {
	var total int64
	for _, group := range m.WeightsManifest {
		for _, w := range group.Weights {
			n := int64(1)
			for _, d := range w.Shape {
				n *= int64(d)
			}
			total += n * dtypeBytes(w.Dtype)
		}
	}
	return total
}

func dtypeBytes(dtype string) int64 {
	switch dtype {
	case "bool", "uint8", "int8":
		return 1
	case "float16", "int16":
		return 2
	default:
		return 4
	}
}

type tensorEngine struct {
	manifest *graphManifest
	size     int64
}

func (e *tensorEngine) Generate(context.Context, string, GenerateOptions) (string, error) {
	return "", fmt.Errorf("text generation with the tensorflow engine is not yet supported: %w", ErrUnsupportedOperation)
}

func (e *tensorEngine) EstimatedSize() int64 {
	return e.size
}

func (e *tensorEngine) Close(context.Context) error {
	e.manifest = nil
	return nil
}
