package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jonathan/cv-editor/internal/browserai"
	"github.com/jonathan/cv-editor/internal/config"
	"github.com/jonathan/cv-editor/internal/editorapi"
	"github.com/jonathan/cv-editor/internal/modelcache"
)

var (
	configPath string
	serverURL  string
	apiToken   string
	useChrome  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to client config JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Editor server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token (overrides CV_EDITOR_TOKEN and config)")
	rootCmd.PersistentFlags().BoolVar(&useChrome, "chrome", false, "Use headless Chrome for rendering and capability checks")
}

// loadClientConfig merges the config file, environment and flags over defaults.
func loadClientConfig() (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = *loaded
	}
	if token := os.Getenv("CV_EDITOR_TOKEN"); token != "" && cfg.Token == "" {
		cfg.Token = token
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if apiToken != "" {
		cfg.Token = apiToken
	}
	if useChrome {
		cfg.UseChrome = true
	}

	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

// newAPIClient creates an editor API client. Without a configured CSRF
// token one is fetched from the session endpoint.
func newAPIClient(ctx context.Context, cfg config.Config, httpClient *http.Client) (*editorapi.Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("an API token is required (use --token, CV_EDITOR_TOKEN or the config file)")
	}
	client, err := editorapi.New(cfg.ServerURL, httpClient, &editorapi.Options{
		Timeout:   time.Duration(cfg.FetchTimeout),
		Token:     cfg.Token,
		CSRFToken: cfg.CSRFToken,
	})
	if err != nil {
		return nil, err
	}
	if cfg.CSRFToken == "" {
		if _, err := client.Session(ctx); err != nil {
			return nil, fmt.Errorf("failed to start session: %w", err)
		}
	}
	return client, nil
}

// newProbe returns the capability probe. Without Chrome the local runtime
// is assumed to have GPU compute.
func newProbe(cfg config.Config) browserai.Probe {
	if cfg.UseChrome {
		return browserai.ChromeProbe{}
	}
	return browserai.StaticProbe{GPUCompute: true, PersistentStorage: true}
}

// newRuntime wires the local inference adapter to the model cache.
func newRuntime(cfg config.Config, store *modelcache.Store) *browserai.Adapter {
	return browserai.NewAdapter(newProbe(cfg), browserai.NewLoader(nil), store, map[browserai.ModelType]browserai.EngineFactory{
		browserai.ModelTypeWebLLM:     browserai.NewChatFactory(cfg.RuntimeURL, nil),
		browserai.ModelTypeTensorFlow: browserai.NewTensorFactory(cfg.TensorLibraryURL, cfg.TensorModelsURL, nil),
	})
}
