package browserai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ChatFactory creates chat-completion engines backed by a local
// Ollama-compatible runtime: models are pulled through /api/pull and
// prompted through the OpenAI-compatible /v1/chat/completions endpoint.
type ChatFactory struct {
	BaseURL string
	Client  *http.Client
}

// NewChatFactory returns a factory for the runtime at baseURL.
func NewChatFactory(baseURL string, client *http.Client) *ChatFactory {
	if client == nil {
		client = http.DefaultClient
	}
	return &ChatFactory{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

// Library implements EngineFactory.
func (f *ChatFactory) Library() Library {
	return Library{Name: "chat runtime", URL: f.BaseURL + "/api/version"}
}

type pullStatus struct {
	Status    string `json:"status"`
	Digest    string `json:"digest"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

// Create implements EngineFactory. It pulls modelName, streaming download progress.
func (f *ChatFactory) Create(ctx context.Context, modelName string, onProgress ProgressFunc) (Engine, error) {
	body, _ := json.Marshal(map[string]any{"model": modelName, "stream": true})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model pull failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model pull returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	layers := map[string]int64{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var st pullStatus
		if err := json.Unmarshal(line, &st); err != nil {
			continue
		}
		if st.Error != "" {
			return nil, fmt.Errorf("model pull failed: %s", st.Error)
		}
		p := Progress{Stage: StageDownloading, Message: st.Status}
		if st.Total > 0 {
			layers[st.Digest] = st.Total
			p.Percent = float64(st.Completed) / float64(st.Total) * 100
		}
		onProgress.report(p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("model pull interrupted: %w", err)
	}

	var size int64
	for _, n := range layers {
		size += n
	}
	return &chatEngine{factory: f, model: modelName, size: size}, nil
}

type chatEngine struct {
	factory *ChatFactory
	model   string
	size    int64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e *chatEngine) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       e.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.Stop,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.factory.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.factory.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode completion (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion returned status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion")
	}
	return out.Choices[0].Message.Content, nil
}

func (e *chatEngine) EstimatedSize() int64 {
	return e.size
}

// Close unloads the model from the runtime so its GPU memory is released.
func (e *chatEngine) Close(ctx context.Context) error {
	body, _ := json.Marshal(map[string]any{"model": e.model, "keep_alive": 0})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.factory.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.factory.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to unload model: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}
