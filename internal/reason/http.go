package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// HTTPEngine calls a chat-completion style reasoning service over HTTP.
// The per-call deadline comes from the caller's context; the client timeout
// is only a hard backstop.
type HTTPEngine struct {
	url         string
	model       string
	temperature float64
	apiKey      string
	hc          *http.Client
}

// NewHTTPEngine creates a reasoning client from configuration.
func NewHTTPEngine(cfg domain.ReasoningConfig) *HTTPEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEngine{
		url:         cfg.URL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		apiKey:      cfg.APIKey,
		hc:          &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Prompt      string  `json:"prompt"`
}

type completionResponse struct {
	Output string `json:"output"`
}

// Review sends the rendered review context and returns the engine's raw text.
func (e *HTTPEngine) Review(ctx context.Context, rc *ReviewContext) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Prompt:      BuildPrompt(rc),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode review request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("reasoning engine call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reasoning engine returned status %d", resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("malformed reasoning response: %w", err)
	}
	if out.Output == "" {
		return "", fmt.Errorf("reasoning engine returned empty output")
	}
	return out.Output, nil
}
