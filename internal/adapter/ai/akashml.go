// Package ai implements port.AIProvider against the AkashML inference API
// (OpenAI-compatible chat completions).
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/port"
)

const (
	defaultTimeout = 60 * time.Second
	// maxResponseBytes caps model output kept in memory. Larger responses
	// are truncated, not rejected.
	maxResponseBytes = 100_000
	defaultMaxTokens = 4096
)

// defaultModels maps analysis depth to the serving model.
var defaultModels = map[domain.Depth]string{
	domain.DepthQuick:    "Qwen/Qwen3-30B-A3B",
	domain.DepthStandard: "meta-llama/Llama-3.3-70B-Instruct",
	domain.DepthDeep:     "deepseek-ai/DeepSeek-V3.2",
}

// Config holds the connection settings for one AkashML endpoint.
type Config struct {
	BaseURL    string // e.g. https://api.akashml.com/v1
	APIKey     string
	MaxRetries int                     // transient-failure retries per call
	Models     map[domain.Depth]string // optional depth→model overrides
}

// AkashClient talks to an OpenAI-compatible chat completions endpoint.
type AkashClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewAkashClient creates a provider client with a 60s per-call timeout.
func NewAkashClient(cfg Config) *AkashClient {
	return &AkashClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// ModelFor returns the model identifier serving the given depth.
func (a *AkashClient) ModelFor(depth domain.Depth) string {
	if m, ok := a.cfg.Models[depth]; ok && m != "" {
		return m
	}
	if m, ok := defaultModels[depth]; ok {
		return m
	}
	return defaultModels[domain.DepthStandard]
}

// Chat sends one completion request, retrying transient failures with
// exponential backoff. Permanent failures return immediately.
func (a *AkashClient) Chat(ctx context.Context, systemPrompt, userPrompt string, depth domain.Depth) (string, error) {
	model := a.ModelFor(depth)

	var content string
	err := retryWithBackoff(ctx, a.cfg.MaxRetries, func() error {
		var callErr error
		content, callErr = a.complete(ctx, model, systemPrompt, userPrompt)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (a *AkashClient) complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": 0.1,
		"max_tokens":  defaultMaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &port.ProviderError{Kind: "api_error", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &port.ProviderError{Kind: "api_error", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &port.ProviderError{Kind: "timeout", Transient: true, Err: err}
		}
		return "", &port.ProviderError{Kind: "connection", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", &port.ProviderError{Kind: "connection", Transient: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, raw)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", &port.ProviderError{Kind: "api_error", Transient: true, Err: fmt.Errorf("decode completion: %w", err)}
	}
	if len(cc.Choices) == 0 || cc.Choices[0].Message.Content == "" {
		return "", &port.ProviderError{Kind: "empty_response", Transient: true, Err: errors.New("model returned empty response")}
	}

	content := cc.Choices[0].Message.Content
	if len(content) > maxResponseBytes {
		content = content[:maxResponseBytes]
	}
	return content, nil
}

func classifyStatus(status int, body []byte) *port.ProviderError {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	err := fmt.Errorf("%s", preview)
	switch {
	case status == http.StatusTooManyRequests:
		return &port.ProviderError{Kind: "rate_limit", Status: status, Transient: true, Err: err}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &port.ProviderError{Kind: "auth", Status: status, Err: err}
	case status >= 500:
		return &port.ProviderError{Kind: "api_error", Status: status, Transient: true, Err: err}
	default:
		return &port.ProviderError{Kind: "api_error", Status: status, Err: err}
	}
}
