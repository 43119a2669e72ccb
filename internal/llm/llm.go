// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the language-model inference collaborator: a thin client
// over an OpenAI-compatible chat completions API. Agents depend on the
// Client interface so tests can supply a mock.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/decision-engine/internal/retry"
	"github.com/pdiddy/decision-engine/pkg/types"
)

// Request is one completion call. System carries the agent's role prompt,
// User carries the idea and any gathered context.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Client completes a prompt into model output. Implementations return the
// raw text; callers parse it against their expected structure.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// openaiAPIURL is the chat completions endpoint. Declared as a var so
// tests can substitute an httptest server.
var openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient calls an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	cfg    types.AIConfig
	client *http.Client
}

// NewOpenAIClient builds a client from configuration. The HTTP client
// carries the configured per-call timeout.
func NewOpenAIClient(cfg types.AIConfig) *OpenAIClient {
	return &OpenAIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion request. Temperature is pinned to 0
// for reproducible analysis. Non-2xx statuses are returned as
// *retry.HTTPStatusError so the retry executor can classify them.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", retry.Permanent(fmt.Errorf("model API key not configured"))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:      maxTokens,
		Temperature:    0,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("encoding request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiAPIURL, bytes.NewReader(payload))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("model API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &retry.HTTPStatusError{Status: resp.StatusCode, Body: string(snippet)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parsing model response: %w", err)
	}
	if parsed.Error != nil {
		return "", retry.Permanent(fmt.Errorf("model API error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
