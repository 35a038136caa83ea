// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package llm provides the chat-completion boundary used for fact
// extraction and memory-update decisions. The subsystem consumes this
// interface; it never interprets model output itself beyond passing the
// raw text to the prompt parsers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is a single role-tagged chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is the interface for chat-completion providers.
// Implementations must return the raw assistant text; callers are
// responsible for extracting structured data from it.
type Client interface {
	// Complete sends the messages to the model and returns the assistant's
	// text response.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIClient implements Client against an OpenAI-compatible
// /chat/completions endpoint.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// OpenAIChatRequest represents the request body for the chat completions API.
type OpenAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// OpenAIChatResponse represents the response from the chat completions API.
type OpenAIChatResponse struct {
	Choices []struct {
		Index   int     `json:"index"`
		Message Message `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
}

// OpenAIErrorResponse represents an error response from the API.
type OpenAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAIClient creates a new chat-completion client.
// Extraction and decision calls want low-variance output, so the
// temperature defaults low (0.3) and can be overridden via SetTemperature.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: 0.3,
		maxTokens:   4096,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetTemperature overrides the sampling temperature.
func (c *OpenAIClient) SetTemperature(t float64) {
	c.temperature = t
}

// Complete sends the messages to the configured model.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	reqBody := OpenAIChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp OpenAIErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("chat API error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("chat API error: status %d", resp.StatusCode)
	}

	var chatResp OpenAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// MockClient is a mock implementation for testing.
type MockClient struct {
	CompleteFunc func(messages []Message) (string, error)
	// Responses is consumed one entry per call when CompleteFunc is nil.
	Responses []string
	CallCount int
	// LastMessages records the messages of the most recent call.
	LastMessages []Message
}

// Complete calls the mock function, or pops the next scripted response.
func (m *MockClient) Complete(ctx context.Context, messages []Message) (string, error) {
	m.CallCount++
	m.LastMessages = messages
	if m.CompleteFunc != nil {
		return m.CompleteFunc(messages)
	}
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	return "", nil
}
