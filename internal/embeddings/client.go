// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package embeddings provides the embedding boundary for semantic memory
// search: an OpenAI-compatible client, cosine similarity with a
// dimensionality guard, vector blob encoding for storage, and an
// in-process cache.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"time"
)

// Client is the interface for embedding providers.
type Client interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector size this client produces.
	Dimensions() int
}

// OpenAIClient implements the Client interface for OpenAI-compatible
// /embeddings endpoints.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

// OpenAIEmbeddingRequest represents the request body for the embeddings API.
type OpenAIEmbeddingRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// OpenAIEmbeddingResponse represents the response from the embeddings API.
type OpenAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
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

// NewOpenAIClient creates a new embedding client.
// dimensions is the target vector size; pass 0 to accept whatever the
// model returns.
func NewOpenAIClient(baseURL, apiKey, model string, dimensions int) *OpenAIClient {
	return &OpenAIClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Embed generates an embedding vector for the given text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := OpenAIEmbeddingRequest{
		Input: text,
		Model: c.model,
	}

	// Only include dimensions if explicitly set and supported by model
	if c.dimensions > 0 {
		reqBody.Dimensions = c.dimensions
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp OpenAIErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("embedding API error: %s", errResp.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error: status %d", resp.StatusCode)
	}

	var embResp OpenAIEmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embResp.Data[0].Embedding, nil
}

// Dimensions returns the configured vector size.
func (c *OpenAIClient) Dimensions() int {
	if c.dimensions > 0 {
		return c.dimensions
	}
	return DefaultDimensions
}

// MockClient is a deterministic mock for testing. It generates
// pseudo-random unit vectors seeded from a text hash, so identical texts
// always embed identically and similar-text lookups round-trip.
type MockClient struct {
	Dim       int
	EmbedFunc func(text string) ([]float32, error)
	CallCount int
}

// NewMockClient creates a mock embedder with the given dimensionality.
func NewMockClient(dim int) *MockClient {
	return &MockClient{Dim: dim}
}

// Embed returns a deterministic embedding for the text.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	m.CallCount++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(text)
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.Dim)
	for i := range vec {
		// Linear congruential step
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = float32(math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec, nil
}

// Dimensions returns the mock vector size.
func (m *MockClient) Dimensions() int {
	return m.Dim
}
