// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package embeddings

import (
	"context"
	"fmt"

	"github.com/aetherlink/engram/internal/hash"
	"github.com/dgraph-io/ristretto"
)

// CachingClient wraps a Client with an in-process embedding cache, so
// repeated embeds of the same text (query re-runs, dedup checks) do not
// hit the provider again. The cache is best-effort: a miss or rejected
// admission just falls through to the wrapped client.
type CachingClient struct {
	inner Client
	cache *ristretto.Cache
}

// NewCachingClient wraps client with a cache sized for maxEntries texts.
func NewCachingClient(client Client, maxEntries int64) (*CachingClient, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	dims := client.Dimensions()
	if dims <= 0 {
		dims = DefaultDimensions
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries * int64(dims) * 4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &CachingClient{
		inner: client,
		cache: cache,
	}, nil
}

// Embed returns the cached vector for text, or embeds and caches it.
// Entries are keyed by content hash rather than the raw text so long
// inputs do not bloat the key space.
func (c *CachingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := hash.Sum(text)
	if cached, ok := c.cache.Get(key); ok {
		if vec, ok := cached.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, vec, int64(len(vec))*4)
	return vec, nil
}

// Dimensions returns the wrapped client's vector size.
func (c *CachingClient) Dimensions() int {
	return c.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied. Test helper.
func (c *CachingClient) Wait() {
	c.cache.Wait()
}

// Clear drops all cached embeddings. Called when the embedding model
// changes, since vectors from different models are not interchangeable.
func (c *CachingClient) Clear() {
	c.cache.Clear()
}
