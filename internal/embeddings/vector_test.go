// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}
	d := []float32{-1, 0, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity(a, c), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity(a, d), 1e-6)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0}

	// Vectors of differing dimensionality score zero, never panic.
	assert.Equal(t, 0.0, CosineSimilarity(a, b))
	assert.Equal(t, 0.0, CosineSimilarity(nil, a))
	assert.Equal(t, 0.0, CosineSimilarity(a, nil))
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestNormalize(t *testing.T) {
	vec := []float32{1, 2, 3, 4}

	assert.Len(t, Normalize(vec, 2), 2)
	assert.Equal(t, vec, Normalize(vec, 4))
	assert.Equal(t, vec, Normalize(vec, 0))

	padded := Normalize(vec, 6)
	require.Len(t, padded, 6)
	assert.Equal(t, float32(4), padded[3])
	assert.Equal(t, float32(0), padded[4])
	assert.Equal(t, float32(0), padded[5])
}

func TestBlobRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.75, 0}
	blob := Float32SliceToBlob(vec)
	require.Len(t, blob, 16)
	assert.Equal(t, vec, BlobToFloat32Slice(blob))
}

func TestBlobToFloat32Slice_Malformed(t *testing.T) {
	assert.Nil(t, BlobToFloat32Slice([]byte{1, 2, 3}))
	assert.Nil(t, BlobToFloat32Slice(nil))
}

func TestMockClient_Deterministic(t *testing.T) {
	mock := NewMockClient(64)

	v1, err := mock.Embed(context.Background(), "用户喜欢深色模式")
	require.NoError(t, err)
	v2, err := mock.Embed(context.Background(), "用户喜欢深色模式")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.InDelta(t, 1.0, CosineSimilarity(v1, v2), 1e-6)

	v3, err := mock.Embed(context.Background(), "something entirely different")
	require.NoError(t, err)
	assert.Less(t, CosineSimilarity(v1, v3), 0.99)
}

func TestCachingClient(t *testing.T) {
	mock := NewMockClient(32)
	cached, err := NewCachingClient(mock, 128)
	require.NoError(t, err)

	v1, err := cached.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.CallCount)

	cached.Wait()

	v2, err := cached.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, mock.CallCount, "second embed should be served from cache")

	assert.Equal(t, 32, cached.Dimensions())
}
