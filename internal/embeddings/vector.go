// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package embeddings

import (
	"encoding/binary"
	"math"
)

// DefaultDimensions is the unified vector size (text-embedding-3-small).
// Vectors from models with other dimensionalities are normalized to this
// size so records written under different embedding models stay comparable.
const DefaultDimensions = 1536

// CosineSimilarity computes the cosine similarity of two vectors.
// Vectors of differing dimensionality are not comparable and score 0;
// callers exclude such records from similarity results.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize coerces a vector to the target dimensionality: longer vectors
// are truncated, shorter ones zero-padded. targetDim <= 0 leaves the
// vector unchanged.
func Normalize(vec []float32, targetDim int) []float32 {
	if targetDim <= 0 || len(vec) == targetDim {
		return vec
	}

	if len(vec) > targetDim {
		return vec[:targetDim]
	}

	padded := make([]float32, targetDim)
	copy(padded, vec)
	return padded
}

// Float32SliceToBlob converts a float32 slice to a little-endian byte
// slice for storage in a blob column.
func Float32SliceToBlob(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		binary.LittleEndian.PutUint32(buf[i*4:], bits)
	}
	return buf
}

// BlobToFloat32Slice converts a stored blob back to a float32 slice.
// Returns nil for malformed blobs.
func BlobToFloat32Slice(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}
