// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic, dependency-free Embedder: it feature-
// hashes a text's whitespace tokens into a fixed-size vector and unit-
// normalizes the result. It produces no semantic similarity beyond shared
// vocabulary, but it is stable across processes and requires no external
// model, so the retrieval pipeline and indexer have something concrete to
// run against out of the box. A deployment that wants real semantic
// similarity swaps this for a provider-backed Embedder without touching
// any caller, since both satisfy the same interface.
type HashEmbedder struct {
	dimension int
	model     string
}

// NewHashEmbedder builds a HashEmbedder producing vectors of the given
// dimension. dimension <= 0 defaults to 256.
func NewHashEmbedder(dimension int, model string) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	if model == "" {
		model = "hash-v1"
	}
	return &HashEmbedder{dimension: dimension, model: model}
}

// Embed hashes text's tokens into the embedder's configured dimension.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

// EmbedBatch embeds each text independently.
func (h *HashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

// Dimension returns the configured vector dimension.
func (h *HashEmbedder) Dimension() int { return h.dimension }

// Model returns the embedder's model identifier.
func (h *HashEmbedder) Model() string { return h.model }

// Close is a no-op; HashEmbedder holds no external resources.
func (h *HashEmbedder) Close() error { return nil }

// vector implements the feature-hashing trick (Weinberger et al.): each
// token is hashed to a bucket and a sign, buckets accumulate signed
// term counts, and the result is L2-normalized so cosine similarity
// between two embeddings reduces to shared-vocabulary overlap.
func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		bucket, sign := h.hashToken(tok)
		v[bucket] += sign
	}
	normalize(v)
	return v
}

func (h *HashEmbedder) hashToken(tok string) (int, float32) {
	sum := fnv.New64a()
	sum.Write([]byte(tok))
	bucketHash := sum.Sum64()

	sum2 := fnv.New64a()
	sum2.Write([]byte(tok))
	sum2.Write([]byte{0xff})
	signHash := sum2.Sum64()

	bucket := int(bucketHash % uint64(h.dimension))
	sign := float32(1)
	if signHash%2 == 0 {
		sign = -1
	}
	return bucket, sign
}

func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range v {
		v[i] /= norm
	}
}
