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

package memorystore

import (
	"context"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/embedder"
	"github.com/dmmproject/agentos/internal/vectorindex"
)

// vectorCollection is the chromem-go collection memories are mirrored into
// for ANN pre-filtering ahead of the mandated exact cosine pass.
const vectorCollection = "memories"

// Indexer computes a Memory's embeddings and keeps the vector provider's
// ANN pre-filter index in sync with the SQL system of record. It is the
// only writer of CompositeEmbedding/DirectoryEmbedding.
type Indexer struct {
	store    *Store
	embedder embedder.Embedder
	vectors  vectorindex.Provider
}

// NewIndexer builds an Indexer. vectors may be vectorindex.NilProvider{}
// when no ANN pre-filter is configured; the exact cosine pass in
// Store.SearchByVector still works without it.
func NewIndexer(store *Store, emb embedder.Embedder, vectors vectorindex.Provider) *Indexer {
	if vectors == nil {
		vectors = vectorindex.NilProvider{}
	}
	return &Indexer{store: store, embedder: emb, vectors: vectors}
}

// IndexMemory embeds m's body, recomputes its directory's running average
// embedding, and upserts the composite embedding into the vector provider;
// the directory embedding is only set on m (spec.md §3:
// "two embeddings (composite of the text, directory-level average)").
// Changing the embedder requires a full reindex (spec.md §6); this method
// does not detect that on its own — callers orchestrate a full resync.
func (ix *Indexer) IndexMemory(ctx context.Context, m *domain.Memory) error {
	vec, err := ix.embedder.Embed(ctx, m.Body)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "memorystore.IndexMemory", "embed", err)
	}
	m.CompositeEmbedding = vec

	dirVec, err := ix.directoryAverage(ctx, m.Directory, vec)
	if err != nil {
		return err
	}
	m.DirectoryEmbedding = dirVec

	metadata := map[string]any{
		"scope":    string(m.Scope),
		"status":   string(m.Status),
		"priority": m.Priority,
	}
	if err := ix.vectors.Upsert(ctx, vectorCollection, m.ID, vec, metadata); err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "memorystore.IndexMemory", "vector upsert", err)
	}
	return nil
}

// directoryAverage recomputes the mean composite embedding across every
// memory sharing directory, including newVec for the memory currently
// being indexed (whose own row may not be persisted yet).
func (ix *Indexer) directoryAverage(ctx context.Context, directory string, newVec []float32) ([]float32, error) {
	if directory == "" {
		return newVec, nil
	}

	siblings, err := ix.store.List(ctx, Filter{Directory: directory})
	if err != nil {
		return nil, err
	}

	sum := make([]float64, len(newVec))
	n := 0
	for i, f := range newVec {
		sum[i] += float64(f)
	}
	n++
	for _, sib := range siblings {
		if len(sib.CompositeEmbedding) != len(newVec) {
			continue
		}
		for i, f := range sib.CompositeEmbedding {
			sum[i] += float64(f)
		}
		n++
	}

	avg := make([]float32, len(sum))
	for i, s := range sum {
		avg[i] = float32(s / float64(n))
	}
	return avg, nil
}

// RemoveFromIndex deletes a memory's vectors from the ANN provider. The SQL
// row itself is never hard-deleted (spec.md §3); this is only invoked when
// a memory is permanently purged by an administrator, outside normal flow.
func (ix *Indexer) RemoveFromIndex(ctx context.Context, id string) error {
	if err := ix.vectors.Delete(ctx, vectorCollection, id); err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "memorystore.RemoveFromIndex", "vector delete", err)
	}
	return nil
}
