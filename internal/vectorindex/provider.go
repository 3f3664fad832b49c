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

// Package vectorindex provides the embedded vector prefilter used by the
// hybrid retrieval pipeline (spec.md §4.2 stage 1). Memories are embedded
// once at write time; retrieval embeds the query and asks the index for its
// nearest neighbors before the graph-expansion stage narrows and re-ranks
// them.
package vectorindex

import "context"

// Result is a single nearest-neighbor hit.
type Result struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]any
}

// Provider abstracts an embedded vector index. AgentOS ships a single
// implementation (ChromemProvider); the interface exists so retrieval code
// and tests depend on a seam rather than chromem-go directly.
type Provider interface {
	// Upsert stores a precomputed embedding under id, replacing any
	// existing vector with that id in the collection.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK nearest neighbors to vector.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter is Search restricted to documents whose metadata
	// matches filter (exact string match per key).
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a single document by id.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes every document whose metadata matches filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection ensures a collection exists for vectorDimension.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection removes a collection and everything in it.
	DeleteCollection(ctx context.Context, collection string) error

	Name() string
	Close() error
}

// NilProvider is a no-op Provider used when vector retrieval is disabled
// (e.g. a deployment that relies on graph traversal alone).
type NilProvider struct{}

func (NilProvider) Upsert(context.Context, string, string, []float32, map[string]any) error {
	return nil
}

func (NilProvider) Search(context.Context, string, []float32, int) ([]Result, error) {
	return nil, nil
}

func (NilProvider) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]Result, error) {
	return nil, nil
}

func (NilProvider) Delete(context.Context, string, string) error                  { return nil }
func (NilProvider) DeleteByFilter(context.Context, string, map[string]any) error   { return nil }
func (NilProvider) CreateCollection(context.Context, string, int) error           { return nil }
func (NilProvider) DeleteCollection(context.Context, string) error                { return nil }
func (NilProvider) Name() string                                                  { return "nil" }
func (NilProvider) Close() error                                                  { return nil }

var _ Provider = NilProvider{}
