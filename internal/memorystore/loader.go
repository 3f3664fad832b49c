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

	"github.com/dmmproject/agentos/internal/domain"
)

// Loader produces Memory values from whatever source files back them
// (spec.md §6: "the core does not parse these formats directly"). The
// default YAML-front-matter-plus-Markdown loader lives in internal/loader;
// this interface lets the store and its callers stay format-agnostic.
type Loader interface {
	LoadMemories(ctx context.Context) ([]*domain.Memory, error)
}

// Sync loads every memory from loader and upserts it into the store,
// creating new ids and updating existing ones. It returns the number of
// memories created and updated.
func Sync(ctx context.Context, store *Store, indexer *Indexer, loader Loader) (created, updated int, err error) {
	memories, err := loader.LoadMemories(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, m := range memories {
		_, getErr := store.Get(ctx, m.ID)
		exists := getErr == nil

		if indexer != nil {
			if err := indexer.IndexMemory(ctx, m); err != nil {
				return created, updated, err
			}
		}

		if exists {
			if err := store.Update(ctx, m); err != nil {
				return created, updated, err
			}
			updated++
		} else {
			if err := store.Create(ctx, m); err != nil {
				return created, updated, err
			}
			created++
		}
	}
	return created, updated, nil
}
