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

package writeback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/extract"
	"github.com/dmmproject/agentos/internal/memorystore"
	"github.com/dmmproject/agentos/internal/util"
)

// FileStore abstracts the memory root's backing filesystem so the Committer
// can be tested without touching disk.
type FileStore interface {
	// Hash returns the content hash of path, or "" if the file does not
	// exist.
	Hash(path string) (string, error)
	Write(path, content string) error
}

// OSFileStore is the default FileStore, rooted at a directory on disk. Path
// containment mirrors the working-directory check the teacher's write_file
// tool applies before touching the filesystem.
type OSFileStore struct {
	Root string
}

func (fs OSFileStore) resolve(path string) (string, error) {
	if !pathUnderRoot(fs.Root, path) {
		return "", apperr.New(apperr.ValidationFailure, "writeback.OSFileStore", "path escapes memory root: "+path)
	}
	return filepath.Join(fs.Root, filepath.Clean(path)), nil
}

// Hash returns the sha256 hash of the file at path, or "" if it doesn't
// exist yet (a `create` proposal's pre-image).
func (fs OSFileStore) Hash(path string) (string, error) {
	full, err := fs.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.StoreError, "writeback.OSFileStore.Hash", "read", err)
	}
	return HashContent(string(data)), nil
}

// Write creates or overwrites the file at path with content, creating
// parent directories as needed. The content goes to a temp file that is
// renamed into place, so readers never see a partial write.
func (fs OSFileStore) Write(path, content string) error {
	full, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.OSFileStore.Write", "mkdir", err)
	}
	if err := util.AtomicWriteFile(full, []byte(content), 0o644); err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.OSFileStore.Write", "write", err)
	}
	return nil
}

// HashContent returns the content hash used for optimistic-concurrency
// pre-image checks.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// conflictRescanner is the subset of *conflict.Detector the Committer needs
// for the post-commit targeted scan.
type conflictRescanner interface {
	Scan(ctx context.Context, targetMemoryID string) (*domain.ConflictScan, error)
}

// Committer applies approved proposals to the file system and reconciles
// the downstream stores (spec.md §4.4.3).
type Committer struct {
	queue      *Store
	files      FileStore
	memories   *memorystore.Store
	indexer    *memorystore.Indexer
	extractor  *extract.Orchestrator
	conflicts  conflictRescanner
	maxRetries int
}

// NewCommitter builds a Committer.
func NewCommitter(queue *Store, files FileStore, memories *memorystore.Store, indexer *memorystore.Indexer, extractor *extract.Orchestrator, conflicts conflictRescanner, maxRetries int) *Committer {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Committer{queue: queue, files: files, memories: memories, indexer: indexer, extractor: extractor, conflicts: conflicts, maxRetries: maxRetries}
}

// Commit processes a single approved proposal (spec.md §4.4.3's per-proposal
// steps). Proposals not in status=approved are left untouched.
func (c *Committer) Commit(ctx context.Context, proposalID string) error {
	p, err := c.queue.Get(ctx, proposalID)
	if err != nil {
		return err
	}
	if p.Status != domain.WriteStatusApproved {
		return nil
	}

	if err := c.commit(ctx, p); err != nil {
		if p.RetryCount < c.maxRetries {
			if incErr := c.queue.IncrementRetry(ctx, p.ID); incErr != nil {
				return incErr
			}
		}
		_ = c.queue.SetCommitError(ctx, p.ID, err.Error())
		return c.queue.UpdateStatus(ctx, p.ID, domain.WriteStatusFailed, err.Error())
	}
	return c.queue.UpdateStatus(ctx, p.ID, domain.WriteStatusCommitted, "committed")
}

func (c *Committer) commit(ctx context.Context, p *domain.WriteProposal) error {
	currentHash, err := c.files.Hash(p.TargetPath)
	if err != nil {
		return err
	}
	if currentHash != p.PreImageHash {
		return apperr.New(apperr.StalePrecondition, "writeback.commit", "stale_precondition")
	}

	if err := c.files.Write(p.TargetPath, p.Content); err != nil {
		return err
	}

	m, err := c.reindex(ctx, p)
	if err != nil {
		return err
	}

	if c.conflicts != nil {
		if _, err := c.conflicts.Scan(ctx, m.ID); err != nil {
			return err
		}
	}

	if c.extractor != nil {
		existing, err := c.memories.List(ctx, memorystore.Filter{ExcludeDeprecated: true})
		if err != nil {
			return apperr.Wrap(apperr.StoreError, "writeback.commit", "list memories", err)
		}
		if err := c.extractor.Run(ctx, existing); err != nil {
			return err
		}
	}
	return nil
}

// reindex writes the memory's row (create, update, or deprecate) and
// recomputes its embeddings through the indexer.
func (c *Committer) reindex(ctx context.Context, p *domain.WriteProposal) (*domain.Memory, error) {
	switch p.Type {
	case domain.WriteDeprecate:
		existing, err := c.memories.GetByPath(ctx, p.TargetPath)
		if err != nil {
			return nil, err
		}
		if err := c.memories.Deprecate(ctx, existing.ID); err != nil {
			return nil, err
		}
		return existing, nil

	case domain.WriteUpdate, domain.WritePromote:
		existing, err := c.memories.GetByPath(ctx, p.TargetPath)
		if err != nil {
			return nil, err
		}
		existing.Body = p.Content
		if len(p.Tags) > 0 {
			existing.Tags = p.Tags
		}
		if p.Scope != "" {
			existing.Scope = p.Scope
		}
		if c.indexer != nil {
			if err := c.indexer.IndexMemory(ctx, existing); err != nil {
				return nil, err
			}
		}
		if err := c.memories.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil

	default: // WriteCreate
		m := &domain.Memory{
			ID:         fmt.Sprintf("mem_%s_%s", time.Now().UTC().Format("20060102"), HashContent(p.TargetPath)[:8]),
			Path:       p.TargetPath,
			Directory:  filepath.Dir(p.TargetPath),
			Title:      filepath.Base(p.TargetPath),
			Body:       p.Content,
			Scope:      p.Scope,
			Priority:   0.5,
			Confidence: domain.ConfidenceExperimental,
			Status:     domain.MemoryStatusActive,
			Tags:       p.Tags,
			CreatedAt:  time.Now().UTC(),
		}
		if c.indexer != nil {
			if err := c.indexer.IndexMemory(ctx, m); err != nil {
				return nil, err
			}
		}
		if err := c.memories.Create(ctx, m); err != nil {
			return nil, err
		}
		return m, nil
	}
}
