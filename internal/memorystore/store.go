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
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// Create inserts a new Memory. Callers must have already validated m; per
// spec.md §3, `id` is append-only and globally unique, so Create fails if
// the id already exists.
func (s *Store) Create(ctx context.Context, m *domain.Memory) error {
	if err := m.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "memorystore.Create", "invalid memory", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	tagsJSON, _ := json.Marshal(m.Tags)
	supersedesJSON, _ := json.Marshal(m.Supersedes)
	relatedJSON, _ := json.Marshal(m.Related)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO memories (
    id, path, directory, title, body, scope, priority, confidence, status, tags,
    token_count, created_at, last_used, usage_count, content_hash, supersedes,
    related, expires_at, composite_embedding, directory_embedding
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, m.ID, m.Path, m.Directory, m.Title, m.Body, string(m.Scope), m.Priority, string(m.Confidence),
		string(m.Status), string(tagsJSON), m.TokenCount, m.CreatedAt, nullTime(m.LastUsed), m.UsageCount,
		m.ContentHash, string(supersedesJSON), string(relatedJSON), m.Expires,
		embeddingToBytes(m.CompositeEmbedding), embeddingToBytes(m.DirectoryEmbedding))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return apperr.Wrap(apperr.Conflict, "memorystore.Create", "memory id already exists", err)
		}
		return apperr.Wrap(apperr.StoreError, "memorystore.Create", "insert", err)
	}
	return nil
}

// Update replaces a Memory's mutable fields (body, metadata, embeddings) in
// place. The id and created_at are immutable once created.
func (s *Store) Update(ctx context.Context, m *domain.Memory) error {
	if err := m.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "memorystore.Update", "invalid memory", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, _ := json.Marshal(m.Tags)
	supersedesJSON, _ := json.Marshal(m.Supersedes)
	relatedJSON, _ := json.Marshal(m.Related)

	res, err := s.db.ExecContext(ctx, `
UPDATE memories SET
    path = ?, directory = ?, title = ?, body = ?, scope = ?, priority = ?, confidence = ?,
    status = ?, tags = ?, token_count = ?, content_hash = ?, supersedes = ?, related = ?,
    expires_at = ?, composite_embedding = ?, directory_embedding = ?
WHERE id = ?
`, m.Path, m.Directory, m.Title, m.Body, string(m.Scope), m.Priority, string(m.Confidence),
		string(m.Status), string(tagsJSON), m.TokenCount, m.ContentHash, string(supersedesJSON),
		string(relatedJSON), m.Expires, embeddingToBytes(m.CompositeEmbedding),
		embeddingToBytes(m.DirectoryEmbedding), m.ID)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "memorystore.Update", "update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "memorystore.Update", "memory not found: "+m.ID)
	}
	return nil
}

// Deprecate transitions a memory to status=deprecated (spec.md §3: never
// hard-deleted by the runtime).
func (s *Store) Deprecate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE memories SET status = ? WHERE id = ?`, string(domain.MemoryStatusDeprecated), id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "memorystore.Deprecate", "update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "memorystore.Deprecate", "memory not found: "+id)
	}
	return nil
}

// TouchUsage records a use of the memory: increments usage_count and bumps
// last_used. Driven by UsageTracker (spec.md §4.3's stale-classification
// note: this is the only writer of last_used).
func (s *Store) TouchUsage(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE memories SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`, at, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "memorystore.TouchUsage", "update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "memorystore.TouchUsage", "memory not found: "+id)
	}
	return nil
}

// Get returns one memory by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "memorystore.Get", "memory not found: "+id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "memorystore.Get", "scan", err)
	}
	return m, nil
}

// GetByPath returns one memory by its source file path.
func (s *Store) GetByPath(ctx context.Context, path string) (*domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE path = ?`, path)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "memorystore.GetByPath", "memory not found: "+path)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "memorystore.GetByPath", "scan", err)
	}
	return m, nil
}

// Filter narrows List/Search to a subset of memories.
type Filter struct {
	Scopes           []domain.Scope
	ExcludeDeprecated bool
	ExcludeEphemeral bool
	MinPriority      float64
	MaxTokenCount    int
	Directory        string
}

// List returns every memory matching filter, ordered by path (spec.md §4.2
// stage 1's baseline ordering requirement, reused for general listing).
func (s *Store) List(ctx context.Context, filter Filter) ([]*domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE 1=1`
	var args []any

	if filter.ExcludeDeprecated {
		query += ` AND status != ?`
		args = append(args, string(domain.MemoryStatusDeprecated))
	}
	if filter.ExcludeEphemeral {
		query += ` AND scope != ?`
		args = append(args, string(domain.ScopeEphemeral))
	}
	if len(filter.Scopes) > 0 {
		placeholders := ""
		for i, sc := range filter.Scopes {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, string(sc))
		}
		query += ` AND scope IN (` + placeholders + `)`
	}
	if filter.MinPriority > 0 {
		query += ` AND priority >= ?`
		args = append(args, filter.MinPriority)
	}
	if filter.MaxTokenCount > 0 {
		query += ` AND token_count <= ?`
		args = append(args, filter.MaxTokenCount)
	}
	if filter.Directory != "" {
		query += ` AND directory = ?`
		args = append(args, filter.Directory)
	}
	query += ` ORDER BY path ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "memorystore.List", "query", err)
	}
	defer rows.Close()

	var out []*domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "memorystore.List", "scan", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Baseline returns every active baseline-scope memory, sorted by path
// (spec.md §4.2 stage 1).
func (s *Store) Baseline(ctx context.Context) ([]*domain.Memory, error) {
	return s.List(ctx, Filter{Scopes: []domain.Scope{domain.ScopeBaseline}, ExcludeDeprecated: true})
}

// ScoredMemory pairs a memory with its cosine similarity to a query vector.
type ScoredMemory struct {
	Memory *domain.Memory
	Score  float64
}

// SearchByVector performs the exact cosine-similarity pass spec.md §5
// mandates: similarity is computed in memory across the filtered
// (non-baseline, non-deprecated) candidate set, returning the topN
// highest-scoring memories. candidateIDs optionally narrows the scan to an
// ANN pre-filter's output (internal/vectorindex); when nil, every matching
// memory is scored.
func (s *Store) SearchByVector(ctx context.Context, query []float32, filter Filter, candidateIDs []string, topN int) ([]ScoredMemory, error) {
	filter.ExcludeDeprecated = true
	memories, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	var allow map[string]bool
	if candidateIDs != nil {
		allow = make(map[string]bool, len(candidateIDs))
		for _, id := range candidateIDs {
			allow[id] = true
		}
	}

	scored := make([]ScoredMemory, 0, len(memories))
	for _, m := range memories {
		if m.Scope == domain.ScopeBaseline {
			continue
		}
		if allow != nil && !allow[m.ID] {
			continue
		}
		if len(m.CompositeEmbedding) == 0 {
			continue
		}
		scored = append(scored, ScoredMemory{Memory: m, Score: cosineSimilarity(query, m.CompositeEmbedding)})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

const memoryColumns = `id, path, directory, title, body, scope, priority, confidence, status, tags,
    token_count, created_at, last_used, usage_count, content_hash, supersedes, related, expires_at,
    composite_embedding, directory_embedding`

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*domain.Memory, error) {
	m := &domain.Memory{}
	var scope, confidence, status, tagsJSON, supersedesJSON, relatedJSON string
	var lastUsed, expires sql.NullTime
	var compositeBlob, directoryBlob []byte

	if err := row.Scan(&m.ID, &m.Path, &m.Directory, &m.Title, &m.Body, &scope, &m.Priority, &confidence,
		&status, &tagsJSON, &m.TokenCount, &m.CreatedAt, &lastUsed, &m.UsageCount, &m.ContentHash,
		&supersedesJSON, &relatedJSON, &expires, &compositeBlob, &directoryBlob); err != nil {
		return nil, err
	}

	m.Scope = domain.Scope(scope)
	m.Confidence = domain.Confidence(confidence)
	m.Status = domain.MemoryStatus(status)
	_ = json.Unmarshal([]byte(tagsJSON), &m.Tags)
	_ = json.Unmarshal([]byte(supersedesJSON), &m.Supersedes)
	_ = json.Unmarshal([]byte(relatedJSON), &m.Related)
	if lastUsed.Valid {
		m.LastUsed = lastUsed.Time
	}
	if expires.Valid {
		t := expires.Time
		m.Expires = &t
	}
	m.CompositeEmbedding = bytesToEmbedding(compositeBlob)
	m.DirectoryEmbedding = bytesToEmbedding(directoryBlob)
	return m, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// embeddingToBytes serializes a []float32 as little-endian bytes for BLOB
// storage (spec.md §5: "embeddings are stored as float32 byte blobs inside
// the memory row").
func embeddingToBytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToEmbedding(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "constraint failed"))
}
