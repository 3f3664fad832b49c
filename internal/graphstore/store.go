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

package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// UpsertNode writes node (id, type) with the given properties, replacing
// any properties it previously had (MERGE semantics, spec.md §4.1: upserts
// are idempotent replace-all-properties, not a deep merge).
func (s *Store) UpsertNode(ctx context.Context, id string, nodeType domain.NodeType, properties map[string]any) error {
	if id == "" {
		return apperr.New(apperr.ValidationFailure, "graphstore.UpsertNode", "id is required")
	}
	if properties == nil {
		properties = map[string]any{}
	}
	blob, err := json.Marshal(properties)
	if err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "graphstore.UpsertNode", "marshal properties", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO graph_nodes (id, type, properties, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id, type) DO UPDATE SET properties = excluded.properties, updated_at = excluded.updated_at
`, id, string(nodeType), string(blob), now, now)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "graphstore.UpsertNode", "exec upsert", err)
	}
	return nil
}

// DeleteNode removes node (id, type) and cascades to every edge touching it.
func (s *Store) DeleteNode(ctx context.Context, id string, nodeType domain.NodeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "graphstore.DeleteNode", "begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_edges WHERE (from_id = ? AND from_type = ?) OR (to_id = ? AND to_type = ?)`,
		id, string(nodeType), id, string(nodeType)); err != nil {
		return apperr.Wrap(apperr.StoreError, "graphstore.DeleteNode", "delete edges", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_nodes WHERE id = ? AND type = ?`, id, string(nodeType)); err != nil {
		return apperr.Wrap(apperr.StoreError, "graphstore.DeleteNode", "delete node", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.StoreError, "graphstore.DeleteNode", "commit", err)
	}
	return nil
}

// GetNode returns node (id, type)'s properties, or a NotFound error.
func (s *Store) GetNode(ctx context.Context, id string, nodeType domain.NodeType) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT properties FROM graph_nodes WHERE id = ? AND type = ?`, id, string(nodeType)).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "graphstore.GetNode", fmt.Sprintf("node %s/%s not found", nodeType, id))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.GetNode", "query", err)
	}
	props := map[string]any{}
	if err := json.Unmarshal([]byte(blob), &props); err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.GetNode", "unmarshal properties", err)
	}
	return props, nil
}

// CreateEdge validates and upserts edge. Re-creating an existing edge
// replaces its weighted/descriptive fields (same MERGE semantics as nodes).
func (s *Store) CreateEdge(ctx context.Context, edge *domain.Edge) error {
	if err := edge.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "graphstore.CreateEdge", "invalid edge", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO graph_edges (from_id, from_type, to_id, to_type, edge_type, weight, context, strength, description, reason, count, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(from_id, from_type, to_id, to_type, edge_type) DO UPDATE SET
    weight = excluded.weight, context = excluded.context, strength = excluded.strength,
    description = excluded.description, reason = excluded.reason, count = excluded.count
`, edge.FromID, string(edge.FromType), edge.ToID, string(edge.ToType), string(edge.Type),
		edge.Weight, edge.Context, edge.Strength, edge.Description, edge.Reason, edge.Count, time.Now().UTC())
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "graphstore.CreateEdge", "exec upsert", err)
	}
	return nil
}

// DeleteEdge removes one specific typed edge, if present.
func (s *Store) DeleteEdge(ctx context.Context, fromID string, fromType domain.NodeType, toID string, toType domain.NodeType, edgeType domain.EdgeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM graph_edges WHERE from_id=? AND from_type=? AND to_id=? AND to_type=? AND edge_type=?`,
		fromID, string(fromType), toID, string(toType), string(edgeType))
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "graphstore.DeleteEdge", "exec delete", err)
	}
	return nil
}

// EdgeExists reports whether the specific typed edge is present.
func (s *Store) EdgeExists(ctx context.Context, fromID string, fromType domain.NodeType, toID string, toType domain.NodeType, edgeType domain.EdgeType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_edges WHERE from_id=? AND from_type=? AND to_id=? AND to_type=? AND edge_type=?`,
		fromID, string(fromType), toID, string(toType), string(edgeType)).Scan(&n)
	if err != nil {
		return false, apperr.Wrap(apperr.StoreError, "graphstore.EdgeExists", "query", err)
	}
	return n > 0, nil
}

func scanEdges(rows *sql.Rows) ([]*domain.Edge, error) {
	defer rows.Close()
	var edges []*domain.Edge
	for rows.Next() {
		e := &domain.Edge{}
		var fromType, toType, edgeType string
		if err := rows.Scan(&e.FromID, &fromType, &e.ToID, &toType, &edgeType,
			&e.Weight, &e.Context, &e.Strength, &e.Description, &e.Reason, &e.Count); err != nil {
			return nil, err
		}
		e.FromType = domain.NodeType(fromType)
		e.ToType = domain.NodeType(toType)
		e.Type = domain.EdgeType(edgeType)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

const edgeColumns = `from_id, from_type, to_id, to_type, edge_type, weight, context, strength, description, reason, count`

// EdgesFrom returns every outgoing edge from (id, nodeType), optionally
// filtered to edgeTypes (all types when empty).
func (s *Store) EdgesFrom(ctx context.Context, id string, nodeType domain.NodeType, edgeTypes ...domain.EdgeType) ([]*domain.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + edgeColumns + ` FROM graph_edges WHERE from_id=? AND from_type=?`
	args := []any{id, string(nodeType)}
	query, args = appendEdgeTypeFilter(query, args, edgeTypes)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.EdgesFrom", "query", err)
	}
	edges, err := scanEdges(rows)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.EdgesFrom", "scan", err)
	}
	return edges, nil
}

// EdgesTo returns every incoming edge to (id, nodeType), optionally
// filtered to edgeTypes.
func (s *Store) EdgesTo(ctx context.Context, id string, nodeType domain.NodeType, edgeTypes ...domain.EdgeType) ([]*domain.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + edgeColumns + ` FROM graph_edges WHERE to_id=? AND to_type=?`
	args := []any{id, string(nodeType)}
	query, args = appendEdgeTypeFilter(query, args, edgeTypes)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.EdgesTo", "query", err)
	}
	edges, err := scanEdges(rows)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.EdgesTo", "scan", err)
	}
	return edges, nil
}

func appendEdgeTypeFilter(query string, args []any, edgeTypes []domain.EdgeType) (string, []any) {
	if len(edgeTypes) == 0 {
		return query, args
	}
	placeholders := make([]string, len(edgeTypes))
	for i, et := range edgeTypes {
		placeholders[i] = "?"
		args = append(args, string(et))
	}
	query += fmt.Sprintf(" AND edge_type IN (%s)", strings.Join(placeholders, ","))
	return query, args
}

// GetRelatedMemories walks outgoing edges of the given types from id,
// breadth-first, up to maxDepth hops, returning one Connection per reached
// memory at its first (shortest) discovery depth (spec.md §4.2 stage 3).
func (s *Store) GetRelatedMemories(ctx context.Context, id string, maxDepth int, edgeTypes []domain.EdgeType) ([]domain.Connection, error) {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	if len(edgeTypes) == 0 {
		edgeTypes = domain.ExpansionEdgeTypes
	}

	visited := map[string]bool{id: true}
	type frontierNode struct {
		id   string
		hops int
	}
	frontier := []frontierNode{{id: id, hops: 0}}
	var out []domain.Connection

	for len(frontier) > 0 && frontier[0].hops < maxDepth {
		cur := frontier[0]
		frontier = frontier[1:]

		edges, err := s.EdgesFrom(ctx, cur.id, domain.NodeMemory, edgeTypes...)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if e.ToType != domain.NodeMemory || visited[e.ToID] {
				continue
			}
			visited[e.ToID] = true
			out = append(out, domain.Connection{SourceID: cur.id, EdgeType: e.Type, Hops: cur.hops + 1})
			frontier = append(frontier, frontierNode{id: e.ToID, hops: cur.hops + 1})
		}
	}
	return out, nil
}

// GetContradictionPairs returns every (from, to) memory ID pair linked by a
// CONTRADICTS edge, for the conflict detector's supersession/stale sweeps.
func (s *Store) GetContradictionPairs(ctx context.Context) ([][2]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT from_id, to_id FROM graph_edges WHERE edge_type = ?`, string(domain.EdgeContradicts))
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.GetContradictionPairs", "query", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "graphstore.GetContradictionPairs", "scan", err)
		}
		pairs = append(pairs, [2]string{from, to})
	}
	return pairs, rows.Err()
}

// GetSupersessionChain follows SUPERSEDES edges forward from id, returning
// the chain of memory IDs it supersedes, oldest-last.
func (s *Store) GetSupersessionChain(ctx context.Context, id string) ([]string, error) {
	chain := []string{}
	cur := id
	visited := map[string]bool{}
	for {
		if visited[cur] {
			break // cycle guard; a well-formed chain never cycles
		}
		visited[cur] = true

		edges, err := s.EdgesFrom(ctx, cur, domain.NodeMemory, domain.EdgeSupersedes)
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			break
		}
		next := edges[0].ToID
		chain = append(chain, next)
		cur = next
	}
	return chain, nil
}

// FindPath runs a breadth-first search for a path of edges from "from" to
// "to", up to maxDepth hops, returning the edges along the shortest path
// found or nil if none exists within the bound.
func (s *Store) FindPath(ctx context.Context, from, to string, maxDepth int) ([]*domain.Edge, error) {
	if from == to {
		return nil, nil
	}
	if maxDepth <= 0 {
		maxDepth = 6
	}

	type step struct {
		id   string
		path []*domain.Edge
	}
	visited := map[string]bool{from: true}
	queue := []step{{id: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path) >= maxDepth {
			continue
		}

		edges, err := s.EdgesFrom(ctx, cur.id, domain.NodeMemory)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if visited[e.ToID] {
				continue
			}
			path := append(append([]*domain.Edge{}, cur.path...), e)
			if e.ToID == to {
				return path, nil
			}
			visited[e.ToID] = true
			queue = append(queue, step{id: e.ToID, path: path})
		}
	}
	return nil, nil
}

// PathIDs flattens a FindPath result into the ordered list of node ids the
// path visits, starting with from, matching the "list of ids" shape named
// for find_path's return value (spec.md §4.1).
func PathIDs(from string, path []*domain.Edge) []string {
	if path == nil {
		return nil
	}
	ids := make([]string, 0, len(path)+1)
	ids = append(ids, from)
	for _, e := range path {
		ids = append(ids, e.ToID)
	}
	return ids
}

// Stats summarizes node and edge counts, broken down by type, for the
// "graph status" admin command.
type Stats struct {
	NodesByType map[domain.NodeType]int
	EdgesByType map[domain.EdgeType]int
}

// GetStats reports node/edge counts by type.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{NodesByType: map[domain.NodeType]int{}, EdgesByType: map[domain.EdgeType]int{}}

	nodeRows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM graph_nodes GROUP BY type`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.GetStats", "query nodes", err)
	}
	for nodeRows.Next() {
		var t string
		var n int
		if err := nodeRows.Scan(&t, &n); err != nil {
			nodeRows.Close()
			return nil, apperr.Wrap(apperr.StoreError, "graphstore.GetStats", "scan nodes", err)
		}
		stats.NodesByType[domain.NodeType(t)] = n
	}
	nodeRows.Close()

	edgeRows, err := s.db.QueryContext(ctx, `SELECT edge_type, COUNT(*) FROM graph_edges GROUP BY edge_type`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.GetStats", "query edges", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var t string
		var n int
		if err := edgeRows.Scan(&t, &n); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "graphstore.GetStats", "scan edges", err)
		}
		stats.EdgesByType[domain.EdgeType(t)] = n
	}
	return stats, edgeRows.Err()
}

// Row is one result row from Query, keyed by column name.
type Row map[string]any

// Query runs a read-only templated SELECT for admin introspection
// (the "graph query" CLI verb). It rejects anything that isn't a SELECT to
// keep this executor from becoming an arbitrary-write backdoor.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(query))
	if !strings.HasPrefix(trimmed, "SELECT") {
		return nil, apperr.New(apperr.ValidationFailure, "graphstore.Query", "only SELECT statements are allowed")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.Query", "exec", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "graphstore.Query", "columns", err)
	}

	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "graphstore.Query", "scan", err)
		}
		row := Row{}
		for i, c := range cols {
			row[c] = raw[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
