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

package usage

import (
	"context"
	"sort"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
)

// memoryToucher is the one memorystore.Store method UsageTracker drives;
// mirrored locally so this package does not import memorystore for a
// single call (the same local-interface pattern internal/writeback uses
// for its conflict-store dependency).
type memoryToucher interface {
	TouchUsage(ctx context.Context, id string, at time.Time) error
}

// Component names the kind of entity a usage event refers to.
const (
	ComponentMemory = "memory"
	ComponentTag    = "tag"
	ComponentTool   = "tool"
)

// Event types recorded per component.
const (
	EventUsed = "used"
)

// Tracker is the UsageTracker.
type Tracker struct {
	store   *Store
	toucher memoryToucher
}

// New creates a Tracker backed by store (usage.sqlite) and toucher (the
// MemoryStore whose last_used column this tracker is the sole writer of).
func New(store *Store, toucher memoryToucher) *Tracker {
	return &Tracker{store: store, toucher: toucher}
}

// IsEnabled reports whether usage tracking is currently active.
func (t *Tracker) IsEnabled(ctx context.Context) (bool, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var enabled bool
	if err := t.store.db.QueryRowContext(ctx, `SELECT enabled FROM tracker_state WHERE id=1`).Scan(&enabled); err != nil {
		return false, apperr.Wrap(apperr.StoreError, "usage.IsEnabled", "query", err)
	}
	return enabled, nil
}

// SetEnabled turns usage tracking on or off. While disabled, RecordX
// calls are no-ops: no event is logged and MemoryStore.last_used is not
// touched, which is what makes the conflict detector's staleness check
// conditional on tracking being active (spec.md §9).
func (t *Tracker) SetEnabled(ctx context.Context, enabled bool) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if _, err := t.store.db.ExecContext(ctx, `UPDATE tracker_state SET enabled=? WHERE id=1`, enabled); err != nil {
		return apperr.Wrap(apperr.StoreError, "usage.SetEnabled", "update", err)
	}
	return nil
}

// RecordMemoryUse logs a memory-use event and bumps the memory's
// last_used timestamp via toucher, unless tracking is disabled.
func (t *Tracker) RecordMemoryUse(ctx context.Context, memoryID string, at time.Time) error {
	enabled, err := t.IsEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	if err := t.recordEvent(ctx, ComponentMemory, memoryID, EventUsed, at); err != nil {
		return err
	}
	return t.toucher.TouchUsage(ctx, memoryID, at)
}

// RecordTagUse logs a tag-use event (spec.md §3: Tag nodes track
// usage_count).
func (t *Tracker) RecordTagUse(ctx context.Context, tag string, at time.Time) error {
	enabled, err := t.IsEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	return t.recordEvent(ctx, ComponentTag, tag, EventUsed, at)
}

// RecordToolUse logs a tool-invocation event.
func (t *Tracker) RecordToolUse(ctx context.Context, toolID string, at time.Time) error {
	enabled, err := t.IsEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	return t.recordEvent(ctx, ComponentTool, toolID, EventUsed, at)
}

func (t *Tracker) recordEvent(ctx context.Context, component, refID, eventType string, at time.Time) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	_, err := t.store.db.ExecContext(ctx,
		`INSERT INTO usage_events (component, ref_id, event_type, occurred_at) VALUES (?, ?, ?, ?)`,
		component, refID, eventType, at)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "usage.recordEvent", "insert", err)
	}
	return nil
}

// RefUsage is one ref's event count within a HealthReport.
type RefUsage struct {
	Component string
	RefID     string
	Count     int
}

// HealthReport summarizes the usage log (spec.md §2's "usage tracking +
// health reports" share).
type HealthReport struct {
	TrackingEnabled   bool
	TotalEvents       int
	EventsByComponent map[string]int
	TopRefs           []RefUsage
}

// GetHealthReport computes a HealthReport from the current usage log,
// returning the topN most-used refs across all components.
func (t *Tracker) GetHealthReport(ctx context.Context, topN int) (*HealthReport, error) {
	enabled, err := t.IsEnabled(ctx)
	if err != nil {
		return nil, err
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	report := &HealthReport{TrackingEnabled: enabled, EventsByComponent: map[string]int{}}

	compRows, err := t.store.db.QueryContext(ctx, `SELECT component, COUNT(*) FROM usage_events GROUP BY component`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "usage.GetHealthReport", "query components", err)
	}
	for compRows.Next() {
		var component string
		var n int
		if err := compRows.Scan(&component, &n); err != nil {
			compRows.Close()
			return nil, apperr.Wrap(apperr.StoreError, "usage.GetHealthReport", "scan components", err)
		}
		report.EventsByComponent[component] = n
		report.TotalEvents += n
	}
	compRows.Close()

	refRows, err := t.store.db.QueryContext(ctx,
		`SELECT component, ref_id, COUNT(*) AS n FROM usage_events GROUP BY component, ref_id ORDER BY n DESC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "usage.GetHealthReport", "query refs", err)
	}
	defer refRows.Close()
	var refs []RefUsage
	for refRows.Next() {
		var r RefUsage
		if err := refRows.Scan(&r.Component, &r.RefID, &r.Count); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "usage.GetHealthReport", "scan refs", err)
		}
		refs = append(refs, r)
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Count > refs[j].Count })
	if topN > 0 && len(refs) > topN {
		refs = refs[:topN]
	}
	report.TopRefs = refs

	return report, nil
}

// GetRefUsageCount returns how many events were recorded for one
// (component, refID) pair.
func (t *Tracker) GetRefUsageCount(ctx context.Context, component, refID string) (int, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var n int
	err := t.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_events WHERE component=? AND ref_id=?`, component, refID).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreError, "usage.GetRefUsageCount", "query", err)
	}
	return n, nil
}

// CleanupOlderThan deletes usage events older than cutoff, bounding the
// log's long-run growth, and returns the number of rows removed.
func (t *Tracker) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	res, err := t.store.db.ExecContext(ctx, `DELETE FROM usage_events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreError, "usage.CleanupOlderThan", "delete", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
