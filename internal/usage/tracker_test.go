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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeToucher struct {
	touched map[string]time.Time
}

func newFakeToucher() *fakeToucher {
	return &fakeToucher{touched: map[string]time.Time{}}
}

func (f *fakeToucher) TouchUsage(ctx context.Context, id string, at time.Time) error {
	f.touched[id] = at
	return nil
}

func openTestTracker(t *testing.T) (*Tracker, *fakeToucher) {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	toucher := newFakeToucher()
	return New(store, toucher), toucher
}

func TestTrackingEnabledByDefault(t *testing.T) {
	tr, _ := openTestTracker(t)
	enabled, err := tr.IsEnabled(context.Background())
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestRecordMemoryUseTouchesMemoryStore(t *testing.T) {
	tr, toucher := openTestTracker(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, tr.RecordMemoryUse(ctx, "mem-1", at))

	touchedAt, ok := toucher.touched["mem-1"]
	require.True(t, ok)
	require.True(t, touchedAt.Equal(at))

	count, err := tr.GetRefUsageCount(ctx, ComponentMemory, "mem-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRecordMemoryUseNoopWhenDisabled(t *testing.T) {
	tr, toucher := openTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.SetEnabled(ctx, false))
	require.NoError(t, tr.RecordMemoryUse(ctx, "mem-1", time.Now().UTC()))

	require.Empty(t, toucher.touched)
	count, err := tr.GetRefUsageCount(ctx, ComponentMemory, "mem-1")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestRecordTagAndToolUse(t *testing.T) {
	tr, _ := openTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, tr.RecordTagUse(ctx, "postgres", now))
	require.NoError(t, tr.RecordToolUse(ctx, "curl", now))

	tagCount, err := tr.GetRefUsageCount(ctx, ComponentTag, "postgres")
	require.NoError(t, err)
	require.Equal(t, 1, tagCount)

	toolCount, err := tr.GetRefUsageCount(ctx, ComponentTool, "curl")
	require.NoError(t, err)
	require.Equal(t, 1, toolCount)
}

func TestGetHealthReportAggregatesByComponentAndTopRefs(t *testing.T) {
	tr, _ := openTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, tr.RecordMemoryUse(ctx, "mem-1", now))
	require.NoError(t, tr.RecordMemoryUse(ctx, "mem-1", now))
	require.NoError(t, tr.RecordMemoryUse(ctx, "mem-2", now))
	require.NoError(t, tr.RecordTagUse(ctx, "postgres", now))

	report, err := tr.GetHealthReport(ctx, 2)
	require.NoError(t, err)
	require.True(t, report.TrackingEnabled)
	require.Equal(t, 4, report.TotalEvents)
	require.Equal(t, 3, report.EventsByComponent[ComponentMemory])
	require.Equal(t, 1, report.EventsByComponent[ComponentTag])
	require.Len(t, report.TopRefs, 2)
	require.Equal(t, "mem-1", report.TopRefs[0].RefID)
	require.Equal(t, 2, report.TopRefs[0].Count)
}

func TestCleanupOlderThanRemovesStaleEvents(t *testing.T) {
	tr, _ := openTestTracker(t)
	ctx := context.Background()

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, tr.RecordMemoryUse(ctx, "mem-old", old))
	require.NoError(t, tr.RecordMemoryUse(ctx, "mem-new", recent))

	n, err := tr.CleanupOlderThan(ctx, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	oldCount, err := tr.GetRefUsageCount(ctx, ComponentMemory, "mem-old")
	require.NoError(t, err)
	require.Equal(t, 0, oldCount)

	newCount, err := tr.GetRefUsageCount(ctx, ComponentMemory, "mem-new")
	require.NoError(t, err)
	require.Equal(t, 1, newCount)
}
