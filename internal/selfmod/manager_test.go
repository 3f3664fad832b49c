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

package selfmod

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

type fakeFileWriter struct {
	writes  map[string]string
	failOn  string
	writeOrder []string
}

func newFakeFileWriter() *fakeFileWriter {
	return &fakeFileWriter{writes: map[string]string{}}
}

func (f *fakeFileWriter) Write(path, content string) error {
	if f.failOn != "" && path == f.failOn {
		return errors.New("disk full")
	}
	f.writes[path] = content
	f.writeOrder = append(f.writeOrder, path)
	return nil
}

func proposal(id string, changes ...domain.CodeChange) *domain.ModificationProposal {
	return &domain.ModificationProposal{ID: id, Title: id, Changes: changes}
}

func TestSubmitAssessesLowRiskForSmallNonCoreChange(t *testing.T) {
	m := New(newFakeFileWriter(), 1, false, false, 200, nil)
	p := proposal("p1", domain.CodeChange{FilePath: "pkg/foo/bar.go", OriginalCode: "a", ModifiedCode: "b", ChangeType: domain.ChangeModify})

	require.NoError(t, m.Submit(p, false))
	require.Equal(t, domain.RiskLow, p.Risk)
	require.Equal(t, domain.ModPendingReview, p.Status)
}

func TestSubmitBumpsRiskForCorePath(t *testing.T) {
	m := New(newFakeFileWriter(), 1, false, false, 200, []string{"internal/"})
	p := proposal("p1", domain.CodeChange{FilePath: "internal/foo/bar.go", OriginalCode: "a", ModifiedCode: "b", ChangeType: domain.ChangeModify})

	require.NoError(t, m.Submit(p, false))
	require.Equal(t, domain.RiskMedium, p.Risk)
}

func TestSubmitForcesHighRiskOnSymbolDeletion(t *testing.T) {
	m := New(newFakeFileWriter(), 1, false, false, 200, nil)
	p := proposal("p1", domain.CodeChange{FilePath: "pkg/foo/bar.go", OriginalCode: "func X(){}", ModifiedCode: "", ChangeType: domain.ChangeDelete, ElementName: "X"})

	require.NoError(t, m.Submit(p, false))
	require.Equal(t, domain.RiskHigh, p.Risk)
}

func TestSubmitBumpsRiskForLargeChange(t *testing.T) {
	m := New(newFakeFileWriter(), 1, false, false, 5, nil)
	p := proposal("p1", domain.CodeChange{FilePath: "pkg/foo/bar.go", OriginalCode: "", ModifiedCode: strings.Repeat("x\n", 20), ChangeType: domain.ChangeAdd})

	require.NoError(t, m.Submit(p, false))
	require.Equal(t, domain.RiskMedium, p.Risk)
}

func TestAutoApprovesLowRiskWhenConfigured(t *testing.T) {
	m := New(newFakeFileWriter(), 1, true, false, 200, nil)
	p := proposal("p1", domain.CodeChange{FilePath: "pkg/foo/bar.go", OriginalCode: "a", ModifiedCode: "b", ChangeType: domain.ChangeModify})

	require.NoError(t, m.Submit(p, false))
	require.Equal(t, domain.ModApproved, p.Status)
}

func TestAutoApprovalRequiresTestsWhenConfigured(t *testing.T) {
	m := New(newFakeFileWriter(), 1, true, true, 200, nil)
	p := proposal("p1", domain.CodeChange{FilePath: "pkg/foo/bar.go", OriginalCode: "a", ModifiedCode: "b", ChangeType: domain.ChangeModify})

	require.NoError(t, m.Submit(p, false))
	require.Equal(t, domain.ModPendingReview, p.Status)
}

func TestReviewApprovesWhenRuleMet(t *testing.T) {
	m := New(newFakeFileWriter(), 1, false, false, 200, nil)
	p := proposal("p1", domain.CodeChange{FilePath: "pkg/foo/bar.go", OriginalCode: "a", ModifiedCode: "b", ChangeType: domain.ChangeModify})
	require.NoError(t, m.Submit(p, false))

	var approved *domain.ModificationProposal
	m.OnApprove(func(mp *domain.ModificationProposal) { approved = mp })

	require.NoError(t, m.Review("p1", domain.ReviewResult{Reviewer: "alice", Approved: true}))
	require.Equal(t, domain.ModApproved, p.Status)
	require.NotNil(t, approved)
}

func TestReviewDoesNotApproveWithBlockingComment(t *testing.T) {
	m := New(newFakeFileWriter(), 1, false, false, 200, nil)
	p := proposal("p1", domain.CodeChange{FilePath: "pkg/foo/bar.go", OriginalCode: "a", ModifiedCode: "b", ChangeType: domain.ChangeModify})
	require.NoError(t, m.Submit(p, false))

	require.NoError(t, m.Review("p1", domain.ReviewResult{Reviewer: "alice", Approved: true, Blocking: true, Comment: "fix this"}))
	require.Equal(t, domain.ModInReview, p.Status)
}

func TestApplyWritesChangesInOrder(t *testing.T) {
	ctx := context.Background()
	files := newFakeFileWriter()
	m := New(files, 1, false, false, 200, nil)
	p := proposal("p1",
		domain.CodeChange{FilePath: "a.go", OriginalCode: "old-a", ModifiedCode: "new-a", ChangeType: domain.ChangeModify},
		domain.CodeChange{FilePath: "b.go", OriginalCode: "old-b", ModifiedCode: "new-b", ChangeType: domain.ChangeModify},
	)
	require.NoError(t, m.Submit(p, false))
	require.NoError(t, m.Approve("p1", "alice"))

	require.NoError(t, m.Apply(ctx, "p1"))
	require.Equal(t, domain.ModApplied, p.Status)
	require.Equal(t, []string{"a.go", "b.go"}, files.writeOrder)
	require.Equal(t, "new-a", files.writes["a.go"])
}

func TestApplyStopsAndMarksFailedOnWriteError(t *testing.T) {
	ctx := context.Background()
	files := newFakeFileWriter()
	files.failOn = "b.go"
	m := New(files, 1, false, false, 200, nil)
	p := proposal("p1",
		domain.CodeChange{FilePath: "a.go", OriginalCode: "old-a", ModifiedCode: "new-a", ChangeType: domain.ChangeModify},
		domain.CodeChange{FilePath: "b.go", OriginalCode: "old-b", ModifiedCode: "new-b", ChangeType: domain.ChangeModify},
		domain.CodeChange{FilePath: "c.go", OriginalCode: "old-c", ModifiedCode: "new-c", ChangeType: domain.ChangeModify},
	)
	require.NoError(t, m.Submit(p, false))
	require.NoError(t, m.Approve("p1", "alice"))

	err := m.Apply(ctx, "p1")
	require.Error(t, err)
	require.Equal(t, domain.ModFailedApply, p.Status)
	require.Contains(t, files.writes, "a.go")
	require.NotContains(t, files.writes, "c.go")
}

func TestRevertWritesOriginalCodeInReverseOrder(t *testing.T) {
	ctx := context.Background()
	files := newFakeFileWriter()
	m := New(files, 1, false, false, 200, nil)
	p := proposal("p1",
		domain.CodeChange{FilePath: "a.go", OriginalCode: "old-a", ModifiedCode: "new-a", ChangeType: domain.ChangeModify},
		domain.CodeChange{FilePath: "b.go", OriginalCode: "old-b", ModifiedCode: "new-b", ChangeType: domain.ChangeModify},
	)
	require.NoError(t, m.Submit(p, false))
	require.NoError(t, m.Approve("p1", "alice"))
	require.NoError(t, m.Apply(ctx, "p1"))

	files.writeOrder = nil
	require.NoError(t, m.Revert("p1"))
	require.Equal(t, domain.ModReverted, p.Status)
	require.Equal(t, []string{"b.go", "a.go"}, files.writeOrder)
	require.Equal(t, "old-a", files.writes["a.go"])
}

func TestRevertFailsWhenNotApplied(t *testing.T) {
	m := New(newFakeFileWriter(), 1, false, false, 200, nil)
	p := proposal("p1", domain.CodeChange{FilePath: "a.go", OriginalCode: "old", ModifiedCode: "new", ChangeType: domain.ChangeModify})
	require.NoError(t, m.Submit(p, false))

	require.Error(t, m.Revert("p1"))
}
