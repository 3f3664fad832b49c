package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryValidate(t *testing.T) {
	m := &Memory{ID: "mem_2026_01_01_001", Scope: ScopeGlobal, Confidence: ConfidenceActive, Status: MemoryStatusActive, Priority: 0.5}
	require.NoError(t, m.Validate())

	m.Priority = 1.5
	require.Error(t, m.Validate())
}

func TestMemoryTokenCeiling(t *testing.T) {
	m := &Memory{ID: "mem_2026_01_01_002", Scope: ScopeGlobal, Confidence: ConfidenceActive, Status: MemoryStatusActive, TokenCount: MaxMemoryTokens + 1}
	require.Error(t, m.Validate())
}

func TestEdgeRejectsSelfLoop(t *testing.T) {
	e := &Edge{FromID: "mem_1", FromType: NodeMemory, ToID: "mem_1", ToType: NodeMemory, Type: EdgeRelatesTo, Weight: 0.5}
	require.Error(t, e.Validate())
}

func TestEdgeRejectsMismatchedEndpoints(t *testing.T) {
	e := &Edge{FromID: "mem_1", FromType: NodeMemory, ToID: "tag_1", ToType: NodeTag, Type: EdgeRelatesTo, Weight: 0.5}
	require.Error(t, e.Validate())
}

func TestEdgeValidEndpointsAcceptsHasTag(t *testing.T) {
	e := &Edge{FromID: "mem_1", FromType: NodeMemory, ToID: "tag_1", ToType: NodeTag, Type: EdgeHasTag, Weight: 1}
	require.NoError(t, e.Validate())
}

func TestPairHashIsOrderIndependent(t *testing.T) {
	require.Equal(t, PairHash("mem_b", "mem_a"), PairHash("mem_a", "mem_b"))
}

func TestConflictMergeEvidenceDeduplicates(t *testing.T) {
	c := &Conflict{Evidence: []string{"shared tag: auth"}}
	c.MergeEvidence("shared tag: auth", "semantic similarity 0.93")
	require.Len(t, c.Evidence, 2)
}

func TestWriteProposalTerminalStatus(t *testing.T) {
	require.True(t, IsTerminalWriteStatus(WriteStatusCommitted))
	require.False(t, IsTerminalWriteStatus(WriteStatusPending))
}

func TestWriteProposalOpenStatus(t *testing.T) {
	require.True(t, IsOpenWriteStatus(WriteStatusInReview))
	require.False(t, IsOpenWriteStatus(WriteStatusCommitted))
}

func TestModificationProposalApprovalRule(t *testing.T) {
	p := &ModificationProposal{
		RequiredApprovals: 2,
		Reviews: []ReviewResult{
			{Approved: true},
			{Approved: true},
		},
	}
	require.True(t, p.MeetsApprovalRule())

	p.Reviews = append(p.Reviews, ReviewResult{Approved: false, Blocking: true})
	require.False(t, p.MeetsApprovalRule())
}

func TestRiskRankOrdering(t *testing.T) {
	require.True(t, RiskHigh.Rank() > RiskMedium.Rank())
	require.Equal(t, RiskCritical, RiskFromRank(RiskHigh.Rank()+1))
}

func TestToolsConfigAllows(t *testing.T) {
	cfg := ToolsConfig{Enabled: []string{"grep", "read"}}
	require.True(t, cfg.Allows("grep"))
	require.False(t, cfg.Allows("write"))

	empty := ToolsConfig{Disabled: []string{"write"}}
	require.True(t, empty.Allows("grep"))
	require.False(t, empty.Allows("write"))
}

func TestTaskPriorityRank(t *testing.T) {
	require.True(t, PriorityCritical.Rank() > PriorityHigh.Rank())
	require.True(t, PriorityHigh.Rank() > PriorityNormal.Rank())
	require.True(t, PriorityNormal.Rank() > PriorityLow.Rank())
}
