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

// Package config provides configuration loading and management for AgentOS.
//
// AgentOS is config-first: the working directory (commonly ".dmm/") holds
// memory files, agent/skill/tool YAML definitions, and the SQLite-backed
// index stores. This package loads the root settings that tune retrieval,
// conflict detection, and write-back.
package config

import (
	"fmt"

	"github.com/dmmproject/agentos/internal/vectorindex"
)

// Config is the root configuration structure for an AgentOS instance.
type Config struct {
	// Version of the config schema.
	Version string `yaml:"version,omitempty"`

	// Name of this configuration (for logging/display).
	Name string `yaml:"name,omitempty"`

	// WorkDir is the root working directory (defaults to ".dmm").
	WorkDir string `yaml:"work_dir,omitempty"`

	Logger    LoggerConfig       `yaml:"logger,omitempty"`
	Retrieval RetrievalConfig    `yaml:"retrieval,omitempty"`
	Extract   ExtractConfig      `yaml:"extract,omitempty"`
	Conflict  ConflictConfig     `yaml:"conflict,omitempty"`
	Writeback WritebackConfig    `yaml:"writeback,omitempty"`
	SelfMod   SelfModConfig      `yaml:"selfmod,omitempty"`
	Runtime   RuntimeConfig      `yaml:"runtime,omitempty"`
	Server    ServerConfig       `yaml:"server,omitempty"`
	Embedder  EmbedderConfig     `yaml:"embedder,omitempty"`
	Vector    vectorindex.Config `yaml:"vector,omitempty"`
	Cluster   ClusterConfig      `yaml:"cluster,omitempty"`
}

// ClusterConfig tunes connected-component cluster detection and knowledge
// gap analysis over the memory graph.
type ClusterConfig struct {
	MinClusterSize         int      `yaml:"min_cluster_size,omitempty"`
	MinEdgeWeight          float64  `yaml:"min_edge_weight,omitempty"`
	EdgeTypesForClustering []string `yaml:"edge_types_for_clustering,omitempty"`
	DetectKnowledgeGaps    bool     `yaml:"detect_knowledge_gaps,omitempty"`
	GapMinTagSimilarity    float64  `yaml:"gap_min_tag_similarity,omitempty"`
	GapMaxResults          int      `yaml:"gap_max_results,omitempty"`
	IncludeSingletons      bool     `yaml:"include_singletons,omitempty"`
}

// SetDefaults applies cluster-detection defaults. DetectKnowledgeGaps
// defaults on; pass --no-gaps to `graph clusters` to suppress it per-run.
func (c *ClusterConfig) SetDefaults() {
	if c.MinClusterSize == 0 {
		c.MinClusterSize = 3
	}
	if c.MinEdgeWeight == 0 {
		c.MinEdgeWeight = 0.5
	}
	if len(c.EdgeTypesForClustering) == 0 {
		c.EdgeTypesForClustering = []string{"RELATES_TO", "SUPPORTS", "DEPENDS_ON"}
	}
	c.DetectKnowledgeGaps = true
	if c.GapMinTagSimilarity == 0 {
		c.GapMinTagSimilarity = 0.4
	}
	if c.GapMaxResults == 0 {
		c.GapMaxResults = 20
	}
}

// EmbedderConfig selects and configures the Embedder collaborator.
type EmbedderConfig struct {
	// Dimension is the fixed vector dimension for this instance. Changing
	// it requires a full reindex (spec.md §6).
	Dimension int `yaml:"dimension,omitempty"`

	// Model identifies the embedding model in system_meta.
	Model string `yaml:"model,omitempty"`
}

// SetDefaults applies embedder defaults.
func (c *EmbedderConfig) SetDefaults() {
	if c.Dimension == 0 {
		c.Dimension = 256
	}
	if c.Model == "" {
		c.Model = "hash-v1"
	}
}

// RetrievalConfig tunes the hybrid retrieval pipeline (spec.md §4.2).
type RetrievalConfig struct {
	VectorCandidateMultiplier int      `yaml:"vector_candidate_multiplier,omitempty"`
	MaxGraphDepth             int      `yaml:"max_graph_depth,omitempty"`
	MaxExpansionPerHop        int      `yaml:"max_expansion_per_hop,omitempty"`
	ExpansionEdgeTypes        []string `yaml:"expansion_edge_types,omitempty"`
	HopDecay                  float64  `yaml:"hop_decay,omitempty"`
	DirectConnectionBoost     float64  `yaml:"direct_connection_boost,omitempty"`
	ContradictionPenalty      float64  `yaml:"contradiction_penalty,omitempty"`
	VectorWeight              float64  `yaml:"vector_weight,omitempty"`
	GraphWeight               float64  `yaml:"graph_weight,omitempty"`
	DefaultLimit              int      `yaml:"default_limit,omitempty"`
	MaxRelationshipContext    int      `yaml:"max_relationship_context,omitempty"`
	BaselineTokenBudget       int      `yaml:"baseline_token_budget,omitempty"`
	TotalTokenBudget          int      `yaml:"total_token_budget,omitempty"`
}

// SetDefaults applies the defaults named in spec.md §4.2.
func (c *RetrievalConfig) SetDefaults() {
	if c.VectorCandidateMultiplier == 0 {
		c.VectorCandidateMultiplier = 3
	}
	if c.MaxGraphDepth == 0 {
		c.MaxGraphDepth = 2
	}
	if c.MaxExpansionPerHop == 0 {
		c.MaxExpansionPerHop = 10
	}
	if len(c.ExpansionEdgeTypes) == 0 {
		c.ExpansionEdgeTypes = []string{"SUPPORTS", "RELATES_TO", "DEPENDS_ON"}
	}
	if c.HopDecay == 0 {
		c.HopDecay = 0.5
	}
	if c.DirectConnectionBoost == 0 {
		c.DirectConnectionBoost = 1.0
	}
	if c.ContradictionPenalty == 0 {
		c.ContradictionPenalty = 0.5
	}
	if c.VectorWeight == 0 && c.GraphWeight == 0 {
		c.VectorWeight = 0.6
		c.GraphWeight = 0.4
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxRelationshipContext == 0 {
		c.MaxRelationshipContext = 5
	}
	if c.TotalTokenBudget == 0 {
		c.TotalTokenBudget = 8000
	}
	if c.BaselineTokenBudget == 0 {
		c.BaselineTokenBudget = c.TotalTokenBudget / 4
	}
}

// Validate checks retrieval weights sum correctly (spec.md §8).
func (c *RetrievalConfig) Validate() error {
	sum := c.VectorWeight + c.GraphWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("retrieval.vector_weight + retrieval.graph_weight must sum to 1.0, got %f", sum)
	}
	return nil
}

// ExtractConfig tunes the extractor orchestrator that builds graph edges
// ahead of retrieval (spec.md §4.2.2).
type ExtractConfig struct {
	TagJaccardThreshold       float64 `yaml:"tag_jaccard_threshold,omitempty"`
	TemporalWindowHours       int     `yaml:"temporal_window_hours,omitempty"`
	TemporalWeight            float64 `yaml:"temporal_weight,omitempty"`
	SemanticRelatesThreshold  float64 `yaml:"semantic_relates_threshold,omitempty"`
	SemanticSupportsThreshold float64 `yaml:"semantic_supports_threshold,omitempty"`
	MinEdgeWeight             float64 `yaml:"min_edge_weight,omitempty"`
	MaxEdgesPerMemory         int     `yaml:"max_edges_per_memory,omitempty"`
	EnableLLMExtractor        bool    `yaml:"enable_llm_extractor,omitempty"`
	LLMMinPriority            float64 `yaml:"llm_min_priority,omitempty"`
	LLMMaxContextMemories     int     `yaml:"llm_max_context_memories,omitempty"`
}

// SetDefaults applies the extractor defaults named in spec.md §4.2.2.
func (c *ExtractConfig) SetDefaults() {
	if c.TagJaccardThreshold == 0 {
		c.TagJaccardThreshold = 0.3
	}
	if c.TemporalWindowHours == 0 {
		c.TemporalWindowHours = 24
	}
	if c.TemporalWeight == 0 {
		c.TemporalWeight = 0.2
	}
	if c.SemanticRelatesThreshold == 0 {
		c.SemanticRelatesThreshold = 0.8
	}
	if c.SemanticSupportsThreshold == 0 {
		c.SemanticSupportsThreshold = 0.92
	}
	if c.MinEdgeWeight == 0 {
		c.MinEdgeWeight = 0.3
	}
	if c.MaxEdgesPerMemory == 0 {
		c.MaxEdgesPerMemory = 30
	}
	if c.LLMMinPriority == 0 {
		c.LLMMinPriority = 0.7
	}
	if c.LLMMaxContextMemories == 0 {
		c.LLMMaxContextMemories = 10
	}
}

// ConflictConfig tunes the conflict detection pipeline (spec.md §4.3).
type ConflictConfig struct {
	TagOverlapThreshold    float64 `yaml:"tag_overlap_threshold,omitempty"`
	SemanticThreshold      float64 `yaml:"semantic_threshold,omitempty"`
	DuplicateThreshold     float64 `yaml:"duplicate_threshold,omitempty"`
	MaxCandidatesPerMethod int     `yaml:"max_candidates_per_method,omitempty"`
	MinEdgeWeight          float64 `yaml:"min_edge_weight,omitempty"`
	StalenessDays          int     `yaml:"staleness_days,omitempty"`
	UsageTrackingActive    bool    `yaml:"usage_tracking_active,omitempty"`
	DeferTTLHours          int     `yaml:"defer_ttl_hours,omitempty"`
	EnableRuleExtraction   bool    `yaml:"enable_rule_extraction,omitempty"`
}

// SetDefaults applies conflict pipeline defaults.
func (c *ConflictConfig) SetDefaults() {
	if c.TagOverlapThreshold == 0 {
		c.TagOverlapThreshold = 0.5
	}
	if c.SemanticThreshold == 0 {
		c.SemanticThreshold = 0.85
	}
	if c.DuplicateThreshold == 0 {
		c.DuplicateThreshold = 0.92
	}
	if c.MaxCandidatesPerMethod == 0 {
		c.MaxCandidatesPerMethod = 200
	}
	if c.MinEdgeWeight == 0 {
		c.MinEdgeWeight = 0.3
	}
	if c.StalenessDays == 0 {
		c.StalenessDays = 180
	}
	if c.DeferTTLHours == 0 {
		c.DeferTTLHours = 24 * 7
	}
}

// WritebackConfig tunes the write-back queue and committer (spec.md §4.4).
type WritebackConfig struct {
	MaxRetries           int     `yaml:"max_retries,omitempty"`
	AutoReviewConfidence float64 `yaml:"auto_review_confidence,omitempty"`
	MaxTokens            int     `yaml:"max_tokens,omitempty"`
}

// SetDefaults applies write-back defaults.
func (c *WritebackConfig) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.AutoReviewConfidence == 0 {
		c.AutoReviewConfidence = 0.8
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
}

// SelfModConfig tunes the self-modification proposal manager (spec.md
// §4.5.3).
type SelfModConfig struct {
	RequiredApprovals  int      `yaml:"required_approvals,omitempty"`
	AutoApproveLowRisk bool     `yaml:"auto_approve_low_risk,omitempty"`
	RequireTests       bool     `yaml:"require_tests,omitempty"`
	LineCountThreshold int      `yaml:"line_count_threshold,omitempty"`
	CorePathPrefixes   []string `yaml:"core_path_prefixes,omitempty"`
}

// SetDefaults applies self-modification defaults.
func (c *SelfModConfig) SetDefaults() {
	if c.RequiredApprovals == 0 {
		c.RequiredApprovals = 1
	}
	if c.LineCountThreshold == 0 {
		c.LineCountThreshold = 200
	}
	if len(c.CorePathPrefixes) == 0 {
		c.CorePathPrefixes = []string{"core/", "internal/", "__init__.py"}
	}
}

// RuntimeConfig tunes the agent runtime worker pools (spec.md §5).
type RuntimeConfig struct {
	BackgroundWorkers int `yaml:"background_workers,omitempty"`
	MailboxCapacity   int `yaml:"mailbox_capacity,omitempty"`
	EventBufferSize   int `yaml:"event_buffer_size,omitempty"`
	LLMTimeoutSeconds int `yaml:"llm_timeout_seconds,omitempty"`
	LLMMaxRetries     int `yaml:"llm_max_retries,omitempty"`
}

// SetDefaults applies runtime defaults.
func (c *RuntimeConfig) SetDefaults() {
	if c.BackgroundWorkers == 0 {
		c.BackgroundWorkers = 4
	}
	if c.MailboxCapacity == 0 {
		c.MailboxCapacity = 1000
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = 10000
	}
	if c.LLMTimeoutSeconds == 0 {
		c.LLMTimeoutSeconds = 30
	}
	if c.LLMMaxRetries == 0 {
		c.LLMMaxRetries = 3
	}
}

// ServerConfig tunes the admin HTTP surface (/healthz, /metrics).
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// SetDefaults applies server defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

// SetDefaults applies defaults across the whole config tree.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.WorkDir == "" {
		c.WorkDir = ".dmm"
	}
	c.Logger.SetDefaults()
	c.Retrieval.SetDefaults()
	c.Extract.SetDefaults()
	c.Conflict.SetDefaults()
	c.Writeback.SetDefaults()
	c.SelfMod.SetDefaults()
	c.Runtime.SetDefaults()
	c.Server.SetDefaults()
	c.Vector.SetDefaults()
	c.Embedder.SetDefaults()
	c.Cluster.SetDefaults()
}

// Validate checks the whole config tree.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Retrieval.Validate(); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	return nil
}
