package types

import (
	"fmt"
	"time"
)

// NodeKind identifies which subsystem owns the entity a graph node
// references.
type NodeKind string

const (
	NodeProject   NodeKind = "project"
	NodePattern   NodeKind = "pattern"
	NodeComponent NodeKind = "component"
)

// IsValid checks if the node kind is valid
func (k NodeKind) IsValid() bool {
	switch k {
	case NodeProject, NodePattern, NodeComponent:
		return true
	}
	return false
}

// GraphNode references an entity owned by the registry, pattern library,
// or component library. Nodes never embed the entity itself; the graph is
// an arena of stable IDs, which keeps ownership simple and snapshots
// trivially serializable.
type GraphNode struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	RefID string   `json:"ref_id"`
}

// EdgeKind categorizes the relation an edge records.
type EdgeKind string

const (
	EdgeUses        EdgeKind = "uses"
	EdgeSimilarTo   EdgeKind = "similar-to"
	EdgeDependsOn   EdgeKind = "depends-on"
	EdgeEvolvedFrom EdgeKind = "evolved-from"
	EdgeSharedBy    EdgeKind = "shared-by"
)

// IsValid checks if the edge kind is valid
func (k EdgeKind) IsValid() bool {
	switch k {
	case EdgeUses, EdgeSimilarTo, EdgeDependsOn, EdgeEvolvedFrom, EdgeSharedBy:
		return true
	}
	return false
}

// GraphEdge is a weighted, typed relation between two graph nodes.
type GraphEdge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Weight float64  `json:"weight"` // [0,1]
}

// Validate checks edge invariants.
func (e GraphEdge) Validate() error {
	if e.Source == "" || e.Target == "" {
		return fmt.Errorf("source and target are required")
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid edge kind: %s", e.Kind)
	}
	if e.Weight < 0 || e.Weight > 1 {
		return fmt.Errorf("weight must be in [0,1] (got %.3f)", e.Weight)
	}
	return nil
}

// Insight is a ranked, evidence-backed recommendation produced by querying
// the knowledge graph. Insights are ephemeral query outputs, regenerated on
// demand; they are never persisted.
type Insight struct {
	Kind        InsightKind `json:"kind"`
	Claim       string      `json:"claim"`
	Evidence    []string    `json:"evidence"` // ordered entity IDs
	Confidence  float64     `json:"confidence"` // [0,1]
	GeneratedAt time.Time   `json:"generated_at"`
}

// InsightKind names the rule that produced an insight.
type InsightKind string

const (
	InsightExtractForReuse InsightKind = "extract-for-reuse"
	InsightPatternTransfer InsightKind = "pattern-transfer"
)

// GraphDelta is one incremental rebuild event: an entity was added,
// updated, or archived since the last snapshot.
type GraphDelta struct {
	Kind     NodeKind `json:"kind"`
	RefID    string   `json:"ref_id"`
	Archived bool     `json:"archived,omitempty"`
}

// SimilarityResult pairs two entities with their computed similarity.
type SimilarityResult struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Similarity float64 `json:"similarity"`
}
