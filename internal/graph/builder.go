package graph

import (
	"sort"

	"github.com/atlasforge/atlas/internal/config"
	"github.com/atlasforge/atlas/internal/types"
)

// builder computes one graph's node and edge sets from an Input. All
// iteration is over sorted keys so identical input always yields an
// identical graph.
type builder struct {
	cfg *config.Config
	in  Input

	// patternProjects maps pattern id to the sorted distinct projects
	// exhibiting it; componentProjects likewise from installations.
	patternProjects   map[string][]string
	componentProjects map[string][]string
	archived          map[string]bool
}

func newBuilder(cfg *config.Config, in Input) *builder {
	b := &builder{
		cfg:               cfg,
		in:                in,
		patternProjects:   make(map[string][]string),
		componentProjects: make(map[string][]string),
		archived:          make(map[string]bool),
	}
	for _, p := range in.Projects {
		if p.IsArchived() {
			b.archived[p.ID] = true
		}
	}
	for patternID, occs := range in.Occurrences {
		seen := make(map[string]bool)
		for _, occ := range occs {
			if !seen[occ.ProjectID] {
				seen[occ.ProjectID] = true
				b.patternProjects[patternID] = append(b.patternProjects[patternID], occ.ProjectID)
			}
		}
		sort.Strings(b.patternProjects[patternID])
	}
	for _, inst := range in.Installations {
		b.componentProjects[inst.ComponentID] = append(b.componentProjects[inst.ComponentID], inst.TargetID)
	}
	for id := range b.componentProjects {
		sort.Strings(b.componentProjects[id])
	}
	return b
}

// nodes materializes one node per project, pattern, and component.
func (b *builder) nodes() []types.GraphNode {
	var nodes []types.GraphNode
	for _, p := range b.in.Projects {
		nodes = append(nodes, types.GraphNode{ID: nodeID(types.NodeProject, p.ID), Kind: types.NodeProject, RefID: p.ID})
	}
	for _, p := range b.in.Patterns {
		nodes = append(nodes, types.GraphNode{ID: nodeID(types.NodePattern, p.ID), Kind: types.NodePattern, RefID: p.ID})
	}
	for _, c := range b.in.Components {
		nodes = append(nodes, types.GraphNode{ID: nodeID(types.NodeComponent, c.ID), Kind: types.NodeComponent, RefID: c.ID})
	}
	return nodes
}

// structuralEdges computes the non-similarity edges: uses, depends-on,
// evolved-from, and shared-by. Archived projects never contribute new
// shared-by edges.
func (b *builder) structuralEdges() []types.GraphEdge {
	var edges []types.GraphEdge

	// project --uses--> pattern
	patternIDs := sortedKeys(b.patternProjects)
	for _, patternID := range patternIDs {
		for _, projectID := range b.patternProjects[patternID] {
			edges = append(edges, types.GraphEdge{
				Source: nodeID(types.NodeProject, projectID),
				Target: nodeID(types.NodePattern, patternID),
				Kind:   types.EdgeUses,
				Weight: 1,
			})
		}
	}

	// project --uses--> component
	componentIDs := sortedKeys(b.componentProjects)
	for _, componentID := range componentIDs {
		for _, projectID := range b.componentProjects[componentID] {
			edges = append(edges, types.GraphEdge{
				Source: nodeID(types.NodeProject, projectID),
				Target: nodeID(types.NodeComponent, componentID),
				Kind:   types.EdgeUses,
				Weight: 1,
			})
		}
	}

	for _, c := range b.in.Components {
		// component --evolved-from--> source project
		if c.SourceProjectID != "" {
			edges = append(edges, types.GraphEdge{
				Source: nodeID(types.NodeComponent, c.ID),
				Target: nodeID(types.NodeProject, c.SourceProjectID),
				Kind:   types.EdgeEvolvedFrom,
				Weight: 1,
			})
		}
		// component --depends-on--> component, from the latest version
		if latest := c.Latest(); latest != nil {
			for _, req := range latest.Requires {
				edges = append(edges, types.GraphEdge{
					Source: nodeID(types.NodeComponent, c.ID),
					Target: nodeID(types.NodeComponent, req.ComponentID),
					Kind:   types.EdgeDependsOn,
					Weight: 1,
				})
			}
		}
	}

	// pattern/component --shared-by--> each live project, once enough
	// live projects use the entity.
	edges = append(edges, b.sharedByEdges(types.NodePattern, patternIDs, b.patternProjects)...)
	edges = append(edges, b.sharedByEdges(types.NodeComponent, componentIDs, b.componentProjects)...)

	return edges
}

func (b *builder) sharedByEdges(kind types.NodeKind, ids []string, projects map[string][]string) []types.GraphEdge {
	var edges []types.GraphEdge
	for _, id := range ids {
		var live []string
		for _, projectID := range projects[id] {
			if !b.archived[projectID] {
				live = append(live, projectID)
			}
		}
		if len(live) < b.cfg.Graph.SharedByMinProjects {
			continue
		}
		for _, projectID := range live {
			edges = append(edges, types.GraphEdge{
				Source: nodeID(kind, id),
				Target: nodeID(types.NodeProject, projectID),
				Kind:   types.EdgeSharedBy,
				Weight: 1,
			})
		}
	}
	return edges
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
