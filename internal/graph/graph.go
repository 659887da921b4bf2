// Package graph maintains the knowledge graph: an immutable snapshot of
// typed nodes and weighted edges over projects, patterns, and components,
// rebuilt fully or incrementally and queried for similarity and insights.
package graph

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/atlasforge/atlas/internal/config"
	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/storage/sqlite"
	"github.com/atlasforge/atlas/internal/types"
)

// Input is the cross-subsystem state a rebuild reads. Callers assemble it
// from the registry, pattern library, and component library; the graph
// never reaches into those stores itself.
type Input struct {
	Projects      []*types.Project
	Patterns      []*types.Pattern
	Occurrences   map[string][]types.Occurrence // pattern id -> occurrences
	Components    []*types.Component
	Installations []types.Installation
}

// Snapshot is one immutable build of the graph. Published snapshots are
// never mutated; queries bind to whichever snapshot was current when
// they started.
type Snapshot struct {
	ID      string
	BuiltAt time.Time
	Nodes   []types.GraphNode
	Edges   []types.GraphEdge

	// input is retained for insight generation against this snapshot.
	// It is not persisted with the snapshot.
	input Input

	// report holds the per-entity outcomes of the build that produced
	// this snapshot. Like input, it is not persisted.
	report *types.BatchResult
}

// Report returns the per-entity outcomes of the full rebuild that
// produced this snapshot, or nil when the snapshot came from the store
// or an incremental delta.
func (s *Snapshot) Report() *types.BatchResult {
	return s.report
}

// Graph owns the current snapshot pointer and the durable snapshot
// store. Rebuilds serialize; queries read the published pointer without
// locking.
type Graph struct {
	store   *sqlite.Store
	cfg     *config.Config
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	now     func() time.Time
}

// Open loads the latest persisted snapshot, if any, and returns a graph
// ready for queries and rebuilds.
func Open(ctx context.Context, store *sqlite.Store, cfg *config.Config) (*Graph, error) {
	g := &Graph{store: store, cfg: cfg, now: time.Now}

	id, err := store.LatestGraphSnapshotID(ctx)
	if err != nil {
		return nil, err
	}
	if id != "" {
		nodes, edges, err := store.LoadGraphSnapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		g.current.Store(&Snapshot{ID: id, BuiltAt: g.now().UTC(), Nodes: nodes, Edges: edges})
	}
	return g, nil
}

// Current returns the published snapshot, or nil before the first build.
func (g *Graph) Current() *Snapshot {
	return g.current.Load()
}

// Rebuild recomputes the whole graph from in. Each input entity gets its
// own outcome: an entity that fails validation is skipped and reported,
// it never aborts the build. The report is available via Snapshot.Report.
// On success the new snapshot is persisted and published atomically. On
// cancellation partial results are discarded and the prior snapshot stays
// authoritative.
func (g *Graph) Rebuild(ctx context.Context, in Input) (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	in, report := vetInput(in, g.now)

	b := newBuilder(g.cfg, in)
	nodes := b.nodes()
	edges := b.structuralEdges()

	simEdges, err := b.similarityEdges(ctx, nil)
	if err != nil {
		return nil, err
	}
	edges = append(edges, simEdges...)

	report.Duration = g.now().Sub(report.StartedAt)
	return g.publish(ctx, nodes, edges, in, report)
}

// vetInput validates every input entity and drops the ones that fail,
// recording one outcome per entity.
func vetInput(in Input, now func() time.Time) (Input, *types.BatchResult) {
	report := &types.BatchResult{StartedAt: now()}

	keep := func(ref string, err error) bool {
		o := types.BatchItemOutcome{Ref: ref, OK: err == nil}
		if err != nil {
			o.Error = err.Error()
		}
		report.Outcomes = append(report.Outcomes, o)
		return err == nil
	}

	vetted := Input{
		Occurrences:   in.Occurrences,
		Installations: in.Installations,
	}
	for _, p := range in.Projects {
		if keep(p.ID, p.Validate()) {
			vetted.Projects = append(vetted.Projects, p)
		}
	}
	for _, p := range in.Patterns {
		if keep(p.ID, p.Validate()) {
			vetted.Patterns = append(vetted.Patterns, p)
		}
	}
	for _, c := range in.Components {
		if keep(c.ID, c.Validate()) {
			vetted.Components = append(vetted.Components, c)
		}
	}
	return vetted, report
}

// ApplyDelta incrementally folds one entity change into the graph. The
// cheap structural edges are recomputed from in; pairwise similarity is
// recomputed only for pairs involving the changed entity, with the rest
// carried over from the prior snapshot. An archive delta keeps the
// entity's existing edges but the entity stops contributing new
// shared-by edges on later builds.
func (g *Graph) ApplyDelta(ctx context.Context, delta types.GraphDelta, in Input) (*Snapshot, error) {
	prior := g.current.Load()
	if prior == nil {
		return g.Rebuild(ctx, in)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	changed := nodeID(delta.Kind, delta.RefID)
	b := newBuilder(g.cfg, in)
	nodes := b.nodes()
	edges := b.structuralEdges()

	if delta.Archived {
		// Existing shared-by edges involving the archived entity persist
		// even though the builder no longer produces them.
		for _, e := range prior.Edges {
			if e.Kind == types.EdgeSharedBy && (e.Source == changed || e.Target == changed) {
				edges = append(edges, e)
			}
		}
	}

	// Carry unaffected similarity edges, recompute the changed entity's.
	for _, e := range prior.Edges {
		if e.Kind == types.EdgeSimilarTo && e.Source != changed && e.Target != changed {
			edges = append(edges, e)
		}
	}
	simEdges, err := b.similarityEdges(ctx, &changed)
	if err != nil {
		return nil, err
	}
	edges = append(edges, simEdges...)

	return g.publish(ctx, nodes, edges, in, nil)
}

// publish sorts, validates, persists, and atomically swaps in a new
// snapshot.
func (g *Graph) publish(ctx context.Context, nodes []types.GraphNode, edges []types.GraphEdge, in Input, report *types.BatchResult) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, atlaserrors.Wrap(err, "graph", "publish", "aborted")
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	edges = dedupeEdges(edges)

	for _, e := range edges {
		if err := e.Validate(); err != nil {
			return nil, atlaserrors.Wrap(err, "graph", "publish", "invalid edge")
		}
	}

	snap := &Snapshot{
		ID:      "snap-" + uuid.NewString(),
		BuiltAt: g.now().UTC(),
		Nodes:   nodes,
		Edges:   edges,
		input:   in,
		report:  report,
	}
	if err := g.store.SaveGraphSnapshot(ctx, snap.ID, snap.BuiltAt, snap.Nodes, snap.Edges); err != nil {
		return nil, err
	}
	g.current.Store(snap)
	return snap, nil
}

// dedupeEdges drops duplicate (source, target, kind) edges, keeping the
// first occurrence, and sorts for deterministic output.
func dedupeEdges(edges []types.GraphEdge) []types.GraphEdge {
	seen := make(map[[3]string]bool, len(edges))
	out := edges[:0]
	for _, e := range edges {
		key := [3]string{e.Source, e.Target, string(e.Kind)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Kind < b.Kind
	})
	return out
}

// QuerySimilarity returns the projects most similar to projectID in the
// current snapshot, strongest first.
func (g *Graph) QuerySimilarity(projectID string, limit int) ([]types.SimilarityResult, error) {
	snap := g.current.Load()
	if snap == nil {
		return nil, atlaserrors.New(atlaserrors.ClassNotFound, "graph", "similarity", "no snapshot built yet")
	}

	self := nodeID(types.NodeProject, projectID)
	var results []types.SimilarityResult
	for _, e := range snap.Edges {
		if e.Kind != types.EdgeSimilarTo {
			continue
		}
		switch self {
		case e.Source:
			results = append(results, types.SimilarityResult{A: projectID, B: refOf(e.Target), Similarity: e.Weight})
		case e.Target:
			results = append(results, types.SimilarityResult{A: projectID, B: refOf(e.Source), Similarity: e.Weight})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].B < results[j].B
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func nodeID(kind types.NodeKind, refID string) string {
	return string(kind) + ":" + refID
}

func refOf(nodeID string) string {
	for i := 0; i < len(nodeID); i++ {
		if nodeID[i] == ':' {
			return nodeID[i+1:]
		}
	}
	return nodeID
}
