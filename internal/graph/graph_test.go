package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasforge/atlas/internal/config"
	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/storage/sqlite"
	"github.com/atlasforge/atlas/internal/types"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	g, err := Open(context.Background(), store, config.Default())
	require.NoError(t, err)
	return g
}

func goProject(id, name string) *types.Project {
	return &types.Project{
		ID:     id,
		Path:   "/src/" + name,
		Name:   name,
		Status: types.StatusActive,
		Profile: types.TechnologyProfile{
			Framework:    "go",
			Datastore:    "sqlite",
			DeployTarget: "container",
			CISystem:     "github-actions",
		},
	}
}

// sameStackInput builds three projects on an identical stack sharing the
// same pattern, the canonical high-similarity portfolio.
func sameStackInput() Input {
	pat := &types.Pattern{
		ID: "pat-1", Name: "retry", Category: types.CategoryComponent,
		Signature: "sig-1", Status: types.PatternIndexed,
		Embedding: []float64{1, 0, 0},
	}
	occ := func(projectID string) types.Occurrence {
		return types.Occurrence{ProjectID: projectID, Location: "retry.go:1", ExtractedAt: time.Now()}
	}
	return Input{
		Projects: []*types.Project{
			goProject("proj-a", "alpha"),
			goProject("proj-b", "beta"),
			goProject("proj-c", "gamma"),
		},
		Patterns: []*types.Pattern{pat},
		Occurrences: map[string][]types.Occurrence{
			"pat-1": {occ("proj-a"), occ("proj-b"), occ("proj-c")},
		},
	}
}

func TestRebuildSameStackProjectsAreSimilar(t *testing.T) {
	g := newTestGraph(t)
	snap, err := g.Rebuild(context.Background(), sameStackInput())
	require.NoError(t, err)

	similar := edgesOfKind(snap, types.EdgeSimilarTo)
	require.Len(t, similar, 3, "three projects form three similar pairs")
	for _, e := range similar {
		assert.Greater(t, e.Weight, 0.6)
	}
}

func TestRebuildSharedStackAloneIsSimilar(t *testing.T) {
	g := newTestGraph(t)
	in := Input{
		Projects: []*types.Project{
			goProject("proj-a", "alpha"),
			goProject("proj-b", "beta"),
			goProject("proj-c", "gamma"),
		},
	}

	snap, err := g.Rebuild(context.Background(), in)
	require.NoError(t, err)

	similar := edgesOfKind(snap, types.EdgeSimilarTo)
	require.Len(t, similar, 3, "matching stacks alone must clear the edge threshold")
	for _, e := range similar {
		assert.Greater(t, e.Weight, 0.6)
	}
}

func TestRebuildReportsAndSkipsInvalidEntities(t *testing.T) {
	g := newTestGraph(t)
	in := sameStackInput()
	// A record with no name fails validation. It must be skipped with its
	// own outcome, not abort the rebuild.
	in.Projects = append(in.Projects, &types.Project{
		ID: "proj-bad", Path: "/src/bad", Status: types.StatusActive,
	})

	snap, err := g.Rebuild(context.Background(), in)
	require.NoError(t, err)

	for _, n := range snap.Nodes {
		assert.NotEqual(t, "proj-bad", n.RefID, "invalid entity must not enter the graph")
	}

	report := snap.Report()
	require.NotNil(t, report)
	assert.Equal(t, 4, report.Succeeded())
	require.Equal(t, 1, report.Failed())
	for _, o := range report.Outcomes {
		if o.OK {
			continue
		}
		assert.Equal(t, "proj-bad", o.Ref)
		assert.Contains(t, o.Error, "name is required")
	}
}

func TestRebuildIsDeterministic(t *testing.T) {
	in := sameStackInput()

	a := newTestGraph(t)
	snapA, err := a.Rebuild(context.Background(), in)
	require.NoError(t, err)

	b := newTestGraph(t)
	snapB, err := b.Rebuild(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, snapA.Nodes, snapB.Nodes)
	assert.Equal(t, snapA.Edges, snapB.Edges)
}

func TestRebuildStructuralEdges(t *testing.T) {
	g := newTestGraph(t)
	in := sameStackInput()
	in.Components = []*types.Component{
		{
			ID: "cmp-1", Name: "widget", Current: "1.0.0", SourceProjectID: "proj-a",
			Versions: []*types.ComponentVersion{
				{Version: "1.0.0", ContentHash: "h", PublishedAt: time.Now(),
					Requires: []types.Requirement{{ComponentID: "cmp-2", Constraint: "^1.0"}}},
			},
		},
	}
	in.Installations = []types.Installation{
		{ComponentID: "cmp-1", Version: "1.0.0", TargetID: "proj-b", InstalledAt: time.Now()},
	}

	snap, err := g.Rebuild(context.Background(), in)
	require.NoError(t, err)

	uses := edgesOfKind(snap, types.EdgeUses)
	assert.Contains(t, uses, types.GraphEdge{
		Source: "project:proj-b", Target: "component:cmp-1", Kind: types.EdgeUses, Weight: 1,
	})

	evolved := edgesOfKind(snap, types.EdgeEvolvedFrom)
	require.Len(t, evolved, 1)
	assert.Equal(t, "component:cmp-1", evolved[0].Source)
	assert.Equal(t, "project:proj-a", evolved[0].Target)

	depends := edgesOfKind(snap, types.EdgeDependsOn)
	require.Len(t, depends, 1)
	assert.Equal(t, "component:cmp-2", depends[0].Target)
}

func TestSharedByRequiresEnoughLiveProjects(t *testing.T) {
	g := newTestGraph(t)
	in := sameStackInput()

	snap, err := g.Rebuild(context.Background(), in)
	require.NoError(t, err)
	shared := edgesOfKind(snap, types.EdgeSharedBy)
	assert.Len(t, shared, 3, "pattern shared by all three live projects")

	// With two of three projects archived only one live project remains,
	// below the shared-by minimum.
	in.Projects[1].Status = types.StatusArchived
	in.Projects[2].Status = types.StatusArchived
	snap, err = g.Rebuild(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, edgesOfKind(snap, types.EdgeSharedBy))
}

func TestApplyDeltaArchiveKeepsExistingEdges(t *testing.T) {
	g := newTestGraph(t)
	in := sameStackInput()
	_, err := g.Rebuild(context.Background(), in)
	require.NoError(t, err)

	in.Projects[2].Status = types.StatusArchived
	snap, err := g.ApplyDelta(context.Background(),
		types.GraphDelta{Kind: types.NodeProject, RefID: "proj-c", Archived: true}, in)
	require.NoError(t, err)

	shared := edgesOfKind(snap, types.EdgeSharedBy)
	targets := make(map[string]bool)
	for _, e := range shared {
		targets[e.Target] = true
	}
	assert.True(t, targets["project:proj-c"],
		"existing shared-by edge persists through archival")
}

func TestRebuildCancelledKeepsPriorSnapshot(t *testing.T) {
	g := newTestGraph(t)
	in := sameStackInput()

	prior, err := g.Rebuild(context.Background(), in)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Rebuild(ctx, in)
	require.Error(t, err)
	assert.True(t, atlaserrors.IsCancelled(err))
	assert.Same(t, prior, g.Current(), "prior snapshot stays authoritative")
}

func TestQuerySimilarityRanksStrongestFirst(t *testing.T) {
	g := newTestGraph(t)
	in := sameStackInput()
	// Weaken gamma's overlap: different stack, no shared pattern.
	in.Projects[2].Profile = types.TechnologyProfile{Framework: "node", Datastore: "postgres"}
	in.Occurrences["pat-1"] = in.Occurrences["pat-1"][:2]

	_, err := g.Rebuild(context.Background(), in)
	require.NoError(t, err)

	results, err := g.QuerySimilarity("proj-a", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "proj-b", results[0].B)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestQuerySimilarityWithoutSnapshot(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.QuerySimilarity("proj-a", 0)
	assert.True(t, atlaserrors.IsNotFound(err))
}

func TestInsightExtractForReuse(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.Rebuild(context.Background(), sameStackInput())
	require.NoError(t, err)

	insights, err := g.QueryInsights(types.InsightExtractForReuse)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	in := insights[0]
	assert.Contains(t, in.Claim, "retry")
	assert.Contains(t, in.Claim, "3 projects")
	assert.Equal(t, []string{"pat-1", "proj-a", "proj-b", "proj-c"}, in.Evidence)
	assert.InDelta(t, 0.75, in.Confidence, 1e-9)
}

func TestInsightPatternTransfer(t *testing.T) {
	g := newTestGraph(t)
	in := sameStackInput()
	now := time.Now()
	in.Projects[0].Health = &types.HealthScore{Score: 90, ComputedAt: now}
	in.Projects[1].Health = &types.HealthScore{Score: 40, ComputedAt: now}

	_, err := g.Rebuild(context.Background(), in)
	require.NoError(t, err)

	insights, err := g.QueryInsights(types.InsightPatternTransfer)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	got := insights[0]
	assert.Equal(t, []string{"proj-a", "proj-b"}, got.Evidence,
		"healthier project listed first")
	assert.Contains(t, got.Claim, "alpha")
	assert.Contains(t, got.Claim, "beta")
	assert.Greater(t, got.Confidence, 0.0)
}

func TestReopenLoadsLatestSnapshot(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	g, err := Open(ctx, store, config.Default())
	require.NoError(t, err)
	built, err := g.Rebuild(ctx, sameStackInput())
	require.NoError(t, err)

	reopened, err := Open(ctx, store, config.Default())
	require.NoError(t, err)
	snap := reopened.Current()
	require.NotNil(t, snap)
	assert.Equal(t, built.ID, snap.ID)
	assert.Equal(t, built.Edges, snap.Edges)
}

func edgesOfKind(snap *Snapshot, kind types.EdgeKind) []types.GraphEdge {
	var out []types.GraphEdge
	for _, e := range snap.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
