package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPattern(id, sig string) *types.Pattern {
	now := time.Now()
	return &types.Pattern{
		ID:        id,
		Name:      "worker pool",
		Category:  types.CategoryArchitectural,
		Signature: sig,
		Embedding: []float64{0.1, 0.2, 0.3},
		Quality:   0.8,
		Status:    types.PatternCandidate,
		Tags:      []string{"concurrency"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPatternRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := testPattern("pat-1", "sig-abc")
	require.NoError(t, s.PutPattern(ctx, p))

	got, err := s.GetPattern(ctx, "pat-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Signature, got.Signature)
	assert.Equal(t, p.Embedding, got.Embedding)
	assert.Equal(t, p.Tags, got.Tags)

	bySig, err := s.GetPatternBySignature(ctx, "sig-abc")
	require.NoError(t, err)
	require.NotNil(t, bySig)
	assert.Equal(t, "pat-1", bySig.ID)

	missing, err := s.GetPattern(ctx, "pat-none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPatternUpsertUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := testPattern("pat-1", "sig-abc")
	require.NoError(t, s.PutPattern(ctx, p))

	p.UsageCount = 5
	p.Status = types.PatternIndexed
	require.NoError(t, s.PutPattern(ctx, p))

	got, err := s.GetPattern(ctx, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.UsageCount)
	assert.Equal(t, types.PatternIndexed, got.Status)

	all, err := s.ListPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOccurrencesDedupe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPattern(ctx, testPattern("pat-1", "sig-abc")))

	occ := types.Occurrence{ProjectID: "proj-1", Location: "internal/pool/pool.go:10", ExtractedAt: time.Now()}
	require.NoError(t, s.AddOccurrence(ctx, "pat-1", occ))
	require.NoError(t, s.AddOccurrence(ctx, "pat-1", occ)) // duplicate is a no-op

	occs, err := s.GetOccurrences(ctx, "pat-1")
	require.NoError(t, err)
	assert.Len(t, occs, 1)

	ids, err := s.GetPatternIDsByProject(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pat-1"}, ids)
}

func TestComponentVersionsAppendOnlyMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &types.Component{ID: "comp-1", Name: "auth-kit"}
	require.NoError(t, s.CreateComponent(ctx, c))

	v1 := &types.ComponentVersion{Version: "1.0.0", ContentHash: "h1", PublishedAt: time.Now()}
	require.NoError(t, s.AppendVersion(ctx, "comp-1", v1))

	// Reusing the same version is a conflict
	err := s.AppendVersion(ctx, "comp-1", &types.ComponentVersion{
		Version: "1.0.0", ContentHash: "h2", PublishedAt: time.Now()})
	require.Error(t, err)
	assert.True(t, atlaserrors.IsConflict(err))

	// Regressing is a conflict
	err = s.AppendVersion(ctx, "comp-1", &types.ComponentVersion{
		Version: "0.9.0", ContentHash: "h3", PublishedAt: time.Now()})
	require.Error(t, err)
	assert.True(t, atlaserrors.IsConflict(err))

	v2 := &types.ComponentVersion{
		Version: "2.0.0", ContentHash: "h4", Breaking: true,
		Requires:    []types.Requirement{{ComponentID: "comp-2", Constraint: "^1.0"}},
		PublishedAt: time.Now(),
	}
	require.NoError(t, s.AppendVersion(ctx, "comp-1", v2))

	got, err := s.GetComponent(ctx, "comp-1")
	require.NoError(t, err)
	require.Len(t, got.Versions, 2)
	assert.Equal(t, "2.0.0", got.Current)
	assert.Equal(t, "1.0.0", got.Versions[0].Version)
	assert.True(t, got.Versions[1].Breaking)
	assert.Equal(t, "comp-2", got.Versions[1].Requires[0].ComponentID)
}

func TestComponentNameConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateComponent(ctx, &types.Component{ID: "comp-1", Name: "auth-kit"}))
	err := s.CreateComponent(ctx, &types.Component{ID: "comp-2", Name: "auth-kit"})
	require.Error(t, err)
	assert.True(t, atlaserrors.IsConflict(err))
}

func TestInstallationsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inst := types.Installation{
		ComponentID: "comp-1", Version: "1.0.0", TargetID: "proj-1", InstalledAt: time.Now(),
	}
	require.NoError(t, s.RecordInstallation(ctx, inst))

	got, err := s.GetInstallation(ctx, "comp-1", "proj-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.0.0", got.Version)

	// Refreshing updates the version in place
	inst.Version = "1.1.0"
	require.NoError(t, s.RecordInstallation(ctx, inst))
	all, err := s.ListInstallations(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "1.1.0", all[0].Version)
}

func TestGraphSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	nodes := []types.GraphNode{
		{ID: "project:proj-1", Kind: types.NodeProject, RefID: "proj-1"},
		{ID: "pattern:pat-1", Kind: types.NodePattern, RefID: "pat-1"},
	}
	edges := []types.GraphEdge{
		{Source: "project:proj-1", Target: "pattern:pat-1", Kind: types.EdgeUses, Weight: 1.0},
	}

	require.NoError(t, s.SaveGraphSnapshot(ctx, "snap-1", time.Now(), nodes, edges))

	gotNodes, gotEdges, err := s.LoadGraphSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, nodes, gotNodes)
	assert.Equal(t, edges, gotEdges)

	latest, err := s.LatestGraphSnapshotID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", latest)
}

func TestLatestGraphSnapshotEmpty(t *testing.T) {
	s := newTestStore(t)
	latest, err := s.LatestGraphSnapshotID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", latest)
}
