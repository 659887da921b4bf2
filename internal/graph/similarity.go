package graph

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/pattern"
	"github.com/atlasforge/atlas/internal/types"
)

// Blend weights for project similarity. Technology profile carries the
// most signal; shared patterns and components refine it. The blend
// renormalizes over the terms that have evidence, so two projects with
// matching stacks score high even before any extraction has run.
const (
	profileWeight   = 0.4
	patternsWeight  = 0.35
	componentWeight = 0.25
)

// similarityEdges computes same-typed similar-to edges above the
// configured threshold. Pairs are scored in parallel; a cancelled
// context discards all partial results. When only is non-nil, only pairs
// involving that node are scored.
func (b *builder) similarityEdges(ctx context.Context, only *string) ([]types.GraphEdge, error) {
	type pair struct {
		a, b string // node ids
		sim  float64
	}

	var pairs []pair
	addPair := func(na, nb string, sim float64) {
		pairs = append(pairs, pair{a: na, b: nb, sim: sim})
	}

	// Enumerate candidate pairs deterministically.
	type job struct {
		na, nb string
		score  func() float64
	}
	var jobs []job

	projects := b.in.Projects
	for i := 0; i < len(projects); i++ {
		for j := i + 1; j < len(projects); j++ {
			a, c := projects[i], projects[j]
			na, nb := nodeID(types.NodeProject, a.ID), nodeID(types.NodeProject, c.ID)
			if only != nil && na != *only && nb != *only {
				continue
			}
			jobs = append(jobs, job{na: na, nb: nb, score: func() float64 {
				return b.projectSimilarity(a, c)
			}})
		}
	}

	patterns := b.in.Patterns
	for i := 0; i < len(patterns); i++ {
		for j := i + 1; j < len(patterns); j++ {
			a, c := patterns[i], patterns[j]
			na, nb := nodeID(types.NodePattern, a.ID), nodeID(types.NodePattern, c.ID)
			if only != nil && na != *only && nb != *only {
				continue
			}
			jobs = append(jobs, job{na: na, nb: nb, score: func() float64 {
				return pattern.Cosine(a.Embedding, c.Embedding)
			}})
		}
	}

	results := make([]float64, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range jobs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = jobs[i].score()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, atlaserrors.Wrap(err, "graph", "similarity", "scoring aborted")
	}

	for i, j := range jobs {
		if results[i] >= b.cfg.Graph.SimilarityEdgeThreshold {
			addPair(j.na, j.nb, results[i])
		}
	}

	edges := make([]types.GraphEdge, 0, len(pairs))
	for _, p := range pairs {
		edges = append(edges, types.GraphEdge{
			Source: p.a,
			Target: p.b,
			Kind:   types.EdgeSimilarTo,
			Weight: p.sim,
		})
	}
	return edges, nil
}

// projectSimilarity blends Jaccard overlap of technology profile facets,
// exhibited patterns, and installed components. A term with no evidence
// on either side casts no vote; the remaining weights renormalize.
func (b *builder) projectSimilarity(a, c *types.Project) float64 {
	terms := []struct {
		weight      float64
		left, right []string
	}{
		{profileWeight, a.Profile.Facets(), c.Profile.Facets()},
		{patternsWeight, b.projectPatterns(a.ID), b.projectPatterns(c.ID)},
		{componentWeight, b.projectComponents(a.ID), b.projectComponents(c.ID)},
	}

	var sum, total float64
	for _, t := range terms {
		if len(t.left) == 0 && len(t.right) == 0 {
			continue
		}
		sum += t.weight * jaccard(t.left, t.right)
		total += t.weight
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func (b *builder) projectPatterns(projectID string) []string {
	var ids []string
	for patternID, projects := range b.patternProjects {
		for _, p := range projects {
			if p == projectID {
				ids = append(ids, patternID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (b *builder) projectComponents(projectID string) []string {
	var ids []string
	for componentID, projects := range b.componentProjects {
		for _, p := range projects {
			if p == projectID {
				ids = append(ids, componentID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// jaccard computes |A∩B| / |A∪B| over string sets. Two empty sets score
// 0: absence of evidence is not similarity.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	inter := 0
	for _, s := range b {
		if set[s] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
