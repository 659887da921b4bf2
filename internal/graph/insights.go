package graph

import (
	"fmt"
	"sort"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

// QueryInsights regenerates insights from the current snapshot. Insights
// are ephemeral: they are derived on every call and never persisted.
// Pass an empty kind for all rules.
func (g *Graph) QueryInsights(kind types.InsightKind) ([]types.Insight, error) {
	snap := g.current.Load()
	if snap == nil {
		return nil, atlaserrors.New(atlaserrors.ClassNotFound, "graph", "insights", "no snapshot built yet")
	}

	var insights []types.Insight
	if kind == "" || kind == types.InsightExtractForReuse {
		insights = append(insights, g.extractForReuse(snap)...)
	}
	if kind == "" || kind == types.InsightPatternTransfer {
		insights = append(insights, g.patternTransfer(snap)...)
	}

	sort.Slice(insights, func(i, j int) bool {
		if insights[i].Confidence != insights[j].Confidence {
			return insights[i].Confidence > insights[j].Confidence
		}
		return insights[i].Claim < insights[j].Claim
	})
	return insights, nil
}

// extractForReuse flags indexed patterns exhibited by enough live
// projects but not yet packaged as a component. Confidence grows with
// the count of adopting projects.
func (g *Graph) extractForReuse(snap *Snapshot) []types.Insight {
	minProjects := g.cfg.Graph.SharedByMinProjects
	now := g.now().UTC()

	// usedBy: pattern node -> live projects with a uses edge.
	usedBy := make(map[string][]string)
	archived := make(map[string]bool)
	for _, p := range snap.input.Projects {
		if p.IsArchived() {
			archived[p.ID] = true
		}
	}
	for _, e := range snap.Edges {
		if e.Kind != types.EdgeUses {
			continue
		}
		projectID := refOf(e.Source)
		if archived[projectID] {
			continue
		}
		usedBy[e.Target] = append(usedBy[e.Target], projectID)
	}

	names := make(map[string]string)
	indexed := make(map[string]bool)
	for _, p := range snap.input.Patterns {
		names[p.ID] = p.Name
		indexed[p.ID] = p.Status == types.PatternIndexed
	}

	var insights []types.Insight
	for _, p := range snap.input.Patterns {
		node := nodeID(types.NodePattern, p.ID)
		projects := usedBy[node]
		if !indexed[p.ID] || len(projects) < minProjects {
			continue
		}
		sort.Strings(projects)

		confidence := float64(len(projects)) / float64(minProjects*2)
		if confidence > 1 {
			confidence = 1
		}
		insights = append(insights, types.Insight{
			Kind: types.InsightExtractForReuse,
			Claim: fmt.Sprintf("pattern %q is used by %d projects; extract it into a shared component",
				p.Name, len(projects)),
			Evidence:    append([]string{p.ID}, projects...),
			Confidence:  confidence,
			GeneratedAt: now,
		})
	}
	return insights
}

// patternTransfer flags similar project pairs whose health scores have
// diverged: what works in the healthier project is a transfer candidate
// for the weaker one. Confidence blends similarity strength and the size
// of the gap.
func (g *Graph) patternTransfer(snap *Snapshot) []types.Insight {
	now := g.now().UTC()

	projects := make(map[string]*types.Project)
	for _, p := range snap.input.Projects {
		projects[p.ID] = p
	}

	var insights []types.Insight
	for _, e := range snap.Edges {
		if e.Kind != types.EdgeSimilarTo {
			continue
		}
		a, ok := projects[refOf(e.Source)]
		if !ok {
			continue
		}
		b, ok := projects[refOf(e.Target)]
		if !ok {
			continue
		}
		if a.Health == nil || b.Health == nil {
			continue
		}

		gap := a.Health.Score - b.Health.Score
		stronger, weaker := a, b
		if gap < 0 {
			gap = -gap
			stronger, weaker = b, a
		}
		if gap < g.cfg.Graph.HealthDivergence {
			continue
		}

		// Gap contribution saturates at twice the divergence threshold.
		gapTerm := gap / (2 * g.cfg.Graph.HealthDivergence)
		if gapTerm > 1 {
			gapTerm = 1
		}
		insights = append(insights, types.Insight{
			Kind: types.InsightPatternTransfer,
			Claim: fmt.Sprintf("%s and %s are similar but health diverges by %.0f; transfer patterns from %s to %s",
				stronger.Name, weaker.Name, gap, stronger.Name, weaker.Name),
			Evidence:    []string{stronger.ID, weaker.ID},
			Confidence:  e.Weight * gapTerm,
			GeneratedAt: now,
		})
	}
	return insights
}
