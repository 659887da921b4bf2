package pattern

import (
	"context"
	"math"
	"sort"
	"time"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

// Suggest recommends indexed patterns for a target project. A pattern
// travels well when the projects exhibiting it run a stack like the
// target's, so affinity is the best profile-facet overlap between the
// target and any live source project. liveProfiles maps each
// non-archived project id to its profile facets; sources absent from it
// are archived and never back a suggestion. Patterns the target already
// exhibits are excluded. Ranking blends affinity with adoption, recency,
// and quality so a widely used fresh pattern outranks a stale one of
// equal fit.
func (l *Library) Suggest(ctx context.Context, targetID string, targetFacets []string, liveProfiles map[string][]string, limit int) ([]types.Suggestion, error) {
	if targetID == "" {
		return nil, atlaserrors.New(atlaserrors.ClassValidation, "pattern", "suggest", "target project id is required")
	}
	if len(targetFacets) == 0 {
		return nil, atlaserrors.New(atlaserrors.ClassValidation, "pattern", "suggest", "target profile has no facets")
	}

	ownIDs, err := l.store.GetPatternIDsByProject(ctx, targetID)
	if err != nil {
		return nil, err
	}
	own := make(map[string]bool, len(ownIDs))
	for _, id := range ownIDs {
		own[id] = true
	}

	patterns, err := l.List(ctx, "", types.PatternIndexed)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	var suggestions []types.Suggestion
	for _, p := range patterns {
		if own[p.ID] {
			continue
		}
		occs, err := l.store.GetOccurrences(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		sources := liveSources(occs, liveProfiles)
		if len(sources) == 0 {
			continue
		}

		sim := 0.0
		for _, src := range sources {
			if src == targetID {
				continue
			}
			if overlap := jaccard(targetFacets, liveProfiles[src]); overlap > sim {
				sim = overlap
			}
		}
		if sim < l.cfg.Pattern.SimilarityThreshold {
			continue
		}
		suggestions = append(suggestions, types.Suggestion{
			Pattern:    p,
			Similarity: sim,
			Score:      sim * l.adoptionWeight(p, occs, now),
			SourceIDs:  sources,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Pattern.ID < b.Pattern.ID
	})
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// adoptionWeight scales a suggestion by how proven the pattern is:
// usage saturates logarithmically, recency decays with the configured
// half-life, and quality enters directly.
func (l *Library) adoptionWeight(p *types.Pattern, occs []types.Occurrence, now time.Time) float64 {
	usage := 1 + math.Log1p(float64(p.UsageCount))

	recency := 0.5
	if latest := latestExtraction(occs); !latest.IsZero() {
		ageDays := now.Sub(latest).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		recency = math.Exp2(-ageDays / float64(l.cfg.Pattern.RecencyHalfLifeDays))
	}

	return usage * recency * p.Quality
}

func latestExtraction(occs []types.Occurrence) time.Time {
	var latest time.Time
	for _, occ := range occs {
		if occ.ExtractedAt.After(latest) {
			latest = occ.ExtractedAt
		}
	}
	return latest
}

// liveSources returns the distinct live projects exhibiting a pattern,
// sorted for deterministic output.
func liveSources(occs []types.Occurrence, live map[string][]string) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, occ := range occs {
		if seen[occ.ProjectID] {
			continue
		}
		if _, ok := live[occ.ProjectID]; !ok {
			continue
		}
		seen[occ.ProjectID] = true
		sources = append(sources, occ.ProjectID)
	}
	sort.Strings(sources)
	return sources
}

// jaccard computes |A∩B| / |A∪B| over facet sets. Two empty sets score
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
