package pattern

import (
	"context"
	"sort"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

// MatchQuery describes what to match against the indexed catalog. Either
// a raw token stream or a prebuilt embedding must be supplied.
type MatchQuery struct {
	Tokens    []string
	Embedding []float64
	Category  types.PatternCategory
	Tag       string
	Threshold float64 // 0 means the configured similarity threshold
	Limit     int
}

// Match ranks indexed patterns by cosine similarity to the query.
// Candidates and deprecated patterns never match. Results below the
// threshold are dropped; ties break by usage count, then recency, then
// id so ordering is deterministic.
func (l *Library) Match(ctx context.Context, q MatchQuery) ([]types.PatternMatch, error) {
	embedding := q.Embedding
	if embedding == nil {
		if len(q.Tokens) == 0 {
			return nil, atlaserrors.New(atlaserrors.ClassValidation, "pattern", "match", "query needs tokens or an embedding")
		}
		embedding = l.embedder.Embed(q.Tokens)
	}

	threshold := q.Threshold
	if threshold == 0 {
		threshold = l.cfg.Pattern.SimilarityThreshold
	}

	patterns, err := l.List(ctx, q.Category, types.PatternIndexed)
	if err != nil {
		return nil, err
	}

	var matches []types.PatternMatch
	for _, p := range patterns {
		if q.Tag != "" && !hasTag(p.Tags, q.Tag) {
			continue
		}
		sim := Cosine(embedding, p.Embedding)
		if sim < threshold {
			continue
		}
		matches = append(matches, types.PatternMatch{Pattern: p, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Pattern.UsageCount != b.Pattern.UsageCount {
			return a.Pattern.UsageCount > b.Pattern.UsageCount
		}
		if !a.Pattern.UpdatedAt.Equal(b.Pattern.UpdatedAt) {
			return a.Pattern.UpdatedAt.After(b.Pattern.UpdatedAt)
		}
		return a.Pattern.ID < b.Pattern.ID
	})

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
