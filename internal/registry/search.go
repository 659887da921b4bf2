package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/atlasforge/atlas/internal/types"
)

// Search returns projects matching the filter, ordered by relevance then
// recency. Relevance counts how many filter criteria a project matches
// exactly; ties break on most recent update.
func (r *Registry) Search(ctx context.Context, filter types.ProjectFilter) ([]*types.Project, error) {
	projects, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		project   *types.Project
		relevance int
	}

	var matches []scored
	for _, p := range projects {
		rel, ok := score(p, filter)
		if !ok {
			continue
		}
		matches = append(matches, scored{project: p, relevance: rel})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].relevance != matches[j].relevance {
			return matches[i].relevance > matches[j].relevance
		}
		return matches[i].project.UpdatedAt.After(matches[j].project.UpdatedAt)
	})

	results := make([]*types.Project, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.project)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

// score returns the relevance of a project against the filter and whether
// every specified criterion matched.
func score(p *types.Project, filter types.ProjectFilter) (int, bool) {
	relevance := 0

	if filter.Framework != "" {
		if !strings.EqualFold(p.Profile.Framework, filter.Framework) {
			return 0, false
		}
		relevance++
	}
	if filter.Status != nil {
		if p.Status != *filter.Status {
			return 0, false
		}
		relevance++
	}
	if filter.Tag != "" {
		found := false
		for _, t := range p.Tags {
			if strings.EqualFold(t, filter.Tag) {
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
		relevance++
	}
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		name := strings.ToLower(p.Name)
		path := strings.ToLower(p.Path)
		switch {
		case name == q:
			relevance += 3
		case strings.Contains(name, q):
			relevance += 2
		case strings.Contains(path, q):
			relevance++
		default:
			return 0, false
		}
	}

	return relevance, true
}
