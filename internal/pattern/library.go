package pattern

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/atlasforge/atlas/internal/config"
	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/storage/sqlite"
	"github.com/atlasforge/atlas/internal/types"
)

// Library is the pattern catalog. Extraction merges descriptors by
// normalized signature, usage counts promote candidates to indexed, and
// archival of the last remaining source deprecates a pattern.
type Library struct {
	store    *sqlite.Store
	embedder Embedder
	cfg      *config.Config
	now      func() time.Time
}

// NewLibrary builds a Library over the given catalog store.
func NewLibrary(store *sqlite.Store, embedder Embedder, cfg *config.Config) *Library {
	return &Library{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ExtractResult reports what one extraction pass changed.
type ExtractResult struct {
	ProjectID string
	Inserted  int
	Merged    int
	Promoted  int
}

// Extract parses a project tree and folds its descriptors into the
// catalog. A descriptor whose signature already exists merges into the
// existing pattern; a new signature inserts a candidate. Re-extracting
// the same project is idempotent because occurrences are keyed by
// pattern, project, and location.
func (l *Library) Extract(ctx context.Context, projectID, projectPath string) (*ExtractResult, error) {
	if projectID == "" {
		return nil, atlaserrors.New(atlaserrors.ClassValidation, "pattern", "extract", "project id is required")
	}
	descriptors, err := ExtractDescriptors(projectPath)
	if err != nil {
		return nil, atlaserrors.Wrap(err, "pattern", "extract", "extraction failed")
	}

	// Usage counts distinct source projects, so patterns this project
	// already contributed to must not count again on re-extraction.
	knownIDs, err := l.store.GetPatternIDsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	result := &ExtractResult{ProjectID: projectID}
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if ctx.Err() != nil {
			return nil, atlaserrors.Wrap(ctx.Err(), "pattern", "extract", "aborted")
		}
		// The same signature can appear at several locations in one
		// project; count it once per pass but record every location.
		first := !seen[d.Signature]
		seen[d.Signature] = true

		promoted, inserted, mergeErr := l.merge(ctx, d, projectID, first, known)
		if mergeErr != nil {
			return nil, mergeErr
		}
		if first {
			if inserted {
				result.Inserted++
			} else {
				result.Merged++
			}
			if promoted {
				result.Promoted++
			}
		}
	}
	return result, nil
}

func (l *Library) merge(ctx context.Context, d Descriptor, projectID string, countUsage bool, known map[string]bool) (promoted, inserted bool, err error) {
	now := l.now().UTC()

	existing, err := l.store.GetPatternBySignature(ctx, d.Signature)
	if err != nil {
		return false, false, err
	}

	var p *types.Pattern
	if existing == nil {
		p = &types.Pattern{
			ID:         "pat-" + uuid.NewString(),
			Name:       d.Name,
			Category:   d.Category,
			Signature:  d.Signature,
			Embedding:  l.embedder.Embed(d.Tokens),
			Quality:    d.Quality,
			UsageCount: 0,
			Status:     types.PatternCandidate,
			Tags:       d.Tags,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		inserted = true
	} else {
		p = existing
		// Quality reflects the best sighting of the pattern.
		if d.Quality > p.Quality {
			p.Quality = d.Quality
		}
	}

	if countUsage && !known[p.ID] {
		p.UsageCount++
	}
	if p.Status == types.PatternCandidate && p.UsageCount >= l.cfg.Pattern.PromotionThreshold {
		p.Status = types.PatternIndexed
		promoted = true
	}
	p.UpdatedAt = now

	if err := p.Validate(); err != nil {
		return false, false, atlaserrors.Wrap(err, "pattern", "extract", "invalid pattern")
	}
	if err := l.store.PutPattern(ctx, p); err != nil {
		return false, false, err
	}
	occ := types.Occurrence{
		ProjectID:   projectID,
		Location:    d.Location,
		ExtractedAt: now,
	}
	if err := l.store.AddOccurrence(ctx, p.ID, occ); err != nil {
		return false, false, err
	}
	return promoted, inserted, nil
}

// Get returns one pattern by id.
func (l *Library) Get(ctx context.Context, id string) (*types.Pattern, error) {
	p, err := l.store.GetPattern(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, atlaserrors.Newf(atlaserrors.ClassNotFound, "pattern", "get", "pattern %s not found", id)
	}
	return p, nil
}

// List returns every pattern, optionally filtered by category and
// status, in stable id order.
func (l *Library) List(ctx context.Context, category types.PatternCategory, status types.PatternStatus) ([]*types.Pattern, error) {
	all, err := l.store.ListPatterns(ctx)
	if err != nil {
		return nil, err
	}
	var out []*types.Pattern
	for _, p := range all {
		if category != "" && p.Category != category {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Occurrences returns the recorded sightings of a pattern, most recent
// first.
func (l *Library) Occurrences(ctx context.Context, id string) ([]types.Occurrence, error) {
	if _, err := l.Get(ctx, id); err != nil {
		return nil, err
	}
	return l.store.GetOccurrences(ctx, id)
}

// OnProjectArchived deprecates every pattern whose only live sources are
// in the archived set. Patterns still occurring in a live project keep
// their status. Returns the ids of patterns deprecated by this call.
func (l *Library) OnProjectArchived(ctx context.Context, archivedID string, liveProjectIDs []string) ([]string, error) {
	live := make(map[string]bool, len(liveProjectIDs))
	for _, id := range liveProjectIDs {
		live[id] = true
	}

	patternIDs, err := l.store.GetPatternIDsByProject(ctx, archivedID)
	if err != nil {
		return nil, err
	}

	var deprecated []string
	for _, pid := range patternIDs {
		occs, err := l.store.GetOccurrences(ctx, pid)
		if err != nil {
			return nil, err
		}
		hasLiveSource := false
		for _, occ := range occs {
			if occ.ProjectID != archivedID && live[occ.ProjectID] {
				hasLiveSource = true
				break
			}
		}
		if hasLiveSource {
			continue
		}
		p, err := l.store.GetPattern(ctx, pid)
		if err != nil {
			return nil, err
		}
		if p == nil || p.Status == types.PatternDeprecated {
			continue
		}
		p.Status = types.PatternDeprecated
		p.UpdatedAt = l.now().UTC()
		if err := l.store.PutPattern(ctx, p); err != nil {
			return nil, err
		}
		deprecated = append(deprecated, pid)
	}
	sort.Strings(deprecated)
	return deprecated, nil
}
