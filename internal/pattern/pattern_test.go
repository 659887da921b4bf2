package pattern

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasforge/atlas/internal/config"
	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/storage/sqlite"
	"github.com/atlasforge/atlas/internal/types"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	return NewLibrary(store, NewHashEmbedder(cfg.Pattern.EmbeddingDim), cfg)
}

// writeProject lays out a minimal Go project on disk from name→content.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

const retrySource = `package retry

import "time"

// Do retries fn with exponential backoff.
func Do(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(1<<i) * time.Millisecond)
	}
	return err
}
`

// retrySourceRenamed has the same structure as retrySource with every
// identifier renamed.
const retrySourceRenamed = `package backoff

import "time"

// Attempt retries op with exponential backoff.
func Attempt(tries int, op func() error) error {
	var failure error
	for n := 0; n < tries; n++ {
		if failure = op(); failure == nil {
			return nil
		}
		time.Sleep(time.Duration(1<<n) * time.Millisecond)
	}
	return failure
}
`

const cacheSource = `package cache

import "sync"

// Cache is a concurrency safe string map.
type Cache struct {
	mu sync.RWMutex
	m  map[string]string
}

// Get looks up a key under the read lock.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

// Set stores a value under the write lock.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}
`

func TestExtractDescriptorsNormalizesIdentifiers(t *testing.T) {
	dirA := writeProject(t, map[string]string{"retry.go": retrySource})
	dirB := writeProject(t, map[string]string{"backoff.go": retrySourceRenamed})

	dsA, err := ExtractDescriptors(dirA)
	require.NoError(t, err)
	dsB, err := ExtractDescriptors(dirB)
	require.NoError(t, err)

	require.Len(t, dsA, 1)
	require.Len(t, dsB, 1)
	assert.Equal(t, dsA[0].Signature, dsB[0].Signature,
		"renaming identifiers must not change the signature")
	assert.NotEqual(t, dsA[0].Name, dsB[0].Name)
}

func TestExtractDescriptorsSkipsVendorAndTests(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"retry.go":                  retrySource,
		"retry_test.go":             retrySource,
		"vendor/dep/dep.go":         retrySource,
		"node_modules/pkg/index.js": "module.exports = {}",
	})

	ds, err := ExtractDescriptors(dir)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "retry.go:6", ds[0].Location)
}

func TestExtractDescriptorCategories(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"iface.go":           "package p\n\n// Doer does.\ntype Doer interface {\n\tDo() error\n}\n",
		"docker-compose.yml": "services: {}\n",
		"README.md":          "# hello\n",
	})

	ds, err := ExtractDescriptors(dir)
	require.NoError(t, err)

	byCategory := map[types.PatternCategory]int{}
	for _, d := range ds {
		byCategory[d.Category]++
	}
	assert.Equal(t, 1, byCategory[types.CategoryArchitectural])
	assert.Equal(t, 1, byCategory[types.CategoryConfiguration])
	assert.Equal(t, 1, byCategory[types.CategoryDocumentation])
}

func TestExtractInsertsCandidates(t *testing.T) {
	lib := newTestLibrary(t)
	ctx := context.Background()
	dir := writeProject(t, map[string]string{"retry.go": retrySource})

	res, err := lib.Extract(ctx, "proj-a", dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Merged)

	patterns, err := lib.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, types.PatternCandidate, patterns[0].Status)
	assert.Equal(t, 1, patterns[0].UsageCount)
}

func TestExtractIsIdempotentPerProject(t *testing.T) {
	lib := newTestLibrary(t)
	ctx := context.Background()
	dir := writeProject(t, map[string]string{"retry.go": retrySource})

	_, err := lib.Extract(ctx, "proj-a", dir)
	require.NoError(t, err)
	_, err = lib.Extract(ctx, "proj-a", dir)
	require.NoError(t, err)

	patterns, err := lib.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 1, patterns[0].UsageCount,
		"usage counts distinct projects, not extraction passes")

	occs, err := lib.Occurrences(ctx, patterns[0].ID)
	require.NoError(t, err)
	assert.Len(t, occs, 1, "re-extraction must not duplicate occurrences")
}

func TestPromotionAtThreshold(t *testing.T) {
	lib := newTestLibrary(t)
	lib.cfg.Pattern.PromotionThreshold = 3
	ctx := context.Background()

	// Same structure seen from three different projects.
	for i, name := range []string{"proj-a", "proj-b", "proj-c"} {
		dir := writeProject(t, map[string]string{"retry.go": retrySource})
		res, err := lib.Extract(ctx, name, dir)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, 0, res.Promoted)
		} else {
			assert.Equal(t, 1, res.Promoted, "third sighting must promote")
		}
	}

	patterns, err := lib.List(ctx, "", types.PatternIndexed)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 3, patterns[0].UsageCount)
}

func TestMatchSelfSimilarity(t *testing.T) {
	lib := newTestLibrary(t)
	lib.cfg.Pattern.PromotionThreshold = 1
	ctx := context.Background()

	retryDir := writeProject(t, map[string]string{"retry.go": retrySource})
	cacheDir := writeProject(t, map[string]string{"cache.go": cacheSource})
	_, err := lib.Extract(ctx, "proj-a", retryDir)
	require.NoError(t, err)
	_, err = lib.Extract(ctx, "proj-b", cacheDir)
	require.NoError(t, err)

	// Query with the retry pattern's own token stream.
	ds, err := ExtractDescriptors(retryDir)
	require.NoError(t, err)
	require.Len(t, ds, 1)

	matches, err := lib.Match(ctx, MatchQuery{Tokens: ds[0].Tokens})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, ds[0].Signature, matches[0].Pattern.Signature)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9,
		"a pattern matched against itself scores 1")
}

func TestMatchExcludesCandidates(t *testing.T) {
	lib := newTestLibrary(t)
	ctx := context.Background()

	dir := writeProject(t, map[string]string{"retry.go": retrySource})
	_, err := lib.Extract(ctx, "proj-a", dir)
	require.NoError(t, err)

	ds, err := ExtractDescriptors(dir)
	require.NoError(t, err)

	matches, err := lib.Match(ctx, MatchQuery{Tokens: ds[0].Tokens})
	require.NoError(t, err)
	assert.Empty(t, matches, "candidates are not matchable until promoted")
}

func TestMatchRequiresQueryInput(t *testing.T) {
	lib := newTestLibrary(t)
	_, err := lib.Match(context.Background(), MatchQuery{})
	assert.True(t, atlaserrors.IsValidation(err))
}

// goStackFacets mirrors what a registered Go project's technology
// profile yields for suggestion affinity.
func goStackFacets() []string {
	p := types.TechnologyProfile{Framework: "go", Datastore: "sqlite", CISystem: "github-actions"}
	return p.Facets()
}

func TestSuggestRanksPatternFromProfileSimilarProject(t *testing.T) {
	lib := newTestLibrary(t)
	lib.cfg.Pattern.PromotionThreshold = 1
	ctx := context.Background()

	dir := writeProject(t, map[string]string{"retry.go": retrySource})
	_, err := lib.Extract(ctx, "proj-a", dir)
	require.NoError(t, err)

	// proj-b runs the same stack as proj-a and has extracted nothing, the
	// canonical adoption target.
	profiles := map[string][]string{
		"proj-a": goStackFacets(),
		"proj-b": goStackFacets(),
	}
	suggestions, err := lib.Suggest(ctx, "proj-b", goStackFacets(), profiles, 10)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, []string{"proj-a"}, suggestions[0].SourceIDs)
	assert.InDelta(t, 1.0, suggestions[0].Similarity, 1e-9)

	// A disjoint stack has no affinity with the pattern's sources.
	nodeFacets := types.TechnologyProfile{Framework: "node", Datastore: "postgres"}.Facets()
	suggestions, err = lib.Suggest(ctx, "proj-b", nodeFacets, profiles, 10)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestExcludesOwnAndArchivedSources(t *testing.T) {
	lib := newTestLibrary(t)
	lib.cfg.Pattern.PromotionThreshold = 1
	ctx := context.Background()

	retryDir := writeProject(t, map[string]string{"retry.go": retrySource})
	cacheDir := writeProject(t, map[string]string{"cache.go": cacheSource})
	_, err := lib.Extract(ctx, "proj-a", retryDir)
	require.NoError(t, err)
	_, err = lib.Extract(ctx, "proj-b", cacheDir)
	require.NoError(t, err)

	// The target already has the cache pattern, so only retry may be
	// suggested.
	_, err = lib.Extract(ctx, "proj-target", cacheDir)
	require.NoError(t, err)

	profiles := map[string][]string{
		"proj-a":      goStackFacets(),
		"proj-b":      goStackFacets(),
		"proj-target": goStackFacets(),
	}
	suggestions, err := lib.Suggest(ctx, "proj-target", goStackFacets(), profiles, 0)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, []string{"proj-a"}, suggestions[0].SourceIDs)

	// Archiving the only source removes the suggestion.
	delete(profiles, "proj-a")
	suggestions, err = lib.Suggest(ctx, "proj-target", goStackFacets(), profiles, 0)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestScoreRewardsAdoption(t *testing.T) {
	lib := newTestLibrary(t)
	lib.cfg.Pattern.PromotionThreshold = 1
	ctx := context.Background()

	dir := writeProject(t, map[string]string{"retry.go": retrySource})
	_, err := lib.Extract(ctx, "proj-a", dir)
	require.NoError(t, err)

	profiles := map[string][]string{
		"proj-a":      goStackFacets(),
		"proj-target": goStackFacets(),
	}
	before, err := lib.Suggest(ctx, "proj-target", goStackFacets(), profiles, 0)
	require.NoError(t, err)
	require.Len(t, before, 1)

	// More sightings raise the adoption weight for the same affinity.
	for _, name := range []string{"proj-b", "proj-c"} {
		d := writeProject(t, map[string]string{"retry.go": retrySource})
		_, err = lib.Extract(ctx, name, d)
		require.NoError(t, err)
		profiles[name] = goStackFacets()
	}
	after, err := lib.Suggest(ctx, "proj-target", goStackFacets(), profiles, 0)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Greater(t, after[0].Score, before[0].Score)
	assert.InDelta(t, before[0].Similarity, after[0].Similarity, 1e-9)
}

func TestOnProjectArchivedDeprecatesOrphanedPatterns(t *testing.T) {
	lib := newTestLibrary(t)
	lib.cfg.Pattern.PromotionThreshold = 1
	ctx := context.Background()

	retryDir := writeProject(t, map[string]string{"retry.go": retrySource})
	cacheDir := writeProject(t, map[string]string{"cache.go": cacheSource})

	// Retry lives only in proj-a; cache lives in both projects.
	_, err := lib.Extract(ctx, "proj-a", retryDir)
	require.NoError(t, err)
	_, err = lib.Extract(ctx, "proj-a", cacheDir)
	require.NoError(t, err)
	_, err = lib.Extract(ctx, "proj-b", cacheDir)
	require.NoError(t, err)

	deprecated, err := lib.OnProjectArchived(ctx, "proj-a", []string{"proj-b"})
	require.NoError(t, err)
	require.Len(t, deprecated, 1)

	p, err := lib.Get(ctx, deprecated[0])
	require.NoError(t, err)
	assert.Equal(t, types.PatternDeprecated, p.Status)

	stillIndexed, err := lib.List(ctx, "", types.PatternIndexed)
	require.NoError(t, err)
	require.NotEmpty(t, stillIndexed, "patterns with live sources keep their status")
}

func TestHashEmbedderDeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	tokens := []string{"loop", "if", "call", "return", "call"}

	a := e.Embed(tokens)
	b := e.Embed(tokens)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	var norm float64
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestCosineBounds(t *testing.T) {
	e := NewHashEmbedder(32)
	a := e.Embed([]string{"if", "call"})
	b := e.Embed([]string{"struct", "map", "chan"})

	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	sim := Cosine(a, b)
	assert.GreaterOrEqual(t, sim, 0.0)
	assert.LessOrEqual(t, sim, 1.0)

	assert.Zero(t, Cosine(a, nil))
	assert.Zero(t, Cosine(a, []float64{1, 2}))
}

func TestSuggestRecencyDecay(t *testing.T) {
	lib := newTestLibrary(t)
	lib.cfg.Pattern.PromotionThreshold = 1
	ctx := context.Background()

	dir := writeProject(t, map[string]string{"retry.go": retrySource})
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	lib.now = func() time.Time { return base }
	_, err := lib.Extract(ctx, "proj-a", dir)
	require.NoError(t, err)

	profiles := map[string][]string{
		"proj-a":      goStackFacets(),
		"proj-target": goStackFacets(),
	}
	fresh, err := lib.Suggest(ctx, "proj-target", goStackFacets(), profiles, 0)
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	// Two half-lives later the same pattern scores a quarter as much.
	lib.now = func() time.Time {
		return base.AddDate(0, 0, 2*lib.cfg.Pattern.RecencyHalfLifeDays)
	}
	stale, err := lib.Suggest(ctx, "proj-target", goStackFacets(), profiles, 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.InDelta(t, fresh[0].Score/4, stale[0].Score, 1e-9)
}
