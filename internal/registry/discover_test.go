package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasforge/atlas/internal/config"
	"github.com/atlasforge/atlas/internal/types"
)

func TestDiscoverFindsMarkedProjects(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"svc-a/go.mod",
		"svc-b/package.json",
		"notes/readme.txt", // no marker, not a project
	} {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
	}

	r := newTestRegistry(t)
	result, err := r.Discover(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded())
	assert.Equal(t, 0, result.Failed())

	projects, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	for _, p := range projects {
		assert.Equal(t, types.StatusDiscovered, p.Status)
	}
}

func TestDiscoverSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	// A marker inside node_modules must not register a project
	full := filepath.Join(root, "svc-a", "node_modules", "dep", "package.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0644))

	r := newTestRegistry(t)
	_, err := r.Discover(context.Background(), []string{root})
	require.NoError(t, err)

	projects, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestDiscoverBadRootDoesNotAbortBatch(t *testing.T) {
	goodRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(goodRoot, "svc-a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(goodRoot, "svc-a", "go.mod"), []byte("x"), 0644))

	r := newTestRegistry(t)
	result, err := r.Discover(context.Background(),
		[]string{filepath.Join(goodRoot, "does-not-exist"), goodRoot})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed())
	assert.Equal(t, 1, result.Succeeded())
}

func TestDiscoverPreservesManualEdits(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "svc-a")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("x"), 0644))

	r := newTestRegistry(t)
	ctx := context.Background()

	p, err := r.Register(ctx, Descriptor{Path: dir})
	require.NoError(t, err)
	_, err = r.Update(ctx, p.ID, map[string]interface{}{"name": "hand-edited"})
	require.NoError(t, err)

	_, err = r.Discover(ctx, []string{root})
	require.NoError(t, err)

	got, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "hand-edited", got.Name, "discovery must not overwrite manual edits")
}

func TestDiscoverRespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c", "d", "svc")
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "go.mod"), []byte("x"), 0644))

	cfg := config.Default()
	cfg.Discovery.MaxDepth = 2
	r, err := Open(filepath.Join(t.TempDir(), "registry.json"), cfg, Options{})
	require.NoError(t, err)

	_, err = r.Discover(context.Background(), []string{root})
	require.NoError(t, err)

	projects, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects, "projects beyond max depth are not scanned")
}
