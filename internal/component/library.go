package component

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/storage"
	"github.com/atlasforge/atlas/internal/storage/sqlite"
	"github.com/atlasforge/atlas/internal/types"
)

// Library is the component catalog. Published bundles live under the
// library root as <component-id>/<version>/ and version history is
// append-only in the catalog store.
type Library struct {
	store *sqlite.Store
	root  string
	locks *storage.TargetLocks
	now   func() time.Time
}

// NewLibrary opens a component library rooted at dir.
func NewLibrary(store *sqlite.Store, dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, atlaserrors.Wrap(err, "component", "open", "creating library root")
	}
	return &Library{
		store: store,
		root:  dir,
		locks: storage.NewTargetLocks(),
		now:   time.Now,
	}, nil
}

// Package bundles a contiguous directory from a source project into a
// new component version. The first publish of a name creates the
// component at 1.0.0; later publishes diff the exported interface
// against the prior version to pick the bump. Re-publishing identical
// content is a no-op returning the existing version.
func (l *Library) Package(ctx context.Context, projectID, dir, name string) (*types.Component, *types.ComponentVersion, error) {
	if name == "" {
		return nil, nil, atlaserrors.New(atlaserrors.ClassValidation, "component", "package", "component name is required")
	}
	b, err := readBundle(dir)
	if err != nil {
		return nil, nil, atlaserrors.Wrap(err, "component", "package", "reading bundle")
	}

	c, err := l.store.GetComponentByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		c = &types.Component{
			ID:              "cmp-" + uuid.NewString(),
			Name:            name,
			SourceProjectID: projectID,
			CreatedAt:       l.now().UTC(),
			UpdatedAt:       l.now().UTC(),
		}
		if err := c.Validate(); err != nil {
			return nil, nil, atlaserrors.Wrap(err, "component", "package", "invalid component")
		}
		if err := l.store.CreateComponent(ctx, c); err != nil {
			return nil, nil, err
		}
	}

	prior := c.Latest()
	if prior != nil && prior.ContentHash == b.hash {
		return c, prior, nil
	}

	bump := types.BumpPatch
	if prior != nil {
		bump = diffInterface(prior.Interface, b.iface)
	}

	requires, err := l.resolveRequirements(ctx, b)
	if err != nil {
		return nil, nil, err
	}

	var version string
	if prior == nil {
		version = nextVersion(nil, bump)
	} else {
		pv, perr := prior.Semver()
		if perr != nil {
			return nil, nil, atlaserrors.Newf(atlaserrors.ClassCorruptState,
				"component", "package", "stored version %q does not parse", prior.Version)
		}
		version = nextVersion(pv, bump)
	}

	cv := &types.ComponentVersion{
		Version:     version,
		ContentHash: b.hash,
		Breaking:    bump == types.BumpMajor,
		Requires:    requires,
		Interface:   b.iface,
		PublishedAt: l.now().UTC(),
	}
	if err := l.store.AppendVersion(ctx, c.ID, cv); err != nil {
		return nil, nil, err
	}
	if err := l.storeBundle(b, c.ID, version); err != nil {
		return nil, nil, err
	}

	c, err = l.store.GetComponent(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return c, cv, nil
}

// resolveRequirements maps the bundle's go.mod requires onto catalog
// components. A module path matching a known component name becomes a
// caret requirement on that component; external modules stay with the
// host toolchain and are not tracked.
func (l *Library) resolveRequirements(ctx context.Context, b *bundle) ([]types.Requirement, error) {
	paths := make([]string, 0, len(b.modules))
	for path := range b.modules {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var requires []types.Requirement
	for _, path := range paths {
		dep, err := l.store.GetComponentByName(ctx, path)
		if err != nil {
			return nil, err
		}
		if dep == nil || dep.Current == "" {
			continue
		}
		req := types.Requirement{ComponentID: dep.ID, Constraint: "^" + dep.Current}
		if err := req.Validate(); err != nil {
			return nil, atlaserrors.Wrap(err, "component", "package", "invalid requirement")
		}
		requires = append(requires, req)
	}
	return requires, nil
}

// storeBundle copies the read bundle into the library's content store.
func (l *Library) storeBundle(b *bundle, componentID, version string) error {
	dst := l.bundleDir(componentID, version)
	for _, rel := range b.files {
		src := filepath.Join(b.root, filepath.FromSlash(rel))
		out := filepath.Join(dst, filepath.FromSlash(rel))
		if err := copyFile(src, out); err != nil {
			return atlaserrors.Wrap(err, "component", "package", "storing bundle")
		}
	}
	return nil
}

func (l *Library) bundleDir(componentID, version string) string {
	return filepath.Join(l.root, componentID, version)
}

// Get returns one component with its full version history.
func (l *Library) Get(ctx context.Context, id string) (*types.Component, error) {
	c, err := l.store.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, atlaserrors.Newf(atlaserrors.ClassNotFound, "component", "get", "component %s not found", id)
	}
	return c, nil
}

// List returns the catalog in stable order.
func (l *Library) List(ctx context.Context) ([]*types.Component, error) {
	return l.store.ListComponents(ctx)
}

// Installations lists what is installed, optionally scoped to one
// target project.
func (l *Library) Installations(ctx context.Context, targetID string) ([]types.Installation, error) {
	return l.store.ListInstallations(ctx, targetID)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
