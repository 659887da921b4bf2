package component

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

// InstallTarget identifies where a component is installed: the target
// project, the directory installs land in, and the module path import
// references are rewritten to.
type InstallTarget struct {
	ProjectID  string
	Dir        string
	ModulePath string
}

// Install copies a component version, plus its resolved transitive
// dependencies, into a target project. Installing an identical state is
// a no-op success. Replacing an existing installation across a breaking
// version is refused; Update with Confirm is the acknowledged path.
// Installs into the same target serialize on a keyed lock; distinct
// targets proceed concurrently.
func (l *Library) Install(ctx context.Context, componentID, version string, target InstallTarget) ([]types.Installation, error) {
	return l.install(ctx, componentID, version, target, false)
}

func (l *Library) install(ctx context.Context, componentID, version string, target InstallTarget, confirmed bool) ([]types.Installation, error) {
	if target.ProjectID == "" || target.Dir == "" {
		return nil, atlaserrors.New(atlaserrors.ClassValidation, "component", "install", "target project and dir are required")
	}

	c, err := l.Get(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = c.Current
	}
	if c.Version(version) == nil {
		return nil, atlaserrors.Newf(atlaserrors.ClassNotFound,
			"component", "install", "component %s has no version %s", c.Name, version)
	}

	pinned, err := l.resolve(ctx, componentID, version)
	if err != nil {
		return nil, err
	}

	release := l.locks.Acquire(target.ProjectID)
	defer release()

	if err := ctx.Err(); err != nil {
		return nil, atlaserrors.Wrap(err, "component", "install", "aborted")
	}

	// Deterministic install order keeps logs and errors stable.
	ids := make([]string, 0, len(pinned))
	for id := range pinned {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var installed []types.Installation
	for _, id := range ids {
		inst, err := l.installOne(ctx, id, pinned[id], target, confirmed)
		if err != nil {
			return nil, err
		}
		installed = append(installed, *inst)
	}
	return installed, nil
}

// installOne materializes a single pinned component version into the
// target. When the recorded installation already matches, nothing is
// copied; when it differs across a breaking version, replacement needs
// an acknowledged update.
func (l *Library) installOne(ctx context.Context, componentID, version string, target InstallTarget, confirmed bool) (*types.Installation, error) {
	existing, err := l.store.GetInstallation(ctx, componentID, target.ProjectID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Version == version {
		return existing, nil
	}

	c, err := l.Get(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !confirmed && crossesBreaking(c, existing.Version, version) {
		return nil, atlaserrors.Wrap(atlaserrors.ErrConfirmationRequired,
			"component", "install",
			fmt.Sprintf("%s %s to %s is breaking", c.Name, existing.Version, version))
	}

	src := l.bundleDir(componentID, version)
	dst := filepath.Join(target.Dir, filepath.Base(c.Name))
	if err := l.copyBundle(src, dst, target.ModulePath); err != nil {
		return nil, atlaserrors.Wrap(err, "component", "install", "copying bundle")
	}

	inst := types.Installation{
		ComponentID: componentID,
		Version:     version,
		TargetID:    target.ProjectID,
		InstalledAt: l.now().UTC(),
	}
	if err := l.store.RecordInstallation(ctx, inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// copyBundle copies a stored bundle into the target, rewriting the
// bundle's own module path in Go import references to live under the
// target's module path.
func (l *Library) copyBundle(src, dst, targetModule string) error {
	bundleModule := bundleModulePath(src)

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		if targetModule != "" && bundleModule != "" && strings.HasSuffix(path, ".go") {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rewritten := rewriteImports(string(data), bundleModule, targetModule+"/"+filepath.ToSlash(filepath.Base(dst)))
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return err
			}
			return os.WriteFile(out, []byte(rewritten), 0644)
		}
		return copyFile(path, out)
	})
}

// bundleModulePath reads the module path of a stored bundle, or "".
func bundleModulePath(dir string) string {
	b, err := readBundle(dir)
	if err != nil {
		return ""
	}
	return b.modulePath
}

// rewriteImports replaces import references to the bundle's original
// module with the path it now lives at inside the target. Only quoted
// import paths change; identifiers and strings elsewhere are narrowly
// affected only if they quote the exact module path prefix.
func rewriteImports(source, oldModule, newModule string) string {
	source = strings.ReplaceAll(source, `"`+oldModule+`"`, `"`+newModule+`"`)
	source = strings.ReplaceAll(source, `"`+oldModule+`/`, `"`+newModule+`/`)
	return source
}
