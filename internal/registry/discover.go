package registry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/atlasforge/atlas/internal/types"
)

// portfolioMarkers identify a directory as a project root.
var portfolioMarkers = []string{
	"go.mod",
	"package.json",
	"pyproject.toml",
	"Cargo.toml",
}

// excludedGlobs are never descended into during a scan.
var excludedGlobs = []string{
	"**/node_modules",
	"**/vendor",
	"**/.git",
	"**/target",
	"**/dist",
	"**/__pycache__",
}

// Discover scans the given roots for portfolio members and merges found
// projects into the registry without overwriting manually edited fields.
// Each candidate directory gets its own outcome; one bad directory never
// aborts the scan.
func (r *Registry) Discover(ctx context.Context, roots []string) (*types.BatchResult, error) {
	result := &types.BatchResult{StartedAt: time.Now()}

	var limiter *rate.Limiter
	if r.cfg.Discovery.ScanRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Discovery.ScanRate), 1)
	}

	for _, root := range roots {
		candidates, err := r.scanRoot(ctx, root, limiter)
		if err != nil {
			result.Outcomes = append(result.Outcomes, types.BatchItemOutcome{
				Ref: root, OK: false, Error: err.Error(),
			})
			continue
		}

		for _, dir := range candidates {
			outcome := types.BatchItemOutcome{Ref: dir, OK: true}
			if err := r.mergeDiscovered(ctx, dir); err != nil {
				outcome.OK = false
				outcome.Error = err.Error()
			}
			result.Outcomes = append(result.Outcomes, outcome)
		}
	}

	result.Duration = time.Since(result.StartedAt)
	return result, nil
}

// scanRoot walks root up to the configured depth and returns directories
// containing a portfolio marker.
func (r *Registry) scanRoot(ctx context.Context, root string, limiter *rate.Limiter) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	maxDepth := r.cfg.Discovery.MaxDepth
	var found []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && depthOf(rel) > maxDepth {
			return filepath.SkipDir
		}
		for _, glob := range excludedGlobs {
			if ok, _ := doublestar.Match(glob, filepath.ToSlash(path)); ok {
				return filepath.SkipDir
			}
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if hasMarker(path) {
			found = append(found, path)
			return filepath.SkipDir // a project root is not scanned for nested projects
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return found, nil
}

func hasMarker(dir string) bool {
	for _, marker := range portfolioMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func depthOf(rel string) int {
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

// mergeDiscovered registers a discovered directory, preserving manually
// edited fields on already-known projects.
func (r *Registry) mergeDiscovered(ctx context.Context, dir string) error {
	canonical, err := CanonicalPath(dir)
	if err != nil {
		return err
	}

	profile, err := r.detector.Detect(canonical)
	if err != nil {
		return fmt.Errorf("detecting technology profile: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if id, ok := r.byPath[canonical]; ok {
		existing, err := r.getLocked(id)
		if err != nil {
			return err
		}
		// Profile snapshots always refresh; name and tags only when the
		// record has never been manually edited.
		existing.Profile = profile
		if !existing.ManuallyEdited && existing.Name == "" {
			existing.Name = filepath.Base(canonical)
		}
		existing.UpdatedAt = now
		return r.store.Put(existing.ID, existing)
	}

	project := &types.Project{
		ID:        "proj-" + uuid.NewString(),
		Path:      canonical,
		Name:      filepath.Base(canonical),
		Profile:   profile,
		Status:    types.StatusDiscovered,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Put(project.ID, project); err != nil {
		return err
	}
	r.byPath[canonical] = project.ID
	return nil
}
