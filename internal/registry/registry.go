// Package registry owns project identity, metadata, persistence, and
// discovery of portfolio members. Projects are referenced by the pattern
// library, component library, and knowledge graph, but owned here
// exclusively.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlasforge/atlas/internal/config"
	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/storage"
	"github.com/atlasforge/atlas/internal/types"
)

// Descriptor is the input to Register.
type Descriptor struct {
	Path string   `json:"path"`
	Name string   `json:"name,omitempty"` // defaults to the directory base name
	Tags []string `json:"tags,omitempty"`
}

// Registry manages the portfolio's project records. The persisted store
// is the only shared resource requiring mutual exclusion; writes are
// serialized through the document store's single-writer lock while
// readers observe the last committed snapshot.
type Registry struct {
	store    *storage.DocStore
	cfg      *config.Config
	detector TechnologyDetector
	deploys  DeploymentHistoryProvider
	monitor  MonitoringProvider

	mu     sync.RWMutex
	byPath map[string]string // canonical path → project id
}

// Options configures collaborator interfaces. Zero-value fields fall back
// to defaults (marker detection, empty histories).
type Options struct {
	Detector TechnologyDetector
	Deploys  DeploymentHistoryProvider
	Monitor  MonitoringProvider
}

// Open loads the registry from the document store at path.
func Open(path string, cfg *config.Config, opts Options) (*Registry, error) {
	store, err := storage.OpenDocStore(path)
	if err != nil {
		return nil, err
	}
	return fromStore(store, cfg, opts)
}

// Recover rebuilds the registry from the last known-good backup after a
// corrupt load. Pattern and component stores are untouched by recovery.
func Recover(path string, cfg *config.Config, opts Options) (*Registry, int, error) {
	store, n, err := storage.RecoverFromBackup(path)
	if err != nil {
		return nil, 0, err
	}
	r, err := fromStore(store, cfg, opts)
	if err != nil {
		return nil, 0, err
	}
	return r, n, nil
}

func fromStore(store *storage.DocStore, cfg *config.Config, opts Options) (*Registry, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Detector == nil {
		opts.Detector = MarkerDetector{}
	}
	if opts.Deploys == nil {
		opts.Deploys = NoDeployments{}
	}
	if opts.Monitor == nil {
		opts.Monitor = NoMonitoring{}
	}

	r := &Registry{
		store:    store,
		cfg:      cfg,
		detector: opts.Detector,
		deploys:  opts.Deploys,
		monitor:  opts.Monitor,
		byPath:   make(map[string]string),
	}

	for _, id := range store.Keys() {
		var p types.Project
		found, err := store.GetInto(id, &p)
		if err != nil {
			return nil, atlaserrors.Wrap(
				fmt.Errorf("%w: %v", atlaserrors.ErrCorruptState, err),
				"registry", "Open", "decoding project "+id)
		}
		if found {
			r.byPath[p.Path] = p.ID
		}
	}
	return r, nil
}

// CanonicalPath resolves a path to its canonical absolute form, the
// idempotency key for registration.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", atlaserrors.Newf(atlaserrors.ClassValidation,
			"registry", "CanonicalPath", "resolving %q: %v", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	// Path may not exist yet; the absolute form is still canonical.
	return abs, nil
}

// Register adds a project to the portfolio. Registration is idempotent
// keyed on canonical path: re-registering updates metadata on the
// existing record rather than duplicating it. The project id, once
// assigned, never changes.
func (r *Registry) Register(ctx context.Context, desc Descriptor) (*types.Project, error) {
	if desc.Path == "" {
		return nil, atlaserrors.New(atlaserrors.ClassValidation,
			"registry", "Register", "path is required")
	}

	canonical, err := CanonicalPath(desc.Path)
	if err != nil {
		return nil, err
	}

	profile, err := r.detector.Detect(canonical)
	if err != nil {
		return nil, fmt.Errorf("detecting technology profile: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if id, ok := r.byPath[canonical]; ok {
		// Idempotent re-registration: merge metadata, keep identity.
		existing, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}
		if desc.Name != "" {
			existing.Name = desc.Name
		}
		existing.Tags = mergeTags(existing.Tags, desc.Tags)
		existing.Profile = profile
		existing.UpdatedAt = now
		if existing.Status == types.StatusDiscovered {
			existing.Status = types.StatusRegistered
		}
		if err := r.store.Put(existing.ID, existing); err != nil {
			return nil, fmt.Errorf("saving project: %w", err)
		}
		return existing, nil
	}

	name := desc.Name
	if name == "" {
		name = filepath.Base(canonical)
	}

	project := &types.Project{
		ID:        "proj-" + uuid.NewString(),
		Path:      canonical,
		Name:      name,
		Profile:   profile,
		Status:    types.StatusRegistered,
		Tags:      desc.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := project.Validate(); err != nil {
		return nil, atlaserrors.Wrap(err, "registry", "Register", "validation failed")
	}

	if err := r.store.Put(project.ID, project); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	r.byPath[canonical] = project.ID
	return project, nil
}

// Get retrieves a project by id.
func (r *Registry) Get(ctx context.Context, id string) (*types.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

func (r *Registry) getLocked(id string) (*types.Project, error) {
	var p types.Project
	found, err := r.store.GetInto(id, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, atlaserrors.Newf(atlaserrors.ClassNotFound,
			"registry", "Get", "project %s", id)
	}
	return &p, nil
}

// Allowed fields for update. Status changes go through the lifecycle
// check; identity fields (id, path, created_at) are immutable.
var allowedUpdateFields = map[string]bool{
	"name":    true,
	"tags":    true,
	"related": true,
	"status":  true,
}

// Update applies a field patch to a project. The record is flagged as
// manually edited, and the flag persists with it, so discovery and import
// merges never overwrite the patched fields even after a restart.
func (r *Registry) Update(ctx context.Context, id string, patch map[string]interface{}) (*types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}

	for key, value := range patch {
		if !allowedUpdateFields[key] {
			return nil, atlaserrors.Newf(atlaserrors.ClassValidation,
				"registry", "Update", "invalid field for update: %s", key)
		}
		switch key {
		case "name":
			name, ok := value.(string)
			if !ok || name == "" {
				return nil, atlaserrors.New(atlaserrors.ClassValidation,
					"registry", "Update", "name must be a non-empty string")
			}
			p.Name = name
		case "tags":
			tags, err := toStringSlice(value)
			if err != nil {
				return nil, atlaserrors.Wrap(err, "registry", "Update", "tags")
			}
			p.Tags = tags
		case "related":
			related, err := toStringSlice(value)
			if err != nil {
				return nil, atlaserrors.Wrap(err, "registry", "Update", "related")
			}
			for _, rid := range related {
				if _, err := r.getLocked(rid); err != nil {
					return nil, atlaserrors.Newf(atlaserrors.ClassNotFound,
						"registry", "Update", "related project %s", rid)
				}
			}
			p.Related = related
		case "status":
			raw, ok := value.(string)
			if !ok {
				return nil, atlaserrors.New(atlaserrors.ClassValidation,
					"registry", "Update", "status must be a string")
			}
			next := types.ProjectStatus(raw)
			if !next.IsValid() {
				return nil, atlaserrors.Newf(atlaserrors.ClassValidation,
					"registry", "Update", "invalid status: %s", raw)
			}
			if !p.Status.CanTransitionTo(next) {
				return nil, atlaserrors.Newf(atlaserrors.ClassValidation,
					"registry", "Update", "cannot transition %s → %s", p.Status, next)
			}
			p.Status = next
		}
	}

	p.ManuallyEdited = true
	p.UpdatedAt = time.Now()
	if err := r.store.Put(p.ID, p); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	return p, nil
}

// Archive moves a project to its terminal state. Archived projects remain
// queryable but are excluded from new pattern extraction and new
// shared-by edges. Deletion is disallowed; archival is the only removal.
func (r *Registry) Archive(ctx context.Context, id string) (*types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}
	if p.Status == types.StatusArchived {
		return p, nil // idempotent
	}

	p.Status = types.StatusArchived
	p.UpdatedAt = time.Now()
	if err := r.store.Put(p.ID, p); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	return p, nil
}

// List returns all projects ordered by id.
func (r *Registry) List(ctx context.Context) ([]*types.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var projects []*types.Project
	for _, id := range r.store.Keys() {
		p, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Export writes the full registry as a JSON document.
func (r *Registry) Export(ctx context.Context, w io.Writer) error {
	projects, err := r.List(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(projects)
}

// Import merges projects from a JSON export. Existing records (matched by
// canonical path) keep their ids; imported metadata wins unless the field
// was manually edited. Per-item outcomes are reported; one bad record
// never aborts the import.
func (r *Registry) Import(ctx context.Context, reader io.Reader) (*types.BatchResult, error) {
	var projects []*types.Project
	if err := json.NewDecoder(reader).Decode(&projects); err != nil {
		return nil, atlaserrors.Wrap(err, "registry", "Import", "decoding export")
	}

	result := &types.BatchResult{StartedAt: time.Now()}
	for _, p := range projects {
		outcome := types.BatchItemOutcome{Ref: p.Path, OK: true}
		if err := r.importOne(ctx, p); err != nil {
			outcome.OK = false
			outcome.Error = err.Error()
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	result.Duration = time.Since(result.StartedAt)
	return result, nil
}

func (r *Registry) importOne(ctx context.Context, p *types.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPath[p.Path]; ok {
		existing, err := r.getLocked(id)
		if err != nil {
			return err
		}
		if !existing.ManuallyEdited {
			existing.Name = p.Name
			existing.Tags = mergeTags(existing.Tags, p.Tags)
		}
		existing.Profile = p.Profile
		existing.UpdatedAt = time.Now()
		return r.store.Put(existing.ID, existing)
	}

	if p.ID == "" {
		p.ID = "proj-" + uuid.NewString()
	}
	if err := r.store.Put(p.ID, p); err != nil {
		return err
	}
	r.byPath[p.Path] = p.ID
	return nil
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string{}, existing...)
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range incoming {
		if !seen[t] {
			merged = append(merged, t)
			seen[t] = true
		}
	}
	sort.Strings(merged)
	return merged
}

func toStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string slice, got %T", value)
	}
}
