package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

// CreateComponent inserts a new component with no versions. A name
// collision is a conflict.
func (s *Store) CreateComponent(ctx context.Context, c *types.Component) error {
	if err := c.Validate(); err != nil {
		return atlaserrors.Wrap(err, "sqlite", "CreateComponent", "validation failed")
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO components (id, name, current, source_project, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Current, c.SourceProjectID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return atlaserrors.Newf(atlaserrors.ClassConflict,
				"sqlite", "CreateComponent", "component name %q already exists", c.Name)
		}
		return fmt.Errorf("failed to insert component: %w", err)
	}
	return nil
}

// GetComponent retrieves a component with its full ordered version
// history. Returns nil if not found.
func (s *Store) GetComponent(ctx context.Context, id string) (*types.Component, error) {
	var c types.Component
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, current, source_project, created_at, updated_at
		FROM components WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Current, &c.SourceProjectID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component: %w", err)
	}

	versions, err := s.getVersions(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Versions = versions
	return &c, nil
}

// GetComponentByName retrieves a component by its unique name.
func (s *Store) GetComponentByName(ctx context.Context, name string) (*types.Component, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM components WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up component by name: %w", err)
	}
	return s.GetComponent(ctx, id)
}

// ListComponents returns all components with their version histories,
// ordered by name.
func (s *Store) ListComponents(ctx context.Context) ([]*types.Component, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, current, source_project, created_at, updated_at
		FROM components ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	var components []*types.Component
	for rows.Next() {
		var c types.Component
		if err := rows.Scan(&c.ID, &c.Name, &c.Current, &c.SourceProjectID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		components = append(components, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range components {
		versions, err := s.getVersions(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Versions = versions
	}
	return components, nil
}

func (s *Store) getVersions(ctx context.Context, componentID string) ([]*types.ComponentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, content_hash, breaking, requires, interface, published_at
		FROM component_versions
		WHERE component_id = ?
		ORDER BY seq
	`, componentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get versions: %w", err)
	}
	defer rows.Close()

	var versions []*types.ComponentVersion
	for rows.Next() {
		var v types.ComponentVersion
		var breaking int
		var requires, iface sql.NullString
		if err := rows.Scan(&v.Version, &v.ContentHash, &breaking, &requires, &iface, &v.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v.Breaking = breaking != 0
		if requires.Valid && requires.String != "null" {
			if err := json.Unmarshal([]byte(requires.String), &v.Requires); err != nil {
				return nil, fmt.Errorf("decoding requirements: %w", err)
			}
		}
		if iface.Valid && iface.String != "null" {
			if err := json.Unmarshal([]byte(iface.String), &v.Interface); err != nil {
				return nil, fmt.Errorf("decoding interface: %w", err)
			}
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// AppendVersion appends a new immutable version to a component's history.
// The semver triple must be strictly greater than the current latest;
// reusing or regressing a version is a conflict. Versions are never
// mutated after creation.
func (s *Store) AppendVersion(ctx context.Context, componentID string, v *types.ComponentVersion) error {
	next, err := semver.NewVersion(v.Version)
	if err != nil {
		return atlaserrors.Newf(atlaserrors.ClassValidation,
			"sqlite", "AppendVersion", "invalid version %q: %v", v.Version, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current sql.NullString
	var seq int
	err = tx.QueryRowContext(ctx, `
		SELECT version, seq FROM component_versions
		WHERE component_id = ? ORDER BY seq DESC LIMIT 1
	`, componentID).Scan(&current, &seq)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read latest version: %w", err)
	}

	if current.Valid {
		prev, err := semver.NewVersion(current.String)
		if err != nil {
			return atlaserrors.Newf(atlaserrors.ClassCorruptState,
				"sqlite", "AppendVersion", "stored version %q does not parse", current.String)
		}
		if !next.GreaterThan(prev) {
			return atlaserrors.Newf(atlaserrors.ClassConflict,
				"sqlite", "AppendVersion",
				"version %s does not increase on current %s", v.Version, current.String)
		}
	}

	requires, err := json.Marshal(v.Requires)
	if err != nil {
		return fmt.Errorf("encoding requirements: %w", err)
	}
	iface, err := json.Marshal(v.Interface)
	if err != nil {
		return fmt.Errorf("encoding interface: %w", err)
	}
	breaking := 0
	if v.Breaking {
		breaking = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO component_versions (
			component_id, seq, version, content_hash, breaking,
			requires, interface, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, componentID, seq+1, v.Version, v.ContentHash, breaking,
		string(requires), string(iface), v.PublishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return atlaserrors.Newf(atlaserrors.ClassConflict,
				"sqlite", "AppendVersion", "version %s already published", v.Version)
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE components SET current = ?, updated_at = ? WHERE id = ?
	`, v.Version, time.Now(), componentID)
	if err != nil {
		return fmt.Errorf("failed to update current version: %w", err)
	}

	return tx.Commit()
}

// RecordInstallation records (or refreshes) the version of a component
// installed into a target project.
func (s *Store) RecordInstallation(ctx context.Context, inst types.Installation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO installations (component_id, version, target_id, installed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(component_id, target_id) DO UPDATE SET
			version = excluded.version,
			installed_at = excluded.installed_at
	`, inst.ComponentID, inst.Version, inst.TargetID, inst.InstalledAt)
	if err != nil {
		return fmt.Errorf("failed to record installation: %w", err)
	}
	return nil
}

// GetInstallation returns the installed version of a component in a
// target, or nil if not installed.
func (s *Store) GetInstallation(ctx context.Context, componentID, targetID string) (*types.Installation, error) {
	var inst types.Installation
	err := s.db.QueryRowContext(ctx, `
		SELECT component_id, version, target_id, installed_at
		FROM installations WHERE component_id = ? AND target_id = ?
	`, componentID, targetID).Scan(&inst.ComponentID, &inst.Version, &inst.TargetID, &inst.InstalledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installation: %w", err)
	}
	return &inst, nil
}

// ListInstallations returns all installations, optionally filtered by
// target project id (empty string = all).
func (s *Store) ListInstallations(ctx context.Context, targetID string) ([]types.Installation, error) {
	query := `
		SELECT component_id, version, target_id, installed_at
		FROM installations ORDER BY target_id, component_id`
	args := []interface{}{}
	if targetID != "" {
		query = `
		SELECT component_id, version, target_id, installed_at
		FROM installations WHERE target_id = ? ORDER BY component_id`
		args = append(args, targetID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer rows.Close()

	var installs []types.Installation
	for rows.Next() {
		var inst types.Installation
		if err := rows.Scan(&inst.ComponentID, &inst.Version, &inst.TargetID, &inst.InstalledAt); err != nil {
			return nil, fmt.Errorf("failed to scan installation: %w", err)
		}
		installs = append(installs, inst)
	}
	return installs, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil &&
		(strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
