package types

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Component is a packaged, independently versioned, installable bundle of
// code and assets extracted from a project. A component owns an ordered,
// append-only sequence of versions.
type Component struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Current         string              `json:"current"` // latest published version
	SourceProjectID string              `json:"source_project_id,omitempty"`
	Versions        []*ComponentVersion `json:"versions"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Validate checks if the component has valid field values
func (c *Component) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Current != "" {
		if _, err := semver.NewVersion(c.Current); err != nil {
			return fmt.Errorf("invalid current version %q: %w", c.Current, err)
		}
	}
	return nil
}

// Latest returns the most recently published version, or nil if none.
func (c *Component) Latest() *ComponentVersion {
	if len(c.Versions) == 0 {
		return nil
	}
	return c.Versions[len(c.Versions)-1]
}

// Version returns the version with the given semver string, or nil.
func (c *Component) Version(v string) *ComponentVersion {
	for _, cv := range c.Versions {
		if cv.Version == v {
			return cv
		}
	}
	return nil
}

// ComponentVersion is one immutable entry in a component's version history.
// Versions are append-only and never mutated after creation; the semver
// triple is monotonically increasing within its component and never reused.
type ComponentVersion struct {
	Version     string        `json:"version"` // semver triple
	ContentHash string        `json:"content_hash"`
	Breaking    bool          `json:"breaking"`
	Requires    []Requirement `json:"requires,omitempty"`
	Interface   []string      `json:"interface,omitempty"` // sorted exported symbol shapes
	PublishedAt time.Time     `json:"published_at"`
}

// Semver parses the version string. The string is validated at publish
// time, so a parse failure here indicates store corruption.
func (v *ComponentVersion) Semver() (*semver.Version, error) {
	return semver.NewVersion(v.Version)
}

// Requirement declares a dependency of one component version on another
// component, constrained to a semver range.
type Requirement struct {
	ComponentID string `json:"component_id"`
	Constraint  string `json:"constraint"` // e.g. ">=1.2.0 <2.0.0", "^1.4"
}

// Validate checks that the constraint parses.
func (r Requirement) Validate() error {
	if r.ComponentID == "" {
		return fmt.Errorf("component_id is required")
	}
	if _, err := semver.NewConstraint(r.Constraint); err != nil {
		return fmt.Errorf("invalid constraint %q: %w", r.Constraint, err)
	}
	return nil
}

// BumpKind classifies the version increment derived from an interface diff.
type BumpKind string

const (
	BumpPatch BumpKind = "patch" // identical public interface
	BumpMinor BumpKind = "minor" // additive-only interface change
	BumpMajor BumpKind = "major" // removed or changed exports (breaking)
)

// Installation records a component version installed into a target project.
type Installation struct {
	ComponentID string    `json:"component_id"`
	Version     string    `json:"version"`
	TargetID    string    `json:"target_id"` // project ID
	InstalledAt time.Time `json:"installed_at"`
}
