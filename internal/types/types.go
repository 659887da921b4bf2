package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Project represents a registered member of the portfolio.
// Projects are owned exclusively by the registry; the pattern library,
// component library, and knowledge graph reference them by ID only.
type Project struct {
	ID      string            `json:"id"`
	Path    string            `json:"path"` // canonical absolute path
	Name    string            `json:"name"`
	Profile TechnologyProfile `json:"profile"`
	Status  ProjectStatus     `json:"status"`
	Tags    []string          `json:"tags,omitempty"`
	Related []string          `json:"related,omitempty"` // related project IDs
	Health  *HealthScore      `json:"health,omitempty"`
	Trend   []float64         `json:"trend,omitempty"` // bounded health trend series
	// ManuallyEdited marks records whose name or tags were hand-patched;
	// discovery and import merges leave those fields alone.
	ManuallyEdited bool      `json:"manually_edited,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks if the project has valid field values
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(p.Name))
	}
	if p.Path == "" {
		return fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(p.Path) {
		return fmt.Errorf("path must be absolute (got %q)", p.Path)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	return nil
}

// IsArchived reports whether the project has reached its terminal state.
func (p *Project) IsArchived() bool {
	return p.Status == StatusArchived
}

// ProjectStatus represents the lifecycle state of a project.
// Transitions: discovered → registered → active → archived (terminal).
// Projects are never deleted, only archived.
type ProjectStatus string

const (
	StatusDiscovered ProjectStatus = "discovered"
	StatusRegistered ProjectStatus = "registered"
	StatusActive     ProjectStatus = "active"
	StatusArchived   ProjectStatus = "archived"
)

// IsValid checks if the status value is valid
func (s ProjectStatus) IsValid() bool {
	switch s {
	case StatusDiscovered, StatusRegistered, StatusActive, StatusArchived:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	switch s {
	case StatusDiscovered:
		return next == StatusRegistered || next == StatusArchived
	case StatusRegistered:
		return next == StatusActive || next == StatusArchived
	case StatusActive:
		return next == StatusArchived
	case StatusArchived:
		return false // terminal
	}
	return false
}

// TechnologyProfile is an immutable snapshot of a project's detected stack,
// supplied by an external TechnologyDetector collaborator per scan.
type TechnologyProfile struct {
	Framework    string   `json:"framework,omitempty"`
	Datastore    string   `json:"datastore,omitempty"`
	DeployTarget string   `json:"deploy_target,omitempty"`
	CISystem     string   `json:"ci_system,omitempty"`
	Monitoring   []string `json:"monitoring,omitempty"`
}

// IsEmpty reports whether the detector found nothing.
func (tp TechnologyProfile) IsEmpty() bool {
	return tp.Framework == "" && tp.Datastore == "" && tp.DeployTarget == "" &&
		tp.CISystem == "" && len(tp.Monitoring) == 0
}

// Facets returns the profile as a flat set of "dimension:value" strings,
// used for Jaccard overlap in similarity scoring.
func (tp TechnologyProfile) Facets() []string {
	var facets []string
	if tp.Framework != "" {
		facets = append(facets, "framework:"+strings.ToLower(tp.Framework))
	}
	if tp.Datastore != "" {
		facets = append(facets, "datastore:"+strings.ToLower(tp.Datastore))
	}
	if tp.DeployTarget != "" {
		facets = append(facets, "deploy:"+strings.ToLower(tp.DeployTarget))
	}
	if tp.CISystem != "" {
		facets = append(facets, "ci:"+strings.ToLower(tp.CISystem))
	}
	for _, m := range tp.Monitoring {
		facets = append(facets, "monitoring:"+strings.ToLower(m))
	}
	return facets
}

// HealthScore is a derived 0-100 metric combining deployment success rate,
// error rate, and activity freshness. Recomputed on demand; only the latest
// snapshot plus a bounded trend series is retained.
type HealthScore struct {
	Score      float64   `json:"score"`      // overall, in [0,100]
	Deployment float64   `json:"deployment"` // deployment success component [0,1]
	Errors     float64   `json:"errors"`     // error-rate component [0,1], 1 = no errors
	Freshness  float64   `json:"freshness"`  // activity recency component [0,1]
	ComputedAt time.Time `json:"computed_at"`
}

// Validate checks that the score and its components are in range.
func (h *HealthScore) Validate() error {
	if h.Score < 0 || h.Score > 100 {
		return fmt.Errorf("score must be in [0,100] (got %.2f)", h.Score)
	}
	for name, v := range map[string]float64{
		"deployment": h.Deployment,
		"errors":     h.Errors,
		"freshness":  h.Freshness,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s component must be in [0,1] (got %.3f)", name, v)
		}
	}
	return nil
}

// ProjectFilter narrows Search results.
type ProjectFilter struct {
	Framework string
	Status    *ProjectStatus
	Tag       string
	Query     string // free-text over name and path
	Limit     int
}

// BatchItemOutcome records the per-item result of a batch operation.
// Batch operations never let one item's failure abort the batch.
type BatchItemOutcome struct {
	Ref   string `json:"ref"` // path or id the outcome refers to
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BatchResult summarizes a batch operation such as discover or a full
// graph rebuild.
type BatchResult struct {
	Outcomes  []BatchItemOutcome `json:"outcomes"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
}

// Succeeded returns the number of successful items.
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.OK {
			n++
		}
	}
	return n
}

// Failed returns the number of failed items.
func (b *BatchResult) Failed() int {
	return len(b.Outcomes) - b.Succeeded()
}
