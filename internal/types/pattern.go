package types

import (
	"fmt"
	"time"
)

// Pattern is a reusable implementation idiom extracted from project source,
// represented by a normalized structural signature plus a similarity
// embedding. Patterns are owned by the pattern library; occurrences link
// back to projects by ID only.
type Pattern struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   PatternCategory `json:"category"`
	Signature  string          `json:"signature"` // normalized structure hash, identifiers erased
	Embedding  []float64       `json:"embedding"`
	Quality    float64         `json:"quality"` // [0,1]
	UsageCount int             `json:"usage_count"`
	Status     PatternStatus   `json:"status"`
	Tags       []string        `json:"tags,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Validate checks if the pattern has valid field values
func (p *Pattern) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Signature == "" {
		return fmt.Errorf("signature is required")
	}
	if !p.Category.IsValid() {
		return fmt.Errorf("invalid category: %s", p.Category)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.Quality < 0 || p.Quality > 1 {
		return fmt.Errorf("quality must be in [0,1] (got %.3f)", p.Quality)
	}
	if p.UsageCount < 0 {
		return fmt.Errorf("usage_count cannot be negative")
	}
	return nil
}

// PatternCategory categorizes the kind of pattern
type PatternCategory string

const (
	CategoryComponent     PatternCategory = "component"
	CategoryArchitectural PatternCategory = "architectural"
	CategoryConfiguration PatternCategory = "configuration"
	CategoryDocumentation PatternCategory = "documentation"
)

// IsValid checks if the category value is valid
func (c PatternCategory) IsValid() bool {
	switch c {
	case CategoryComponent, CategoryArchitectural, CategoryConfiguration, CategoryDocumentation:
		return true
	}
	return false
}

// PatternStatus represents the lifecycle state of a pattern.
// Candidate → indexed after enough occurrences; indexed → deprecated when
// its last occurrence's owning project is archived.
type PatternStatus string

const (
	PatternCandidate  PatternStatus = "candidate"
	PatternIndexed    PatternStatus = "indexed"
	PatternDeprecated PatternStatus = "deprecated"
)

// IsValid checks if the status value is valid
func (s PatternStatus) IsValid() bool {
	switch s {
	case PatternCandidate, PatternIndexed, PatternDeprecated:
		return true
	}
	return false
}

// Occurrence records an instance of a pattern found within a specific
// project. The project reference is weak: it may dangle after the project
// is archived, never after deletion (deletion is disallowed).
type Occurrence struct {
	ProjectID   string    `json:"project_id"`
	Location    string    `json:"location"` // file:line or package path
	ExtractedAt time.Time `json:"extracted_at"`
}

// PatternMatch pairs a pattern with its similarity to a query embedding.
type PatternMatch struct {
	Pattern    *Pattern `json:"pattern"`
	Similarity float64  `json:"similarity"`
}

// Suggestion ranks a pattern from another project for adoption by a
// target project.
type Suggestion struct {
	Pattern    *Pattern `json:"pattern"`
	Similarity float64  `json:"similarity"`
	Score      float64  `json:"score"` // similarity * f(usage, recency, quality)
	SourceIDs  []string `json:"source_ids"` // projects the pattern was observed in
}
