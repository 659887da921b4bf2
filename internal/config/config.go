// Package config holds tunable weights and thresholds for the registry,
// pattern library, component library, and knowledge graph. Values come
// from defaults, an optional YAML file, and environment variable
// overrides, in that order.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// HealthWeights controls how ComputeHealthScore blends its inputs.
// The three weights must sum to 1.0.
type HealthWeights struct {
	// DeploymentWeight scales the deployment success rate component.
	// Default: 0.4
	DeploymentWeight float64 `yaml:"deployment_weight"`

	// ErrorWeight scales the error-rate component (1.0 = no errors).
	// Default: 0.35
	ErrorWeight float64 `yaml:"error_weight"`

	// FreshnessWeight scales the activity recency component.
	// Default: 0.25
	FreshnessWeight float64 `yaml:"freshness_weight"`
}

// PatternConfig controls pattern matching, suggestion, and promotion.
type PatternConfig struct {
	// SimilarityThreshold excludes matches below this cosine similarity.
	// Default: 0.6, Range: (0,1]
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// PromotionThreshold is the occurrence count at which a candidate
	// pattern is promoted to indexed.
	// Default: 3, Range: 1-100
	PromotionThreshold int `yaml:"promotion_threshold"`

	// EmbeddingDim is the fixed length of pattern embedding vectors.
	// Default: 64
	EmbeddingDim int `yaml:"embedding_dim"`

	// RecencyHalfLifeDays controls how quickly occurrence recency decays
	// in suggestion scoring.
	// Default: 90
	RecencyHalfLifeDays int `yaml:"recency_half_life_days"`
}

// GraphConfig controls knowledge graph construction.
type GraphConfig struct {
	// SimilarityEdgeThreshold is the minimum pairwise similarity for a
	// similar-to edge to materialize.
	// Default: 0.6
	SimilarityEdgeThreshold float64 `yaml:"similarity_edge_threshold"`

	// SharedByMinProjects is the minimum distinct projects for a
	// shared-by edge and for extract-for-reuse insights.
	// Default: 2
	SharedByMinProjects int `yaml:"shared_by_min_projects"`

	// HealthDivergence is the score gap that makes two similar projects
	// candidates for a pattern-transfer insight.
	// Default: 25
	HealthDivergence float64 `yaml:"health_divergence"`
}

// DiscoveryConfig controls registry discovery scans.
type DiscoveryConfig struct {
	// MaxDepth bounds how deep under each root the scanner descends.
	// Default: 3, Range: 1-10
	MaxDepth int `yaml:"max_depth"`

	// ScanRate limits filesystem stat operations per second during a
	// scan. 0 disables throttling.
	// Default: 0
	ScanRate float64 `yaml:"scan_rate"`
}

// Config is the root configuration for all four subsystems.
type Config struct {
	Health    HealthWeights   `yaml:"health"`
	Pattern   PatternConfig   `yaml:"pattern"`
	Graph     GraphConfig     `yaml:"graph"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Health: HealthWeights{
			DeploymentWeight: 0.4,
			ErrorWeight:      0.35,
			FreshnessWeight:  0.25,
		},
		Pattern: PatternConfig{
			SimilarityThreshold: 0.6,
			PromotionThreshold:  3,
			EmbeddingDim:        64,
			RecencyHalfLifeDays: 90,
		},
		Graph: GraphConfig{
			SimilarityEdgeThreshold: 0.6,
			SharedByMinProjects:     2,
			HealthDivergence:        25,
		},
		Discovery: DiscoveryConfig{
			MaxDepth: 3,
			ScanRate: 0,
		},
	}
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	sum := c.Health.DeploymentWeight + c.Health.ErrorWeight + c.Health.FreshnessWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("health weights must sum to 1.0 (got %.4f)", sum)
	}
	for name, w := range map[string]float64{
		"deployment_weight": c.Health.DeploymentWeight,
		"error_weight":      c.Health.ErrorWeight,
		"freshness_weight":  c.Health.FreshnessWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be in [0,1] (got %.4f)", name, w)
		}
	}

	if c.Pattern.SimilarityThreshold <= 0 || c.Pattern.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0,1] (got %.4f)",
			c.Pattern.SimilarityThreshold)
	}
	if c.Pattern.PromotionThreshold < 1 || c.Pattern.PromotionThreshold > 100 {
		return fmt.Errorf("promotion_threshold must be between 1 and 100 (got %d)",
			c.Pattern.PromotionThreshold)
	}
	if c.Pattern.EmbeddingDim < 8 || c.Pattern.EmbeddingDim > 4096 {
		return fmt.Errorf("embedding_dim must be between 8 and 4096 (got %d)",
			c.Pattern.EmbeddingDim)
	}
	if c.Pattern.RecencyHalfLifeDays < 1 {
		return fmt.Errorf("recency_half_life_days must be at least 1 (got %d)",
			c.Pattern.RecencyHalfLifeDays)
	}

	if c.Graph.SimilarityEdgeThreshold <= 0 || c.Graph.SimilarityEdgeThreshold > 1 {
		return fmt.Errorf("similarity_edge_threshold must be in (0,1] (got %.4f)",
			c.Graph.SimilarityEdgeThreshold)
	}
	if c.Graph.SharedByMinProjects < 2 {
		return fmt.Errorf("shared_by_min_projects must be at least 2 (got %d)",
			c.Graph.SharedByMinProjects)
	}
	if c.Graph.HealthDivergence < 0 || c.Graph.HealthDivergence > 100 {
		return fmt.Errorf("health_divergence must be in [0,100] (got %.2f)",
			c.Graph.HealthDivergence)
	}

	if c.Discovery.MaxDepth < 1 || c.Discovery.MaxDepth > 10 {
		return fmt.Errorf("max_depth must be between 1 and 10 (got %d)", c.Discovery.MaxDepth)
	}
	if c.Discovery.ScanRate < 0 {
		return fmt.Errorf("scan_rate cannot be negative (got %.2f)", c.Discovery.ScanRate)
	}

	return nil
}

// Load builds the configuration from defaults, then the YAML file at path
// (if path is non-empty and the file exists), then environment variables.
//
// Environment variables:
//   - ATLAS_HEALTH_DEPLOYMENT_WEIGHT, ATLAS_HEALTH_ERROR_WEIGHT,
//     ATLAS_HEALTH_FRESHNESS_WEIGHT: health score blend (must sum to 1.0)
//   - ATLAS_PATTERN_SIMILARITY_THRESHOLD: minimum match similarity (default: 0.6)
//   - ATLAS_PATTERN_PROMOTION_THRESHOLD: occurrences before candidate → indexed (default: 3)
//   - ATLAS_GRAPH_SIMILARITY_THRESHOLD: minimum similar-to edge weight (default: 0.6)
//   - ATLAS_DISCOVERY_MAX_DEPTH: scan depth under each root (default: 3)
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := parseEnvFloat("ATLAS_HEALTH_DEPLOYMENT_WEIGHT", &cfg.Health.DeploymentWeight); err != nil {
		return err
	}
	if err := parseEnvFloat("ATLAS_HEALTH_ERROR_WEIGHT", &cfg.Health.ErrorWeight); err != nil {
		return err
	}
	if err := parseEnvFloat("ATLAS_HEALTH_FRESHNESS_WEIGHT", &cfg.Health.FreshnessWeight); err != nil {
		return err
	}
	if err := parseEnvFloat("ATLAS_PATTERN_SIMILARITY_THRESHOLD", &cfg.Pattern.SimilarityThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("ATLAS_PATTERN_PROMOTION_THRESHOLD", &cfg.Pattern.PromotionThreshold); err != nil {
		return err
	}
	if err := parseEnvFloat("ATLAS_GRAPH_SIMILARITY_THRESHOLD", &cfg.Graph.SimilarityEdgeThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("ATLAS_DISCOVERY_MAX_DEPTH", &cfg.Discovery.MaxDepth); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
