package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateWeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.Health.DeploymentWeight = 0.5
	cfg.Health.ErrorWeight = 0.5
	cfg.Health.FreshnessWeight = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero similarity threshold", func(c *Config) { c.Pattern.SimilarityThreshold = 0 }},
		{"similarity above one", func(c *Config) { c.Pattern.SimilarityThreshold = 1.5 }},
		{"promotion threshold zero", func(c *Config) { c.Pattern.PromotionThreshold = 0 }},
		{"embedding dim too small", func(c *Config) { c.Pattern.EmbeddingDim = 4 }},
		{"shared-by below two", func(c *Config) { c.Graph.SharedByMinProjects = 1 }},
		{"depth zero", func(c *Config) { c.Discovery.MaxDepth = 0 }},
		{"negative scan rate", func(c *Config) { c.Discovery.ScanRate = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.yaml")
	yaml := `
pattern:
  similarity_threshold: 0.75
  promotion_threshold: 5
  embedding_dim: 64
  recency_half_life_days: 90
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.Pattern.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Pattern.PromotionThreshold)
	// Untouched sections keep defaults
	assert.Equal(t, 0.4, cfg.Health.DeploymentWeight)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ATLAS_PATTERN_SIMILARITY_THRESHOLD", "0.8")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Pattern.SimilarityThreshold)
}

func TestLoadEnvInvalidValue(t *testing.T) {
	t.Setenv("ATLAS_DISCOVERY_MAX_DEPTH", "not-a-number")
	_, err := Load("")
	assert.Error(t, err)
}
