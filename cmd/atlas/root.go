package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/component"
	"github.com/atlasforge/atlas/internal/config"
	"github.com/atlasforge/atlas/internal/graph"
	"github.com/atlasforge/atlas/internal/pattern"
	"github.com/atlasforge/atlas/internal/registry"
	"github.com/atlasforge/atlas/internal/storage/sqlite"
	"github.com/atlasforge/atlas/internal/types"
)

var (
	dataDir    string
	configPath string

	cfg          *config.Config
	reg          *registry.Registry
	patternLib   *pattern.Library
	componentLib *component.Library
	knowledge    *graph.Graph

	patternStore   *sqlite.Store
	componentStore *sqlite.Store
	graphStore     *sqlite.Store
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Cross-project intelligence for a portfolio of codebases",
	Long: `Atlas tracks every project in a portfolio, extracts the patterns they
share, packages components for reuse, and maintains a knowledge graph
that surfaces similarity and reuse opportunities across projects.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return openServices(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", defaultDataDir(), "data directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (YAML)")
}

func defaultDataDir() string {
	if dir := os.Getenv("ATLAS_DATA"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".atlas"
	}
	return filepath.Join(home, ".atlas")
}

func openServices(ctx context.Context) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	reg, err = registry.Open(filepath.Join(dataDir, "registry.json"), cfg, registry.Options{})
	if err != nil {
		return err
	}

	patternStore, err = sqlite.New(filepath.Join(dataDir, "patterns.db"))
	if err != nil {
		return err
	}
	patternLib = pattern.NewLibrary(patternStore, pattern.NewHashEmbedder(cfg.Pattern.EmbeddingDim), cfg)

	componentStore, err = sqlite.New(filepath.Join(dataDir, "components.db"))
	if err != nil {
		return err
	}
	componentLib, err = component.NewLibrary(componentStore, filepath.Join(dataDir, "bundles"))
	if err != nil {
		return err
	}

	graphStore, err = sqlite.New(filepath.Join(dataDir, "graph.db"))
	if err != nil {
		return err
	}
	knowledge, err = graph.Open(ctx, graphStore, cfg)
	return err
}

func closeServices() {
	for _, s := range []*sqlite.Store{patternStore, componentStore, graphStore} {
		if s != nil {
			s.Close()
		}
	}
}

// collectGraphInput assembles the cross-subsystem state one graph build
// reads.
func collectGraphInput(ctx context.Context) (graph.Input, error) {
	var in graph.Input

	projects, err := reg.List(ctx)
	if err != nil {
		return in, err
	}
	in.Projects = projects

	patterns, err := patternLib.List(ctx, "", "")
	if err != nil {
		return in, err
	}
	in.Patterns = patterns
	in.Occurrences = make(map[string][]types.Occurrence, len(patterns))
	for _, p := range patterns {
		occs, err := patternLib.Occurrences(ctx, p.ID)
		if err != nil {
			return in, err
		}
		in.Occurrences[p.ID] = occs
	}

	components, err := componentLib.List(ctx)
	if err != nil {
		return in, err
	}
	in.Components = components

	installs, err := componentLib.Installations(ctx, "")
	if err != nil {
		return in, err
	}
	in.Installations = installs
	return in, nil
}
