package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/config"
	"github.com/atlasforge/atlas/internal/registry"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Restore the registry from its last known-good backup",
	Long: `Restore the project registry from its backup after a checksum mismatch
at load. Pattern, component, and graph stores are untouched; re-run
'discover' and 'pattern extract' to catch up on anything the backup
predates.`,
	// Overrides the root hook: the normal open path fails fast on a
	// corrupt registry, which is exactly the state recover runs in.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(dataDir, "registry.json")
		r, n, err := registry.Recover(path, cfg, registry.Options{})
		if err != nil {
			return err
		}
		projects, err := r.List(cmd.Context())
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s restored %d record(s), %d project(s) readable\n",
			green("Recovered:"), n, len(projects))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
