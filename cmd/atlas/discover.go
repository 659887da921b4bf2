package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <root>...",
	Short: "Scan directory roots for unregistered projects",
	Long: `Walk each root looking for project markers (go.mod, package.json,
pyproject.toml, Cargo.toml) and fold what is found into the registry as
discovered projects. Manually edited fields of known projects are
preserved. An unreadable root fails that root only; the batch reports
per-root outcomes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := reg.Discover(cmd.Context(), args)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		for _, item := range result.Outcomes {
			if item.OK {
				fmt.Printf("  %s %s\n", green("ok"), item.Ref)
			} else {
				fmt.Printf("  %s %s: %s\n", red("failed"), item.Ref, item.Error)
			}
		}
		fmt.Printf("%d scanned, %d failed\n", result.Succeeded(), result.Failed())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
