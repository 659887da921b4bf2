package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the registry as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return reg.Export(cmd.Context(), out)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import projects from a registry export",
	Long: `Import projects from a JSON export. Each project imports
independently; a bad entry fails that entry without aborting the batch.
Manually edited projects are not overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		result, err := reg.Import(cmd.Context(), f)
		if err != nil {
			return err
		}

		red := color.New(color.FgRed).SprintFunc()
		for _, item := range result.Outcomes {
			if !item.OK {
				fmt.Printf("  %s %s: %s\n", red("skipped"), item.Ref, item.Error)
			}
		}
		fmt.Printf("%d imported, %d skipped\n", result.Succeeded(), result.Failed())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
