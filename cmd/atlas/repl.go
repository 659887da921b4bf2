package main

import (
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive portfolio shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repl.New(&repl.Config{
			Registry:   reg,
			Patterns:   patternLib,
			Components: componentLib,
			Knowledge:  knowledge,
			GraphInput: collectGraphInput,
		})
		if err != nil {
			return err
		}
		return r.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
