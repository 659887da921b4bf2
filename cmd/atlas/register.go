package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/registry"
)

var (
	registerName string
	registerTags []string
)

var registerCmd = &cobra.Command{
	Use:   "register <path>",
	Short: "Register a project with the portfolio registry",
	Long: `Register a project directory. Registration is idempotent: registering
the same canonical path again returns the existing project, merging any
new tags. A previously discovered project is promoted to registered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := reg.Register(cmd.Context(), registry.Descriptor{
			Path: args[0],
			Name: registerName,
			Tags: registerTags,
		})
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s (%s)\n", green("Registered:"), p.Name, p.ID)
		if !p.Profile.IsEmpty() {
			fmt.Printf("  stack: %v\n", p.Profile.Facets())
		}
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerName, "name", "", "project name (defaults to directory name)")
	registerCmd.Flags().StringSliceVar(&registerTags, "tag", nil, "tags to attach (repeatable)")
	rootCmd.AddCommand(registerCmd)
}
