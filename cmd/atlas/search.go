package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/types"
)

var (
	searchFramework string
	searchStatus    string
	searchTag       string
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search registered projects",
	Long: `Search projects by free-text query and structured criteria. All
specified criteria must match; results order by relevance, then by most
recent update.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := types.ProjectFilter{
			Framework: searchFramework,
			Tag:       searchTag,
			Limit:     searchLimit,
		}
		if searchStatus != "" {
			status := types.ProjectStatus(searchStatus)
			filter.Status = &status
		}
		if len(args) == 1 {
			filter.Query = args[0]
		}

		projects, err := reg.Search(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("no matches"))
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%-14s %-24s %-10s %s\n", p.ID, p.Name, p.Status, p.Path)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchFramework, "framework", "", "filter by framework")
	searchCmd.Flags().StringVar(&searchStatus, "status", "", "filter by lifecycle status")
	searchCmd.Flags().StringVar(&searchTag, "tag", "", "filter by tag")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "cap the number of results")
	rootCmd.AddCommand(searchCmd)
}
