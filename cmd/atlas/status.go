package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a portfolio overview",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Atlas Portfolio ==="))

		projects, err := reg.List(ctx)
		if err != nil {
			cmd.PrintErrln(err)
			return
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s\n", yellow("Projects:"))
		if len(projects) == 0 {
			fmt.Printf("  %s\n", gray("none registered"))
		}
		byStatus := map[types.ProjectStatus]int{}
		for _, p := range projects {
			byStatus[p.Status]++
			marker := "○"
			if p.Status == types.StatusActive {
				marker = green("●")
			}
			health := gray("unscored")
			if p.Health != nil {
				health = fmt.Sprintf("health %.0f", p.Health.Score)
			}
			fmt.Printf("  %s %-24s %-10s %s\n", marker, p.Name, p.Status, health)
		}
		fmt.Println()
		fmt.Printf("  %d total", len(projects))
		for _, s := range []types.ProjectStatus{types.StatusDiscovered, types.StatusRegistered, types.StatusActive, types.StatusArchived} {
			if byStatus[s] > 0 {
				fmt.Printf(", %d %s", byStatus[s], s)
			}
		}
		fmt.Println()

		patterns, err := patternLib.List(ctx, "", "")
		if err == nil {
			indexed := 0
			for _, p := range patterns {
				if p.Status == types.PatternIndexed {
					indexed++
				}
			}
			fmt.Printf("\n%s %d (%d indexed)\n", yellow("Patterns:"), len(patterns), indexed)
		}

		components, err := componentLib.List(ctx)
		if err == nil {
			fmt.Printf("%s %d\n", yellow("Components:"), len(components))
		}

		if snap := knowledge.Current(); snap != nil {
			fmt.Printf("%s %d nodes, %d edges (built %s)\n",
				yellow("Graph:"), len(snap.Nodes), len(snap.Edges),
				snap.BuiltAt.Format("2006-01-02 15:04"))
		} else {
			fmt.Printf("%s %s\n", yellow("Graph:"), gray("not built"))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
