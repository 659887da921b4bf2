package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/types"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Rebuild and query the knowledge graph",
}

var graphRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the knowledge graph from current state",
	Long: `Recompute the full graph: one node per project, pattern, and
component, with uses, similar-to, depends-on, evolved-from, and
shared-by edges. The new snapshot is persisted and swapped in
atomically; queries in flight keep reading the snapshot they started
on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		in, err := collectGraphInput(ctx)
		if err != nil {
			return err
		}
		snap, err := knowledge.Rebuild(ctx, in)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %d nodes, %d edges\n", green("Rebuilt:"), len(snap.Nodes), len(snap.Edges))
		if report := snap.Report(); report != nil && report.Failed() > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %d entities skipped\n", yellow("Warning:"), report.Failed())
			for _, o := range report.Outcomes {
				if !o.OK {
					fmt.Printf("    %s: %s\n", o.Ref, o.Error)
				}
			}
		}
		return nil
	},
}

var graphSimilarCmd = &cobra.Command{
	Use:   "similar <project-id>",
	Short: "Show the projects most similar to one project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := knowledge.QuerySimilarity(args[0], 10)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("no similar projects above threshold"))
			return nil
		}
		for _, r := range results {
			fmt.Printf("%-14s similarity %.3f\n", r.B, r.Similarity)
		}
		return nil
	},
}

var insightKind string

var graphInsightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate insights from the knowledge graph",
	Long: `Run the insight rules over the current snapshot: extract-for-reuse
flags patterns shared widely enough to package as components;
pattern-transfer flags similar projects whose health has diverged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		insights, err := knowledge.QueryInsights(types.InsightKind(insightKind))
		if err != nil {
			return err
		}
		if len(insights) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("no insights"))
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		for _, in := range insights {
			fmt.Printf("%s [%.2f] %s\n", cyan(string(in.Kind)), in.Confidence, in.Claim)
			fmt.Printf("    evidence: %v\n", in.Evidence)
		}
		return nil
	},
}

func init() {
	graphInsightsCmd.Flags().StringVar(&insightKind, "kind", "", "restrict to one insight rule")
	graphCmd.AddCommand(graphRebuildCmd)
	graphCmd.AddCommand(graphSimilarCmd)
	graphCmd.AddCommand(graphInsightsCmd)
	rootCmd.AddCommand(graphCmd)
}
