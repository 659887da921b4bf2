package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/types"
)

var (
	updateName    string
	updateStatus  string
	updateTags    []string
	updateRelated []string
)

var updateCmd = &cobra.Command{
	Use:   "update <project-id>",
	Short: "Update a project's mutable fields",
	Long: `Update name, tags, status, or related projects. Identity fields (id,
path, creation time) are immutable. Status changes follow the lifecycle:
discovered, registered, active, archived.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := map[string]interface{}{}
		if cmd.Flags().Changed("name") {
			patch["name"] = updateName
		}
		if cmd.Flags().Changed("status") {
			patch["status"] = updateStatus
		}
		if cmd.Flags().Changed("tag") {
			patch["tags"] = updateTags
		}
		if cmd.Flags().Changed("related") {
			patch["related"] = updateRelated
		}
		if len(patch) == 0 {
			return fmt.Errorf("nothing to update: pass --name, --status, --tag, or --related")
		}

		p, err := reg.Update(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s (%s) status=%s tags=%v\n", green("Updated:"), p.Name, p.ID, p.Status, p.Tags)
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <project-id>",
	Short: "Archive a project",
	Long: `Archive a project. Archival is terminal and idempotent: the project
stays queryable, patterns whose only sources are archived become
deprecated, and the project stops contributing new graph edges.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := reg.Archive(ctx, args[0])
		if err != nil {
			return err
		}

		// Deprecate patterns orphaned by this archival.
		projects, err := reg.List(ctx)
		if err != nil {
			return err
		}
		var live []string
		for _, other := range projects {
			if !other.IsArchived() {
				live = append(live, other.ID)
			}
		}
		deprecated, err := patternLib.OnProjectArchived(ctx, p.ID, live)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: pattern deprecation failed: %v\n", err)
		}

		// Fold the archival into the graph incrementally when a snapshot
		// exists; a full rebuild is not needed for one status change.
		if knowledge.Current() != nil {
			in, err := collectGraphInput(ctx)
			if err == nil {
				_, err = knowledge.ApplyDelta(ctx, types.GraphDelta{
					Kind:     types.NodeProject,
					RefID:    p.ID,
					Archived: true,
				}, in)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: graph update failed: %v\n", err)
			}
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s %s (%s)\n", yellow("Archived:"), p.Name, p.ID)
		if len(deprecated) > 0 {
			fmt.Printf("  %d pattern(s) deprecated\n", len(deprecated))
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health <project-id>",
	Short: "Compute a project's health score",
	Long: `Recompute the 0-100 health score from deployment success, error rate,
and activity freshness, store it on the project, and append it to the
bounded trend series.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := reg.ComputeHealthScore(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		tint := color.New(color.FgGreen).SprintFunc()
		switch {
		case score.Score < 40:
			tint = color.New(color.FgRed).SprintFunc()
		case score.Score < 70:
			tint = color.New(color.FgYellow).SprintFunc()
		}
		fmt.Printf("Health: %s\n", tint(fmt.Sprintf("%.1f", score.Score)))
		fmt.Printf("  deployment %.2f  errors %.2f  freshness %.2f\n",
			score.Deployment, score.Errors, score.Freshness)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateName, "name", "", "new name")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "new lifecycle status")
	updateCmd.Flags().StringSliceVar(&updateTags, "tag", nil, "replacement tag set (repeatable)")
	updateCmd.Flags().StringSliceVar(&updateRelated, "related", nil, "related project ids (repeatable)")
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(healthCmd)
}
