package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/pattern"
	"github.com/atlasforge/atlas/internal/types"
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Extract, list, match, and suggest patterns",
}

var patternExtractCmd = &cobra.Command{
	Use:   "extract <project-id>",
	Short: "Extract patterns from a project's source tree",
	Long: `Parse a registered project's source and fold what is found into the
pattern library. Known signatures merge into existing patterns;
re-extraction is idempotent. Candidates seen in enough projects are
promoted to indexed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := reg.Get(ctx, args[0])
		if err != nil {
			return err
		}

		result, err := patternLib.Extract(ctx, p.ID, p.Path)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %d new, %d merged, %d promoted\n",
			green("Extracted:"), result.Inserted, result.Merged, result.Promoted)
		return nil
	},
}

var (
	patternListCategory string
	patternListStatus   string
)

var patternListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns, err := patternLib.List(cmd.Context(),
			types.PatternCategory(patternListCategory),
			types.PatternStatus(patternListStatus))
		if err != nil {
			return err
		}
		for _, p := range patterns {
			fmt.Printf("%-14s %-24s %-14s %-10s used %d\n",
				p.ID, p.Name, p.Category, p.Status, p.UsageCount)
		}
		return nil
	},
}

var (
	patternMatchCategory  string
	patternMatchTag       string
	patternMatchThreshold float64
	patternMatchLimit     int
)

var patternMatchCmd = &cobra.Command{
	Use:   "match <dir>",
	Short: "Match code under a directory against indexed patterns",
	Long: `Extract structural descriptors from the code under a directory and
match each against the indexed pattern library. Prints the closest
pattern per matching location.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		descriptors, err := pattern.ExtractDescriptors(args[0])
		if err != nil {
			return err
		}

		found := 0
		for _, d := range descriptors {
			matches, err := patternLib.Match(ctx, pattern.MatchQuery{
				Tokens:    d.Tokens,
				Category:  types.PatternCategory(patternMatchCategory),
				Tag:       patternMatchTag,
				Threshold: patternMatchThreshold,
				Limit:     1,
			})
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				continue
			}
			m := matches[0]
			fmt.Printf("%-32s -> %-24s similarity %.3f\n", d.Location, m.Pattern.Name, m.Similarity)
			found++
			if patternMatchLimit > 0 && found >= patternMatchLimit {
				break
			}
		}
		if found == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("no matches above threshold"))
		}
		return nil
	},
}

var patternSuggestCmd = &cobra.Command{
	Use:   "suggest <project-id>",
	Short: "Suggest patterns from other projects for a target",
	Long: `Rank indexed patterns from the rest of the portfolio for adoption by
the target project. Patterns the target already exhibits and patterns
whose only sources are archived are excluded. Ranking blends similarity
with adoption, recency, and quality.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := reg.Get(ctx, args[0])
		if err != nil {
			return err
		}

		projects, err := reg.List(ctx)
		if err != nil {
			return err
		}
		profiles := make(map[string][]string)
		for _, other := range projects {
			if !other.IsArchived() {
				profiles[other.ID] = other.Profile.Facets()
			}
		}

		suggestions, err := patternLib.Suggest(ctx, p.ID, p.Profile.Facets(), profiles, 10)
		if err != nil {
			return err
		}
		if len(suggestions) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("no suggestions"))
			return nil
		}
		for _, s := range suggestions {
			fmt.Printf("%-24s score %.3f  similarity %.3f  from %v\n",
				s.Pattern.Name, s.Score, s.Similarity, s.SourceIDs)
		}
		return nil
	},
}

func init() {
	patternListCmd.Flags().StringVar(&patternListCategory, "category", "", "filter by category")
	patternListCmd.Flags().StringVar(&patternListStatus, "status", "", "filter by status")
	patternMatchCmd.Flags().StringVar(&patternMatchCategory, "category", "", "filter by category")
	patternMatchCmd.Flags().StringVar(&patternMatchTag, "tag", "", "filter by tag")
	patternMatchCmd.Flags().Float64Var(&patternMatchThreshold, "threshold", 0, "similarity threshold (0 = configured default)")
	patternMatchCmd.Flags().IntVar(&patternMatchLimit, "limit", 20, "max locations to report")
	patternCmd.AddCommand(patternExtractCmd)
	patternCmd.AddCommand(patternListCmd)
	patternCmd.AddCommand(patternMatchCmd)
	patternCmd.AddCommand(patternSuggestCmd)
	rootCmd.AddCommand(patternCmd)
}
