package repl

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/atlasforge/atlas/internal/types"
)

// cmdStatus shows the portfolio overview.
func (r *REPL) cmdStatus(args []string) error {
	ctx := r.ctx

	projects, err := r.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	byStatus := make(map[types.ProjectStatus]int)
	for _, p := range projects {
		byStatus[p.Status]++
	}

	indexed, err := r.patterns.List(ctx, "", types.PatternIndexed)
	if err != nil {
		return fmt.Errorf("failed to list patterns: %w", err)
	}
	comps, err := r.components.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list components: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("\n%s\n", cyan("Portfolio Status"))
	fmt.Println()
	fmt.Printf("  %s  %d projects\n", green("✓ Active"), byStatus[types.StatusActive])
	fmt.Printf("  %s  %d projects\n", yellow("• Registered"), byStatus[types.StatusRegistered]+byStatus[types.StatusDiscovered])
	fmt.Printf("  %s  %d projects\n", red("⊗ Archived"), byStatus[types.StatusArchived])
	fmt.Println()
	fmt.Printf("  %d indexed patterns, %d components\n", len(indexed), len(comps))

	if snap := r.knowledge.Current(); snap != nil {
		fmt.Printf("  graph: %d nodes, %d edges (built %s)\n",
			len(snap.Nodes), len(snap.Edges), snap.BuiltAt.Format("2006-01-02 15:04"))
	} else {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("  %s\n", gray("graph: no snapshot yet, run 'rebuild'"))
	}
	fmt.Println()

	return nil
}

// cmdSearch searches registered projects by free text.
func (r *REPL) cmdSearch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: search <query>")
	}

	projects, err := r.registry.Search(r.ctx, types.ProjectFilter{
		Query: strings.Join(args, " "),
		Limit: 20,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(projects) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No matching projects.\n\n", yellow("ℹ"))
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Println()
	for i, p := range projects {
		fmt.Printf("%2d. %s  %s (%s)\n", i+1, green(p.ID), p.Name, p.Status)
	}
	fmt.Println()

	return nil
}

// cmdSuggest ranks patterns from other projects for one target project.
func (r *REPL) cmdSuggest(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: suggest <project-id>")
	}
	ctx := r.ctx

	target, err := r.registry.Get(ctx, args[0])
	if err != nil {
		return err
	}

	all, err := r.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	profiles := make(map[string][]string)
	for _, p := range all {
		if p.Status != types.StatusArchived {
			profiles[p.ID] = p.Profile.Facets()
		}
	}

	suggestions, err := r.patterns.Suggest(ctx, target.ID, target.Profile.Facets(), profiles, 10)
	if err != nil {
		return err
	}

	if len(suggestions) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s Nothing to suggest for %s.\n\n", yellow("ℹ"), target.Name)
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n", cyan(fmt.Sprintf("Suggestions for %s", target.Name)))
	fmt.Println()
	for i, s := range suggestions {
		fmt.Printf("%2d. [%.2f] %s: %s (seen in %d projects)\n",
			i+1, s.Score, green(s.Pattern.ID), s.Pattern.Name, len(s.SourceIDs))
	}
	fmt.Println()

	return nil
}

// cmdSimilar shows the projects most similar to one project.
func (r *REPL) cmdSimilar(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: similar <project-id>")
	}

	results, err := r.knowledge.QuerySimilarity(args[0], 10)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No similar projects above threshold.\n\n", yellow("ℹ"))
		return nil
	}

	fmt.Println()
	for i, res := range results {
		fmt.Printf("%2d. %-14s similarity %.3f\n", i+1, res.B, res.Similarity)
	}
	fmt.Println()

	return nil
}

// cmdInsights generates insights from the current graph snapshot.
func (r *REPL) cmdInsights(args []string) error {
	var kind types.InsightKind
	if len(args) > 0 {
		kind = types.InsightKind(args[0])
	}

	insights, err := r.knowledge.QueryInsights(kind)
	if err != nil {
		return err
	}

	if len(insights) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No insights for the current snapshot.\n\n", yellow("ℹ"))
		return nil
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Println()
	for _, in := range insights {
		fmt.Printf("%s [%.2f] %s\n", cyan(string(in.Kind)), in.Confidence, in.Claim)
	}
	fmt.Println()

	return nil
}

// cmdRebuild rebuilds the knowledge graph from current state.
func (r *REPL) cmdRebuild(args []string) error {
	ctx := r.ctx

	in, err := r.graphInput(ctx)
	if err != nil {
		return err
	}
	snap, err := r.knowledge.Rebuild(ctx, in)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Rebuilt graph: %d nodes, %d edges\n\n", green("✓"), len(snap.Nodes), len(snap.Edges))
	return nil
}
