package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlasforge/atlas/internal/component"
)

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Package, install, and update reusable components",
}

var componentPackageCmd = &cobra.Command{
	Use:   "package <project-id> <dir> <name>",
	Short: "Package a directory of a project as a component",
	Long: `Bundle a contiguous directory into a versioned component. The first
publish creates 1.0.0; later publishes diff the exported interface
against the prior version: unchanged bumps patch, additive bumps minor,
removed or changed exports bump major and mark the version breaking.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := reg.Get(ctx, args[0])
		if err != nil {
			return err
		}

		dir := args[1]
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(p.Path, dir)
		}
		c, cv, err := componentLib.Package(ctx, p.ID, dir, args[2])
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s %s", green("Published:"), c.Name, cv.Version)
		if cv.Breaking {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf(" %s", red("(breaking)"))
		}
		fmt.Println()
		return nil
	},
}

var componentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the component catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		components, err := componentLib.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range components {
			fmt.Printf("%-14s %-24s current %-10s %d version(s)\n",
				c.ID, c.Name, c.Current, len(c.Versions))
		}
		return nil
	},
}

var installVersion string

var componentInstallCmd = &cobra.Command{
	Use:   "install <component-id> <project-id>",
	Short: "Install a component into a target project",
	Long: `Copy a component version, plus its resolved transitive dependencies,
into a target project. For each required component the highest version
satisfying every consumer's constraint is chosen; an unsatisfiable set
fails naming the conflicting constraints. Installing an identical state
is a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := reg.Get(ctx, args[1])
		if err != nil {
			return err
		}

		installed, err := componentLib.Install(ctx, args[0], installVersion, component.InstallTarget{
			ProjectID: target.ID,
			Dir:       target.Path,
		})
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		for _, inst := range installed {
			fmt.Printf("%s %s %s into %s\n", green("Installed:"), inst.ComponentID, inst.Version, target.Name)
		}
		return nil
	},
}

var (
	updateConfirm bool
	updateAuto    bool
)

var componentUpdateCmd = &cobra.Command{
	Use:   "update <component-id> <project-id>",
	Short: "Update an installed component to the latest version",
	Long: `Diff the installed version against the latest. A breaking jump is
refused unless --confirm is given; a non-breaking jump applies with
--auto and is otherwise only reported.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := reg.Get(ctx, args[1])
		if err != nil {
			return err
		}

		report, err := componentLib.Update(ctx, component.InstallTarget{
			ProjectID: target.ID,
			Dir:       target.Path,
		}, args[0], component.UpdateOpts{Confirm: updateConfirm, AutoApply: updateAuto})
		if err != nil {
			return err
		}

		if report.Applied {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s %s -> %s\n", green("Updated:"), report.From, report.To)
		} else {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %s -> %s available (pass --auto to apply)\n",
				yellow("Pending:"), report.From, report.To)
		}
		return nil
	},
}

func init() {
	componentInstallCmd.Flags().StringVar(&installVersion, "version", "", "version to install (defaults to latest)")
	componentUpdateCmd.Flags().BoolVar(&updateConfirm, "confirm", false, "acknowledge a breaking update")
	componentUpdateCmd.Flags().BoolVar(&updateAuto, "auto", false, "apply non-breaking updates")
	componentCmd.AddCommand(componentPackageCmd)
	componentCmd.AddCommand(componentListCmd)
	componentCmd.AddCommand(componentInstallCmd)
	componentCmd.AddCommand(componentUpdateCmd)
	rootCmd.AddCommand(componentCmd)
}
