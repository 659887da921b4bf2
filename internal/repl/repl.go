package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/atlasforge/atlas/internal/component"
	"github.com/atlasforge/atlas/internal/graph"
	"github.com/atlasforge/atlas/internal/pattern"
	"github.com/atlasforge/atlas/internal/registry"
)

// REPL is the interactive portfolio shell.
type REPL struct {
	registry   *registry.Registry
	patterns   *pattern.Library
	components *component.Library
	knowledge  *graph.Graph
	graphInput func(ctx context.Context) (graph.Input, error)
	rl         *readline.Instance
	ctx        context.Context
	commands   map[string]CommandHandler
}

// CommandHandler handles a specific command.
type CommandHandler func(args []string) error

// Config holds REPL configuration.
type Config struct {
	Registry   *registry.Registry
	Patterns   *pattern.Library
	Components *component.Library
	Knowledge  *graph.Graph

	// GraphInput assembles the cross-subsystem state a rebuild reads.
	GraphInput func(ctx context.Context) (graph.Input, error)
}

// New creates a new REPL instance.
func New(cfg *Config) (*REPL, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Patterns == nil || cfg.Components == nil || cfg.Knowledge == nil {
		return nil, fmt.Errorf("all subsystems are required")
	}

	r := &REPL{
		registry:   cfg.Registry,
		patterns:   cfg.Patterns,
		components: cfg.Components,
		knowledge:  cfg.Knowledge,
		graphInput: cfg.GraphInput,
		commands:   make(map[string]CommandHandler),
	}

	r.registerCommands()

	return r, nil
}

// Run reads and dispatches commands until exit or EOF. Command errors
// are printed and the loop continues; only a readline failure ends the
// session with an error.
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("atlas> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("creating readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			// An interrupt discards the current line only.
			continue
		case err == io.EOF:
			fmt.Println("\nGoodbye!")
			return nil
		case err != nil:
			return err
		}

		if line = strings.TrimSpace(line); line == "" {
			continue
		}

		switch err := r.dispatch(line); {
		case err == io.EOF:
			// The exit command shuts the loop down cleanly.
			return nil
		case err != nil:
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// dispatch routes one input line to its command handler.
func (r *REPL) dispatch(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	if handler, ok := r.commands[parts[0]]; ok {
		return handler(parts[1:])
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s Unknown command %q. Use 'help' for available commands.\n", yellow("Note:"), parts[0])
	return nil
}

func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["status"] = r.cmdStatus
	r.commands["search"] = r.cmdSearch
	r.commands["suggest"] = r.cmdSuggest
	r.commands["similar"] = r.cmdSimilar
	r.commands["insights"] = r.cmdInsights
	r.commands["rebuild"] = r.cmdRebuild
}

// printWelcome prints the welcome message.
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Welcome to Atlas"))
	fmt.Println("Cross-project intelligence for your portfolio")
	fmt.Println()
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println()
}

// cmdHelp shows help information.
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Available Commands:"))
	fmt.Println()

	commands := []struct {
		name string
		desc string
	}{
		{"help, ?", "Show this help message"},
		{"status", "Portfolio overview"},
		{"search <query>", "Search registered projects"},
		{"suggest <project-id>", "Suggest patterns worth adopting"},
		{"similar <project-id>", "Projects most similar to one project"},
		{"insights [kind]", "Generate graph insights"},
		{"rebuild", "Rebuild the knowledge graph"},
		{"exit, quit", "Exit the shell"},
	}

	for _, cmd := range commands {
		fmt.Printf("  %-22s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Println()

	return nil
}

// cmdExit exits the REPL.
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Goodbye!\n", green("✓"))
	r.rl.Close()
	return io.EOF // recognized by Run as a clean shutdown
}
