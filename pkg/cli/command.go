package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/projects"
	"github.com/capbuild/capbuild/pkg/targets"
)

// app carries the registries shared by the build action and the
// subcommands. Every NewCommand call builds a fresh pair, so one
// finalized command does not leak state into the next.
type app struct {
	options *config.Registry
	targets *targets.Registry
	out     io.Writer
}

func NewCommand() *cli.Command {
	return newCommand(os.Stdout)
}

func newCommand(out io.Writer) *cli.Command {
	options := config.NewRegistry()
	registry := targets.NewRegistry(options)
	projects.RegisterAll(registry, options)
	a := &app{options: options, targets: registry, out: out}

	return &cli.Command{
		Name:      "capbuild",
		Usage:     "Build CHERI and Morello software images",
		Version:   "0.1.0",
		ArgsUsage: "<target>...",
		Description: `capbuild builds CHERI software targets and the cross toolchain they
need, tracks dependencies between targets, and boots the results on
the Morello FVP.

Run "capbuild list-targets" to see what can be built. Settings for a
specific target are flags named "<target>/<option>".`,
		Flags:  append(globalFlags(), optionFlags(options)...),
		Action: a.runBuild,
		Commands: []*cli.Command{
			a.newListTargetsCommand(),
			a.newConfigCommand(),
		},
	}
}

// Run executes the command line and prints errors together with their
// remediation hint when one is attached.
func Run(ctx context.Context, args []string) error {
	err := NewCommand().Run(ctx, args)
	if err != nil {
		printError(err)
	}
	return err
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
	if hint, ok := goerr.Values(err)["hint"].(string); ok && hint != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.New(color.FgYellow).Sprint("Hint:"), hint)
	}
}
