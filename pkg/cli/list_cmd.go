package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/capbuild/capbuild/pkg/targets"
)

func (a *app) newListTargetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-targets",
		Usage: "List the targets capbuild can build",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Also list the per-architecture target names",
			},
		},
		Action: a.runListTargets,
	}
}

func (a *app) runListTargets(_ context.Context, cmd *cli.Command) error {
	all := cmd.Bool("all")

	variants := map[string][]*targets.Target{}
	for _, t := range a.targets.All() {
		if t.Name != t.BaseName {
			variants[t.BaseName] = append(variants[t.BaseName], t)
		}
	}

	for _, t := range a.targets.All() {
		if t.Name != t.BaseName {
			continue
		}
		desc := t.Description
		if t.IsAlias() {
			desc = fmt.Sprintf("%s (default %s)", desc, t.CrossTarget)
		}
		fmt.Fprintf(a.out, "%-30s %s\n", t.Name, desc)
		if !all {
			continue
		}
		for _, v := range variants[t.BaseName] {
			fmt.Fprintf(a.out, "  %-28s %s\n", v.Name, v.CrossTarget)
		}
	}
	return nil
}
