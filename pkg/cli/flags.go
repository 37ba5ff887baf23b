package cli

import (
	"github.com/urfave/cli/v3"

	"github.com/capbuild/capbuild/pkg/config"
)

// globalFlags mirror the fields of config.Config. Values set on the
// command line win over the config file.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config-file",
			Aliases: []string{"c"},
			Usage:   "Path to the JSON configuration file",
		},
		&cli.StringFlag{
			Name:  "source-root",
			Usage: "Directory project sources are checked out into",
		},
		&cli.StringFlag{
			Name:  "output-root",
			Usage: "Directory build products are installed into",
		},
		&cli.StringFlag{
			Name:  "build-root",
			Usage: "Directory build trees are created in",
		},
		&cli.BoolFlag{
			Name:    "pretend",
			Aliases: []string{"p"},
			Usage:   "Print commands instead of running them",
		},
		&cli.BoolFlag{
			Name:  "clean",
			Usage: "Remove build trees before building",
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "Answer yes to every confirmation prompt",
		},
		&cli.BoolFlag{
			Name:  "skip-update",
			Usage: "Do not update source repositories before building",
		},
		&cli.BoolFlag{
			Name:    "include-dependencies",
			Aliases: []string{"d"},
			Usage:   "Also build the dependencies of the given targets",
		},
		&cli.BoolFlag{
			Name:  "keep-going",
			Usage: "Continue with the remaining targets after a failure",
		},
		&cli.IntFlag{
			Name:        "jobs",
			Aliases:     []string{"j"},
			Usage:       "Number of parallel make jobs",
			DefaultText: "number of CPUs",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress build output",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable verbose output",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
}

// optionFlags exposes every declared per-target option as a flag named
// by its full "scope/name" key, grouped by scope in the help output.
func optionFlags(options *config.Registry) []cli.Flag {
	infos := options.Declared()
	flags := make([]cli.Flag, 0, len(infos))
	for _, info := range infos {
		switch info.Kind {
		case config.KindBool:
			flags = append(flags, &cli.BoolFlag{
				Name:     info.FullName(),
				Usage:    info.Help,
				Category: info.Scope,
			})
		case config.KindInt:
			flags = append(flags, &cli.IntFlag{
				Name:        info.FullName(),
				Usage:       info.Help,
				Category:    info.Scope,
				DefaultText: info.DefaultText,
			})
		default:
			flags = append(flags, &cli.StringFlag{
				Name:        info.FullName(),
				Usage:       info.Help,
				Category:    info.Scope,
				DefaultText: info.DefaultText,
			})
		}
	}
	return flags
}

// stageOptionFlags hands option values set on the command line to the
// registry. Must run before the registry is finalized.
func stageOptionFlags(cmd *cli.Command, options *config.Registry) error {
	for _, info := range options.Declared() {
		full := info.FullName()
		if !cmd.IsSet(full) {
			continue
		}
		switch info.Kind {
		case config.KindBool:
			options.SetCLIBool(full, cmd.Bool(full))
		case config.KindInt:
			options.SetCLIInt(full, int(cmd.Int(full)))
		case config.KindList:
			if err := options.SetCLIList(full, cmd.String(full)); err != nil {
				return err
			}
		default:
			options.SetCLIString(full, cmd.String(full))
		}
	}
	return nil
}

// applyGlobalFlags copies set global flags onto the config, overriding
// config file values. Bool flags only switch settings on, so a value
// from the config file survives when the flag is absent.
func applyGlobalFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("source-root") {
		cfg.SourceRoot = config.ExpandPath(cmd.String("source-root"))
	}
	if cmd.IsSet("output-root") {
		cfg.OutputRoot = config.ExpandPath(cmd.String("output-root"))
	}
	if cmd.IsSet("build-root") {
		cfg.BuildRoot = config.ExpandPath(cmd.String("build-root"))
	}
	if cmd.IsSet("jobs") {
		cfg.MakeJobs = int(cmd.Int("jobs"))
	}
	cfg.Pretend = cfg.Pretend || cmd.Bool("pretend")
	cfg.Clean = cfg.Clean || cmd.Bool("clean")
	cfg.Force = cfg.Force || cmd.Bool("force")
	cfg.SkipUpdate = cfg.SkipUpdate || cmd.Bool("skip-update")
	cfg.IncludeDependencies = cfg.IncludeDependencies || cmd.Bool("include-dependencies")
	cfg.KeepGoing = cfg.KeepGoing || cmd.Bool("keep-going")
	cfg.Quiet = cfg.Quiet || cmd.Bool("quiet")
	cfg.Verbose = cfg.Verbose || cmd.Bool("verbose")
	cfg.Debug = cfg.Debug || cmd.Bool("debug")
}
