package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
)

func (a *app) newConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the capbuild configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a starter configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the template to PATH instead of the default location",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite an existing file",
					},
				},
				Action: a.runConfigInit,
			},
			{
				Name:      "get",
				Usage:     "Print the resolved value of one option",
				ArgsUsage: "<scope/option>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config-file",
						Aliases: []string{"c"},
						Usage:   "Path to the JSON configuration file",
					},
				},
				Action: a.runConfigGet,
			},
		},
	}
}

func (a *app) runConfigInit(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = config.DefaultConfig().ConfigFile
	} else {
		path = config.ExpandPath(path)
	}
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return domain.ErrConfiguration.Wrap(goerr.New("config file already exists",
			goerr.V("path", path),
			goerr.V("hint", "pass --force to overwrite it")))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.ErrConfiguration.Wrap(err, goerr.V("path", path))
	}
	if err := os.WriteFile(path, []byte(a.options.Template()), 0o644); err != nil {
		return domain.ErrConfiguration.Wrap(err, goerr.V("path", path))
	}
	fmt.Fprintf(a.out, "Wrote %s\n", path)
	return nil
}

// runConfigGet resolves one option the way a build would see it, the
// config file and defaults included.
func (a *app) runConfigGet(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return domain.ErrConfiguration.Wrap(
			goerr.New("config get needs exactly one scope/option argument"))
	}
	cfg := config.DefaultConfig()
	if cmd.IsSet("config-file") {
		cfg.ConfigFile = config.ExpandPath(cmd.String("config-file"))
	}
	if err := a.options.LoadFile(cfg.ConfigFile); err != nil {
		return err
	}
	if err := a.options.Finalize(cfg); err != nil {
		return err
	}
	cfg.Normalize()

	value, err := a.options.Resolve(cmd.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, value)
	return nil
}
