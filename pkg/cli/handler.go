package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/targets"
	"github.com/capbuild/capbuild/pkg/usecase"
)

// loadConfig resolves the effective configuration: built-in defaults,
// then the config file, then command line values on top. It finalizes
// the option registry, so options are readable afterwards and new
// declarations are rejected.
func (a *app) loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cmd.IsSet("config-file") {
		cfg.ConfigFile = config.ExpandPath(cmd.String("config-file"))
	}
	if err := a.options.LoadFile(cfg.ConfigFile); err != nil {
		return nil, err
	}
	if err := stageOptionFlags(cmd, a.options); err != nil {
		return nil, err
	}
	if err := a.options.Finalize(cfg); err != nil {
		return nil, err
	}
	applyGlobalFlags(cmd, cfg)
	cfg.Normalize()
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelWarn
	if cfg.Debug {
		logLevel = slog.LevelDebug
	} else if cfg.Verbose {
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func (a *app) runBuild(ctx context.Context, cmd *cli.Command) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx = ctxlog.With(ctx, newLogger(cfg))

	display := NewConsoleDisplay(cfg, a.out)
	for _, w := range a.options.Warnings() {
		display.Warn(w, "")
	}

	names := cmd.Args().Slice()
	if len(names) == 0 {
		return domain.ErrUnknownTarget.Wrap(goerr.New("no build targets given",
			goerr.V("hint", "run `capbuild list-targets` to see what can be built")))
	}

	runner := usecase.NewExecRunner(display, cfg.Pretend, cfg.Verbose, cfg.Quiet)
	build := targets.NewBuild(cfg, a.options, a.targets, targets.Collaborators{
		Runner:    runner,
		Display:   display,
		Releases:  usecase.NewReleaseService(ctx, cfg.GitHubToken),
		Extractor: usecase.NewArchiveExtractor(),
	})
	builder := usecase.NewBuildUseCase(usecase.BuildUseCaseOptions{
		Build:   build,
		Display: display,
	})
	return builder.Execute(ctx, names)
}
