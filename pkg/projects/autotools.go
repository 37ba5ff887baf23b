package projects

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

// AutotoolsOptions are the settings shared by configure based projects.
type AutotoolsOptions struct {
	ConfigureArgs *config.Option[[]string]
}

func NewAutotoolsOptions(r *config.Registry, scope string) *AutotoolsOptions {
	return &AutotoolsOptions{
		ConfigureArgs: config.AddList(r, scope, "configure-options",
			config.Literal[[]string](nil),
			"Additional arguments passed to the configure script"),
	}
}

// AutotoolsProject is a make project whose build directory is prepared
// by running the source tree's configure script out of tree.
type AutotoolsProject struct {
	MakeProject
	Autotools *AutotoolsOptions

	configureArgs []string
	configureEnv  []string
}

func NewAutotoolsProject(b *targets.Build, t *targets.Target, src *SourceOptions, mk *MakeOptions, at *AutotoolsOptions) AutotoolsProject {
	return AutotoolsProject{
		MakeProject: NewMakeProject(b, t, src, mk, "make", ToolHint{Apt: "make", Homebrew: "make"}),
		Autotools:   at,
	}
}

// AddConfigureArgs appends project supplied configure arguments. User
// supplied --configure-options always come last so they win.
func (p *AutotoolsProject) AddConfigureArgs(args ...string) {
	p.configureArgs = append(p.configureArgs, args...)
}

// AddConfigureEnv sets an environment variable for the configure run,
// e.g. CC pointing at the cross compiler.
func (p *AutotoolsProject) AddConfigureEnv(key, value string) {
	p.configureEnv = append(p.configureEnv, key+"="+value)
}

func (p *AutotoolsProject) ConfigureEnv() []string {
	return slices.Clone(p.configureEnv)
}

func (p *AutotoolsProject) ConfigureScript() string {
	return filepath.Join(p.SourceDir(), "configure")
}

// ConfigureCommandLine is the full configure invocation, project args
// first and user options last.
func (p *AutotoolsProject) ConfigureCommandLine() []string {
	args := slices.Clone(p.configureArgs)
	return append(args, p.Autotools.ConfigureArgs.Get(p)...)
}

// NeedsConfigure reports whether configure must run, which is whenever
// the build directory has no Makefile yet or --clean wiped it.
func (p *AutotoolsProject) NeedsConfigure() bool {
	if p.Config().Clean {
		return true
	}
	_, err := os.Stat(filepath.Join(p.BuildDir(), "Makefile"))
	return err != nil
}

func (p *AutotoolsProject) Configure(ctx context.Context) error {
	_, err := p.Run(ctx, model.Command{
		Path: p.ConfigureScript(),
		Args: p.ConfigureCommandLine(),
		Dir:  p.BuildDir(),
		Env:  p.ConfigureEnv(),
	})
	return err
}
