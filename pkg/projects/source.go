package projects

import (
	"context"
	"os"
	"path/filepath"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

// SourceOptions are the settings every project built from a source
// checkout declares: where the sources come from and where they live.
// The checkout is shared by all variants of a target while each variant
// gets its own build directory.
type SourceOptions struct {
	Repository *config.Option[string]
	SourceDir  *config.Option[string]
	BuildDir   *config.Option[string]
}

func NewSourceOptions(r *config.Registry, scope, defaultRepo string) *SourceOptions {
	return &SourceOptions{
		Repository: config.AddString(r, scope, "repository",
			config.Literal(defaultRepo),
			"Git URL the sources are cloned from"),
		SourceDir: config.AddPath(r, scope, "source-directory",
			config.Computed(func(cfg *config.Config, _ string) string {
				return filepath.Join(cfg.SourceRoot, scope)
			}, "$SOURCE_ROOT/"+scope),
			"Override the source checkout location"),
		BuildDir: config.AddPath(r, scope, "build-directory",
			config.Computed(func(cfg *config.Config, s string) string {
				return filepath.Join(cfg.BuildRoot, s+"-build")
			}, "$BUILD_ROOT/<target>-build"),
			"Override the build directory"),
	}
}

// SourceProject is a build step whose inputs are a git checkout.
type SourceProject struct {
	BaseProject
	Source *SourceOptions
}

func NewSourceProject(b *targets.Build, t *targets.Target, opts *SourceOptions) SourceProject {
	p := SourceProject{BaseProject: NewBaseProject(b, t), Source: opts}
	p.RequireSystemTool("git", ToolHint{Apt: "git", Homebrew: "git"})
	return p
}

func (p *SourceProject) SourceDir() string { return p.Source.SourceDir.Get(p) }
func (p *SourceProject) BuildDir() string  { return p.Source.BuildDir.Get(p) }

// Update clones the repository on first use and pulls afterwards.
// --skip-update turns it into a no-op.
func (p *SourceProject) Update(ctx context.Context) error {
	src := p.SourceDir()
	if p.Config().SkipUpdate {
		p.Display().Detail("Skipping update of %s", src)
		return nil
	}
	if _, err := os.Stat(filepath.Join(src, ".git")); err != nil {
		repo := p.Source.Repository.Get(p)
		if repo == "" {
			return p.Fail("no repository configured for "+p.Target().Name,
				"set "+p.OptionFlag("repository"))
		}
		if err := p.MakeDirs(filepath.Dir(src)); err != nil {
			return err
		}
		return p.RunTool(ctx, "git", "clone", repo, src)
	}
	_, err := p.Run(ctx, model.Command{
		Path: "git",
		Args: []string{"pull", "--rebase", "--autostash"},
		Dir:  src,
	})
	return err
}

// PrepareBuildDir creates the build directory, wiping it first when
// --clean is set.
func (p *SourceProject) PrepareBuildDir() error {
	if p.Config().Clean {
		return p.CleanDirectory(p.BuildDir())
	}
	return p.MakeDirs(p.BuildDir())
}
