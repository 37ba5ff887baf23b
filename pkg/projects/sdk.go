package projects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

type toolchainOptions struct {
	Repo       *config.Option[string]
	Tag        *config.Option[string]
	Pattern    *config.Option[string]
	InstallDir *config.Option[string]
}

func newToolchainOptions(r *config.Registry, scope string) *toolchainOptions {
	return &toolchainOptions{
		Repo: config.AddString(r, scope, "repository",
			config.Literal("CTSRD-CHERI/llvm-project"),
			"GitHub repository (owner/name) publishing prebuilt toolchains"),
		Tag: config.AddString(r, scope, "release-tag",
			config.Literal(""),
			"Pin a release tag instead of using the latest release"),
		Pattern: config.AddString(r, scope, "asset-pattern",
			config.Computed(func(*config.Config, string) string {
				return defaultAssetPattern()
			}, "clang+llvm-*-<host>.tar.xz"),
			"Glob matched against release asset names"),
		InstallDir: config.AddPath(r, scope, "install-directory",
			config.Computed(func(cfg *config.Config, _ string) string {
				return cfg.SDKRoot()
			}, "$OUTPUT_ROOT/sdk"),
			"Where the toolchain is unpacked"),
	}
}

func defaultAssetPattern() string {
	host := "x86_64-linux-gnu"
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/arm64":
		host = "aarch64-linux-gnu"
	case "darwin/arm64":
		host = "arm64-apple-darwin"
	case "darwin/amd64":
		host = "x86_64-apple-darwin"
	}
	return fmt.Sprintf("clang+llvm-*-%s*.tar.xz", host)
}

// toolchainProject installs the prebuilt CHERI LLVM toolchain from a
// GitHub release into the SDK directory.
type toolchainProject struct {
	BaseProject
	opts *toolchainOptions
}

func newToolchain(b *targets.Build, t *targets.Target, opts *toolchainOptions) *toolchainProject {
	return &toolchainProject{BaseProject: NewBaseProject(b, t), opts: opts}
}

func (p *toolchainProject) Process(ctx context.Context) error {
	installDir := p.opts.InstallDir.Get(p)
	clang := filepath.Join(installDir, "bin", "clang")
	if _, err := os.Stat(clang); err == nil && !p.Config().Force {
		p.Display().Status("Toolchain already installed at %s, use --force to reinstall", installDir)
		return nil
	}

	repo, err := model.ParseReleaseRepo(p.opts.Repo.Get(p))
	if err != nil {
		return domain.ErrConfiguration.Wrap(err,
			goerr.V("hint", "set "+p.OptionFlag("repository")+" to owner/name"))
	}
	asset, err := p.build.Releases.FindAsset(ctx, repo, p.opts.Tag.Get(p), p.opts.Pattern.Get(p))
	if err != nil {
		if p.Config().Pretend {
			p.Warn("cannot query toolchain release: "+err.Error(), "")
			return nil
		}
		return err
	}

	p.Display().Status("Downloading %s (%s)", asset.Name, humanSize(asset.Size))
	if p.Config().Pretend {
		p.Display().Command([]string{"tar", "-xJf", asset.Name, "-C", installDir, "--strip-components=1"})
		return nil
	}
	archive, err := p.build.Releases.Download(ctx, repo, asset)
	if err != nil {
		return err
	}

	if err := p.CleanDirectory(installDir); err != nil {
		return err
	}
	p.Display().Status("Unpacking %s into %s", filepath.Base(archive), installDir)
	if err := p.build.Extractor.ExtractTarXz(ctx, archive, installDir, 1); err != nil {
		return err
	}
	if _, err := os.Stat(clang); err != nil {
		return p.Fail("toolchain archive did not contain bin/clang",
			"check "+p.OptionFlag("asset-pattern"))
	}
	return nil
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func registerToolchain(tr *targets.Registry, options *config.Registry) {
	opts := newToolchainOptions(options, "sdk-toolchain")
	tr.Register(&targets.Spec{
		Name:        "sdk-toolchain",
		Description: "Install the prebuilt CHERI LLVM toolchain from a GitHub release",
		Factory: func(b *targets.Build, t *targets.Target) (targets.Project, error) {
			return newToolchain(b, t, opts), nil
		},
	})
}
