package projects

import (
	"context"
	"path/filepath"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

type cheribsdOptions struct {
	Source       *SourceOptions
	Make         *MakeOptions
	KernelConfig *config.Option[string]
	BuildTests   *config.Option[bool]
	RootfsDir    *config.Option[string]
}

func newCheriBSDOptions(r *config.Registry, scope string) *cheribsdOptions {
	return &cheribsdOptions{
		Source: NewSourceOptions(r, scope, "https://github.com/CTSRD-CHERI/cheribsd"),
		Make:   NewMakeOptions(r, scope),
		KernelConfig: config.AddString(r, scope, "kernel-config",
			config.Computed(func(_ *config.Config, s string) string {
				ct, ok := model.CrossTargetFromSuffix(s)
				if !ok {
					ct = model.MorelloPurecap
				}
				return cheribsdKernConf(ct)
			}, "GENERIC-MORELLO* for morello, CHERI-*QEMU for riscv64"),
			"Kernel configuration to build"),
		BuildTests: config.AddBool(r, scope, "build-tests",
			config.Literal(false),
			"Include the test suite in the installed world"),
		RootfsDir: config.AddPath(r, scope, "install-directory",
			config.Computed(func(cfg *config.Config, s string) string {
				name := "rootfs"
				if ct, ok := model.CrossTargetFromSuffix(s); ok {
					name += ct.Suffix()
				}
				return filepath.Join(cfg.OutputRoot, name)
			}, "$OUTPUT_ROOT/rootfs-<target>"),
			"Where the world is installed"),
	}
}

func cheribsdKernConf(ct model.CrossTarget) string {
	switch {
	case ct.IsAArch64(true) && ct.IsPurecap():
		return "GENERIC-MORELLO-PURECAP"
	case ct.IsAArch64(true):
		return "GENERIC-MORELLO"
	case ct.IsPurecap():
		return "CHERI-PURECAP-QEMU"
	default:
		return "CHERI-QEMU"
	}
}

// cheribsdTargetPair maps a cross target onto the TARGET/TARGET_ARCH
// pair the CheriBSD build system expects. Pure-capability variants use
// the CHERI arch names.
func cheribsdTargetPair(ct model.CrossTarget) (string, string) {
	if ct.IsAArch64(true) {
		if ct.IsPurecap() {
			return "arm64", "aarch64c"
		}
		return "arm64", "aarch64"
	}
	if ct.IsPurecap() {
		return "riscv", "riscv64c"
	}
	return "riscv", "riscv64"
}

// cheribsdProject builds CheriBSD world and kernel with the SDK cross
// toolchain and installs them unprivileged into a rootfs directory with
// an mtree manifest.
type cheribsdProject struct {
	MakeProject
	opts *cheribsdOptions
}

func newCheriBSD(b *targets.Build, t *targets.Target, opts *cheribsdOptions) *cheribsdProject {
	return &cheribsdProject{
		MakeProject: NewMakeProject(b, t, opts.Source, opts.Make,
			"bmake", ToolHint{Apt: "bmake", Homebrew: "bmake"}),
		opts: opts,
	}
}

func (p *cheribsdProject) RootfsDir() string { return p.opts.RootfsDir.Get(p) }

func (p *cheribsdProject) ManifestPath() string {
	return filepath.Join(p.RootfsDir(), "METALOG")
}

func (p *cheribsdProject) defaultArgs() *MakeArgs {
	m := p.DefaultMakeArgs()
	target, arch := cheribsdTargetPair(p.CrossTarget())
	m.Set("TARGET", target)
	m.Set("TARGET_ARCH", arch)
	bin := p.Config().SDKBinDir()
	m.Set("XCC", filepath.Join(bin, "clang"))
	m.Set("XCXX", filepath.Join(bin, "clang++"))
	m.Set("XCPP", filepath.Join(bin, "clang-cpp"))
	m.Set("XLD", filepath.Join(bin, "ld.lld"))
	m.Set("KERNCONF", p.opts.KernelConfig.Get(p))
	if !p.opts.BuildTests.Get(p) {
		m.AddFlags("-DWITHOUT_TESTS")
	}
	// The FreeBSD build runs from the source tree and keeps objects
	// under MAKEOBJDIRPREFIX.
	m.SetEnv("MAKEOBJDIRPREFIX", p.BuildDir())
	return m
}

func (p *cheribsdProject) Process(ctx context.Context) error {
	if err := p.Update(ctx); err != nil {
		return err
	}
	if err := p.PrepareBuildDir(); err != nil {
		return err
	}

	m := p.defaultArgs()
	p.Display().Status("Building CheriBSD world for %s", p.CrossTarget())
	if err := p.RunMakeIn(ctx, p.SourceDir(), m, "buildworld"); err != nil {
		return err
	}
	p.Display().Status("Building kernel %s", p.opts.KernelConfig.Get(p))
	if err := p.RunMakeIn(ctx, p.SourceDir(), m, "buildkernel"); err != nil {
		return err
	}

	rootfs := p.RootfsDir()
	if err := p.CleanDirectory(rootfs); err != nil {
		return err
	}
	install := p.defaultArgs()
	install.Set("DESTDIR", rootfs)
	// NO_ROOT installs without privileges and records ownership and
	// modes in the METALOG manifest instead.
	install.AddFlags("-DNO_ROOT")
	p.Display().Status("Installing world into %s", rootfs)
	return p.RunMakeIn(ctx, p.SourceDir(), install,
		"installworld", "installkernel", "distribution")
}

func registerCheriBSD(tr *targets.Registry, options *config.Registry) {
	opts := newCheriBSDOptions(options, "cheribsd")
	tr.Register(&targets.Spec{
		Name:        "cheribsd",
		Description: "Build and install CheriBSD world and kernel",
		Targets: []model.CrossTarget{
			model.RISCV64,
			model.RISCV64Purecap,
			model.MorelloHybrid,
			model.MorelloPurecap,
		},
		Default: model.MorelloPurecap,
		Deps:    []string{"sdk-toolchain"},
		Factory: func(b *targets.Build, t *targets.Target) (targets.Project, error) {
			return newCheriBSD(b, t, opts), nil
		},
	})
}
