package projects

import (
	"context"
	"path/filepath"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

type baremetalOptions struct {
	Source     *SourceOptions
	Make       *MakeOptions
	Autotools  *AutotoolsOptions
	InstallDir *config.Option[string]
}

func newBaremetalOptions(r *config.Registry, scope string) *baremetalOptions {
	return &baremetalOptions{
		Source:    NewSourceOptions(r, scope, "https://github.com/CTSRD-CHERI/newlib"),
		Make:      NewMakeOptions(r, scope),
		Autotools: NewAutotoolsOptions(r, scope),
		InstallDir: config.AddPath(r, scope, "install-directory",
			config.Computed(func(cfg *config.Config, s string) string {
				ct, ok := model.CrossTargetFromSuffix(s)
				if !ok {
					ct = model.BaremetalRISCV64Purecap
				}
				return cfg.SysrootDir(ct)
			}, "$OUTPUT_ROOT/sdk/sysroot-<target>"),
			"Sysroot the libc is installed into"),
	}
}

func baremetalTargetFlags(ct model.CrossTarget) string {
	if ct.IsPurecap() {
		return "-march=rv64imafdcxcheri -mabi=l64pc128d"
	}
	return "-march=rv64imafdc -mabi=lp64d"
}

// baremetalProject cross compiles the C library for bare-metal RISC-V
// with the SDK toolchain and installs it into the matching sysroot.
type baremetalProject struct {
	AutotoolsProject
	opts *baremetalOptions
}

func newBaremetalLibc(b *targets.Build, t *targets.Target, opts *baremetalOptions) *baremetalProject {
	p := &baremetalProject{
		AutotoolsProject: NewAutotoolsProject(b, t, opts.Source, opts.Make, opts.Autotools),
		opts:             opts,
	}
	ct := t.CrossTarget
	bin := p.Config().SDKBinDir()
	p.AddConfigureArgs(
		"--target="+ct.Triple(),
		"--prefix="+opts.InstallDir.Get(p),
		"--disable-multilib",
	)
	p.AddConfigureEnv("CC_FOR_TARGET", filepath.Join(bin, "clang"))
	p.AddConfigureEnv("AR_FOR_TARGET", filepath.Join(bin, "llvm-ar"))
	p.AddConfigureEnv("RANLIB_FOR_TARGET", filepath.Join(bin, "llvm-ranlib"))
	p.AddConfigureEnv("CFLAGS_FOR_TARGET", baremetalTargetFlags(ct))
	return p
}

func (p *baremetalProject) Process(ctx context.Context) error {
	if err := p.Update(ctx); err != nil {
		return err
	}
	if err := p.PrepareBuildDir(); err != nil {
		return err
	}
	if p.NeedsConfigure() {
		p.Display().Status("Configuring %s for %s", p.Target().BaseName, p.CrossTarget())
		if err := p.Configure(ctx); err != nil {
			return err
		}
	}

	// The configure environment carries the cross compiler selection, so
	// make gets the same variables.
	m := p.DefaultMakeArgs()
	m.AddEnv(p.ConfigureEnv()...)
	p.Display().Status("Building %s", p.Target().Name)
	if err := p.RunMake(ctx, m, "all"); err != nil {
		return err
	}
	p.Display().Status("Installing into %s", p.opts.InstallDir.Get(p))
	return p.RunMake(ctx, m, "install")
}

func registerBaremetalLibc(tr *targets.Registry, options *config.Registry) {
	opts := newBaremetalOptions(options, "baremetal-libc")
	tr.Register(&targets.Spec{
		Name:        "baremetal-libc",
		Description: "Cross compile the bare-metal C library into the SDK sysroot",
		Targets: []model.CrossTarget{
			model.BaremetalRISCV64,
			model.BaremetalRISCV64Purecap,
		},
		Default: model.BaremetalRISCV64Purecap,
		Deps:    []string{"sdk-toolchain"},
		Factory: func(b *targets.Build, t *targets.Target) (targets.Project, error) {
			return newBaremetalLibc(b, t, opts), nil
		},
	})
}
