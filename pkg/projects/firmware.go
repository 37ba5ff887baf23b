package projects

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/targets"
)

// firmwareImages names the blobs the simulator loads at reset. The
// project does not model their contents, it validates and stages
// whatever the options point at.
var firmwareImages = []string{"scp_romfw.bin", "mcp_romfw.bin", "bl1.bin", "fip.bin"}

type firmwareOptions struct {
	Images     map[string]*config.Option[string]
	InstallDir *config.Option[string]
}

func newFirmwareOptions(r *config.Registry, scope string) *firmwareOptions {
	opts := &firmwareOptions{
		Images: map[string]*config.Option[string]{},
		InstallDir: config.AddPath(r, scope, "install-directory",
			config.Computed(func(cfg *config.Config, _ string) string {
				return firmwareDir(cfg)
			}, "$OUTPUT_ROOT/morello-sdk/firmware"),
			"Where the simulator firmware is staged"),
	}
	for _, img := range firmwareImages {
		opts.Images[img] = config.AddPath(r, scope, optionNameForImage(img),
			config.Computed(func(cfg *config.Config, _ string) string {
				return filepath.Join(cfg.SourceRoot, "morello-firmware", img)
			}, "$SOURCE_ROOT/morello-firmware/"+img),
			"Path to the "+img+" firmware image")
	}
	return opts
}

// firmwareDir is where run-sim expects the staged firmware, shared here
// so both targets compute the same location.
func firmwareDir(cfg *config.Config) string {
	return filepath.Join(cfg.MorelloSDKRoot(), "firmware")
}

// optionNameForImage turns "scp_romfw.bin" into "scp-romfw-image".
func optionNameForImage(img string) string {
	base := strings.TrimSuffix(img, filepath.Ext(img))
	return strings.ReplaceAll(base, "_", "-") + "-image"
}

// firmwareProject stages the Morello FVP firmware images into the SDK
// so the simulator target can find them.
type firmwareProject struct {
	BaseProject
	opts *firmwareOptions
}

func newFirmware(b *targets.Build, t *targets.Target, opts *firmwareOptions) *firmwareProject {
	return &firmwareProject{BaseProject: NewBaseProject(b, t), opts: opts}
}

func (p *firmwareProject) Process(ctx context.Context) error {
	dest := p.opts.InstallDir.Get(p)
	if err := p.MakeDirs(dest); err != nil {
		return err
	}
	for _, img := range firmwareImages {
		src := p.opts.Images[img].Get(p)
		hint := "set " + p.OptionFlag(optionNameForImage(img)) + " to the downloaded firmware image"
		if err := p.EnsureFileExists(img, src, hint); err != nil {
			return err
		}
		if err := p.InstallFile(src, filepath.Join(dest, img)); err != nil {
			return err
		}
	}
	p.Display().Status("Firmware staged in %s", dest)
	return nil
}

func registerFirmware(tr *targets.Registry, options *config.Registry) {
	opts := newFirmwareOptions(options, "firmware")
	tr.Register(&targets.Spec{
		Name:        "firmware",
		Description: "Stage the Morello simulator firmware images",
		Factory: func(b *targets.Build, t *targets.Target) (targets.Project, error) {
			return newFirmware(b, t, opts), nil
		},
	})
}
