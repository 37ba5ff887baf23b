package projects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

// DiskImageProvider is implemented by targets that produce a bootable
// disk image the simulator can attach.
type DiskImageProvider interface {
	DiskImagePath() string
}

// fvpParams collects the simulator's -C model parameters and --data
// memory loads in command line order.
type fvpParams struct {
	args []string
}

func (f *fvpParams) Add(key, value string) {
	f.args = append(f.args, "-C", key+"="+value)
}

// prefixed returns an Add for parameters below one model component,
// e.g. everything under "board.hostbridge".
func (f *fvpParams) prefixed(prefix string) func(key, value string) {
	return func(key, value string) { f.Add(prefix+"."+key, value) }
}

// AddData loads a file into a component's memory at the given address.
func (f *fvpParams) AddData(component, file, addr string) {
	f.args = append(f.args, "--data", component+"="+file+"@"+addr)
}

func defaultSSHPort() int {
	return 12345 + os.Getuid()%10000
}

type runSimOptions struct {
	SimPath       *config.Option[string]
	FirmwareDir   *config.Option[string]
	SSHPort       *config.Option[int]
	ExtraArgs     *config.Option[[]string]
	LicenseServer *config.Option[string]
}

func newRunSimOptions(r *config.Registry, scope string) *runSimOptions {
	return &runSimOptions{
		SimPath: config.AddPath(r, scope, "simulator-path",
			config.Computed(func(cfg *config.Config, _ string) string {
				return filepath.Join(cfg.MorelloSDKRoot(), "fvp", "FVP_Morello")
			}, "$OUTPUT_ROOT/morello-sdk/fvp/FVP_Morello"),
			"Path to the FVP_Morello binary"),
		FirmwareDir: config.AddPath(r, scope, "firmware-path",
			config.Computed(func(cfg *config.Config, _ string) string {
				return firmwareDir(cfg)
			}, "$OUTPUT_ROOT/morello-sdk/firmware"),
			"Directory holding the staged firmware images"),
		SSHPort: config.AddInt(r, scope, "ssh-forwarding-port",
			config.Computed(func(*config.Config, string) int {
				return defaultSSHPort()
			}, "12345 + (uid % 10000)"),
			"Host port forwarded to the guest's SSH port"),
		ExtraArgs: config.AddList(r, scope, "simulator-options",
			config.Literal[[]string](nil),
			"Additional arguments passed to the simulator"),
		LicenseServer: config.AddString(r, scope, "license-server",
			config.Literal(""),
			"ARMLMD license server for the simulator"),
	}
}

// runSimProject boots a built disk image on the Morello FVP with the
// staged firmware, forwarding a host port to the guest's SSH daemon.
type runSimProject struct {
	BaseProject
	opts *runSimOptions
}

func newRunSim(b *targets.Build, t *targets.Target, opts *runSimOptions) *runSimProject {
	return &runSimProject{BaseProject: NewBaseProject(b, t), opts: opts}
}

func (p *runSimProject) Process(ctx context.Context) error {
	sim := p.opts.SimPath.Get(p)
	if err := p.EnsureFileExists("simulator", sim,
		"set "+p.OptionFlag("simulator-path")+" to the FVP_Morello binary"); err != nil {
		return err
	}
	fwDir := p.opts.FirmwareDir.Get(p)
	for _, img := range firmwareImages {
		if err := p.EnsureFileExists(img, filepath.Join(fwDir, img),
			"run `capbuild firmware` first"); err != nil {
			return err
		}
	}

	dep, err := p.build.InstanceFor("disk-image", p.CrossTarget())
	if err != nil {
		return err
	}
	provider, ok := dep.(DiskImageProvider)
	if !ok {
		return p.Fail("disk-image does not provide a disk image", "")
	}
	image := provider.DiskImagePath()
	depName := "disk-image" + p.CrossTarget().Suffix()
	if err := p.EnsureFileExists("disk image", image,
		"run `capbuild "+depName+"` first"); err != nil {
		return err
	}

	port := p.opts.SSHPort.Get(p)
	var params fvpParams
	board := params.prefixed("board")
	hostbridge := params.prefixed("board.hostbridge")
	params.Add("css.scp.ROMloader.fname", filepath.Join(fwDir, "scp_romfw.bin"))
	params.Add("css.mcp.ROMloader.fname", filepath.Join(fwDir, "mcp_romfw.bin"))
	params.AddData("css.cluster0.cpu0", filepath.Join(fwDir, "bl1.bin"), "0x14000000")
	params.AddData("css.cluster0.cpu0", filepath.Join(fwDir, "fip.bin"), "0x1c010000")
	board("virtioblockdevice.image_path", image)
	hostbridge("userNetworking", "true")
	hostbridge("userNetPorts", fmt.Sprintf("%d=22", port))

	cmd := model.Command{
		Path: sim,
		Args: append(params.args, p.opts.ExtraArgs.Get(p)...),
	}
	if ls := p.opts.LicenseServer.Get(p); ls != "" {
		cmd.Env = append(cmd.Env, "ARMLMD_LICENSE_FILE="+ls)
	}

	p.Display().Status("Booting %s on the FVP", image)
	p.Display().Status("Connect with: ssh -p %d root@localhost", port)
	_, err = p.Run(ctx, cmd)
	return err
}

func registerRunSim(tr *targets.Registry, options *config.Registry) {
	opts := newRunSimOptions(options, "run-sim")
	tr.Register(&targets.Spec{
		Name:        "run-sim",
		Description: "Boot a disk image on the Morello FVP simulator",
		Targets: []model.CrossTarget{
			model.MorelloHybrid,
			model.MorelloPurecap,
		},
		Default: model.MorelloPurecap,
		Deps:    []string{"disk-image", "firmware"},
		Factory: func(b *targets.Build, t *targets.Target) (targets.Project, error) {
			return newRunSim(b, t, opts), nil
		},
	})
}
