package projects_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/projects"
)

func TestFvpParams(t *testing.T) {
	var params projects.FvpParams
	params.Add("css.scp.ROMloader.fname", "/fw/scp_romfw.bin")
	board := projects.Prefixed(&params, "board")
	board("virtioblockdevice.image_path", "/out/disk.img")
	hostbridge := projects.Prefixed(&params, "board.hostbridge")
	hostbridge("userNetPorts", "10022=22")
	params.AddData("css.cluster0.cpu0", "/fw/bl1.bin", "0x14000000")

	gt.Equal(t, params.Args(), []string{
		"-C", "css.scp.ROMloader.fname=/fw/scp_romfw.bin",
		"-C", "board.virtioblockdevice.image_path=/out/disk.img",
		"-C", "board.hostbridge.userNetPorts=10022=22",
		"--data", "css.cluster0.cpu0=/fw/bl1.bin@0x14000000",
	})
}

func TestDefaultSSHPort(t *testing.T) {
	port := projects.DefaultSSHPort()
	gt.True(t, port >= 12345)
	gt.True(t, port < 22345)
}

func stageSimArtifacts(t *testing.T, f *fixture, withImage bool) (string, string, string) {
	t.Helper()
	sim := filepath.Join(f.cfg.MorelloSDKRoot(), "fvp", "FVP_Morello")
	mustWrite(t, sim, "fvp")
	fwDir := filepath.Join(f.cfg.MorelloSDKRoot(), "firmware")
	for _, img := range []string{"scp_romfw.bin", "mcp_romfw.bin", "bl1.bin", "fip.bin"} {
		mustWrite(t, filepath.Join(fwDir, img), "blob")
	}
	image := filepath.Join(f.cfg.OutputRoot, "disk-image-morello-purecap.img")
	if withImage {
		mustWrite(t, image, "disk")
	}
	return sim, fwDir, image
}

func TestRunSimProcess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(options *config.Registry) {
		options.SetCLIInt("run-sim/ssh-forwarding-port", 10022)
		gt.NoError(t, options.SetCLIList("run-sim/simulator-options", "--stat"))
	})
	sim, fwDir, image := stageSimArtifacts(t, f, true)

	p := f.instance(t, "run-sim-morello-purecap")
	gt.NoError(t, p.Process(ctx))

	gt.Equal(t, len(f.runner.cmds), 1)
	cmd := f.runner.cmds[0]
	gt.Equal(t, cmd.Path, sim)
	gt.Equal(t, cmd.Args, []string{
		"-C", "css.scp.ROMloader.fname=" + filepath.Join(fwDir, "scp_romfw.bin"),
		"-C", "css.mcp.ROMloader.fname=" + filepath.Join(fwDir, "mcp_romfw.bin"),
		"--data", "css.cluster0.cpu0=" + filepath.Join(fwDir, "bl1.bin") + "@0x14000000",
		"--data", "css.cluster0.cpu0=" + filepath.Join(fwDir, "fip.bin") + "@0x1c010000",
		"-C", "board.virtioblockdevice.image_path=" + image,
		"-C", "board.hostbridge.userNetworking=true",
		"-C", "board.hostbridge.userNetPorts=10022=22",
		"--stat",
	})
	gt.Equal(t, len(cmd.Env), 0)
}

func TestRunSimLicenseServer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(options *config.Registry) {
		options.SetCLIString("run-sim/license-server", "7010@licenses.example.com")
	})
	stageSimArtifacts(t, f, true)

	p := f.instance(t, "run-sim-morello-purecap")
	gt.NoError(t, p.Process(ctx))

	cmd := f.runner.cmds[0]
	gt.True(t, slices.Contains(cmd.Env, "ARMLMD_LICENSE_FILE=7010@licenses.example.com"))
}

func TestRunSimMissingDiskImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	stageSimArtifacts(t, f, false)

	p := f.instance(t, "run-sim-morello-purecap")
	err := p.Process(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, domain.ErrMissingFile))
	gt.True(t, strings.Contains(err.Error(), "disk image"))
}

func TestRunSimMissingSimulator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	p := f.instance(t, "run-sim-morello-purecap")
	err := p.Process(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, domain.ErrMissingFile))
	gt.True(t, strings.Contains(err.Error(), "simulator"))
}
