package projects_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/projects"
)

const testManifest = `#mtree 2.0
. type=dir uname=root gname=wheel mode=0755
./etc type=dir uname=root gname=wheel mode=0755
./etc/rc type=file uname=root gname=wheel mode=0644 size=10
`

func writeRootfs(t *testing.T, f *fixture, suffix string) (string, string) {
	t.Helper()
	rootfs := filepath.Join(f.cfg.OutputRoot, "rootfs"+suffix)
	gt.NoError(t, os.MkdirAll(rootfs, 0o755))
	manifest := filepath.Join(rootfs, "METALOG")
	gt.NoError(t, os.WriteFile(manifest, []byte(testManifest), 0o644))
	return rootfs, manifest
}

func TestImageFileMode(t *testing.T) {
	cases := []struct {
		rel  string
		mode os.FileMode
		want string
	}{
		{"root/.ssh", os.ModeDir | 0o755, "0700"},
		{"etc/ssh", os.ModeDir | 0o755, "0755"},
		{"root/.ssh/authorized_keys", 0o644, "0600"},
		{"etc/ssh/ssh_host_ed25519_key", 0o644, "0600"},
		{"etc/ssh/ssh_host_ed25519_key.pub", 0o644, "0644"},
		{"usr/local/bin/tool", 0o755, "0755"},
		{"etc/fstab", 0o644, "0644"},
	}
	for _, tc := range cases {
		gt.Equal(t, projects.ImageFileMode(tc.rel, tc.mode), tc.want)
	}
}

func TestDefaultHostname(t *testing.T) {
	name := projects.DefaultHostname("disk-image-morello-purecap")
	gt.True(t, strings.HasPrefix(name, "capbuild-morello-purecap"))
}

func TestDiskImageProcess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(options *config.Registry) {
		options.SetCLIString("disk-image/hostname", "img-test")
	})
	rootfs, _ := writeRootfs(t, f, "-riscv64")

	p := f.instance(t, "disk-image-riscv64")
	gt.NoError(t, p.Process(ctx))

	gt.Equal(t, f.runner.names(), []string{
		"ssh-keygen", "ssh-keygen", "ssh-keygen",
		"install", "install", "install",
		"makefs",
	})

	staging := filepath.Join(f.cfg.BuildRoot, "disk-image-riscv64-staging")
	metalog := filepath.Join(staging, "METALOG")

	t.Run("Manifest is copied for editing", func(t *testing.T) {
		data, err := os.ReadFile(metalog)
		gt.NoError(t, err)
		gt.Equal(t, string(data), testManifest)
	})

	t.Run("Generated etc files", func(t *testing.T) {
		fstab, err := os.ReadFile(filepath.Join(staging, "files", "etc", "fstab"))
		gt.NoError(t, err)
		gt.True(t, strings.Contains(string(fstab), "/dev/ufs/root"))
		gt.True(t, strings.Contains(string(fstab), "tmpfs /tmp"))

		rcConf, err := os.ReadFile(filepath.Join(staging, "files", "etc", "rc.conf"))
		gt.NoError(t, err)
		gt.True(t, strings.Contains(string(rcConf), `hostname="img-test"`))
		gt.True(t, strings.Contains(string(rcConf), `sshd_enable="YES"`))
	})

	t.Run("Host keys end up in extra-files", func(t *testing.T) {
		keygen := f.runner.cmds[0]
		keyPath := filepath.Join(f.cfg.SourceRoot, "extra-files", "etc", "ssh", "ssh_host_rsa_key")
		gt.Equal(t, keygen.Args,
			[]string{"-t", "rsa", "-N", "", "-f", keyPath, "-C", ""})
	})

	t.Run("Files are installed with manifest updates", func(t *testing.T) {
		installs := f.runner.filter("install")
		fstab := installs[0]
		gt.True(t, slices.Contains(fstab.Args, "-M"))
		gt.True(t, slices.Contains(fstab.Args, metalog))
		gt.True(t, slices.Contains(fstab.Args, filepath.Join(rootfs, "etc", "fstab")))
		gt.True(t, slices.Contains(fstab.Args, "0644"))
		gt.True(t, fstab.VerboseOnly)

		// etc exists in the manifest already, only etc/ssh is added.
		sshDir := installs[2]
		gt.Equal(t, sshDir.Args[0], "-d")
		gt.True(t, slices.Contains(sshDir.Args, filepath.Join(rootfs, "etc", "ssh")))
		gt.True(t, slices.Contains(sshDir.Args, "0755"))
	})

	t.Run("Makefs arguments", func(t *testing.T) {
		img := filepath.Join(f.cfg.OutputRoot, "disk-image-riscv64.img")
		makefs := f.runner.find(t, "makefs")
		gt.Equal(t, makefs.Args, []string{
			"-t", "ffs",
			"-Z",
			"-o", "version=2,label=root",
			"-b", "30%",
			"-f", "30%",
			"-M", "4g",
			"-B", "le",
			"-F", metalog,
			"-N", filepath.Join(rootfs, "etc"),
			img, rootfs,
		})
	})

	t.Run("DiskImagePath", func(t *testing.T) {
		provider, ok := p.(projects.DiskImageProvider)
		gt.True(t, ok)
		gt.Equal(t, provider.DiskImagePath(),
			filepath.Join(f.cfg.OutputRoot, "disk-image-riscv64.img"))
	})
}

func TestDiskImageQcow2(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(options *config.Registry) {
		options.SetCLIBool("disk-image/use-qcow2", true)
	})
	writeRootfs(t, f, "-morello-purecap")

	p := f.instance(t, "disk-image-morello-purecap")
	gt.NoError(t, p.Process(ctx))

	img := filepath.Join(f.cfg.OutputRoot, "disk-image-morello-purecap.img")
	qcow := filepath.Join(f.cfg.OutputRoot, "disk-image-morello-purecap.qcow2")
	convert := f.runner.find(t, "qemu-img")
	gt.Equal(t, convert.Args, []string{"convert", "-f", "raw", "-O", "qcow2", img, qcow})

	provider, ok := p.(projects.DiskImageProvider)
	gt.True(t, ok)
	gt.Equal(t, provider.DiskImagePath(), qcow)
}

func TestDiskImageDisableTmpfs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(options *config.Registry) {
		options.SetCLIBool("disk-image/disable-tmpfs", true)
	})
	writeRootfs(t, f, "-riscv64")

	p := f.instance(t, "disk-image-riscv64")
	gt.NoError(t, p.Process(ctx))

	staging := filepath.Join(f.cfg.BuildRoot, "disk-image-riscv64-staging")
	fstab, err := os.ReadFile(filepath.Join(staging, "files", "etc", "fstab"))
	gt.NoError(t, err)
	gt.False(t, strings.Contains(string(fstab), "tmpfs"))
}

func TestDiskImageExtraFilesWin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	writeRootfs(t, f, "-riscv64")

	extraFstab := filepath.Join(f.cfg.SourceRoot, "extra-files", "etc", "fstab")
	gt.NoError(t, os.MkdirAll(filepath.Dir(extraFstab), 0o755))
	gt.NoError(t, os.WriteFile(extraFstab, []byte("# custom fstab\n"), 0o644))

	p := f.instance(t, "disk-image-riscv64")
	gt.NoError(t, p.Process(ctx))

	staging := filepath.Join(f.cfg.BuildRoot, "disk-image-riscv64-staging")
	_, err := os.Stat(filepath.Join(staging, "files", "etc", "fstab"))
	gt.Error(t, err)

	var sources []string
	for _, c := range f.runner.filter("install") {
		sources = append(sources, c.Args...)
	}
	gt.True(t, slices.Contains(sources, extraFstab))
}

func TestDiskImageMissingRootfs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	p := f.instance(t, "disk-image-riscv64")
	err := p.Process(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, domain.ErrMissingFile))
	gt.True(t, strings.Contains(err.Error(), "rootfs manifest"))
}
