package projects

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

// RootfsProvider is implemented by targets that install a root
// filesystem with an mtree manifest the image build can consume.
type RootfsProvider interface {
	RootfsDir() string
	ManifestPath() string
}

var sshHostKeyTypes = []string{"rsa", "ecdsa", "ed25519"}

type diskImageOptions struct {
	Path         *config.Option[string]
	ExtraFiles   *config.Option[string]
	Hostname     *config.Option[string]
	MinSize      *config.Option[string]
	UseQcow2     *config.Option[bool]
	DisableTmpfs *config.Option[bool]
}

func newDiskImageOptions(r *config.Registry, scope string) *diskImageOptions {
	return &diskImageOptions{
		Path: config.AddPath(r, scope, "path",
			config.Computed(func(cfg *config.Config, s string) string {
				return filepath.Join(cfg.OutputRoot, s+".img")
			}, "$OUTPUT_ROOT/<target>.img"),
			"Where the disk image is written"),
		ExtraFiles: config.AddPath(r, scope, "extra-files",
			config.Computed(func(cfg *config.Config, _ string) string {
				return filepath.Join(cfg.SourceRoot, "extra-files")
			}, "$SOURCE_ROOT/extra-files"),
			"Directory tree overlaid onto the image"),
		Hostname: config.AddString(r, scope, "hostname",
			config.Computed(func(_ *config.Config, s string) string {
				return defaultHostname(s)
			}, "capbuild-<target>-<user>"),
			"Hostname configured inside the image"),
		MinSize: config.AddString(r, scope, "minimum-size",
			config.Literal("4g"),
			"Minimum size of the image"),
		UseQcow2: config.AddBool(r, scope, "use-qcow2",
			config.Literal(false),
			"Also convert the image to qcow2 for QEMU"),
		DisableTmpfs: config.AddBool(r, scope, "disable-tmpfs",
			config.Literal(false),
			"Do not mount a tmpfs on /tmp"),
	}
}

func defaultHostname(scope string) string {
	name := "capbuild"
	if ct, ok := model.CrossTargetFromSuffix(scope); ok {
		name += ct.Suffix()
	}
	if u := currentUser(); u != "" {
		name += "-" + u
	}
	return name
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// imageFileMode picks the mtree mode for a file added to the image.
// Everything under a .ssh directory and the SSH host keys must not be
// world readable or sshd refuses to use them.
func imageFileMode(rel string, mode fs.FileMode) string {
	if mode.IsDir() {
		if strings.HasSuffix(rel, ".ssh") {
			return "0700"
		}
		return "0755"
	}
	base := filepath.Base(rel)
	if strings.Contains(rel, ".ssh/") {
		return "0600"
	}
	if strings.HasPrefix(base, "ssh_host_") && strings.HasSuffix(base, "_key") {
		return "0600"
	}
	if mode.Perm()&0o111 != 0 {
		return "0755"
	}
	return "0644"
}

// diskImageProject builds a bootable UFS image from the CheriBSD rootfs
// manifest, overlaying generated /etc files, SSH host keys and the
// user's extra files.
type diskImageProject struct {
	BaseProject
	opts *diskImageOptions

	haveDirs map[string]bool
}

func newDiskImage(b *targets.Build, t *targets.Target, opts *diskImageOptions) *diskImageProject {
	p := &diskImageProject{BaseProject: NewBaseProject(b, t), opts: opts}
	p.RequireSystemTool("makefs", ToolHint{Apt: "freebsd-buildutils"})
	p.RequireSystemTool("ssh-keygen", ToolHint{Apt: "openssh-client", Homebrew: "openssh"})
	if opts.UseQcow2.Get(p) {
		p.RequireSystemTool("qemu-img", ToolHint{Apt: "qemu-utils", Homebrew: "qemu"})
	}
	return p
}

// DiskImagePath is where consumers such as run-sim find the bootable
// image.
func (p *diskImageProject) DiskImagePath() string {
	img := p.opts.Path.Get(p)
	if p.opts.UseQcow2.Get(p) {
		return strings.TrimSuffix(img, filepath.Ext(img)) + ".qcow2"
	}
	return img
}

func (p *diskImageProject) Process(ctx context.Context) error {
	dep, err := p.build.InstanceFor("cheribsd", p.CrossTarget())
	if err != nil {
		return err
	}
	rootfs, ok := dep.(RootfsProvider)
	if !ok {
		return p.Fail("cheribsd does not provide a root filesystem", "")
	}
	rootfsDir := rootfs.RootfsDir()
	manifest := rootfs.ManifestPath()
	depName := "cheribsd" + p.CrossTarget().Suffix()
	hint := "run `capbuild " + depName + "` first"
	if err := p.EnsureFileExists("rootfs manifest", manifest, hint); err != nil {
		return err
	}
	p.haveDirs, err = p.manifestDirs(manifest)
	if err != nil {
		return err
	}

	staging := filepath.Join(p.Config().BuildRoot, p.ConfigScope()+"-staging")
	if err := p.CleanDirectory(staging); err != nil {
		return err
	}
	// Work on a copy of the manifest: every added file appends an mtree
	// entry and the original must stay pristine for rebuilds.
	metalog := filepath.Join(staging, "METALOG")
	if err := p.InstallFile(manifest, metalog); err != nil {
		return err
	}

	stageDir := filepath.Join(staging, "files")
	extraDir := p.opts.ExtraFiles.Get(p)
	if err := p.writeEtcDefaults(stageDir, extraDir); err != nil {
		return err
	}
	if err := p.generateSSHHostKeys(ctx, filepath.Join(extraDir, "etc", "ssh")); err != nil {
		return err
	}
	for _, dir := range []string{stageDir, extraDir} {
		if err := p.addTree(ctx, metalog, rootfsDir, dir); err != nil {
			return err
		}
	}

	img := p.opts.Path.Get(p)
	if err := p.MakeDirs(filepath.Dir(img)); err != nil {
		return err
	}
	p.Display().Status("Building disk image %s", img)
	args := []string{
		"-t", "ffs",
		"-Z",
		"-o", "version=2,label=root",
		"-b", "30%",
		"-f", "30%",
		"-M", p.opts.MinSize.Get(p),
		"-B", "le",
		"-F", metalog,
		"-N", filepath.Join(rootfsDir, "etc"),
		img, rootfsDir,
	}
	if _, err := p.Run(ctx, model.Command{Path: "makefs", Args: args}); err != nil {
		return err
	}

	if p.opts.UseQcow2.Get(p) {
		qcow := p.DiskImagePath()
		if err := p.RunTool(ctx, "qemu-img",
			"convert", "-f", "raw", "-O", "qcow2", img, qcow); err != nil {
			return err
		}
		p.Display().Status("QEMU image at %s", qcow)
	}
	if info, err := os.Stat(img); err == nil {
		p.Display().Status("Disk image ready: %s (%s)", img, humanSize(info.Size()))
	}
	return nil
}

func (p *diskImageProject) manifestDirs(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if p.pretend() {
			return map[string]bool{}, nil
		}
		return nil, goerr.Wrap(err, "cannot read mtree manifest", goerr.V("path", path))
	}
	defer f.Close()
	dirs, err := model.ParseMtreeDirs(f)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		set[d] = true
	}
	return set, nil
}

// writeEtcDefaults generates the configuration files a bootable image
// needs. A file present in the extra-files tree wins over the generated
// one.
func (p *diskImageProject) writeEtcDefaults(stageDir, extraDir string) error {
	fstab := "/dev/ufs/root / ufs rw 1 1\n"
	if !p.opts.DisableTmpfs.Get(p) {
		fstab += "tmpfs /tmp tmpfs rw,failok 0 0\n"
	}
	rcConf := fmt.Sprintf("hostname=%q\n", p.opts.Hostname.Get(p)) +
		"ifconfig_DEFAULT=\"DHCP\"\n" +
		"sshd_enable=\"YES\"\n" +
		"sendmail_enable=\"NONE\"\n"
	defaults := []struct {
		rel      string
		contents string
	}{
		{"etc/fstab", fstab},
		{"etc/rc.conf", rcConf},
	}
	for _, f := range defaults {
		if _, err := os.Stat(filepath.Join(extraDir, f.rel)); err == nil {
			p.Display().Detail("Using %s from extra-files", f.rel)
			continue
		}
		if err := p.WriteFile(filepath.Join(stageDir, f.rel), f.contents, true); err != nil {
			return err
		}
	}
	return nil
}

// generateSSHHostKeys creates missing host keys in the extra-files tree
// so the image keeps its host identity across rebuilds.
func (p *diskImageProject) generateSSHHostKeys(ctx context.Context, dir string) error {
	if err := p.MakeDirs(dir); err != nil {
		return err
	}
	for _, typ := range sshHostKeyTypes {
		key := filepath.Join(dir, "ssh_host_"+typ+"_key")
		if _, err := os.Stat(key); err == nil {
			continue
		}
		if err := p.RunTool(ctx, "ssh-keygen",
			"-t", typ, "-N", "", "-f", key, "-C", ""); err != nil {
			return err
		}
	}
	return nil
}

// addTree installs every file under baseDir into the rootfs while
// recording ownership and modes in the manifest copy. A missing
// baseDir is fine, extra files are optional.
func (p *diskImageProject) addTree(ctx context.Context, metalog, rootfsDir, baseDir string) error {
	if _, err := os.Stat(baseDir); err != nil {
		return nil
	}
	return filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil || rel == "." {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p.haveDirs[rel] {
				return nil
			}
			if err := p.installIntoImage(ctx, metalog, rootfsDir, "", rel, imageFileMode(rel, info.Mode())); err != nil {
				return err
			}
			p.haveDirs[rel] = true
			return nil
		}
		return p.installIntoImage(ctx, metalog, rootfsDir, path, rel, imageFileMode(rel, info.Mode()))
	})
}

// installIntoImage runs BSD install so the copy also appends a manifest
// entry. An empty src adds a directory.
func (p *diskImageProject) installIntoImage(ctx context.Context, metalog, rootfsDir, src, rel, mode string) error {
	args := []string{
		"-N", filepath.Join(rootfsDir, "etc"),
		"-U", "-M", metalog,
		"-D", rootfsDir,
		"-o", "root", "-g", "wheel",
		"-m", mode,
	}
	if src == "" {
		args = append([]string{"-d"}, args...)
		args = append(args, filepath.Join(rootfsDir, rel))
	} else {
		args = append(args, src, filepath.Join(rootfsDir, rel))
	}
	_, err := p.Run(ctx, model.Command{Path: "install", Args: args, VerboseOnly: true})
	return err
}

func registerDiskImage(tr *targets.Registry, options *config.Registry) {
	opts := newDiskImageOptions(options, "disk-image")
	tr.Register(&targets.Spec{
		Name:        "disk-image",
		Description: "Build a bootable disk image from the CheriBSD rootfs",
		Targets: []model.CrossTarget{
			model.RISCV64,
			model.RISCV64Purecap,
			model.MorelloHybrid,
			model.MorelloPurecap,
		},
		Default: model.MorelloPurecap,
		Deps:    []string{"cheribsd"},
		Factory: func(b *targets.Build, t *targets.Target) (targets.Project, error) {
			return newDiskImage(b, t, opts), nil
		},
	})
}
