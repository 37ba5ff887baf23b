package projects

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/domain/interfaces"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

// BaseProject carries the state shared by every build step: the owning
// build, the bound target variant, and pretend aware helpers for file
// operations and system tool checks. Concrete projects embed it.
type BaseProject struct {
	build  *targets.Build
	target *targets.Target
	tools  []toolRequirement
}

func NewBaseProject(b *targets.Build, t *targets.Target) BaseProject {
	return BaseProject{build: b, target: t}
}

func (p *BaseProject) Config() *config.Config         { return p.build.Config }
func (p *BaseProject) Target() *targets.Target        { return p.target }
func (p *BaseProject) CrossTarget() model.CrossTarget { return p.target.CrossTarget }
func (p *BaseProject) Display() interfaces.Display    { return p.build.Display }

// ConfigScope makes the project usable as an option lookup scope, so
// option reads resolve under the concrete target name.
func (p *BaseProject) ConfigScope() string { return p.target.Name }

func (p *BaseProject) pretend() bool { return p.build.Config.Pretend }

// OptionFlag spells the command line flag for one of this project's
// options, for fix-it hints in error messages.
func (p *BaseProject) OptionFlag(name string) string {
	return "--" + p.target.BaseName + "/" + name
}

// Fail builds a step failure. A non-empty hint names the flag or action
// that fixes the problem and is shown alongside the error.
func (p *BaseProject) Fail(msg, hint string) error {
	if hint != "" {
		return goerr.New(msg, goerr.V("target", p.target.Name), goerr.V("hint", hint))
	}
	return goerr.New(msg, goerr.V("target", p.target.Name))
}

func (p *BaseProject) Warn(msg, hint string) {
	p.build.Display.Warn(msg, hint)
}

// ToolHint tells the user how to install a missing host tool.
type ToolHint struct {
	Apt      string
	Homebrew string

	// ProvidedBy names a target that builds the tool.
	ProvidedBy string
}

func (h ToolHint) instructions(tool string) string {
	var parts []string
	if h.ProvidedBy != "" {
		parts = append(parts, fmt.Sprintf("run `capbuild %s` to build it", h.ProvidedBy))
	}
	if h.Apt != "" {
		parts = append(parts, fmt.Sprintf("`apt install %s`", h.Apt))
	}
	if h.Homebrew != "" {
		parts = append(parts, fmt.Sprintf("`brew install %s` on macOS", h.Homebrew))
	}
	if len(parts) == 0 {
		return "install " + tool + " and re-run"
	}
	return "try " + strings.Join(parts, " or ")
}

type toolRequirement struct {
	name string
	hint ToolHint
}

// RequireSystemTool registers a host tool the project needs. The check
// runs before any target is built so missing tools surface early.
func (p *BaseProject) RequireSystemTool(name string, hint ToolHint) {
	p.tools = append(p.tools, toolRequirement{name: name, hint: hint})
}

// CheckSystemDeps verifies every required host tool is installed. In
// pretend mode missing tools only warn so the dry run can continue.
func (p *BaseProject) CheckSystemDeps(ctx context.Context) error {
	for _, req := range p.tools {
		if _, err := p.build.Runner.LookPath(req.name); err == nil {
			continue
		}
		hint := req.hint.instructions(req.name)
		if p.pretend() {
			p.Warn(fmt.Sprintf("%s is required by %s but not installed", req.name, p.target.Name), hint)
			continue
		}
		return domain.ErrMissingTool.Wrap(goerr.New(
			fmt.Sprintf("%s is required by %s but not installed", req.name, p.target.Name),
			goerr.V("tool", req.name),
			goerr.V("target", p.target.Name),
			goerr.V("hint", hint)))
	}
	return nil
}

// Run executes a command through the build's process runner, which
// handles echoing and pretend mode.
func (p *BaseProject) Run(ctx context.Context, cmd model.Command) (*model.CommandResult, error) {
	return p.build.Runner.Run(ctx, cmd)
}

// RunTool runs a command with default settings and only reports whether
// it succeeded.
func (p *BaseProject) RunTool(ctx context.Context, path string, args ...string) error {
	_, err := p.build.Runner.Run(ctx, model.Command{Path: path, Args: args})
	return err
}

// EnsureFileExists checks a required input file. Missing files fail the
// step, except in pretend mode where they only warn so the dry run can
// show the remaining commands.
func (p *BaseProject) EnsureFileExists(what, path, hint string) error {
	if path == "" {
		return domain.ErrMissingFile.Wrap(p.Fail(what+" path is not set", hint))
	}
	if _, err := os.Stat(path); err != nil {
		if p.pretend() {
			p.Warn(fmt.Sprintf("%s is missing: %s", what, path), hint)
			return nil
		}
		return domain.ErrMissingFile.Wrap(goerr.Wrap(err,
			fmt.Sprintf("%s not found at %s", what, path),
			goerr.V("target", p.target.Name),
			goerr.V("hint", hint)))
	}
	return nil
}

// QueryYesNo asks the user for confirmation. Force answers yes without
// prompting and pretend or quiet runs take the default.
func (p *BaseProject) QueryYesNo(question string, def bool) bool {
	cfg := p.build.Config
	if cfg.Force {
		return true
	}
	if cfg.Pretend || cfg.Quiet {
		return def
	}
	return p.build.Display.Confirm(question, def)
}

// MakeDirs creates a directory tree, honoring pretend mode.
func (p *BaseProject) MakeDirs(path string) error {
	if p.pretend() {
		p.build.Display.Command([]string{"mkdir", "-p", path})
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return goerr.Wrap(err, "cannot create directory", goerr.V("path", path))
	}
	return nil
}

// CleanDirectory removes a directory's contents and recreates it empty.
func (p *BaseProject) CleanDirectory(path string) error {
	if p.pretend() {
		p.build.Display.Command([]string{"rm", "-rf", path})
		p.build.Display.Command([]string{"mkdir", "-p", path})
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return goerr.Wrap(err, "cannot clean directory", goerr.V("path", path))
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return goerr.Wrap(err, "cannot create directory", goerr.V("path", path))
	}
	return nil
}

// WriteFile writes contents to a file, creating parent directories. An
// existing file is only replaced when overwrite is set.
func (p *BaseProject) WriteFile(path, contents string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			p.build.Display.Detail("Not overwriting %s", path)
			return nil
		}
	}
	if p.pretend() {
		p.build.Display.Command([]string{"tee", path})
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "cannot create directory", goerr.V("path", filepath.Dir(path)))
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return goerr.Wrap(err, "cannot write file", goerr.V("path", path))
	}
	return nil
}

// InstallFile copies a file into place keeping the source's mode.
func (p *BaseProject) InstallFile(src, dst string) error {
	if p.pretend() {
		p.build.Display.Command([]string{"cp", src, dst})
		return nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return goerr.Wrap(err, "cannot read file", goerr.V("path", src))
	}
	in, err := os.Open(src)
	if err != nil {
		return goerr.Wrap(err, "cannot read file", goerr.V("path", src))
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return goerr.Wrap(err, "cannot create directory", goerr.V("path", filepath.Dir(dst)))
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return goerr.Wrap(err, "cannot write file", goerr.V("path", dst))
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return goerr.Wrap(err, "cannot write file", goerr.V("path", dst))
	}
	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "cannot write file", goerr.V("path", dst))
	}
	return nil
}
