package projects

import (
	"context"
	"slices"
	"strconv"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

// MakeArgs composes a make command line while keeping argument order
// stable. Setting a variable twice keeps its position and takes the
// last value, so later steps can override earlier defaults without
// reshuffling the command line.
type MakeArgs struct {
	command string
	jobs    int
	flags   []string
	vars    []makeVar
	env     []string
}

type makeVar struct {
	key, value string
}

func NewMakeArgs(command string) *MakeArgs {
	return &MakeArgs{command: command}
}

func (m *MakeArgs) Command() string { return m.command }

// SetJobs sets the parallelism passed as -jN. Zero omits the flag.
func (m *MakeArgs) SetJobs(n int) { m.jobs = n }

// Set assigns a make variable as KEY=VALUE on the command line.
func (m *MakeArgs) Set(key, value string) {
	for i, v := range m.vars {
		if v.key == key {
			m.vars[i].value = value
			return
		}
	}
	m.vars = append(m.vars, makeVar{key: key, value: value})
}

// SetBool assigns a yes/no make variable.
func (m *MakeArgs) SetBool(key string, v bool) {
	if v {
		m.Set(key, "yes")
		return
	}
	m.Set(key, "no")
}

// AddFlags appends raw flags such as -DNO_ROOT.
func (m *MakeArgs) AddFlags(flags ...string) {
	m.flags = append(m.flags, flags...)
}

// SetEnv adds an environment variable for the make invocation.
func (m *MakeArgs) SetEnv(key, value string) {
	m.env = append(m.env, key+"="+value)
}

// AddEnv appends preformatted KEY=VALUE pairs.
func (m *MakeArgs) AddEnv(pairs ...string) {
	m.env = append(m.env, pairs...)
}

func (m *MakeArgs) Env() []string { return slices.Clone(m.env) }

// List renders the full argument vector, ending with the given goals.
func (m *MakeArgs) List(goals ...string) []string {
	var out []string
	if m.jobs > 0 {
		out = append(out, "-j"+strconv.Itoa(m.jobs))
	}
	out = append(out, m.flags...)
	for _, v := range m.vars {
		out = append(out, v.key+"="+v.value)
	}
	return append(out, goals...)
}

// MakeOptions are the settings shared by every make based project.
type MakeOptions struct {
	ExtraArgs *config.Option[[]string]
}

func NewMakeOptions(r *config.Registry, scope string) *MakeOptions {
	return &MakeOptions{
		ExtraArgs: config.AddList(r, scope, "make-options",
			config.Literal[[]string](nil),
			"Additional arguments passed to every make invocation"),
	}
}

// MakeProject is a source project built by invoking make.
type MakeProject struct {
	SourceProject
	Make *MakeOptions

	// MakeCommand is the make flavor the build tree expects, e.g. bmake
	// for BSD build systems on non-BSD hosts.
	MakeCommand string
}

func NewMakeProject(b *targets.Build, t *targets.Target, src *SourceOptions, mk *MakeOptions, makeCommand string, makeHint ToolHint) MakeProject {
	p := MakeProject{
		SourceProject: NewSourceProject(b, t, src),
		Make:          mk,
		MakeCommand:   makeCommand,
	}
	p.RequireSystemTool(makeCommand, makeHint)
	return p
}

// DefaultMakeArgs seeds an argument set with the shared settings:
// parallelism and the user's extra make options.
func (p *MakeProject) DefaultMakeArgs() *MakeArgs {
	m := NewMakeArgs(p.MakeCommand)
	m.SetJobs(p.Config().MakeJobs)
	m.AddFlags(p.Make.ExtraArgs.Get(p)...)
	return m
}

// RunMake runs make in the build directory with the given goals.
func (p *MakeProject) RunMake(ctx context.Context, args *MakeArgs, goals ...string) error {
	return p.RunMakeIn(ctx, p.BuildDir(), args, goals...)
}

// RunMakeIn runs make in an explicit directory, for build systems that
// run from the source tree with an object directory prefix.
func (p *MakeProject) RunMakeIn(ctx context.Context, dir string, args *MakeArgs, goals ...string) error {
	_, err := p.Run(ctx, model.Command{
		Path: args.Command(),
		Args: args.List(goals...),
		Dir:  dir,
		Env:  args.Env(),
	})
	return err
}
