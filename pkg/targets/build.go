package targets

import (
	"fmt"
	"slices"
	"strings"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/interfaces"
	"github.com/capbuild/capbuild/pkg/domain/model"
)

// Collaborators bundles the services project instances use to touch the
// outside world.
type Collaborators struct {
	Runner    interfaces.ProcessRunner
	Display   interfaces.Display
	Releases  interfaces.ReleaseFetcher
	Extractor interfaces.ArchiveExtractor
}

// Build owns the per-run state shared by all project instances: the
// global config, the option registry, and the instance cache. Projects
// for the same concrete target are singletons within one Build. A Build
// is confined to the goroutine running the build loop.
type Build struct {
	Config  *config.Config
	Options *config.Registry
	Targets *Registry

	Runner    interfaces.ProcessRunner
	Display   interfaces.Display
	Releases  interfaces.ReleaseFetcher
	Extractor interfaces.ArchiveExtractor

	instances map[string]Project
	creating  []string
}

func NewBuild(cfg *config.Config, options *config.Registry, targets *Registry, collab Collaborators) *Build {
	return &Build{
		Config:    cfg,
		Options:   options,
		Targets:   targets,
		Runner:    collab.Runner,
		Display:   collab.Display,
		Releases:  collab.Releases,
		Extractor: collab.Extractor,
		instances: map[string]Project{},
	}
}

// Instance returns the singleton project for a target name, creating it
// on first use. Aliases resolve to their default variant.
func (b *Build) Instance(name string) (Project, *Target, error) {
	t, err := b.Targets.Lookup(name)
	if err != nil {
		return nil, nil, err
	}
	if t.IsAlias() {
		t = b.Targets.targets[t.AliasFor]
	}
	p, err := b.instance(t)
	return p, t, err
}

// InstanceFor returns the singleton project of another target for an
// explicit cross target, typically a dependency's artifacts viewed from
// the dependent, e.g. the disk image a simulator boots.
func (b *Build) InstanceFor(name string, ct model.CrossTarget) (Project, error) {
	t, err := b.Targets.depTarget(name, ct)
	if err != nil {
		return nil, err
	}
	return b.instance(t)
}

func (b *Build) instance(t *Target) (Project, error) {
	if p, ok := b.instances[t.Name]; ok {
		return p, nil
	}
	if slices.Contains(b.creating, t.Name) {
		chain := strings.Join(append(slices.Clone(b.creating), t.Name), " -> ")
		panic(fmt.Sprintf("recursive project construction: %s", chain))
	}
	b.creating = append(b.creating, t.Name)
	p, err := t.spec.Factory(b, t)
	b.creating = b.creating[:len(b.creating)-1]
	if err != nil {
		return nil, err
	}
	b.instances[t.Name] = p
	return p, nil
}
