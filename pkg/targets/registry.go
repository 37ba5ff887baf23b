package targets

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/domain/model"
)

// Project is one buildable step bound to a target variant. Instances
// are created lazily by the Build and live for the whole run.
type Project interface {
	// CheckSystemDeps verifies required host tools and files before any
	// work starts.
	CheckSystemDeps(ctx context.Context) error
	// Process performs the step.
	Process(ctx context.Context) error
}

// Factory creates the project instance for one concrete target.
type Factory func(b *Build, t *Target) (Project, error)

// Spec declares a buildable target. Registering a spec creates one
// concrete target per supported cross target, named by appending the
// cross target suffix, plus an alias under the bare name that points at
// the default variant. Specs with a single supported cross target keep
// the bare name.
type Spec struct {
	Name        string
	Description string

	// Targets lists the supported cross targets. Empty means native only.
	Targets []model.CrossTarget

	// Default picks the variant the bare name builds. The zero value
	// selects the first entry of Targets.
	Default model.CrossTarget

	// Deps names targets that must be built first. A bare name maps to
	// the depending variant's cross target when the dependency supports
	// it and to the dependency's default variant otherwise.
	Deps []string

	// DepsFunc adds dependencies that vary per configuration or variant.
	DepsFunc func(cfg *config.Config, ct model.CrossTarget) []string

	// FallbackScopes names extra option scopes consulted after this
	// spec's own scope, for option sharing between related specs.
	FallbackScopes []string

	Factory Factory
}

func (s *Spec) supports(ct model.CrossTarget) bool {
	if len(s.Targets) == 0 {
		return ct == model.Native
	}
	return slices.Contains(s.Targets, ct)
}

// Target is one registered buildable name, bound to a cross target.
type Target struct {
	Name        string
	BaseName    string
	Description string
	CrossTarget model.CrossTarget

	// AliasFor is set on bare-name entries of multi-variant specs and
	// names the default variant.
	AliasFor string

	spec *Spec
}

func (t *Target) IsAlias() bool { return t.AliasFor != "" }

// Registry holds every registered target. Registration happens once at
// startup; lookups are read only afterwards.
type Registry struct {
	options *config.Registry
	targets map[string]*Target
	order   []string
}

func NewRegistry(options *config.Registry) *Registry {
	return &Registry{
		options: options,
		targets: map[string]*Target{},
	}
}

// Register adds a spec and its per-variant targets. Conflicting names
// panic since specs are registered from code at startup.
func (r *Registry) Register(spec *Spec) {
	if spec.Name == "" || spec.Factory == nil {
		panic(fmt.Sprintf("invalid target spec %+v", spec))
	}
	supported := spec.Targets
	if len(supported) == 0 {
		supported = []model.CrossTarget{model.Native}
	}
	def := spec.Default
	if def.Name == "" {
		def = supported[0]
	} else if !spec.supports(def) {
		panic(fmt.Sprintf("target %q: default variant %s is not in its supported targets",
			spec.Name, def))
	}

	if len(supported) == 1 {
		r.add(&Target{
			Name:        spec.Name,
			BaseName:    spec.Name,
			Description: spec.Description,
			CrossTarget: supported[0],
			spec:        spec,
		})
		r.options.RegisterScope(spec.Name, spec.FallbackScopes...)
		return
	}

	for _, ct := range supported {
		name := spec.Name + ct.Suffix()
		r.add(&Target{
			Name:        name,
			BaseName:    spec.Name,
			Description: spec.Description,
			CrossTarget: ct,
			spec:        spec,
		})
		r.options.RegisterScope(name, append([]string{spec.Name}, spec.FallbackScopes...)...)
	}
	r.options.RegisterScope(spec.Name, spec.FallbackScopes...)
	r.add(&Target{
		Name:        spec.Name,
		BaseName:    spec.Name,
		Description: spec.Description,
		CrossTarget: def,
		AliasFor:    spec.Name + def.Suffix(),
		spec:        spec,
	})
}

func (r *Registry) add(t *Target) {
	if _, ok := r.targets[t.Name]; ok {
		panic(fmt.Sprintf("target %q registered twice", t.Name))
	}
	r.targets[t.Name] = t
	r.order = append(r.order, t.Name)
}

// All returns every registered target in registration order, including
// aliases.
func (r *Registry) All() []*Target {
	out := make([]*Target, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.targets[name])
	}
	return out
}

// Lookup finds a target by name. Unknown names return an error carrying
// similar target names as a hint.
func (r *Registry) Lookup(name string) (*Target, error) {
	if t, ok := r.targets[name]; ok {
		return t, nil
	}
	err := goerr.New(fmt.Sprintf("no such target %q", name), goerr.V("target", name))
	if suggestions := r.suggest(name); len(suggestions) > 0 {
		err = goerr.New(
			fmt.Sprintf("no such target %q, did you mean %s?", name, strings.Join(suggestions, ", ")),
			goerr.V("target", name))
	}
	return nil, domain.ErrUnknownTarget.Wrap(err)
}

func (r *Registry) suggest(name string) []string {
	var out []string
	for _, n := range r.order {
		if strings.Contains(n, name) {
			out = append(out, n)
			continue
		}
		if len(name) >= 3 && strings.HasPrefix(n, name[:3]) {
			out = append(out, n)
		}
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// ResolveAll maps user supplied names to concrete targets, following
// aliases to their default variant.
func (r *Registry) ResolveAll(names []string) ([]*Target, error) {
	out := make([]*Target, 0, len(names))
	for _, name := range names {
		t, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		if t.IsAlias() {
			t = r.targets[t.AliasFor]
		}
		out = append(out, t)
	}
	return out, nil
}

// depTarget resolves a dependency name for a dependent building ct.
// Bare names of multi-variant specs prefer the dependent's own cross
// target and fall back to the dependency's default variant.
func (r *Registry) depTarget(name string, ct model.CrossTarget) (*Target, error) {
	t, ok := r.targets[name]
	if !ok {
		return nil, domain.ErrUnknownTarget.Wrap(
			goerr.New(fmt.Sprintf("no such target %q", name), goerr.V("target", name)))
	}
	if !t.IsAlias() {
		return t, nil
	}
	if t.spec.supports(ct) {
		return r.targets[t.BaseName+ct.Suffix()], nil
	}
	return r.targets[t.AliasFor], nil
}
