package targets

import (
	"fmt"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
)

// Plan computes the build order for the requested target names. The
// dependency closure is walked depth first and sorted so that every
// dependency precedes its dependents. Unless IncludeDependencies is
// set, the result is filtered down to the requested targets, keeping
// their relative dependency order.
func (r *Registry) Plan(names []string, cfg *config.Config) ([]*Target, error) {
	roots, err := r.ResolveAll(names)
	if err != nil {
		return nil, err
	}

	var order []*Target
	visited := map[*Target]bool{}
	checking := map[*Target]bool{}

	var visit func(t *Target, path []*Target) error
	visit = func(t *Target, path []*Target) error {
		if visited[t] {
			return nil
		}
		if checking[t] {
			return cycleError(append(path, t))
		}
		checking[t] = true
		deps, err := r.depsOf(t, cfg)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := visit(dep, append(path, t)); err != nil {
				return err
			}
		}
		checking[t] = false
		visited[t] = true
		order = append(order, t)
		return nil
	}

	for _, root := range roots {
		if err := visit(root, nil); err != nil {
			return nil, err
		}
	}

	if cfg.IncludeDependencies {
		return order, nil
	}
	rootSet := map[*Target]bool{}
	for _, root := range roots {
		rootSet[root] = true
	}
	var filtered []*Target
	for _, t := range order {
		if rootSet[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// depsOf resolves a target's dependency names to concrete targets.
func (r *Registry) depsOf(t *Target, cfg *config.Config) ([]*Target, error) {
	names := slices.Clone(t.spec.Deps)
	if t.spec.DepsFunc != nil {
		names = append(names, t.spec.DepsFunc(cfg, t.CrossTarget)...)
	}
	out := make([]*Target, 0, len(names))
	for _, name := range names {
		dep, err := r.depTarget(name, t.CrossTarget)
		if err != nil {
			return nil, goerr.Wrap(err, fmt.Sprintf("while resolving dependencies of %q", t.Name))
		}
		out = append(out, dep)
	}
	return out, nil
}

// cycleError reports a dependency cycle with one line per edge. The
// path ends with the target that closed the cycle.
func cycleError(path []*Target) error {
	last := path[len(path)-1]
	start := 0
	for i, t := range path[:len(path)-1] {
		if t == last {
			start = i
			break
		}
	}
	cycle := path[start:]
	var b strings.Builder
	b.WriteString("dependency cycle:\n")
	for i := 0; i+1 < len(cycle); i++ {
		fmt.Fprintf(&b, "    %q depends on %q\n", cycle[i].Name, cycle[i+1].Name)
	}
	return domain.ErrDependencyCycle.Wrap(goerr.New(b.String()))
}
