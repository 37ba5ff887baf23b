package config

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/shlex"
	"github.com/kballard/go-shellquote"
	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/domain"
)

// Info describes a declared option, used to build command line flags
// and the config file template.
type Info struct {
	Scope       string
	Name        string
	Kind        Kind
	Help        string
	DefaultText string
}

func (i Info) FullName() string { return i.Scope + "/" + i.Name }

type entry struct {
	info      Info
	defaultFn func(scope string) any
}

// Registry holds every declared option together with the values staged
// from the command line and the config file. Declarations and staging
// happen during startup; Finalize validates the staged values and
// seals the registry, after which option reads resolve lazily and
// cache per scope.
type Registry struct {
	mu        sync.Mutex
	cfg       *Config
	infos     []Info
	declared  map[string]*entry
	scopes    map[string][]string
	filePath  string
	fileRaw   map[string]rawValue
	fileVals  map[string]any
	cliVals   map[string]any
	cache     map[string]any
	warnings  []string
	finalized bool
}

func NewRegistry() *Registry {
	return &Registry{
		declared: map[string]*entry{},
		scopes:   map[string][]string{},
		fileRaw:  map[string]rawValue{},
		fileVals: map[string]any{},
		cliVals:  map[string]any{},
		cache:    map[string]any{},
	}
}

func (r *Registry) register(info Info, defaultFn func(scope string) any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		panic(fmt.Sprintf("option %q declared after configuration was finalized", info.FullName()))
	}
	if strings.Contains(info.Name, "/") || strings.Contains(info.Scope, "/") {
		panic(fmt.Sprintf("option %q: scope and name must not contain '/'", info.FullName()))
	}
	full := info.FullName()
	if _, ok := r.declared[full]; ok {
		panic(fmt.Sprintf("config option %q declared twice", full))
	}
	r.declared[full] = &entry{info: info, defaultFn: defaultFn}
	r.infos = append(r.infos, info)
}

// RegisterScope declares a concrete scope and the scopes its lookups
// fall back to, most specific first. Target registration calls this for
// every per-architecture variant so that "cheribsd-morello-purecap"
// falls back to "cheribsd".
func (r *Registry) RegisterScope(name string, fallbacks ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.scopes[name]; ok {
		if !slices.Equal(existing, fallbacks) {
			panic(fmt.Sprintf("config scope %q registered twice with different fallbacks", name))
		}
		return
	}
	r.scopes[name] = fallbacks
}

// scopeChain returns the scope itself followed by its transitive
// fallbacks in priority order.
func (r *Registry) scopeChain(scope string) []string {
	var chain []string
	seen := map[string]bool{}
	queue := []string{scope}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		chain = append(chain, s)
		queue = append(queue, r.scopes[s]...)
	}
	return chain
}

// Declared returns every registered option in declaration order.
func (r *Registry) Declared() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.infos)
}

// SetCLIString stages a string or path value from a command line flag.
// Command line values win over config file values for every scope the
// option applies to.
func (r *Registry) SetCLIString(fullName, v string) {
	if e := r.mustEntry(fullName); e.info.Kind == KindPath {
		v = ExpandPath(v)
	}
	r.setCLI(fullName, v)
}

func (r *Registry) SetCLIBool(fullName string, v bool) {
	r.mustEntry(fullName)
	r.setCLI(fullName, v)
}

func (r *Registry) SetCLIInt(fullName string, v int) {
	r.mustEntry(fullName)
	r.setCLI(fullName, v)
}

// SetCLIList stages a list value given as one shell quoted string.
func (r *Registry) SetCLIList(fullName, raw string) error {
	r.mustEntry(fullName)
	parts, err := shlex.Split(raw)
	if err != nil {
		return domain.ErrConfiguration.Wrap(err, goerr.V("option", fullName))
	}
	r.setCLI(fullName, parts)
	return nil
}

func (r *Registry) mustEntry(fullName string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.declared[fullName]
	if !ok {
		panic(fmt.Sprintf("unknown config option %q", fullName))
	}
	return e
}

func (r *Registry) setCLI(fullName string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		panic(fmt.Sprintf("option %q set after configuration was finalized", fullName))
	}
	r.cliVals[fullName] = v
}

// Finalize validates the staged config file values against the declared
// options, applies global file settings to cfg, and seals the registry.
// Options can only be read afterwards.
func (r *Registry) Finalize(cfg *Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return nil
	}
	r.cfg = cfg
	if err := r.applyGlobals(cfg); err != nil {
		return err
	}
	if err := r.decodeStaged(); err != nil {
		return err
	}
	r.finalized = true
	return nil
}

func (r *Registry) decodeStaged() error {
	for key, raw := range r.fileRaw {
		idx := strings.LastIndex(key, "/")
		if idx <= 0 {
			continue // global, handled by applyGlobals
		}
		scope, name := key[:idx], key[idx+1:]
		e := r.findEntry(scope, name)
		if e == nil {
			r.warnings = append(r.warnings,
				fmt.Sprintf("unknown option %q in %s", key, r.filePath))
			continue
		}
		v, err := decodeValue(e.info.Kind, raw)
		if err != nil {
			return domain.ErrConfiguration.Wrap(err,
				goerr.V("option", key), goerr.V("file", r.filePath))
		}
		r.fileVals[key] = v
	}
	return nil
}

// findEntry locates the declared option a "scope/name" reference points
// at, walking the scope's fallback chain.
func (r *Registry) findEntry(scope, name string) *entry {
	for _, s := range r.scopeChain(scope) {
		if e, ok := r.declared[s+"/"+name]; ok {
			return e
		}
	}
	return nil
}

// value resolves a declared option under a concrete scope.
func (r *Registry) value(declFullName, scope string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.declared[declFullName]
	if !ok {
		panic(fmt.Sprintf("unknown config option %q", declFullName))
	}
	if !r.finalized {
		panic(fmt.Sprintf("option %q read before configuration was finalized", declFullName))
	}
	cacheKey := scope + "/" + e.info.Name
	if v, ok := r.cache[cacheKey]; ok {
		return v
	}
	v := r.lookup(e, scope)
	r.cache[cacheKey] = v
	return v
}

func (r *Registry) lookup(e *entry, scope string) any {
	if v, ok := r.cliVals[e.info.FullName()]; ok {
		return v
	}
	chain := r.scopeChain(scope)
	for _, s := range chain {
		if v, ok := r.fileVals[s+"/"+e.info.Name]; ok {
			return v
		}
	}
	// The declaring scope is always reachable even when the concrete
	// scope was never registered with a fallback to it.
	if !slices.Contains(chain, e.info.Scope) {
		if v, ok := r.fileVals[e.info.FullName()]; ok {
			return v
		}
	}
	return e.defaultFn(scope)
}

// Resolve resolves the option named by a full "scope/name" key and
// formats its value for display. The scope may be a variant scope, in
// which case its fallbacks apply.
func (r *Registry) Resolve(key string) (string, error) {
	idx := strings.LastIndex(key, "/")
	if idx <= 0 {
		return "", domain.ErrConfiguration.Wrap(
			goerr.New("option reference must be scope/name", goerr.V("input", key)))
	}
	scope, name := key[:idx], key[idx+1:]
	r.mu.Lock()
	e := r.findEntry(scope, name)
	r.mu.Unlock()
	if e == nil {
		return "", domain.ErrConfiguration.Wrap(
			goerr.New("unknown option", goerr.V("option", key)))
	}
	v := r.value(e.info.FullName(), scope)
	switch t := v.(type) {
	case []string:
		return shellquote.Join(t...), nil
	default:
		return fmt.Sprint(t), nil
	}
}

// Warnings drains the warnings collected while loading configuration,
// such as unknown config file keys.
func (r *Registry) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.warnings
	r.warnings = nil
	return w
}
