package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind describes how an option value is parsed from flags and config
// files.
type Kind string

const (
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindPath   Kind = "path"
	KindList   Kind = "list"
)

// Metavar returns the value placeholder shown in --help output.
func (k Kind) Metavar() string {
	switch k {
	case KindBool:
		return ""
	case KindInt:
		return "N"
	case KindPath:
		return "PATH"
	case KindList:
		return "ARGS"
	default:
		return "VALUE"
	}
}

// Default supplies an option's value when neither the command line nor
// the config file provides one. Either Value or Compute is used.
// Compute receives the global config and the concrete scope of the
// lookup, so a default can depend on global settings and on the target
// variant. Compute must not read other options.
type Default[T any] struct {
	Value    T
	Compute  func(cfg *Config, scope string) T
	AsString string // rendering of a computed default for help output
}

func Literal[T any](v T) Default[T] { return Default[T]{Value: v} }

func Computed[T any](f func(cfg *Config, scope string) T, asString string) Default[T] {
	return Default[T]{Compute: f, AsString: asString}
}

// Option is one named setting declared under a scope. Values resolve
// lazily with precedence command line over config file over default,
// and the result is cached per concrete scope, so every read of one
// option under one scope observes the same value.
type Option[T any] struct {
	reg   *Registry
	scope string
	name  string
	kind  Kind
}

func AddString(r *Registry, scope, name string, def Default[string], help string) *Option[string] {
	return declare(r, scope, name, KindString, def, help)
}

// AddPath declares a path option. Values from flags and config files
// have ~ and environment references expanded.
func AddPath(r *Registry, scope, name string, def Default[string], help string) *Option[string] {
	return declare(r, scope, name, KindPath, def, help)
}

func AddBool(r *Registry, scope, name string, def Default[bool], help string) *Option[bool] {
	return declare(r, scope, name, KindBool, def, help)
}

func AddInt(r *Registry, scope, name string, def Default[int], help string) *Option[int] {
	return declare(r, scope, name, KindInt, def, help)
}

// AddList declares a list option. Config files may give an array of
// strings or a single string that is split with shell quoting rules.
func AddList(r *Registry, scope, name string, def Default[[]string], help string) *Option[[]string] {
	return declare(r, scope, name, KindList, def, help)
}

func declare[T any](r *Registry, scope, name string, kind Kind, def Default[T], help string) *Option[T] {
	defaultFn := func(scope string) any {
		v := def.Value
		if def.Compute != nil {
			v = def.Compute(r.cfg, scope)
		}
		if kind == KindPath {
			if s, ok := any(v).(string); ok {
				return ExpandPath(s)
			}
		}
		return v
	}
	r.register(Info{
		Scope:       scope,
		Name:        name,
		Kind:        kind,
		Help:        help,
		DefaultText: defaultText(def),
	}, defaultFn)
	return &Option[T]{reg: r, scope: scope, name: name, kind: kind}
}

func defaultText[T any](def Default[T]) string {
	if def.Compute != nil {
		return def.AsString
	}
	switch v := any(def.Value).(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return ""
	case int:
		if v != 0 {
			return strconv.Itoa(v)
		}
		return ""
	case []string:
		return strings.Join(v, " ")
	default:
		return fmt.Sprint(v)
	}
}

// FullName is the option's canonical "scope/name" key, also its config
// file key and the name of its command line flag.
func (o *Option[T]) FullName() string { return o.scope + "/" + o.name }

// FlagName is how the option is spelled on the command line, for use in
// hint messages.
func (o *Option[T]) FlagName() string { return "--" + o.FullName() }

// Scoped is anything that resolves options under a concrete scope,
// usually a project instance bound to one target variant.
type Scoped interface {
	ConfigScope() string
}

// Get resolves the option for the given scope's target variant.
func (o *Option[T]) Get(s Scoped) T {
	return o.GetForScope(s.ConfigScope())
}

// GetForScope resolves the option under an explicit scope name. Lookup
// walks the scope's fallback chain, so a variant scope like
// "disk-image-morello-purecap" inherits values set for "disk-image"
// unless a more specific key overrides them.
func (o *Option[T]) GetForScope(scope string) T {
	v := o.reg.value(o.FullName(), scope)
	tv, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("option %s resolved to %T", o.FullName(), v))
	}
	return tv
}
