package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/domain"
)

type rawValue = json.RawMessage

// LoadFile stages values from a JSON config file. The file is optional;
// a missing file is not an error. Top level keys are either global
// settings ("source-root"), full option keys ("disk-image/hostname"),
// or scope objects nesting option names:
//
//	{
//	    "source-root": "/work/capbuild",
//	    "disk-image/use-qcow2": true,
//	    "cheribsd-morello-purecap": { "build-options": "-DWITH_FOO" }
//	}
//
// Lines may carry // comments, which are stripped before parsing.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return domain.ErrConfiguration.Wrap(err, goerr.V("path", path))
	}
	var raw map[string]rawValue
	if err := json.Unmarshal(stripJSONComments(data), &raw); err != nil {
		return domain.ErrConfiguration.Wrap(err, goerr.V("path", path))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		panic("config file loaded after configuration was finalized")
	}
	r.filePath = path
	for key, val := range raw {
		if isJSONObject(val) && !strings.Contains(key, "/") {
			var sub map[string]rawValue
			if err := json.Unmarshal(val, &sub); err != nil {
				return domain.ErrConfiguration.Wrap(err,
					goerr.V("path", path), goerr.V("scope", key))
			}
			for name, sv := range sub {
				r.fileRaw[key+"/"+name] = sv
			}
			continue
		}
		r.fileRaw[key] = val
	}
	return nil
}

func isJSONObject(raw rawValue) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// stripJSONComments removes // comments outside of string literals so
// config files can be annotated.
func stripJSONComments(data []byte) []byte {
	var out bytes.Buffer
	inString := false
	escaped := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out.WriteByte('\n')
			}
		default:
			out.WriteByte(c)
		}
	}
	return out.Bytes()
}

func decodeValue(kind Kind, raw rawValue) (any, error) {
	switch kind {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case KindPath:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return ExpandPath(s), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case KindInt:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, err
		}
		return int(i), nil
	case KindList:
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, goerr.New("list option needs an array of strings or one string")
		}
		parts, err := shlex.Split(s)
		if err != nil {
			return nil, goerr.Wrap(err, "cannot split list value")
		}
		return parts, nil
	default:
		return nil, goerr.New("unsupported option kind", goerr.V("kind", string(kind)))
	}
}

// globalKeys maps config file keys without a scope to the Config fields
// they set.
var globalKeys = map[string]Kind{
	"source-root":          KindPath,
	"output-root":          KindPath,
	"build-root":           KindPath,
	"quiet":                KindBool,
	"verbose":              KindBool,
	"debug":                KindBool,
	"pretend":              KindBool,
	"clean":                KindBool,
	"force":                KindBool,
	"skip-update":          KindBool,
	"include-dependencies": KindBool,
	"keep-going":           KindBool,
	"make-jobs":            KindInt,
	"github-token":         KindString,
}

func (r *Registry) applyGlobals(cfg *Config) error {
	for key, raw := range r.fileRaw {
		if strings.Contains(key, "/") {
			continue
		}
		kind, ok := globalKeys[key]
		if !ok {
			r.warnings = append(r.warnings,
				fmt.Sprintf("unknown option %q in %s", key, r.filePath))
			continue
		}
		v, err := decodeValue(kind, raw)
		if err != nil {
			return domain.ErrConfiguration.Wrap(err,
				goerr.V("option", key), goerr.V("file", r.filePath))
		}
		switch key {
		case "source-root":
			cfg.SourceRoot = v.(string)
		case "output-root":
			cfg.OutputRoot = v.(string)
		case "build-root":
			cfg.BuildRoot = v.(string)
		case "quiet":
			cfg.Quiet = v.(bool)
		case "verbose":
			cfg.Verbose = v.(bool)
		case "debug":
			cfg.Debug = v.(bool)
		case "pretend":
			cfg.Pretend = v.(bool)
		case "clean":
			cfg.Clean = v.(bool)
		case "force":
			cfg.Force = v.(bool)
		case "skip-update":
			cfg.SkipUpdate = v.(bool)
		case "include-dependencies":
			cfg.IncludeDependencies = v.(bool)
		case "keep-going":
			cfg.KeepGoing = v.(bool)
		case "make-jobs":
			cfg.MakeJobs = v.(int)
		case "github-token":
			cfg.GitHubToken = v.(string)
		}
	}
	return nil
}

// Template renders a starter config file listing every known setting as
// a comment next to its default.
func (r *Registry) Template() string {
	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString("    // capbuild configuration. Keys are global settings,\n")
	b.WriteString("    // \"scope/option\" pairs, or per scope objects.\n")
	b.WriteString("    // Lines starting with // are ignored.\n")
	b.WriteString("    //\n")
	b.WriteString("    // Global settings:\n")
	for _, g := range globalTemplateEntries {
		b.WriteString(fmt.Sprintf("    //   %q: %s\n", g.key, g.example))
	}
	b.WriteString("    //\n")
	b.WriteString("    // Per target options:\n")
	lastScope := ""
	for _, info := range r.Declared() {
		if info.Scope != lastScope {
			b.WriteString("    //\n")
			lastScope = info.Scope
		}
		line := fmt.Sprintf("    //   %q:", info.FullName())
		if info.DefaultText != "" {
			line += fmt.Sprintf(" %q,", info.DefaultText)
		}
		if info.Help != "" {
			line += "  // " + info.Help
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("}\n")
	return b.String()
}

type globalTemplateEntry struct {
	key     string
	example string
}

var globalTemplateEntries = []globalTemplateEntry{
	{"source-root", `"~/capbuild"`},
	{"output-root", `"~/capbuild/output"`},
	{"build-root", `"~/capbuild/build"`},
	{"make-jobs", "8"},
	{"skip-update", "false"},
	{"include-dependencies", "false"},
}
