package model

import (
	"bufio"
	"io"
	"strings"

	"github.com/google/shlex"
	"github.com/m-mizutani/goerr/v2"
)

// MtreeEntry is one line of a BSD mtree manifest in the METALOG format
// written by installworld: a path token followed by key=value
// attributes. Paths may contain quoted whitespace, so lines are split
// with shell quoting rules.
type MtreeEntry struct {
	Path       string
	Attributes map[string]string
}

func ParseMtreeEntry(line string) (*MtreeEntry, error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return nil, goerr.Wrap(err, "broken mtree line", goerr.V("line", line))
	}
	if len(fields) == 0 {
		return nil, goerr.New("empty mtree line")
	}
	entry := &MtreeEntry{
		Path:       fields[0],
		Attributes: make(map[string]string, len(fields)-1),
	}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, goerr.New("mtree attribute without value",
				goerr.V("line", line), goerr.V("attribute", field))
		}
		entry.Attributes[key] = value
	}
	return entry, nil
}

func (e *MtreeEntry) Type() string { return e.Attributes["type"] }
func (e *MtreeEntry) IsDir() bool  { return e.Type() == "dir" }

// RelativePath strips the leading "./" every METALOG path carries.
func (e *MtreeEntry) RelativePath() string {
	return strings.TrimPrefix(e.Path, "./")
}

// ParseMtreeDirs returns the relative path of every directory entry in
// a manifest, in file order. The root entry "." is skipped, as are
// comments and blank lines.
func ParseMtreeDirs(r io.Reader) ([]string, error) {
	var dirs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, " type=dir") {
			continue
		}
		entry, err := ParseMtreeEntry(line)
		if err != nil {
			return nil, err
		}
		if !entry.IsDir() || entry.Path == "." {
			continue
		}
		dirs = append(dirs, entry.RelativePath())
	}
	if err := sc.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read mtree manifest")
	}
	return dirs, nil
}
