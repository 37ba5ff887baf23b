package usecase

import (
	"archive/tar"
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ulikunitz/xz"

	"github.com/capbuild/capbuild/pkg/domain/interfaces"
)

type archiveExtractor struct{}

func NewArchiveExtractor() interfaces.ArchiveExtractor {
	return &archiveExtractor{}
}

func (e *archiveExtractor) ExtractTarXz(ctx context.Context, archive, dest string, stripComponents int) error {
	logger := ctxlog.From(ctx)

	f, err := os.Open(archive) // #nosec G304 - archive comes from the download cache
	if err != nil {
		return goerr.Wrap(err, "cannot open archive")
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return goerr.Wrap(err, "not an xz archive", goerr.V("path", archive))
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return goerr.Wrap(err, "cannot create destination", goerr.V("path", dest))
	}

	tr := tar.NewReader(xzr)
	files := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "broken tar archive", goerr.V("path", archive))
		}

		rel, ok := stripPath(hdr.Name, stripComponents)
		if !ok {
			continue
		}
		target, err := securePath(dest, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()); err != nil {
				return goerr.Wrap(err, "cannot create directory", goerr.V("path", target))
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return goerr.Wrap(err, "cannot create directory")
			}
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
			files++
		case tar.TypeSymlink:
			if err := checkLink(rel, hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return goerr.Wrap(err, "cannot create directory")
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return goerr.Wrap(err, "cannot create symlink", goerr.V("path", target))
			}
		case tar.TypeLink:
			linkRel, ok := stripPath(hdr.Linkname, stripComponents)
			if !ok {
				continue
			}
			source, err := securePath(dest, linkRel)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return goerr.Wrap(err, "cannot create directory")
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return goerr.Wrap(err, "cannot create hard link", goerr.V("path", target))
			}
			files++
		}
	}

	logger.Debug("extracted archive",
		slog.String("archive", archive),
		slog.String("dest", dest),
		slog.Int("files", files),
	)
	return nil
}

// stripPath removes the leading path components from a tar entry name.
// Entries with fewer components than the strip count are dropped.
func stripPath(name string, strip int) (string, bool) {
	clean := path.Clean(name)
	if clean == "." || clean == "/" {
		return "", false
	}
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	if len(parts) <= strip {
		return "", false
	}
	return path.Join(parts[strip:]...), true
}

// securePath rejects entries that would land outside the destination.
func securePath(dest, rel string) (string, error) {
	if rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
		return "", goerr.New("archive entry escapes destination", goerr.V("entry", rel))
	}
	return filepath.Join(dest, filepath.FromSlash(rel)), nil
}

// checkLink rejects symlinks whose resolved target leaves the
// destination tree.
func checkLink(rel, linkname string) error {
	if filepath.IsAbs(linkname) {
		return goerr.New("absolute symlink in archive",
			goerr.V("entry", rel), goerr.V("link", linkname))
	}
	resolved := path.Join(path.Dir(rel), linkname)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return goerr.New("symlink escapes destination",
			goerr.V("entry", rel), goerr.V("link", linkname))
	}
	return nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode) // #nosec G304 - path is validated by securePath
	if err != nil {
		return goerr.Wrap(err, "cannot create file", goerr.V("path", target))
	}
	if _, err := io.Copy(f, r); err != nil { // #nosec G110 - archives come from trusted toolchain releases
		_ = f.Close()
		return goerr.Wrap(err, "cannot write file", goerr.V("path", target))
	}
	return f.Close()
}
