package interfaces

import "context"

// ArchiveExtractor unpacks downloaded toolchain archives.
type ArchiveExtractor interface {
	// ExtractTarXz unpacks an xz compressed tarball into dest, removing
	// the given number of leading path components from every entry.
	ExtractTarXz(ctx context.Context, archive, dest string, stripComponents int) error
}
