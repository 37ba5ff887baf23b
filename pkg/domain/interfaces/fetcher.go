package interfaces

import (
	"context"

	"github.com/capbuild/capbuild/pkg/domain/model"
)

// ReleaseFetcher locates and downloads prebuilt toolchain assets
// published as GitHub releases.
type ReleaseFetcher interface {
	// FindAsset returns the first asset of the release identified by tag
	// (empty for the latest release) whose name matches the glob pattern.
	FindAsset(ctx context.Context, repo model.ReleaseRepo, tag, pattern string) (*model.ReleaseAsset, error)
	// Download fetches an asset into the local download cache and returns
	// the cached file path. Already cached assets are not fetched again.
	Download(ctx context.Context, repo model.ReleaseRepo, asset *model.ReleaseAsset) (string, error)
}
