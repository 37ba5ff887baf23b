package usecase

import (
	"github.com/google/go-github/v74/github"

	"github.com/capbuild/capbuild/pkg/domain/interfaces"
)

// Export for testing
var LastLines = lastLines

// NewReleaseServiceForTest wires a release service against a custom
// client and cache directory.
func NewReleaseServiceForTest(client *github.Client, cacheDir string) interfaces.ReleaseFetcher {
	return &releaseService{client: client, cacheDir: cacheDir}
}
