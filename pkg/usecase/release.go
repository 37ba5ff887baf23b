package usecase

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/google/go-github/v74/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"

	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/domain/interfaces"
	"github.com/capbuild/capbuild/pkg/domain/model"
)

type releaseService struct {
	client   *github.Client
	cacheDir string
}

// NewReleaseService builds the GitHub client used to fetch prebuilt
// toolchain releases. An empty token falls back to unauthenticated
// requests, which hit much lower rate limits. Downloads are cached
// under the user cache directory.
func NewReleaseService(ctx context.Context, token string) interfaces.ReleaseFetcher {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	return &releaseService{
		client:   github.NewClient(httpClient),
		cacheDir: filepath.Join(xdg.CacheHome, "capbuild", "downloads"),
	}
}

func (s *releaseService) FindAsset(ctx context.Context, repo model.ReleaseRepo, tag, pattern string) (*model.ReleaseAsset, error) {
	logger := ctxlog.From(ctx)

	var release *github.RepositoryRelease
	var err error
	if tag == "" {
		release, _, err = s.client.Repositories.GetLatestRelease(ctx, repo.Owner, repo.Name)
	} else {
		release, _, err = s.client.Repositories.GetReleaseByTag(ctx, repo.Owner, repo.Name, tag)
	}
	if err != nil {
		return nil, domain.ErrDownload.Wrap(err,
			goerr.V("repo", repo.FullName()), goerr.V("tag", tag))
	}

	for _, asset := range release.Assets {
		matched, err := path.Match(pattern, asset.GetName())
		if err != nil {
			return nil, domain.ErrConfiguration.Wrap(err, goerr.V("pattern", pattern))
		}
		if !matched {
			continue
		}
		logger.Debug("matched release asset",
			slog.String("repo", repo.FullName()),
			slog.String("release", release.GetTagName()),
			slog.String("asset", asset.GetName()),
			slog.Int("size", asset.GetSize()),
		)
		return &model.ReleaseAsset{
			ID:   asset.GetID(),
			Name: asset.GetName(),
			Size: int64(asset.GetSize()),
			URL:  asset.GetBrowserDownloadURL(),
			Tag:  release.GetTagName(),
		}, nil
	}
	return nil, domain.ErrDownload.Wrap(goerr.New("no release asset matches pattern",
		goerr.V("repo", repo.FullName()),
		goerr.V("release", release.GetTagName()),
		goerr.V("pattern", pattern)))
}

func (s *releaseService) Download(ctx context.Context, repo model.ReleaseRepo, asset *model.ReleaseAsset) (string, error) {
	logger := ctxlog.From(ctx)

	dest := filepath.Join(s.cacheDir, repo.Owner, repo.Name, asset.Tag, asset.Name)
	if st, err := os.Stat(dest); err == nil && (asset.Size == 0 || st.Size() == asset.Size) {
		logger.Debug("using cached asset", slog.String("path", dest))
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", domain.ErrDownload.Wrap(err)
	}

	rc, redirect, err := s.client.Repositories.DownloadReleaseAsset(
		ctx, repo.Owner, repo.Name, asset.ID, http.DefaultClient)
	if err != nil {
		return "", domain.ErrDownload.Wrap(err, goerr.V("asset", asset.Name))
	}
	if rc == nil {
		rc, err = fetchURL(ctx, redirect)
		if err != nil {
			return "", err
		}
	}
	defer rc.Close()

	tmp := dest + ".part"
	f, err := os.Create(tmp) // #nosec G304 - path is derived from the cache dir
	if err != nil {
		return "", domain.ErrDownload.Wrap(err)
	}
	written, err := io.Copy(f, rc)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", domain.ErrDownload.Wrap(err, goerr.V("asset", asset.Name))
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", domain.ErrDownload.Wrap(err)
	}

	logger.Debug("downloaded asset",
		slog.String("path", dest),
		slog.Int64("bytes", written),
	)
	return dest, nil
}

func fetchURL(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.ErrDownload.Wrap(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, domain.ErrDownload.Wrap(err, goerr.V("url", url))
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, domain.ErrDownload.Wrap(
			goerr.New("unexpected response", goerr.V("url", url), goerr.V("status", resp.Status)))
	}
	return resp.Body, nil
}
