package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ReleaseRepo identifies a GitHub repository that publishes toolchain
// releases.
type ReleaseRepo struct {
	Owner string
	Name  string
}

func (r ReleaseRepo) FullName() string {
	return r.Owner + "/" + r.Name
}

// ParseReleaseRepo parses an "owner/name" reference.
func ParseReleaseRepo(s string) (ReleaseRepo, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return ReleaseRepo{}, goerr.New("repository must be in owner/name form", goerr.V("input", s))
	}
	return ReleaseRepo{Owner: owner, Name: name}, nil
}

// ReleaseAsset is one downloadable file attached to a release.
type ReleaseAsset struct {
	ID   int64
	Name string
	Size int64
	URL  string
	Tag  string // release tag the asset belongs to
}
