package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/capbuild/capbuild/pkg/domain/model"
)

// Config holds the global settings that apply to every target in a
// build. Per-target settings live in the option registry instead.
type Config struct {
	// SourceRoot is where project sources are checked out. OutputRoot
	// and BuildRoot derive from it unless set explicitly.
	SourceRoot string
	OutputRoot string
	BuildRoot  string

	ConfigFile string

	Quiet   bool
	Verbose bool
	Debug   bool

	// Pretend echoes every command and file operation instead of
	// performing it.
	Pretend             bool
	Clean               bool
	Force               bool
	SkipUpdate          bool
	IncludeDependencies bool
	KeepGoing           bool

	MakeJobs int

	GitHubToken string
}

// DefaultConfig returns a config with the defaults that do not depend
// on other settings. Derived fields are filled by Normalize once flags
// and the config file have been applied.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfgFile, err := xdg.ConfigFile("capbuild/capbuild.json")
	if err != nil {
		cfgFile = filepath.Join(home, ".capbuild.json")
	}
	return &Config{
		SourceRoot:  filepath.Join(home, "capbuild"),
		ConfigFile:  cfgFile,
		GitHubToken: githubTokenFromEnv(),
	}
}

// Normalize fills derived settings that were not set explicitly.
func (c *Config) Normalize() {
	if c.OutputRoot == "" {
		c.OutputRoot = filepath.Join(c.SourceRoot, "output")
	}
	if c.BuildRoot == "" {
		c.BuildRoot = filepath.Join(c.SourceRoot, "build")
	}
	if c.MakeJobs <= 0 {
		c.MakeJobs = runtime.NumCPU()
	}
	if c.Debug {
		c.Verbose = true
	}
}

func (c *Config) SDKRoot() string        { return filepath.Join(c.OutputRoot, "sdk") }
func (c *Config) MorelloSDKRoot() string { return filepath.Join(c.OutputRoot, "morello-sdk") }
func (c *Config) SDKBinDir() string      { return filepath.Join(c.SDKRoot(), "bin") }

// SysrootDir is the sysroot prebuilt or installed for one cross target,
// e.g. $OUTPUT/sdk/sysroot-morello-purecap.
func (c *Config) SysrootDir(ct model.CrossTarget) string {
	return filepath.Join(c.SDKRoot(), "sysroot-"+ct.Name)
}

func githubTokenFromEnv() string {
	for _, key := range []string{"CAPBUILD_GITHUB_TOKEN", "GITHUB_TOKEN"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// ExpandPath expands a leading ~ and environment references in a user
// supplied path.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return os.ExpandEnv(p)
}
