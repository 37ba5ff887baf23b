package domain

import "github.com/m-mizutani/goerr/v2"

var (
	ErrConfiguration   = goerr.New("configuration error")
	ErrUnknownTarget   = goerr.New("unknown target")
	ErrDependencyCycle = goerr.New("dependency cycle detected")
	ErrMissingTool     = goerr.New("required system tool not found")
	ErrMissingFile     = goerr.New("required file not found")
	ErrProcessFailed   = goerr.New("command execution failed")
	ErrDownload        = goerr.New("release download failed")
)
