package interfaces

import (
	"context"

	"github.com/capbuild/capbuild/pkg/domain/model"
)

// ProcessRunner executes external commands on behalf of build steps.
// Implementations honor dry-run mode by echoing the command without
// executing it.
type ProcessRunner interface {
	Run(ctx context.Context, cmd model.Command) (*model.CommandResult, error)
	// LookPath resolves a tool name to an absolute path, caching the
	// result for repeated dependency checks.
	LookPath(name string) (string, error)
}
