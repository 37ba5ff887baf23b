package interfaces

import (
	"github.com/capbuild/capbuild/pkg/domain/model"
)

type Display interface {
	// Status reports build progress, e.g. "Building cheribsd-morello-purecap".
	Status(format string, args ...any)
	// Detail is only shown when verbose output is enabled.
	Detail(format string, args ...any)
	// Warn prints a warning. The hint names a flag or action that fixes
	// the problem and may be empty.
	Warn(msg string, hint string)
	Error(msg string)
	// Command echoes an external command before it runs.
	Command(args []string)
	// Confirm asks a yes/no question and returns the answer, or def when
	// stdin is not interactive.
	Confirm(question string, def bool) bool
	ShowSummary(summary *model.Summary, results []*model.TargetResult)
}
