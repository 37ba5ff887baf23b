package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/usecase"
)

type recordingDisplay struct {
	statuses []string
	warnings []string
	errs     []string
	commands [][]string
	answer   bool
	summary  *model.Summary
	results  []*model.TargetResult
}

func (d *recordingDisplay) Status(format string, args ...any) {
	d.statuses = append(d.statuses, fmt.Sprintf(format, args...))
}
func (d *recordingDisplay) Detail(format string, args ...any) {}
func (d *recordingDisplay) Warn(msg, hint string) {
	d.warnings = append(d.warnings, msg)
}
func (d *recordingDisplay) Error(msg string) {
	d.errs = append(d.errs, msg)
}
func (d *recordingDisplay) Command(args []string) {
	d.commands = append(d.commands, args)
}
func (d *recordingDisplay) Confirm(question string, def bool) bool {
	return d.answer
}
func (d *recordingDisplay) ShowSummary(summary *model.Summary, results []*model.TargetResult) {
	d.summary = summary
	d.results = results
}

func TestRunnerPretend(t *testing.T) {
	display := &recordingDisplay{}
	runner := usecase.NewExecRunner(display, true, false, false)

	result, err := runner.Run(context.Background(), model.Command{
		Path: "definitely-not-installed-anywhere",
		Args: []string{"--flag"},
	})
	gt.NoError(t, err)
	gt.True(t, result.Pretended)
	gt.Equal(t, display.commands, [][]string{{"definitely-not-installed-anywhere", "--flag"}})
}

func TestRunnerRun(t *testing.T) {
	t.Run("Captures stdout", func(t *testing.T) {
		display := &recordingDisplay{}
		runner := usecase.NewExecRunner(display, false, false, true)

		result, err := runner.Run(context.Background(), model.Command{
			Path:    "sh",
			Args:    []string{"-c", "printf hello"},
			Capture: true,
		})
		gt.NoError(t, err)
		gt.Equal(t, result.Stdout, "hello")
		gt.Equal(t, result.ExitCode, 0)
		gt.False(t, result.Pretended)
	})

	t.Run("Extra environment is visible", func(t *testing.T) {
		display := &recordingDisplay{}
		runner := usecase.NewExecRunner(display, false, false, true)

		result, err := runner.Run(context.Background(), model.Command{
			Path:    "sh",
			Args:    []string{"-c", "printf \"$CAPBUILD_RUNNER_TEST\""},
			Env:     []string{"CAPBUILD_RUNNER_TEST=from-env"},
			Capture: true,
		})
		gt.NoError(t, err)
		gt.Equal(t, result.Stdout, "from-env")
	})

	t.Run("Runs in the given directory", func(t *testing.T) {
		dir := t.TempDir()
		display := &recordingDisplay{}
		runner := usecase.NewExecRunner(display, false, false, true)

		result, err := runner.Run(context.Background(), model.Command{
			Path:    "pwd",
			Dir:     dir,
			Capture: true,
		})
		gt.NoError(t, err)
		gt.True(t, strings.Contains(result.Stdout, dir))
	})

	t.Run("Failure carries stderr and exit code", func(t *testing.T) {
		display := &recordingDisplay{}
		runner := usecase.NewExecRunner(display, false, false, true)

		result, err := runner.Run(context.Background(), model.Command{
			Path: "sh",
			Args: []string{"-c", "echo oops >&2; exit 3"},
		})
		gt.Error(t, err)
		gt.True(t, errors.Is(err, domain.ErrProcessFailed))
		gt.Equal(t, result.ExitCode, 3)
		gt.True(t, strings.Contains(result.Stderr, "oops"))
	})

	t.Run("Timeout", func(t *testing.T) {
		display := &recordingDisplay{}
		runner := usecase.NewExecRunner(display, false, false, true)

		_, err := runner.Run(context.Background(), model.Command{
			Path:    "sh",
			Args:    []string{"-c", "sleep 5"},
			Timeout: 50 * time.Millisecond,
		})
		gt.Error(t, err)
		gt.True(t, errors.Is(err, domain.ErrProcessFailed))
		gt.True(t, strings.Contains(err.Error(), "timed out"))
	})
}

func TestRunnerEcho(t *testing.T) {
	t.Run("Verbose only commands stay silent by default", func(t *testing.T) {
		display := &recordingDisplay{}
		runner := usecase.NewExecRunner(display, false, false, true)

		_, err := runner.Run(context.Background(), model.Command{
			Path:        "true",
			VerboseOnly: true,
		})
		gt.NoError(t, err)
		gt.Equal(t, len(display.commands), 0)
	})

	t.Run("Verbose mode echoes them", func(t *testing.T) {
		display := &recordingDisplay{}
		runner := usecase.NewExecRunner(display, false, true, true)

		_, err := runner.Run(context.Background(), model.Command{
			Path:        "true",
			VerboseOnly: true,
		})
		gt.NoError(t, err)
		gt.Equal(t, len(display.commands), 1)
	})
}

func TestRunnerLookPath(t *testing.T) {
	display := &recordingDisplay{}
	runner := usecase.NewExecRunner(display, false, false, true)

	p1, err := runner.LookPath("sh")
	gt.NoError(t, err)
	gt.True(t, p1 != "")

	p2, err := runner.LookPath("sh")
	gt.NoError(t, err)
	gt.Equal(t, p1, p2)

	_, err = runner.LookPath("definitely-not-installed-anywhere")
	gt.Error(t, err)
}

func TestLastLines(t *testing.T) {
	gt.Equal(t, usecase.LastLines("a\nb\nc\n", 2), "b\nc")
	gt.Equal(t, usecase.LastLines("a\nb", 10), "a\nb")
	gt.Equal(t, usecase.LastLines("", 3), "")
}
