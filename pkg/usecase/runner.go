package usecase

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/domain/interfaces"
	"github.com/capbuild/capbuild/pkg/domain/model"
)

type execRunner struct {
	display interfaces.Display
	pretend bool
	verbose bool
	quiet   bool

	mu    sync.Mutex
	paths map[string]string
}

// NewExecRunner creates the process runner used for real builds. With
// pretend set, every command is echoed instead of executed.
func NewExecRunner(display interfaces.Display, pretend, verbose, quiet bool) interfaces.ProcessRunner {
	return &execRunner{
		display: display,
		pretend: pretend,
		verbose: verbose,
		quiet:   quiet,
		paths:   map[string]string{},
	}
}

func (r *execRunner) Run(ctx context.Context, cmd model.Command) (*model.CommandResult, error) {
	logger := ctxlog.From(ctx)

	if r.pretend || r.verbose || !cmd.VerboseOnly {
		r.display.Command(cmd.CommandLine())
	}
	if r.pretend {
		return &model.CommandResult{Pretended: true}, nil
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	proc := exec.CommandContext(runCtx, cmd.Path, cmd.Args...) // #nosec G204 - commands are composed by build steps
	proc.Dir = cmd.Dir
	proc.Env = os.Environ()
	if len(cmd.Env) > 0 {
		proc.Env = append(proc.Env, cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	switch {
	case cmd.Capture:
		proc.Stdout = &stdout
	case r.quiet:
		proc.Stdout = io.Discard
	default:
		proc.Stdout = os.Stdout
	}
	if r.quiet {
		proc.Stderr = &stderr
	} else {
		proc.Stderr = io.MultiWriter(os.Stderr, &stderr)
	}

	started := time.Now()
	err := proc.Run()
	result := &model.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}
	if proc.ProcessState != nil {
		result.ExitCode = proc.ProcessState.ExitCode()
	}

	logger.Debug("command finished",
		slog.String("command", cmd.Path),
		slog.Any("args", cmd.Args),
		slog.Int("exit_code", result.ExitCode),
		slog.Duration("duration", result.Duration),
	)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return result, domain.ErrProcessFailed.Wrap(
				goerr.New("command timed out",
					goerr.V("command", shellquote.Join(cmd.CommandLine()...)),
					goerr.V("timeout", cmd.Timeout.String())))
		}
		return result, domain.ErrProcessFailed.Wrap(err,
			goerr.V("command", shellquote.Join(cmd.CommandLine()...)),
			goerr.V("stderr", lastLines(result.Stderr, 10)))
	}
	return result, nil
}

func (r *execRunner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.paths[name]; ok {
		return p, nil
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	r.paths[name] = p
	return p, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
