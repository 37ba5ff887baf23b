package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kballard/go-shellquote"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
)

// ConsoleDisplay writes build progress to the terminal. Quiet drops
// status and command echo lines, verbose adds detail lines, and
// pretend mode always echoes commands since they are the output.
type ConsoleDisplay struct {
	cfg *config.Config
	out io.Writer
	in  *bufio.Reader

	statusColor  *color.Color
	warnColor    *color.Color
	errorColor   *color.Color
	commandColor *color.Color
	okColor      *color.Color
}

func NewConsoleDisplay(cfg *config.Config, out io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{
		cfg:          cfg,
		out:          out,
		in:           bufio.NewReader(os.Stdin),
		statusColor:  color.New(color.FgCyan),
		warnColor:    color.New(color.FgYellow),
		errorColor:   color.New(color.FgRed, color.Bold),
		commandColor: color.New(color.FgGreen),
		okColor:      color.New(color.FgGreen),
	}
}

func (d *ConsoleDisplay) Status(format string, args ...any) {
	if d.cfg.Quiet {
		return
	}
	fmt.Fprintln(d.out, d.statusColor.Sprintf(format, args...))
}

func (d *ConsoleDisplay) Detail(format string, args ...any) {
	if !d.cfg.Verbose {
		return
	}
	fmt.Fprintf(d.out, format+"\n", args...)
}

func (d *ConsoleDisplay) Warn(msg, hint string) {
	fmt.Fprintf(d.out, "%s %s\n", d.warnColor.Sprint("Warning:"), msg)
	if hint != "" {
		fmt.Fprintf(d.out, "  %s\n", hint)
	}
}

func (d *ConsoleDisplay) Error(msg string) {
	fmt.Fprintf(d.out, "%s %s\n", d.errorColor.Sprint("Error:"), msg)
}

func (d *ConsoleDisplay) Command(args []string) {
	if d.cfg.Quiet && !d.cfg.Pretend {
		return
	}
	fmt.Fprintln(d.out, d.commandColor.Sprint(shellquote.Join(args...)))
}

// Confirm asks on the terminal and falls back to the default answer
// when stdin is closed or not interactive.
func (d *ConsoleDisplay) Confirm(question string, def bool) bool {
	choices := "y/N"
	if def {
		choices = "Y/n"
	}
	fmt.Fprintf(d.out, "%s [%s] ", question, choices)
	line, err := d.in.ReadString('\n')
	if err != nil {
		fmt.Fprintln(d.out)
		return def
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

func (d *ConsoleDisplay) ShowSummary(summary *model.Summary, results []*model.TargetResult) {
	if summary.TotalTargets == 0 {
		return
	}
	fmt.Fprintln(d.out)
	for _, r := range results {
		switch r.Status {
		case model.TargetStatusSucceeded:
			fmt.Fprintf(d.out, "  %s %-44s %s\n", d.okColor.Sprint("✔"), r.Target, r.Duration)
		case model.TargetStatusFailed:
			fmt.Fprintf(d.out, "  %s %-44s %s\n", d.errorColor.Sprint("✘"), r.Target, r.Duration)
		case model.TargetStatusSkipped:
			fmt.Fprintf(d.out, "  %s %-44s %s\n", d.warnColor.Sprint("-"), r.Target, "skipped")
		}
	}
	line := fmt.Sprintf("%d of %d targets built in %s",
		summary.SuccessCount, summary.TotalTargets, summary.Duration)
	if summary.FailureCount > 0 {
		line += d.errorColor.Sprintf(", %d failed", summary.FailureCount)
	}
	fmt.Fprintf(d.out, "\n%s\n", line)
}
