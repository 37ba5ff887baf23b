package cli_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/capbuild/capbuild/pkg/cli"
	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
)

func TestDisplayQuiet(t *testing.T) {
	var buf bytes.Buffer
	d := cli.NewConsoleDisplay(&config.Config{Quiet: true}, &buf)

	d.Status("building %s", "cheribsd")
	d.Command([]string{"make", "-j8"})
	gt.Equal(t, buf.String(), "")

	d.Warn("something odd happened", "pass --force to rebuild")
	out := buf.String()
	gt.True(t, strings.Contains(out, "something odd happened"))
	gt.True(t, strings.Contains(out, "pass --force to rebuild"))
}

func TestDisplayPretendEchoesCommands(t *testing.T) {
	var buf bytes.Buffer
	d := cli.NewConsoleDisplay(&config.Config{Quiet: true, Pretend: true}, &buf)

	d.Command([]string{"sh", "-c", "echo hi"})
	gt.True(t, strings.Contains(buf.String(), "sh -c 'echo hi'"))
}

func TestDisplayDetail(t *testing.T) {
	var buf bytes.Buffer
	d := cli.NewConsoleDisplay(&config.Config{}, &buf)
	d.Detail("skipping source update")
	gt.Equal(t, buf.String(), "")

	dv := cli.NewConsoleDisplay(&config.Config{Verbose: true}, &buf)
	dv.Detail("skipping source update")
	gt.True(t, strings.Contains(buf.String(), "skipping source update"))
}

func TestShowSummary(t *testing.T) {
	var buf bytes.Buffer
	d := cli.NewConsoleDisplay(&config.Config{}, &buf)

	results := []*model.TargetResult{
		{Target: "sdk-toolchain", Status: model.TargetStatusSucceeded, Duration: 90 * time.Second},
		{Target: "cheribsd-morello-purecap", Status: model.TargetStatusFailed, Duration: 5 * time.Second},
		{Target: "disk-image-morello-purecap", Status: model.TargetStatusSkipped},
	}
	summary := &model.Summary{Duration: 95 * time.Second}
	for _, r := range results {
		summary.Record(r)
	}

	d.ShowSummary(summary, results)

	out := buf.String()
	gt.True(t, strings.Contains(out, "sdk-toolchain"))
	gt.True(t, strings.Contains(out, "1m30s"))
	gt.True(t, strings.Contains(out, "skipped"))
	gt.True(t, strings.Contains(out, "1 of 3 targets built in 1m35s"))
	gt.True(t, strings.Contains(out, "1 failed"))
}

func TestShowSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	d := cli.NewConsoleDisplay(&config.Config{}, &buf)
	d.ShowSummary(&model.Summary{}, nil)
	gt.Equal(t, buf.String(), "")
}
