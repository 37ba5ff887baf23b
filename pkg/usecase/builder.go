package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/domain/interfaces"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

// BuildUseCase drives one build run: it plans the target order, creates
// every project instance, verifies system dependencies, and processes
// the targets one after another.
type BuildUseCase struct {
	build   *targets.Build
	display interfaces.Display
}

type BuildUseCaseOptions struct {
	Build   *targets.Build
	Display interfaces.Display
}

func NewBuildUseCase(opts BuildUseCaseOptions) *BuildUseCase {
	return &BuildUseCase{
		build:   opts.Build,
		display: opts.Display,
	}
}

type buildStep struct {
	target  *targets.Target
	project targets.Project
}

func (u *BuildUseCase) Execute(ctx context.Context, names []string) error {
	logger := ctxlog.From(ctx)
	cfg := u.build.Config

	plan, err := u.build.Targets.Plan(names, cfg)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		return domain.ErrUnknownTarget.Wrap(goerr.New("nothing to build"))
	}

	planNames := make([]string, 0, len(plan))
	for _, t := range plan {
		planNames = append(planNames, t.Name)
	}
	logger.Debug("computed build order", slog.Any("targets", planNames))

	// Create all instances up front so configuration problems surface
	// before any work starts.
	steps := make([]buildStep, 0, len(plan))
	for _, t := range plan {
		p, _, err := u.build.Instance(t.Name)
		if err != nil {
			return err
		}
		steps = append(steps, buildStep{target: t, project: p})
	}
	for _, s := range steps {
		if err := s.project.CheckSystemDeps(ctx); err != nil {
			return err
		}
	}

	started := time.Now()
	summary := &model.Summary{}
	results := make([]*model.TargetResult, 0, len(steps))
	failed := false

	for _, s := range steps {
		result := &model.TargetResult{
			Target:      s.target.Name,
			CrossTarget: s.target.CrossTarget,
		}
		if failed && !cfg.KeepGoing {
			result.Status = model.TargetStatusSkipped
			summary.Record(result)
			results = append(results, result)
			continue
		}

		u.display.Status("Building %s", s.target.Name)
		stepStart := time.Now()
		err := s.project.Process(ctx)
		result.Duration = time.Since(stepStart).Round(time.Millisecond)

		if err != nil {
			result.Status = model.TargetStatusFailed
			result.Err = err
			failed = true
			u.display.Error(fmt.Sprintf("Building %s failed: %v", s.target.Name, err))
			logger.Error("target failed",
				slog.String("target", s.target.Name),
				slog.String("error", err.Error()),
			)
		} else {
			result.Status = model.TargetStatusSucceeded
			u.display.Status("Built %s in %s", s.target.Name, result.Duration)
		}
		summary.Record(result)
		results = append(results, result)

		if err != nil && ctx.Err() != nil {
			break
		}
	}
	summary.Duration = time.Since(started).Round(time.Second)

	u.display.ShowSummary(summary, results)

	if summary.FailureCount > 0 {
		return domain.ErrProcessFailed.Wrap(goerr.New(
			fmt.Sprintf("%d of %d targets failed", summary.FailureCount, summary.TotalTargets)))
	}
	return nil
}
