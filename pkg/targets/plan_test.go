package targets_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

func TestPlanOrder(t *testing.T) {
	tr, _ := newRegistries()
	tr.Register(&targets.Spec{Name: "toolchain", Factory: stubFactory})
	tr.Register(&targets.Spec{
		Name:    "os-base",
		Targets: []model.CrossTarget{model.RISCV64Purecap, model.MorelloPurecap},
		Deps:    []string{"toolchain"},
		Factory: stubFactory,
	})
	tr.Register(&targets.Spec{
		Name:    "os-image",
		Targets: []model.CrossTarget{model.RISCV64Purecap, model.MorelloPurecap},
		Deps:    []string{"os-base"},
		Factory: stubFactory,
	})

	t.Run("Dependencies come first", func(t *testing.T) {
		cfg := &config.Config{IncludeDependencies: true}
		plan, err := tr.Plan([]string{"os-image-morello-purecap"}, cfg)
		gt.NoError(t, err)
		gt.Equal(t, targetNames(plan), []string{
			"toolchain",
			"os-base-morello-purecap",
			"os-image-morello-purecap",
		})
	})

	t.Run("Without include-dependencies only roots remain", func(t *testing.T) {
		cfg := &config.Config{}
		plan, err := tr.Plan([]string{"os-image-morello-purecap", "toolchain"}, cfg)
		gt.NoError(t, err)
		gt.Equal(t, targetNames(plan), []string{
			"toolchain",
			"os-image-morello-purecap",
		})
	})

	t.Run("Shared dependencies build once", func(t *testing.T) {
		cfg := &config.Config{IncludeDependencies: true}
		plan, err := tr.Plan([]string{
			"os-image-morello-purecap",
			"os-image-riscv64-purecap",
		}, cfg)
		gt.NoError(t, err)
		gt.Equal(t, targetNames(plan), []string{
			"toolchain",
			"os-base-morello-purecap",
			"os-image-morello-purecap",
			"os-base-riscv64-purecap",
			"os-image-riscv64-purecap",
		})
	})
}

func TestPlanCrossTargetMapping(t *testing.T) {
	tr, _ := newRegistries()
	tr.Register(&targets.Spec{
		Name:    "lib",
		Targets: []model.CrossTarget{model.RISCV64, model.RISCV64Purecap},
		Factory: stubFactory,
	})
	tr.Register(&targets.Spec{
		Name:    "app",
		Targets: []model.CrossTarget{model.RISCV64Purecap, model.MorelloPurecap},
		Deps:    []string{"lib"},
		Factory: stubFactory,
	})

	t.Run("Dependency follows the dependent's variant", func(t *testing.T) {
		cfg := &config.Config{IncludeDependencies: true}
		plan, err := tr.Plan([]string{"app-riscv64-purecap"}, cfg)
		gt.NoError(t, err)
		gt.Equal(t, targetNames(plan), []string{"lib-riscv64-purecap", "app-riscv64-purecap"})
	})

	t.Run("Unsupported variant falls back to the default", func(t *testing.T) {
		cfg := &config.Config{IncludeDependencies: true}
		plan, err := tr.Plan([]string{"app-morello-purecap"}, cfg)
		gt.NoError(t, err)
		gt.Equal(t, targetNames(plan), []string{"lib-riscv64", "app-morello-purecap"})
	})
}

func TestPlanComputedDeps(t *testing.T) {
	tr, _ := newRegistries()
	tr.Register(&targets.Spec{Name: "firmware", Factory: stubFactory})
	tr.Register(&targets.Spec{
		Name:    "sim",
		Targets: []model.CrossTarget{model.MorelloHybrid, model.MorelloPurecap},
		DepsFunc: func(cfg *config.Config, ct model.CrossTarget) []string {
			if ct.IsAArch64(true) {
				return []string{"firmware"}
			}
			return nil
		},
		Factory: stubFactory,
	})

	cfg := &config.Config{IncludeDependencies: true}
	plan, err := tr.Plan([]string{"sim-morello-purecap"}, cfg)
	gt.NoError(t, err)
	gt.Equal(t, targetNames(plan), []string{"firmware", "sim-morello-purecap"})
}

func TestPlanCycle(t *testing.T) {
	tr, _ := newRegistries()
	tr.Register(&targets.Spec{Name: "a", Deps: []string{"b"}, Factory: stubFactory})
	tr.Register(&targets.Spec{Name: "b", Deps: []string{"c"}, Factory: stubFactory})
	tr.Register(&targets.Spec{Name: "c", Deps: []string{"a"}, Factory: stubFactory})

	_, err := tr.Plan([]string{"a"}, &config.Config{IncludeDependencies: true})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, domain.ErrDependencyCycle))
	gt.True(t, strings.Contains(err.Error(), `"a" depends on "b"`))
	gt.True(t, strings.Contains(err.Error(), `"c" depends on "a"`))
}

func TestPlanUnknownDependency(t *testing.T) {
	tr, _ := newRegistries()
	tr.Register(&targets.Spec{Name: "a", Deps: []string{"missing"}, Factory: stubFactory})

	_, err := tr.Plan([]string{"a"}, &config.Config{IncludeDependencies: true})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, domain.ErrUnknownTarget))
	gt.True(t, strings.Contains(err.Error(), `"a"`))
}
