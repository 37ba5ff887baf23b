package targets_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/domain/model"
	"github.com/capbuild/capbuild/pkg/targets"
)

func newBuild(t *testing.T, register func(tr *targets.Registry, options *config.Registry)) *targets.Build {
	t.Helper()
	options := config.NewRegistry()
	tr := targets.NewRegistry(options)
	register(tr, options)
	cfg := &config.Config{}
	gt.NoError(t, options.Finalize(cfg))
	return targets.NewBuild(cfg, options, tr, targets.Collaborators{})
}

func TestInstanceSingleton(t *testing.T) {
	created := 0
	b := newBuild(t, func(tr *targets.Registry, _ *config.Registry) {
		tr.Register(&targets.Spec{
			Name:    "os-image",
			Targets: []model.CrossTarget{model.RISCV64Purecap, model.MorelloPurecap},
			Factory: func(b *targets.Build, tgt *targets.Target) (targets.Project, error) {
				created++
				return &stubProject{name: tgt.Name}, nil
			},
		})
	})

	p1, tgt, err := b.Instance("os-image-morello-purecap")
	gt.NoError(t, err)
	gt.Equal(t, tgt.CrossTarget, model.MorelloPurecap)

	p2, _, err := b.Instance("os-image-morello-purecap")
	gt.NoError(t, err)
	gt.True(t, p1 == p2)
	gt.Equal(t, created, 1)

	t.Run("Other variants get their own instance", func(t *testing.T) {
		p3, _, err := b.Instance("os-image-riscv64-purecap")
		gt.NoError(t, err)
		gt.True(t, p1 != p3)
		gt.Equal(t, created, 2)
	})

	t.Run("Alias shares the default variant instance", func(t *testing.T) {
		p4, tgt, err := b.Instance("os-image")
		gt.NoError(t, err)
		gt.Equal(t, tgt.Name, "os-image-riscv64-purecap")
		p5, err := b.InstanceFor("os-image", model.RISCV64Purecap)
		gt.NoError(t, err)
		gt.True(t, p4 == p5)
	})
}

func TestInstanceFor(t *testing.T) {
	b := newBuild(t, func(tr *targets.Registry, _ *config.Registry) {
		tr.Register(&targets.Spec{
			Name:    "os-image",
			Targets: []model.CrossTarget{model.RISCV64Purecap, model.MorelloPurecap},
			Factory: stubFactory,
		})
	})

	p1, err := b.InstanceFor("os-image", model.MorelloPurecap)
	gt.NoError(t, err)
	p2, _, err := b.Instance("os-image-morello-purecap")
	gt.NoError(t, err)
	gt.True(t, p1 == p2)
}

func TestInstanceRecursionPanics(t *testing.T) {
	b := newBuild(t, func(tr *targets.Registry, _ *config.Registry) {
		tr.Register(&targets.Spec{
			Name: "selfish",
			Factory: func(bb *targets.Build, tgt *targets.Target) (targets.Project, error) {
				_, _, err := bb.Instance("selfish")
				return nil, err
			},
		})
	})

	defer func() {
		r := recover()
		gt.NotNil(t, r)
		msg, ok := r.(string)
		gt.True(t, ok)
		gt.True(t, strings.Contains(msg, "selfish -> selfish"))
	}()
	_, _, _ = b.Instance("selfish")
}
