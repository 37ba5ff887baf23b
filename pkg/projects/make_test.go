package projects_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/capbuild/capbuild/pkg/projects"
)

func TestMakeArgs(t *testing.T) {
	t.Run("Variables keep their order", func(t *testing.T) {
		m := projects.NewMakeArgs("bmake")
		m.Set("TARGET", "arm64")
		m.Set("TARGET_ARCH", "aarch64c")
		gt.Equal(t, m.List(), []string{"TARGET=arm64", "TARGET_ARCH=aarch64c"})
	})

	t.Run("Overriding keeps the position", func(t *testing.T) {
		m := projects.NewMakeArgs("bmake")
		m.Set("TARGET", "arm64")
		m.Set("DESTDIR", "/tmp/rootfs")
		m.Set("TARGET", "riscv")
		gt.Equal(t, m.List(), []string{"TARGET=riscv", "DESTDIR=/tmp/rootfs"})
	})

	t.Run("Jobs and flags come before variables", func(t *testing.T) {
		m := projects.NewMakeArgs("bmake")
		m.SetJobs(8)
		m.AddFlags("-DNO_ROOT")
		m.Set("DESTDIR", "/tmp/rootfs")
		gt.Equal(t, m.List("installworld"),
			[]string{"-j8", "-DNO_ROOT", "DESTDIR=/tmp/rootfs", "installworld"})
	})

	t.Run("Zero jobs omits the flag", func(t *testing.T) {
		m := projects.NewMakeArgs("make")
		gt.Equal(t, m.List("all"), []string{"all"})
	})

	t.Run("SetBool renders yes and no", func(t *testing.T) {
		m := projects.NewMakeArgs("make")
		m.SetBool("WITH_DEBUG", true)
		m.SetBool("WITH_TESTS", false)
		gt.Equal(t, m.List(), []string{"WITH_DEBUG=yes", "WITH_TESTS=no"})
	})

	t.Run("Environment", func(t *testing.T) {
		m := projects.NewMakeArgs("bmake")
		m.SetEnv("MAKEOBJDIRPREFIX", "/tmp/build")
		m.AddEnv("CC=clang", "LD=ld.lld")
		gt.Equal(t, m.Env(),
			[]string{"MAKEOBJDIRPREFIX=/tmp/build", "CC=clang", "LD=ld.lld"})
	})

	t.Run("Command", func(t *testing.T) {
		gt.Equal(t, projects.NewMakeArgs("gmake").Command(), "gmake")
	})
}
