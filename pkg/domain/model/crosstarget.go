package model

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
)

// ArchFamily is the processor family a cross target compiles for.
type ArchFamily string

const (
	ArchAArch64 ArchFamily = "aarch64"
	ArchRISCV64 ArchFamily = "riscv64"
	ArchMIPS64  ArchFamily = "mips64"
	ArchX86_64  ArchFamily = "x86_64"
)

// WordSize returns the integer register width in bytes. Every supported
// family is 64 bit.
func (a ArchFamily) WordSize() int { return 8 }

// TargetOS is the operating system the produced artifacts run on.
type TargetOS string

const (
	OSHost      TargetOS = "host"
	OSCheriBSD  TargetOS = "cheribsd"
	OSBaremetal TargetOS = "baremetal"
)

// CapABI selects how CHERI capabilities are used by compiled code.
// Plain code has no capability awareness, hybrid code mixes integer
// pointers with annotated capabilities, and purecap code uses
// capabilities for every pointer.
type CapABI string

const (
	ABIPlain   CapABI = "plain"
	ABIHybrid  CapABI = "hybrid"
	ABIPurecap CapABI = "purecap"
)

// CrossTarget identifies one architecture/OS/ABI combination a build
// target can be instantiated for. The set of valid cross targets is
// fixed at startup; values are compared by Name.
type CrossTarget struct {
	Name string
	Arch ArchFamily
	OS   TargetOS
	ABI  CapABI
}

var (
	crossTargetList []CrossTarget
	crossTargetMap  = map[string]CrossTarget{}
)

var (
	Native                  = newCrossTarget("native", hostArch(), OSHost, ABIPlain)
	RISCV64                 = newCrossTarget("riscv64", ArchRISCV64, OSCheriBSD, ABIPlain)
	RISCV64Purecap          = newCrossTarget("riscv64-purecap", ArchRISCV64, OSCheriBSD, ABIPurecap)
	MorelloHybrid           = newCrossTarget("morello-hybrid", ArchAArch64, OSCheriBSD, ABIHybrid)
	MorelloPurecap          = newCrossTarget("morello-purecap", ArchAArch64, OSCheriBSD, ABIPurecap)
	BaremetalRISCV64        = newCrossTarget("baremetal-riscv64", ArchRISCV64, OSBaremetal, ABIPlain)
	BaremetalRISCV64Purecap = newCrossTarget("baremetal-riscv64-purecap", ArchRISCV64, OSBaremetal, ABIPurecap)
)

func newCrossTarget(name string, arch ArchFamily, os TargetOS, abi CapABI) CrossTarget {
	if _, ok := crossTargetMap[name]; ok {
		panic(fmt.Sprintf("cross target %q registered twice", name))
	}
	ct := CrossTarget{Name: name, Arch: arch, OS: os, ABI: abi}
	crossTargetList = append(crossTargetList, ct)
	crossTargetMap[name] = ct
	return ct
}

func hostArch() ArchFamily {
	switch runtime.GOARCH {
	case "arm64":
		return ArchAArch64
	case "riscv64":
		return ArchRISCV64
	default:
		return ArchX86_64
	}
}

// ParseCrossTarget looks up a cross target by its registered name.
func ParseCrossTarget(name string) (CrossTarget, bool) {
	ct, ok := crossTargetMap[name]
	return ct, ok
}

// CrossTargets returns all registered cross targets in registration order.
func CrossTargets() []CrossTarget {
	return slices.Clone(crossTargetList)
}

// CrossTargetNames returns the names of all registered cross targets.
func CrossTargetNames() []string {
	names := make([]string, 0, len(crossTargetList))
	for _, ct := range crossTargetList {
		names = append(names, ct.Name)
	}
	return names
}

// CrossTargetFromSuffix extracts the cross target a suffixed target
// name was built for, picking the longest matching suffix so that
// "-riscv64-purecap" wins over "-riscv64".
func CrossTargetFromSuffix(name string) (CrossTarget, bool) {
	var best CrossTarget
	found := false
	for _, ct := range crossTargetList {
		if !strings.HasSuffix(name, ct.Suffix()) {
			continue
		}
		if !found || len(ct.Name) > len(best.Name) {
			best = ct
			found = true
		}
	}
	return best, found
}

func (t CrossTarget) String() string { return t.Name }

// Suffix is appended to a base target name to form the per-architecture
// variant, e.g. "disk-image" + Suffix() -> "disk-image-morello-purecap".
func (t CrossTarget) Suffix() string { return "-" + t.Name }

func (t CrossTarget) IsNative() bool    { return t.OS == OSHost }
func (t CrossTarget) IsCheriBSD() bool  { return t.OS == OSCheriBSD }
func (t CrossTarget) IsBaremetal() bool { return t.OS == OSBaremetal }
func (t CrossTarget) IsPurecap() bool   { return t.ABI == ABIPurecap }
func (t CrossTarget) IsHybrid() bool    { return t.ABI == ABIHybrid }

// PointerSize returns the width of a pointer in bytes. Purecap code
// stores every pointer as a capability, twice the integer word size.
func (t CrossTarget) PointerSize() int {
	if t.ABI == ABIPurecap {
		return 2 * t.Arch.WordSize()
	}
	return t.Arch.WordSize()
}

// IsAArch64 reports whether the target compiles for AArch64. Purecap
// variants only count when includePurecap is set, since much AArch64
// handling does not apply to pure-capability code.
func (t CrossTarget) IsAArch64(includePurecap bool) bool {
	if t.ABI == ABIPurecap && !includePurecap {
		return false
	}
	return t.Arch == ArchAArch64
}

// IsRISCV reports whether the target compiles for RISC-V, with the same
// purecap gating as IsAArch64.
func (t CrossTarget) IsRISCV(includePurecap bool) bool {
	if t.ABI == ABIPurecap && !includePurecap {
		return false
	}
	return t.Arch == ArchRISCV64
}

// Triple returns the LLVM target triple used when cross compiling for
// this target. Native targets resolve against the host OS.
func (t CrossTarget) Triple() string {
	arch := string(t.Arch)
	switch t.OS {
	case OSCheriBSD:
		return arch + "-unknown-freebsd14"
	case OSBaremetal:
		return arch + "-unknown-elf"
	default:
		if runtime.GOOS == "darwin" {
			return arch + "-apple-darwin"
		}
		return arch + "-unknown-linux-gnu"
	}
}

func (t CrossTarget) MarshalText() ([]byte, error) {
	return []byte(t.Name), nil
}

func (t *CrossTarget) UnmarshalText(text []byte) error {
	if ct, ok := crossTargetMap[string(text)]; ok {
		*t = ct
		return nil
	}
	return fmt.Errorf("unknown cross target %q (known targets: %s)",
		text, strings.Join(CrossTargetNames(), ", "))
}
