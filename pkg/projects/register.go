package projects

import (
	"github.com/capbuild/capbuild/pkg/config"
	"github.com/capbuild/capbuild/pkg/targets"
)

// RegisterAll declares every built-in target spec together with its
// configuration options. It must run before the option registry is
// finalized so the options pick up config file and flag values.
func RegisterAll(tr *targets.Registry, options *config.Registry) {
	registerToolchain(tr, options)
	registerCheriBSD(tr, options)
	registerBaremetalLibc(tr, options)
	registerFirmware(tr, options)
	registerDiskImage(tr, options)
	registerRunSim(tr, options)
}
