package projects

// Exports for white box tests.

type FvpParams = fvpParams

func (f *FvpParams) Args() []string { return f.args }

var (
	ImageFileMode        = imageFileMode
	DefaultHostname      = defaultHostname
	CheribsdTargetPair   = cheribsdTargetPair
	CheribsdKernConf     = cheribsdKernConf
	OptionNameForImage   = optionNameForImage
	DefaultSSHPort       = defaultSSHPort
	DefaultAssetPattern  = defaultAssetPattern
	ToolHintInstructions = ToolHint.instructions
)

func Prefixed(f *FvpParams, prefix string) func(key, value string) {
	return f.prefixed(prefix)
}
