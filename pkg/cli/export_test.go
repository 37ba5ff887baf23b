package cli

// Exports for white box tests.

var (
	NewTestCommand   = newCommand
	GlobalFlags      = globalFlags
	OptionFlags      = optionFlags
	StageOptionFlags = stageOptionFlags
	ApplyGlobalFlags = applyGlobalFlags
)
