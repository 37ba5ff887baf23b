package model

import "time"

// Command describes one external process invocation.
type Command struct {
	Path    string        // executable name or path
	Args    []string      // arguments, not including Path
	Dir     string        // working directory, empty for inherited
	Env     []string      // KEY=VALUE pairs appended to the inherited environment
	Timeout time.Duration // zero means no timeout

	// Capture collects stdout into the result instead of streaming it
	// to the console.
	Capture bool

	// VerboseOnly suppresses the command echo unless verbose output is
	// enabled.
	VerboseOnly bool
}

// CommandResult holds the outcome of a completed command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration

	// Pretended is set when the command was only echoed because dry-run
	// mode is active. Stdout and Stderr are empty in that case.
	Pretended bool
}

// CommandLine returns the full argument vector including the executable.
func (c Command) CommandLine() []string {
	return append([]string{c.Path}, c.Args...)
}
