// Package model defines the domain types and value objects for the
// paddock CLI.
//
// This package contains pure data structures with no external dependencies.
// The entities (Job, RunRecord, DeviceAddress, etc.) describe a launch of
// the auto_derby automation module: which workflow to run, where the target
// device lives, and how the run ended.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
// ChildExitError is the one escape hatch from that table: it forwards the
// automation module's own exit status through the launcher unchanged.
package model
