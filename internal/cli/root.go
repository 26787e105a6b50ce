// Package cli implements the cobra-based CLI commands for paddock.
//
// Each subcommand (run, profiles, doctor, emulator, history, update,
// gamedata) is defined in its own file within this package. This file
// defines the root command that serves as the parent for all subcommands
// and handles global flags.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/paddock/internal/log"
	"github.com/mmr-tortoise/paddock/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON format for machine consumption.
	// When false (default), output uses human-readable text format.
	jsonOutput bool

	// verbose enables detailed logging output for debugging.
	// When true, debug-level log lines are printed to stderr.
	verbose bool
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action — it only provides
// help text and global flags. Actual functionality is provided by
// subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "paddock",
		Short: "Launcher and supervisor for the auto_derby automation module",
		Long: `paddock prepares the environment the auto_derby automation module expects
and launches it: debug artifact paths, plugin selection, and the ADB device
address all come from a profile file (or flags) and are rendered into the
AUTO_DERBY_* environment variables the module reads.

Beyond launching, paddock resolves emulator devices (static addresses,
port probing, BlueStacks instances, managed Docker emulators), keeps a
local run history, and can supervise the module with restart-on-failure
and profile-watch modes.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// Logging is initialized before any subcommand runs so every
		// RunE body can use zap's globals.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := log.Init(verbose, ""); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			return nil
		},
	}

	// PersistentFlags are inherited by all subcommands. This is the cobra
	// mechanism for global flags — any flag defined here is automatically
	// available in every subcommand without re-declaration.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Register subcommands. Each subcommand is defined in its own file
	// (run.go, profiles.go, etc.) and returns a *cobra.Command.
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewProfilesCommand())
	rootCmd.AddCommand(NewDoctorCommand())
	rootCmd.AddCommand(NewEmulatorCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewUpdateCommand())
	rootCmd.AddCommand(NewGamedataCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into appropriate OS exit codes. CLIError types carry their own exit
// codes; a ChildExitError means the automation module itself failed, so
// its status passes through silently and verbatim — the child already
// printed whatever it had to say. Other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	err := rootCmd.Execute()
	_ = log.Sync()
	if err == nil {
		return
	}

	var childErr *model.ChildExitError
	if errors.As(err, &childErr) {
		os.Exit(childErr.Code)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		// The wrapped cause is implementation detail; only show it when
		// the user asked for verbosity.
		underlying := cliErr.Err
		if !verbose {
			underlying = nil
		}
		printError(cliErr.Message, underlying)
		os.Exit(int(cliErr.Code))
	}

	// Generic error — exit with code 1.
	printError(err.Error(), nil)
	os.Exit(int(model.ExitGeneralError))
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// We write to stderr for errors, even in JSON mode, because stdout
		// is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
