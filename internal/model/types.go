// Package model defines the domain types for the paddock CLI.
//
// All entities in this package are pure data structures used for passing
// data between components: jobs, run records, device addresses, exit codes,
// and the CLIError type that carries exit codes to the process boundary.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Job identifies which auto_derby workflow the child process should run.
// The value is passed verbatim as the single positional argument of the
// automation module, so the constants below must match the module's own
// job names exactly.
type Job string

const (
	// JobNurturing runs the single-mode nurturing workflow. This is the
	// default job and the one the launcher was originally built around.
	JobNurturing Job = "nurturing"

	// JobTeamRace runs team race stadium battles.
	JobTeamRace Job = "team_race"

	// JobChampionsMeeting runs champions meeting entries.
	JobChampionsMeeting Job = "champions_meeting"

	// JobLegendRace runs legend race challenges.
	JobLegendRace Job = "legend_race"

	// JobDailyRace runs the daily race for money/shards.
	JobDailyRace Job = "daily_race"

	// JobRouletteDerby runs the roulette derby minigame.
	JobRouletteDerby Job = "roulette_derby"
)

// DefaultJob is used when neither the command line nor the profile
// specifies a job.
const DefaultJob = JobNurturing

// String returns the string representation of Job.
// This method satisfies the fmt.Stringer interface, enabling
// human-readable output in CLI commands and logging.
func (j Job) String() string {
	return string(j)
}

// IsValid checks whether the Job value is one of the predefined jobs
// the automation module understands.
func (j Job) IsValid() bool {
	switch j {
	case JobNurturing, JobTeamRace, JobChampionsMeeting,
		JobLegendRace, JobDailyRace, JobRouletteDerby:
		return true
	default:
		return false
	}
}

// ParseJob converts a string to a Job. Hyphens are accepted in place of
// underscores ("team-race" == "team_race") so shell users don't have to
// escape anything. Returns an error if the string does not match any job.
func ParseJob(s string) (Job, error) {
	job := Job(strings.ReplaceAll(strings.ToLower(s), "-", "_"))
	if !job.IsValid() {
		return "", fmt.Errorf("invalid job: %q (valid: nurturing, team_race, champions_meeting, legend_race, daily_race, roulette_derby)", s)
	}
	return job, nil
}

// RunStatus represents the lifecycle state of a single launch.
// The state transitions are:
//
//	[Spawned] → Running → Succeeded | Failed | Killed
type RunStatus string

const (
	// StatusRunning indicates the child process is currently executing.
	StatusRunning RunStatus = "running"

	// StatusSucceeded indicates the child exited with status zero.
	StatusSucceeded RunStatus = "succeeded"

	// StatusFailed indicates the child exited with a nonzero status.
	StatusFailed RunStatus = "failed"

	// StatusKilled indicates the launcher terminated the child, either
	// because of a signal or because watch mode requested a restart.
	StatusKilled RunStatus = "killed"
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsValid checks whether the RunStatus value is one of the
// predefined valid states.
func (s RunStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusSucceeded, StatusFailed, StatusKilled:
		return true
	default:
		return false
	}
}

// ParseRunStatus converts a string to a RunStatus.
// Returns an error if the string does not match any valid status.
func ParseRunStatus(s string) (RunStatus, error) {
	status := RunStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid run status: %q (valid: running, succeeded, failed, killed)", s)
	}
	return status, nil
}

// StatusForExit derives the terminal RunStatus for a finished child.
// killed takes precedence over the exit code because a terminated child
// reports an arbitrary nonzero status that says nothing about the workflow.
func StatusForExit(exitCode int, killed bool) RunStatus {
	switch {
	case killed:
		return StatusKilled
	case exitCode == 0:
		return StatusSucceeded
	default:
		return StatusFailed
	}
}

// DeviceKind classifies how an ADB device address was specified.
// The kind records provenance only; once resolved, every non-empty
// address renders as "host:port" regardless of kind.
type DeviceKind string

const (
	// DeviceNone means no device is configured. The address renders as
	// the empty string, which selects the automation module's desktop
	// client instead of ADB.
	DeviceNone DeviceKind = "none"

	// DeviceStatic is a literal "host:port" address from the profile.
	DeviceStatic DeviceKind = "static"

	// DeviceAuto means the address was found by probing the well-known
	// local emulator ADB ports.
	DeviceAuto DeviceKind = "auto"

	// DeviceBlueStacks means the port was read from a BlueStacks
	// instance configuration file.
	DeviceBlueStacks DeviceKind = "bluestacks"

	// DeviceDocker means the address points at a paddock-managed
	// emulator container's published ADB port.
	DeviceDocker DeviceKind = "docker"
)

// String returns the string representation of DeviceKind.
func (k DeviceKind) String() string {
	return string(k)
}

// IsValid checks whether the DeviceKind value is one of the
// predefined kinds.
func (k DeviceKind) IsValid() bool {
	switch k {
	case DeviceNone, DeviceStatic, DeviceAuto, DeviceBlueStacks, DeviceDocker:
		return true
	default:
		return false
	}
}

// DeviceAddress is a resolved ADB endpoint. It is the value rendered into
// AUTO_DERBY_ADB_ADDRESS, so String() must produce exactly what the
// automation module expects: "host:port", or "" when no device is set.
type DeviceAddress struct {
	// Kind records how the address was obtained.
	Kind DeviceKind `json:"kind"`

	// Host is the device hostname or IP. Empty only for DeviceNone.
	Host string `json:"host,omitempty"`

	// Port is the ADB TCP port (1-65535). Zero only for DeviceNone.
	Port int `json:"port,omitempty"`
}

// String renders the address in the "host:port" form consumed by the
// child process, or the empty string for DeviceNone.
func (a DeviceAddress) String() string {
	if a.Kind == DeviceNone || a.Kind == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Validate checks whether the DeviceAddress has consistent field values.
// DeviceNone must be empty; every other kind needs a host and a port in
// the valid TCP range.
func (a DeviceAddress) Validate() error {
	if a.Kind == DeviceNone || a.Kind == "" {
		if a.Host != "" || a.Port != 0 {
			return fmt.Errorf("device address: host/port must be empty when no device is configured")
		}
		return nil
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("device address: invalid kind %q", a.Kind)
	}
	if a.Host == "" {
		return fmt.Errorf("device address: host must not be empty")
	}
	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("device address: port %d out of range (1-65535)", a.Port)
	}
	return nil
}

// RunRecord captures a single launch of the automation module, persisted
// in the local state database and shown by the history command.
type RunRecord struct {
	// ID is a UUID assigned when the child is spawned.
	ID string `json:"id"`

	// Job is the workflow the child was asked to run.
	Job Job `json:"job"`

	// Profile is the name of the profile the launch was rendered from.
	Profile string `json:"profile"`

	// Device is the resolved ADB address passed to the child
	// (empty for the desktop client).
	Device string `json:"device,omitempty"`

	// PID is the OS process id of the child.
	PID int `json:"pid"`

	// StartedAt is when the child process was spawned.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the child exited. Zero while still running.
	FinishedAt time.Time `json:"finishedAt,omitempty"`

	// Duration is the child's wall-clock run time.
	Duration time.Duration `json:"duration"`

	// ExitCode is the child's verbatim exit status.
	ExitCode int `json:"exitCode"`

	// Status is the derived lifecycle state.
	Status RunStatus `json:"status"`

	// OutputTail holds the last bytes of the child's combined output,
	// capped by the runner. Useful for diagnosing failed runs without
	// keeping full logs in the database.
	OutputTail string `json:"outputTail,omitempty"`

	// OutputTruncated reports whether OutputTail was clipped.
	OutputTruncated bool `json:"outputTruncated,omitempty"`
}

// nameRegex validates profile and emulator names: alphanumeric plus
// hyphens/underscores, must start and end with alphanumeric.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateName checks if the given name is valid for profiles and
// managed emulator instances. Valid names contain only alphanumeric
// characters, hyphens and underscores, and start/end with alphanumeric.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid name %q: must contain only alphanumeric characters, hyphens and underscores, and start/end with alphanumeric", name)
	}
	return nil
}

// ExitCode defines the launcher's own CLI exit codes. These codes allow
// scripts and CI systems to programmatically determine why a command
// failed. A child process that ran to completion bypasses this table:
// its exit status passes through verbatim (see ChildExitError).
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitProgramNotFound indicates the automation program (or its
	// interpreter) could not be located.
	ExitProgramNotFound ExitCode = 2

	// ExitProfileNotFound indicates no profile file could be found.
	ExitProfileNotFound ExitCode = 3

	// ExitProfileInvalid indicates the profile failed validation.
	ExitProfileInvalid ExitCode = 4

	// ExitDeviceUnresolved indicates the ADB device address could not
	// be resolved or the device was unreachable.
	ExitDeviceUnresolved ExitCode = 5

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// (emulator commands and docker:// addresses only).
	ExitDockerNotRunning ExitCode = 6

	// ExitUserCancelled indicates the user cancelled an interactive prompt.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ChildExitError reports that the automation module ran and exited with a
// nonzero status. The launcher does not interpret child failures: the CLI
// layer recognizes this type, prints nothing (the child already wrote its
// own output), and exits with the same status.
type ChildExitError struct {
	// Code is the child's verbatim exit status.
	Code int
}

// Error satisfies the error interface.
func (e *ChildExitError) Error() string {
	return fmt.Sprintf("automation module exited with status %d", e.Code)
}

// NewChildExitError creates a ChildExitError for the given exit status.
func NewChildExitError(code int) *ChildExitError {
	return &ChildExitError{Code: code}
}
