package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestJob_String verifies that Job values produce the exact strings the
// automation module accepts as its positional argument.
func TestJob_String(t *testing.T) {
	tests := []struct {
		job      Job
		expected string
	}{
		{JobNurturing, "nurturing"},
		{JobTeamRace, "team_race"},
		{JobChampionsMeeting, "champions_meeting"},
		{JobLegendRace, "legend_race"},
		{JobDailyRace, "daily_race"},
		{JobRouletteDerby, "roulette_derby"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.job.String())
		})
	}
}

// TestJob_IsValid checks that only defined jobs pass validation.
func TestJob_IsValid(t *testing.T) {
	assert.True(t, JobNurturing.IsValid())
	assert.True(t, JobTeamRace.IsValid())
	assert.True(t, JobRouletteDerby.IsValid())
	assert.False(t, Job("speedrun").IsValid())
	assert.False(t, Job("").IsValid())
}

// TestParseJob verifies string-to-job conversion, including case
// normalization and hyphen tolerance.
func TestParseJob(t *testing.T) {
	tests := []struct {
		input    string
		expected Job
		hasError bool
	}{
		{"nurturing", JobNurturing, false},
		{"team_race", JobTeamRace, false},
		{"team-race", JobTeamRace, false},  // hyphen form
		{"NURTURING", JobNurturing, false}, // case insensitive
		{"Daily-Race", JobDailyRace, false},
		{"champions_meeting", JobChampionsMeeting, false},
		{"invalid", "", true}, // unknown value
		{"", "", true},        // empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseJob(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestRunStatus_String verifies string representation of all run states.
func TestRunStatus_String(t *testing.T) {
	tests := []struct {
		status   RunStatus
		expected string
	}{
		{StatusRunning, "running"},
		{StatusSucceeded, "succeeded"},
		{StatusFailed, "failed"},
		{StatusKilled, "killed"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

// TestRunStatus_IsValid checks that only defined status values pass validation.
func TestRunStatus_IsValid(t *testing.T) {
	assert.True(t, StatusRunning.IsValid())
	assert.True(t, StatusSucceeded.IsValid())
	assert.True(t, StatusFailed.IsValid())
	assert.True(t, StatusKilled.IsValid())
	assert.False(t, RunStatus("invalid").IsValid())
	assert.False(t, RunStatus("").IsValid())
}

// TestParseRunStatus verifies string-to-status conversion.
func TestParseRunStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected RunStatus
		hasError bool
	}{
		{"running", StatusRunning, false},
		{"succeeded", StatusSucceeded, false},
		{"failed", StatusFailed, false},
		{"killed", StatusKilled, false},
		{"Failed", StatusFailed, false}, // case insensitive
		{"invalid", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseRunStatus(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestStatusForExit verifies the exit-code-to-status derivation, in
// particular that a killed child never counts as succeeded or failed.
func TestStatusForExit(t *testing.T) {
	assert.Equal(t, StatusSucceeded, StatusForExit(0, false))
	assert.Equal(t, StatusFailed, StatusForExit(1, false))
	assert.Equal(t, StatusFailed, StatusForExit(130, false))
	assert.Equal(t, StatusKilled, StatusForExit(0, true))
	assert.Equal(t, StatusKilled, StatusForExit(137, true))
}

// TestDeviceAddress_String verifies that the rendered address is exactly
// what the child process receives in AUTO_DERBY_ADB_ADDRESS.
func TestDeviceAddress_String(t *testing.T) {
	tests := []struct {
		name     string
		addr     DeviceAddress
		expected string
	}{
		{"static address", DeviceAddress{Kind: DeviceStatic, Host: "127.0.0.1", Port: 5555}, "127.0.0.1:5555"},
		{"bluestacks address", DeviceAddress{Kind: DeviceBlueStacks, Host: "127.0.0.1", Port: 5565}, "127.0.0.1:5565"},
		{"no device", DeviceAddress{Kind: DeviceNone}, ""},
		{"zero value", DeviceAddress{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.addr.String())
		})
	}
}

// TestDeviceAddress_Validate checks address consistency rules:
// none must be empty, everything else needs host + port in range.
func TestDeviceAddress_Validate(t *testing.T) {
	tests := []struct {
		name     string
		addr     DeviceAddress
		hasError bool
	}{
		{"valid static", DeviceAddress{Kind: DeviceStatic, Host: "127.0.0.1", Port: 5555}, false},
		{"valid docker", DeviceAddress{Kind: DeviceDocker, Host: "127.0.0.1", Port: 15555}, false},
		{"valid none", DeviceAddress{Kind: DeviceNone}, false},
		{"valid zero value", DeviceAddress{}, false},
		{"none with host", DeviceAddress{Kind: DeviceNone, Host: "127.0.0.1"}, true},
		{"missing host", DeviceAddress{Kind: DeviceStatic, Port: 5555}, true},
		{"port too low", DeviceAddress{Kind: DeviceStatic, Host: "127.0.0.1", Port: 0}, true},
		{"port too high", DeviceAddress{Kind: DeviceStatic, Host: "127.0.0.1", Port: 70000}, true},
		{"unknown kind", DeviceAddress{Kind: DeviceKind("serial"), Host: "x", Port: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.addr.Validate()
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateName checks profile/emulator name validation rules:
// - Must not be empty
// - Alphanumeric + hyphens + underscores only
// - Must start and end with alphanumeric
func TestValidateName(t *testing.T) {
	tests := []struct {
		name     string
		hasError bool
	}{
		{"nurture-urara", false},   // valid: alphanumeric with hyphen
		{"a", false},               // valid: single character
		{"bluestacks_port", false}, // valid: underscore
		{"team-race-v2", false},    // valid: multiple hyphens
		{"abc123", false},          // valid: alphanumeric
		{"", true},                 // invalid: empty
		{"-nurture", true},         // invalid: starts with hyphen
		{"nurture-", true},         // invalid: ends with hyphen
		{"nurture urara", true},    // invalid: space
		{"nurture.urara", true},    // invalid: dot
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestCLIError_Error verifies message formatting with and without a
// wrapped underlying error.
func TestCLIError_Error(t *testing.T) {
	plain := NewCLIError(ExitProfileNotFound, "profile not found")
	assert.Equal(t, "profile not found", plain.Error())

	wrapped := WrapCLIError(ExitDockerNotRunning, "cannot connect to Docker", errors.New("dial unix: no such file"))
	assert.Equal(t, "cannot connect to Docker: dial unix: no such file", wrapped.Error())
}

// TestCLIError_Unwrap verifies errors.Is works through CLIError wrapping.
func TestCLIError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying failure")
	wrapped := WrapCLIError(ExitGeneralError, "operation failed", underlying)

	assert.True(t, errors.Is(wrapped, underlying))
	assert.Equal(t, underlying, wrapped.Unwrap())

	plain := NewCLIError(ExitGeneralError, "no cause")
	assert.Nil(t, plain.Unwrap())
}

// TestCLIError_ExitCodes verifies the stable exit code values. Scripts
// depend on these numbers, so changing them is a breaking change.
func TestCLIError_ExitCodes(t *testing.T) {
	assert.Equal(t, ExitCode(0), ExitSuccess)
	assert.Equal(t, ExitCode(1), ExitGeneralError)
	assert.Equal(t, ExitCode(2), ExitProgramNotFound)
	assert.Equal(t, ExitCode(3), ExitProfileNotFound)
	assert.Equal(t, ExitCode(4), ExitProfileInvalid)
	assert.Equal(t, ExitCode(5), ExitDeviceUnresolved)
	assert.Equal(t, ExitCode(6), ExitDockerNotRunning)
	assert.Equal(t, ExitCode(7), ExitUserCancelled)
}

// TestChildExitError verifies that the child's status is carried verbatim
// and that the type is detectable with errors.As through wrapping.
func TestChildExitError(t *testing.T) {
	err := NewChildExitError(3)
	assert.Equal(t, 3, err.Code)
	assert.Contains(t, err.Error(), "status 3")

	var childErr *ChildExitError
	require.True(t, errors.As(error(err), &childErr))
	assert.Equal(t, 3, childErr.Code)
}

// TestRunRecord_DurationConsistency sanity-checks that a finished record
// carries a non-negative duration matching its timestamps.
func TestRunRecord_DurationConsistency(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(95 * time.Minute)

	rec := RunRecord{
		ID:         "e9c3f5bc-0000-0000-0000-000000000000",
		Job:        JobNurturing,
		Profile:    "default",
		StartedAt:  start,
		FinishedAt: end,
		Duration:   end.Sub(start),
		ExitCode:   0,
		Status:     StatusSucceeded,
	}

	assert.GreaterOrEqual(t, rec.Duration, time.Duration(0))
	assert.Equal(t, rec.FinishedAt.Sub(rec.StartedAt), rec.Duration)
}
