package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// requireShell skips tests that need a POSIX shell to spawn real children.
func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test spawns children through /bin/sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// TestLaunch_Success verifies a clean run: exit code zero, output teed to
// the caller's writer and captured in the tail, and the job name appended
// as the final argument.
func TestLaunch_Success(t *testing.T) {
	requireShell(t)

	var stdout bytes.Buffer
	res, err := Launch(context.Background(), Spec{
		Program: "sh",
		Args:    []string{"-c", `echo "running $0"`},
		Job:     model.JobNurturing,
		Stdout:  &stdout,
		Stderr:  &stdout,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Killed)
	assert.NotEmpty(t, res.ID)
	assert.NotZero(t, res.PID)
	// sh -c makes the trailing job argument $0, proving it was appended.
	assert.Equal(t, "running nurturing\n", stdout.String())
	assert.Equal(t, "running nurturing\n", res.OutputTail)
	assert.False(t, res.Truncated)
}

// TestLaunch_NonzeroExit verifies a failed child produces a Result with
// its verbatim status and a nil error: failure of the child is not a
// failure of the launcher.
func TestLaunch_NonzeroExit(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	res, err := Launch(context.Background(), Spec{
		Program: "sh",
		Args:    []string{"-c", "exit 42"},
		Job:     model.JobNurturing,
		Stdout:  &out,
		Stderr:  &out,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res.ExitCode)
	assert.False(t, res.Killed)
}

// TestLaunch_EnvAppended verifies the composed environment reaches the
// child and overrides an inherited variable of the same name.
func TestLaunch_EnvAppended(t *testing.T) {
	requireShell(t)

	t.Setenv("PADDOCK_TEST_VAR", "inherited")

	var out bytes.Buffer
	res, err := Launch(context.Background(), Spec{
		Program: "sh",
		Args:    []string{"-c", `echo "$PADDOCK_TEST_VAR"`},
		Job:     model.JobNurturing,
		Env:     []string{"PADDOCK_TEST_VAR=composed"},
		Stdout:  &out,
		Stderr:  &out,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "composed\n", out.String())
}

// TestLaunch_ProgramMissing verifies a spawn failure maps to the
// program-not-found exit code.
func TestLaunch_ProgramMissing(t *testing.T) {
	_, err := Launch(context.Background(), Spec{
		Program: "/nonexistent/paddock-test-program",
		Job:     model.JobNurturing,
	})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitProgramNotFound, cliErr.Code)
}

// TestLaunch_Cancelled verifies context cancellation terminates the child
// and marks the result as killed.
func TestLaunch_Cancelled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	var out bytes.Buffer
	res, err := Launch(ctx, Spec{
		Program:     "sh",
		Args:        []string{"-c", "sleep 30"},
		Job:         model.JobNurturing,
		Stdout:      &out,
		Stderr:      &out,
		GracePeriod: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.Killed)
	assert.Less(t, res.Duration, 10*time.Second)
}

// TestTailWriter_KeepsEnd verifies only the newest bytes survive the cap.
func TestTailWriter_KeepsEnd(t *testing.T) {
	w := newTailWriter(10)

	n, err := w.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	tail, truncated := w.Tail()
	assert.Equal(t, "0123456789", tail)
	assert.False(t, truncated)

	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	tail, truncated = w.Tail()
	assert.Equal(t, "3456789abc", tail)
	assert.True(t, truncated)
}

// TestTailWriter_SingleOversizedWrite verifies one write larger than the
// cap keeps only its end.
func TestTailWriter_SingleOversizedWrite(t *testing.T) {
	w := newTailWriter(4)

	_, err := w.Write([]byte(strings.Repeat("x", 100) + "tail"))
	require.NoError(t, err)

	tail, truncated := w.Tail()
	assert.Equal(t, "tail", tail)
	assert.True(t, truncated)
}
