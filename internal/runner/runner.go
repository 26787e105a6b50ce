package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// DefaultTailLimit caps the combined-output tail kept for the run record.
// 16 KiB covers the interesting end of a failed run without bloating the
// history database.
const DefaultTailLimit = 16 * 1024

// DefaultGracePeriod is how long a cancelled child gets between SIGTERM
// and SIGKILL.
const DefaultGracePeriod = 10 * time.Second

// Spec describes one launch of the automation module.
type Spec struct {
	// Program is the resolved executable path (see Finder).
	Program string

	// Args are the arguments placed before the job argument
	// (typically "-m auto_derby").
	Args []string

	// Job is appended as the child's single positional job argument.
	Job model.Job

	// Env holds the composed KEY=VALUE entries appended after the
	// parent's environment, so they win on duplicate keys.
	Env []string

	// Workdir is the child's working directory. Empty inherits ours.
	Workdir string

	// Stdout and Stderr receive the child's streams in addition to the
	// tail capture. Nil defaults to the launcher's own stdout/stderr.
	Stdout io.Writer
	Stderr io.Writer

	// TailLimit overrides DefaultTailLimit when positive.
	TailLimit int

	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration
}

// Result reports how a launch went. A nonzero ExitCode is not an error
// here: the child ran and reported itself, and the launcher passes that
// through untouched.
type Result struct {
	// ID is the run's UUID, assigned at spawn time.
	ID string

	// PID is the child's OS process id.
	PID int

	// ExitCode is the child's verbatim exit status.
	ExitCode int

	// StartedAt is when the child was spawned.
	StartedAt time.Time

	// Duration is the child's wall-clock run time.
	Duration time.Duration

	// OutputTail holds the last bytes of the combined output.
	OutputTail string

	// Truncated reports whether OutputTail was clipped.
	Truncated bool

	// Killed reports that the launcher terminated the child (signal or
	// watch-mode restart) rather than the child exiting on its own.
	Killed bool
}

// Launch spawns the automation module and blocks until it exits.
//
// argv is spec.Args plus exactly one job argument. The environment is the
// parent's os.Environ() with spec.Env appended. Both output streams tee
// into a bounded tail buffer for the run record.
//
// Cancelling ctx sends SIGTERM (kill on Windows) and escalates to SIGKILL
// after the grace period. Errors are returned only when the child could
// not be spawned at all; a child that ran and failed produces a Result
// with its exit code and a nil error.
func Launch(ctx context.Context, spec Spec) (Result, error) {
	args := make([]string, 0, len(spec.Args)+1)
	args = append(args, spec.Args...)
	args = append(args, spec.Job.String())

	cmd := exec.CommandContext(ctx, spec.Program, args...)
	cmd.Dir = spec.Workdir
	cmd.Env = append(os.Environ(), spec.Env...)

	limit := spec.TailLimit
	if limit <= 0 {
		limit = DefaultTailLimit
	}
	tail := newTailWriter(limit)

	stdout := spec.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := spec.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	cmd.Stdout = io.MultiWriter(stdout, tail)
	cmd.Stderr = io.MultiWriter(stderr, tail)

	grace := spec.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	// Ask the child to shut down cleanly first; WaitDelay escalates to
	// SIGKILL when it ignores us.
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace

	result := Result{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	if err := cmd.Start(); err != nil {
		return result, model.WrapCLIError(
			model.ExitProgramNotFound,
			fmt.Sprintf("failed to start %s", spec.Program),
			err,
		)
	}
	result.PID = cmd.Process.Pid

	zap.S().Debugf("spawned %s (pid %d) job=%s", spec.Program, result.PID, spec.Job)

	waitErr := cmd.Wait()
	result.Duration = time.Since(result.StartedAt)
	result.OutputTail, result.Truncated = tail.Tail()

	if ctx.Err() != nil {
		result.Killed = true
	}

	switch {
	case waitErr == nil:
		result.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else if !result.Killed {
			// Wait failed for a non-exit reason (I/O error on the pipes,
			// for instance). Surface it rather than inventing a status.
			return result, fmt.Errorf("waiting for %s: %w", spec.Program, waitErr)
		}
	}

	zap.S().Debugf("child exited: pid=%d code=%d killed=%v duration=%s",
		result.PID, result.ExitCode, result.Killed, result.Duration)

	return result, nil
}

// tailWriter keeps the last max bytes written to it. Both child streams
// write here concurrently, so access is mutex-guarded.
type tailWriter struct {
	mu        sync.Mutex
	buf       []byte
	max       int
	truncated bool
}

func newTailWriter(max int) *tailWriter {
	return &tailWriter{max: max}
}

// Write satisfies io.Writer. It never fails: dropping old output must not
// break the child's pipes.
func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	if len(w.buf) > w.max {
		w.buf = w.buf[len(w.buf)-w.max:]
		w.truncated = true
	}
	return len(p), nil
}

// Tail returns the captured output and whether anything was dropped.
func (w *tailWriter) Tail() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf), w.truncated
}
