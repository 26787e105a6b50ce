package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSleep records requested backoff durations without waiting.
func fakeSleep(durations *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*durations = append(*durations, d)
		return ctx.Err()
	}
}

// TestSupervisor_CleanExitEndsLoop verifies a zero-status child is never
// restarted, even with restart budget remaining.
func TestSupervisor_CleanExitEndsLoop(t *testing.T) {
	launches := 0
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			launches++
			return Result{ExitCode: 0}, nil
		},
		MaxRestarts: 5,
		sleepFn:     fakeSleep(&[]time.Duration{}),
	}

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, 1, launches)
}

// TestSupervisor_RestartBudget verifies a persistently failing child is
// relaunched MaxRestarts times with doubling backoff, and the last child's
// status is the final word.
func TestSupervisor_RestartBudget(t *testing.T) {
	var sleeps []time.Duration
	launches := 0
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			launches++
			return Result{ExitCode: 1}, nil
		},
		MaxRestarts:  3,
		RestartDelay: time.Second,
		sleepFn:      fakeSleep(&sleeps),
	}

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, 4, launches, "initial launch plus three restarts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeps)
}

// TestSupervisor_BackoffCap verifies the doubling backoff never exceeds
// the two minute ceiling.
func TestSupervisor_BackoffCap(t *testing.T) {
	var sleeps []time.Duration
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			return Result{ExitCode: 1}, nil
		},
		MaxRestarts:  3,
		RestartDelay: 90 * time.Second,
		sleepFn:      fakeSleep(&sleeps),
	}

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{90 * time.Second, 2 * time.Minute, 2 * time.Minute}, sleeps)
}

// TestSupervisor_ZeroBudget verifies MaxRestarts of zero means the first
// failure ends supervision.
func TestSupervisor_ZeroBudget(t *testing.T) {
	launches := 0
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			launches++
			return Result{ExitCode: 7}, nil
		},
		sleepFn: fakeSleep(&[]time.Duration{}),
	}

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, 1, launches)
}

// TestSupervisor_LaunchErrorPropagates verifies a spawn failure is
// returned immediately rather than retried.
func TestSupervisor_LaunchErrorPropagates(t *testing.T) {
	wantErr := errors.New("spawn failed")
	launches := 0
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			launches++
			return Result{}, wantErr
		},
		MaxRestarts: 5,
		sleepFn:     fakeSleep(&[]time.Duration{}),
	}

	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, launches)
}

// TestSupervisor_CancelDuringBackoff verifies cancelling the outer
// context during a backoff sleep ends the loop with the last result.
func TestSupervisor_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			return Result{ExitCode: 1}, nil
		},
		MaxRestarts: 5,
		sleepFn: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

// TestSupervisor_CancelledChildNotRestarted verifies an outer-context
// cancellation is not mistaken for a crash: the killed child's result is
// returned without touching the restart budget.
func TestSupervisor_CancelledChildNotRestarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	launches := 0
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			launches++
			cancel()
			<-ctx.Done()
			return Result{ExitCode: 1, Killed: true}, nil
		},
		MaxRestarts: 5,
		sleepFn:     fakeSleep(&[]time.Duration{}),
	}

	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Killed)
	assert.Equal(t, 1, launches)
}

// TestSupervisor_WatchRestart verifies a change to a watched file kills
// the running child and relaunches it with a fresh restart budget.
func TestSupervisor_WatchRestart(t *testing.T) {
	dir := t.TempDir()
	profilePath := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte("job: nurturing\n"), 0o644))

	launches := 0
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			launches++
			if launches == 1 {
				// First child "runs" until the watch event cancels it;
				// the file change happens once we're blocked here.
				go func() {
					time.Sleep(50 * time.Millisecond)
					_ = os.WriteFile(profilePath, []byte("job: nurturing\ndebug: true\n"), 0o644)
				}()
				<-ctx.Done()
				return Result{ExitCode: 1, Killed: true}, nil
			}
			return Result{ExitCode: 0}, nil
		},
		WatchPaths: []string{profilePath},
		sleepFn:    fakeSleep(&[]time.Duration{}),
	}

	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		defer close(done)
		res, err = s.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not finish after watch restart")
	}

	require.NoError(t, err)
	assert.Equal(t, 2, launches, "watch event should trigger exactly one relaunch")
	assert.Equal(t, 0, res.ExitCode)
}

// TestSupervisor_WatchMissingPath verifies an unwatchable path fails fast
// instead of launching a child that can never be watch-restarted.
func TestSupervisor_WatchMissingPath(t *testing.T) {
	s := &Supervisor{
		Launch: func(ctx context.Context) (Result, error) {
			t.Fatal("child should not launch when the watch setup fails")
			return Result{}, nil
		},
		WatchPaths: []string{filepath.Join(t.TempDir(), "missing.yaml")},
	}

	_, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot watch")
}
