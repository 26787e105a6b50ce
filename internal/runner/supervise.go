// supervise.go wraps Launch with restart policies: --restart-on-failure
// relaunches a crashed child with exponential backoff, and --watch
// restarts the child whenever the profile file (or a watched plugins
// directory) changes. A clean child exit always ends supervision, and the
// launcher's final status is the last child's status either way.

package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// defaultRestartDelay is the initial failure-restart backoff.
	defaultRestartDelay = 5 * time.Second

	// maxRestartDelay caps the exponential backoff.
	maxRestartDelay = 2 * time.Minute

	// watchDebounce coalesces editor save bursts (write + rename +
	// chmod) into a single restart.
	watchDebounce = 500 * time.Millisecond
)

// Supervisor runs a launch function repeatedly according to its restart
// policy.
type Supervisor struct {
	// Launch runs one child to completion. Required.
	Launch func(ctx context.Context) (Result, error)

	// MaxRestarts is how many failure restarts are allowed. Zero means a
	// failed child ends supervision immediately.
	MaxRestarts int

	// RestartDelay is the initial backoff before a failure restart.
	// Zero uses defaultRestartDelay. The delay doubles per consecutive
	// failure, capped at maxRestartDelay, and resets after a watch
	// restart (the user changed something; start fresh).
	RestartDelay time.Duration

	// WatchPaths are files or directories whose changes trigger a
	// restart. Empty disables watch mode.
	WatchPaths []string

	// sleepFn is injectable so tests don't wait out real backoff.
	sleepFn func(ctx context.Context, d time.Duration) error
}

// Run executes the supervision loop and returns the last child's result.
// Cancelling ctx terminates the current child and ends the loop; the
// returned Result still describes that final child.
func (s *Supervisor) Run(ctx context.Context) (Result, error) {
	sleep := s.sleepFn
	if sleep == nil {
		sleep = sleepCtx
	}
	delay := s.RestartDelay
	if delay <= 0 {
		delay = defaultRestartDelay
	}

	// restartCh carries debounced watch events: the path that changed.
	var restartCh chan string
	if len(s.WatchPaths) > 0 {
		restartCh = make(chan string, 1)
		stop, err := s.startWatcher(ctx, restartCh)
		if err != nil {
			return Result{}, err
		}
		defer stop()
	}

	restartsLeft := s.MaxRestarts
	backoff := delay

	for {
		childCtx, cancel := context.WithCancel(ctx)

		// Forward a watch event into a child cancellation. The goroutine
		// exits with the child either way, so each iteration gets a
		// fresh one.
		watchFired := make(chan string, 1)
		go func() {
			select {
			case path := <-restartCh:
				watchFired <- path
				cancel()
			case <-childCtx.Done():
			}
		}()

		res, err := s.Launch(childCtx)
		cancel()
		if err != nil {
			return res, err
		}

		select {
		case path := <-watchFired:
			zap.S().Infof("%s changed, restarting", path)
			// A deliberate change is a fresh start: the failure budget
			// and backoff reset.
			restartsLeft = s.MaxRestarts
			backoff = delay
			continue
		default:
		}

		if ctx.Err() != nil {
			// Interrupted from outside; the child was already asked to
			// stop. Its status is the final word.
			return res, nil
		}

		if res.ExitCode == 0 {
			return res, nil
		}

		if restartsLeft <= 0 {
			return res, nil
		}
		restartsLeft--

		zap.S().Warnf("child exited with status %d, restarting in %s (%d restart(s) left)",
			res.ExitCode, backoff, restartsLeft)
		if err := sleep(ctx, backoff); err != nil {
			return res, nil
		}
		backoff *= 2
		if backoff > maxRestartDelay {
			backoff = maxRestartDelay
		}
	}
}

// startWatcher sets up the fsnotify watcher and the debounce goroutine.
// File paths are watched through their parent directory because editors
// replace files on save, which breaks a direct file watch.
func (s *Supervisor) startWatcher(ctx context.Context, restartCh chan<- string) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// watchedFiles maps exact file paths we care about; events for other
	// files in the same directory are ignored.
	watchedFiles := make(map[string]bool)

	for _, path := range s.WatchPaths {
		info, err := os.Stat(path)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("cannot watch %s: %w", path, err)
		}
		target := path
		if !info.IsDir() {
			watchedFiles[filepath.Clean(path)] = true
			target = filepath.Dir(path)
		}
		if err := watcher.Add(target); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("cannot watch %s: %w", target, err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		var timer *time.Timer
		var timerC <-chan time.Time
		var pending string

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				// Directory watches fire for every file in them; only
				// pass events for registered files (or anything inside
				// an explicitly watched directory).
				if len(watchedFiles) > 0 && !watchedFiles[filepath.Clean(ev.Name)] && !s.watchesDir(ev.Name) {
					continue
				}
				pending = ev.Name
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
					timerC = timer.C
				} else {
					timer.Reset(watchDebounce)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zap.S().Warnf("file watcher error: %v", err)

			case <-timerC:
				select {
				case restartCh <- pending:
				default:
					// A restart is already queued; coalesce.
				}
			}
		}
	}()

	stop := func() {
		_ = watcher.Close()
		<-done
	}
	return stop, nil
}

// watchesDir reports whether name falls under one of the explicitly
// watched directories (as opposed to a parent dir added for a file watch).
func (s *Supervisor) watchesDir(name string) bool {
	clean := filepath.Clean(name)
	for _, path := range s.WatchPaths {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		dir := filepath.Clean(path)
		if clean == dir || filepath.Dir(clean) == dir {
			return true
		}
	}
	return false
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
