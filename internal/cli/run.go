// Package cli — run.go implements the "paddock run" command.
//
// run is the primary user-facing operation. It orchestrates the full
// launch workflow:
//  1. Locate and validate the profile (or fall back to flag-only defaults)
//  2. Resolve the ADB device address (static, auto probe, BlueStacks,
//     managed Docker emulator)
//  3. Render the AUTO_DERBY_* environment and create debug directories
//  4. Locate the program to spawn (explicit command or Python discovery)
//  5. Launch the child — optionally under supervision (restart-on-failure
//     and/or profile watching) — and block until it exits
//  6. Record the run in the state database and pass the child's exit
//     status through verbatim
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/paddock/internal/device"
	"github.com/mmr-tortoise/paddock/internal/emulator"
	"github.com/mmr-tortoise/paddock/internal/log"
	"github.com/mmr-tortoise/paddock/internal/model"
	"github.com/mmr-tortoise/paddock/internal/profile"
	"github.com/mmr-tortoise/paddock/internal/runner"
	"github.com/mmr-tortoise/paddock/internal/state"
	"github.com/mmr-tortoise/paddock/internal/update"
)

// runFlags holds the flag values for the run command.
// These are bound to cobra flags in NewRunCommand.
type runFlags struct {
	profile          string        // --profile: profile name or file path
	plugins          []string      // --plugin: extra plugins appended to the profile's list
	adb              string        // --adb: device address override
	debug            bool          // --debug: force debug on regardless of profile
	noDeviceCheck    bool          // --no-device-check: skip the reachability probe
	restartOnFailure int           // --restart-on-failure: restart budget for crashed children
	restartDelay     time.Duration // --restart-delay: initial restart backoff
	watch            bool          // --watch: restart when the profile file changes
	stateDB          string        // --state-db: history database path override
}

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [job]",
		Short: "Launch the automation module",
		Long: `Launch the auto_derby automation module with the environment rendered
from a profile. The job argument selects the workflow (nurturing,
team_race, champions_meeting, legend_race, daily_race, roulette_derby)
and defaults to the profile's job, which defaults to nurturing.

The launcher blocks until the module exits and exits with the module's
own status.

Examples:
  paddock run
  paddock run team_race
  paddock run -p overnight --watch
  paddock run --adb 127.0.0.1:5555 --plugin limited_sale_buy_first_3`,

		// Args allows at most one positional argument (the job).
		Args: cobra.MaximumNArgs(1),

		// RunE is used instead of Run so we can return errors. Cobra will
		// pass them to the Execute error handler in root.go.
		RunE: func(cmd *cobra.Command, args []string) error {
			jobArg := ""
			if len(args) > 0 {
				jobArg = args[0]
			}
			return runRun(cmd.Context(), jobArg, flags)
		},
	}

	// Register command-specific flags.
	cmd.Flags().StringVarP(&flags.profile, "profile", "p", "", "Profile name or file path")
	cmd.Flags().StringArrayVar(&flags.plugins, "plugin", nil, "Extra plugin to enable (repeatable)")
	cmd.Flags().StringVar(&flags.adb, "adb", "", "ADB device address override (host:port, auto, bluestacks://..., docker://...)")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Force debug mode on")
	cmd.Flags().BoolVar(&flags.noDeviceCheck, "no-device-check", false, "Skip the device reachability probe")
	cmd.Flags().IntVar(&flags.restartOnFailure, "restart-on-failure", 0, "Restart a crashed module up to N times")
	cmd.Flags().DurationVar(&flags.restartDelay, "restart-delay", 0, "Initial delay before a failure restart (default 5s, doubling)")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "Restart the module when the profile file changes")
	cmd.Flags().StringVar(&flags.stateDB, "state-db", "", "Run history database path")

	return cmd
}

// runRun is the main orchestration function for the run command.
func runRun(ctx context.Context, jobArg string, flags *runFlags) error {
	// A signal asks the child to stop; the runner escalates to kill after
	// the grace period. The launcher's status is still the child's.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step 1: Locate and load the profile.
	prof, err := loadRunProfile(flags)
	if err != nil {
		return err
	}
	zap.S().Debugf("using profile %q (%s)", prof.Name, profileOrigin(prof))

	applyRunFlags(prof, flags)

	// With debug enabled the launcher mirrors its own logging into the
	// debug directory, next to the module's artifacts.
	if prof.DebugEnabled() {
		if _, err := log.Init(verbose, filepath.Join(prof.DebugDir, "paddock.log")); err != nil {
			zap.S().Warnf("debug log unavailable: %v", err)
		}
	}

	job, err := effectiveJob(jobArg, prof)
	if err != nil {
		return err
	}

	errs := profile.Validate(prof)
	errs = append(errs, profile.ValidateFiles(prof)...)
	if len(errs) > 0 {
		return profile.FirstError(errs)
	}

	// Step 2: Resolve the device address.
	addr, err := resolveDevice(ctx, prof.ADBAddress, !flags.noDeviceCheck)
	if err != nil {
		return err
	}
	if addr.Kind != model.DeviceNone {
		zap.S().Debugf("device resolved: %s (%s)", addr, addr.Kind)
	}

	// Step 3: Render the environment and create debug directories.
	env := profile.RenderEnv(prof, addr)
	if prof.DebugEnabled() {
		if err := ensureDebugPaths(prof); err != nil {
			return err
		}
	}

	// Step 4: Locate the program.
	finder := runner.NewFinder()
	program, err := finder.Find(prof.Program.Command)
	if err != nil {
		return err
	}
	zap.S().Debugf("program: %s", program)

	args := prof.Program.Args
	if prof.Program.Command == "" && len(args) == 0 {
		args = profile.DefaultProgramArgs
	}

	// Step 5: Open the state database. History never blocks a launch:
	// a broken database degrades to a logged warning.
	store := openStateStore(flags.stateDB)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	// Kick off the best-effort release check while the module runs.
	updateDone := startUpdateNotice(ctx, prof, store)

	// Step 6: Launch, possibly supervised.
	spec := runner.Spec{
		Program: program,
		Args:    args,
		Job:     job,
		Env:     profile.EncodeEnv(env),
		Workdir: prof.Program.Workdir,
	}

	res, err := launchSupervised(ctx, spec, prof, store, flags)
	if err != nil {
		return err
	}

	// Wait briefly for the update notice so it prints after the module's
	// own output rather than interleaved with it.
	select {
	case <-updateDone:
	case <-time.After(time.Second):
	}

	// Step 7: Pass the child's status through verbatim. A signal-initiated
	// shutdown maps to the user-cancelled exit code instead, since the
	// child's status then only reflects our own SIGTERM.
	if res.Killed && ctx.Err() != nil {
		return model.NewCLIError(model.ExitUserCancelled, "cancelled")
	}
	if res.ExitCode != 0 {
		return model.NewChildExitError(res.ExitCode)
	}
	return nil
}

// loadRunProfile locates the profile per the finder's resolution order.
// A missing profile is only an error when one was named explicitly;
// otherwise the flag-only default profile is used.
func loadRunProfile(flags *runFlags) (*profile.Profile, error) {
	explicitPath, name := "", ""
	if flags.profile != "" {
		// A value with a path separator or a recognized extension is a
		// file path; anything else is a profile name.
		if looksLikePath(flags.profile) {
			explicitPath = flags.profile
		} else {
			name = flags.profile
		}
	}

	path, err := profile.Find(explicitPath, name)
	if err != nil {
		if flags.profile == "" {
			zap.S().Debug("no profile found, using defaults")
			return profile.Default(), nil
		}
		return nil, err
	}
	return profile.Load(path)
}

// looksLikePath distinguishes "--profile ./my.yaml" from "--profile my".
func looksLikePath(value string) bool {
	if filepath.Base(value) != value {
		return true
	}
	switch filepath.Ext(value) {
	case ".yaml", ".yml", ".jsonc", ".json":
		return true
	}
	return false
}

// profileOrigin describes where a profile came from for debug logging.
func profileOrigin(p *profile.Profile) string {
	if p.Path() == "" {
		return "built-in defaults"
	}
	return p.Path()
}

// applyRunFlags overlays command-line overrides onto the loaded profile.
// Flags always win over file contents.
func applyRunFlags(p *profile.Profile, flags *runFlags) {
	if len(flags.plugins) > 0 {
		p.Plugins = append(p.Plugins, flags.plugins...)
	}
	if flags.adb != "" {
		p.ADBAddress = flags.adb
	}
	if flags.debug {
		t := true
		p.Debug = &t
	}
}

// effectiveJob picks the job from the positional argument, falling back
// to the profile.
func effectiveJob(jobArg string, p *profile.Profile) (model.Job, error) {
	raw := jobArg
	if raw == "" {
		raw = p.Job
	}
	job, err := model.ParseJob(raw)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "invalid job", err)
	}
	return job, nil
}

// resolveDevice turns the profile's address syntax into a concrete
// endpoint. The docker:// form is wired to the emulator package here so
// the device package stays free of Docker dependencies.
func resolveDevice(ctx context.Context, raw string, probe bool) (model.DeviceAddress, error) {
	resolver := device.NewResolver(device.WithDockerLookup(dockerDeviceLookup))
	return resolver.Resolve(ctx, raw, probe)
}

// dockerDeviceLookup resolves docker://<name> against the managed
// emulator containers.
func dockerDeviceLookup(ctx context.Context, name string) (model.DeviceAddress, error) {
	cli, err := emulator.NewClient()
	if err != nil {
		return model.DeviceAddress{}, err
	}
	defer func() { _ = cli.Close() }()
	return emulator.AdbAddress(ctx, cli, name)
}

// ensureDebugPaths creates the directories the debug artifact paths
// point into, so the module doesn't fail its first screenshot save.
func ensureDebugPaths(p *profile.Profile) error {
	paths := p.EffectivePaths()
	dirs := []string{
		filepath.Dir(paths.LastScreenshot),
		paths.OCRImages,
		paths.EventImages,
		paths.TrainingImages,
		filepath.Dir(paths.ChoicesCSV),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to create debug directory %s", dir), err)
		}
	}
	return nil
}

// openStateStore opens the run history database, returning nil (with a
// warning) when it can't be opened.
func openStateStore(override string) *state.Store {
	path := override
	if path == "" {
		var err error
		path, err = state.DefaultPath()
		if err != nil {
			zap.S().Warnf("run history disabled: %v", err)
			return nil
		}
	}
	store, err := state.Open(path)
	if err != nil {
		zap.S().Warnf("run history disabled: %v", err)
		return nil
	}
	return store
}

// launchSupervised runs the child, directly or under a Supervisor when a
// restart policy is requested. Every individual child run is recorded in
// the state store.
func launchSupervised(ctx context.Context, spec runner.Spec, prof *profile.Profile, store *state.Store, flags *runFlags) (runner.Result, error) {
	launch := func(ctx context.Context) (runner.Result, error) {
		res, err := runner.Launch(ctx, spec)
		recordRun(ctx, store, spec, prof, res, err)
		return res, err
	}

	if flags.restartOnFailure <= 0 && !flags.watch {
		return launch(ctx)
	}

	sup := &runner.Supervisor{
		Launch:       launch,
		MaxRestarts:  flags.restartOnFailure,
		RestartDelay: flags.restartDelay,
	}
	if flags.watch {
		if prof.Path() == "" {
			return runner.Result{}, model.NewCLIError(model.ExitGeneralError,
				"--watch needs a profile file to watch")
		}
		sup.WatchPaths = []string{prof.Path()}
	}
	return sup.Run(ctx)
}

// recordRun writes one child run into the history, best-effort.
func recordRun(ctx context.Context, store *state.Store, spec runner.Spec, prof *profile.Profile, res runner.Result, launchErr error) {
	if store == nil || res.ID == "" {
		return
	}
	// Use a fresh context: the launch context is often already cancelled
	// when the child was killed, and the record should still be written.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	rec := model.RunRecord{
		ID:        res.ID,
		Job:       spec.Job,
		Profile:   prof.Name,
		Device:    envDeviceAddress(spec.Env),
		PID:       res.PID,
		StartedAt: res.StartedAt,
	}
	if err := store.RecordStart(recCtx, rec); err != nil {
		zap.S().Warnf("failed to record run: %v", err)
		return
	}
	if launchErr != nil && res.PID == 0 {
		// The child never spawned; leave the running row for debugging.
		return
	}

	rec.FinishedAt = res.StartedAt.Add(res.Duration)
	rec.Duration = res.Duration
	rec.ExitCode = res.ExitCode
	rec.Status = model.StatusForExit(res.ExitCode, res.Killed)
	rec.OutputTail = res.OutputTail
	rec.OutputTruncated = res.Truncated
	if err := store.RecordFinish(recCtx, res.ID, rec); err != nil {
		zap.S().Warnf("failed to record run result: %v", err)
	}
}

// envDeviceAddress digs the rendered ADB address back out of the encoded
// environment for the run record.
func envDeviceAddress(env []string) string {
	prefix := profile.EnvADBAddress + "="
	for _, kv := range env {
		if len(kv) > len(prefix) && kv[:len(prefix)] == prefix {
			return kv[len(prefix):]
		}
	}
	return ""
}

// startUpdateNotice launches the concurrent best-effort release check.
// The returned channel closes when the check (and any notice printing)
// is done. Failures are silent apart from debug logging: an unreachable
// GitHub must never delay or fail a launch.
func startUpdateNotice(ctx context.Context, prof *profile.Profile, store *state.Store) <-chan struct{} {
	done := make(chan struct{})
	if !prof.CheckUpdateEnabled() {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		release, err := update.Check(checkCtx, "")
		if err != nil {
			zap.S().Debugf("release check failed: %v", err)
			return
		}

		// Only nag once per release: compare against the last saved tag.
		lastTag := ""
		if store != nil {
			if last, err := store.LastUpdateCheck(checkCtx); err == nil {
				lastTag = last.LatestTag
			}
			if err := store.SaveUpdateCheck(checkCtx, release.TagName, time.Now()); err != nil {
				zap.S().Debugf("failed to save release check: %v", err)
			}
		}
		if release.TagName != lastTag {
			fmt.Fprintf(os.Stderr, "A new auto_derby release is available: %s (%s)\n",
				release.TagName, release.HTMLURL)
		}
	}()
	return done
}
