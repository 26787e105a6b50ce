// Package cli — doctor.go implements the "paddock doctor" command, which
// runs the launch preflight checks concurrently and reports what would
// block a "paddock run".
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mmr-tortoise/paddock/internal/emulator"
	"github.com/mmr-tortoise/paddock/internal/model"
	"github.com/mmr-tortoise/paddock/internal/profile"
	"github.com/mmr-tortoise/paddock/internal/runner"
	"github.com/mmr-tortoise/paddock/internal/update"
)

// doctorFlags holds the flag values for the doctor command.
type doctorFlags struct {
	profile string // --profile: profile to check against
}

// checkResult is one preflight check's outcome.
type checkResult struct {
	// Name identifies the check in output, e.g. "program".
	Name string `json:"name"`

	// OK reports whether the check passed.
	OK bool `json:"ok"`

	// Required marks checks whose failure would block a launch.
	// Informational checks (update reachability) never fail doctor.
	Required bool `json:"required"`

	// Detail is a one-line explanation of the outcome.
	Detail string `json:"detail"`
}

// NewDoctorCommand creates the "doctor" cobra command.
func NewDoctorCommand() *cobra.Command {
	flags := &doctorFlags{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check whether a launch would succeed",
		Long: `Run the launch preflight checks: program discovery, profile validity,
device reachability, Docker (when the profile uses a docker:// address),
debug directory writability, and upstream release reachability.

Exits with status 1 when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.profile, "profile", "p", "", "Profile name or file path to check")

	return cmd
}

// runDoctor executes every check concurrently and prints the report.
// The checks are independent, so an errgroup fans them out; individual
// failures land in their checkResult rather than aborting the group.
func runDoctor(ctx context.Context, flags *doctorFlags) error {
	prof, profCheck := doctorProfile(flags)

	checks := []checkResult{profCheck}
	var mu sync.Mutex
	record := func(c checkResult) {
		mu.Lock()
		defer mu.Unlock()
		checks = append(checks, c)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record(checkProgram(prof))
		return nil
	})
	g.Go(func() error {
		record(checkDevice(ctx, prof))
		return nil
	})
	g.Go(func() error {
		record(checkDocker(ctx, prof))
		return nil
	})
	g.Go(func() error {
		record(checkDebugDir(prof))
		return nil
	})
	g.Go(func() error {
		record(checkUpstream(ctx))
		return nil
	})
	_ = g.Wait()

	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
	printDoctorResult(checks)

	for _, check := range checks {
		if check.Required && !check.OK {
			return model.NewCLIError(model.ExitGeneralError, "preflight checks failed")
		}
	}
	return nil
}

// doctorProfile loads the profile under test (or the defaults) and
// produces the profile check itself.
func doctorProfile(flags *doctorFlags) (*profile.Profile, checkResult) {
	check := checkResult{Name: "profile", Required: true}

	explicitPath, name := "", ""
	if flags.profile != "" {
		if looksLikePath(flags.profile) {
			explicitPath = flags.profile
		} else {
			name = flags.profile
		}
	}

	path, err := profile.Find(explicitPath, name)
	if err != nil {
		if flags.profile == "" {
			check.OK = true
			check.Detail = "no profile file, built-in defaults are valid"
			return profile.Default(), check
		}
		check.Detail = err.Error()
		return profile.Default(), check
	}

	prof, err := profile.Load(path)
	if err != nil {
		check.Detail = err.Error()
		return profile.Default(), check
	}
	if errs := append(profile.Validate(prof), profile.ValidateFiles(prof)...); len(errs) > 0 {
		check.Detail = profile.FirstError(errs).Error()
		return prof, check
	}
	check.OK = true
	check.Detail = fmt.Sprintf("%s is valid", path)
	return prof, check
}

// checkProgram verifies the automation program is discoverable.
func checkProgram(prof *profile.Profile) checkResult {
	check := checkResult{Name: "program", Required: true}
	path, err := runner.NewFinder().Find(prof.Program.Command)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	check.OK = true
	check.Detail = path
	return check
}

// checkDevice verifies the profile's device address resolves and is
// reachable. A profile without a device passes trivially.
func checkDevice(ctx context.Context, prof *profile.Profile) checkResult {
	check := checkResult{Name: "device", Required: true}
	if prof.ADBAddress == "" {
		check.OK = true
		check.Detail = "no device configured (desktop client)"
		return check
	}

	addr, err := resolveDevice(ctx, prof.ADBAddress, true)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	check.OK = true
	check.Detail = fmt.Sprintf("%s reachable (%s)", addr, addr.Kind)
	return check
}

// checkDocker pings the Docker daemon. Only required when the profile
// actually uses a docker:// address; informational otherwise.
func checkDocker(ctx context.Context, prof *profile.Profile) checkResult {
	check := checkResult{
		Name:     "docker",
		Required: strings.HasPrefix(prof.ADBAddress, "docker://"),
	}

	cli, err := emulator.NewClient()
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		check.Detail = err.Error()
		return check
	}
	check.OK = true
	check.Detail = "daemon reachable"
	return check
}

// checkDebugDir verifies the debug artifact directory is writable.
func checkDebugDir(prof *profile.Profile) checkResult {
	check := checkResult{Name: "debug dir", Required: true}
	if !prof.DebugEnabled() {
		check.OK = true
		check.Detail = "debug disabled"
		return check
	}

	dir := prof.DebugDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		check.Detail = fmt.Sprintf("cannot create %s: %v", dir, err)
		return check
	}
	probe := filepath.Join(dir, ".paddock-doctor")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		check.Detail = fmt.Sprintf("cannot write to %s: %v", dir, err)
		return check
	}
	_ = os.Remove(probe)
	check.OK = true
	check.Detail = fmt.Sprintf("%s is writable", dir)
	return check
}

// checkUpstream verifies GitHub is reachable for release checks. Never
// required: an offline machine can still launch.
func checkUpstream(ctx context.Context) checkResult {
	check := checkResult{Name: "upstream"}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	release, err := update.Check(ctx, "")
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	check.OK = true
	check.Detail = fmt.Sprintf("latest release %s", release.TagName)
	return check
}

// printDoctorResult outputs the check table in text or JSON format.
func printDoctorResult(checks []checkResult) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(checks, "", "  ")
		fmt.Println(string(data))
		return
	}

	for _, check := range checks {
		mark := "ok"
		if !check.OK {
			mark = "FAIL"
			if !check.Required {
				mark = "warn"
			}
		}
		fmt.Printf("%-6s %-10s %s\n", mark, check.Name, check.Detail)
	}
}
