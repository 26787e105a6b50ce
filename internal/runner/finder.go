package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// EnvProgramOverride is the environment variable checked before any path
// probing. Pointing it at an interpreter pins the launch to that binary.
const EnvProgramOverride = "PADDOCK_PYTHON"

// defaultCandidates are the interpreter names tried in order. "py" first:
// the Windows launcher dispatches to the newest installed Python, which
// is what most auto_derby installs rely on.
var defaultCandidates = []string{"py", "python3", "python"}

// defaultKnownPaths are priority-ordered template paths probed before the
// PATH lookup. Templates support {name} (candidate with platform suffix),
// ~ (home directory), $VAR / ${VAR}, and %VAR% on Windows.
var defaultKnownPaths = []string{
	"~/.pyenv/shims/{name}",
	"/usr/local/bin/{name}",
	`%LocalAppData%\Programs\Python\Python38\{name}`,
	`C:\Python38\{name}`,
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// Finder locates the program that runs the automation module. It checks
// an explicit program first, then the PADDOCK_PYTHON override, then known
// install locations, and finally PATH.
type Finder struct {
	candidates  []string // interpreter names, in preference order
	knownPaths  []string // priority-ordered path templates
	envOverride string
	goos        string

	// Function injection for testability.
	statFn     func(string) (os.FileInfo, error)
	lookPathFn func(string) (string, error)
	userHomeFn func() (string, error)
	getenvFn   func(string) string
}

// NewFinder creates a Finder with the default candidate and path lists.
func NewFinder(opts ...FinderOption) *Finder {
	f := &Finder{
		candidates:  defaultCandidates,
		knownPaths:  defaultKnownPaths,
		envOverride: EnvProgramOverride,
		goos:        runtime.GOOS,
		statFn:      os.Stat,
		lookPathFn:  exec.LookPath,
		userHomeFn:  os.UserHomeDir,
		getenvFn:    os.Getenv,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithCandidates overrides the interpreter names to try.
func WithCandidates(names ...string) FinderOption {
	return func(f *Finder) {
		f.candidates = names
	}
}

// WithKnownPaths overrides the path templates probed before PATH lookup.
func WithKnownPaths(paths ...string) FinderOption {
	return func(f *Finder) {
		f.knownPaths = paths
	}
}

// WithGOOS pins the platform for expansion and suffix rules (tests).
func WithGOOS(goos string) FinderOption {
	return func(f *Finder) {
		f.goos = goos
	}
}

// WithStat overrides filesystem stat (tests).
func WithStat(fn func(string) (os.FileInfo, error)) FinderOption {
	return func(f *Finder) {
		f.statFn = fn
	}
}

// WithLookPath overrides PATH lookup (tests).
func WithLookPath(fn func(string) (string, error)) FinderOption {
	return func(f *Finder) {
		f.lookPathFn = fn
	}
}

// WithGetenv overrides environment lookup (tests).
func WithGetenv(fn func(string) string) FinderOption {
	return func(f *Finder) {
		f.getenvFn = fn
	}
}

// Find locates the program to spawn.
//
// Priority order:
//  1. explicit — the profile's program.command, taken as-is when it is a
//     path to an existing file, otherwise resolved through PATH
//  2. the PADDOCK_PYTHON environment override
//  3. known install paths, expanded per candidate
//  4. PATH lookup over the candidate names
//
// Returns a CLIError with ExitProgramNotFound listing everything that was
// checked when nothing matches.
func (f *Finder) Find(explicit string) (string, error) {
	if explicit != "" {
		return f.findExplicit(explicit)
	}

	var checked []string

	if f.envOverride != "" {
		if envPath := f.getenvFn(f.envOverride); envPath != "" {
			if f.isValidExecutable(envPath) {
				return envPath, nil
			}
			checked = append(checked, envPath+" (from $"+f.envOverride+")")
		}
	}

	for _, template := range f.knownPaths {
		for _, name := range f.candidates {
			path, err := f.expandPath(template, name)
			if err != nil {
				continue
			}
			if f.isValidExecutable(path) {
				return path, nil
			}
			checked = append(checked, path)
		}
	}

	for _, name := range f.candidates {
		if path, err := f.lookPathFn(f.platformExecName(name)); err == nil {
			return path, nil
		}
	}
	checked = append(checked, "PATH ("+strings.Join(f.candidates, ", ")+")")

	return "", model.NewCLIError(
		model.ExitProgramNotFound,
		fmt.Sprintf("no Python interpreter found (checked: %s); install Python or set %s",
			strings.Join(checked, ", "), EnvProgramOverride),
	)
}

// findExplicit resolves a user-configured program command.
func (f *Finder) findExplicit(command string) (string, error) {
	// A command with a path separator must point at a real file; a bare
	// name goes through PATH like any shell invocation would.
	if strings.ContainsAny(command, `/\`) {
		if f.isValidExecutable(command) {
			return command, nil
		}
		return "", model.NewCLIError(
			model.ExitProgramNotFound,
			fmt.Sprintf("configured program %q does not exist or is not executable", command),
		)
	}
	path, err := f.lookPathFn(command)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitProgramNotFound,
			fmt.Sprintf("configured program %q not found in PATH", command),
			err,
		)
	}
	return path, nil
}

// platformExecName appends the .exe suffix on Windows.
func (f *Finder) platformExecName(name string) string {
	if f.goos == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// windowsEnvRegex matches %VAR% references in Windows-style templates.
var windowsEnvRegex = regexp.MustCompile(`%([^%]+)%`)

// expandPath expands template variables in a known-path template.
func (f *Finder) expandPath(template, name string) (string, error) {
	path := strings.ReplaceAll(template, "{name}", f.platformExecName(name))

	if strings.HasPrefix(path, "~") {
		home, err := f.userHomeFn()
		if err != nil {
			return "", fmt.Errorf("cannot expand ~: %w", err)
		}
		path = home + path[1:]
	}

	if f.goos == "windows" {
		path = windowsEnvRegex.ReplaceAllStringFunc(path, func(match string) string {
			if val := f.getenvFn(match[1 : len(match)-1]); val != "" {
				return val
			}
			return match
		})
	}

	// $VAR / ${VAR} expansion works on all platforms.
	path = os.Expand(path, f.getenvFn)

	return filepath.Clean(path), nil
}

// isValidExecutable checks that path points at an executable regular file.
func (f *Finder) isValidExecutable(path string) bool {
	info, err := f.statFn(path)
	if err != nil || info.IsDir() {
		return false
	}
	if f.goos == "windows" {
		// Windows has no execute bits; the .exe suffix is the check.
		return strings.HasSuffix(strings.ToLower(info.Name()), ".exe")
	}
	return info.Mode().Perm()&0o111 != 0
}
