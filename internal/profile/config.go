// Package profile handles parsing and analysis of paddock profile files.
//
// Profiles are the launcher's configuration surface: one file describes one
// way of running the automation module (job, plugins, device address, debug
// artifact paths). Two formats are supported: YAML and JSONC (JSON with
// Comments, stripped with github.com/tidwall/jsonc before parsing with the
// standard encoding/json library).
//
// Key responsibilities:
//   - Load and parse profile files (YAML / JSONC)
//   - Locate profiles by name in standard paths
//   - Apply the launcher's defaults
//   - Render the AUTO_DERBY_* environment for a launch
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// Profile represents one parsed profile file. Field names mirror the
// configuration keys of the automation module itself so a profile reads
// like the environment it produces.
//
// Debug and CheckUpdate are pointers to distinguish "unset" from an
// explicit false; ApplyDefaults fills unset fields.
type Profile struct {
	// Name identifies the profile in history and CLI output.
	// Defaults to the file name without extension.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Job is the workflow passed to the child as its single positional
	// argument. Defaults to "nurturing".
	Job string `yaml:"job,omitempty" json:"job,omitempty"`

	// Debug controls the DEBUG variable and whether debug artifact paths
	// are populated. Defaults to true: the launcher exists to run the
	// module in its debuggable configuration.
	Debug *bool `yaml:"debug,omitempty" json:"debug,omitempty"`

	// DebugDir is the directory debug artifacts default into.
	// Defaults to "debug".
	DebugDir string `yaml:"debug_dir,omitempty" json:"debug_dir,omitempty"`

	// Plugins lists automation-module plugin names, rendered comma-joined
	// into AUTO_DERBY_PLUGINS in profile order.
	Plugins []string `yaml:"plugins,omitempty" json:"plugins,omitempty"`

	// PauseIfRaceOrderGT pauses the workflow when a race finishes below
	// this position. Defaults to 5.
	PauseIfRaceOrderGT int `yaml:"pause_if_race_order_gt,omitempty" json:"pause_if_race_order_gt,omitempty"`

	// TargetTrainingLevels holds the per-stat training targets
	// (speed, stamina, power, guts, wisdom). Empty renders as "".
	TargetTrainingLevels []int `yaml:"target_training_levels,omitempty" json:"target_training_levels,omitempty"`

	// CheckUpdate controls both the child's AUTO_DERBY_CHECK_UPDATE
	// variable and the launcher's own release check. Defaults to true.
	CheckUpdate *bool `yaml:"check_update,omitempty" json:"check_update,omitempty"`

	// ADBAddress is the device address in resolver syntax: empty (desktop
	// client), "host:port", "auto", "bluestacks://...", "docker://...",
	// or the legacy "host:instance:conf" triple. The profile treats it as
	// opaque; the device package owns the syntax.
	ADBAddress string `yaml:"adb_address,omitempty" json:"adb_address,omitempty"`

	// Paths overrides individual debug artifact locations. Unset entries
	// derive from DebugDir.
	Paths PathOverrides `yaml:"paths,omitempty" json:"paths,omitempty"`

	// Env holds extra environment variables appended verbatim to the
	// child environment. Managed AUTO_DERBY_* keys are rejected here.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Program configures how the automation module is invoked.
	Program ProgramConfig `yaml:"program,omitempty" json:"program,omitempty"`

	// path is where the profile was loaded from. Not serialized.
	path string `yaml:"-" json:"-"`
}

// PathOverrides pins individual debug artifact paths. Any empty field is
// derived from the profile's DebugDir at render time.
type PathOverrides struct {
	// LastScreenshot is the file the module saves the last screenshot to.
	LastScreenshot string `yaml:"last_screenshot,omitempty" json:"last_screenshot,omitempty"`

	// OCRImages is the directory for unrecognized OCR samples.
	OCRImages string `yaml:"ocr_images,omitempty" json:"ocr_images,omitempty"`

	// EventImages is the directory for unknown single-mode event images.
	EventImages string `yaml:"event_images,omitempty" json:"event_images,omitempty"`

	// TrainingImages is the directory for single-mode training captures.
	TrainingImages string `yaml:"training_images,omitempty" json:"training_images,omitempty"`

	// ChoicesCSV is the CSV file recording single-mode event choices.
	ChoicesCSV string `yaml:"choices_csv,omitempty" json:"choices_csv,omitempty"`
}

// ProgramConfig describes the command the launcher spawns. When Command is
// empty the runner's executable finder picks an interpreter, and Args
// defaults to invoking the module with "-m auto_derby".
type ProgramConfig struct {
	// Command is the executable to run (absolute path or PATH name).
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Args are the arguments placed before the single job argument.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Workdir is the working directory for the child process.
	Workdir string `yaml:"workdir,omitempty" json:"workdir,omitempty"`
}

// DefaultProgramArgs invokes the automation package as a Python module.
// Used when the profile sets no explicit program command or args.
var DefaultProgramArgs = []string{"-m", "auto_derby"}

// Defaults applied by ApplyDefaults.
const (
	DefaultJobName            = "nurturing"
	DefaultDebugDir           = "debug"
	DefaultPauseIfRaceOrderGT = 5
)

// Path returns the file the profile was loaded from. Empty for profiles
// constructed in memory (e.g. a flag-only launch).
func (p *Profile) Path() string {
	return p.path
}

// DebugEnabled reports the effective debug setting after defaulting.
func (p *Profile) DebugEnabled() bool {
	return p.Debug == nil || *p.Debug
}

// CheckUpdateEnabled reports the effective update-check setting.
func (p *Profile) CheckUpdateEnabled() bool {
	return p.CheckUpdate == nil || *p.CheckUpdate
}

// Default returns an in-memory profile with every default applied, used
// when no profile file exists and the user runs on flags alone.
func Default() *Profile {
	p := &Profile{Name: "default"}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills unset fields with the launcher's defaults. Load
// calls this after parsing, so loaded profiles are always complete.
func (p *Profile) ApplyDefaults() {
	if p.Job == "" {
		p.Job = DefaultJobName
	}
	if p.Debug == nil {
		t := true
		p.Debug = &t
	}
	if p.DebugDir == "" {
		p.DebugDir = DefaultDebugDir
	}
	if p.PauseIfRaceOrderGT == 0 {
		p.PauseIfRaceOrderGT = DefaultPauseIfRaceOrderGT
	}
	if p.CheckUpdate == nil {
		t := true
		p.CheckUpdate = &t
	}
}

// Load reads a profile file, parses it according to its extension, applies
// defaults, and names it after the file when the profile carries no name.
//
// YAML files are parsed strictly (unknown keys are an error) because a
// typoed key would otherwise silently fall back to a default and launch
// the module with the wrong configuration. JSONC files tolerate unknown
// keys since editors routinely add metadata to JSON configs.
//
// Returns a CLIError with ExitProfileNotFound if the file does not exist.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitProfileNotFound,
				fmt.Sprintf("profile not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		// Reject unknown keys so misspellings surface immediately.
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, model.WrapCLIError(
				model.ExitProfileInvalid,
				fmt.Sprintf("failed to parse profile %s", path),
				err,
			)
		}
	case ".jsonc", ".json":
		// Strip JSONC comments (// and /* */) and trailing commas before
		// parsing with the standard library.
		cleanJSON := jsonc.ToJSON(data)
		if err := json.Unmarshal(cleanJSON, &p); err != nil {
			return nil, model.WrapCLIError(
				model.ExitProfileInvalid,
				fmt.Sprintf("failed to parse profile %s", path),
				err,
			)
		}
	default:
		return nil, model.NewCLIError(
			model.ExitProfileInvalid,
			fmt.Sprintf("unsupported profile format %q (use .yaml, .yml, .jsonc or .json)", filepath.Ext(path)),
		)
	}

	p.path = path
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	p.ApplyDefaults()
	return &p, nil
}

// profileExtensions lists the recognized file extensions in preference order.
var profileExtensions = []string{".yaml", ".yml", ".jsonc", ".json"}

// workingDirCandidates are the default profile file names looked up in the
// current directory when no profile is named explicitly.
var workingDirCandidates = []string{
	"paddock.yaml", "paddock.yml", "paddock.jsonc", ".paddock.yaml",
}

// ConfigDir returns the per-user directory paddock keeps profiles and
// state in (<user-config>/paddock). The directory is not created here.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, "paddock"), nil
}

// Find locates a profile file.
//
// Resolution order:
//  1. explicitPath, when non-empty (missing file is an error, not a fallback)
//  2. name looked up as <config-dir>/profiles/<name>.<ext> and ./<name>.<ext>
//  3. the working-directory defaults (paddock.yaml and friends)
//  4. <config-dir>/profiles/default.<ext>
//
// Returns the path of the first match, or a CLIError with
// ExitProfileNotFound naming everything that was searched.
func Find(explicitPath, name string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", model.WrapCLIError(
				model.ExitProfileNotFound,
				fmt.Sprintf("profile not found: %s", explicitPath),
				err,
			)
		}
		return explicitPath, nil
	}

	var searched []string

	// Candidate directories for named lookups. The config dir is optional:
	// some CI environments have no resolvable user config path.
	var profileDirs []string
	if cfgDir, err := ConfigDir(); err == nil {
		profileDirs = append(profileDirs, filepath.Join(cfgDir, "profiles"))
	}
	profileDirs = append(profileDirs, ".")

	if name != "" {
		for _, dir := range profileDirs {
			for _, ext := range profileExtensions {
				path := filepath.Join(dir, name+ext)
				if _, err := os.Stat(path); err == nil {
					return path, nil
				}
				searched = append(searched, path)
			}
		}
		return "", model.NewCLIError(
			model.ExitProfileNotFound,
			fmt.Sprintf("profile %q not found (searched: %s)", name, strings.Join(searched, ", ")),
		)
	}

	for _, candidate := range workingDirCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		searched = append(searched, candidate)
	}

	if cfgDir, err := ConfigDir(); err == nil {
		for _, ext := range profileExtensions {
			path := filepath.Join(cfgDir, "profiles", "default"+ext)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
			searched = append(searched, path)
		}
	}

	return "", model.NewCLIError(
		model.ExitProfileNotFound,
		fmt.Sprintf("no profile found (searched: %s); create one with \"paddock profiles init\"", strings.Join(searched, ", ")),
	)
}

// Info summarizes a discoverable profile for the profiles command.
type Info struct {
	// Name is the profile's effective name.
	Name string `json:"name"`

	// Path is where the profile file lives.
	Path string `json:"path"`

	// Job is the workflow the profile launches.
	Job string `json:"job"`

	// Device is the raw adb_address setting (resolver syntax, unresolved).
	Device string `json:"device,omitempty"`

	// Err records a parse failure. Corrupt profiles are listed, not
	// hidden, so users can find and fix them.
	Err string `json:"error,omitempty"`
}

// List enumerates every discoverable profile: working-directory defaults
// plus everything under <config-dir>/paddock/profiles. Corrupt files are
// included with their parse error instead of aborting the listing.
func List() ([]Info, error) {
	seen := make(map[string]bool)
	var infos []Info

	appendProfile := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true

		p, err := Load(path)
		if err != nil {
			infos = append(infos, Info{
				Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
				Path: path,
				Err:  err.Error(),
			})
			return
		}
		infos = append(infos, Info{
			Name:   p.Name,
			Path:   path,
			Job:    p.Job,
			Device: p.ADBAddress,
		})
	}

	for _, candidate := range workingDirCandidates {
		if _, err := os.Stat(candidate); err == nil {
			appendProfile(candidate)
		}
	}

	if cfgDir, err := ConfigDir(); err == nil {
		dir := filepath.Join(cfgDir, "profiles")
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				for _, known := range profileExtensions {
					if ext == known {
						appendProfile(filepath.Join(dir, entry.Name()))
						break
					}
				}
			}
		}
	}

	// Stable order for CLI output and tests.
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}
