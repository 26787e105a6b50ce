// env.go renders a profile into the environment-variable contract of the
// automation module. The variable set here IS the launcher's interface:
// every launch composes exactly these variables, and each holds exactly
// its configured literal at the moment the child is spawned.
package profile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// Environment variable names consumed by the automation module.
const (
	// EnvDebug enables the module's debug mode ("true"/"false").
	EnvDebug = "DEBUG"

	// EnvLastScreenshotSavePath is where the module saves the most
	// recent screenshot for inspection.
	EnvLastScreenshotSavePath = "AUTO_DERBY_LAST_SCREENSHOT_SAVE_PATH"

	// EnvOCRImagePath is the directory for unrecognized OCR samples.
	EnvOCRImagePath = "AUTO_DERBY_OCR_IMAGE_PATH"

	// EnvEventImagePath is the directory for unknown event screenshots.
	EnvEventImagePath = "AUTO_DERBY_SINGLE_MODE_EVENT_IMAGE_PATH"

	// EnvTrainingImagePath is the directory for training-scene captures.
	EnvTrainingImagePath = "AUTO_DERBY_SINGLE_MODE_TRAINING_IMAGE_PATH"

	// EnvChoicePath is the CSV file recording single-mode event choices.
	EnvChoicePath = "AUTO_DERBY_SINGLE_MODE_CHOICE_PATH"

	// EnvPauseIfRaceOrderGT pauses the workflow after a bad race result.
	EnvPauseIfRaceOrderGT = "AUTO_DERBY_PAUSE_IF_RACE_ORDER_GT"

	// EnvPlugins is the comma-joined plugin list.
	EnvPlugins = "AUTO_DERBY_PLUGINS"

	// EnvTargetTrainingLevels is the comma-joined per-stat target list.
	EnvTargetTrainingLevels = "AUTO_DERBY_SINGLE_MODE_TARGET_TRAINING_LEVELS"

	// EnvADBAddress is the resolved device address, or "" for the
	// desktop client.
	EnvADBAddress = "AUTO_DERBY_ADB_ADDRESS"

	// EnvCheckUpdate toggles the module's own update check.
	EnvCheckUpdate = "AUTO_DERBY_CHECK_UPDATE"
)

// managedEnvNames is the full variable set the launcher owns, in render
// order. Profiles may not override these through their extra env map.
var managedEnvNames = []string{
	EnvDebug,
	EnvLastScreenshotSavePath,
	EnvOCRImagePath,
	EnvEventImagePath,
	EnvTrainingImagePath,
	EnvChoicePath,
	EnvPauseIfRaceOrderGT,
	EnvPlugins,
	EnvTargetTrainingLevels,
	EnvADBAddress,
	EnvCheckUpdate,
}

// ManagedEnvNames returns the environment variable names the launcher
// composes itself. The returned slice is a copy.
func ManagedEnvNames() []string {
	names := make([]string, len(managedEnvNames))
	copy(names, managedEnvNames)
	return names
}

// IsManagedEnv reports whether name is one of the launcher-owned
// variables.
func IsManagedEnv(name string) bool {
	for _, n := range managedEnvNames {
		if n == name {
			return true
		}
	}
	return false
}

// EffectivePaths returns the five artifact paths after applying DebugDir
// derivation to unset overrides. Explicit overrides win untouched.
func (p *Profile) EffectivePaths() PathOverrides {
	out := p.Paths
	if out.LastScreenshot == "" {
		out.LastScreenshot = filepath.Join(p.DebugDir, "last_screenshot.png")
	}
	if out.OCRImages == "" {
		out.OCRImages = filepath.Join(p.DebugDir, "ocr_images")
	}
	if out.EventImages == "" {
		out.EventImages = filepath.Join(p.DebugDir, "single_mode_event_images")
	}
	if out.TrainingImages == "" {
		out.TrainingImages = filepath.Join(p.DebugDir, "single_mode_training_images")
	}
	if out.ChoicesCSV == "" {
		out.ChoicesCSV = "single_mode_choices.csv"
	}
	return out
}

// RenderEnv composes the complete child environment map for a launch:
// every managed variable (always all eleven, even when a value is empty)
// plus the profile's extra env entries. The device address must already
// be resolved; RenderEnv does no I/O and no resolution.
func RenderEnv(p *Profile, device model.DeviceAddress) map[string]string {
	paths := p.EffectivePaths()

	env := map[string]string{
		EnvDebug:                  strconv.FormatBool(p.DebugEnabled()),
		EnvLastScreenshotSavePath: paths.LastScreenshot,
		EnvOCRImagePath:           paths.OCRImages,
		EnvEventImagePath:         paths.EventImages,
		EnvTrainingImagePath:      paths.TrainingImages,
		EnvChoicePath:             paths.ChoicesCSV,
		EnvPauseIfRaceOrderGT:     strconv.Itoa(p.PauseIfRaceOrderGT),
		EnvPlugins:                strings.Join(p.Plugins, ","),
		EnvTargetTrainingLevels:   joinInts(p.TargetTrainingLevels),
		EnvADBAddress:             device.String(),
		EnvCheckUpdate:            strconv.FormatBool(p.CheckUpdateEnabled()),
	}

	// Extra variables pass through verbatim. Validation already rejected
	// managed keys here, but guard anyway so a hand-built Profile cannot
	// silently clobber the contract.
	for k, v := range p.Env {
		if !IsManagedEnv(k) {
			env[k] = v
		}
	}

	return env
}

// EncodeEnv converts an environment map into the "KEY=VALUE" slice form
// expected by os/exec, sorted by key. Sorting makes the encoding
// deterministic: the same profile always produces the same slice.
func EncodeEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}

// joinInts renders a comma-joined integer list, the format the module
// parses for training levels. An empty list renders as "" so the module
// falls back to its own defaults.
func joinInts(values []int) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
