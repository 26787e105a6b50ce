// validate.go provides validation for parsed profiles, run before every
// launch and by the doctor command. Validation is pure: file-existence
// checks live in ValidateFiles so callers can decide whether touching the
// filesystem is appropriate.
package profile

import (
	"fmt"
	"os"
	"regexp"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// ValidationError represents a specific validation failure in a profile.
type ValidationError struct {
	// Field is the profile key that failed validation (e.g. "plugins[2]").
	Field string

	// Message describes what's wrong with the field value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile validation error: %s: %s", e.Field, e.Message)
}

// pluginNameRegex matches importable plugin module names. The automation
// module imports plugins as Python modules, so hyphens and dots are out.
var pluginNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// trainingStatCount is the number of per-stat training targets the module
// understands (speed, stamina, power, guts, wisdom).
const trainingStatCount = 5

// maxTrainingLevel is the highest facility level in the game.
const maxTrainingLevel = 5

// Validate performs consistency checks on a profile and returns a list of
// validation errors (empty list = valid profile).
//
// Checks performed:
//   - Name is a valid identifier
//   - Job parses to a known workflow
//   - pause_if_race_order_gt is at least 1 (1 = pause on anything but a win)
//   - target_training_levels has at most five entries in the 0-5 range
//   - Plugin names are importable module names
//   - Extra env entries do not shadow launcher-managed variables
func Validate(p *Profile) []ValidationError {
	var errors []ValidationError

	if p.Name != "" {
		if err := model.ValidateName(p.Name); err != nil {
			errors = append(errors, ValidationError{
				Field:   "name",
				Message: err.Error(),
			})
		}
	}

	if _, err := model.ParseJob(p.Job); err != nil {
		errors = append(errors, ValidationError{
			Field:   "job",
			Message: err.Error(),
		})
	}

	if p.PauseIfRaceOrderGT < 1 {
		errors = append(errors, ValidationError{
			Field:   "pause_if_race_order_gt",
			Message: fmt.Sprintf("must be at least 1, got %d", p.PauseIfRaceOrderGT),
		})
	}

	if len(p.TargetTrainingLevels) > trainingStatCount {
		errors = append(errors, ValidationError{
			Field:   "target_training_levels",
			Message: fmt.Sprintf("at most %d entries (speed, stamina, power, guts, wisdom), got %d", trainingStatCount, len(p.TargetTrainingLevels)),
		})
	}
	for i, level := range p.TargetTrainingLevels {
		if level < 0 || level > maxTrainingLevel {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("target_training_levels[%d]", i),
				Message: fmt.Sprintf("level %d out of range (0-%d)", level, maxTrainingLevel),
			})
		}
	}

	for i, plugin := range p.Plugins {
		if !pluginNameRegex.MatchString(plugin) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("plugins[%d]", i),
				Message: fmt.Sprintf("invalid plugin name %q: must be an importable module name", plugin),
			})
		}
	}

	for key := range p.Env {
		if IsManagedEnv(key) {
			errors = append(errors, ValidationError{
				Field:   "env." + key,
				Message: "launcher-managed variable cannot be overridden here; use the dedicated profile field",
			})
		}
	}

	return errors
}

// ValidateFiles performs the filesystem-dependent checks skipped by
// Validate: the program workdir must exist when set. Used by the run
// path and the doctor command.
func ValidateFiles(p *Profile) []ValidationError {
	var errors []ValidationError

	if p.Program.Workdir != "" {
		info, err := os.Stat(p.Program.Workdir)
		switch {
		case err != nil:
			errors = append(errors, ValidationError{
				Field:   "program.workdir",
				Message: fmt.Sprintf("directory not accessible: %v", err),
			})
		case !info.IsDir():
			errors = append(errors, ValidationError{
				Field:   "program.workdir",
				Message: fmt.Sprintf("%s is not a directory", p.Program.Workdir),
			})
		}
	}

	return errors
}

// FirstError converts a validation result into a single CLIError with the
// profile-invalid exit code, or nil when the profile is valid. The message
// carries every failure so users can fix them in one pass.
func FirstError(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	msg := "invalid profile:"
	for _, e := range errs {
		msg += fmt.Sprintf("\n  - %s: %s", e.Field, e.Message)
	}
	return model.NewCLIError(model.ExitProfileInvalid, msg)
}
