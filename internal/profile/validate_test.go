package profile

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// TestValidate_DefaultsAreValid verifies the built-in defaults pass
// every check; a user with no profile file must be able to launch.
func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.Empty(t, Validate(Default()))
}

// TestValidate_CollectsAllFailures verifies every problem is reported in
// one pass instead of stopping at the first.
func TestValidate_CollectsAllFailures(t *testing.T) {
	p := &Profile{
		Name:                 "-bad-",
		Job:                  "gardening",
		PauseIfRaceOrderGT:   0,
		TargetTrainingLevels: []int{1, 2, 3, 4, 5, 6},
		Plugins:              []string{"ok_plugin", "not-importable"},
		Env:                  map[string]string{EnvDebug: "true"},
	}

	errs := Validate(p)

	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "job")
	assert.Contains(t, fields, "pause_if_race_order_gt")
	assert.Contains(t, fields, "target_training_levels")
	assert.Contains(t, fields, "target_training_levels[5]")
	assert.Contains(t, fields, "plugins[1]")
	assert.Contains(t, fields, "env."+EnvDebug)
	assert.NotContains(t, fields, "plugins[0]")
}

// TestValidate_TrainingLevelRange verifies the per-entry 0-5 bound.
func TestValidate_TrainingLevelRange(t *testing.T) {
	p := Default()
	p.TargetTrainingLevels = []int{0, 5, 3}
	assert.Empty(t, Validate(p))

	p.TargetTrainingLevels = []int{-1, 3}
	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, "target_training_levels[0]", errs[0].Field)
}

// TestValidateFiles_Workdir verifies the filesystem check for the
// program working directory.
func TestValidateFiles_Workdir(t *testing.T) {
	p := Default()
	assert.Empty(t, ValidateFiles(p), "unset workdir needs no check")

	p.Program.Workdir = t.TempDir()
	assert.Empty(t, ValidateFiles(p))

	p.Program.Workdir = filepath.Join(t.TempDir(), "missing")
	errs := ValidateFiles(p)
	require.Len(t, errs, 1)
	assert.Equal(t, "program.workdir", errs[0].Field)
}

// TestFirstError verifies the aggregated CLIError carries the
// profile-invalid exit code and every message.
func TestFirstError(t *testing.T) {
	require.NoError(t, FirstError(nil))

	err := FirstError([]ValidationError{
		{Field: "job", Message: "unknown"},
		{Field: "plugins[0]", Message: "bad name"},
	})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitProfileInvalid, cliErr.Code)
	assert.Contains(t, cliErr.Message, "job: unknown")
	assert.Contains(t, cliErr.Message, "plugins[0]: bad name")
}
