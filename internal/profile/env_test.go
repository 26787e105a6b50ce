package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// TestRenderEnv_AllManagedVariablesPresent verifies the contract's core
// shape: every launch composes all eleven managed variables, even when
// the profile leaves most of them at their empty defaults.
func TestRenderEnv_AllManagedVariablesPresent(t *testing.T) {
	env := RenderEnv(Default(), model.DeviceAddress{})

	for _, name := range ManagedEnvNames() {
		_, ok := env[name]
		assert.True(t, ok, "missing %s", name)
	}
	assert.Len(t, env, len(ManagedEnvNames()))
}

// TestRenderEnv_Values verifies the rendered literals for a fully
// configured profile.
func TestRenderEnv_Values(t *testing.T) {
	f := false
	p := &Profile{
		Name:                 "overnight",
		Job:                  "nurturing",
		DebugDir:             "artifacts",
		Plugins:              []string{"auto_crane", "limited_sale_buy_first_3"},
		PauseIfRaceOrderGT:   3,
		TargetTrainingLevels: []int{5, 3, 3, 2, 2},
		CheckUpdate:          &f,
		Env:                  map[string]string{"PYTHONUNBUFFERED": "1"},
	}
	p.ApplyDefaults()

	device := model.DeviceAddress{Kind: model.DeviceStatic, Host: "127.0.0.1", Port: 5555}
	env := RenderEnv(p, device)

	assert.Equal(t, "true", env[EnvDebug])
	assert.Equal(t, "artifacts/last_screenshot.png", toSlash(env[EnvLastScreenshotSavePath]))
	assert.Equal(t, "artifacts/ocr_images", toSlash(env[EnvOCRImagePath]))
	assert.Equal(t, "artifacts/single_mode_event_images", toSlash(env[EnvEventImagePath]))
	assert.Equal(t, "artifacts/single_mode_training_images", toSlash(env[EnvTrainingImagePath]))
	assert.Equal(t, "single_mode_choices.csv", env[EnvChoicePath])
	assert.Equal(t, "3", env[EnvPauseIfRaceOrderGT])
	assert.Equal(t, "auto_crane,limited_sale_buy_first_3", env[EnvPlugins])
	assert.Equal(t, "5,3,3,2,2", env[EnvTargetTrainingLevels])
	assert.Equal(t, "127.0.0.1:5555", env[EnvADBAddress])
	assert.Equal(t, "false", env[EnvCheckUpdate])
	assert.Equal(t, "1", env["PYTHONUNBUFFERED"])
}

// TestRenderEnv_NoDevice verifies the desktop-client case renders an
// empty address, not an omitted variable.
func TestRenderEnv_NoDevice(t *testing.T) {
	env := RenderEnv(Default(), model.DeviceAddress{})

	val, ok := env[EnvADBAddress]
	require.True(t, ok)
	assert.Empty(t, val)
}

// TestRenderEnv_ExtraEnvCannotShadowManaged verifies a hand-built
// profile's extra env map cannot clobber a managed variable.
func TestRenderEnv_ExtraEnvCannotShadowManaged(t *testing.T) {
	p := Default()
	p.Env = map[string]string{EnvADBAddress: "10.0.0.1:9999"}

	env := RenderEnv(p, model.DeviceAddress{})
	assert.Empty(t, env[EnvADBAddress])
}

// TestEncodeEnv_Deterministic is a property test: for any environment
// map, EncodeEnv must produce a sorted KEY=VALUE slice containing every
// entry exactly once. The same profile must always spawn the child with
// the same environment slice.
func TestEncodeEnv_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfDistinct(
			rapid.StringMatching(`[A-Z][A-Z0-9_]{0,20}`),
			func(s string) string { return s },
		).Draw(t, "keys")

		env := make(map[string]string, len(keys))
		for _, k := range keys {
			env[k] = rapid.StringMatching(`[ -~]{0,30}`).Draw(t, "value-"+k)
		}

		out := EncodeEnv(env)

		require.Len(t, out, len(env))
		for i, kv := range out {
			key, value, found := strings.Cut(kv, "=")
			require.True(t, found, "entry %q has no separator", kv)
			assert.Equal(t, env[key], value)
			if i > 0 {
				prev, _, _ := strings.Cut(out[i-1], "=")
				assert.Less(t, prev, key, "keys must be strictly ascending")
			}
		}

		// Encoding twice yields the identical slice.
		assert.Equal(t, out, EncodeEnv(env))
	})
}

// TestIsManagedEnv verifies the managed-name membership check.
func TestIsManagedEnv(t *testing.T) {
	assert.True(t, IsManagedEnv(EnvDebug))
	assert.True(t, IsManagedEnv(EnvCheckUpdate))
	assert.False(t, IsManagedEnv("PATH"))
	assert.False(t, IsManagedEnv("AUTO_DERBY_UNKNOWN"))
}

// toSlash normalizes platform separators for path assertions.
func toSlash(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
