package emulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildParseLabels_RoundTrip verifies that an instance survives the
// label encode/decode cycle intact.
func TestBuildParseLabels_RoundTrip(t *testing.T) {
	created := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	inst := Instance{
		Name:      "stall-1",
		Image:     DefaultImage,
		ADBPort:   5565,
		CreatedAt: created,
	}

	labels := BuildLabels(inst)
	assert.Equal(t, ManagedByValue, labels[LabelManagedBy])
	assert.Equal(t, "5565", labels[LabelADBPort])
	assert.Equal(t, "2026-08-30T10:00:00Z", labels[LabelCreatedAt])

	parsed, err := ParseLabels(labels)
	require.NoError(t, err)
	assert.Equal(t, inst, parsed)
}

// TestParseLabels_MissingKeys verifies that every missing label is named
// in one error instead of failing on the first.
func TestParseLabels_MissingKeys(t *testing.T) {
	_, err := ParseLabels(map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelName:      "stall-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelImage)
	assert.Contains(t, err.Error(), LabelADBPort)
	assert.Contains(t, err.Error(), LabelCreatedAt)
}

// TestParseLabels_WrongManager verifies containers labeled by other tools
// are rejected even if the key happens to exist.
func TestParseLabels_WrongManager(t *testing.T) {
	labels := BuildLabels(Instance{Name: "x", Image: "img", ADBPort: 5555, CreatedAt: time.Now().UTC()})
	labels[LabelManagedBy] = "someone-else"

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "someone-else")
}

// TestParseLabels_BadValues verifies malformed port and timestamp values
// are rejected.
func TestParseLabels_BadValues(t *testing.T) {
	base := BuildLabels(Instance{Name: "x", Image: "img", ADBPort: 5555, CreatedAt: time.Now().UTC()})

	bad := make(map[string]string, len(base))
	for k, v := range base {
		bad[k] = v
	}
	bad[LabelADBPort] = "not-a-port"
	_, err := ParseLabels(bad)
	assert.Error(t, err)

	bad = make(map[string]string, len(base))
	for k, v := range base {
		bad[k] = v
	}
	bad[LabelADBPort] = "70000"
	_, err = ParseLabels(bad)
	assert.Error(t, err)

	bad = make(map[string]string, len(base))
	for k, v := range base {
		bad[k] = v
	}
	bad[LabelCreatedAt] = "yesterday"
	_, err = ParseLabels(bad)
	assert.Error(t, err)
}

// TestInstance_AdbAddress verifies the loopback endpoint rendering.
func TestInstance_AdbAddress(t *testing.T) {
	inst := Instance{Name: "stall-1", ADBPort: 5575}
	assert.Equal(t, "127.0.0.1:5575", inst.AdbAddress())
}

// TestUsedPorts verifies port collection skips orphaned instances with no
// parsed port.
func TestUsedPorts(t *testing.T) {
	ports := UsedPorts([]Instance{
		{Name: "a", ADBPort: 5555},
		{Name: "broken", Status: StatusOrphaned},
		{Name: "b", ADBPort: 5565},
	})
	assert.Equal(t, []int{5555, 5565}, ports)
}
