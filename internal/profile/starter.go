// starter.go generates the commented starter profile written by
// "paddock profiles init". The template documents every key inline so a
// fresh profile doubles as reference material; values match the defaults
// ApplyDefaults would pick anyway, making the generated file a no-op
// until edited.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
)

// starterTemplate is the full starter profile. Kept as a literal rather
// than marshaled YAML because the inline comments are the point.
const starterTemplate = `# paddock launch profile
# Edit values and run: paddock run

# Workflow passed to the automation module as its only argument.
# One of: nurturing, team_race, champions_meeting, legend_race,
# daily_race, roulette_derby.
job: nurturing

# Debug mode: sets DEBUG=true and populates the artifact paths below.
debug: true
debug_dir: debug

# Plugin names, comma-joined into AUTO_DERBY_PLUGINS in this order.
plugins: []
#  - bluestacks_port
#  - race_campaign

# Pause for manual input when a race finishes below this position.
pause_if_race_order_gt: 5

# Per-stat training facility targets: speed, stamina, power, guts, wisdom.
# Leave empty to use the module's own defaults.
target_training_levels: []
#  - 5
#  - 3
#  - 2
#  - 0
#  - 3

# Device address. Leave empty for the desktop client, or use:
#   127.0.0.1:5555          literal ADB endpoint
#   auto                    probe well-known local emulator ports
#   bluestacks://Nougat64   read the port from bluestacks.conf
#   docker://my-emulator    a paddock-managed emulator container
adb_address: ""

# Check the upstream project for new releases before launching.
check_update: true

# How the module is invoked. With no command, paddock finds a Python
# interpreter and runs "-m auto_derby".
program:
  command: ""
  args: []
  workdir: ""
`

// WriteStarter writes the starter profile to path, creating parent
// directories as needed. Refuses to overwrite an existing file: a typoed
// init must not destroy a tuned profile.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing profile %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(starterTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write starter profile to %s: %w", path, err)
	}

	return nil
}
