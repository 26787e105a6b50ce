// Package cli — profiles.go implements the "paddock profiles" command
// group: listing discoverable profiles, showing one profile's effective
// configuration (after defaulting), and writing a starter profile.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/paddock/internal/model"
	"github.com/mmr-tortoise/paddock/internal/profile"
)

// NewProfilesCommand creates the "profiles" command and its subcommands.
func NewProfilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage launch profiles",
		Long: `List, inspect, and create paddock launch profiles.

Profiles live in the working directory (paddock.yaml) or in the per-user
profile directory, and hold everything a launch needs: the job, debug
settings, plugins, and the device address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfilesList()
		},
	}

	cmd.AddCommand(newProfilesShowCommand())
	cmd.AddCommand(newProfilesInitCommand())

	return cmd
}

func newProfilesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a profile's effective configuration",
		Long: `Show one profile with every default applied — exactly what a launch
would use, including the derived debug artifact paths.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfilesShow(args[0])
		},
	}
}

func newProfilesInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter profile",
		Long: `Write a commented starter profile. Without a path it goes to
./paddock.yaml; an existing file is never overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "paddock.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			return runProfilesInit(path)
		},
	}
}

// runProfilesList prints every discoverable profile.
func runProfilesList() error {
	infos, err := profile.List()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(infos, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(infos) == 0 {
		fmt.Println("No profiles found. Create one with \"paddock profiles init\".")
		return nil
	}

	fmt.Printf("%-20s %-18s %-24s %s\n", "NAME", "JOB", "DEVICE", "PATH")
	for _, info := range infos {
		if info.Err != "" {
			fmt.Printf("%-20s %-18s %-24s %s (invalid: %s)\n",
				info.Name, "-", "-", info.Path, firstLine(info.Err))
			continue
		}
		device := info.Device
		if device == "" {
			device = "(desktop client)"
		}
		fmt.Printf("%-20s %-18s %-24s %s\n", info.Name, info.Job, device, info.Path)
	}
	return nil
}

// runProfilesShow loads one profile and prints its effective settings.
func runProfilesShow(name string) error {
	explicitPath := ""
	if looksLikePath(name) {
		explicitPath, name = name, ""
	}
	path, err := profile.Find(explicitPath, name)
	if err != nil {
		return err
	}
	p, err := profile.Load(path)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		// Marshal the effective view: profile plus derived paths.
		view := struct {
			*profile.Profile
			Path           string                `json:"path"`
			EffectivePaths profile.PathOverrides `json:"effectivePaths"`
		}{p, p.Path(), p.EffectivePaths()}
		data, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	paths := p.EffectivePaths()
	fmt.Printf("Profile %q (%s)\n", p.Name, p.Path())
	fmt.Printf("  Job:           %s\n", p.Job)
	fmt.Printf("  Debug:         %v (dir: %s)\n", p.DebugEnabled(), p.DebugDir)
	fmt.Printf("  Check update:  %v\n", p.CheckUpdateEnabled())
	fmt.Printf("  Pause if >:    %d\n", p.PauseIfRaceOrderGT)
	if len(p.Plugins) > 0 {
		fmt.Printf("  Plugins:       %s\n", strings.Join(p.Plugins, ", "))
	}
	if len(p.TargetTrainingLevels) > 0 {
		fmt.Printf("  Training lvls: %v\n", p.TargetTrainingLevels)
	}
	device := p.ADBAddress
	if device == "" {
		device = "(desktop client)"
	}
	fmt.Printf("  Device:        %s\n", device)
	fmt.Println("  Artifact paths:")
	fmt.Printf("    last screenshot:  %s\n", paths.LastScreenshot)
	fmt.Printf("    ocr images:       %s\n", paths.OCRImages)
	fmt.Printf("    event images:     %s\n", paths.EventImages)
	fmt.Printf("    training images:  %s\n", paths.TrainingImages)
	fmt.Printf("    choices csv:      %s\n", paths.ChoicesCSV)
	if len(p.Env) > 0 {
		fmt.Println("  Extra env:")
		for _, kv := range profile.EncodeEnv(p.Env) {
			fmt.Printf("    %s\n", kv)
		}
	}
	if p.Program.Command != "" || len(p.Program.Args) > 0 {
		fmt.Printf("  Program:       %s %s\n", p.Program.Command, strings.Join(p.Program.Args, " "))
	}

	if errs := profile.Validate(p); len(errs) > 0 {
		fmt.Println("  Problems:")
		for _, e := range errs {
			fmt.Printf("    %s: %s\n", e.Field, e.Message)
		}
	}
	return nil
}

// runProfilesInit writes the starter profile.
func runProfilesInit(path string) error {
	if err := profile.WriteStarter(path); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{"path": abs}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Wrote starter profile to %s\n", abs)
	return nil
}

// firstLine trims an error message to its first line for table output.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// promptConfirmation asks the user a yes/no question on the terminal.
// Used by destructive commands when --force is not given. A non-"y"
// answer (or unreadable stdin) counts as "no".
func promptConfirmation(question string) (bool, error) {
	fmt.Printf("%s [y/N]: ", question)
	var answer string
	if _, err := fmt.Fscanln(os.Stdin, &answer); err != nil {
		return false, nil
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// requireConfirmation wraps promptConfirmation with the standard
// user-cancelled error.
func requireConfirmation(question string, force bool) error {
	if force {
		return nil
	}
	ok, err := promptConfirmation(question)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewCLIError(model.ExitUserCancelled, "cancelled")
	}
	return nil
}
