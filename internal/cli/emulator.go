// Package cli — emulator.go implements the "paddock emulator" command
// group for managing redroid-based Android emulator containers. The
// containers carry paddock labels as their only state; "docker://<name>"
// device addresses resolve against them.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/paddock/internal/emulator"
)

// defaultEmulatorName is used when no instance name is given.
const defaultEmulatorName = "default"

// emulatorFlags holds the flag values for the emulator subcommands.
type emulatorFlags struct {
	image string // --image: container image override
	port  int    // --port: host ADB port override
	force bool   // --force: skip the remove confirmation
}

// NewEmulatorCommand creates the "emulator" command and its subcommands.
func NewEmulatorCommand() *cobra.Command {
	flags := &emulatorFlags{}

	cmd := &cobra.Command{
		Use:   "emulator",
		Short: "Manage Android emulator containers",
		Long: fmt.Sprintf(`Manage paddock's Android emulator containers (image %s).

Each emulator publishes its ADB port on 127.0.0.1 and is addressable
from a profile as "docker://<name>".

Examples:
  paddock emulator start
  paddock emulator start trainer2 --port 5585
  paddock emulator status
  paddock emulator stop trainer2
  paddock emulator remove trainer2 --force`, emulator.DefaultImage),
	}

	startCmd := &cobra.Command{
		Use:   "start [name]",
		Short: "Create (if needed) and start an emulator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmulatorStart(cmd.Context(), emulatorName(args), flags)
		},
	}
	startCmd.Flags().StringVar(&flags.image, "image", emulator.DefaultImage, "Container image")
	startCmd.Flags().IntVar(&flags.port, "port", 0, "Host ADB port (default: first free ladder port)")

	stopCmd := &cobra.Command{
		Use:   "stop [name]",
		Short: "Stop an emulator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmulatorStop(cmd.Context(), emulatorName(args))
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List emulators and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmulatorStatus(cmd.Context())
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove [name]",
		Short: "Remove an emulator container",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmulatorRemove(cmd.Context(), emulatorName(args), flags)
		},
	}
	removeCmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Remove without confirmation (stops a running emulator)")

	cmd.AddCommand(startCmd, stopCmd, statusCmd, removeCmd)
	return cmd
}

func emulatorName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultEmulatorName
}

// runEmulatorStart creates the emulator container if it doesn't exist
// yet, then starts it.
func runEmulatorStart(ctx context.Context, name string, flags *emulatorFlags) error {
	cli, err := emulator.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	inst, err := emulator.Find(ctx, cli, name)
	var notFound *emulator.ErrNotFound
	switch {
	case err == nil:
		zap.S().Debugf("emulator %q exists (status %s)", name, inst.Status)
	case errors.As(err, &notFound):
		hostPort := flags.port
		if hostPort == 0 {
			hostPort, err = allocateEmulatorPort(ctx, cli)
			if err != nil {
				return err
			}
		}
		zap.S().Debugf("creating emulator %q on port %d", name, hostPort)
		inst, err = emulator.Create(ctx, cli, name, flags.image, hostPort)
		if err != nil {
			return err
		}
	default:
		return err
	}

	if err := emulator.Start(ctx, cli, inst.ContainerID); err != nil {
		return err
	}

	printEmulatorStartResult(inst)
	return nil
}

// allocateEmulatorPort picks a free ladder port, skipping ports already
// published by existing emulators.
func allocateEmulatorPort(ctx context.Context, cli *emulator.Client) (int, error) {
	instances, err := emulator.List(ctx, cli)
	if err != nil {
		return 0, err
	}
	alloc := emulator.NewPortAllocator()
	alloc.Reserve(emulator.UsedPorts(instances)...)
	return alloc.Allocate()
}

// runEmulatorStop stops a running emulator.
func runEmulatorStop(ctx context.Context, name string) error {
	cli, err := emulator.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	inst, err := emulator.Find(ctx, cli, name)
	if err != nil {
		return err
	}
	if err := emulator.Stop(ctx, cli, inst.ContainerID); err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{"name": name, "status": "stopped"}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Stopped emulator %q\n", name)
	return nil
}

// runEmulatorStatus lists every managed emulator.
func runEmulatorStatus(ctx context.Context) error {
	cli, err := emulator.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	instances, err := emulator.List(ctx, cli)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		type instanceJSON struct {
			Name       string `json:"name"`
			Status     string `json:"status"`
			ADBAddress string `json:"adbAddress"`
			Image      string `json:"image"`
			CreatedAt  string `json:"createdAt"`
		}
		out := make([]instanceJSON, 0, len(instances))
		for _, inst := range instances {
			out = append(out, instanceJSON{
				Name:       inst.Name,
				Status:     inst.Status,
				ADBAddress: inst.AdbAddress(),
				Image:      inst.Image,
				CreatedAt:  inst.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(instances) == 0 {
		fmt.Println("No emulators. Create one with \"paddock emulator start\".")
		return nil
	}

	fmt.Printf("%-16s %-10s %-20s %s\n", "NAME", "STATUS", "ADB ADDRESS", "IMAGE")
	for _, inst := range instances {
		addr := inst.AdbAddress()
		if inst.Status != "running" {
			addr = "-"
		}
		fmt.Printf("%-16s %-10s %-20s %s\n", inst.Name, inst.Status, addr, inst.Image)
	}
	return nil
}

// runEmulatorRemove removes an emulator container after confirmation.
func runEmulatorRemove(ctx context.Context, name string, flags *emulatorFlags) error {
	cli, err := emulator.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	inst, err := emulator.Find(ctx, cli, name)
	if err != nil {
		return err
	}

	question := fmt.Sprintf("Remove emulator %q?", name)
	if inst.Status == "running" {
		question = fmt.Sprintf("Emulator %q is running. Stop and remove it?", name)
	}
	if err := requireConfirmation(question, flags.force); err != nil {
		return err
	}

	if err := emulator.Remove(ctx, cli, inst.ContainerID, true); err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{"name": name, "status": "removed"}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Removed emulator %q\n", name)
	return nil
}

// printEmulatorStartResult outputs the start result in text or JSON.
func printEmulatorStartResult(inst emulator.Instance) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"name":       inst.Name,
			"adbAddress": inst.AdbAddress(),
			"status":     "running",
		}, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("Emulator %q running\n", inst.Name)
	fmt.Printf("  ADB address: %s\n", inst.AdbAddress())
	fmt.Printf("  Profile setting: adb_address: docker://%s\n", inst.Name)
}
