// container.go implements the emulator container lifecycle via the Docker
// SDK: create, start, stop, remove, list. All managed containers carry the
// "paddock.managed-by" label, which both identifies them among unrelated
// containers and stores the instance metadata (see label.go).
package emulator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/go-connections/nat"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// DefaultImage is the redroid image used when the user names none.
// Android 11 is the newest release the game client runs reliably on.
const DefaultImage = "redroid/redroid:11.0.0-latest"

// adbPort is the ADB port inside the container.
const adbPort nat.Port = "5555/tcp"

// containerNamePrefix namespaces the Docker container names so `docker ps`
// output is self-explanatory.
const containerNamePrefix = "paddock-"

// StatusOrphaned marks containers whose paddock labels are missing or
// damaged. Kept distinct from Docker's own state strings.
const StatusOrphaned = "orphaned"

// ErrNotFound reports that no managed instance has the requested name.
type ErrNotFound struct {
	// Name is the instance that was looked up.
	Name string
}

// Error satisfies the error interface.
func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("emulator instance %q not found", e.Name)
}

// Create creates (but does not start) an emulator container named name,
// publishing the container's ADB port on the given loopback host port.
// redroid requires a privileged container to bring up its Android
// kernel facilities.
func Create(ctx context.Context, cli *Client, name, image string, hostPort int) (Instance, error) {
	if err := model.ValidateName(name); err != nil {
		return Instance{}, model.WrapCLIError(model.ExitGeneralError, "invalid emulator name", err)
	}
	if image == "" {
		image = DefaultImage
	}

	inst := Instance{
		Name:      name,
		Image:     image,
		ADBPort:   hostPort,
		CreatedAt: time.Now().UTC(),
	}

	config := &container.Config{
		Image:  image,
		Labels: BuildLabels(inst),
		ExposedPorts: nat.PortSet{
			adbPort: struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		Privileged: true,
		PortBindings: nat.PortMap{
			adbPort: []nat.PortBinding{{
				// Loopback only: the ADB endpoint is for this host's
				// automation runs, not the network.
				HostIP:   "127.0.0.1",
				HostPort: strconv.Itoa(hostPort),
			}},
		},
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}

	created, err := cli.Inner().ContainerCreate(ctx, config, hostConfig, nil, nil, containerNamePrefix+name)
	if err != nil {
		return Instance{}, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create emulator container %q", name),
			err,
		)
	}

	inst.ContainerID = created.ID
	inst.Status = "created"
	return inst, nil
}

// Start starts a stopped emulator container.
func Start(ctx context.Context, cli *Client, containerID string) error {
	err := cli.Inner().ContainerStart(ctx, containerID, container.StartOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", containerID),
			err,
		)
	}
	return nil
}

// Stop gracefully stops a running emulator container, falling back to
// SIGKILL after the daemon's default timeout.
func Stop(ctx context.Context, cli *Client, containerID string) error {
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// Remove removes an emulator container. With force, a running container
// is killed first.
func Remove(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}

// List returns every paddock-managed emulator instance, including stopped
// ones. Filtering happens server-side via the managed-by label. Containers
// with damaged labels are listed as orphaned rather than hidden, so users
// can find and remove them.
func List(ctx context.Context, cli *Client) ([]Instance, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	instances := make([]Instance, 0, len(containers))
	for _, c := range containers {
		inst, err := ParseLabels(c.Labels)
		if err != nil {
			inst = Instance{Name: c.Labels[LabelName], Status: StatusOrphaned}
			if inst.Name == "" && len(c.Names) > 0 {
				inst.Name = c.Names[0]
			}
			inst.ContainerID = c.ID
			instances = append(instances, inst)
			continue
		}
		inst.ContainerID = c.ID
		inst.Status = c.State
		instances = append(instances, inst)
	}

	return instances, nil
}

// Find looks up a managed instance by name. Returns *ErrNotFound when no
// instance matches.
func Find(ctx context.Context, cli *Client, name string) (Instance, error) {
	instances, err := List(ctx, cli)
	if err != nil {
		return Instance{}, err
	}
	for _, inst := range instances {
		if inst.Name == name {
			return inst, nil
		}
	}
	return Instance{}, &ErrNotFound{Name: name}
}

// UsedPorts returns the ADB host ports held by the given instances, for
// seeding the port allocator before a create.
func UsedPorts(instances []Instance) []int {
	ports := make([]int, 0, len(instances))
	for _, inst := range instances {
		if inst.ADBPort > 0 {
			ports = append(ports, inst.ADBPort)
		}
	}
	return ports
}

// AdbAddress resolves a managed instance name into the device address the
// child process will connect to. Used by the device resolver for
// docker:// profile addresses. The instance must be running — a stopped
// emulator would make the child spin on a dead endpoint.
func AdbAddress(ctx context.Context, cli *Client, name string) (model.DeviceAddress, error) {
	inst, err := Find(ctx, cli, name)
	if err != nil {
		return model.DeviceAddress{}, model.WrapCLIError(
			model.ExitDeviceUnresolved,
			fmt.Sprintf("cannot resolve docker://%s", name),
			err,
		)
	}
	if inst.Status != "running" {
		return model.DeviceAddress{}, model.NewCLIError(
			model.ExitDeviceUnresolved,
			fmt.Sprintf("emulator instance %q is %s — start it with \"paddock emulator start %s\"", name, inst.Status, name),
		)
	}
	return model.DeviceAddress{
		Kind: model.DeviceDocker,
		Host: "127.0.0.1",
		Port: inst.ADBPort,
	}, nil
}
