package emulator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Label key constants define the Docker label keys used to persist
// emulator instance metadata on containers. These labels are the sole
// persistence mechanism — there is no external state file.
//
// All keys share the "paddock." prefix to namespace them and avoid
// collisions with labels set by other tools.
const (
	// LabelPrefix is the common prefix for all paddock labels.
	LabelPrefix = "paddock."

	// LabelManagedBy identifies containers managed by paddock. This is
	// the primary label used for filtering and discovery.
	// Key: "paddock.managed-by", Value: always "paddock".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelName stores the emulator instance name.
	// Key: "paddock.name", Value: instance name (e.g., "stall-1").
	LabelName = LabelPrefix + "name"

	// LabelImage stores the redroid image the instance was created from.
	// Key: "paddock.image", Value: image reference.
	LabelImage = LabelPrefix + "image"

	// LabelADBPort stores the loopback host port the container's ADB port
	// is published on. Key: "paddock.adb-port", Value: decimal port.
	LabelADBPort = LabelPrefix + "adb-port"

	// LabelCreatedAt stores the instance creation timestamp.
	// Key: "paddock.created-at", Value: RFC3339 formatted timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
// All containers created by this CLI are tagged with this value,
// enabling discovery via Docker API label filters.
const ManagedByValue = "paddock"

// Instance describes one paddock-managed emulator container, rebuilt
// from container labels and runtime state.
type Instance struct {
	// Name is the instance's unique identifier.
	Name string `json:"name"`

	// Image is the redroid image the container runs.
	Image string `json:"image"`

	// ADBPort is the loopback host port publishing the container's
	// ADB port (5555/tcp).
	ADBPort int `json:"adbPort"`

	// CreatedAt is when the instance was created.
	CreatedAt time.Time `json:"createdAt"`

	// ContainerID is the Docker container id. Runtime state, not a label.
	ContainerID string `json:"containerId,omitempty"`

	// Status is the container state reported by Docker ("running",
	// "exited", ...), or "orphaned" when labels are damaged.
	Status string `json:"status,omitempty"`
}

// AdbAddress renders the instance's loopback ADB endpoint, the value the
// device resolver yields for docker:// addresses.
func (i Instance) AdbAddress() string {
	return fmt.Sprintf("127.0.0.1:%d", i.ADBPort)
}

// BuildLabels constructs the Docker label map for an emulator instance.
// The labels allow full reconstruction of the Instance from container
// inspection alone.
func BuildLabels(inst Instance) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelName:      inst.Name,
		LabelImage:     inst.Image,
		LabelADBPort:   strconv.Itoa(inst.ADBPort),
		// UTC RFC3339 keeps the timestamp consistent regardless of the
		// host machine's timezone.
		LabelCreatedAt: inst.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs an Instance from Docker container labels.
// This is the inverse of BuildLabels.
//
// Missing required labels are reported all at once rather than failing on
// the first one, so the error message supports debugging a damaged
// container in a single pass.
func ParseLabels(labels map[string]string) (Instance, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelName,
		LabelImage,
		LabelADBPort,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Instance{}, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return Instance{}, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	port, err := strconv.Atoi(labels[LabelADBPort])
	if err != nil {
		return Instance{}, fmt.Errorf("invalid label %s: %w", LabelADBPort, err)
	}
	if port < 1 || port > 65535 {
		return Instance{}, fmt.Errorf("invalid label %s: port %d out of range", LabelADBPort, port)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return Instance{}, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return Instance{
		Name:      labels[LabelName],
		Image:     labels[LabelImage],
		ADBPort:   port,
		CreatedAt: createdAt,
	}, nil
}
