package emulator

import (
	"fmt"
	"net"
	"strconv"
)

const (
	// adbLadderBase is the first host port tried for a new instance.
	// 5555 is the ADB default, which keeps single-instance setups
	// indistinguishable from a plain emulator install.
	adbLadderBase = 5555

	// adbLadderStep is the spacing between instance ports, matching the
	// BlueStacks multi-instance convention (5555, 5565, 5575, ...).
	// The device package's "auto" probe walks the same ladder.
	adbLadderStep = 10

	// maxLadderInstances caps the ladder walk. Nine concurrent emulator
	// containers is already beyond what one host meaningfully drives;
	// past that the allocator falls back to an OS-assigned port.
	maxLadderInstances = 9
)

// PortAllocator assigns loopback host ports for new emulator instances.
//
// The algorithm walks the BlueStacks-style ladder (base 5555, step 10)
// and takes the first rung that is free both in the OS and among the
// already-registered instances. When the ladder is exhausted, the OS
// picks an ephemeral port instead of failing the create.
type PortAllocator struct {
	// listenFn probes availability by actually binding. Injected for tests.
	listenFn func(network, address string) (net.Listener, error)

	// taken records ports already held by existing instances, which may
	// be stopped — a stopped container holds no OS socket, so binding
	// alone would hand out its port.
	taken map[int]bool
}

// NewPortAllocator creates an allocator with production defaults.
func NewPortAllocator() *PortAllocator {
	return &PortAllocator{
		listenFn: net.Listen,
		taken:    make(map[int]bool),
	}
}

// Reserve marks ports as taken by existing instances. Call with the ADB
// ports of every listed instance before allocating.
func (a *PortAllocator) Reserve(ports ...int) {
	for _, p := range ports {
		a.taken[p] = true
	}
}

// Allocate returns a free loopback host port for a new instance: the
// first free ladder rung, or an OS-assigned ephemeral port when every
// rung is taken.
func (a *PortAllocator) Allocate() (int, error) {
	for i := 0; i < maxLadderInstances; i++ {
		port := adbLadderBase + i*adbLadderStep
		if a.taken[port] {
			continue
		}
		if a.isFree(port) {
			return port, nil
		}
	}

	// Ladder exhausted — let the OS choose. Binding to port 0 both
	// selects and verifies the port in one step.
	listener, err := a.listenFn("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("no free ADB host port: ladder exhausted and ephemeral bind failed: %w", err)
	}
	defer func() { _ = listener.Close() }()

	_, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		return 0, fmt.Errorf("failed to parse ephemeral listener address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ephemeral port: %w", err)
	}
	return port, nil
}

// isFree reports whether the port can be bound on loopback right now.
// Instances publish on 127.0.0.1 only, so loopback is the address space
// that matters.
func (a *PortAllocator) isFree(port int) bool {
	listener, err := a.listenFn("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	defer func() { _ = listener.Close() }()
	return true
}
