package emulator

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAddr satisfies net.Addr for the listener stub.
type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

// fakeListener is a no-op net.Listener whose Addr is fixed.
type fakeListener struct{ addr fakeAddr }

func (l *fakeListener) Accept() (net.Conn, error) { return nil, fmt.Errorf("not implemented") }
func (l *fakeListener) Close() error              { return nil }
func (l *fakeListener) Addr() net.Addr            { return l.addr }

// stubAllocator builds an allocator whose listen calls fail for the given
// busy addresses and otherwise succeed, with ":0" binds reporting the
// ephemeral port.
func stubAllocator(ephemeralPort int, busy ...string) *PortAllocator {
	busySet := make(map[string]bool, len(busy))
	for _, addr := range busy {
		busySet[addr] = true
	}
	a := NewPortAllocator()
	a.listenFn = func(network, address string) (net.Listener, error) {
		if busySet[address] {
			return nil, fmt.Errorf("listen tcp %s: address already in use", address)
		}
		if address == "127.0.0.1:0" {
			return &fakeListener{addr: fakeAddr(fmt.Sprintf("127.0.0.1:%d", ephemeralPort))}, nil
		}
		return &fakeListener{addr: fakeAddr(address)}, nil
	}
	return a
}

// TestAllocate_FirstRung verifies a fresh host gets the ADB default 5555.
func TestAllocate_FirstRung(t *testing.T) {
	a := stubAllocator(49200)

	port, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 5555, port)
}

// TestAllocate_SkipsReservedAndBusy verifies the ladder steps over rungs
// held by existing instances and rungs the OS reports busy.
func TestAllocate_SkipsReservedAndBusy(t *testing.T) {
	a := stubAllocator(49200, "127.0.0.1:5565")
	a.Reserve(5555)

	port, err := a.Allocate()
	require.NoError(t, err)
	// 5555 reserved by a stopped instance, 5565 busy in the OS → 5575.
	assert.Equal(t, 5575, port)
}

// TestAllocate_EphemeralFallback verifies the allocator hands out an
// OS-assigned port when all nine ladder rungs are taken.
func TestAllocate_EphemeralFallback(t *testing.T) {
	a := stubAllocator(49321)
	for i := 0; i < maxLadderInstances; i++ {
		a.Reserve(adbLadderBase + i*adbLadderStep)
	}

	port, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 49321, port)
}

// TestAllocate_RealBind exercises the production listen path once: the
// allocated port must actually be bindable on loopback.
func TestAllocate_RealBind(t *testing.T) {
	a := NewPortAllocator()

	port, err := a.Allocate()
	require.NoError(t, err)

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err, "the allocated port should be free")
	require.NoError(t, listener.Close())
}
