package device

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// defaultDialTimeout bounds the reachability probe for a single endpoint.
// Emulators answer on localhost within milliseconds; two seconds covers
// ADB-over-WiFi setups without making a dead address feel like a hang.
const defaultDialTimeout = 2 * time.Second

// knownEmulatorPorts are the local ADB ports probed by the "auto" form,
// in order: BlueStacks multi-instance (base 5555, step 10), MuMu Player 12,
// MEmu, and Nox. First reachable port wins.
var knownEmulatorPorts = []int{5555, 5565, 5575, 16384, 21503, 62001}

// DockerLookupFunc translates a managed emulator name into its published
// ADB address. Injected by the CLI layer so this package stays free of the
// Docker SDK (and usable when Docker is not installed at all).
type DockerLookupFunc func(ctx context.Context, name string) (model.DeviceAddress, error)

// Resolver turns raw adb_address strings into resolved endpoints.
//
// The dial, file-read, and Docker hooks are injectable so tests can
// exercise every address form without emulators, conf files, or a
// Docker daemon.
type Resolver struct {
	dialTimeout  time.Duration
	dialFn       func(network, address string, timeout time.Duration) (net.Conn, error)
	readFileFn   func(path string) ([]byte, error)
	dockerLookup DockerLookupFunc
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDockerLookup installs the hook used for docker:// addresses.
// Without it, docker:// addresses fail with an actionable error.
func WithDockerLookup(fn DockerLookupFunc) ResolverOption {
	return func(r *Resolver) {
		r.dockerLookup = fn
	}
}

// WithDialFunc overrides the TCP dialer (tests).
func WithDialFunc(fn func(network, address string, timeout time.Duration) (net.Conn, error)) ResolverOption {
	return func(r *Resolver) {
		r.dialFn = fn
	}
}

// WithReadFile overrides conf-file reading (tests).
func WithReadFile(fn func(path string) ([]byte, error)) ResolverOption {
	return func(r *Resolver) {
		r.readFileFn = fn
	}
}

// NewResolver creates a Resolver with production defaults.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dialTimeout: defaultDialTimeout,
		dialFn:      net.DialTimeout,
		readFileFn:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve parses raw and produces the endpoint rendered into
// AUTO_DERBY_ADB_ADDRESS. When probe is true, static and BlueStacks
// addresses are additionally dialed to confirm something is listening;
// the "auto" form always probes because probing is how it works.
//
// Failures carry the device-unresolved exit code.
func (r *Resolver) Resolve(ctx context.Context, raw string, probe bool) (model.DeviceAddress, error) {
	raw = strings.TrimSpace(raw)

	switch {
	case raw == "":
		return model.DeviceAddress{Kind: model.DeviceNone}, nil

	case raw == "auto":
		return r.probeKnownPorts(ctx, "127.0.0.1")

	case strings.HasPrefix(raw, "bluestacks://"):
		host, instance, conf, err := parseBlueStacksURL(raw)
		if err != nil {
			return model.DeviceAddress{}, model.WrapCLIError(
				model.ExitDeviceUnresolved,
				fmt.Sprintf("invalid device address %q", raw),
				err,
			)
		}
		return r.resolveBlueStacks(ctx, host, instance, conf, probe)

	case strings.HasPrefix(raw, "docker://"):
		name := strings.TrimPrefix(raw, "docker://")
		if r.dockerLookup == nil {
			return model.DeviceAddress{}, model.NewCLIError(
				model.ExitDeviceUnresolved,
				fmt.Sprintf("docker:// addresses are not available here (address %q)", raw),
			)
		}
		return r.dockerLookup(ctx, name)
	}

	// Remaining forms are colon-separated. The legacy BlueStacks triple
	// "host:instance:conf" splits on the first two colons only — the conf
	// path may itself contain colons ("C:\ProgramData\...").
	parts := strings.SplitN(raw, ":", 3)
	switch len(parts) {
	case 3:
		return r.resolveBlueStacks(ctx, parts[0], parts[1], parts[2], probe)

	case 2:
		port, err := strconv.Atoi(parts[1])
		if err != nil {
			return model.DeviceAddress{}, model.NewCLIError(
				model.ExitDeviceUnresolved,
				fmt.Sprintf("invalid device address %q: port %q is not a number", raw, parts[1]),
			)
		}
		addr := model.DeviceAddress{Kind: model.DeviceStatic, Host: parts[0], Port: port}
		if err := addr.Validate(); err != nil {
			return model.DeviceAddress{}, model.WrapCLIError(
				model.ExitDeviceUnresolved,
				fmt.Sprintf("invalid device address %q", raw),
				err,
			)
		}
		if probe {
			if err := r.probe(ctx, addr); err != nil {
				return model.DeviceAddress{}, err
			}
		}
		return addr, nil
	}

	return model.DeviceAddress{}, model.NewCLIError(
		model.ExitDeviceUnresolved,
		fmt.Sprintf("invalid device address %q (use host:port, auto, bluestacks:// or docker://)", raw),
	)
}

// parseBlueStacksURL dissects "bluestacks://<instance>?conf=<path>".
// The URL host position carries the instance name; the host itself is
// always local for the URL form.
func parseBlueStacksURL(raw string) (host, instance, conf string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", err
	}
	return "127.0.0.1", u.Host, u.Query().Get("conf"), nil
}

// probe dials the resolved endpoint once to confirm a listener exists.
func (r *Resolver) probe(ctx context.Context, addr model.DeviceAddress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	endpoint := addr.String()
	conn, err := r.dialFn("tcp", endpoint, r.dialTimeout)
	if err != nil {
		return model.WrapCLIError(
			model.ExitDeviceUnresolved,
			fmt.Sprintf("device %s is not reachable — is the emulator running? (use --no-device-check to skip this probe)", endpoint),
			err,
		)
	}
	_ = conn.Close()
	return nil
}

// probeKnownPorts implements the "auto" form: dial the well-known local
// emulator ports in order and return the first one that answers.
func (r *Resolver) probeKnownPorts(ctx context.Context, host string) (model.DeviceAddress, error) {
	for _, port := range knownEmulatorPorts {
		if err := ctx.Err(); err != nil {
			return model.DeviceAddress{}, err
		}
		endpoint := net.JoinHostPort(host, strconv.Itoa(port))
		conn, err := r.dialFn("tcp", endpoint, r.dialTimeout)
		if err != nil {
			zap.S().Debugf("auto probe: %s not listening: %v", endpoint, err)
			continue
		}
		_ = conn.Close()
		zap.S().Debugf("auto probe: found device at %s", endpoint)
		return model.DeviceAddress{Kind: model.DeviceAuto, Host: host, Port: port}, nil
	}
	return model.DeviceAddress{}, model.NewCLIError(
		model.ExitDeviceUnresolved,
		fmt.Sprintf("no emulator found on %s (probed ports %s)", host, joinPorts(knownEmulatorPorts)),
	)
}

// KnownEmulatorPorts returns the ports the "auto" form probes, for help
// text and the doctor command. The returned slice is a copy.
func KnownEmulatorPorts() []int {
	out := make([]int, len(knownEmulatorPorts))
	copy(out, knownEmulatorPorts)
	return out
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
