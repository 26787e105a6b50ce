// bluestacks.go reads the ADB port BlueStacks assigns to an instance out
// of its bluestacks.conf file. BlueStacks picks a fresh port on every
// start, so a profile cannot pin "host:port" — it names the instance and
// the launcher looks the current port up at launch time.
package device

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/paddock/internal/model"
)

const (
	// DefaultBlueStacksInstance is used when the address names no instance.
	DefaultBlueStacksInstance = "Nougat64"

	// DefaultBlueStacksConf is the stock BlueStacks 5 conf location.
	DefaultBlueStacksConf = `C:\ProgramData\BlueStacks_nxt\bluestacks.conf`
)

// resolveBlueStacks fills in the instance/conf defaults, scans the conf
// file for the instance's adb_port line, and optionally probes the result.
func (r *Resolver) resolveBlueStacks(ctx context.Context, host, instance, confPath string, probe bool) (model.DeviceAddress, error) {
	if host == "" {
		return model.DeviceAddress{}, model.NewCLIError(
			model.ExitDeviceUnresolved,
			"invalid BlueStacks address: missing hostname",
		)
	}
	if instance == "" {
		instance = DefaultBlueStacksInstance
	}
	if confPath == "" {
		confPath = DefaultBlueStacksConf
	}

	data, err := r.readFileFn(confPath)
	if err != nil {
		return model.DeviceAddress{}, model.WrapCLIError(
			model.ExitDeviceUnresolved,
			fmt.Sprintf("cannot read BlueStacks conf %s", confPath),
			err,
		)
	}

	port, err := parseBlueStacksConf(data, instance)
	if err != nil {
		return model.DeviceAddress{}, model.WrapCLIError(
			model.ExitDeviceUnresolved,
			fmt.Sprintf("cannot find ADB port for instance %q in %s", instance, confPath),
			err,
		)
	}

	zap.S().Infof("BlueStacks port: host=%s instance=%s port=%d", host, instance, port)

	addr := model.DeviceAddress{Kind: model.DeviceBlueStacks, Host: host, Port: port}
	if probe {
		if err := r.probe(ctx, addr); err != nil {
			return model.DeviceAddress{}, err
		}
	}
	return addr, nil
}

// parseBlueStacksConf scans conf lines for the instance's adb_port entry:
//
//	bst.instance.<instance>.status.adb_port="5555"
//
// Two to five digits, matching what BlueStacks writes.
func parseBlueStacksConf(data []byte, instance string) (int, error) {
	pattern, err := regexp.Compile(
		`(?m)^bst\.instance\.` + regexp.QuoteMeta(instance) + `\.status\.adb_port="(\d{2,5})"`,
	)
	if err != nil {
		return 0, err
	}

	match := pattern.FindSubmatch(data)
	if match == nil {
		return 0, fmt.Errorf("no adb_port line for instance %q", instance)
	}

	port, err := strconv.Atoi(string(match[1]))
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("adb_port %d out of range", port)
	}
	return port, nil
}
