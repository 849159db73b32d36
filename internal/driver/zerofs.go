package driver

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/nbdbench"
	"pkt.systems/nbdbench/internal/proc"
	"pkt.systems/nbdbench/internal/unwind"
)

// ZeroFS runs the zerofs binary in NBD mode and mounts ZFS on the exported
// device.
type ZeroFS struct {
	Logger pslog.Logger

	// Binary is the zerofs executable, default "zerofs".
	Binary string

	Port        int
	DeviceIndex int
}

func (z *ZeroFS) binary() string {
	if z.Binary == "" {
		return "zerofs"
	}
	return z.Binary
}

func (z *ZeroFS) port() int {
	if z.Port == 0 {
		return nbdbench.DefaultNBDPort
	}
	return z.Port
}

func (z *ZeroFS) deviceIndex() int {
	if z.DeviceIndex == 0 {
		return nbdbench.DefaultNBDDeviceIndex
	}
	return z.DeviceIndex
}

// Provision implements nbdbench.Environment.
func (z *ZeroFS) Provision(ctx context.Context, c nbdbench.Case, stack *unwind.Stack) (nbdbench.Mount, error) {
	handle, err := proc.Launch(ctx, proc.Spec{
		Name:         "zerofs",
		Path:         z.binary(),
		Args:         []string{"s3://zerofs"},
		Env:          zerofsEnv(z.port()),
		ReadyPort:    z.port(),
		ReadyTimeout: 2 * time.Minute,
	}, z.Logger)
	if err != nil {
		return nbdbench.Mount{}, fmt.Errorf("launch zerofs: %w", err)
	}
	stack.Push("zerofs service", handle.Terminate)

	return provisionZFS(ctx, z.Logger, stack, c, z.port(), z.deviceIndex())
}

// zerofsEnv is the fixed environment block zerofs is started with in NBD
// mode. Credentials and endpoint come through the inherited process
// environment; zerofs encrypts internally, which is why its dataset runs
// without ZFS encryption.
func zerofsEnv(port int) []string {
	return []string{
		"AWS_ALLOW_HTTP=true",
		"SLATEDB_CACHE_DIR=/tmp/zerofs-cache",
		"SLATEDB_CACHE_SIZE_GB=2",
		"ZEROFS_ENCRYPTION_PASSWORD=secret",
		fmt.Sprintf("ZEROFS_NBD_PORTS=%d", port),
		"ZEROFS_NBD_DEVICE_SIZES_GB=3",
	}
}
