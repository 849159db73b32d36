// Package nbd attaches network block devices with nbd-client and guarantees
// a matching disconnect. The kernel exposes a fixed set of /dev/nbdN slots
// shared by everything on the machine, so attach detects and optionally
// remediates a slot that is already connected.
package nbd

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/pslog"

	"pkt.systems/nbdbench/internal/shell"
)

// ErrDeviceBusy is returned when the target device slot already has a client
// and take-over is disabled.
var ErrDeviceBusy = fmt.Errorf("nbd: device already in use")

// Options configures an attachment.
type Options struct {
	Port        int    // server port, default 10809
	DeviceIndex int    // /dev/nbd<index>, default 5
	BlockSize   int    // -b flag, 0 omits
	Connections int    // -c flag, 0 omits
	ExportName  string // -n flag, empty omits

	// TakeOver disconnects an existing client on the slot instead of
	// failing. Defaults to true in the CLI: a crashed previous run must not
	// wedge the harness.
	TakeOver bool
}

// Device is an attached NBD device.
type Device struct {
	Path   string
	logger pslog.Logger
}

const (
	defaultPort        = 10809
	defaultDeviceIndex = 5
)

// Attach connects /dev/nbd<index> to a server on localhost and returns the
// device. The caller owns the returned Device and must Detach it.
func Attach(ctx context.Context, opts Options, logger pslog.Logger) (*Device, error) {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.DeviceIndex == 0 {
		opts.DeviceIndex = defaultDeviceIndex
	}
	device := fmt.Sprintf("/dev/nbd%d", opts.DeviceIndex)

	busy, err := deviceBusy(ctx, logger, device)
	if err != nil {
		return nil, err
	}
	if busy {
		if !opts.TakeOver {
			return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, device)
		}
		logger.Warn("nbd.takeover", "device", device)
		if err := shell.Sudo(ctx, logger, "nbd-client", "-d", device); err != nil {
			return nil, fmt.Errorf("nbd: disconnect existing client on %s: %w", device, err)
		}
	}

	args := []string{"nbd-client"}
	if opts.BlockSize > 0 {
		args = append(args, fmt.Sprintf("-b%d", opts.BlockSize))
	}
	if opts.Connections > 0 {
		args = append(args, fmt.Sprintf("-c%d", opts.Connections))
	}
	if opts.ExportName != "" {
		args = append(args, "-n", opts.ExportName)
	}
	args = append(args, "127.0.0.1", fmt.Sprintf("%d", opts.Port), device)

	logger.Info("nbd.attach", "device", device, "port", opts.Port)
	if err := shell.Sudo(ctx, logger, args[0], args[1:]...); err != nil {
		return nil, fmt.Errorf("nbd: attach %s: %w", device, err)
	}
	return &Device{Path: device, logger: logger}, nil
}

// Detach disconnects the device.
func (d *Device) Detach(ctx context.Context) error {
	d.logger.Info("nbd.detach", "device", d.Path)
	if err := shell.Sudo(ctx, d.logger, "nbd-client", "-d", d.Path); err != nil {
		return fmt.Errorf("nbd: detach %s: %w", d.Path, err)
	}
	return nil
}

// deviceBusy asks nbd-client whether the slot has a connected client.
// nbd-client -c prints the client pid and exits 0 when connected, exits
// non-zero when free.
func deviceBusy(ctx context.Context, logger pslog.Logger, device string) (bool, error) {
	out, err := shell.Output(ctx, logger, "nbd-client", "-c", device)
	if err != nil {
		// Non-zero exit means no client; nbd-client offers no way to
		// distinguish that from real failure, so treat any error as free.
		return false, nil
	}
	return strings.TrimSpace(out) != "", nil
}
