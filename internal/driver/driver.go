// Package driver provisions the storage stacks under test. Each
// environment brings its stack up for one benchmark case, registers every
// acquired resource on the teardown stack, and hands back the directory the
// workload should write into.
package driver

import (
	"context"
	"fmt"

	"pkt.systems/pslog"

	"pkt.systems/nbdbench"
	"pkt.systems/nbdbench/internal/nbd"
	"pkt.systems/nbdbench/internal/unwind"
	"pkt.systems/nbdbench/internal/zfs"
)

// provisionZFS attaches the NBD device that a running service exports and
// builds a pool + dataset on it according to the case. Used by every
// NBD-backed environment.
func provisionZFS(ctx context.Context, logger pslog.Logger, stack *unwind.Stack, c nbdbench.Case, port, deviceIndex int) (nbdbench.Mount, error) {
	opts := nbd.Options{
		Port:        port,
		DeviceIndex: deviceIndex,
		TakeOver:    true,
	}
	if c.BlockSize != nil {
		opts.BlockSize = *c.BlockSize
	}
	if c.Connections != nil {
		opts.Connections = *c.Connections
	}
	if c.Driver == nbdbench.DriverZeroFS {
		// ZeroFS names its exports after the listening port.
		opts.ExportName = fmt.Sprintf("device_%d", port)
	}
	device, err := nbd.Attach(ctx, opts, logger)
	if err != nil {
		return nbdbench.Mount{}, fmt.Errorf("attach nbd: %w", err)
	}
	stack.Push("nbd "+device.Path, device.Detach)

	poolOpts := zfs.PoolOptions{Device: device.Path}
	if c.Ashift != nil {
		poolOpts.Ashift = *c.Ashift
	}
	if c.SlogSize != nil {
		poolOpts.SlogSize = *c.SlogSize
	}
	pool, err := zfs.CreatePool(ctx, poolOpts, logger)
	if err != nil {
		return nbdbench.Mount{}, fmt.Errorf("create pool: %w", err)
	}
	stack.Push("zpool "+pool.Name, pool.Destroy)

	dsOpts := zfs.DatasetOptions{Encryption: c.Encryption}
	if c.Compression != nil {
		dsOpts.Compression = *c.Compression
	}
	if c.ZFSSync != nil {
		dsOpts.Sync = *c.ZFSSync
	}
	info, err := pool.CreateDataset(ctx, dsOpts)
	if err != nil {
		return nbdbench.Mount{}, fmt.Errorf("create dataset: %w", err)
	}
	stack.Push("mountpoint "+info.Mountpoint, func(ctx context.Context) error {
		pool.ReleaseMountpoint(ctx, info.Mountpoint)
		return nil
	})

	return nbdbench.Mount{Dir: info.Mountpoint, ZFS: &info}, nil
}
