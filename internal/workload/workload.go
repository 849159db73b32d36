// Package workload implements the fixed filesystem benchmark sequence:
// kernel-source extraction/recompression/deletion, sparse allocation, a
// large zero-fill write, and the ZFS pool operations (snapshot, trim,
// scrub, sync). Each step contributes exactly one timing sample.
package workload

import (
	"context"

	"pkt.systems/pslog"

	"pkt.systems/nbdbench/internal/bencher"
	"pkt.systems/nbdbench/internal/shell"
	"pkt.systems/nbdbench/internal/zfs"
)

// Options selects the optional steps of the sequence.
type Options struct {
	KernelVersion string
	KernelSHA256  string

	// Skips. Plan 9 mounts fail sparse allocation; trim and scrub are
	// disabled by default because they have been flaky against some of the
	// engines under test.
	SkipSparse  bool
	EnableTrim  bool
	EnableScrub bool
}

func (o *Options) applyDefaults() {
	if o.KernelVersion == "" {
		o.KernelVersion = DefaultKernelVersion
		if o.KernelSHA256 == "" {
			o.KernelSHA256 = DefaultKernelSHA256
		}
	}
}

// Files runs the driver-agnostic file steps inside dir.
func Files(ctx context.Context, logger pslog.Logger, b *bencher.Bencher, dir string, opts Options) error {
	opts.applyDefaults()
	if err := KernelSource(ctx, logger, b, dir, opts.KernelVersion, opts.KernelSHA256); err != nil {
		return err
	}
	if !opts.SkipSparse {
		if err := SparseFile(ctx, logger, b, dir); err != nil {
			return err
		}
	}
	return ZeroFill(ctx, logger, b, dir)
}

// SparseFile allocates a 1 GiB sparse file.
func SparseFile(ctx context.Context, logger pslog.Logger, b *bencher.Bencher, dir string) error {
	return b.Measure("sparse_file_creation", func() error {
		return shell.RunIn(ctx, logger, dir, "fallocate", "-l", "1G", "sparse.bin")
	})
}

// ZeroFill writes 1 GiB of zeroes through dd.
func ZeroFill(ctx context.Context, logger pslog.Logger, b *bencher.Bencher, dir string) error {
	return b.Measure("write_big_zeroes", func() error {
		return shell.RunIn(ctx, logger, dir, "dd", "if=/dev/zero", "of=big_zeroes.bin", "bs=1M", "count=1024")
	})
}

// PoolSteps runs the ZFS-specific steps against a provisioned pool.
func PoolSteps(ctx context.Context, logger pslog.Logger, b *bencher.Bencher, info zfs.Info, opts Options) error {
	if err := b.Measure("zfs_snapshot", func() error {
		return zfs.Snapshot(ctx, logger, info.Dataset, "after-kernel")
	}); err != nil {
		return err
	}
	if opts.EnableTrim {
		if err := b.Measure("wait_for_trim_completion", func() error {
			return zfs.Trim(ctx, logger, info.Pool)
		}); err != nil {
			return err
		}
	}
	if opts.EnableScrub {
		var res zfs.ScrubResult
		err := b.Measure("wait_for_scrub_completion", func() error {
			var scrubErr error
			res, scrubErr = zfs.Scrub(ctx, logger, info.Pool)
			return scrubErr
		})
		if err != nil {
			return err
		}
		logger.Info("workload.scrub.result", "repaired", res.Repaired, "duration", res.Duration, "errors", res.Errors)
	}
	if err := b.Measure("sync", func() error {
		return zfs.SystemSync(ctx, logger)
	}); err != nil {
		return err
	}
	return b.Measure("zpool_sync", func() error {
		return zfs.PoolSync(ctx, logger, info.Pool)
	})
}

// Sync runs the plain system sync step for drivers without a pool.
func Sync(ctx context.Context, logger pslog.Logger, b *bencher.Bencher) error {
	return b.Measure("sync", func() error {
		return zfs.SystemSync(ctx, logger)
	})
}
