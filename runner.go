package nbdbench

import (
	"context"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"pkt.systems/nbdbench/internal/bencher"
	"pkt.systems/nbdbench/internal/hostinfo"
	"pkt.systems/nbdbench/internal/unwind"
	"pkt.systems/nbdbench/internal/workload"
	"pkt.systems/nbdbench/internal/zfs"
)

// Mount is the provisioned target of one benchmark run: the directory the
// workload writes into, plus the pool behind it when the driver mounts ZFS.
type Mount struct {
	Dir string
	ZFS *zfs.Info

	// SkipSparse is set by environments whose filesystem cannot satisfy
	// fallocate, such as 9p mounts.
	SkipSparse bool
}

// Environment provisions a storage stack for one case. Every acquired
// resource must be pushed onto stack so a failed provision still unwinds
// whatever came up before the failure.
type Environment interface {
	Provision(ctx context.Context, c Case, stack *unwind.Stack) (Mount, error)
}

// Workload runs the measured step sequence against a provisioned mount.
type Workload interface {
	Run(ctx context.Context, m Mount, b *bencher.Bencher) error
}

// Bucket is the slice of the object store the runner needs: emptying before
// a run and sizing after it.
type Bucket interface {
	Empty(ctx context.Context) (int, error)
	TotalSize(ctx context.Context) (int64, error)
}

// Runner executes matrix cases sequentially. Runs share the kernel tarball
// cache and the bucket, so there is exactly one in flight at a time.
type Runner struct {
	Logger       pslog.Logger
	Environments map[Driver]Environment
	Workload     Workload

	// Bucket may be nil when no requested driver touches the object store.
	Bucket Bucket

	Host *hostinfo.Info

	// OnResult, when set, is called with each summarised result as soon as
	// its run completes, before the next run starts.
	OnResult func(RunResult)
}

func (r *Runner) logger() pslog.Logger {
	if r.Logger == nil {
		return pslog.NoopLogger()
	}
	return r.Logger
}

// Run executes every case in order. A failed run produces a partial result
// and the matrix continues; only context cancellation stops the sweep early.
func (r *Runner) Run(ctx context.Context, cases []Case) []RunResult {
	results := make([]RunResult, 0, len(cases))
	for i, c := range cases {
		r.logger().Info("run.begin",
			"index", i+1, "total", len(cases),
			"driver", string(c.Driver), "compression", c.DimensionValue("compression"))
		res := r.RunCase(ctx, c)
		if skipped := res.Summarize(); skipped > 0 {
			r.logger().Warn("run.summary.nonpositive_samples",
				"index", i+1, "driver", string(c.Driver), "skipped", skipped)
		}
		if res.Failed {
			r.logger().Warn("run.failed", "index", i+1, "driver", string(c.Driver), "error", res.Error)
		} else {
			r.logger().Info("run.done", "index", i+1, "driver", string(c.Driver))
		}
		results = append(results, res)
		if r.OnResult != nil {
			r.OnResult(res)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return results
}

// RunCase executes a single case: empty the bucket, provision the stack,
// run the workload, unwind, then record how much the run left in the
// bucket. Teardown failures are logged and do not fail the run; a leaked
// resource is an operator problem, not a measurement.
func (r *Runner) RunCase(ctx context.Context, c Case) RunResult {
	res := RunResult{ID: uuid.NewString(), Config: c, Host: r.Host}
	logger := r.logger().With("driver", string(c.Driver), "run", res.ID)

	if c.Driver.UsesBucket() && r.Bucket != nil {
		removed, err := r.Bucket.Empty(ctx)
		if err != nil {
			res.Failed = true
			res.Error = "empty bucket: " + err.Error()
			return res
		}
		logger.Info("run.bucket.emptied", "objects_removed", removed)
	}

	env, ok := r.Environments[c.Driver]
	if !ok {
		res.Failed = true
		res.Error = "no environment registered for driver " + string(c.Driver)
		return res
	}

	stack := unwind.New(logger)
	b := bencher.New(logger)
	mount, err := env.Provision(ctx, c, stack)
	if err == nil {
		// Only the workload is timed. Provisioning (cargo builds, service
		// startup, pool creation) and teardown happen outside the overall
		// sample so it stays a sum of the step samples.
		err = b.Measure(OverallLabel, func() error {
			return r.Workload.Run(ctx, mount, b)
		})
	}
	stack.Run(ctx)
	res.Samples = b.Samples()
	if err != nil {
		res.Failed = true
		res.Error = err.Error()
	}

	if c.Driver.UsesBucket() && r.Bucket != nil {
		size, serr := r.Bucket.TotalSize(ctx)
		if serr != nil {
			logger.Warn("run.bucket.size", "error", serr)
		} else {
			res.BucketBytes = size
			logger.Info("run.bucket.size", "bytes", size)
		}
	}
	return res
}

// FilesystemWorkload is the production Workload: the kernel-source file
// steps followed by the pool steps on ZFS mounts, or a plain sync
// elsewhere.
type FilesystemWorkload struct {
	Logger   pslog.Logger
	Options  workload.Options
	ZFSSteps bool
}

// Run implements Workload.
func (w FilesystemWorkload) Run(ctx context.Context, m Mount, b *bencher.Bencher) error {
	logger := w.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	opts := w.Options
	if m.SkipSparse {
		opts.SkipSparse = true
	}
	if err := workload.Files(ctx, logger, b, m.Dir, opts); err != nil {
		return err
	}
	if w.ZFSSteps && m.ZFS != nil {
		return workload.PoolSteps(ctx, logger, b, *m.ZFS, opts)
	}
	return workload.Sync(ctx, logger, b)
}
