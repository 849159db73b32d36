package driver

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/nbdbench"
	"pkt.systems/nbdbench/internal/proc"
	"pkt.systems/nbdbench/internal/shell"
	"pkt.systems/nbdbench/internal/unwind"
)

// ZeroFSPlan9 runs zerofs and mounts its 9p export directly, bypassing NBD
// and ZFS entirely. It measures the filesystem zerofs itself presents.
type ZeroFSPlan9 struct {
	Logger pslog.Logger

	// Binary is the zerofs executable, default "zerofs".
	Binary string

	// Port is the 9p listener, default 5564. zerofs serves it alongside
	// its NBD exports, so the service environment is the same as in NBD
	// mode.
	Port     int
	MountDir string
}

func (z *ZeroFSPlan9) binary() string {
	if z.Binary == "" {
		return "zerofs"
	}
	return z.Binary
}

func (z *ZeroFSPlan9) port() int {
	if z.Port == 0 {
		return nbdbench.DefaultPlan9Port
	}
	return z.Port
}

func (z *ZeroFSPlan9) mountDir() string {
	if z.MountDir == "" {
		return "/mnt/zerofs_9p_test"
	}
	return z.MountDir
}

// Provision implements nbdbench.Environment. Sparse allocation is skipped
// on the resulting mount since 9p does not support fallocate.
func (z *ZeroFSPlan9) Provision(ctx context.Context, c nbdbench.Case, stack *unwind.Stack) (nbdbench.Mount, error) {
	handle, err := proc.Launch(ctx, proc.Spec{
		Name:         "zerofs-9p",
		Path:         z.binary(),
		Args:         []string{"s3://zerofs"},
		Env:          zerofsEnv(nbdbench.DefaultNBDPort),
		ReadyPort:    z.port(),
		ReadyTimeout: 2 * time.Minute,
	}, z.Logger)
	if err != nil {
		return nbdbench.Mount{}, fmt.Errorf("launch zerofs: %w", err)
	}
	stack.Push("zerofs service", handle.Terminate)

	dir := z.mountDir()
	if err := shell.Sudo(ctx, z.Logger, "mkdir", "-p", dir); err != nil {
		return nbdbench.Mount{}, fmt.Errorf("mount dir: %w", err)
	}
	mountOpts := fmt.Sprintf("trans=tcp,port=%d,version=9p2000.L,msize=1048576,cache=mmap,access=user", z.port())
	if err := shell.Sudo(ctx, z.Logger, "mount", "-t", "9p", "-o", mountOpts, "127.0.0.1", dir); err != nil {
		return nbdbench.Mount{}, fmt.Errorf("mount 9p: %w", err)
	}
	stack.Push("9p mount "+dir, func(ctx context.Context) error {
		if err := shell.Sudo(ctx, z.Logger, "umount", dir); err != nil {
			return err
		}
		return shell.Sudo(ctx, z.Logger, "rmdir", dir)
	})

	return nbdbench.Mount{Dir: dir, SkipSparse: true}, nil
}
