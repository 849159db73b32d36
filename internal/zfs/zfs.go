// Package zfs provisions throwaway pools and datasets on top of a block
// device and exposes the pool operations the benchmark measures (snapshot,
// trim, scrub, sync). Pool names are generated so a crashed run never
// collides with a healthy one.
package zfs

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
	"pkt.systems/pslog"

	"pkt.systems/nbdbench/internal/shell"
)

// PoolOptions configures pool creation.
type PoolOptions struct {
	Device   string // backing block device, required
	Ashift   int    // zpool ashift, 0 omits
	SlogSize int64  // separate log device size in bytes; 0 disables
}

// DatasetOptions configures dataset creation inside a pool.
type DatasetOptions struct {
	Name        string // dataset leaf name, default "bench"
	Encryption  bool   // passphrase encryption with a generated key file
	Compression string // compression property, empty omits
	Sync        string // sync property (disabled, standard, always), empty omits
}

// Info describes a provisioned pool + dataset pair.
type Info struct {
	Pool       string
	Dataset    string
	Mountpoint string
}

// Pool is a created zpool. The caller owns it and must Destroy it.
type Pool struct {
	Name     string
	slogFile string
	logger   pslog.Logger
}

// CreatePool makes a new pool on the device. The -f force flag is passed
// because the device routinely carries labels from the previous run.
func CreatePool(ctx context.Context, opts PoolOptions, logger pslog.Logger) (*Pool, error) {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	if opts.Device == "" {
		return nil, fmt.Errorf("zfs: device required")
	}
	name := "benchpool-" + xid.New().String()
	args := []string{"create", "-f"}
	if opts.Ashift > 0 {
		args = append(args, "-o", fmt.Sprintf("ashift=%d", opts.Ashift))
	}
	args = append(args, name, opts.Device)
	logger.Info("zfs.pool.create", "pool", name, "device", opts.Device)
	if err := shell.Sudo(ctx, logger, "zpool", args...); err != nil {
		return nil, fmt.Errorf("zfs: create pool %s: %w", name, err)
	}
	pool := &Pool{Name: name, logger: logger}

	if opts.SlogSize > 0 {
		slog := filepath.Join(os.TempDir(), name+"-slog")
		logger.Info("zfs.slog.create", "pool", name, "file", slog, "bytes", opts.SlogSize)
		if err := shell.Run(ctx, logger, "fallocate", "-l", fmt.Sprintf("%d", opts.SlogSize), slog); err != nil {
			_ = pool.Destroy(ctx)
			return nil, fmt.Errorf("zfs: allocate slog: %w", err)
		}
		pool.slogFile = slog
		if err := shell.Sudo(ctx, logger, "zpool", "add", name, "log", slog); err != nil {
			_ = pool.Destroy(ctx)
			return nil, fmt.Errorf("zfs: attach slog: %w", err)
		}
	}
	return pool, nil
}

// Destroy tears the pool down and removes the slog backing file, if any.
func (p *Pool) Destroy(ctx context.Context) error {
	p.logger.Info("zfs.pool.destroy", "pool", p.Name)
	if err := shell.Sudo(ctx, p.logger, "zpool", "destroy", p.Name); err != nil {
		return fmt.Errorf("zfs: destroy pool %s: %w", p.Name, err)
	}
	if p.slogFile != "" {
		if err := os.Remove(p.slogFile); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("zfs.slog.remove_failed", "file", p.slogFile, "error", err)
		}
	}
	return nil
}

// CreateDataset creates and mounts a dataset in the pool, then chowns the
// mountpoint to the current user so the workload does not need sudo for
// file operations.
func (p *Pool) CreateDataset(ctx context.Context, opts DatasetOptions) (Info, error) {
	leaf := opts.Name
	if leaf == "" {
		leaf = "bench"
	}
	name := p.Name + "/" + leaf
	mountpoint := "/mnt/" + name
	args := []string{"create", "-o", "mountpoint=" + mountpoint}

	if opts.Encryption {
		keyPath, err := writeKeyFile(leaf)
		if err != nil {
			return Info{}, err
		}
		args = append(args,
			"-o", "encryption=on",
			"-o", "keylocation=file://"+keyPath,
			"-o", "keyformat=passphrase",
		)
	}
	if opts.Compression != "" {
		args = append(args, "-o", "compression="+opts.Compression)
	}
	if opts.Sync != "" {
		args = append(args, "-o", "sync="+opts.Sync)
	}
	args = append(args, name)

	p.logger.Info("zfs.dataset.create", "dataset", name, "mountpoint", mountpoint)
	if err := shell.Sudo(ctx, p.logger, "zfs", args...); err != nil {
		return Info{}, fmt.Errorf("zfs: create dataset %s: %w", name, err)
	}
	if err := chownToCurrentUser(ctx, p.logger, mountpoint); err != nil {
		return Info{}, err
	}
	return Info{Pool: p.Name, Dataset: name, Mountpoint: mountpoint}, nil
}

// ReleaseMountpoint is called before pool destruction. It gives in-flight
// writes a moment to settle and lists any processes still holding the
// mountpoint. The listing is advisory: a stale holder is logged, not fatal,
// and the destroy is attempted regardless.
func (p *Pool) ReleaseMountpoint(ctx context.Context, mountpoint string) {
	time.Sleep(2 * time.Second)
	out, err := shell.Output(ctx, p.logger, "lsof", "+D", mountpoint)
	if err == nil && strings.TrimSpace(out) != "" {
		p.logger.Warn("zfs.mountpoint.busy", "mountpoint", mountpoint, "holders", strings.TrimSpace(out))
	}
}

// Snapshot creates a snapshot of the dataset.
func Snapshot(ctx context.Context, logger pslog.Logger, dataset, tag string) error {
	if err := shell.Sudo(ctx, logger, "zfs", "snapshot", dataset+"@"+tag); err != nil {
		return fmt.Errorf("zfs: snapshot %s@%s: %w", dataset, tag, err)
	}
	return nil
}

// Trim starts a pool trim and polls zpool status until it finishes. The
// resolution is poor (one-second polls) because ZFS does not report trim
// duration the way it reports scrub duration.
func Trim(ctx context.Context, logger pslog.Logger, pool string) error {
	if err := shell.Sudo(ctx, logger, "zpool", "trim", pool); err != nil {
		return fmt.Errorf("zfs: start trim on %s: %w", pool, err)
	}
	return pollStatus(ctx, logger, pool, "trimming", 60)
}

// ScrubResult is the outcome line parsed from zpool status after a scrub.
type ScrubResult struct {
	Repaired string
	Duration string
	Errors   int
}

// Scrub starts a scrub, polls until completion, and parses the result line.
func Scrub(ctx context.Context, logger pslog.Logger, pool string) (ScrubResult, error) {
	if err := shell.Sudo(ctx, logger, "zpool", "scrub", pool); err != nil {
		return ScrubResult{}, fmt.Errorf("zfs: start scrub on %s: %w", pool, err)
	}
	if err := pollStatus(ctx, logger, pool, "scrub in progress", 600); err != nil {
		return ScrubResult{}, err
	}
	out, err := shell.Output(ctx, logger, "zpool", "status", pool)
	if err != nil {
		return ScrubResult{}, fmt.Errorf("zfs: status after scrub: %w", err)
	}
	res, ok := ParseScrubStatus(out)
	if !ok {
		return ScrubResult{}, fmt.Errorf("zfs: could not parse scrub result from status output")
	}
	return res, nil
}

// PoolSync runs zpool sync, forcing all dirty data out to the vdevs.
func PoolSync(ctx context.Context, logger pslog.Logger, pool string) error {
	if err := shell.Sudo(ctx, logger, "zpool", "sync", pool); err != nil {
		return fmt.Errorf("zfs: sync %s: %w", pool, err)
	}
	return nil
}

// SystemSync runs sync(8) for the whole system.
func SystemSync(ctx context.Context, logger pslog.Logger) error {
	if err := shell.Sudo(ctx, logger, "sync"); err != nil {
		return fmt.Errorf("zfs: system sync: %w", err)
	}
	return nil
}

func pollStatus(ctx context.Context, logger pslog.Logger, pool, marker string, maxAttempts int) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := shell.Output(ctx, logger, "zpool", "status", pool)
		if err != nil {
			return fmt.Errorf("zfs: status %s: %w", pool, err)
		}
		if !strings.Contains(strings.ToLower(out), marker) {
			return nil
		}
		logger.Debug("zfs.status.waiting", "pool", pool, "marker", marker, "attempt", attempt)
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("zfs: %s did not finish on %s after %d attempts", marker, pool, maxAttempts)
}

func chownToCurrentUser(ctx context.Context, logger pslog.Logger, mountpoint string) error {
	u, err := user.Current()
	if err != nil {
		return fmt.Errorf("zfs: current user: %w", err)
	}
	owner := u.Uid + ":" + u.Gid
	if err := shell.Sudo(ctx, logger, "chown", owner, mountpoint); err != nil {
		return fmt.Errorf("zfs: chown %s: %w", mountpoint, err)
	}
	return nil
}

func writeKeyFile(leaf string) (string, error) {
	keyPath := filepath.Join(os.TempDir(), fmt.Sprintf("zfs-%s-%s.key", leaf, xid.New().String()))
	key := xid.New().String() + xid.New().String()
	if err := os.WriteFile(keyPath, []byte(key), 0o600); err != nil {
		return "", fmt.Errorf("zfs: write key file: %w", err)
	}
	return keyPath, nil
}
