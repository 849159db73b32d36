package driver

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"
	"pkt.systems/pslog"

	"pkt.systems/nbdbench"
	"pkt.systems/nbdbench/internal/proc"
	"pkt.systems/nbdbench/internal/shell"
	"pkt.systems/nbdbench/internal/unwind"
)

// SlateDBNBD runs the slatedb-nbd server out of its cargo workspace and
// mounts ZFS on the exported device.
type SlateDBNBD struct {
	Logger pslog.Logger

	// RepoDir is the slatedb-nbd checkout; the server is built and run
	// with cargo in release profile.
	RepoDir string

	Port        int
	DeviceIndex int
}

func (s *SlateDBNBD) port() int {
	if s.Port == 0 {
		return nbdbench.DefaultNBDPort
	}
	return s.Port
}

func (s *SlateDBNBD) deviceIndex() int {
	if s.DeviceIndex == 0 {
		return nbdbench.DefaultNBDDeviceIndex
	}
	return s.DeviceIndex
}

// Provision implements nbdbench.Environment. The server is built before it
// is launched so the readiness probe times the start, not the compile.
func (s *SlateDBNBD) Provision(ctx context.Context, c nbdbench.Case, stack *unwind.Stack) (nbdbench.Mount, error) {
	if err := shell.RunIn(ctx, s.Logger, s.RepoDir, "cargo", "build", "--profile", "release"); err != nil {
		return nbdbench.Mount{}, fmt.Errorf("build slatedb-nbd: %w", err)
	}
	handle, err := proc.Launch(ctx, proc.Spec{
		Name:         "slatedb-nbd",
		Path:         "cargo",
		Args:         []string{"run", "--profile", "release"},
		Dir:          s.RepoDir,
		Env:          slatedbEnv(c),
		ReadyPort:    s.port(),
		ReadyTimeout: time.Minute,
	}, s.Logger)
	if err != nil {
		return nbdbench.Mount{}, fmt.Errorf("launch slatedb-nbd: %w", err)
	}
	stack.Push("slatedb-nbd service", handle.Terminate)

	return provisionZFS(ctx, s.Logger, stack, c, s.port(), s.deviceIndex())
}

// slatedbEnv translates the swept dimensions into the server's environment
// contract. Dimensions left at nil are omitted entirely so the server's own
// defaults apply.
func slatedbEnv(c nbdbench.Case) []string {
	var env []string
	if c.WALEnabled != nil {
		env = append(env, "SLATEDB_WAL_ENABLED="+strconv.FormatBool(*c.WALEnabled))
	}
	if c.ObjectStoreCache != nil {
		env = append(env, "SLATEDB_OBJECT_STORE_CACHE_OPTIONS="+cacheOptions(*c.ObjectStoreCache))
	}
	return env
}

// cacheOptions renders the server's object store cache settings. The
// root_folder field alone decides whether the cache is on; the enabled
// variant gets a directory unique per run so a stale cache from a previous
// run cannot skew timings.
func cacheOptions(enabled bool) string {
	root := "None"
	if enabled {
		root = "/tmp/slatedb-object-store-cache_" + xid.New().String()
	}
	return fmt.Sprintf(
		`{root_folder=%s,max_cache_size_bytes=17179869184,part_size_bytes=4194304,scan_interval="1h"}`,
		root)
}
