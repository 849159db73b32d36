package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/xid"
	"pkt.systems/pslog"

	"pkt.systems/nbdbench"
	"pkt.systems/nbdbench/internal/unwind"
)

// Folder is the baseline environment: the workload runs against a plain
// directory on whatever filesystem already backs it. Nothing is launched
// and the object store is never touched.
type Folder struct {
	Logger pslog.Logger

	// Path is the parent directory benchmark runs are created under.
	Path string
}

// Provision implements nbdbench.Environment. Each run gets a fresh
// subdirectory which is removed on teardown, leaving the parent as it was.
func (f *Folder) Provision(ctx context.Context, c nbdbench.Case, stack *unwind.Stack) (nbdbench.Mount, error) {
	if f.Path == "" {
		return nbdbench.Mount{}, fmt.Errorf("folder driver: path required")
	}
	dir := filepath.Join(f.Path, "nbdbench-"+xid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nbdbench.Mount{}, fmt.Errorf("folder driver: %w", err)
	}
	stack.Push("folder "+dir, func(context.Context) error {
		return os.RemoveAll(dir)
	})
	return nbdbench.Mount{Dir: dir}, nil
}
