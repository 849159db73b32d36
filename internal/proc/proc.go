// Package proc manages the lifetime of external service processes (the
// storage engines under test). A launch returns an explicit handle that is
// the only way the process is ever addressed again; the harness never scans
// the system process table to find its own children.
package proc

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"pkt.systems/pslog"
)

// Spec describes a service to launch.
type Spec struct {
	Name string // human-readable, used in logs
	Path string // binary or command to execute
	Args []string
	Dir  string   // working directory (empty inherits)
	Env  []string // extra KEY=VALUE entries appended to the inherited env

	// ReadyPort, when non-zero, is polled with TCP dials until the service
	// accepts a connection. When zero, WarmUp is slept instead. The sleep is
	// a coarse substitute for a real readiness probe; prefer ReadyPort.
	ReadyPort    int
	ReadyTimeout time.Duration
	WarmUp       time.Duration

	DiscardOutput bool // drop the child's stdout/stderr instead of inheriting
}

// Handle is a launched service. Terminate must be called exactly once.
type Handle struct {
	name    string
	cmd     *exec.Cmd
	logger  pslog.Logger
	done    chan struct{}
	waitErr error
}

const defaultReadyTimeout = 60 * time.Second

// Launch starts the service and blocks until it is considered ready.
// On readiness failure the process is terminated before the error returns.
func Launch(ctx context.Context, spec Spec, logger pslog.Logger) (*Handle, error) {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	if strings.TrimSpace(spec.Path) == "" {
		return nil, fmt.Errorf("proc: %s: path required", spec.Name)
	}
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.DiscardOutput {
		cmd.Stdout = nil
		cmd.Stderr = nil
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	logger.Info("proc.launch", "service", spec.Name, "path", spec.Path, "args", strings.Join(spec.Args, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("proc: start %s: %w", spec.Name, err)
	}
	h := &Handle{name: spec.Name, cmd: cmd, logger: logger, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	if err := h.awaitReady(ctx, spec); err != nil {
		_ = h.Terminate(context.Background())
		return nil, err
	}
	logger.Info("proc.ready", "service", spec.Name, "pid", cmd.Process.Pid)
	return h, nil
}

func (h *Handle) awaitReady(ctx context.Context, spec Spec) error {
	if spec.ReadyPort == 0 {
		if spec.WarmUp > 0 {
			h.logger.Debug("proc.warmup", "service", spec.Name, "sleep", spec.WarmUp)
			select {
			case <-time.After(spec.WarmUp):
			case <-h.done:
				return fmt.Errorf("proc: %s exited during warm-up: %w", spec.Name, errOrExit(h.waitErr))
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	timeout := spec.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	addr := fmt.Sprintf("127.0.0.1:%d", spec.ReadyPort)
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("proc: %s not accepting connections on %s after %s", spec.Name, addr, timeout)
		}
		select {
		case <-time.After(250 * time.Millisecond):
		case <-h.done:
			return fmt.Errorf("proc: %s exited before becoming ready: %w", spec.Name, errOrExit(h.waitErr))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pid returns the process id.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Terminate sends SIGTERM, waits up to ten seconds, then SIGKILLs. Safe to
// call after the process already exited.
func (h *Handle) Terminate(ctx context.Context) error {
	h.logger.Info("proc.terminate", "service", h.name, "pid", h.cmd.Process.Pid)
	select {
	case <-h.done:
		// Already gone.
		return nil
	default:
	}
	if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
		// Interrupt can fail on an already-dead process; escalate straight
		// to kill below.
		h.logger.Debug("proc.signal_failed", "service", h.name, "error", err)
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(10 * time.Second):
	case <-ctx.Done():
	}
	if err := h.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("proc: kill %s: %w", h.name, err)
	}
	<-h.done
	return nil
}

func errOrExit(err error) error {
	if err == nil {
		return fmt.Errorf("exited cleanly")
	}
	return err
}
