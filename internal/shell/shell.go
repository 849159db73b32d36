// Package shell runs external commands with structured logging. The
// benchmark workloads deliberately exercise the filesystem through the
// canonical tools (tar, dd, fallocate, zpool, nbd-client) rather than
// reimplementing them, so the measured behaviour matches what an operator
// would see.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"pkt.systems/pslog"
)

// Run executes the command and waits for it. Stdout and stderr are captured
// and included in the returned error on non-zero exit.
func Run(ctx context.Context, logger pslog.Logger, name string, args ...string) error {
	_, err := run(ctx, logger, nil, "", name, args...)
	return err
}

// RunIn is Run with an explicit working directory.
func RunIn(ctx context.Context, logger pslog.Logger, dir, name string, args ...string) error {
	_, err := run(ctx, logger, nil, dir, name, args...)
	return err
}

// RunEnv is Run with extra environment entries appended to the inherited
// environment.
func RunEnv(ctx context.Context, logger pslog.Logger, env []string, name string, args ...string) error {
	_, err := run(ctx, logger, env, "", name, args...)
	return err
}

// Output executes the command and returns its stdout. Non-zero exit is an
// error carrying the combined output.
func Output(ctx context.Context, logger pslog.Logger, name string, args ...string) (string, error) {
	return run(ctx, logger, nil, "", name, args...)
}

// Sudo prefixes the command with sudo. Callers prime the sudo timestamp once
// up front so later invocations do not block on a password prompt mid-run.
func Sudo(ctx context.Context, logger pslog.Logger, name string, args ...string) error {
	return Run(ctx, logger, "sudo", append([]string{name}, args...)...)
}

// SudoOutput is Output behind sudo.
func SudoOutput(ctx context.Context, logger pslog.Logger, name string, args ...string) (string, error) {
	return Output(ctx, logger, "sudo", append([]string{name}, args...)...)
}

// PrimeSudo refreshes the cached sudo credential, prompting interactively if
// needed. Run this before any timed work so prompts never land inside a
// measurement.
func PrimeSudo(ctx context.Context, logger pslog.Logger) error {
	logger.Debug("shell.sudo.prime")
	cmd := exec.CommandContext(ctx, "sudo", "-v")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo -v: %w", err)
	}
	return nil
}

func run(ctx context.Context, logger pslog.Logger, env []string, dir, name string, args ...string) (string, error) {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	logger.Debug("shell.exec", "command", name, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return stdout.String(), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, detail)
		}
		return stdout.String(), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}
