package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"pkt.systems/pslog"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(pslog.NoopLogger())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "nbdbench") {
		t.Fatalf("version output = %q", out)
	}
}

func TestTestCommandIsNoop(t *testing.T) {
	out, err := execute(t, "", "test")
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	if !strings.Contains(out, "nothing to do") {
		t.Fatalf("test output = %q", out)
	}
}

func TestBenchRejectsUnknownDriver(t *testing.T) {
	_, err := execute(t, "", "bench", "--driver", "ext4")
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestBenchRejectsUnknownCompression(t *testing.T) {
	_, err := execute(t, "", "bench", "--driver", "folder", "--compression", "gzip")
	if err == nil || !strings.Contains(err.Error(), "unknown compression") {
		t.Fatalf("expected unknown compression error, got %v", err)
	}
}

func TestBenchFolderRequiresPath(t *testing.T) {
	_, err := execute(t, "", "bench", "--driver", "folder")
	if err == nil || !strings.Contains(err.Error(), "--folder") {
		t.Fatalf("expected missing folder error, got %v", err)
	}
}

func TestBenchFolderConfirmationDeclined(t *testing.T) {
	out, err := execute(t, "n\n", "bench", "--driver", "folder", "--folder", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "aborted") {
		t.Fatalf("expected abort, got %v (output %q)", err, out)
	}
	if !strings.Contains(out, "create and delete files") {
		t.Fatalf("prompt missing from output: %q", out)
	}
}

func TestBenchKernelVersionRequiresChecksum(t *testing.T) {
	_, err := execute(t, "", "bench", "--driver", "folder", "--kernel-version", "6.17")
	if err == nil || !strings.Contains(err.Error(), "kernel-sha256") {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestBenchInvalidSlogSize(t *testing.T) {
	_, err := execute(t, "", "bench", "--driver", "folder", "--zfs-slog", "lots")
	if err == nil || !strings.Contains(err.Error(), "zfs-slog") {
		t.Fatalf("expected slog parse error, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	if confirm(strings.NewReader("no\n"), &out, "proceed?") {
		t.Fatalf("no should decline")
	}
	if !confirm(strings.NewReader("yes\n"), &out, "proceed?") {
		t.Fatalf("yes should accept")
	}
	if !confirm(strings.NewReader("Y\n"), &out, "proceed?") {
		t.Fatalf("Y should accept")
	}
	if confirm(strings.NewReader(""), &out, "proceed?") {
		t.Fatalf("EOF should decline")
	}
}
