package proc

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestLaunchWithReadyPort(t *testing.T) {
	port := freePort(t)
	h, err := Launch(context.Background(), Spec{
		Name:          "listener",
		Path:          "nc",
		Args:          []string{"-l", "-p", strconv.Itoa(port)},
		ReadyPort:     port,
		ReadyTimeout:  10 * time.Second,
		DiscardOutput: true,
	}, nil)
	if err != nil {
		// nc variants differ; fall back to a python listener.
		h, err = Launch(context.Background(), Spec{
			Name: "listener",
			Path: "python3",
			Args: []string{"-c",
				"import socket,time\ns=socket.socket()\ns.bind(('127.0.0.1'," + strconv.Itoa(port) + "))\ns.listen()\ntime.sleep(60)"},
			ReadyPort:     port,
			ReadyTimeout:  10 * time.Second,
			DiscardOutput: true,
		}, nil)
		if err != nil {
			t.Fatalf("launch: %v", err)
		}
	}
	if h.Pid() <= 0 {
		t.Fatalf("pid=%d", h.Pid())
	}
	if err := h.Terminate(context.Background()); err != nil {
		t.Fatalf("terminate: %v", err)
	}
}

func TestLaunchWarmUp(t *testing.T) {
	start := time.Now()
	h, err := Launch(context.Background(), Spec{
		Name:          "sleeper",
		Path:          "sleep",
		Args:          []string{"30"},
		WarmUp:        100 * time.Millisecond,
		DiscardOutput: true,
	}, nil)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("launch returned before warm-up elapsed: %v", elapsed)
	}
	if err := h.Terminate(context.Background()); err != nil {
		t.Fatalf("terminate: %v", err)
	}
}

func TestLaunchFailsWhenProcessDiesInWarmUp(t *testing.T) {
	_, err := Launch(context.Background(), Spec{
		Name:          "doomed",
		Path:          "false",
		WarmUp:        5 * time.Second,
		DiscardOutput: true,
	}, nil)
	if err == nil {
		t.Fatalf("expected error for a process that exits during warm-up")
	}
	if !strings.Contains(err.Error(), "warm-up") {
		t.Fatalf("err=%v should mention warm-up", err)
	}
}

func TestLaunchFailsWhenNeverReady(t *testing.T) {
	port := freePort(t)
	_, err := Launch(context.Background(), Spec{
		Name:          "silent",
		Path:          "sleep",
		Args:          []string{"30"},
		ReadyPort:     port,
		ReadyTimeout:  500 * time.Millisecond,
		DiscardOutput: true,
	}, nil)
	if err == nil {
		t.Fatalf("expected readiness timeout")
	}
}

func TestTerminateAfterExit(t *testing.T) {
	h, err := Launch(context.Background(), Spec{
		Name:          "quick",
		Path:          "true",
		DiscardOutput: true,
	}, nil)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := h.Terminate(context.Background()); err != nil {
		t.Fatalf("terminate after exit: %v", err)
	}
}
