package driver

import (
	"strings"
	"testing"

	"pkt.systems/nbdbench"
)

func TestSlateDBEnvOmitsUnsetDimensions(t *testing.T) {
	c := nbdbench.MatrixSpec{Drivers: []nbdbench.Driver{nbdbench.DriverSlateDBNBD}}.Cases()[0]
	if env := slatedbEnv(c); len(env) != 0 {
		t.Fatalf("expected empty env for unswept dimensions, got %v", env)
	}
}

func TestSlateDBEnvWAL(t *testing.T) {
	spec := nbdbench.MatrixSpec{
		Drivers:  []nbdbench.Driver{nbdbench.DriverSlateDBNBD},
		SweepWAL: true,
	}
	cases := spec.Cases()
	if got := slatedbEnv(cases[0]); len(got) != 1 || got[0] != "SLATEDB_WAL_ENABLED=true" {
		t.Fatalf("wal=true env = %v", got)
	}
	if got := slatedbEnv(cases[1]); len(got) != 1 || got[0] != "SLATEDB_WAL_ENABLED=false" {
		t.Fatalf("wal=false env = %v", got)
	}
}

func TestCacheOptions(t *testing.T) {
	off := cacheOptions(false)
	if !strings.HasPrefix(off, "{root_folder=None,") {
		t.Fatalf("disabled cache options = %q", off)
	}
	on := cacheOptions(true)
	if !strings.Contains(on, "root_folder=/tmp/slatedb-object-store-cache_") {
		t.Fatalf("enabled cache options = %q", on)
	}
	for _, s := range []string{off, on} {
		for _, field := range []string{
			"max_cache_size_bytes=17179869184",
			"part_size_bytes=4194304",
			`scan_interval="1h"`,
		} {
			if !strings.Contains(s, field) {
				t.Fatalf("cache options %q missing %q", s, field)
			}
		}
	}
	if cacheOptions(true) == cacheOptions(true) {
		t.Fatalf("enabled cache directory should be unique per call")
	}
}

func TestZeroFSEnv(t *testing.T) {
	env := zerofsEnv(10809)
	want := map[string]string{
		"AWS_ALLOW_HTTP":             "true",
		"SLATEDB_CACHE_DIR":          "/tmp/zerofs-cache",
		"SLATEDB_CACHE_SIZE_GB":      "2",
		"ZEROFS_ENCRYPTION_PASSWORD": "secret",
		"ZEROFS_NBD_PORTS":           "10809",
		"ZEROFS_NBD_DEVICE_SIZES_GB": "3",
	}
	if len(env) != len(want) {
		t.Fatalf("env has %d entries, want %d: %v", len(env), len(want), env)
	}
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			t.Fatalf("malformed env entry %q", kv)
		}
		if want[k] != v {
			t.Fatalf("env %s = %q, want %q", k, v, want[k])
		}
	}
}
