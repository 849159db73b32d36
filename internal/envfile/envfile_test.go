package envfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.test")
	content := "NBDBENCH_ENVFILE_TEST_A=alpha\nexport NBDBENCH_ENVFILE_TEST_B=\"two words\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("NBDBENCH_ENVFILE_TEST_A")
		os.Unsetenv("NBDBENCH_ENVFILE_TEST_B")
	})
	if err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("NBDBENCH_ENVFILE_TEST_A"); got != "alpha" {
		t.Fatalf("A=%q want alpha", got)
	}
	if got := os.Getenv("NBDBENCH_ENVFILE_TEST_B"); got != "two words" {
		t.Fatalf("B=%q want %q", got, "two words")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if err := Load("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
