// Package envfile sources a shell-style environment file and applies the
// resulting variables to the current process. Credentials for the object
// store usually live in an .env file next to the harness rather than in the
// invoking shell.
package envfile

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Load sources path with bash (so quoting, export and interpolation behave
// as in an interactive shell) and applies every changed variable to the
// current process environment.
func Load(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("envfile: path required")
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("envfile: %w", err)
	}

	cmd := exec.Command("bash", "-c", "set -a; source \"$1\"; env -0", "bash", path)
	cmd.Env = os.Environ()
	cmd.Dir = filepath.Dir(path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("envfile: source %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}

	before := envMap(os.Environ())
	for key, val := range envMapFromOutput(out) {
		if shouldIgnoreKey(key) {
			continue
		}
		if prev, ok := before[key]; ok && prev == val {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf("envfile: setenv %s: %w", key, err)
		}
	}
	return nil
}

func envMap(env []string) map[string]string {
	out := make(map[string]string, len(env))
	for _, entry := range env {
		if idx := strings.Index(entry, "="); idx >= 0 {
			out[entry[:idx]] = entry[idx+1:]
		}
	}
	return out
}

func envMapFromOutput(out []byte) map[string]string {
	res := map[string]string{}
	for _, entry := range bytes.Split(out, []byte{0}) {
		if len(entry) == 0 {
			continue
		}
		if idx := bytes.IndexByte(entry, '='); idx >= 0 {
			res[string(entry[:idx])] = string(entry[idx+1:])
		}
	}
	return res
}

func shouldIgnoreKey(key string) bool {
	switch key {
	case "PWD", "OLDPWD", "SHLVL", "_", "SHELLOPTS", "BASHOPTS", "PS1", "PS2", "PS4", "PROMPT_COMMAND", "TERM", "COLORTERM":
		return true
	}
	return strings.HasPrefix(key, "BASH_")
}
