package workload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"pkt.systems/pslog"

	"pkt.systems/nbdbench/internal/bencher"
	"pkt.systems/nbdbench/internal/shell"
)

const (
	// DefaultKernelVersion is the kernel source release used for the
	// extraction workload.
	DefaultKernelVersion = "6.16"
	// DefaultKernelSHA256 is the published checksum of that release tarball.
	DefaultKernelSHA256 = "1a4be2fe6b5246aa4ac8987a8a4af34c42a8dd7d08b46ab48516bcc1befbcd83"

	kernelCDN = "https://cdn.kernel.org/pub/linux/kernel/v6.x/"
)

// FetchKernelTarball downloads and verifies the kernel source tarball,
// caching it in the system temp directory across runs. The download itself
// is never timed; only filesystem operations on the device under test count.
// The cache lives in a world-writable directory, so a cached file is
// re-hashed on every use; a mismatch discards it and refetches.
func FetchKernelTarball(ctx context.Context, logger pslog.Logger, version, sha string) (string, error) {
	return fetchKernelTarball(ctx, logger, os.TempDir(), kernelCDN, version, sha)
}

func fetchKernelTarball(ctx context.Context, logger pslog.Logger, cacheDir, baseURL, version, sha string) (string, error) {
	name := fmt.Sprintf("linux-%s.tar.xz", version)
	cached := filepath.Join(cacheDir, name)
	if _, err := os.Stat(cached); err == nil {
		got, herr := fileSHA256(cached)
		if herr == nil && got == sha {
			return cached, nil
		}
		logger.Warn("workload.kernel.cache_invalid", "path", cached, "sha256", got)
		os.Remove(cached)
	}

	url := baseURL + name
	logger.Info("workload.kernel.download", "url", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("workload: build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("workload: download kernel source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("workload: download kernel source: status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(cacheDir, name+".partial-")
	if err != nil {
		return "", fmt.Errorf("workload: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("workload: write kernel tarball: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("workload: close kernel tarball: %w", err)
	}
	got := hex.EncodeToString(hasher.Sum(nil))
	if got != sha {
		return "", fmt.Errorf("workload: kernel tarball checksum mismatch: expected %s, got %s", sha, got)
	}
	if err := os.Rename(tmp.Name(), cached); err != nil {
		return "", fmt.Errorf("workload: cache kernel tarball: %w", err)
	}
	return cached, nil
}

// KernelSource runs the kernel-source workload inside dir: extract the
// tarball, delete it, recompress the tree, delete the tree. Four samples.
func KernelSource(ctx context.Context, logger pslog.Logger, b *bencher.Bencher, dir, version, sha string) error {
	cached, err := FetchKernelTarball(ctx, logger, version, sha)
	if err != nil {
		return err
	}
	name := "linux-" + version
	tarball := filepath.Join(dir, name+".tar.xz")
	if err := copyFile(cached, tarball); err != nil {
		return fmt.Errorf("workload: stage kernel tarball: %w", err)
	}

	if err := b.Measure("linux_kernel_source_extraction", func() error {
		return shell.RunIn(ctx, logger, dir, "tar", "-xJf", tarball)
	}); err != nil {
		return fmt.Errorf("workload: extract kernel source: %w", err)
	}

	if err := b.Measure("linux_kernel_source_remove_tarball", func() error {
		return os.Remove(tarball)
	}); err != nil {
		return fmt.Errorf("workload: remove kernel tarball: %w", err)
	}

	// Recompress with gzip; the purpose is disk traffic, not compression
	// ratio.
	if err := b.Measure("linux_kernel_source_recompression", func() error {
		return shell.RunIn(ctx, logger, dir, "tar", "-czf", name+".tar.gz", name)
	}); err != nil {
		return fmt.Errorf("workload: recompress kernel source: %w", err)
	}

	if err := b.Measure("linux_kernel_source_deletion", func() error {
		return os.RemoveAll(filepath.Join(dir, name))
	}); err != nil {
		return fmt.Errorf("workload: delete kernel tree: %w", err)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
