package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"pkt.systems/nbdbench"
	"pkt.systems/nbdbench/internal/driver"
	"pkt.systems/nbdbench/internal/envfile"
	"pkt.systems/nbdbench/internal/hostinfo"
	"pkt.systems/nbdbench/internal/objstore"
	"pkt.systems/nbdbench/internal/shell"
	"pkt.systems/nbdbench/internal/workload"
)

func newBenchCommand(baseLogger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the benchmark matrix",
		Long: `Run every combination of the requested drivers and dimensions against
the filesystem workload and print per-run and per-dimension statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, baseLogger)
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("driver", []string{string(nbdbench.DriverSlateDBNBD)},
		"driver to benchmark (slatedb-nbd, zerofs, zerofs-plan9, folder); repeatable")
	flags.StringSlice("compression", []string{nbdbench.CompressionZstd},
		"ZFS compression values to sweep (off, zstd, zstd-fast); repeatable")
	flags.IntSlice("connections", []int{1}, "NBD connection counts to sweep; repeatable")
	flags.Bool("test-wal", false, "sweep SlateDB WAL on and off")
	flags.Bool("test-object-store-cache", false, "sweep the SlateDB object store cache on and off")
	flags.Bool("test-zfs-sync", false, "sweep the ZFS sync property (disabled, standard, always)")
	flags.String("zfs-slog", "", "attach a separate ZFS log device of this size (e.g. 1GiB)")
	flags.Int("ashift", 0, "override the driver's default zpool ashift")
	flags.Int("block-size", 0, "override the driver's default NBD block size")
	flags.String("folder", "", "target directory for the folder driver")
	flags.String("slatedb-repo", ".", "slatedb-nbd checkout to build and run")
	flags.String("zerofs-bin", "zerofs", "zerofs executable")
	flags.Bool("enable-trim", false, "include the pool trim step")
	flags.Bool("enable-scrub", false, "include the pool scrub step")
	flags.String("kernel-version", "", "kernel source version for the extraction workload")
	flags.String("kernel-sha256", "", "expected tarball checksum; required with --kernel-version")
	flags.String("config", "", "YAML config file; flags and NBDBENCH_* env override it")
	flags.String("env-file", "", "shell file sourced into the environment before validation")
	flags.Bool("json", false, "emit the full result set as JSON instead of the text report")
	flags.BoolP("yes", "y", false, "skip interactive confirmations")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")

	bindBenchFlags(flags)

	return cmd
}

func bindBenchFlags(flags *pflag.FlagSet) {
	for _, name := range []string{
		"driver", "compression", "connections", "test-wal", "test-object-store-cache",
		"test-zfs-sync", "zfs-slog", "ashift", "block-size", "folder", "slatedb-repo",
		"zerofs-bin", "enable-trim", "enable-scrub", "kernel-version", "kernel-sha256",
		"config", "env-file", "json", "yes", "log-level",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("NBDBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runBench(cmd *cobra.Command, baseLogger pslog.Logger) error {
	if cfgPath := strings.TrimSpace(viper.GetString("config")); cfgPath != "" {
		viper.SetConfigFile(cfgPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
	}
	logger := baseLogger
	if logLevel := strings.TrimSpace(viper.GetString("log-level")); logLevel != "" {
		if level, ok := pslog.ParseLevel(logLevel); ok {
			logger = logger.LogLevel(level)
		}
	}
	ctx := cmd.Context()

	if envFile := viper.GetString("env-file"); envFile != "" {
		if err := envfile.Load(envFile); err != nil {
			return fmt.Errorf("env file: %w", err)
		}
		logger.Debug("bench.envfile", "path", envFile)
	}

	cfg, err := benchConfig(logger)
	if err != nil {
		return err
	}

	// Everything that can fail validation must fail here, before the bucket
	// is emptied or anything is launched.
	var bucket nbdbench.Bucket
	if cfg.NeedsBucket() {
		if err := cfg.ObjectStore.Validate(); err != nil {
			return err
		}
		store, err := objstore.New(cfg.ObjectStore, logger)
		if err != nil {
			return err
		}
		if !cfg.AssumeYes {
			prompt := fmt.Sprintf("bucket %q at %s will be emptied before every run; continue?",
				cfg.ObjectStore.Bucket, cfg.ObjectStore.EndpointURL)
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
				return fmt.Errorf("aborted")
			}
		}
		bucket = store
	}
	if hasDriver(cfg, nbdbench.DriverFolder) {
		if cfg.FolderPath == "" {
			return fmt.Errorf("the folder driver requires --folder")
		}
		if !cfg.AssumeYes {
			prompt := fmt.Sprintf("the workload will create and delete files under %q; continue?", cfg.FolderPath)
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
				return fmt.Errorf("aborted")
			}
		}
	}

	cases := cfg.Matrix.Cases()
	if len(cases) == 0 {
		return fmt.Errorf("empty benchmark matrix")
	}
	logger.Info("bench.matrix", "runs", len(cases), "drivers", len(cfg.Matrix.Drivers))

	if needsSudo(cfg) {
		if err := shell.PrimeSudo(ctx, logger); err != nil {
			return fmt.Errorf("sudo: %w", err)
		}
	}

	// Warm the tarball cache so the first run does not pay for the
	// download.
	opts := cfg.Workload
	if opts.KernelVersion == "" {
		opts.KernelVersion = workload.DefaultKernelVersion
		opts.KernelSHA256 = workload.DefaultKernelSHA256
	}
	if _, err := workload.FetchKernelTarball(ctx, logger, opts.KernelVersion, opts.KernelSHA256); err != nil {
		return fmt.Errorf("kernel tarball: %w", err)
	}

	host := hostinfo.Collect()
	reporter := nbdbench.Reporter{Out: cmd.OutOrStdout()}
	runner := &nbdbench.Runner{
		Logger: logger,
		Environments: map[nbdbench.Driver]nbdbench.Environment{
			nbdbench.DriverSlateDBNBD: &driver.SlateDBNBD{Logger: logger, RepoDir: cfg.SlateDBRepo},
			nbdbench.DriverZeroFS:     &driver.ZeroFS{Logger: logger, Binary: cfg.ZeroFSBinary},
			nbdbench.DriverZeroFSP9:   &driver.ZeroFSPlan9{Logger: logger, Binary: cfg.ZeroFSBinary},
			nbdbench.DriverFolder:     &driver.Folder{Logger: logger, Path: cfg.FolderPath},
		},
		Workload: nbdbench.FilesystemWorkload{
			Logger:   logger,
			Options:  cfg.Workload,
			ZFSSteps: cfg.ZFSApplicable(),
		},
		Bucket: bucket,
		Host:   &host,
	}
	if !viper.GetBool("json") {
		// Stream each result as soon as its run finishes; a crash in run
		// five still leaves four complete records on stdout.
		runner.OnResult = func(res nbdbench.RunResult) {
			if err := reporter.WriteRunObject(res); err != nil {
				logger.Warn("bench.report", "error", err)
			}
		}
	}
	results := runner.Run(ctx, cases)

	if viper.GetBool("json") {
		return reporter.WriteJSON(results)
	}
	if err := reporter.Write(results); err != nil {
		return err
	}
	for _, r := range results {
		if r.Failed {
			return fmt.Errorf("%d of %d runs failed", countFailed(results), len(results))
		}
	}
	return nil
}

// benchConfig assembles the invocation config from viper, which merges
// flags with NBDBENCH_* environment overrides.
func benchConfig(logger pslog.Logger) (nbdbench.Config, error) {
	var cfg nbdbench.Config

	for _, name := range viper.GetStringSlice("driver") {
		d, err := nbdbench.ParseDriver(name)
		if err != nil {
			return cfg, err
		}
		cfg.Matrix.Drivers = append(cfg.Matrix.Drivers, d)
	}
	for _, name := range viper.GetStringSlice("compression") {
		c, err := nbdbench.ParseCompression(name)
		if err != nil {
			return cfg, err
		}
		cfg.Matrix.Compression = append(cfg.Matrix.Compression, c)
	}
	cfg.Matrix.Connections = viper.GetIntSlice("connections")
	cfg.Matrix.SweepWAL = viper.GetBool("test-wal")
	cfg.Matrix.SweepObjectStoreCache = viper.GetBool("test-object-store-cache")
	cfg.Matrix.SweepZFSSync = viper.GetBool("test-zfs-sync")
	if slog := strings.TrimSpace(viper.GetString("zfs-slog")); slog != "" {
		size, err := humanize.ParseBytes(slog)
		if err != nil {
			return cfg, fmt.Errorf("--zfs-slog: %w", err)
		}
		cfg.Matrix.SlogSize = int64(size)
	}
	if ashift := viper.GetInt("ashift"); ashift > 0 {
		cfg.Matrix.AshiftOverride = &ashift
	}
	if blockSize := viper.GetInt("block-size"); blockSize > 0 {
		cfg.Matrix.BlockSizeOverride = &blockSize
	}

	cfg.ObjectStore = nbdbench.ObjectStoreFromEnv()
	cfg.FolderPath = viper.GetString("folder")
	cfg.SlateDBRepo = viper.GetString("slatedb-repo")
	cfg.ZeroFSBinary = viper.GetString("zerofs-bin")
	cfg.AssumeYes = viper.GetBool("yes")

	cfg.Workload = workload.Options{
		KernelVersion: viper.GetString("kernel-version"),
		KernelSHA256:  viper.GetString("kernel-sha256"),
		EnableTrim:    viper.GetBool("enable-trim"),
		EnableScrub:   viper.GetBool("enable-scrub"),
	}
	if cfg.Workload.KernelVersion != "" && cfg.Workload.KernelSHA256 == "" {
		return cfg, fmt.Errorf("--kernel-version requires --kernel-sha256")
	}

	if len(cfg.Matrix.Drivers) == 0 {
		return cfg, fmt.Errorf("at least one --driver is required")
	}
	if !cfg.ZFSApplicable() && zfsOnlySweep(cfg) {
		logger.Warn("bench.config",
			"note", "pool-level dimensions are ignored when a non-ZFS driver is in the matrix")
	}
	return cfg, nil
}

func zfsOnlySweep(cfg nbdbench.Config) bool {
	return cfg.Matrix.SweepZFSSync || cfg.Matrix.SlogSize > 0
}

func hasDriver(cfg nbdbench.Config, d nbdbench.Driver) bool {
	for _, have := range cfg.Matrix.Drivers {
		if have == d {
			return true
		}
	}
	return false
}

// needsSudo reports whether any requested driver touches block devices,
// pools, or mounts.
func needsSudo(cfg nbdbench.Config) bool {
	for _, d := range cfg.Matrix.Drivers {
		if d != nbdbench.DriverFolder {
			return true
		}
	}
	return false
}

func countFailed(results []nbdbench.RunResult) int {
	n := 0
	for _, r := range results {
		if r.Failed {
			n++
		}
	}
	return n
}
