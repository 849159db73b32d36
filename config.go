package nbdbench

import (
	"os"

	"pkt.systems/nbdbench/internal/objstore"
	"pkt.systems/nbdbench/internal/workload"
)

// Environment variables read for the object store contract. Drivers under
// test consume the same variables, so the harness validates them up front
// rather than letting a half-provisioned stack fail minutes in.
const (
	EnvEndpoint        = "AWS_ENDPOINT"
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvBucketName      = "AWS_BUCKET_NAME"
)

// Defaults for the harness.
const (
	DefaultNBDDeviceIndex = 5
	DefaultNBDPort        = 10809
	DefaultPlan9Port      = 5564
)

// ObjectStoreFromEnv assembles the object store configuration from the
// process environment. Validation is left to the caller so that folder-only
// runs, which never touch the bucket, can proceed without credentials.
func ObjectStoreFromEnv() objstore.Config {
	return objstore.Config{
		EndpointURL:     os.Getenv(EnvEndpoint),
		AccessKeyID:     os.Getenv(EnvAccessKeyID),
		SecretAccessKey: os.Getenv(EnvSecretAccessKey),
		Bucket:          os.Getenv(EnvBucketName),
	}
}

// Config collects everything a benchmark invocation needs beyond the matrix
// itself.
type Config struct {
	Matrix MatrixSpec

	// ObjectStore is required for every driver except folder.
	ObjectStore objstore.Config

	// Workload tuning passed through to the filesystem test sequence.
	Workload workload.Options

	// FolderPath is the target directory for the folder driver.
	FolderPath string

	// SlateDBRepo and ZeroFSBinary locate the stacks under test.
	SlateDBRepo  string
	ZeroFSBinary string

	// AssumeYes suppresses the interactive confirmations before destructive
	// steps (emptying the bucket, writing into an existing folder).
	AssumeYes bool
}

// NeedsBucket reports whether any requested driver persists to the object
// store, which means the bucket will be emptied between runs.
func (c Config) NeedsBucket() bool {
	for _, d := range c.Matrix.Drivers {
		if d.UsesBucket() {
			return true
		}
	}
	return false
}

// ZFSApplicable reports whether the pool-level steps stay enabled. Mixing a
// non-ZFS driver into the matrix disables them for the whole invocation so
// every run measures the same step list.
func (c Config) ZFSApplicable() bool {
	for _, d := range c.Matrix.Drivers {
		if !d.UsesZFS() {
			return false
		}
	}
	return len(c.Matrix.Drivers) > 0
}
