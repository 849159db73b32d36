package nbdbench

import (
	"fmt"
	"strconv"
)

// Driver identifies a storage stack under test.
type Driver string

// Supported drivers.
const (
	DriverSlateDBNBD Driver = "slatedb-nbd"
	DriverZeroFS     Driver = "zerofs"
	DriverZeroFSP9   Driver = "zerofs-plan9"
	DriverFolder     Driver = "folder"
)

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	switch Driver(s) {
	case DriverSlateDBNBD, DriverZeroFS, DriverZeroFSP9, DriverFolder:
		return Driver(s), nil
	}
	return "", fmt.Errorf("unknown driver %q (expected slatedb-nbd, zerofs, zerofs-plan9, or folder)", s)
}

// UsesZFS reports whether the driver mounts ZFS on an NBD device, making
// the pool-level workload steps (snapshot, trim, scrub, zpool sync)
// applicable.
func (d Driver) UsesZFS() bool {
	return d == DriverSlateDBNBD || d == DriverZeroFS
}

// UsesBucket reports whether the driver persists to the object store.
func (d Driver) UsesBucket() bool {
	return d != DriverFolder
}

// Compression values accepted for the ZFS compression dimension.
const (
	CompressionOff      = "off"
	CompressionZstd     = "zstd"
	CompressionZstdFast = "zstd-fast"
)

// ParseCompression validates a compression algorithm name.
func ParseCompression(s string) (string, error) {
	switch s {
	case CompressionOff, CompressionZstd, CompressionZstdFast:
		return s, nil
	}
	return "", fmt.Errorf("unknown compression %q (expected off, zstd, or zstd-fast)", s)
}

// ZFS sync property values swept by the sync-mode dimension.
const (
	ZFSSyncDisabled = "disabled"
	ZFSSyncStandard = "standard"
	ZFSSyncAlways   = "always"
)

// Case is one configuration record of the benchmark matrix. Every record
// produced by a MatrixSpec carries the same key set; dimensions that are not
// being swept stay nil and serialise as JSON null.
type Case struct {
	Driver           Driver  `json:"driver"`
	Compression      *string `json:"compression"`
	Encryption       bool    `json:"encryption"`
	Connections      *int    `json:"connections"`
	WALEnabled       *bool   `json:"wal_enabled"`
	ObjectStoreCache *bool   `json:"object_store_cache"`
	ZFSSync          *string `json:"zfs_sync"`
	Ashift           *int    `json:"ashift"`
	BlockSize        *int    `json:"block_size"`
	SlogSize         *int64  `json:"slog_size"`
}

// DimensionValue returns the printable value of a named dimension, used as
// the grouping key when comparing runs. Unset dimensions report "null".
func (c Case) DimensionValue(name string) string {
	switch name {
	case "driver":
		return string(c.Driver)
	case "compression":
		if c.Compression == nil {
			return CompressionOff
		}
		return *c.Compression
	case "connections":
		if c.Connections == nil {
			return "null"
		}
		return strconv.Itoa(*c.Connections)
	case "wal_enabled":
		return formatBoolPtr(c.WALEnabled)
	case "object_store_cache":
		return formatBoolPtr(c.ObjectStoreCache)
	case "zfs_sync":
		if c.ZFSSync == nil {
			return "null"
		}
		return *c.ZFSSync
	case "slog_size":
		if c.SlogSize == nil {
			return "null"
		}
		return strconv.FormatInt(*c.SlogSize, 10)
	}
	return "null"
}

func formatBoolPtr(b *bool) string {
	if b == nil {
		return "null"
	}
	return strconv.FormatBool(*b)
}

// driverDefaults carries the fixed per-driver settings merged into every
// case. SlateDB-NBD always runs with an encrypted dataset and 4K blocks;
// ZeroFS encrypts internally, so the dataset stays plaintext.
type driverDefaults struct {
	encryption bool
	ashift     *int
	blockSize  *int
}

func defaultsFor(d Driver) driverDefaults {
	switch d {
	case DriverSlateDBNBD:
		return driverDefaults{encryption: true, ashift: intPtr(12), blockSize: intPtr(4096)}
	case DriverZeroFS:
		return driverDefaults{encryption: false}
	}
	return driverDefaults{}
}

// MatrixSpec describes the requested sweep. Cases is a pure function of the
// spec: it can be called repeatedly and always yields the identical
// sequence.
type MatrixSpec struct {
	Drivers     []Driver
	Compression []string
	Connections []int

	// Sweep flags expand a dimension from {nil} to its full value set.
	SweepWAL              bool
	SweepObjectStoreCache bool
	SweepZFSSync          bool

	// SlogSize, when positive, attaches a separate log device of this many
	// bytes to every pool.
	SlogSize int64

	// Explicit overrides for the per-driver defaults.
	AshiftOverride    *int
	BlockSizeOverride *int
}

// Cases produces the full Cartesian product in the fixed nesting order:
// driver outermost, then compression, connections, wal, object-store cache,
// zfs sync, slog innermost. The order only affects progress output.
func (m MatrixSpec) Cases() []Case {
	drivers := m.Drivers
	if len(drivers) == 0 {
		drivers = []Driver{DriverSlateDBNBD}
	}
	compression := m.Compression
	if len(compression) == 0 {
		compression = []string{CompressionZstd}
	}
	connections := m.Connections
	if len(connections) == 0 {
		connections = []int{1}
	}
	walValues := []*bool{nil}
	if m.SweepWAL {
		walValues = []*bool{boolPtr(true), boolPtr(false)}
	}
	cacheValues := []*bool{nil}
	if m.SweepObjectStoreCache {
		cacheValues = []*bool{boolPtr(true), boolPtr(false)}
	}
	syncValues := []*string{nil}
	if m.SweepZFSSync {
		syncValues = []*string{strPtr(ZFSSyncDisabled), strPtr(ZFSSyncStandard), strPtr(ZFSSyncAlways)}
	}
	slogValues := []*int64{nil}
	if m.SlogSize > 0 {
		slogValues = []*int64{int64Ptr(m.SlogSize)}
	}

	var cases []Case
	for _, driver := range drivers {
		defaults := defaultsFor(driver)
		for _, comp := range compression {
			for _, conns := range connections {
				for _, wal := range walValues {
					for _, cache := range cacheValues {
						for _, sync := range syncValues {
							for _, slog := range slogValues {
								c := Case{
									Driver:           driver,
									Encryption:       defaults.encryption,
									Ashift:           defaults.ashift,
									BlockSize:        defaults.blockSize,
									Connections:      intPtr(conns),
									WALEnabled:       copyBoolPtr(wal),
									ObjectStoreCache: copyBoolPtr(cache),
									ZFSSync:          copyStrPtr(sync),
									SlogSize:         copyInt64Ptr(slog),
								}
								if comp != CompressionOff {
									c.Compression = strPtr(comp)
								}
								if m.AshiftOverride != nil {
									c.Ashift = intPtr(*m.AshiftOverride)
								}
								if m.BlockSizeOverride != nil {
									c.BlockSize = intPtr(*m.BlockSizeOverride)
								}
								cases = append(cases, c)
							}
						}
					}
				}
			}
		}
	}
	return cases
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
func int64Ptr(v int64) *int64 { return &v }

func copyBoolPtr(p *bool) *bool {
	if p == nil {
		return nil
	}
	return boolPtr(*p)
}

func copyStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return strPtr(*p)
}

func copyInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	return int64Ptr(*p)
}
