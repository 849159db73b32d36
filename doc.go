// Package nbdbench benchmarks network block device storage stacks by
// running a fixed filesystem workload against every combination of a
// configuration matrix and comparing the timings with geometric statistics.
//
// A benchmark invocation expands a MatrixSpec into Cases, hands each case
// to the Runner, which provisions the stack through an Environment (the
// service process, the NBD attachment, the ZFS pool and dataset), runs the
// workload, and unwinds everything in reverse order. The Reporter folds the
// recorded samples into per-run and per-dimension geometric summaries.
package nbdbench
