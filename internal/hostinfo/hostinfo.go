// Package hostinfo captures the machine context a benchmark ran on, so
// result files remain interpretable after the fact.
package hostinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Info describes the benchmark host. Fields that cannot be determined are
// left at their zero value; host capture must never fail a run.
type Info struct {
	Hostname      string `json:"hostname,omitempty"`
	OS            string `json:"os"`
	Platform      string `json:"platform,omitempty"`
	KernelVersion string `json:"kernel_version,omitempty"`
	LogicalCPUs   int    `json:"logical_cpus"`
	CPUModel      string `json:"cpu_model,omitempty"`
	TotalMemory   uint64 `json:"total_memory_bytes,omitempty"`
}

// Collect gathers host details. Best effort.
func Collect() Info {
	info := Info{OS: runtime.GOOS, LogicalCPUs: runtime.NumCPU()}
	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.KernelVersion = h.KernelVersion
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	}
	return info
}
