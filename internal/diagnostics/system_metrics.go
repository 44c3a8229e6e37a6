package diagnostics

import (
	"context"
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	mib = 1 << 20
	gib = 1 << 30
)

// HostSample is one reading of the resources an analysis server depends on.
// Downloads land in the work directory, so its filesystem is reported
// rather than the root one.
type HostSample struct {
	CPUCount   int     `json:"cpu_count"`
	CPUPercent float64 `json:"cpu_percent"`
	Load1      float64 `json:"load_1,omitempty"`

	MemTotalMB     float64 `json:"mem_total_mb"`
	MemAvailableMB float64 `json:"mem_available_mb"`
	MemPercent     float64 `json:"mem_percent"`

	WorkDir        string  `json:"work_dir"`
	WorkDirFreeGB  float64 `json:"work_dir_free_gb"`
	WorkDirPercent float64 `json:"work_dir_percent"`
}

// HostSampler reads host statistics through gopsutil. Readings that fail on
// this platform stay zero.
type HostSampler struct {
	workDir string

	once     sync.Once
	cpuCount int
}

// NewHostSampler samples the filesystem holding workDir, or the system root
// when workDir is empty.
func NewHostSampler(workDir string) *HostSampler {
	if workDir == "" {
		workDir = systemRoot()
	}
	return &HostSampler{workDir: workDir}
}

// Sample takes a reading. CPU percent is measured since the previous call.
func (s *HostSampler) Sample(ctx context.Context) HostSample {
	s.once.Do(func() {
		if n, err := cpu.CountsWithContext(ctx, true); err == nil {
			s.cpuCount = n
		}
	})
	out := HostSample{CPUCount: s.cpuCount, WorkDir: s.workDir}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		out.CPUPercent = pct[0]
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemTotalMB = float64(vm.Total) / mib
		out.MemAvailableMB = float64(vm.Available) / mib
		out.MemPercent = vm.UsedPercent
	}
	if usage, err := disk.UsageWithContext(ctx, s.workDir); err == nil {
		out.WorkDirFreeGB = float64(usage.Free) / gib
		out.WorkDirPercent = usage.UsedPercent
	}
	return out
}

func systemRoot() string {
	if runtime.GOOS != "windows" {
		return "/"
	}
	if drive := os.Getenv("SystemDrive"); drive != "" {
		return drive + `\`
	}
	return `C:\`
}
