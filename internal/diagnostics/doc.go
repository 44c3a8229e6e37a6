// Package diagnostics reports whether an analysis server can keep taking
// work.
//
// HostSampler reads memory, CPU and free space on the work directory
// through gopsutil. HealthChecker adds Go runtime statistics and marks the
// server degraded when a reading crosses its threshold.
package diagnostics
