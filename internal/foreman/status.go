package foreman

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"reel/internal/logging"
	"reel/internal/queue"
	"reel/internal/worker"
)

// HostStats is a host resource sample.
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryTotal   uint64  `json:"memory_total"`
}

// Summary is the scheduler view exposed to the daemon and API.
type Summary struct {
	Running        bool                 `json:"running"`
	TargetWorkers  int                  `json:"target_workers"`
	Workers        []worker.Status      `json:"workers"`
	Queue          map[queue.Status]int `json:"queue"`
	Host           *HostStats           `json:"host,omitempty"`
	RunnersBlocked bool                 `json:"runners_blocked"`
	LastError      string               `json:"last_error,omitempty"`
}

// Workers returns a snapshot of every worker in id order.
func (f *Foreman) Workers() []worker.Status {
	slots := f.orderedSlots()
	out := make([]worker.Status, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.w.Snapshot())
	}
	return out
}

// Status assembles the scheduler summary. Host statistics are best effort.
func (f *Foreman) Status(ctx context.Context) Summary {
	f.mu.RLock()
	summary := Summary{Running: f.running, TargetWorkers: f.target}
	if f.lastErr != nil {
		summary.LastError = f.lastErr.Error()
	}
	f.mu.RUnlock()

	summary.Workers = f.Workers()
	summary.RunnersBlocked = f.registry != nil && f.registry.Validate() != nil

	if f.store != nil {
		stats, err := f.store.Stats(ctx)
		if err != nil {
			f.logger.Warn("failed to read queue stats", logging.Error(err),
				logging.EventType("queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check task database access"),
				logging.String(logging.FieldImpact, "status omits queue counts"),
			)
		}
		summary.Queue = stats
	}
	if host, err := sampleHost(ctx); err == nil {
		summary.Host = host
	} else {
		f.logger.Debug("host stats unavailable", logging.Error(err))
	}
	return summary
}

// sampleHost reads CPU usage since the previous call and current memory use.
func sampleHost(ctx context.Context) (*HostStats, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	stats := &HostStats{MemoryPercent: vm.UsedPercent, MemoryUsed: vm.Used, MemoryTotal: vm.Total}
	if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	return stats, nil
}
