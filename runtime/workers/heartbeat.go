package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/observability"
)

// HeartbeatWorker periodically logs process health (CPU, RAM, OS status)
// together with the delivery counters. The log line is the operational
// surface; there is no metrics endpoint.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.Monitoring
	interval   time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitoring *observability.Monitoring,
	interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}

			stats := w.monitoring.Snapshot()
			w.log.Info("heartbeat",
				"pid", os.Getpid(),
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"active_connections", stats.ActiveConnections,
				"messages_persisted", stats.MessagesPersisted,
				"messages_pushed", stats.MessagesPushed,
				"push_failures", stats.PushFailures,
				"presence_pushes", stats.PresencePushes,
			)
		}
	}
}

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
