package workers

import (
	"chat-realtime/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker samples the process itself and publishes the figures as gauges.
type HeartbeatWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, metrics *observability.Metrics, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, metrics: metrics, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
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
			stats, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.metrics.ProcessRSSBytes.Set(float64(stats.rss))
			w.metrics.ProcessCPUPercent.Set(stats.cpu)
			w.metrics.ProcessOpenSockets.Set(float64(stats.sockets))
			w.log.Debug("Heartbeat", "rss", stats.rss, "cpu", stats.cpu, "sockets", stats.sockets)
		}
	}
}

type processStats struct {
	rss     uint64
	cpu     float64
	sockets int
}

func selfStats(p *process.Process) (processStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return processStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return processStats{}, err
	}
	// not supported everywhere, the gauge stays at zero then
	connections, _ := p.Connections()
	return processStats{rss: memInfo.RSS, cpu: cpuPercent, sockets: len(connections)}, nil
}
