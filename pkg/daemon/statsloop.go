package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/modoterra/droidsym/pkg/core"
	"github.com/modoterra/droidsym/pkg/transport/uds"
)

// StatsLoop samples the served stream every interval and broadcasts its
// counters when they changed since the last sample.
type StatsLoop struct {
	daemon   *Daemon
	interval time.Duration
	last     core.Stats
	logger   *slog.Logger
}

// NewStatsLoop creates a stats loop for the given daemon.
func NewStatsLoop(d *Daemon, interval time.Duration, logger *slog.Logger) *StatsLoop {
	return &StatsLoop{daemon: d, interval: interval, logger: logger}
}

// Run starts the loop. Blocks until ctx is cancelled.
func (sl *StatsLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(sl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sl.tick()
		}
	}
}

func (sl *StatsLoop) tick() {
	s, err := sl.daemon.current()
	if err != nil {
		return
	}
	stats := s.Stats()
	if stats == sl.last {
		return
	}
	sl.last = stats
	sl.daemon.publishStats(stats)
}

func (d *Daemon) publishStats(stats core.Stats) {
	evt, err := uds.NewEvent(uds.EventStats, stats)
	if err != nil {
		d.logger.Error("encode stats", "err", err)
		return
	}
	d.server.Broadcast(evt)
}
