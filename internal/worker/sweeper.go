package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vimestats/internal/config"
	"github.com/vimestats/internal/domain"
)

// Portal is the part of the portal service the sweeper drives
type Portal interface {
	SweepExpired(ctx context.Context) int
	RefreshRankStats(ctx context.Context) domain.RankStats
	PruneLookups(ctx context.Context, retention time.Duration) (int64, error)
}

// Broadcaster publishes refreshed rank statistics to live connections
type Broadcaster interface {
	BroadcastRankStats(stats domain.RankStats)
}

// Sweeper periodically removes expired player-cache entries and refreshes
// rank statistics
type Sweeper struct {
	portal    Portal
	hub       Broadcaster
	cache     *config.CacheConfig
	stats     *config.StatsConfig
	retention time.Duration
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewSweeper creates a new sweeper. hub may be nil.
func NewSweeper(
	portal Portal,
	hub Broadcaster,
	cfg *config.Config,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		portal:    portal,
		hub:       hub,
		cache:     &cfg.Cache,
		stats:     &cfg.Stats,
		retention: cfg.Postgres.Retention,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background loop
func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sweeper started",
		"sweep_interval", w.cache.SweepInterval,
		"sweep_enabled", w.cache.SweepEnabled,
		"stats_interval", w.stats.RefreshInterval,
		"stats_enabled", w.stats.Enabled,
	)

	go w.run(ctx)
	return nil
}

// Stop stops the background loop and waits for it to exit
func (w *Sweeper) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sweeper stopped")
	return nil
}

// run is the main worker loop. A disabled task never fires.
func (w *Sweeper) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	var sweepC, statsC <-chan time.Time
	if w.cache.SweepEnabled && w.cache.SweepInterval > 0 {
		t := time.NewTicker(w.cache.SweepInterval)
		defer t.Stop()
		sweepC = t.C
	}
	if w.stats.Enabled && w.stats.RefreshInterval > 0 {
		t := time.NewTicker(w.stats.RefreshInterval)
		defer t.Stop()
		statsC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-sweepC:
			w.Sweep(ctx)
		case <-statsC:
			w.RefreshStats(ctx)
		}
	}
}

// Sweep removes expired player-cache entries and lookup history past its
// retention. It returns how many cache entries were removed.
func (w *Sweeper) Sweep(ctx context.Context) int {
	start := time.Now()
	removed := w.portal.SweepExpired(ctx)

	pruned, err := w.portal.PruneLookups(ctx, w.retention)
	if err != nil {
		w.logger.Error("failed to prune lookup history", "error", err)
	}

	w.logger.Info("cache sweep completed",
		"duration", time.Since(start),
		"removed", removed,
		"lookups_pruned", pruned,
	)
	return removed
}

// RefreshStats reloads rank statistics and broadcasts them
func (w *Sweeper) RefreshStats(ctx context.Context) domain.RankStats {
	start := time.Now()
	stats := w.portal.RefreshRankStats(ctx)
	if w.hub != nil {
		w.hub.BroadcastRankStats(stats)
	}
	w.logger.Info("rank stats refreshed",
		"duration", time.Since(start),
		"ranks", len(stats),
	)
	return stats
}

// IsRunning returns whether the sweeper is currently running
func (w *Sweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs every enabled task once
func (w *Sweeper) RunOnce(ctx context.Context) {
	if w.cache.SweepEnabled {
		w.Sweep(ctx)
	}
	if w.stats.Enabled {
		w.RefreshStats(ctx)
	}
}
