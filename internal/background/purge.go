package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/hkaraoglu/dealer-auth/internal/revocation"
)

// PurgeManager periodically drops expired entries from the in-process
// revocation store. The redis-backed store expires entries on its own and
// does not need this.
type PurgeManager struct {
	registry       *revocation.MemoryRegistry
	logger         *slog.Logger
	interval       time.Duration
	maxBoundaryAge time.Duration
	stopCh         chan struct{}
}

// NewPurgeManager creates a new purge manager. maxBoundaryAge should match
// the refresh token lifetime: once every token issued before a user's
// revocation boundary has expired naturally, the boundary itself is garbage.
func NewPurgeManager(
	registry *revocation.MemoryRegistry,
	logger *slog.Logger,
	interval time.Duration,
	maxBoundaryAge time.Duration,
) *PurgeManager {
	return &PurgeManager{
		registry:       registry,
		logger:         logger,
		interval:       interval,
		maxBoundaryAge: maxBoundaryAge,
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic purge task
func (pm *PurgeManager) Start(ctx context.Context) {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.runPurge()
		case <-pm.stopCh:
			pm.logger.Info("purge manager stopped")
			return
		case <-ctx.Done():
			pm.logger.Info("purge manager context cancelled")
			return
		}
	}
}

func (pm *PurgeManager) runPurge() {
	removed := pm.registry.Purge(pm.maxBoundaryAge)
	if removed > 0 {
		pm.logger.Info("revocation store purge completed", slog.Int("entries_removed", removed))
	}
}

// Stop signals the purge manager to stop
func (pm *PurgeManager) Stop() {
	close(pm.stopCh)
}
