package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
)

// HousekeepingService periodically sweeps the revocation blacklist so
// records for tokens that have expired on their own do not accumulate.
type HousekeepingService struct {
	Blacklist *blacklist.Client
	Logger    *slog.Logger
	Interval  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(bl *blacklist.Client, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Blacklist: bl,
		Logger:    logger,
		Interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs the sweep.
// Non-blocking; call Stop to shut the worker down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker. Blocks until any
// in-progress sweep has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup.
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	ctx := context.Background()

	n, err := s.Blacklist.SweepExpired(ctx)
	if err != nil {
		s.Logger.Error("blacklist sweep failed", "error", err)
		return
	}
	s.Logger.Info("blacklist sweep completed", "deleted", n)
}
