package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/store"
)

// WindowPruner drops idle rate-limit windows. *ratelimit.MemoryStore
// implements it; redis windows expire on their own.
type WindowPruner interface {
	Prune(now time.Time, window time.Duration) int
}

// HousekeepingService periodically cleans up state that would otherwise grow
// without bound: expired revocations and idle rate-limit windows.
type HousekeepingService struct {
	Revocations store.Revocations
	Windows     WindowPruner // optional
	Window      time.Duration
	Logger      *slog.Logger
	Interval    time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. If interval is 0
// or negative, defaults to 1 hour.
func NewHousekeepingService(revocations store.Revocations, windows WindowPruner, window time.Duration, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Revocations: revocations,
		Windows:     windows,
		Window:      window,
		Logger:      logger,
		Interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each step is independent; a failure in one does
// not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	if s.Revocations != nil {
		n, err := s.Revocations.DeleteExpired(ctx, now)
		if err != nil {
			s.Logger.Error("failed to delete expired revocations", "error", err)
		} else {
			s.Logger.Debug("deleted expired revocations", "count", n)
		}
	}

	if s.Windows != nil {
		n := s.Windows.Prune(now, s.Window)
		s.Logger.Debug("pruned idle rate-limit windows", "count", n)
	}

	s.Logger.Info("housekeeping cleanup completed")
}
