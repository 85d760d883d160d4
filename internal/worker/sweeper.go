package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SweeperConfig holds configuration for the pending export sweeper
type SweeperConfig struct {
	// Interval between sweeps (default: 30s)
	Interval time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Interval: 30 * time.Second}
}

// Sweeper runs ExportWorker.ProcessPending at startup and on every tick
type Sweeper struct {
	worker *ExportWorker
	config SweeperConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(worker *ExportWorker, config SweeperConfig) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	return &Sweeper{worker: worker, config: config}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.worker.logger.InfoContext(ctx, "Export sweeper started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for it, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.worker.logger.InfoContext(ctx, "Export sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.worker.logger.WarnContext(ctx, "Export sweeper stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the sweeper is currently running
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.worker.ProcessPending(ctx); err != nil && ctx.Err() == nil {
		s.worker.logger.ErrorContext(ctx, "Pending export sweep failed", "error", err)
	}
}
