package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/ccash-market/marketd/internal/app/metrics"
	"github.com/ccash-market/marketd/internal/app/system"
	"github.com/ccash-market/marketd/pkg/logger"
)

var _ system.Service = (*Saver)(nil)

// Saver periodically persists the store in the background. A failed save is
// logged and the loop continues; a single failure never terminates the
// process. Stop performs one final synchronous save before returning.
type Saver struct {
	manager *Manager
	log     *logger.Logger
	warmup  time.Duration
	period  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSaver creates a lifecycle-managed background saver. The first save
// happens after the warm-up delay, then every period thereafter.
func NewSaver(manager *Manager, warmup, period time.Duration, log *logger.Logger) *Saver {
	if log == nil {
		log = logger.NewDefault("saver")
	}
	if warmup <= 0 {
		warmup = 30 * time.Second
	}
	if period <= 0 {
		period = 5 * time.Minute
	}
	return &Saver{manager: manager, log: log, warmup: warmup, period: period}
}

func (s *Saver) Name() string { return "snapshot-saver" }

func (s *Saver) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		warmup := time.NewTimer(s.warmup)
		defer warmup.Stop()

		select {
		case <-runCtx.Done():
			return
		case <-warmup.C:
			s.tick(runCtx)
		}

		ticker := time.NewTicker(s.period)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()

	s.log.Infof("background saver started (warmup %s, period %s)", s.warmup, s.period)
	return nil
}

// Stop halts the loop and attempts one last save so a graceful shutdown
// never loses state. A failing final save is logged, not propagated.
func (s *Saver) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := s.manager.Save(ctx); err != nil {
		s.log.WithError(err).Error("final save on shutdown failed")
	} else {
		s.log.Info("final snapshot saved")
	}
	return nil
}

func (s *Saver) tick(ctx context.Context) {
	start := time.Now()
	err := s.manager.Save(ctx)
	metrics.RecordSnapshotSave(time.Since(start), err == nil)
	if err != nil {
		s.log.WithError(err).Warn("periodic snapshot save failed")
		return
	}
	s.log.Debug("periodic snapshot saved")
}
