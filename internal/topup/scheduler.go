package topup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/metrics"
	"github.com/dukerupert/choreledger/internal/model"
)

// FamilyLister returns the ids of every family. *store.FamilyStore
// satisfies it.
type FamilyLister interface {
	ListIDs(ctx context.Context) ([]int64, error)
}

// Scheduler settles the previous day for every family once a day, after
// the configured hour in the family clock.
type Scheduler struct {
	mu       sync.RWMutex
	gen      *Generator
	families FamilyLister
	clock    ledger.Clock
	hour     int
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	lastRun  model.Date
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(gen *Generator, families FamilyLister, clock ledger.Clock, hour int, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		gen:      gen,
		families: families,
		clock:    clock,
		hour:     hour,
		interval: time.Minute,
		metrics:  m,
		logger:   logger.With("component", "topup_scheduler"),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx, s.clock.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// tick runs the settlement for yesterday once the hour has passed. A day is
// settled only after it ends so late approvals still get matched.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	local := now.In(s.clock.Location())
	if local.Hour() < s.hour {
		return
	}
	target := model.DateOf(local).AddDays(-1)

	s.mu.RLock()
	done := s.lastRun.Equal(target)
	s.mu.RUnlock()
	if done {
		return
	}

	if s.RunOnce(ctx, target) {
		s.mu.Lock()
		s.lastRun = target
		s.mu.Unlock()
	}
}

// RunOnce settles date for every family and reports whether all succeeded.
// A failing family is logged and does not stop the rest.
func (s *Scheduler) RunOnce(ctx context.Context, date model.Date) bool {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "date", date)

	ids, err := s.families.ListIDs(ctx)
	if err != nil {
		logger.Error("list families", "error", err)
		s.metrics.TopupRun(false)
		return false
	}

	ok := true
	posted := 0
	for _, id := range ids {
		res, err := s.gen.GenerateForFamily(ctx, id, date)
		if err != nil {
			logger.Error("generate top-ups", "family_id", id, "error", err)
			ok = false
			continue
		}
		posted += res.Posted
	}
	s.metrics.TopupRun(ok)
	logger.Info("top-up run finished", "families", len(ids), "posted", posted, "ok", ok)
	return ok
}
