// Package scheduler implements the C6 cooperative scheduler: one
// suture-supervised loop per enabled direction, each interleaving a
// periodic cycle with an operator-forced one and a shared shutdown signal.
//
// Grounded on original_source/sync/engine.py: SyncEngine, re-expressed
// over suture.Service rather than asyncio.gather + Event pairs — the
// fan-out/fan-in shape the original internal/sync poller services use
// for suture.Supervisor.Serve(ctx).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thejerf/suture/v4"

	"github.com/navaarsync/navaar/internal/metrics"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/store"
	"github.com/navaarsync/navaar/internal/sync"
)

// Loop drives one direction's cycle method on an interval, with a
// latched force-sync signal and clean shutdown on context cancellation.
// It implements suture.Service.
type Loop struct {
	worker sync.DirectionWorker
	interval time.Duration
	force chan struct{}
	tracks *store.TrackStore
	state *store.StateStore
	logger *log.Logger
}

// NewLoop builds a Loop for worker, cycling every interval (or sooner, on
// a ForceSync call).
func NewLoop(worker sync.DirectionWorker, interval time.Duration, tracks *store.TrackStore, state *store.StateStore, logger *log.Logger) *Loop {
	return &Loop{
		worker: worker,
		interval: interval,
		force: make(chan struct{}, 1),
		tracks: tracks,
		state: state,
		logger: logger,
	}
}

// ForceSync latches a wakeup for the next wait iteration. It never
// blocks: a loop already about to run absorbs at most one extra request.
func (l *Loop) ForceSync() {
	select {
	case l.force <- struct{}{}:
	default:
	}
}

// Serve runs cycles until ctx is done.
func (l *Loop) Serve(ctx context.Context) error {
	direction := l.worker.Direction()
	l.logger.Info("sync loop started", "direction", string(direction), "interval", l.interval)

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("sync loop stopped", "direction", string(direction))
			return nil
		}

		l.runCycle(ctx)

		select {
		case <-ctx.Done():
			l.logger.Info("sync loop stopped", "direction", string(direction))
			return nil
		case <-l.force:
			l.logger.Info("forced sync", "direction", string(direction))
		case <-time.After(l.interval):
		}
	}
}

func (l *Loop) runCycle(ctx context.Context) {
	direction := l.worker.Direction()
	start := time.Now()
	metrics.SyncCycles.WithLabelValues(string(direction)).Inc()

	processed, err := l.worker.Cycle(ctx)
	if err != nil {
		l.logger.Error("sync cycle crashed", "direction", string(direction), "error", err)
		metrics.SyncErrors.WithLabelValues(string(direction), "cycle_crash").Inc()
	}

	elapsed := time.Since(start)
	metrics.SyncCycleDuration.WithLabelValues(string(direction)).Observe(elapsed.Seconds())
	metrics.LastSyncTimestamp.WithLabelValues(string(direction)).Set(float64(time.Now().Unix()))
	metrics.LastSyncDuration.WithLabelValues(string(direction)).Set(elapsed.Seconds())
	metrics.LastSyncProcessed.WithLabelValues(string(direction)).Set(float64(processed))

	if err := updateGauges(l.tracks); err != nil {
		l.logger.Error("failed to update gauges", "error", err)
	}
	if err := l.state.SetLastSync(direction, time.Now()); err != nil {
		l.logger.Error("failed to persist last sync time", "direction", string(direction), "error", err)
	}

	l.logger.Info("sync cycle complete", "direction", string(direction), "processed", processed, "elapsed", elapsed)
}

// updateGauges refreshes the per-direction and total gauges from the
// current track counts.
func updateGauges(tracks *store.TrackStore) error {
	counts, err := tracks.GetCounts()
	if err != nil {
		return fmt.Errorf("failed to load counts: %w", err)
	}

	var total, totalSynced int
	for _, d := range models.Directions {
		statuses := counts[d]
		pending := statuses[models.StatusPending] + statuses[models.StatusRetryScheduled]
		failed := statuses[models.StatusFailed]
		synced := statuses[models.StatusSynced]
		dupes := statuses[models.StatusDuplicate]

		dirTotal := 0
		for _, n := range statuses {
			dirTotal += n
		}

		metrics.TracksPendingGauge.WithLabelValues(string(d)).Set(float64(pending))
		metrics.TracksFailedGauge.WithLabelValues(string(d)).Set(float64(failed))
		metrics.TracksSyncedGauge.WithLabelValues(string(d)).Set(float64(synced))
		metrics.TracksDuplicateGauge.WithLabelValues(string(d)).Set(float64(dupes))

		total += dirTotal
		totalSynced += synced
	}

	metrics.TracksTotalGauge.Set(float64(total))
	if total > 0 {
		metrics.SuccessRate.Set(float64(totalSynced) / float64(total) * 100)
	} else {
		metrics.SuccessRate.Set(0)
	}
	return nil
}

// Scheduler owns one Loop per enabled direction under a suture
// supervisor, so a panic or returned error in one direction's loop
// never takes down the others.
type Scheduler struct {
	sup *suture.Supervisor
	loops map[models.Direction]*Loop
}

// New creates an empty Scheduler. Register direction workers with Register
// before calling Serve.
func New(logger *log.Logger) *Scheduler {
	return &Scheduler{
		sup: suture.New("navaar-scheduler", suture.Spec{}),
		loops: make(map[models.Direction]*Loop),
	}
}

// Register adds worker to the scheduler with the given cycle interval.
func (s *Scheduler) Register(worker sync.DirectionWorker, interval time.Duration, tracks *store.TrackStore, state *store.StateStore, logger *log.Logger) {
	loop := NewLoop(worker, interval, tracks, state, logger)
	s.loops[worker.Direction()] = loop
	s.sup.Add(loop)
}

// ForceSync requests an immediate extra cycle for direction, returning
// false if no loop is registered for it.
func (s *Scheduler) ForceSync(direction models.Direction) bool {
	loop, ok := s.loops[direction]
	if !ok {
		return false
	}
	loop.ForceSync()
	return true
}

// Serve blocks, running every registered loop until ctx is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	return s.sup.Serve(ctx)
}
