package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/shared"
	"github.com/navaarsync/navaar/internal/store"
)

// fakeWorker counts how many cycles ran and lets a test block inside a
// cycle to assert ordering guarantees.
type fakeWorker struct {
	direction models.Direction
	cycles    atomic.Int64
	block     chan struct{} // if non-nil, Cycle waits on this before returning
}

func (f *fakeWorker) Direction() models.Direction { return f.direction }

func (f *fakeWorker) Cycle(ctx context.Context) (int, error) {
	if f.block != nil {
		<-f.block
	}
	f.cycles.Add(1)
	return 0, nil
}

func newTestStores(t *testing.T) (*store.TrackStore, *store.StateStore) {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return store.NewTrackStore(db), store.NewStateStore(db)
}

func testLogger() *log.Logger { return shared.NewLogger(io.Discard) }

// TestLoop_ForceSyncStartsImmediateCycle covers §8 scenario 6: a force
// signal received while idle starts the next cycle without waiting out
// the interval.
func TestLoop_ForceSyncStartsImmediateCycle(t *testing.T) {
	tracks, state := newTestStores(t)
	worker := &fakeWorker{direction: models.TgToYt}
	loop := NewLoop(worker, time.Hour, tracks, state, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Serve(ctx)
		close(done)
	}()

	waitForCycles(t, worker, 1)
	loop.ForceSync()
	waitForCycles(t, worker, 2)

	cancel()
	<-done
}

// TestLoop_ForceSyncIsLatchedNotQueued covers the "latched, auto-cleared"
// contract: multiple ForceSync calls before the loop consumes any of
// them collapse into at most one extra cycle.
func TestLoop_ForceSyncIsLatchedNotQueued(t *testing.T) {
	tracks, state := newTestStores(t)
	worker := &fakeWorker{direction: models.TgToYt, block: make(chan struct{})}
	loop := NewLoop(worker, time.Hour, tracks, state, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Serve(ctx)
		close(done)
	}()

	// First cycle is blocked; latch several force signals while it runs.
	loop.ForceSync()
	loop.ForceSync()
	loop.ForceSync()

	worker.block <- struct{}{} // let the first cycle finish
	waitForCycles(t, worker, 1)

	close(worker.block)
	waitForCycles(t, worker, 2)

	// Give the loop a moment to decide there's no more work, then verify
	// it didn't run a third cycle from the extra latched signals.
	time.Sleep(20 * time.Millisecond)
	if got := worker.cycles.Load(); got != 2 {
		t.Fatalf("expected exactly 2 cycles (latched, not queued), got %d", got)
	}

	cancel()
	<-done
}

// TestLoop_ShutdownLetsInFlightCycleFinish covers ordering guarantee (iv):
// on shutdown, the currently-running cycle finishes before the loop exits.
func TestLoop_ShutdownLetsInFlightCycleFinish(t *testing.T) {
	tracks, state := newTestStores(t)
	block := make(chan struct{})
	worker := &fakeWorker{direction: models.TgToYt, block: block}
	loop := NewLoop(worker, time.Hour, tracks, state, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Serve(ctx)
		close(done)
	}()

	// Let the cycle start running, then cancel while it's still blocked.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
		t.Fatal("loop exited before its in-flight cycle finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(block)
	<-done
	if worker.cycles.Load() != 1 {
		t.Fatalf("expected the in-flight cycle to complete, got %d cycles", worker.cycles.Load())
	}
}

func waitForCycles(t *testing.T, w *fakeWorker, n int64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if w.cycles.Load() >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d cycles, got %d", n, w.cycles.Load())
		case <-time.After(2 * time.Millisecond):
		}
	}
}
