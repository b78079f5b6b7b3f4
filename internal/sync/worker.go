// Package sync implements the C5 direction workers: the two
// cycle shapes ("target-push" and "source-pull-and-transfer") that
// advance tracks through the state machine, one instance per
// enabled direction.
//
// A [DirectionWorker] is the single capability the scheduler (C6) needs:
// one method, dispatched through a map keyed by direction rather than
// attribute probing.
//
// Grounded on original_source/sync/{tg_to_yt,tg_to_sp,yt_to_sp,sp_to_yt,
// yt_to_tg,sp_to_tg}.py.
package sync

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/navaarsync/navaar/internal/metrics"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/store"
)

// DirectionWorker is the one capability the scheduler dispatches on: run
// one cycle for this worker's direction and report how many tracks it
// moved to synced during that cycle.
type DirectionWorker interface {
	Direction() models.Direction
	Cycle(ctx context.Context) (int, error)
}

// markFailed transitions a track to failed, appends the matching log
// event, and bumps the sync_errors/error counter — the common tail of
// every per-item failure path in both shapes.
func markFailed(tracks *store.TrackStore, log *store.EventLog, direction models.Direction, trackID int64, reason models.FailureReason, event models.LogEvent, details any, errorType string) {
	if _, err := tracks.MarkFailed(trackID, reason); err != nil {
		return
	}
	d := direction
	_ = log.Log(&trackID, event, &d, details)
	metrics.SyncErrors.WithLabelValues(string(direction), errorType).Inc()
}

// releaseLocalFile runs a cleanup callback, swallowing a nil path —
// used on every exit path of a download so a leaked temp file never
// survives a cycle.
func releaseLocalFile(path string, cleanup func(string)) {
	if path == "" || cleanup == nil {
		return
	}
	cleanup(path)
}

// unexpectedErrorGuard recovers a panic inside a per-item step and
// converts it into an error, so a single track's bug can never abort
// the whole cycle.
func unexpectedErrorGuard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// noMatchVocabulary lets target_push.go's four directions share one
// struct while still naming their own no-match failure reason/event/
// error-type triad (no_yt_match vs no_sp_match)
type noMatchVocabulary struct {
	reason models.FailureReason
	event models.LogEvent
	errorType string
}

// logInfo is a small indirection over *log.Logger so every worker logs
// with the same direction=/track_id= key shape the original's
// structlog calls used.
func logInfo(logger *log.Logger, msg string, direction models.Direction, kv ...any) {
	logger.Info(msg, append([]any{"direction", string(direction)}, kv...)...)
}

func logError(logger *log.Logger, msg string, direction models.Direction, kv ...any) {
	logger.Error(msg, append([]any{"direction", string(direction)}, kv...)...)
}
