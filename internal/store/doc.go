// Package store implements the three durable stores the sync core owns
// outright: the [TrackStore] (C1), the [StateStore] (C2), and the
// [EventLog] (C3). Every public operation commits as a single transaction.
//
// All three share one *sql.DB handle, opened and migrated by
// internal/shared. No component outside this package touches the
// tracks, sync_state, or sync_log tables directly.
package store
