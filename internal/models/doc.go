// Package models defines the domain entities of the Navaar sync engine:
// the [Track] state machine, the closed [Direction]/[Status]/
// [IdentificationMethod]/[LogEvent] enums, the C2 state-entry key
// conventions ([SnapshotKey], [LastSyncKey]), and the [LogEntry] record
// appended by every transition.
//
// Track is deliberately a plain struct with exported fields rather than
// an accessor-gated entity: the direction workers (internal/sync) and
// the track store (internal/store) mutate a wide subset of its fields on
// every cycle, and the invariants are enforced transactionally by
// the store rather than by field-level gating.
package models
