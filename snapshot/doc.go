// Package snapshot persists a point-in-time copy of a market so
// restarts replay only the log tail. A snapshot records every resting
// order plus the per-book state that matching does not rebuild, keyed
// by the log sequence it was taken at.
//
// Snapshots are written under the service mutex, so a file is always
// internally consistent with its sequence.
package snapshot
