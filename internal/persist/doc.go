// Package persist stores case session snapshots.
//
// The orchestrator saves a full snapshot after every state change, so a
// restart can reload any session and sweep stale records. Snapshots are
// whole-session JSON documents: stage records are append-only inside the
// session, and the store never edits history, only replaces the snapshot.
package persist
