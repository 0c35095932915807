// Package store provides the SQLite host that the babel engine runs against.
//
// The store holds four kinds of state:
//   - Replicas: content items, each living in exactly one context
//   - Slot values: per-replica values outside the core columns, including
//     the serialized link set of every replica
//   - Settings: key/value host options such as the context group setting
//   - Cache events: an append-only record of refresh and invalidate calls
//
// # Conventions
//
// Missing replicas are reported by wrapping ir.ErrNotFound, so callers can
// use errors.Is regardless of which operation failed.
//
// A missing slot value reads as the empty string. Hosts do not distinguish
// "never set" from "set to empty", and neither does the engine.
//
// List queries are ordered by id so that results are deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
