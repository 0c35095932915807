// Package ir holds the data model shared by every babel package.
//
// This package contains types and pure functions only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key pieces:
//   - LinkSet and its string codec ("web:1;de:4"), the only persisted form
//     of an equivalence group
//   - ContextGroups, parsed from the flat "a,b;c,d" setting
//   - Replica and Value, the borrowed host record the engine diffs
//   - Config, FieldPolicy and Schema, compiled from the CUE config file
package ir
