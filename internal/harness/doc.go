// Package harness runs YAML scenarios against the engine and a fresh
// in-memory store.
//
// # Scenario Format
//
//	name: sort_propagates
//	description: "A reorder in one context is replayed in its siblings"
//	config:
//	  context_keys: "web,de"
//	batch_token: batch-sort
//	setup:
//	  replicas:
//	    - { id: 10, context: web }
//	    - { id: 20, context: de }
//	    - { id: 5, context: web }
//	    - { id: 7, context: de }
//	  links:
//	    - { web: 10, de: 20 }
//	    - { web: 5, de: 7 }
//	flow:
//	  - op: sort
//	    nodes:
//	      - { id: 5, parent: 10, order: 2, context: web }
//	    expect:
//	      result: { records: 1 }
//	assertions:
//	  - type: replica
//	    replica: 7
//	    expect: { parent: 20, menuindex: 2 }
//
// Setup is written straight to the store. Flow steps call the engine (or,
// for edit, set_slot and the middle of sort, act as the host would). Each
// step is recorded in the trace with its args, its result or error code and
// the number of cache events it signaled.
//
// # Assertion Types
//
//   - trace_contains, trace_order, trace_count: checks on the trace
//   - replica, links, slot, setting: checks on the final host state
//   - cache_events: number of cache refreshes and invalidations
//
// # Deterministic Testing
//
// Scenarios run with a fixed clock (testutil.DeterministicClock) and fixed
// sort batch tokens, so traces can be compared byte for byte against golden
// files with RunWithGolden.
package harness
