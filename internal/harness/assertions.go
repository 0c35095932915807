package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/babel/internal/ir"
	"github.com/roach88/babel/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s", event.Seq, event.Op, event.Args, event.Status)
			if event.Error != "" {
				fmt.Fprintf(&buf, " %s", event.Error)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// AssertionContext provides host access for state assertions.
type AssertionContext struct {
	Store    *store.Store
	LinkSlot string
	Ctx      context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertReplica, AssertLinks, AssertSlot, AssertSetting, AssertCacheEvents:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else {
				err = assertState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertTraceContains checks if the trace contains a successful step
// matching the op and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Op == assertion.Op && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s with args %v", assertion.Op, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if positions[event.Op] == 0 {
			positions[event.Op] = i + 1 // 1-indexed for readability
		}
	}

	for _, op := range assertion.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", assertion.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Ops); i++ {
		prev := assertion.Ops[i-1]
		curr := assertion.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertState checks the final host state.
func assertState(actx *AssertionContext, a Assertion) error {
	ctx, st := actx.Ctx, actx.Store

	switch a.Type {
	case AssertReplica:
		r, err := st.LoadReplica(ctx, a.Replica)
		if a.Missing {
			if errors.Is(err, ir.ErrNotFound) {
				return nil
			}
			return &AssertionError{
				Type:     AssertReplica,
				Expected: fmt.Sprintf("replica %d to be missing", a.Replica),
				Actual:   fmt.Sprintf("load returned %v", err),
			}
		}
		if err != nil {
			return &AssertionError{
				Type:     AssertReplica,
				Expected: fmt.Sprintf("replica %d", a.Replica),
				Actual:   fmt.Sprintf("load error: %v", err),
			}
		}
		for _, key := range sortedKeys(a.Expect) {
			actual := r.Get(key)
			if !valuesEqual(a.Expect[key], actual) {
				return &AssertionError{
					Type:     AssertReplica,
					Expected: fmt.Sprintf("replica %d field %q = %v", a.Replica, key, a.Expect[key]),
					Actual:   fmt.Sprintf("field %q = %v", key, actual),
				}
			}
		}
		return nil

	case AssertLinks:
		raw, err := st.SlotValue(ctx, actx.LinkSlot, a.Replica)
		if err != nil {
			return fmt.Errorf("read links of %d: %w", a.Replica, err)
		}
		actual, err := ir.DecodeLinks(raw)
		if err != nil || !actual.Equal(ir.LinkSet(a.Links)) {
			return &AssertionError{
				Type:     AssertLinks,
				Expected: fmt.Sprintf("replica %d links %v", a.Replica, a.Links),
				Actual:   fmt.Sprintf("%q", raw),
			}
		}
		return nil

	case AssertSlot:
		actual, err := st.SlotValue(ctx, a.Slot, a.Replica)
		if err != nil {
			return fmt.Errorf("read slot %s of %d: %w", a.Slot, a.Replica, err)
		}
		if actual != a.Value {
			return &AssertionError{
				Type:     AssertSlot,
				Expected: fmt.Sprintf("replica %d slot %s = %q", a.Replica, a.Slot, a.Value),
				Actual:   fmt.Sprintf("%q", actual),
			}
		}
		return nil

	case AssertSetting:
		actual, err := st.Option(ctx, a.Key, "")
		if err != nil {
			return fmt.Errorf("read setting %s: %w", a.Key, err)
		}
		if actual != a.Value {
			return &AssertionError{
				Type:     AssertSetting,
				Expected: fmt.Sprintf("setting %s = %q", a.Key, a.Value),
				Actual:   fmt.Sprintf("%q", actual),
			}
		}
		return nil

	case AssertCacheEvents:
		events, err := st.CacheEvents(ctx)
		if err != nil {
			return fmt.Errorf("read cache events: %w", err)
		}
		count := 0
		for _, ev := range events {
			if a.Kind == "" || ev.Kind == a.Kind {
				count++
			}
		}
		if count != a.Count {
			kind := a.Kind
			if kind == "" {
				kind = "any"
			}
			return &AssertionError{
				Type:     AssertCacheEvents,
				Expected: fmt.Sprintf("%d cache events (%s)", a.Count, kind),
				Actual:   fmt.Sprintf("%d", count),
			}
		}
		return nil
	}

	return fmt.Errorf("unknown state assertion %q", a.Type)
}

// matchArgs reports whether every expected arg is present in actual with an
// equal value.
func matchArgs(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !valuesEqual(want, got) {
			return false
		}
	}
	return true
}
